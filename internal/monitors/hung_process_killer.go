package monitors

import (
	"fmt"
	"syscall"
	"time"

	"github.com/oss-dev/supervisor/internal/log"
)

// DefaultTimeouts are the per-kind hang timeouts from §4.4.
var DefaultTimeouts = map[ProcessKind]time.Duration{
	ProcessVitest:  5 * time.Minute,
	ProcessNpmTest: 10 * time.Minute,
	ProcessJest:    10 * time.Minute,
	ProcessNode:    15 * time.Minute,
	ProcessUnknown: 30 * time.Minute,
}

// KillResult reports the outcome of a (possibly dry-run) kill decision.
type KillResult struct {
	Success bool
	DryRun  bool
}

// HungProcessKiller decides whether a classified process should be killed
// and, if so, issues SIGTERM followed by SIGKILL after a grace period.
type HungProcessKiller struct {
	timeouts    map[ProcessKind]time.Duration
	gracePeriod time.Duration
	now         func() time.Time
	signal      func(pid int, sig syscall.Signal) error
}

// NewHungProcessKiller builds a killer using DefaultTimeouts.
func NewHungProcessKiller() *HungProcessKiller {
	return &HungProcessKiller{
		timeouts:    DefaultTimeouts,
		gracePeriod: 5 * time.Second,
		now:         time.Now,
		signal:      signalProcess,
	}
}

// ShouldKillProcess reports whether p has exceeded its kind's timeout.
func (k *HungProcessKiller) ShouldKillProcess(p Process) bool {
	timeout, ok := k.timeouts[p.Kind]
	if !ok {
		timeout = k.timeouts[ProcessUnknown]
	}
	return IsProcessHung(p, timeout, k.now())
}

// Kill terminates p: SIGTERM, then SIGKILL after the grace period if it is
// still alive. dryRun performs every decision but no actual signal.
func (k *HungProcessKiller) Kill(p Process, dryRun bool) KillResult {
	decision := k.ShouldKillProcess(p)
	log.Info(log.CatMonitor, fmt.Sprintf("kill decision pid=%d type=%s reason=\"exceeded timeout\"", p.PID, p.Kind),
		"decision", decision, "dryRun", dryRun, "timestamp", k.now().Format(time.RFC3339))

	if !decision {
		return KillResult{Success: false, DryRun: dryRun}
	}
	if dryRun {
		return KillResult{Success: true, DryRun: true}
	}

	if err := k.signal(p.PID, syscall.SIGTERM); err != nil {
		return KillResult{Success: false}
	}

	go func() {
		time.Sleep(k.gracePeriod)
		_ = k.signal(p.PID, syscall.SIGKILL)
	}()

	return KillResult{Success: true}
}

func signalProcess(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
