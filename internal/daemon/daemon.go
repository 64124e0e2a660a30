// Package daemon implements the Daemon Core (§4.3): PID-file exclusivity,
// the tick loop, and issue prioritization.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oss-dev/supervisor/internal/log"
	"github.com/oss-dev/supervisor/internal/state"
)

// Monitor is the shared contract from §4.4: a cheap periodic observer that
// may return at most one Issue per tick. Task emission happens as a side
// effect of Poll (monitors hold their own queue.Manager reference); Poll's
// return value is only the issue surfaced to the tick.
type Monitor interface {
	Name() string
	Poll(ctx context.Context) (*state.Issue, error)
}

// TickObserver records each tick's wall-clock duration. A nil TickObserver
// on Config disables the metric.
type TickObserver interface {
	ObserveTick(time.Duration)
}

// Config configures a Daemon.
type Config struct {
	PIDFilePath    string
	CheckInterval  time.Duration
	MonitorTimeout time.Duration
	Monitors       []Monitor
	State          *state.Store
	Now            func() time.Time
	// Tracer instruments each tick as a span, and each monitor poll as a
	// child span. A nil Tracer disables instrumentation.
	Tracer trace.Tracer
	// Metrics records each tick's duration for the /metrics endpoint.
	Metrics TickObserver
}

// Daemon runs the tick loop described in §4.3 and §5: one logical timer,
// each monitor call bounded by MonitorTimeout, non-overlapping ticks.
type Daemon struct {
	cfg     Config
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ticking int32
}

// New fills defaults for unset cfg fields and returns a Daemon ready to Start.
func New(cfg Config) *Daemon {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Second
	}
	if cfg.MonitorTimeout <= 0 {
		cfg.MonitorTimeout = 5 * time.Second
	}

	return &Daemon{cfg: cfg}
}

// Start acquires the PID file and launches the tick loop. It returns once
// the loop goroutine is running; callers block on ctx or call Stop.
func (d *Daemon) Start(ctx context.Context) error {
	if err := acquirePIDFile(d.cfg.PIDFilePath); err != nil {
		return err
	}
	log.Daemon("daemon started, pid file acquired")

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.loop(loopCtx)

	return nil
}

// Stop cancels the tick loop, waits (up to a grace period) for the
// in-flight tick to finish, and removes the PID file. Partial failures
// during shutdown are logged and do not block subsequent steps (§5).
func (d *Daemon) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn(log.CatDaemon, "shutdown grace period exceeded, proceeding anyway")
	}

	if err := releasePIDFile(d.cfg.PIDFilePath); err != nil {
		log.ErrorErr(log.CatDaemon, "failed to release pid file", err)
		return err
	}
	log.Daemon("daemon stopped, pid file released")

	return nil
}

func (d *Daemon) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runTick(ctx)
		}
	}
}

// runTick performs one tick: heartbeat write, monitor poll, issue
// prioritization. Skips entirely if the previous tick has not finished
// (§5: "Tick handlers must not overlap themselves").
func (d *Daemon) runTick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&d.ticking, 0, 1) {
		log.Debug(log.CatDaemon, "tick skipped, previous tick still running")
		return
	}
	defer atomic.StoreInt32(&d.ticking, 0)

	if d.cfg.Tracer != nil {
		var span trace.Span
		ctx, span = d.cfg.Tracer.Start(ctx, "daemon.tick")
		defer span.End()
	}

	tickStart := time.Now()
	if d.cfg.Metrics != nil {
		defer func() { d.cfg.Metrics.ObserveTick(time.Since(tickStart)) }()
	}

	now := d.cfg.Now()
	if d.cfg.State != nil {
		if err := d.cfg.State.SetDaemonHeartbeat(now); err != nil {
			log.ErrorErr(log.CatDaemon, "failed to write heartbeat", err)
		}
	}

	var issues []state.Issue
	for _, m := range d.cfg.Monitors {
		issue, err := d.pollOne(ctx, m)
		if err != nil {
			log.ErrorErr(log.CatMonitor, "monitor poll failed", err, "monitor", m.Name())
			continue
		}
		if issue != nil {
			issues = append(issues, *issue)
		}
	}

	winner := PrioritizeIssues(issues)
	if d.cfg.State == nil {
		return
	}
	if winner != nil {
		if err := d.cfg.State.ReportIssue(*winner); err != nil {
			log.ErrorErr(log.CatDaemon, "failed to report issue", err)
		}
	} else {
		if err := d.cfg.State.ClearIssue(); err != nil {
			log.ErrorErr(log.CatDaemon, "failed to clear issue", err)
		}
	}
}

// pollOne calls m.Poll bounded by MonitorTimeout. Any panic or error inside
// a monitor (MonitorObservationError, §7) is swallowed here and logged, not
// propagated: monitors never crash the daemon.
func (d *Daemon) pollOne(ctx context.Context, m Monitor) (issue *state.Issue, pollErr error) {
	defer func() {
		if r := recover(); r != nil {
			pollErr = fmt.Errorf("monitor %s panicked: %v", m.Name(), r)
		}
	}()

	if d.cfg.Tracer != nil {
		var span trace.Span
		ctx, span = d.cfg.Tracer.Start(ctx, "daemon.monitor_poll", trace.WithAttributes(attribute.String("monitor.name", m.Name())))
		defer span.End()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d.cfg.MonitorTimeout)
	defer cancel()

	return m.Poll(timeoutCtx)
}
