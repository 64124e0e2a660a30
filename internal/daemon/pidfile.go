package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is the InvariantViolation (§7) for a second daemon start
// while a live instance holds the PID file.
var ErrAlreadyRunning = errors.New("daemon: already running")

// ErrNotRunning reports that no daemon is running. No function in this
// module returns it.
var ErrNotRunning = errors.New("daemon: not running")

// acquirePIDFile implements the start procedure from §4.3: read the PID
// file; if present and signal-0 to that PID succeeds, fail with
// ErrAlreadyRunning; if the PID is dead, remove the stale file; then write
// our own PID.
func acquirePIDFile(path string) error {
	if existing, ok := readPID(path); ok {
		if processAlive(existing) {
			return ErrAlreadyRunning
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale pid file: %w", err)
		}
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644) //nolint:gosec // G306: pid file is world-readable by convention
}

// releasePIDFile removes the PID file, tolerating its absence.
func releasePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pid file: %w", err)
	}
	return nil
}

// ReadPID reads the PID stored at path. The second return value is false
// if the file is missing or unparseable.
func ReadPID(path string) (int, bool) {
	return readPID(path)
}

// ProcessAlive reports whether pid is a live, signalable process.
func ProcessAlive(pid int) bool {
	return processAlive(pid)
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-controlled state directory
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}

	return pid, true
}

// processAlive sends signal 0 to pid: delivery succeeds (no error) iff a
// process with that pid exists and is signalable by us.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil
}
