// Package monitors implements the background observers described in §4.4:
// process, resource, health-check, git, tdd, log, iron-law, test, and spec
// monitors. Each is a cheap periodic observer that emits a task via the
// queue manager or returns an Issue for the daemon's tick.
package monitors

import (
	"bufio"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProcessKind classifies an observed process by its command line.
type ProcessKind string

const (
	ProcessVitest  ProcessKind = "vitest"
	ProcessNpmTest ProcessKind = "npm-test"
	ProcessJest    ProcessKind = "jest"
	ProcessNode    ProcessKind = "node"
	ProcessUnknown ProcessKind = "unknown"
)

// Process is a single host process observed via `ps aux`.
type Process struct {
	PID     int
	Command string
	Started time.Time
	Kind    ProcessKind
}

// ClassifyProcess inspects a command line and assigns a ProcessKind.
// Ordering matters: more specific substrings are checked before generic
// ones so "vitest run" isn't misclassified as plain "node".
func ClassifyProcess(command string) ProcessKind {
	lower := strings.ToLower(command)
	switch {
	case strings.Contains(lower, "vitest"):
		return ProcessVitest
	case strings.Contains(lower, "jest"):
		return ProcessJest
	case strings.Contains(lower, "npm test") || strings.Contains(lower, "npm run test"):
		return ProcessNpmTest
	case strings.Contains(lower, "node"):
		return ProcessNode
	default:
		return ProcessUnknown
	}
}

// IsProcessHung reports whether p has been running at least timeout.
func IsProcessHung(p Process, timeout time.Duration, now time.Time) bool {
	return now.Sub(p.Started) >= timeout
}

// ProcessMonitor lists host processes filtered by a command substring.
type ProcessMonitor struct {
	filter string
	runPS  func() (string, error)
	now    func() time.Time
}

// NewProcessMonitor builds a ProcessMonitor that filters `ps aux` output by
// filter (a command substring, e.g. "node" or "vitest").
func NewProcessMonitor(filter string) *ProcessMonitor {
	return &ProcessMonitor{
		filter: filter,
		runPS: func() (string, error) {
			out, err := exec.Command("ps", "aux").Output() //nolint:gosec // G204: fixed argv, no user input
			return string(out), err
		},
		now: time.Now,
	}
}

// List returns the host processes matching the configured filter.
func (m *ProcessMonitor) List() ([]Process, error) {
	raw, err := m.runPS()
	if err != nil {
		return nil, err
	}

	var procs []Process
	scanner := bufio.NewScanner(strings.NewReader(raw))
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue // header row
		}
		if m.filter != "" && !strings.Contains(line, m.filter) {
			continue
		}

		p, ok := parsePSLine(line, m.now())
		if !ok {
			continue
		}
		p.Kind = ClassifyProcess(p.Command)
		procs = append(procs, p)
	}

	return procs, nil
}

// parsePSLine extracts pid, start time, and command from a `ps aux` line.
// Supports both macOS's 12-hour "1:23PM" style start times and Linux's
// 24-hour "13:23" style, falling back to the Unix epoch for date-only
// entries (process started on a prior day) since exact age then matters
// less than the fact that it's not a fresh spawn.
func parsePSLine(line string, now time.Time) (Process, bool) {
	fields := strings.Fields(line)
	if len(fields) < 11 {
		return Process{}, false
	}

	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Process{}, false
	}

	startField := fields[8]
	started := parseStartTime(startField, now)
	command := strings.Join(fields[10:], " ")

	return Process{PID: pid, Command: command, Started: started}, true
}

func parseStartTime(field string, now time.Time) time.Time {
	// macOS AM/PM form, e.g. "1:23PM".
	if t, err := time.Parse("3:04PM", field); err == nil {
		return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	}
	// Linux 24-hour form, e.g. "13:23".
	if t, err := time.Parse("15:04", field); err == nil {
		return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	}
	// Date-only entries (e.g. "Jul31") mean the process predates today;
	// treat as started at the epoch so age checks always trip.
	return time.Unix(0, 0)
}
