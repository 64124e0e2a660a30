package monitors

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/itchyny/gojq"

	"github.com/oss-dev/supervisor/internal/git"
	"github.com/oss-dev/supervisor/internal/queue"
	"github.com/oss-dev/supervisor/internal/state"
)

var protectedBranches = map[string]bool{"main": true, "master": true}

// CIStatus is the subset of an external CLI's CI/PR status JSON the monitor
// cares about, extracted with a gojq query so the monitor never needs a
// hand-rolled struct per forge response shape.
type CIStatus struct {
	Conclusion string // "success", "failure", ...
	CheckName  string
}

// GitMonitor reads the current branch and external CI/PR status (§4.4).
type GitMonitor struct {
	executor   *git.RealExecutor
	queue      *queue.Manager
	runForgeCI func(ctx context.Context) (string, error)
}

// NewGitMonitor builds a GitMonitor. runForgeCI invokes the external
// git-forge CLI's `api`/`pr view` style status query and returns raw JSON.
func NewGitMonitor(executor *git.RealExecutor, q *queue.Manager, runForgeCI func(ctx context.Context) (string, error)) *GitMonitor {
	return &GitMonitor{executor: executor, queue: q, runForgeCI: runForgeCI}
}

// Name satisfies daemon.Monitor.
func (m *GitMonitor) Name() string { return "git" }

// Poll checks the current branch for a protected-branch violation and, when
// a CI status fetcher is configured, parses CI/PR status and queues tasks
// on failure.
func (m *GitMonitor) Poll(ctx context.Context) (*state.Issue, error) {
	var issue *state.Issue

	branch, err := m.executor.GetCurrentBranch()
	if err == nil && protectedBranches[branch] {
		issue = &state.Issue{
			Type:     "branch_violation",
			Message:  fmt.Sprintf("currently on protected branch %q", branch),
			Severity: state.SeverityError,
		}
	}

	if m.runForgeCI != nil && m.queue != nil {
		if err := m.checkCIStatus(ctx); err != nil {
			return issue, err
		}
	}

	return issue, nil
}

func (m *GitMonitor) checkCIStatus(ctx context.Context) error {
	raw, err := m.runForgeCI(ctx)
	if err != nil {
		if _, qerr := m.queue.Add(queue.AddInput{
			Priority:    queue.PriorityHigh,
			Source:      "git-monitor",
			AnomalyType: "ci_failure",
			Prompt:      "CI status check failed: " + err.Error(),
		}); qerr != nil {
			return qerr
		}
		return nil
	}

	statuses, err := parseCIStatuses(raw)
	if err != nil {
		return nil // malformed output is a MonitorObservationError, swallowed
	}

	for _, s := range statuses {
		if s.Conclusion == "failure" {
			if _, err := m.queue.Add(queue.AddInput{
				Priority:    queue.PriorityHigh,
				Source:      "git-monitor",
				AnomalyType: "pr_check_failed",
				Prompt:      fmt.Sprintf("check %q failed", s.CheckName),
				Context:     map[string]any{"check": s.CheckName},
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// parseCIStatuses extracts check name/conclusion pairs from a gh-style JSON
// array of check-run objects using a gojq query, tolerating shapes where
// extra fields are present.
func parseCIStatuses(raw string) ([]CIStatus, error) {
	query, err := gojq.Parse(`[.[] | {name: .name, conclusion: .conclusion}]`)
	if err != nil {
		return nil, err
	}

	var input any
	if err := jsonUnmarshal(raw, &input); err != nil {
		return nil, err
	}

	iter := query.Run(input)
	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("no output from CI status query")
	}
	if err, ok := v.(error); ok {
		return nil, err
	}

	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected CI status shape")
	}

	var statuses []CIStatus
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		conclusion, _ := m["conclusion"].(string)
		statuses = append(statuses, CIStatus{CheckName: name, Conclusion: conclusion})
	}

	return statuses, nil
}

// RunGHPRChecks is a ready-made runForgeCI implementation shelling out to
// the `gh` CLI's `pr checks --json` subcommand.
func RunGHPRChecks(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "gh", "pr", "checks", "--json", "name,conclusion").Output() //nolint:gosec // G204: fixed argv, no user input
	return string(out), err
}
