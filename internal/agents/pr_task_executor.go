package agents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/oss-dev/supervisor/internal/git"
	"github.com/oss-dev/supervisor/internal/log"
	"github.com/oss-dev/supervisor/internal/queue"
)

// QualityGate runs one quality check (tests, type check, lint) against the
// checked-out working tree and reports whether it passed.
type QualityGate struct {
	Name string
	Run  func(ctx context.Context) error
}

// Fixer performs the actual code change for a PR-remediation task, e.g. by
// driving the AI session. Abstracted so the executor can be tested without
// a live session.
type Fixer func(ctx context.Context, task queue.Task) (commitMessage string, err error)

// PRTaskExecutor consumes queued PR-remediation tasks, preserves and
// restores git context around the fix, runs quality gates in parallel, and
// pushes the result (§4.6.2).
type PRTaskExecutor struct {
	executor   git.GitExecutor
	fix        Fixer
	gates      []QualityGate
	maxRetries int
	breaker    *gobreaker.CircuitBreaker
}

// NewPRTaskExecutor builds a PRTaskExecutor.
func NewPRTaskExecutor(executor git.GitExecutor, fix Fixer, gates []QualityGate, maxRetries int) *PRTaskExecutor {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pr-task-executor-push",
		MaxRequests: 1,
	})
	return &PRTaskExecutor{executor: executor, fix: fix, gates: gates, maxRetries: maxRetries, breaker: cb}
}

// Result is the outcome of executing one PR task.
type Result struct {
	Success         bool
	NeedsEscalation bool
	GateFailures    []string
	Err             error
}

// Execute runs the fix/verify/push cycle for task, preserving and restoring
// the caller's git context, retrying the outer operation up to maxRetries
// unless a step reports a permanent failure.
func (e *PRTaskExecutor) Execute(ctx context.Context, task queue.Task) Result {
	branch, ok := task.Context["branch"].(string)
	if !ok {
		return Result{Err: fmt.Errorf("task %s: missing branch in context", task.ID)}
	}
	if err := ValidateBranchName(branch); err != nil {
		return Result{Err: err}
	}

	originalBranch, err := e.executor.GetCurrentBranch()
	if err != nil {
		return Result{Err: fmt.Errorf("preserve context: %w", err)}
	}

	dirty, err := e.executor.HasUncommittedChanges()
	if err != nil {
		return Result{Err: fmt.Errorf("preserve context: %w", err)}
	}
	stashed := false
	if dirty {
		if err := e.executor.StashPush("pr-task-executor: preserving context"); err != nil {
			return Result{Err: fmt.Errorf("preserve context: %w", err)}
		}
		stashed = true
	}

	defer e.restoreContext(originalBranch, stashed)

	var last Result
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		last = e.attempt(ctx, task, branch)
		if last.Success || errPermanent(last.Err) {
			break
		}
	}
	if !last.Success && !errPermanent(last.Err) && last.Err != nil {
		last.NeedsEscalation = true
	}
	return last
}

func (e *PRTaskExecutor) attempt(ctx context.Context, task queue.Task, branch string) Result {
	if err := e.executor.Fetch(""); err != nil {
		return Result{Err: fmt.Errorf("fetch: %w", err)}
	}
	if err := e.executor.Checkout(branch); err != nil {
		return Result{Err: fmt.Errorf("checkout: %w", err)}
	}
	if err := e.executor.Pull(); err != nil {
		return Result{Err: fmt.Errorf("pull: %w", err)}
	}

	commitMessage, err := e.fix(ctx, task)
	if err != nil {
		return Result{Err: fmt.Errorf("fix: %w", err)}
	}

	if failures := e.runGatesParallel(ctx); len(failures) > 0 {
		return Result{GateFailures: failures, Err: fmt.Errorf("quality gates failed: %v", failures)}
	}

	msgFile, err := writeCommitMessageFile(commitMessage)
	if err != nil {
		return Result{Err: fmt.Errorf("write commit message: %w", err)}
	}
	defer os.Remove(msgFile)

	if err := e.executor.CommitFromFile(msgFile); err != nil {
		return Result{Err: fmt.Errorf("commit: %w", err)}
	}

	_, err = e.breaker.Execute(func() (any, error) {
		return nil, e.executor.Push("", branch)
	})
	if err != nil {
		if errors.Is(err, git.ErrProtectedBranch) {
			return Result{Err: fmt.Errorf("%w: %v", ErrPermanentFailure, err)}
		}
		return Result{Err: fmt.Errorf("push: %w", err)}
	}

	return Result{Success: true}
}

func (e *PRTaskExecutor) runGatesParallel(ctx context.Context) []string {
	var mu sync.Mutex
	var failures []string
	var wg sync.WaitGroup

	for _, g := range e.gates {
		wg.Add(1)
		go func(gate QualityGate) {
			defer wg.Done()
			if err := gate.Run(ctx); err != nil {
				mu.Lock()
				failures = append(failures, gate.Name)
				mu.Unlock()
				log.Warn(log.CatAgent, "quality gate failed", "gate", gate.Name, "error", err.Error())
			}
		}(g)
	}
	wg.Wait()
	return failures
}

func (e *PRTaskExecutor) restoreContext(originalBranch string, stashed bool) {
	if err := e.executor.Checkout(originalBranch); err != nil {
		log.Error(log.CatAgent, "failed to restore original branch", "branch", originalBranch, "error", err.Error())
		return
	}
	if stashed {
		if err := e.executor.StashPop(); err != nil {
			log.Error(log.CatAgent, "failed to restore stashed changes", "error", err.Error())
		}
	}
}

func writeCommitMessageFile(message string) (string, error) {
	f, err := os.CreateTemp("", "pr-task-commit-msg-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(message); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func errPermanent(err error) bool {
	return err != nil && errors.Is(err, ErrPermanentFailure)
}
