package git

import (
	"fmt"
	"strings"
)

// PushFailureKind classifies a failed `git push` by its stderr, per §4.4's
// GitMonitor contract: "push output parsing distinguishes {rejected,
// permission, network, unknown} failure modes."
type PushFailureKind string

const (
	PushFailureRejected   PushFailureKind = "rejected"
	PushFailurePermission PushFailureKind = "permission"
	PushFailureNetwork    PushFailureKind = "network"
	PushFailureUnknown    PushFailureKind = "unknown"
)

// ErrProtectedBranch is an InvariantViolation (§7): push to a protected
// branch is refused before a subprocess is ever spawned.
var ErrProtectedBranch = fmt.Errorf("refusing to push to a protected branch")

func isProtectedBranch(branch string) bool {
	return branch == "main" || branch == "master"
}

// ClassifyPushFailure maps git push's stderr to a PushFailureKind.
func ClassifyPushFailure(stderr string) PushFailureKind {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "rejected") || strings.Contains(lower, "non-fast-forward") || strings.Contains(lower, "fetch first"):
		return PushFailureRejected
	case strings.Contains(lower, "permission denied") || strings.Contains(lower, "403") || strings.Contains(lower, "authentication failed") ||
		(strings.Contains(lower, "permission to") && strings.Contains(lower, "denied")):
		return PushFailurePermission
	case strings.Contains(lower, "could not resolve host") || strings.Contains(lower, "connection timed out") || strings.Contains(lower, "network"):
		return PushFailureNetwork
	default:
		return PushFailureUnknown
	}
}

// StashPush stashes the working tree, including untracked files.
func (e *RealExecutor) StashPush(message string) error {
	return e.runGit("stash", "push", "-u", "-m", message)
}

// StashPop restores the most recent stash entry.
func (e *RealExecutor) StashPop() error {
	return e.runGit("stash", "pop")
}

// Checkout switches to an existing branch with a plain `git checkout`; it
// does not create the branch.
func (e *RealExecutor) Checkout(branch string) error {
	return e.runGit("checkout", branch)
}

// Fetch fetches the given remote (origin by default).
func (e *RealExecutor) Fetch(remote string) error {
	if remote == "" {
		remote = "origin"
	}
	return e.runGit("fetch", remote)
}

// Pull pulls the current branch from its upstream.
func (e *RealExecutor) Pull() error {
	return e.runGit("pull")
}

// Push pushes branch to remote. Refuses protected branches without ever
// invoking git, per §4.6.2 and §7's InvariantViolation class.
func (e *RealExecutor) Push(remote, branch string) error {
	if isProtectedBranch(branch) {
		return ErrProtectedBranch
	}
	if remote == "" {
		remote = "origin"
	}
	return e.runGit("push", remote, branch)
}

// CommitFromFile commits staged changes with a message read from
// messageFile, never inlining user-controlled text into the shell command
// (§4.6.2, §9).
func (e *RealExecutor) CommitFromFile(messageFile string) error {
	return e.runGit("commit", "-F", messageFile)
}
