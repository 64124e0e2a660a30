package git

// GitExecutor defines the interface for the git operations the supervisor's
// PR task executor and monitors need: inspecting the working tree and
// driving the commit/push lifecycle of an automated fix. This abstraction
// allows for easy testing with mock implementations.
type GitExecutor interface {
	GetCurrentBranch() (string, error)
	HasUncommittedChanges() (bool, error)

	// StashPush stashes the working tree, including untracked files.
	StashPush(message string) error
	// StashPop restores the most recent stash entry.
	StashPop() error
	// Checkout switches to branch.
	Checkout(branch string) error
	// Fetch fetches the given remote (origin if empty).
	Fetch(remote string) error
	// Pull pulls the current branch from its upstream.
	Pull() error
	// Push pushes branch to remote, refusing protected branches.
	Push(remote, branch string) error
	// CommitFromFile commits staged changes with a message read from a file.
	CommitFromFile(messageFile string) error
}
