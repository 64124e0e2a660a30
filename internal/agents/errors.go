package agents

import "errors"

// ErrUnknownAgent is returned when an operation references an agent name
// that was never registered.
var ErrUnknownAgent = errors.New("agents: unknown agent")

// ErrPermanentFailure marks a PR task executor error as non-retryable.
var ErrPermanentFailure = errors.New("agents: permanent failure")
