package queue

import "errors"

// ErrTerminalTask is an InvariantViolation (§7): any update to a task whose
// status is already completed or failed is rejected outright.
var ErrTerminalTask = errors.New("queue: task is terminal, update rejected")

// ErrTaskNotFound is returned when update/moveToFailed target an unknown id.
var ErrTaskNotFound = errors.New("queue: task not found")
