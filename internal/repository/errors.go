package repository

import "errors"

// Common repository errors
var (
	// ErrTaskNotFound is returned when a task does not exist or is not
	// owned by the requesting user. Callers cannot tell the two apart.
	ErrTaskNotFound = errors.New("task not found")
)
