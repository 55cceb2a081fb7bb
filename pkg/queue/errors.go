package queue

import "errors"

// Error taxonomy surfaced by the Queue Manager (spec §7). The Store's
// storage.ErrNotFound is translated into ErrNotFound at the policy layer
// so callers never need to know about the Store; the other errors come
// from the Manager's own checks.
var (
	// ErrInvalidArgument covers empty id/command and other malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyExists covers enqueue of a duplicate id.
	ErrAlreadyExists = errors.New("job already exists")
	// ErrNotFound covers lookups/operations on an unknown id.
	ErrNotFound = errors.New("job not found")
	// ErrNotDead covers a DLQ retry attempted on a job that isn't dead.
	ErrNotDead = errors.New("job is not in the dead letter queue")
)
