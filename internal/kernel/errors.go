package kernel

import "errors"

// Error taxonomy shared by the kernel and the IPC manager. All of these are
// recoverable at the call site; callers retry only on ErrTimeout.
var (
	// ErrOutOfMemory means the memory pool could not satisfy a reservation.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrNotFound means an unknown process id or entity name.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a duplicate named entity creation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized means the caller lacks an access grant.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTimeout means a bounded wait expired.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidState means the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")
)
