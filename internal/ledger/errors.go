package ledger

import "errors"

var (
	// ErrTaskNotFound means the task ID does not exist in the ledger.
	// Not retried: no amount of waiting makes an unknown ID appear.
	ErrTaskNotFound = errors.New("ledger: task not found")

	// ErrStatusConflict means a transition was rejected because the stored
	// status no longer matches what the caller observed.
	ErrStatusConflict = errors.New("ledger: status conflict")

	// ErrDependencyCycle means inserting the task would close a dependency
	// cycle within its project. Detected at insert time so a cyclic task set
	// fails fast instead of silently never becoming runnable.
	ErrDependencyCycle = errors.New("ledger: dependency cycle")
)
