package ledger

import (
	"encoding/json"
	"time"
)

// Kind classifies a task by the handler that executes it.
type Kind string

const (
	KindAnalysis   Kind = "analysis"
	KindSchema     Kind = "schema"
	KindGeneration Kind = "generation"
	KindConfig     Kind = "config"
)

// Status is the lifecycle state of a task. Tasks are never deleted; stale
// tasks are marked expired.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Task is a unit of work in the ledger.
//
// Dependencies reference task IDs within the same project. A task is runnable
// iff every dependency is completed; see Store.ListRunnable for how same-batch
// dependency chains are resolved.
type Task struct {
	ID           string
	ProjectID    string
	Kind         Kind
	Priority     int // lower runs first
	Dependencies []string
	Payload      json.RawMessage
	Status       Status
	Result       json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
