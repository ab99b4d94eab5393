package events

import "time"

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask    = "task"
	TopicSession = "session"
)

// Event type constants
const (
	EventTypeTaskClaimed       = "task.claimed"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskFailed        = "task.failed"
	EventTypeSessionRound      = "session.round"
	EventTypeArtifactValidated = "session.artifact_validated"
)

// TaskClaimedEvent is published when a worker wins the claim on a task.
type TaskClaimedEvent struct {
	ID        string
	Kind      string
	ProjectID string
	Timestamp time.Time
}

func (e TaskClaimedEvent) EventType() string { return EventTypeTaskClaimed }
func (e TaskClaimedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task handler finishes successfully.
type TaskCompletedEvent struct {
	ID        string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task handler fails.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// SessionRoundEvent is published after each convergence round.
type SessionRoundEvent struct {
	ID           string // owning task ID
	Round        int
	MissingRoles []string
	Timestamp    time.Time
}

func (e SessionRoundEvent) EventType() string { return EventTypeSessionRound }
func (e SessionRoundEvent) TaskID() string    { return e.ID }

// ArtifactValidatedEvent is published when a written artifact passes or fails
// on-disk validation.
type ArtifactValidatedEvent struct {
	ID        string // owning task ID
	Role      string
	Path      string
	Valid     bool
	Timestamp time.Time
}

func (e ArtifactValidatedEvent) EventType() string { return EventTypeArtifactValidated }
func (e ArtifactValidatedEvent) TaskID() string    { return e.ID }
