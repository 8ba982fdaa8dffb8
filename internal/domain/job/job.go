package job

import (
	"time"

	"github.com/google/uuid"
)

// Status values for the processing lifecycle. `completed`, `failed` and
// `terminated` are terminal and sticky: a later status sync never moves a
// job out of them.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTerminated Status = "terminated"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTerminated
}

// Job tracks one processing run submitted to the external execution engine.
type Job struct {
	ID      uuid.UUID
	VideoID uuid.UUID
	OwnerID uuid.UUID

	// OwnerName is denormalized at creation for display.
	OwnerName string

	Status Status

	// RunID is the engine's identifier. Nil until submission succeeds, set
	// at most once.
	RunID *string

	// Parameters are passed through to the engine untouched.
	Parameters string
	Notes      string
	ResultPath string

	IsPublic  bool
	VisibleTo []uuid.UUID
	CreatedAt time.Time
}

type CreateJobInput struct {
	VideoID    uuid.UUID
	OwnerID    uuid.UUID
	OwnerName  string
	Parameters string
	Notes      string
}

type UpdateVisibilityInput struct {
	IsPublic  *bool
	VisibleTo *[]uuid.UUID
}
