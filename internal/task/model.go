package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("task is not in a valid state for this operation")
	ErrForbidden         = errors.New("not allowed to modify this task")
	ErrFeatureDisabled   = errors.New("task assignment is disabled")
	ErrTitleRequired     = errors.New("task title is required")
	ErrInvalidStatus     = errors.New("unknown task status")
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPendingAcceptance Status = "PENDING_ACCEPTANCE"
	StatusOpen              Status = "OPEN"
	StatusInProgress        Status = "IN_PROGRESS"
	StatusCompleted         Status = "COMPLETED"
	StatusClosed            Status = "CLOSED"
)

// transitions is the full lifecycle graph. CLOSED is terminal. Accept also
// moves PENDING_ACCEPTANCE to OPEN but goes through its own operation because
// it stamps the acceptance time.
var transitions = map[Status][]Status{
	StatusPendingAcceptance: {StatusOpen, StatusClosed},
	StatusOpen:              {StatusInProgress, StatusClosed},
	StatusInProgress:        {StatusCompleted, StatusOpen, StatusClosed},
	StatusCompleted:         {StatusClosed},
	StatusClosed:            {},
}

// IsValidStatus reports whether s names a known lifecycle state
func IsValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a direct move from one status to another is
// allowed
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	GroupID     uuid.UUID  `json:"group_id"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
