// Package sending moves job applications through their lifecycle and
// delivers approved ones in locked, paced batches.
package sending

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
)

// transitions is the complete set of allowed status changes.
var transitions = map[db.ApplicationStatus][]db.ApplicationStatus{
	db.StatusDraft:   {db.StatusReady, db.StatusCancelled},
	db.StatusReady:   {db.StatusSending, db.StatusCancelled},
	db.StatusSending: {db.StatusSent, db.StatusFailed},
	db.StatusSent:    {db.StatusBounced},
	db.StatusFailed:  {db.StatusReady},
}

// CanTransition reports whether an application may move from one status to
// another.
func CanTransition(from, to db.ApplicationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sourcesOf returns every status that may move to `to`, for conditional
// updates.
func sourcesOf(to db.ApplicationStatus) []db.ApplicationStatus {
	var out []db.ApplicationStatus
	for _, from := range []db.ApplicationStatus{
		db.StatusDraft, db.StatusReady, db.StatusSending, db.StatusSent,
		db.StatusFailed, db.StatusBounced, db.StatusCancelled,
	} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// ErrInvalidTransition is returned when an action does not apply to the
// application's current status.
type ErrInvalidTransition struct {
	ID   uuid.UUID
	From db.ApplicationStatus
	To   db.ApplicationStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("application %s cannot move from %s to %s", e.ID, e.From, e.To)
}

// ErrRetryLimit is returned when a failed application was already retried
// the maximum number of times.
type ErrRetryLimit struct {
	ID  uuid.UUID
	Max int
}

func (e *ErrRetryLimit) Error() string {
	return fmt.Sprintf("application %s reached the retry limit of %d", e.ID, e.Max)
}

// ErrMissingRecipient is returned when approving an application with no
// recipient address.
type ErrMissingRecipient struct {
	ID uuid.UUID
}

func (e *ErrMissingRecipient) Error() string {
	return fmt.Sprintf("application %s has no recipient address", e.ID)
}
