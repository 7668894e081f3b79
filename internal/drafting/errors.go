package drafting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
)

// ErrNoResume means the user has no live résumé to apply with.
type ErrNoResume struct {
	UserID uuid.UUID
}

func (e *ErrNoResume) Error() string {
	return fmt.Sprintf("no resume on file for user %s", e.UserID)
}

// ErrNoRecipient means the posting has no contact address to send to.
type ErrNoRecipient struct {
	JobID uuid.UUID
}

func (e *ErrNoRecipient) Error() string {
	return fmt.Sprintf("job %s has no contact email", e.JobID)
}

// ErrNotDraft means the link's application has already left DRAFT and its
// content can no longer be regenerated.
type ErrNotDraft struct {
	ApplicationID uuid.UUID
	Status        db.ApplicationStatus
}

func (e *ErrNotDraft) Error() string {
	return fmt.Sprintf("application %s is %s and can no longer be redrafted", e.ApplicationID, e.Status)
}

// ErrDraftTimeout means the drafter did not answer in time.
type ErrDraftTimeout struct {
	After time.Duration
}

func (e *ErrDraftTimeout) Error() string {
	return fmt.Sprintf("drafting timed out after %s", e.After)
}

// APICallError wraps a failed model call.
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API call failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("API call failed: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// MalformedDraftError means the model's reply stayed unusable after a retry.
type MalformedDraftError struct {
	Problem string
}

func (e *MalformedDraftError) Error() string {
	return fmt.Sprintf("drafted email is malformed: %s", e.Problem)
}
