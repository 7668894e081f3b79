package db

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the lifecycle state of a JobApplication.
type ApplicationStatus string

// Application lifecycle states
const (
	StatusDraft     ApplicationStatus = "DRAFT"
	StatusReady     ApplicationStatus = "READY"
	StatusSending   ApplicationStatus = "SENDING"
	StatusSent      ApplicationStatus = "SENT"
	StatusFailed    ApplicationStatus = "FAILED"
	StatusBounced   ApplicationStatus = "BOUNCED"
	StatusCancelled ApplicationStatus = "CANCELLED"
)

// JobApplication is a drafted (and possibly sent) email application, one per UserJob.
type JobApplication struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	UserJobID       uuid.UUID         `json:"user_job_id"`
	ResumeID        *uuid.UUID        `json:"resume_id,omitempty"`
	RecipientEmail  string            `json:"recipient_email"`
	SenderEmail     string            `json:"sender_email"`
	Subject         string            `json:"subject"`
	Body            string            `json:"body"`
	CoverLetter     string            `json:"cover_letter,omitempty"`
	Status          ApplicationStatus `json:"status"`
	RetryCount      int               `json:"retry_count"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	MessageID       string            `json:"message_id,omitempty"`
	ScheduledSendAt *time.Time        `json:"scheduled_send_at,omitempty"`
	SentAt          *time.Time        `json:"sent_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// DraftInput holds the generated content for UpsertDraft.
type DraftInput struct {
	UserID         uuid.UUID
	UserJobID      uuid.UUID
	ResumeID       *uuid.UUID
	RecipientEmail string
	SenderEmail    string
	Subject        string
	Body           string
	CoverLetter    string
}

// TransitionUpdate carries the optional column changes applied with a status transition.
type TransitionUpdate struct {
	ErrorMessage    *string
	MessageID       *string
	ScheduledSendAt *time.Time
	SentAt          *time.Time
	ResetRetries    bool
	IncrementRetry  bool
}
