package db

import (
	"time"
)

// System log event types
const (
	LogScrapeSummary      = "scrape_summary"
	LogSourceFailed       = "source_failed"
	LogMatchSummary       = "match_summary"
	LogSendSummary        = "send_summary"
	LogSweepSummary       = "sweep_summary"
	LogNotificationSent   = "notification_sent"
	LogApplicationSent    = "application_sent"
	LogApplicationFailed  = "application_failed"
	LogApplicationBounced = "bounce"
	LogActivity           = "activity"
	LogError              = "error"
)

// SystemLog is an append-only operational event.
type SystemLog struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// LockSendApplications serializes send batches across instances.
const LockSendApplications = "send-applications"

// SystemLock is a row in the durable named-lock table. The row outlives
// each run; release only flips IsRunning and stamps CompletedAt.
type SystemLock struct {
	Name        string     `json:"name"`
	Holder      string     `json:"holder"`
	IsRunning   bool       `json:"is_running"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
