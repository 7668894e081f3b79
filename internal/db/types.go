package db

import (
	"github.com/google/uuid"
)

// UserStatus values
const (
	UserStatusActive    = "active"
	UserStatusPaused    = "paused"
	UserStatusSuspended = "suspended"
)

// Work type preferences
const (
	WorkTypeAny    = "any"
	WorkTypeRemote = "remote"
	WorkTypeHybrid = "hybrid"
	WorkTypeOnsite = "onsite"
)

// Automation modes
const (
	ModeManual   = "manual"
	ModeSemiAuto = "semi_auto"
	ModeFullAuto = "full_auto"
)

// Notification frequencies
const (
	NotifyInstant = "instant"
	NotifyDaily   = "daily"
	NotifyOff     = "off"
)

// UserJob pipeline stages
const (
	StageSaved     = "SAVED"
	StageApplied   = "APPLIED"
	StageInterview = "INTERVIEW"
	StageOffer     = "OFFER"
	StageRejected  = "REJECTED"
	StageGhosted   = "GHOSTED"
)

// Category values assigned to GlobalJobs at ingestion.
const CategoryOther = "other"

// UpsertResult tells the caller whether an upsert created or refreshed a row.
type UpsertResult struct {
	ID       uuid.UUID
	Inserted bool
}

// Counts groups per-status or per-type counters for reports.
type Counts map[string]int
