package db

import (
	"time"

	"github.com/google/uuid"
)

// User is a person using the service, including their matching preferences
// and automation settings.
type User struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Name   string    `json:"full_name"`
	Status string    `json:"status"`

	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`

	Keywords            []string `json:"keywords"`
	PreferredCategories []string `json:"preferred_categories"`
	PreferredPlatforms  []string `json:"preferred_platforms"`
	JobTypes            []string `json:"job_types"`
	WorkType            string   `json:"work_type"`
	ExperienceLevel     string   `json:"experience_level,omitempty"`
	SalaryMin           *int     `json:"salary_min,omitempty"`
	SalaryMax           *int     `json:"salary_max,omitempty"`

	AutomationMode    string `json:"automation_mode"`
	AutoApplyEnabled  bool   `json:"auto_apply_enabled"`
	MinAutoApplyScore int    `json:"min_auto_apply_score"`
	SenderEmail       string `json:"sender_email,omitempty"`
	SenderVerified    bool   `json:"sender_verified"`

	NotificationsEnabled  bool   `json:"notifications_enabled"`
	NotificationFrequency string `json:"notification_frequency"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AcceptsRemote reports whether the user's work-type preference allows remote roles.
func (u *User) AcceptsRemote() bool {
	return u.WorkType == "" || u.WorkType == WorkTypeAny || u.WorkType == WorkTypeRemote || u.WorkType == WorkTypeHybrid
}

// UserInput holds the writable profile fields for CreateUser.
type UserInput struct {
	Email               string
	Name                string
	City                string
	Country             string
	Keywords            []string
	PreferredCategories []string
	PreferredPlatforms  []string
	JobTypes            []string
	WorkType            string
	ExperienceLevel     string
	SalaryMin           *int
	SalaryMax           *int
	AutomationMode      string
	AutoApplyEnabled    bool
	MinAutoApplyScore   int
	SenderEmail         string
	SenderVerified      bool
	NotificationFreq    string
}

// UserKeywords is the projection the keyword aggregator reads.
type UserKeywords struct {
	UserID   uuid.UUID
	Keywords []string
	City     string
	Country  string
}
