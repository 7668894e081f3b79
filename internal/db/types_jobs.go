package db

import (
	"time"

	"github.com/google/uuid"
)

// GlobalJob is a posting shared across all users, unique per (source, source_id).
type GlobalJob struct {
	ID              uuid.UUID  `json:"id"`
	Source          string     `json:"source"`
	SourceID        string     `json:"source_id"`
	Title           string     `json:"title"`
	Company         string     `json:"company"`
	CompanyEmail    string     `json:"company_email,omitempty"`
	Location        string     `json:"location"`
	IsRemote        bool       `json:"is_remote"`
	Description     string     `json:"description"`
	SourceURL       string     `json:"source_url"`
	ApplyURL        string     `json:"apply_url,omitempty"`
	CompanyURL      string     `json:"company_url,omitempty"`
	SalaryText      string     `json:"salary_text,omitempty"`
	SalaryMin       *int       `json:"salary_min,omitempty"`
	SalaryMax       *int       `json:"salary_max,omitempty"`
	SalaryCurrency  string     `json:"salary_currency,omitempty"`
	JobType         string     `json:"job_type,omitempty"`
	ExperienceLevel string     `json:"experience_level,omitempty"`
	Skills          []string   `json:"skills"`
	Category        string     `json:"category"`
	PostedAt        *time.Time `json:"posted_at,omitempty"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
	IsActive        bool       `json:"is_active"`
	IsFresh         bool       `json:"is_fresh"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Link returns where a candidate should go to apply.
func (j *GlobalJob) Link() string {
	if j.ApplyURL != "" {
		return j.ApplyURL
	}
	return j.SourceURL
}

// UserJob links a user to a GlobalJob with a match score and pipeline stage.
// Score is nil until the link has been scored.
type UserJob struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	GlobalJobID    uuid.UUID  `json:"global_job_id"`
	Score          *int       `json:"score"`
	Reasons        []string   `json:"reasons"`
	Stage          string     `json:"stage"`
	Dismissed      bool       `json:"dismissed"`
	FollowUpCount  int        `json:"follow_up_count"`
	LastFollowUpAt *time.Time `json:"last_follow_up_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ScoreOr returns the score, or fallback when the link is unscored.
func (uj *UserJob) ScoreOr(fallback int) int {
	if uj.Score == nil {
		return fallback
	}
	return *uj.Score
}

// UserJobWithJob is a UserJob joined with its GlobalJob, used for listings.
type UserJobWithJob struct {
	UserJob
	Job GlobalJob `json:"job"`
}
