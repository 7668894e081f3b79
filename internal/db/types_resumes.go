package db

import (
	"time"

	"github.com/google/uuid"
)

// Resume is one of a user's uploaded résumés, with extracted text and skills.
type Resume struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	Language   string     `json:"language"`
	Categories []string   `json:"categories"`
	Skills     []string   `json:"skills"`
	Content    string     `json:"-"`
	IsDefault  bool       `json:"is_default"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ResumeInput holds the fields for CreateResume.
type ResumeInput struct {
	UserID     uuid.UUID
	Name       string
	Language   string
	Categories []string
	Skills     []string
	Content    string
	IsDefault  bool
}
