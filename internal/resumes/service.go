package resumes

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/skills"
)

// Store is the persistence the upload service needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	CreateResume(ctx context.Context, in db.ResumeInput) (*db.Resume, error)
	CountResumesByUser(ctx context.Context, userID uuid.UUID) (int, error)
	SoftDeleteResume(ctx context.Context, userID, id uuid.UUID) (bool, error)
}

// Upload is one résumé file sent by a user.
type Upload struct {
	UserID      uuid.UUID
	Name        string
	Filename    string
	ContentType string
	Data        []byte
	Language    string
	Categories  []string
	IsDefault   bool
}

// Service stores uploaded résumés with their extracted text and skills.
type Service struct {
	store Store
}

// NewService creates an upload service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Upload extracts text and skills synchronously and stores the résumé. A
// user's first résumé becomes the default.
func (s *Service) Upload(ctx context.Context, up Upload) (*db.Resume, error) {
	user, err := s.store.GetUser(ctx, up.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &db.ErrUserNotFound{UserID: up.UserID}
	}

	text, err := ExtractText(up.Filename, up.ContentType, up.Data)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountResumesByUser(ctx, up.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count resumes: %w", err)
	}

	name := strings.TrimSpace(up.Name)
	if name == "" {
		name = strings.TrimSpace(up.Filename)
	}
	lang := strings.ToLower(strings.TrimSpace(up.Language))
	if lang == "" {
		lang = "en"
	}

	categories := make([]string, 0, len(up.Categories))
	for _, c := range up.Categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			categories = append(categories, c)
		}
	}

	r, err := s.store.CreateResume(ctx, db.ResumeInput{
		UserID:     up.UserID,
		Name:       name,
		Language:   lang,
		Categories: categories,
		Skills:     skills.Extract(text),
		Content:    text,
		IsDefault:  up.IsDefault || count == 0,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[resumes] user %s uploaded %q (%d skills)", up.UserID, r.Name, len(r.Skills))
	return r, nil
}

// Delete hides a résumé from matching.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.store.SoftDeleteResume(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return &db.ErrNotFound{Entity: "resume", ID: id}
	}
	return nil
}
