package drafting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/matching"
	"github.com/jonathan/job-autopilot/internal/readiness"
	"github.com/jonathan/job-autopilot/internal/resumes"
	"github.com/jonathan/job-autopilot/internal/types"
)

// Store is the persistence drafting needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserJob(ctx context.Context, id uuid.UUID) (*db.UserJob, error)
	GetGlobalJob(ctx context.Context, id uuid.UUID) (*db.GlobalJob, error)
	ListResumesByUser(ctx context.Context, userID uuid.UUID) ([]db.Resume, error)
	GetApplicationByUserJob(ctx context.Context, userJobID uuid.UUID) (*db.JobApplication, error)
	UpsertDraft(ctx context.Context, in db.DraftInput) (*db.JobApplication, error)
	ListActiveUsersByMode(ctx context.Context, mode string) ([]db.User, error)
	ListDraftCandidates(ctx context.Context, userID uuid.UUID, minScore, limit int) ([]db.UserJob, error)
	TransitionApplication(ctx context.Context, id uuid.UUID, from []db.ApplicationStatus, to db.ApplicationStatus, upd db.TransitionUpdate) (*db.JobApplication, error)
	InsertSystemLog(ctx context.Context, entry db.SystemLog) error
}

// ReadinessChecker evaluates a user's settings right before automated work.
type ReadinessChecker interface {
	Check(ctx context.Context, userID uuid.UUID) (*readiness.Report, error)
}

// Options tunes the drafting service.
type Options struct {
	Timeout        time.Duration
	UndoWindow     time.Duration
	AutoDraftLimit int
	Thresholds     matching.Thresholds
	Style          Style
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:        45 * time.Second,
		UndoWindow:     10 * time.Minute,
		AutoDraftLimit: 3,
		Thresholds:     matching.DefaultThresholds(),
		Style:          DefaultStyle,
	}
}

// Result is a stored draft and the résumé chosen for it.
type Result struct {
	Application *db.JobApplication `json:"application"`
	Selection   *resumes.Selection `json:"resume_selection"`
}

// Service drafts applications for user-job links.
type Service struct {
	store     Store
	drafter   Drafter
	selector  *resumes.Selector
	readiness ReadinessChecker
	opts      Options
	now       func() time.Time
}

// NewService creates a drafting service.
func NewService(store Store, drafter Drafter, selector *resumes.Selector, checker ReadinessChecker, opts Options) *Service {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = def.UndoWindow
	}
	if opts.AutoDraftLimit <= 0 {
		opts.AutoDraftLimit = def.AutoDraftLimit
	}
	if opts.Thresholds == (matching.Thresholds{}) {
		opts.Thresholds = def.Thresholds
	}
	return &Service{store: store, drafter: drafter, selector: selector, readiness: checker, opts: opts, now: time.Now}
}

// DraftApplication generates the email for one of the user's links and stores
// it as the link's DRAFT application. Redrafting replaces an existing DRAFT.
func (s *Service) DraftApplication(ctx context.Context, userID, userJobID uuid.UUID, templateHint string) (*Result, error) {
	uj, err := s.store.GetUserJob(ctx, userJobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user job: %w", err)
	}
	if uj == nil || uj.UserID != userID {
		return nil, &db.ErrNotFound{Entity: "user job", ID: userJobID}
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &db.ErrUserNotFound{UserID: userID}
	}

	existing, err := s.store.GetApplicationByUserJob(ctx, userJobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if existing != nil && existing.Status != db.StatusDraft {
		return nil, &ErrNotDraft{ApplicationID: existing.ID, Status: existing.Status}
	}

	job, err := s.store.GetGlobalJob(ctx, uj.GlobalJobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, &db.ErrNotFound{Entity: "job", ID: uj.GlobalJobID}
	}

	all, err := s.store.ListResumesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	selection := s.selector.Select(ctx, job, all)
	if selection == nil {
		return nil, &ErrNoResume{UserID: userID}
	}
	if job.CompanyEmail == "" {
		return nil, &ErrNoRecipient{JobID: job.ID}
	}

	draftCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	draft, err := s.drafter.GenerateEmail(draftCtx, Input{
		User:         user,
		Job:          job,
		Resume:       selection.Resume,
		Style:        s.opts.Style,
		TemplateHint: templateHint,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(draftCtx.Err(), context.DeadlineExceeded) {
			return nil, &ErrDraftTimeout{After: s.opts.Timeout}
		}
		return nil, err
	}

	resumeID := selection.Resume.ID
	app, err := s.store.UpsertDraft(ctx, db.DraftInput{
		UserID:         userID,
		UserJobID:      userJobID,
		ResumeID:       &resumeID,
		RecipientEmail: job.CompanyEmail,
		SenderEmail:    user.SenderEmail,
		Subject:        draft.Subject,
		Body:           draft.Body,
		CoverLetter:    draft.CoverLetter,
	})
	if err != nil {
		return nil, err
	}
	if app == nil {
		// Approved or cancelled while the model was writing.
		current, err := s.store.GetApplicationByUserJob(ctx, userJobID)
		if err != nil || current == nil {
			return nil, fmt.Errorf("failed to store draft for user job %s", userJobID)
		}
		return nil, &ErrNotDraft{ApplicationID: current.ID, Status: current.Status}
	}

	s.logActivity(ctx, userID, fmt.Sprintf("drafted application for %s at %s", job.Title, job.Company), map[string]any{
		"application_id": app.ID.String(),
		"resume_id":      resumeID.String(),
		"resume_tier":    string(selection.Tier),
	})
	log.Printf("[drafting] drafted application %s for user %s (resume tier %s)", app.ID, userID, selection.Tier)
	return &Result{Application: app, Selection: selection}, nil
}

// AutoDraft drafts applications for full-auto users who pass readiness and
// promotes them to READY, scheduled after the undo window.
func (s *Service) AutoDraft(ctx context.Context) *types.BatchResult {
	res := types.NewBatchResult("auto-draft")

	users, err := s.store.ListActiveUsersByMode(ctx, db.ModeFullAuto)
	if err != nil {
		res.Status = types.BatchFailed
		res.Fail(fmt.Errorf("failed to list users: %w", err))
		return res.Finish()
	}

	for i := range users {
		if ctx.Err() != nil {
			res.Fail(ctx.Err())
			break
		}
		s.autoDraftUser(ctx, &users[i], res)
	}

	log.Printf("[drafting] auto-draft: %d users, %d drafted, %d promoted, %d errors",
		len(users), res.Counts["drafted"], res.Counts["promoted"], len(res.Errors))
	return res.Finish()
}

func (s *Service) autoDraftUser(ctx context.Context, user *db.User, res *types.BatchResult) {
	res.Add("users", 1)
	report, err := s.readiness.Check(ctx, user.ID)
	if err != nil {
		res.Fail(fmt.Errorf("user %s: %w", user.ID, err))
		return
	}
	if !report.Ready {
		res.Add("not_ready", 1)
		return
	}

	candidates, err := s.store.ListDraftCandidates(ctx, user.ID, s.opts.Thresholds.AutoApplyMin(user), s.opts.AutoDraftLimit)
	if err != nil {
		res.Fail(fmt.Errorf("user %s: %w", user.ID, err))
		return
	}

	for _, uj := range candidates {
		result, err := s.DraftApplication(ctx, user.ID, uj.ID, "")
		if err != nil {
			log.Printf("[drafting] auto-draft skipped user job %s: %v", uj.ID, err)
			res.Fail(fmt.Errorf("user job %s: %w", uj.ID, err))
			continue
		}
		res.Add("drafted", 1)

		at := s.now().Add(s.opts.UndoWindow)
		app, err := s.store.TransitionApplication(ctx, result.Application.ID,
			[]db.ApplicationStatus{db.StatusDraft}, db.StatusReady,
			db.TransitionUpdate{ResetRetries: true, ScheduledSendAt: &at})
		if err != nil {
			res.Fail(fmt.Errorf("application %s: %w", result.Application.ID, err))
			continue
		}
		if app != nil {
			res.Add("promoted", 1)
		}
	}
}

func (s *Service) logActivity(ctx context.Context, userID uuid.UUID, message string, meta map[string]any) {
	if err := s.store.InsertSystemLog(ctx, db.SystemLog{
		Type:     db.LogActivity,
		Source:   userID.String(),
		Message:  message,
		Metadata: meta,
	}); err != nil {
		log.Printf("[drafting] failed to write activity log: %v", err)
	}
}
