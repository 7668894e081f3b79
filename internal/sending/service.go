package sending

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/mailer"
	"github.com/jonathan/job-autopilot/internal/readiness"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserJob(ctx context.Context, id uuid.UUID) (*db.UserJob, error)
	UpdateUserJobStage(ctx context.Context, id uuid.UUID, stage string) error
	ClearCompanyEmail(ctx context.Context, jobID uuid.UUID) error

	GetApplication(ctx context.Context, id uuid.UUID) (*db.JobApplication, error)
	GetApplicationByMessageID(ctx context.Context, messageID string) (*db.JobApplication, error)
	GetLatestSentToRecipient(ctx context.Context, email string) (*db.JobApplication, error)
	TransitionApplication(ctx context.Context, id uuid.UUID, from []db.ApplicationStatus, to db.ApplicationStatus, upd db.TransitionUpdate) (*db.JobApplication, error)
	ListDueApplications(ctx context.Context, now time.Time, limit int) ([]db.JobApplication, error)
	CountSendsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	CountSystemLogs(ctx context.Context, logType, source string, since time.Time) (int, error)
	InsertSystemLog(ctx context.Context, entry db.SystemLog) error
}

// Locker runs fn under a durable named lock.
type Locker interface {
	Run(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error
}

// ReadinessChecker evaluates a user's settings right before a send.
type ReadinessChecker interface {
	Check(ctx context.Context, userID uuid.UUID) (*readiness.Report, error)
}

// BounceNotifier tells a user one of their applications bounced.
type BounceNotifier interface {
	NotifyBounce(ctx context.Context, user *db.User, app *db.JobApplication, reason string) error
}

// Options tunes batches and user actions.
type Options struct {
	BatchSize        int
	Pacing           time.Duration
	SoftBudget       time.Duration
	LockName         string
	LockTimeout      time.Duration
	SendTimeout      time.Duration
	PerHour          int
	PerDay           int
	BounceCooldown   time.Duration
	MaxManualRetries int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:        10,
		Pacing:           2 * time.Second,
		SoftBudget:       50 * time.Second,
		LockName:         db.LockSendApplications,
		LockTimeout:      10 * time.Minute,
		SendTimeout:      30 * time.Second,
		PerHour:          5,
		PerDay:           20,
		BounceCooldown:   24 * time.Hour,
		MaxManualRetries: 3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Pacing < 0 {
		o.Pacing = 0
	}
	if o.SoftBudget <= 0 {
		o.SoftBudget = d.SoftBudget
	}
	if o.LockName == "" {
		o.LockName = d.LockName
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = d.LockTimeout
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = d.SendTimeout
	}
	if o.PerHour <= 0 {
		o.PerHour = d.PerHour
	}
	if o.PerDay <= 0 {
		o.PerDay = d.PerDay
	}
	if o.BounceCooldown <= 0 {
		o.BounceCooldown = d.BounceCooldown
	}
	if o.MaxManualRetries <= 0 {
		o.MaxManualRetries = d.MaxManualRetries
	}
	return o
}

// Service is the send orchestrator.
type Service struct {
	store     Store
	locker    Locker
	sender    mailer.Sender
	readiness ReadinessChecker
	notifier  BounceNotifier
	opts      Options
	now       func() time.Time
}

// NewService creates an orchestrator. notifier may be nil.
func NewService(store Store, locker Locker, sender mailer.Sender, checker ReadinessChecker, notifier BounceNotifier, opts Options) *Service {
	return &Service{
		store:     store,
		locker:    locker,
		sender:    sender,
		readiness: checker,
		notifier:  notifier,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// Approve moves a user's DRAFT application to READY for the next batch.
func (s *Service) Approve(ctx context.Context, userID, appID uuid.UUID) (*db.JobApplication, error) {
	app, err := s.owned(ctx, userID, appID)
	if err != nil {
		return nil, err
	}
	if app.Status != db.StatusDraft {
		return nil, &ErrInvalidTransition{ID: app.ID, From: app.Status, To: db.StatusReady}
	}
	if strings.TrimSpace(app.RecipientEmail) == "" {
		return nil, &ErrMissingRecipient{ID: app.ID}
	}

	at := s.now()
	return s.transition(ctx, app, db.StatusReady, []db.ApplicationStatus{db.StatusDraft},
		db.TransitionUpdate{ResetRetries: true, ScheduledSendAt: &at}, "approved")
}

// Cancel withdraws a DRAFT or READY application. Anything else fails.
func (s *Service) Cancel(ctx context.Context, userID, appID uuid.UUID) (*db.JobApplication, error) {
	app, err := s.owned(ctx, userID, appID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(app.Status, db.StatusCancelled) {
		return nil, &ErrInvalidTransition{ID: app.ID, From: app.Status, To: db.StatusCancelled}
	}
	return s.transition(ctx, app, db.StatusCancelled, sourcesOf(db.StatusCancelled), db.TransitionUpdate{}, "cancelled")
}

// Retry puts a FAILED application back to READY, up to MaxManualRetries.
func (s *Service) Retry(ctx context.Context, userID, appID uuid.UUID) (*db.JobApplication, error) {
	app, err := s.owned(ctx, userID, appID)
	if err != nil {
		return nil, err
	}
	if app.Status != db.StatusFailed {
		return nil, &ErrInvalidTransition{ID: app.ID, From: app.Status, To: db.StatusReady}
	}
	if app.RetryCount >= s.opts.MaxManualRetries {
		return nil, &ErrRetryLimit{ID: app.ID, Max: s.opts.MaxManualRetries}
	}
	at := s.now()
	return s.transition(ctx, app, db.StatusReady, []db.ApplicationStatus{db.StatusFailed},
		db.TransitionUpdate{ScheduledSendAt: &at}, "queued for retry")
}

func (s *Service) owned(ctx context.Context, userID, appID uuid.UUID) (*db.JobApplication, error) {
	app, err := s.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if app == nil || app.UserID != userID {
		return nil, &db.ErrNotFound{Entity: "application", ID: appID}
	}
	return app, nil
}

// transition applies a conditional update. When the guard misses, the
// application changed underneath us and the stored status is reported.
func (s *Service) transition(ctx context.Context, app *db.JobApplication, to db.ApplicationStatus, from []db.ApplicationStatus, upd db.TransitionUpdate, verb string) (*db.JobApplication, error) {
	updated, err := s.store.TransitionApplication(ctx, app.ID, from, to, upd)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		current, err := s.store.GetApplication(ctx, app.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get application: %w", err)
		}
		status := app.Status
		if current != nil {
			status = current.Status
		}
		return nil, &ErrInvalidTransition{ID: app.ID, From: status, To: to}
	}
	s.logEvent(ctx, db.LogActivity, app.UserID, fmt.Sprintf("application %s", verb), map[string]any{
		"application_id": app.ID.String(),
		"from":           string(app.Status),
		"to":             string(to),
	})
	return updated, nil
}

func (s *Service) logEvent(ctx context.Context, logType string, userID uuid.UUID, message string, meta map[string]any) {
	if err := s.store.InsertSystemLog(ctx, db.SystemLog{
		Type:     logType,
		Source:   userID.String(),
		Message:  message,
		Metadata: meta,
	}); err != nil {
		log.Printf("[send] failed to write %s log: %v", logType, err)
	}
}
