package sending

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/lock"
	"github.com/jonathan/job-autopilot/internal/mailer"
	"github.com/jonathan/job-autopilot/internal/types"
)

// Per-application batch outcomes, used as result counters.
const (
	outcomeSent      = "sent"
	outcomeFailed    = "failed"
	outcomeCooldown  = "skipped_cooldown"
	outcomeQuota     = "skipped_quota"
	outcomeNotReady  = "skipped_not_ready"
	outcomeNoUser    = "skipped_no_user"
	outcomeClaimLost = "claimed_elsewhere"
	outcomeDeferred  = "deferred"
)

// RunBatch sends due READY applications under the batch lock. A held lock
// yields a skipped result; running out of time yields partial.
func (s *Service) RunBatch(ctx context.Context) *types.BatchResult {
	res := types.NewBatchResult("send")

	err := s.locker.Run(ctx, s.opts.LockName, s.opts.LockTimeout, func(ctx context.Context) error {
		return s.runBatch(ctx, res)
	})
	var held *lock.ErrLockHeld
	switch {
	case errors.As(err, &held):
		log.Printf("[send] batch skipped: %v", err)
		return res.Skip("send batch already running").Finish()
	case err != nil:
		res.Status = types.BatchFailed
		res.Fail(err)
	}

	res.Finish()
	if err := s.store.InsertSystemLog(context.WithoutCancel(ctx), db.SystemLog{
		Type:    db.LogSendSummary,
		Source:  "send",
		Message: fmt.Sprintf("send batch %s", res.Status),
		Metadata: map[string]any{
			"status":      string(res.Status),
			"counts":      res.Counts,
			"errors":      len(res.Errors),
			"duration_ms": res.DurationMS,
		},
	}); err != nil {
		log.Printf("[send] failed to write summary log: %v", err)
	}
	log.Printf("[send] batch %s: %v", res.Status, res.Counts)
	return res
}

func (s *Service) runBatch(ctx context.Context, res *types.BatchResult) error {
	start := s.now()
	due, err := s.store.ListDueApplications(ctx, start, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list due applications: %w", err)
	}
	res.Add("due", len(due))

	limit := rate.Inf
	if s.opts.Pacing > 0 {
		limit = rate.Every(s.opts.Pacing)
	}
	pacer := rate.NewLimiter(limit, 1)
	users := map[uuid.UUID]*db.User{}

	for i := range due {
		if s.now().Sub(start) >= s.opts.SoftBudget {
			res.Add(outcomeDeferred, len(due)-i)
			res.Status = types.BatchPartial
			res.Reason = "time budget exhausted"
			break
		}
		if err := pacer.Wait(ctx); err != nil {
			res.Add(outcomeDeferred, len(due)-i)
			res.Status = types.BatchPartial
			res.Reason = "cancelled"
			break
		}

		outcome, err := s.sendOne(ctx, &due[i], users)
		res.Add(outcome, 1)
		if err != nil {
			res.Fail(fmt.Errorf("application %s: %w", due[i].ID, err))
		}
	}
	return nil
}

// sendOne runs the pre-send gates, claims the application and delivers it.
// Gated applications stay READY for a later batch.
func (s *Service) sendOne(ctx context.Context, app *db.JobApplication, users map[uuid.UUID]*db.User) (string, error) {
	user, ok := users[app.UserID]
	if !ok {
		u, err := s.store.GetUser(ctx, app.UserID)
		if err != nil {
			return outcomeNoUser, err
		}
		users[app.UserID], user = u, u
	}
	if user == nil {
		return outcomeNoUser, nil
	}

	now := s.now()
	bounces, err := s.store.CountSystemLogs(ctx, db.LogApplicationBounced, user.ID.String(), now.Add(-s.opts.BounceCooldown))
	if err != nil {
		return outcomeCooldown, err
	}
	if bounces > 0 {
		return outcomeCooldown, nil
	}

	if over, err := s.overQuota(ctx, user.ID, now); err != nil || over {
		return outcomeQuota, err
	}

	report, err := s.readiness.Check(ctx, user.ID)
	if err != nil {
		return outcomeNotReady, err
	}
	if !report.Ready {
		log.Printf("[send] holding application %s: %s", app.ID, report.Reason())
		return outcomeNotReady, nil
	}

	claimed, err := s.store.TransitionApplication(ctx, app.ID, []db.ApplicationStatus{db.StatusReady}, db.StatusSending, db.TransitionUpdate{})
	if err != nil {
		return outcomeClaimLost, err
	}
	if claimed == nil {
		// Cancelled or claimed since it was listed.
		return outcomeClaimLost, nil
	}

	return s.deliver(ctx, claimed, user)
}

func (s *Service) overQuota(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	hour, err := s.store.CountSendsSince(ctx, userID, now.Add(-time.Hour))
	if err != nil {
		return false, err
	}
	if hour >= s.opts.PerHour {
		return true, nil
	}
	day, err := s.store.CountSendsSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return false, err
	}
	return day >= s.opts.PerDay, nil
}

// deliver sends a SENDING application and records the result. Once here the
// application always ends SENT or FAILED.
func (s *Service) deliver(ctx context.Context, app *db.JobApplication, user *db.User) (string, error) {
	var receipt *mailer.Receipt
	var sendErr error
	if strings.TrimSpace(app.RecipientEmail) == "" {
		sendErr = &ErrMissingRecipient{ID: app.ID}
	} else {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SendTimeout)
		receipt, sendErr = s.sender.Send(sendCtx, composeMessage(app, user))
		cancel()
	}

	// Finish the bookkeeping even if the batch context is cancelled.
	ctx = context.WithoutCancel(ctx)
	if sendErr != nil {
		msg := sendErr.Error()
		if _, err := s.store.TransitionApplication(ctx, app.ID, []db.ApplicationStatus{db.StatusSending}, db.StatusFailed,
			db.TransitionUpdate{ErrorMessage: &msg, IncrementRetry: true}); err != nil {
			return outcomeFailed, fmt.Errorf("send failed (%v) and could not be recorded: %w", sendErr, err)
		}
		s.logEvent(ctx, db.LogApplicationFailed, user.ID, "application send failed", map[string]any{
			"application_id": app.ID.String(),
			"error":          msg,
		})
		log.Printf("[send] application %s failed: %v", app.ID, sendErr)
		return outcomeFailed, sendErr
	}

	sentAt := s.now()
	messageID := receipt.MessageID
	updated, err := s.store.TransitionApplication(ctx, app.ID, []db.ApplicationStatus{db.StatusSending}, db.StatusSent,
		db.TransitionUpdate{MessageID: &messageID, SentAt: &sentAt})
	if err != nil {
		return outcomeSent, fmt.Errorf("sent as %s but could not be recorded: %w", messageID, err)
	}
	if updated == nil {
		log.Printf("[send] application %s was delivered as %s but is no longer SENDING", app.ID, messageID)
	}
	if err := s.store.UpdateUserJobStage(ctx, app.UserJobID, db.StageApplied); err != nil {
		log.Printf("[send] failed to mark user job %s applied: %v", app.UserJobID, err)
	}
	s.logEvent(ctx, db.LogApplicationSent, user.ID, "application sent to "+app.RecipientEmail, map[string]any{
		"application_id": app.ID.String(),
		"message_id":     messageID,
	})
	log.Printf("[send] application %s sent as %s", app.ID, messageID)
	return outcomeSent, nil
}

func composeMessage(app *db.JobApplication, user *db.User) mailer.Message {
	sender := app.SenderEmail
	if sender == "" {
		sender = user.SenderEmail
	}
	text := app.Body
	if strings.TrimSpace(app.CoverLetter) != "" {
		text += "\n\nCover letter\n\n" + app.CoverLetter
	}
	return mailer.Message{
		From:    mailer.FormatAddress(user.Name, sender),
		To:      app.RecipientEmail,
		ReplyTo: sender,
		Subject: app.Subject,
		HTML:    mailer.TextToHTML(text),
		Text:    text,
	}
}
