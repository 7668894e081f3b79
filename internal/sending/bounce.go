package sending

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
)

// BounceEvent is an inbound delivery-provider notification.
type BounceEvent struct {
	Event     string `json:"event"`
	Email     string `json:"email"`
	Reason    string `json:"reason"`
	MessageID string `json:"message_id"`
}

// Bounce handling outcomes.
const (
	BounceApplied   = "bounced"
	BounceDuplicate = "duplicate"
	BounceIgnored   = "ignored"
	BounceUnknown   = "not_found"
)

// BounceResult reports what a bounce event did.
type BounceResult struct {
	Outcome       string     `json:"outcome"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
}

// IsBounceEvent reports whether a provider event name denotes a bounce.
func IsBounceEvent(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "email.")
	switch n {
	case "bounce", "bounced", "hard_bounce", "hardbounce", "permanent_bounce":
		return true
	}
	return false
}

// HandleBounce marks the matching SENT application BOUNCED, forgets the
// posting's contact address, starts the user's cooldown and notifies them.
// Replaying an event is a no-op.
func (s *Service) HandleBounce(ctx context.Context, ev BounceEvent) (*BounceResult, error) {
	if !IsBounceEvent(ev.Event) {
		return &BounceResult{Outcome: BounceIgnored}, nil
	}

	app, err := s.store.GetApplicationByMessageID(ctx, ev.MessageID)
	if err != nil {
		return nil, err
	}
	if app == nil && ev.Email != "" {
		app, err = s.store.GetLatestSentToRecipient(ctx, ev.Email)
		if err != nil {
			return nil, err
		}
	}
	if app == nil {
		log.Printf("[bounce] no application for message %q / %q", ev.MessageID, ev.Email)
		return &BounceResult{Outcome: BounceUnknown}, nil
	}

	id := app.ID
	switch app.Status {
	case db.StatusBounced:
		return &BounceResult{Outcome: BounceDuplicate, ApplicationID: &id}, nil
	case db.StatusSent:
	default:
		return &BounceResult{Outcome: BounceIgnored, ApplicationID: &id}, nil
	}

	reason := strings.TrimSpace(ev.Reason)
	if reason == "" {
		reason = "bounced"
	}
	updated, err := s.store.TransitionApplication(ctx, app.ID, sourcesOf(db.StatusBounced), db.StatusBounced,
		db.TransitionUpdate{ErrorMessage: &reason})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// A concurrent delivery of the same event won.
		return &BounceResult{Outcome: BounceDuplicate, ApplicationID: &id}, nil
	}

	uj, err := s.store.GetUserJob(ctx, app.UserJobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user job: %w", err)
	}
	if uj != nil {
		if err := s.store.ClearCompanyEmail(ctx, uj.GlobalJobID); err != nil {
			return nil, err
		}
	}

	s.logEvent(ctx, db.LogApplicationBounced, app.UserID, "application bounced: "+reason, map[string]any{
		"application_id": app.ID.String(),
		"recipient":      app.RecipientEmail,
		"message_id":     ev.MessageID,
	})
	log.Printf("[bounce] application %s bounced: %s", app.ID, reason)

	if s.notifier != nil {
		user, err := s.store.GetUser(ctx, app.UserID)
		if err != nil {
			log.Printf("[bounce] failed to load user %s: %v", app.UserID, err)
		} else if user != nil {
			if err := s.notifier.NotifyBounce(ctx, user, updated, reason); err != nil {
				log.Printf("[bounce] failed to notify user %s: %v", user.ID, err)
			}
		}
	}
	return &BounceResult{Outcome: BounceApplied, ApplicationID: &id}, nil
}
