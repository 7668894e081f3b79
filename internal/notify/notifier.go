package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/mailer"
	"github.com/jonathan/job-autopilot/internal/matching"
)

// Notification kinds recorded in the log metadata.
const (
	KindNewMatches = "new_matches"
	KindBounce     = "bounce"
)

// maxListed bounds how many matches one email lists.
const maxListed = 10

// Notifier sends user notifications through a mailer, gated by a Limiter.
type Notifier struct {
	limiter *Limiter
	sender  mailer.Sender
	from    string
}

// NewNotifier creates a notifier sending from the given address.
func NewNotifier(limiter *Limiter, sender mailer.Sender, from string) *Notifier {
	return &Notifier{limiter: limiter, sender: sender, from: from}
}

// NotifyNewMatches implements matching.Notifier. A refusal by the limiter is
// not an error.
func (n *Notifier) NotifyNewMatches(ctx context.Context, user *db.User, matches []matching.Match) error {
	if len(matches) == 0 {
		return nil
	}
	subject := fmt.Sprintf("%d new job matches for you", len(matches))
	if len(matches) == 1 {
		subject = fmt.Sprintf("New match: %s at %s", matches[0].Job.Title, matches[0].Job.Company)
	}
	return n.deliver(ctx, user, KindNewMatches, subject, matchesText(user, matches), map[string]any{
		"matches": len(matches),
	})
}

// NotifyBounce tells the user an application bounced.
func (n *Notifier) NotifyBounce(ctx context.Context, user *db.User, app *db.JobApplication, reason string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s,\n\n", firstName(user))
	fmt.Fprintf(&sb, "Your application \"%s\" to %s could not be delivered.\n", app.Subject, app.RecipientEmail)
	if reason != "" {
		fmt.Fprintf(&sb, "The mail server said: %s\n", reason)
	}
	sb.WriteString("\nWe will not reuse that address, and automatic sending is paused for a day.")
	return n.deliver(ctx, user, KindBounce, "An application bounced", sb.String(), map[string]any{
		"application_id": app.ID.String(),
	})
}

func (n *Notifier) deliver(ctx context.Context, user *db.User, kind, subject, text string, meta map[string]any) error {
	decision, err := n.limiter.Check(ctx, user, kind)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		log.Printf("[notify] skipped %s for user %s: %s", kind, user.ID, decision.Reason)
		return nil
	}

	receipt, err := n.sender.Send(ctx, mailer.Message{
		From:    n.from,
		To:      user.Email,
		Subject: subject,
		HTML:    mailer.TextToHTML(text),
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("failed to send %s notification: %w", kind, err)
	}
	meta["message_id"] = receipt.MessageID
	if err := n.limiter.Record(ctx, user.ID, kind, meta); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func matchesText(user *db.User, matches []matching.Match) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s,\n\nWe found jobs that fit your profile:\n\n", firstName(user))
	for i, m := range matches {
		if i == maxListed {
			fmt.Fprintf(&sb, "...and %d more on your board.\n", len(matches)-maxListed)
			break
		}
		fmt.Fprintf(&sb, "%s at %s (score %d)\n", m.Job.Title, m.Job.Company, m.Score)
		if len(m.Reasons) > 0 {
			fmt.Fprintf(&sb, "%s\n", strings.Join(m.Reasons, "; "))
		}
		if link := m.Job.Link(); link != "" {
			fmt.Fprintf(&sb, "%s\n", link)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func firstName(user *db.User) string {
	if f := strings.Fields(user.Name); len(f) > 0 {
		return f[0]
	}
	return "there"
}
