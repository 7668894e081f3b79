// Package notify emails users about new matches and bounces, within limits
// counted from the event log.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
)

// Limits caps notifications per user.
type Limits struct {
	PerDay  int
	PerHour int
}

// DefaultLimits returns 3 per day and 1 per hour.
func DefaultLimits() Limits {
	return Limits{PerDay: 3, PerHour: 1}
}

// Decision is whether a notification may go out and, if not, why.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// LogStore reads and appends notification events.
type LogStore interface {
	CountSystemLogs(ctx context.Context, logType, source string, since time.Time) (int, error)
	CountSystemLogsOfKind(ctx context.Context, logType, source, kind string, since time.Time) (int, error)
	InsertSystemLog(ctx context.Context, entry db.SystemLog) error
}

// Limiter decides from notification_sent events whether a user may be
// notified again. The log is the only counter; Record appends to it.
type Limiter struct {
	store  LogStore
	limits Limits
	now    func() time.Time
}

// NewLimiter creates a limiter.
func NewLimiter(store LogStore, limits Limits) *Limiter {
	if limits.PerDay <= 0 {
		limits.PerDay = DefaultLimits().PerDay
	}
	if limits.PerHour <= 0 {
		limits.PerHour = DefaultLimits().PerHour
	}
	return &Limiter{store: store, limits: limits, now: time.Now}
}

// Check evaluates the user's preferences and recent notifications for a
// notification of the given kind. The per-day and per-hour caps count every
// kind; the once-a-day digest rule counts only match digests.
func (l *Limiter) Check(ctx context.Context, user *db.User, kind string) (Decision, error) {
	if !user.NotificationsEnabled {
		return Decision{Reason: "notifications disabled"}, nil
	}
	if user.NotificationFrequency == db.NotifyOff {
		return Decision{Reason: "notification frequency is off"}, nil
	}

	now := l.now()
	source := user.ID.String()

	day, err := l.count(ctx, source, now.Add(-24*time.Hour))
	if err != nil {
		return Decision{}, err
	}
	if day >= l.limits.PerDay {
		return Decision{Reason: fmt.Sprintf("daily cap of %d reached", l.limits.PerDay)}, nil
	}

	hour, err := l.count(ctx, source, now.Add(-time.Hour))
	if err != nil {
		return Decision{}, err
	}
	if hour >= l.limits.PerHour {
		return Decision{Reason: fmt.Sprintf("hourly cap of %d reached", l.limits.PerHour)}, nil
	}

	if user.NotificationFrequency == db.NotifyDaily && kind == KindNewMatches {
		y, m, d := now.UTC().Date()
		today, err := l.store.CountSystemLogsOfKind(ctx, db.LogNotificationSent, source, KindNewMatches,
			time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return Decision{}, fmt.Errorf("failed to count digests: %w", err)
		}
		if today > 0 {
			return Decision{Reason: "daily digest already sent today"}, nil
		}
	}
	return Decision{Allowed: true}, nil
}

// Record appends the notification_sent event the next Check counts.
func (l *Limiter) Record(ctx context.Context, userID uuid.UUID, kind string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["kind"] = kind
	return l.store.InsertSystemLog(ctx, db.SystemLog{
		Type:     db.LogNotificationSent,
		Source:   userID.String(),
		Message:  kind + " notification sent",
		Metadata: meta,
	})
}

func (l *Limiter) count(ctx context.Context, source string, since time.Time) (int, error) {
	n, err := l.store.CountSystemLogs(ctx, db.LogNotificationSent, source, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}
