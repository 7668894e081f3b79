package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/job-autopilot/internal/db"
)

// HealthStore reads the event log for health reporting.
type HealthStore interface {
	CountSystemLogsByType(ctx context.Context, since time.Time) (db.Counts, error)
	LatestSystemLog(ctx context.Context, logType, source string) (*db.SystemLog, error)
	GetLock(ctx context.Context, name string) (*db.SystemLock, error)
}

// HealthReport summarizes recent pipeline activity.
type HealthReport struct {
	Since      time.Time             `json:"since"`
	Events     db.Counts             `json:"events"`
	LastRuns   map[string]*time.Time `json:"last_runs"`
	Healthy    bool                  `json:"healthy"`
	Warnings   []string              `json:"warnings,omitempty"`
	ErrorCount int                   `json:"error_count"`
	// SourceFailures counts scrape sources that failed within the window.
	SourceFailures int            `json:"source_failures"`
	SendLock       *db.SystemLock `json:"send_lock,omitempty"`
}

// summaryTypes are the batch summaries whose latest timestamps are reported.
var summaryTypes = []string{db.LogScrapeSummary, db.LogMatchSummary, db.LogSendSummary, db.LogSweepSummary}

// Health builds a report over the window ending now. A batch that has not
// logged a summary within the window produces a warning, as does a send lock
// that has been running since before the window started.
func Health(ctx context.Context, store HealthStore, window time.Duration) (*HealthReport, error) {
	since := time.Now().Add(-window)
	counts, err := store.CountSystemLogsByType(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	report := &HealthReport{
		Since:      since,
		Events:     counts,
		LastRuns:   make(map[string]*time.Time, len(summaryTypes)),
		ErrorCount: counts[db.LogError] + counts[db.LogApplicationFailed] + counts[db.LogSourceFailed],

		SourceFailures: counts[db.LogSourceFailed],
	}
	for _, t := range summaryTypes {
		latest, err := store.LatestSystemLog(ctx, t, "")
		if err != nil {
			return nil, fmt.Errorf("failed to read latest %s: %w", t, err)
		}
		if latest == nil {
			report.LastRuns[t] = nil
			report.Warnings = append(report.Warnings, fmt.Sprintf("no %s recorded", t))
			continue
		}
		ts := latest.CreatedAt
		report.LastRuns[t] = &ts
		if ts.Before(since) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s last recorded %s", t, ts.Format(time.RFC3339)))
		}
	}
	lock, err := store.GetLock(ctx, db.LockSendApplications)
	if err != nil {
		return nil, fmt.Errorf("failed to read send lock: %w", err)
	}
	report.SendLock = lock
	if lock != nil && lock.IsRunning && lock.StartedAt.Before(since) {
		report.Warnings = append(report.Warnings, fmt.Sprintf("send lock running since %s", lock.StartedAt.Format(time.RFC3339)))
	}

	report.Healthy = len(report.Warnings) == 0
	return report, nil
}
