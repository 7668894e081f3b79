// Package maintenance runs the periodic cleanup sweep: stale postings, stuck
// sends, old log rows and ghosted applications.
package maintenance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/types"
)

// StuckSendMessage is recorded on applications recovered from SENDING.
const StuckSendMessage = "send timed out: recovered from stuck SENDING state"

// Store is the persistence the sweep needs.
type Store interface {
	ListActiveSources(ctx context.Context) ([]string, error)
	DeactivateStaleJobs(ctx context.Context, source string, cutoff time.Time) (int64, error)
	RecoverStuckSending(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error)
	PruneSystemLogs(ctx context.Context, cutoff time.Time) (int64, error)
	MarkGhostedUserJobs(ctx context.Context, cutoff time.Time) (int64, error)
	InsertSystemLog(ctx context.Context, entry db.SystemLog) error
}

// Options configures the sweep windows.
type Options struct {
	DefaultStaleAfter time.Duration
	StaleWindows      map[string]time.Duration
	StuckSendTimeout  time.Duration
	LogRetention      time.Duration
	GhostAfter        time.Duration
}

// Sweeper runs the maintenance sweep.
type Sweeper struct {
	store Store
	opts  Options
	now   func() time.Time
}

// NewSweeper creates a sweeper.
func NewSweeper(store Store, opts Options) *Sweeper {
	return &Sweeper{store: store, opts: opts, now: time.Now}
}

// StaleWindow returns the inactivity window for a source, falling back to
// the default for sources without an override.
func (s *Sweeper) StaleWindow(source string) time.Duration {
	if w, ok := s.opts.StaleWindows[source]; ok && w > 0 {
		return w
	}
	return s.opts.DefaultStaleAfter
}

// Run executes every step. A failing step is recorded and the remaining
// steps still run.
func (s *Sweeper) Run(ctx context.Context) *types.BatchResult {
	result := types.NewBatchResult("sweep")
	now := s.now()

	steps := []struct {
		name string
		fn   func(context.Context, time.Time, *types.BatchResult) error
	}{
		{"stale_jobs", s.deactivateStale},
		{"stuck_sends", s.recoverStuck},
		{"ghosted", s.markGhosted},
		{"logs", s.pruneLogs},
	}

	failed := 0
	for _, step := range steps {
		if err := step.fn(ctx, now, result); err != nil {
			failed++
			log.Printf("[sweep] %s failed: %v", step.name, err)
			result.Fail(fmt.Errorf("%s: %w", step.name, err))
		}
	}
	if failed == len(steps) {
		result.Status = types.BatchFailed
	}

	entry := db.SystemLog{
		Type:     db.LogSweepSummary,
		Source:   "sweep",
		Message:  fmt.Sprintf("deactivated %d jobs, recovered %d sends", result.Counts["deactivated"], result.Counts["recovered"]),
		Metadata: countsMetadata(result.Counts),
	}
	if err := s.store.InsertSystemLog(ctx, entry); err != nil {
		log.Printf("[sweep] failed to write summary: %v", err)
	}

	return result.Finish()
}

func (s *Sweeper) deactivateStale(ctx context.Context, now time.Time, result *types.BatchResult) error {
	sourceNames, err := s.store.ListActiveSources(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, source := range sourceNames {
		window := s.StaleWindow(source)
		if window <= 0 {
			continue
		}
		n, err := s.store.DeactivateStaleJobs(ctx, source, now.Add(-window))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n > 0 {
			log.Printf("[sweep] %s: deactivated %d jobs not seen in %v", source, n, window)
		}
		result.Add("deactivated", int(n))
	}
	return firstErr
}

func (s *Sweeper) recoverStuck(ctx context.Context, now time.Time, result *types.BatchResult) error {
	ids, err := s.store.RecoverStuckSending(ctx, now.Add(-s.opts.StuckSendTimeout), StuckSendMessage)
	if err != nil {
		return err
	}
	for _, id := range ids {
		log.Printf("[sweep] application %s recovered from SENDING", id)
	}
	result.Add("recovered", len(ids))
	return nil
}

func (s *Sweeper) markGhosted(ctx context.Context, now time.Time, result *types.BatchResult) error {
	if s.opts.GhostAfter <= 0 {
		return nil
	}
	n, err := s.store.MarkGhostedUserJobs(ctx, now.Add(-s.opts.GhostAfter))
	if err != nil {
		return err
	}
	result.Add("ghosted", int(n))
	return nil
}

func (s *Sweeper) pruneLogs(ctx context.Context, now time.Time, result *types.BatchResult) error {
	if s.opts.LogRetention <= 0 {
		return nil
	}
	n, err := s.store.PruneSystemLogs(ctx, now.Add(-s.opts.LogRetention))
	if err != nil {
		return err
	}
	result.Add("pruned_logs", int(n))
	return nil
}

func countsMetadata(counts map[string]int) map[string]any {
	m := make(map[string]any, len(counts))
	for k, v := range counts {
		m[k] = v
	}
	return m
}
