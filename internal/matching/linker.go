package matching

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/types"
)

// Lane selects which postings a matching run considers.
type Lane string

const (
	// LaneInstant matches postings first seen by a recent scrape.
	LaneInstant Lane = "instant"
	// LaneBatch re-matches every active posting seen within the lookback.
	LaneBatch Lane = "batch"
)

// Store is the persistence the linker needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	ListActiveUsers(ctx context.Context) ([]db.User, error)
	ListResumesByUser(ctx context.Context, userID uuid.UUID) ([]db.Resume, error)
	ListFreshJobs(ctx context.Context, limit int) ([]db.GlobalJob, error)
	ListActiveJobsSeenSince(ctx context.Context, since time.Time, limit int) ([]db.GlobalJob, error)
	CreateUserJob(ctx context.Context, userID, jobID uuid.UUID, score int, reasons []string) (bool, error)
	ClearFreshFlags(ctx context.Context, ids []uuid.UUID) error
	InsertSystemLog(ctx context.Context, entry db.SystemLog) error
}

// Match is a newly created link.
type Match struct {
	Job     db.GlobalJob
	Score   int
	Reasons []string
}

// Notifier is told about a user's new quality matches after a run.
type Notifier interface {
	NotifyNewMatches(ctx context.Context, user *db.User, matches []Match) error
}

// Options configures a linker.
type Options struct {
	Thresholds    Thresholds
	BatchLookback time.Duration
	MaxJobs       int
}

// Linker scores postings for every active user and creates user links for
// those above the show threshold.
type Linker struct {
	store    Store
	opts     Options
	notifier Notifier
}

// NewLinker creates a linker. notifier may be nil.
func NewLinker(store Store, opts Options, notifier Notifier) *Linker {
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 500
	}
	if opts.BatchLookback <= 0 {
		opts.BatchLookback = 72 * time.Hour
	}
	return &Linker{store: store, opts: opts, notifier: notifier}
}

// Run matches the lane's postings against every active user. Per-user
// failures are recorded and skipped. The instant lane clears the fresh flag
// on the postings it processed once every user has been scored.
func (l *Linker) Run(ctx context.Context, lane Lane) *types.BatchResult {
	result := types.NewBatchResult("match:" + string(lane))

	jobs, err := l.loadJobs(ctx, lane)
	if err != nil {
		result.Status = types.BatchFailed
		result.Fail(err)
		return result.Finish()
	}
	result.Add("jobs", len(jobs))
	if len(jobs) == 0 {
		return result.Finish()
	}

	users, err := l.store.ListActiveUsers(ctx)
	if err != nil {
		result.Status = types.BatchFailed
		result.Fail(fmt.Errorf("failed to list users: %w", err))
		return result.Finish()
	}

	for i := range users {
		if err := ctx.Err(); err != nil {
			result.Fail(err)
			break
		}
		created, err := l.matchUser(ctx, &users[i], jobs, result)
		if err != nil {
			log.Printf("[match] user %s: %v", users[i].ID, err)
			result.Fail(fmt.Errorf("user %s: %w", users[i].ID, err))
			continue
		}
		l.notify(ctx, &users[i], created)
	}

	if lane == LaneInstant && ctx.Err() == nil {
		ids := make([]uuid.UUID, len(jobs))
		for i, j := range jobs {
			ids[i] = j.ID
		}
		if err := l.store.ClearFreshFlags(ctx, ids); err != nil {
			result.Fail(fmt.Errorf("failed to clear fresh flags: %w", err))
		}
	}

	l.writeSummary(ctx, lane, result)
	return result.Finish()
}

// MatchUser runs the batch lane for a single user, as requested from the
// user's own scan action.
func (l *Linker) MatchUser(ctx context.Context, userID uuid.UUID) (*types.BatchResult, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &db.ErrUserNotFound{UserID: userID}
	}

	result := types.NewBatchResult("match:user")
	jobs, err := l.loadJobs(ctx, LaneBatch)
	if err != nil {
		return nil, err
	}
	result.Add("jobs", len(jobs))

	created, err := l.matchUser(ctx, user, jobs, result)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, user, created)
	return result.Finish(), nil
}

func (l *Linker) loadJobs(ctx context.Context, lane Lane) ([]db.GlobalJob, error) {
	switch lane {
	case LaneInstant:
		jobs, err := l.store.ListFreshJobs(ctx, l.opts.MaxJobs)
		if err != nil {
			return nil, fmt.Errorf("failed to load fresh jobs: %w", err)
		}
		return jobs, nil
	case LaneBatch:
		jobs, err := l.store.ListActiveJobsSeenSince(ctx, time.Now().Add(-l.opts.BatchLookback), l.opts.MaxJobs)
		if err != nil {
			return nil, fmt.Errorf("failed to load active jobs: %w", err)
		}
		return jobs, nil
	default:
		return nil, fmt.Errorf("unknown lane %q", lane)
	}
}

// matchUser scores every job for one user and returns the links it created.
// An existing link is left alone, which also keeps dismissed links dismissed.
func (l *Linker) matchUser(ctx context.Context, user *db.User, jobs []db.GlobalJob, result *types.BatchResult) ([]Match, error) {
	if len(user.Keywords) == 0 {
		result.Add("users_without_keywords", 1)
		return nil, nil
	}
	resumes, err := l.store.ListResumesByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resumes: %w", err)
	}

	var created []Match
	for i := range jobs {
		scored := Score(&jobs[i], user, resumes)
		result.Add("scored", 1)
		if !l.opts.Thresholds.Shows(scored.Score) {
			continue
		}
		ok, err := l.store.CreateUserJob(ctx, user.ID, jobs[i].ID, scored.Score, scored.Reasons)
		if err != nil {
			if db.IsUniqueViolation(err) {
				result.Add("duplicates", 1)
				continue
			}
			result.Fail(fmt.Errorf("user %s job %s: %w", user.ID, jobs[i].ID, err))
			continue
		}
		if !ok {
			result.Add("duplicates", 1)
			continue
		}
		result.Add("linked", 1)
		created = append(created, Match{Job: jobs[i], Score: scored.Score, Reasons: scored.Reasons})
	}
	return created, nil
}

// notify forwards a user's new quality matches. Notification failures never
// fail the run.
func (l *Linker) notify(ctx context.Context, user *db.User, created []Match) {
	if l.notifier == nil || len(created) == 0 {
		return
	}
	minScore := l.opts.Thresholds.AutoApplyMin(user)
	var quality []Match
	for _, m := range created {
		if m.Score >= minScore {
			quality = append(quality, m)
		}
	}
	if len(quality) == 0 {
		return
	}
	if err := l.notifier.NotifyNewMatches(ctx, user, quality); err != nil {
		log.Printf("[match] failed to notify user %s: %v", user.ID, err)
	}
}

func (l *Linker) writeSummary(ctx context.Context, lane Lane, result *types.BatchResult) {
	metadata := make(map[string]any, len(result.Counts))
	for k, v := range result.Counts {
		metadata[k] = v
	}
	entry := db.SystemLog{
		Type:     db.LogMatchSummary,
		Source:   string(lane),
		Message:  fmt.Sprintf("%d jobs, %d links created", result.Counts["jobs"], result.Counts["linked"]),
		Metadata: metadata,
	}
	if err := l.store.InsertSystemLog(ctx, entry); err != nil {
		log.Printf("[match] failed to write summary: %v", err)
	}
}
