package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userJobColumns = `uj.id, uj.user_id, uj.global_job_id, uj.score, uj.reasons, uj.stage,
	uj.dismissed, uj.follow_up_count, uj.last_follow_up_at, uj.created_at, uj.updated_at`

func userJobFields(uj *UserJob) []any {
	return []any{&uj.ID, &uj.UserID, &uj.GlobalJobID, &uj.Score, &uj.Reasons, &uj.Stage,
		&uj.Dismissed, &uj.FollowUpCount, &uj.LastFollowUpAt, &uj.CreatedAt, &uj.UpdatedAt}
}

func scanUserJob(row pgx.Row) (*UserJob, error) {
	var uj UserJob
	if err := row.Scan(userJobFields(&uj)...); err != nil {
		return nil, err
	}
	return &uj, nil
}

// CreateUserJob links a user to a scored posting. An existing link (including
// a dismissed one) is left untouched and created is false.
func (db *DB) CreateUserJob(ctx context.Context, userID, jobID uuid.UUID, score int, reasons []string) (bool, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO user_jobs (user_id, global_job_id, score, reasons)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, global_job_id) DO NOTHING
		 RETURNING id`,
		userID, jobID, score, nonNil(reasons),
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows || IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create user job: %w", err)
	}
	return true, nil
}

// GetUserJob retrieves a link by ID. Returns nil, nil when not found.
func (db *DB) GetUserJob(ctx context.Context, id uuid.UUID) (*UserJob, error) {
	uj, err := scanUserJob(db.pool.QueryRow(ctx,
		`SELECT `+userJobColumns+` FROM user_jobs uj WHERE uj.id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user job: %w", err)
	}
	return uj, nil
}

// ListUserJobs returns a user's links that are not dismissed, with their
// postings, best score first and unscored links last.
func (db *DB) ListUserJobs(ctx context.Context, userID uuid.UUID, limit int) ([]UserJobWithJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+userJobColumns+`, gj.title, gj.company, gj.location, gj.source_url, gj.apply_url,
			gj.salary_text, gj.category, gj.is_active
		 FROM user_jobs uj JOIN global_jobs gj ON gj.id = uj.global_job_id
		 WHERE uj.user_id = $1 AND NOT uj.dismissed
		 ORDER BY uj.score DESC NULLS LAST, uj.created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user jobs: %w", err)
	}
	defer rows.Close()

	var out []UserJobWithJob
	for rows.Next() {
		var r UserJobWithJob
		fields := append(userJobFields(&r.UserJob), &r.Job.Title, &r.Job.Company, &r.Job.Location,
			&r.Job.SourceURL, &r.Job.ApplyURL, &r.Job.SalaryText, &r.Job.Category, &r.Job.IsActive)
		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("failed to scan user job: %w", err)
		}
		r.Job.ID = r.GlobalJobID
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDraftCandidates returns SAVED links at or above minScore that have no
// application yet and whose posting has a contact address.
func (db *DB) ListDraftCandidates(ctx context.Context, userID uuid.UUID, minScore, limit int) ([]UserJob, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+userJobColumns+`
		 FROM user_jobs uj
		 JOIN global_jobs gj ON gj.id = uj.global_job_id
		 LEFT JOIN job_applications ja ON ja.user_job_id = uj.id
		 WHERE uj.user_id = $1 AND uj.stage = $2 AND uj.score >= $3 AND NOT uj.dismissed
		   AND ja.id IS NULL AND gj.is_active AND gj.company_email <> ''
		 ORDER BY uj.score DESC, uj.created_at LIMIT $4`,
		userID, StageSaved, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list draft candidates: %w", err)
	}
	defer rows.Close()

	var out []UserJob
	for rows.Next() {
		uj, err := scanUserJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user job: %w", err)
		}
		out = append(out, *uj)
	}
	return out, rows.Err()
}

// UpdateUserJobStage moves a link to a new pipeline stage.
func (db *DB) UpdateUserJobStage(ctx context.Context, id uuid.UUID, stage string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE user_jobs SET stage = $2, updated_at = NOW() WHERE id = $1`, id, stage)
	if err != nil {
		return fmt.Errorf("failed to update user job stage: %w", err)
	}
	return nil
}

// DismissUserJob hides one of the user's links. The link is kept, so the
// matcher never recreates it. Returns false when the link is not the user's.
func (db *DB) DismissUserJob(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE user_jobs SET dismissed = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to dismiss user job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordFollowUp counts a follow-up on one of the user's APPLIED or INTERVIEW
// links. Returns nil, nil when no such link exists.
func (db *DB) RecordFollowUp(ctx context.Context, userID, id uuid.UUID) (*UserJob, error) {
	uj, err := scanUserJob(db.pool.QueryRow(ctx,
		`UPDATE user_jobs uj SET follow_up_count = uj.follow_up_count + 1,
			last_follow_up_at = NOW(), updated_at = NOW()
		 WHERE uj.id = $1 AND uj.user_id = $2 AND uj.stage = ANY($3) AND NOT uj.dismissed
		 RETURNING `+userJobColumns,
		id, userID, []string{StageApplied, StageInterview}))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to record follow-up: %w", err)
	}
	return uj, nil
}

// MarkGhostedUserJobs moves APPLIED links untouched since cutoff to GHOSTED.
// A recorded follow-up counts as activity.
func (db *DB) MarkGhostedUserJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE user_jobs SET stage = $1, updated_at = NOW()
		 WHERE stage = $2 AND NOT dismissed AND updated_at < $3`,
		StageGhosted, StageApplied, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark ghosted user jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
