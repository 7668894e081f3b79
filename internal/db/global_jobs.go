package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const globalJobColumns = `id, source, source_id, title, company, company_email, location,
	is_remote, description, source_url, apply_url, company_url, salary_text, salary_min,
	salary_max, salary_currency, job_type, experience_level, skills, category, posted_at,
	last_seen_at, is_active, is_fresh, created_at, updated_at`

func scanGlobalJob(row pgx.Row) (*GlobalJob, error) {
	var j GlobalJob
	err := row.Scan(&j.ID, &j.Source, &j.SourceID, &j.Title, &j.Company, &j.CompanyEmail, &j.Location,
		&j.IsRemote, &j.Description, &j.SourceURL, &j.ApplyURL, &j.CompanyURL, &j.SalaryText, &j.SalaryMin,
		&j.SalaryMax, &j.SalaryCurrency, &j.JobType, &j.ExperienceLevel, &j.Skills, &j.Category, &j.PostedAt,
		&j.LastSeenAt, &j.IsActive, &j.IsFresh, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func collectGlobalJobs(rows pgx.Rows) ([]GlobalJob, error) {
	defer rows.Close()
	var jobs []GlobalJob
	for rows.Next() {
		j, err := scanGlobalJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan global job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate global jobs: %w", err)
	}
	return jobs, nil
}

// UpsertGlobalJob inserts a posting or refreshes the existing row for the same
// (source, source_id). On refresh, blank incoming fields never overwrite stored
// values, last_seen_at moves to now, and the row is reactivated. New rows start
// fresh. The result reports which branch ran.
func (db *DB) UpsertGlobalJob(ctx context.Context, j *GlobalJob) (UpsertResult, error) {
	category := j.Category
	if category == "" {
		category = CategoryOther
	}

	var res UpsertResult
	err := db.pool.QueryRow(ctx,
		`INSERT INTO global_jobs (source, source_id, title, company, company_email, location,
			is_remote, description, source_url, apply_url, company_url, salary_text, salary_min,
			salary_max, salary_currency, job_type, experience_level, skills, category, posted_at,
			last_seen_at, is_active, is_fresh)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			NOW(), TRUE, TRUE)
		 ON CONFLICT (source, source_id) DO UPDATE SET
			title            = COALESCE(NULLIF(EXCLUDED.title, ''), global_jobs.title),
			company          = COALESCE(NULLIF(EXCLUDED.company, ''), global_jobs.company),
			company_email    = COALESCE(NULLIF(EXCLUDED.company_email, ''), global_jobs.company_email),
			location         = COALESCE(NULLIF(EXCLUDED.location, ''), global_jobs.location),
			is_remote        = global_jobs.is_remote OR EXCLUDED.is_remote,
			description      = COALESCE(NULLIF(EXCLUDED.description, ''), global_jobs.description),
			source_url       = COALESCE(NULLIF(EXCLUDED.source_url, ''), global_jobs.source_url),
			apply_url        = COALESCE(NULLIF(EXCLUDED.apply_url, ''), global_jobs.apply_url),
			company_url      = COALESCE(NULLIF(EXCLUDED.company_url, ''), global_jobs.company_url),
			salary_text      = COALESCE(NULLIF(EXCLUDED.salary_text, ''), global_jobs.salary_text),
			salary_min       = COALESCE(EXCLUDED.salary_min, global_jobs.salary_min),
			salary_max       = COALESCE(EXCLUDED.salary_max, global_jobs.salary_max),
			salary_currency  = COALESCE(NULLIF(EXCLUDED.salary_currency, ''), global_jobs.salary_currency),
			job_type         = COALESCE(NULLIF(EXCLUDED.job_type, ''), global_jobs.job_type),
			experience_level = COALESCE(NULLIF(EXCLUDED.experience_level, ''), global_jobs.experience_level),
			skills           = CASE WHEN cardinality(EXCLUDED.skills) > 0 THEN EXCLUDED.skills ELSE global_jobs.skills END,
			category         = CASE WHEN EXCLUDED.category <> 'other' THEN EXCLUDED.category ELSE global_jobs.category END,
			posted_at        = COALESCE(EXCLUDED.posted_at, global_jobs.posted_at),
			last_seen_at     = NOW(),
			is_active        = TRUE,
			updated_at       = NOW()
		 RETURNING id, (xmax = 0)`,
		j.Source, j.SourceID, j.Title, j.Company, j.CompanyEmail, j.Location,
		j.IsRemote, j.Description, j.SourceURL, j.ApplyURL, j.CompanyURL, j.SalaryText, j.SalaryMin,
		j.SalaryMax, j.SalaryCurrency, j.JobType, j.ExperienceLevel, nonNil(j.Skills), category, j.PostedAt,
	).Scan(&res.ID, &res.Inserted)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to upsert global job %s/%s: %w", j.Source, j.SourceID, err)
	}
	return res, nil
}

// GetGlobalJob retrieves a posting by ID. Returns nil, nil when not found.
func (db *DB) GetGlobalJob(ctx context.Context, id uuid.UUID) (*GlobalJob, error) {
	j, err := scanGlobalJob(db.pool.QueryRow(ctx,
		`SELECT `+globalJobColumns+` FROM global_jobs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get global job: %w", err)
	}
	return j, nil
}

// ListFreshJobs returns active postings still flagged for the instant matching lane.
func (db *DB) ListFreshJobs(ctx context.Context, limit int) ([]GlobalJob, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+globalJobColumns+` FROM global_jobs
		 WHERE is_fresh AND is_active ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fresh jobs: %w", err)
	}
	return collectGlobalJobs(rows)
}

// ListActiveJobsSeenSince returns active postings seen at or after since,
// newest first. Used by the periodic matching lane.
func (db *DB) ListActiveJobsSeenSince(ctx context.Context, since time.Time, limit int) ([]GlobalJob, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+globalJobColumns+` FROM global_jobs
		 WHERE is_active AND last_seen_at >= $1 ORDER BY last_seen_at DESC LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	return collectGlobalJobs(rows)
}

// ClearFreshFlags moves postings out of the instant matching lane.
func (db *DB) ClearFreshFlags(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx, `UPDATE global_jobs SET is_fresh = FALSE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to clear fresh flags: %w", err)
	}
	return nil
}

// ListActiveSources returns the distinct sources that currently have active postings.
func (db *DB) ListActiveSources(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT DISTINCT source FROM global_jobs WHERE is_active ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeactivateStaleJobs marks postings from source not seen since cutoff as inactive.
func (db *DB) DeactivateStaleJobs(ctx context.Context, source string, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE global_jobs SET is_active = FALSE, is_fresh = FALSE, updated_at = NOW()
		 WHERE source = $1 AND is_active AND last_seen_at < $2`, source, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale jobs for %s: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

// ClearCompanyEmail removes a contact address that is known to be undeliverable.
func (db *DB) ClearCompanyEmail(ctx context.Context, jobID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE global_jobs SET company_email = '', updated_at = NOW() WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to clear company email: %w", err)
	}
	return nil
}
