package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, full_name, status, city, country, keywords,
	preferred_categories, preferred_platforms, job_types, work_type, experience_level,
	salary_min, salary_max, automation_mode, auto_apply_enabled, min_auto_apply_score,
	sender_email, sender_verified, notifications_enabled, notification_frequency,
	created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Status, &u.City, &u.Country, &u.Keywords,
		&u.PreferredCategories, &u.PreferredPlatforms, &u.JobTypes, &u.WorkType, &u.ExperienceLevel,
		&u.SalaryMin, &u.SalaryMax, &u.AutomationMode, &u.AutoApplyEnabled, &u.MinAutoApplyScore,
		&u.SenderEmail, &u.SenderVerified, &u.NotificationsEnabled, &u.NotificationFrequency,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// CreateUser inserts a user with the given profile and settings.
func (db *DB) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	workType := in.WorkType
	if workType == "" {
		workType = WorkTypeAny
	}
	mode := in.AutomationMode
	if mode == "" {
		mode = ModeManual
	}
	freq := in.NotificationFreq
	if freq == "" {
		freq = NotifyDaily
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO users (email, full_name, city, country, keywords, preferred_categories,
			preferred_platforms, job_types, work_type, experience_level, salary_min, salary_max,
			automation_mode, auto_apply_enabled, min_auto_apply_score, sender_email, sender_verified,
			notification_frequency)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 RETURNING `+userColumns,
		in.Email, in.Name, in.City, in.Country, nonNil(in.Keywords), nonNil(in.PreferredCategories),
		nonNil(in.PreferredPlatforms), nonNil(in.JobTypes), workType, in.ExperienceLevel,
		in.SalaryMin, in.SalaryMax, mode, in.AutoApplyEnabled, in.MinAutoApplyScore,
		in.SenderEmail, in.SenderVerified, freq,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by ID. Returns nil, nil when not found.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListActiveUsers returns every user whose status is active.
func (db *DB) ListActiveUsers(ctx context.Context) ([]User, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE status = $1 ORDER BY created_at`, UserStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return collectUsers(rows)
}

// ListActiveUsersByMode returns active users in the given automation mode.
func (db *DB) ListActiveUsersByMode(ctx context.Context, mode string) ([]User, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE status = $1 AND automation_mode = $2 ORDER BY created_at`,
		UserStatusActive, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by mode: %w", err)
	}
	return collectUsers(rows)
}

// ListActiveUserKeywords returns the keyword projection for active users with
// at least one keyword.
func (db *DB) ListActiveUserKeywords(ctx context.Context) ([]UserKeywords, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, keywords, city, country FROM users
		 WHERE status = $1 AND cardinality(keywords) > 0`, UserStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list user keywords: %w", err)
	}
	defer rows.Close()

	var out []UserKeywords
	for rows.Next() {
		var uk UserKeywords
		if err := rows.Scan(&uk.UserID, &uk.Keywords, &uk.City, &uk.Country); err != nil {
			return nil, fmt.Errorf("failed to scan user keywords: %w", err)
		}
		out = append(out, uk)
	}
	return out, rows.Err()
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
