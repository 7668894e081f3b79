package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const resumeColumns = `id, user_id, name, language, categories, skills, content, is_default, deleted_at, created_at, updated_at`

func scanResume(row pgx.Row) (*Resume, error) {
	var r Resume
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Language, &r.Categories, &r.Skills,
		&r.Content, &r.IsDefault, &r.DeletedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateResume stores an uploaded résumé. Marking it default clears the flag
// on the user's other résumés in the same transaction.
func (db *DB) CreateResume(ctx context.Context, in ResumeInput) (*Resume, error) {
	lang := in.Language
	if lang == "" {
		lang = "en"
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if in.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE resumes SET is_default = FALSE WHERE user_id = $1 AND is_default`, in.UserID); err != nil {
			return nil, fmt.Errorf("failed to clear default resume: %w", err)
		}
	}

	r, err := scanResume(tx.QueryRow(ctx,
		`INSERT INTO resumes (user_id, name, language, categories, skills, content, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+resumeColumns,
		in.UserID, in.Name, lang, nonNil(in.Categories), nonNil(in.Skills), in.Content, in.IsDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create resume: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit resume: %w", err)
	}
	return r, nil
}

// GetResume retrieves a résumé by ID. Returns nil, nil when not found.
func (db *DB) GetResume(ctx context.Context, id uuid.UUID) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return r, nil
}

// ListResumesByUser returns a user's live résumés, most recently updated first.
func (db *DB) ListResumesByUser(ctx context.Context, userID uuid.UUID) ([]Resume, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE user_id = $1 AND deleted_at IS NULL ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	defer rows.Close()

	var out []Resume
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resume: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountResumesByUser returns how many live résumés a user has.
func (db *DB) CountResumesByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM resumes WHERE user_id = $1 AND deleted_at IS NULL`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count resumes: %w", err)
	}
	return n, nil
}

// UpdateResumeContent replaces the text and skills of a résumé after a re-upload.
func (db *DB) UpdateResumeContent(ctx context.Context, id uuid.UUID, content string, skills []string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE resumes SET content = $2, skills = $3, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id, content, nonNil(skills))
	if err != nil {
		return fmt.Errorf("failed to update resume: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update resume: %s not found", id)
	}
	return nil
}

// SoftDeleteResume hides a résumé from matching while keeping it for past
// applications that reference it. Returns false when the user owns no such
// live résumé.
func (db *DB) SoftDeleteResume(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE resumes SET deleted_at = NOW(), is_default = FALSE, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete resume: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
