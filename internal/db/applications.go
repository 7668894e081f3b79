package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const applicationColumns = `id, user_id, user_job_id, resume_id, recipient_email, sender_email,
	subject, body, cover_letter, status, retry_count, error_message, message_id,
	scheduled_send_at, sent_at, created_at, updated_at`

func scanApplication(row pgx.Row) (*JobApplication, error) {
	var a JobApplication
	var status string
	if err := row.Scan(&a.ID, &a.UserID, &a.UserJobID, &a.ResumeID, &a.RecipientEmail, &a.SenderEmail,
		&a.Subject, &a.Body, &a.CoverLetter, &status, &a.RetryCount, &a.ErrorMessage, &a.MessageID,
		&a.ScheduledSendAt, &a.SentAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = ApplicationStatus(status)
	return &a, nil
}

func getApplication(ctx context.Context, db *DB, where string, args ...any) (*JobApplication, error) {
	a, err := scanApplication(db.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE `+where, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return a, nil
}

func statusStrings(statuses []ApplicationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// UpsertDraft creates the application for a link in DRAFT, or replaces the
// content of an existing DRAFT. Returns nil, nil when the existing application
// has already moved past DRAFT.
func (db *DB) UpsertDraft(ctx context.Context, in DraftInput) (*JobApplication, error) {
	a, err := scanApplication(db.pool.QueryRow(ctx,
		`INSERT INTO job_applications (user_id, user_job_id, resume_id, recipient_email, sender_email,
			subject, body, cover_letter, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'DRAFT')
		 ON CONFLICT (user_job_id) DO UPDATE SET
			resume_id       = EXCLUDED.resume_id,
			recipient_email = EXCLUDED.recipient_email,
			sender_email    = EXCLUDED.sender_email,
			subject         = EXCLUDED.subject,
			body            = EXCLUDED.body,
			cover_letter    = EXCLUDED.cover_letter,
			updated_at      = NOW()
		 WHERE job_applications.status = 'DRAFT'
		 RETURNING `+applicationColumns,
		in.UserID, in.UserJobID, in.ResumeID, in.RecipientEmail, in.SenderEmail,
		in.Subject, in.Body, in.CoverLetter))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to upsert draft: %w", err)
	}
	return a, nil
}

// GetApplication retrieves an application by ID. Returns nil, nil when not found.
func (db *DB) GetApplication(ctx context.Context, id uuid.UUID) (*JobApplication, error) {
	return getApplication(ctx, db, `id = $1`, id)
}

// GetApplicationByUserJob retrieves the application for a link.
func (db *DB) GetApplicationByUserJob(ctx context.Context, userJobID uuid.UUID) (*JobApplication, error) {
	return getApplication(ctx, db, `user_job_id = $1`, userJobID)
}

// GetApplicationByMessageID retrieves the application sent with the given provider message id.
func (db *DB) GetApplicationByMessageID(ctx context.Context, messageID string) (*JobApplication, error) {
	if messageID == "" {
		return nil, nil
	}
	return getApplication(ctx, db, `message_id = $1`, messageID)
}

// GetLatestSentToRecipient retrieves the most recently sent application to an address.
func (db *DB) GetLatestSentToRecipient(ctx context.Context, email string) (*JobApplication, error) {
	return getApplication(ctx, db,
		`lower(recipient_email) = lower($1) AND status IN ('SENT', 'BOUNCED') ORDER BY sent_at DESC NULLS LAST LIMIT 1`,
		email)
}

// TransitionApplication moves an application to status `to` only if its
// current status is one of `from`, applying the optional column updates in
// the same statement. Returns nil, nil when the guard did not match, which
// means another writer got there first or the transition is not valid from
// the stored state.
func (db *DB) TransitionApplication(ctx context.Context, id uuid.UUID, from []ApplicationStatus, to ApplicationStatus, upd TransitionUpdate) (*JobApplication, error) {
	sets := []string{"status = $3", "updated_at = NOW()"}
	args := []any{id, statusStrings(from), string(to)}
	argNum := 4

	if upd.ErrorMessage != nil {
		sets = append(sets, fmt.Sprintf("error_message = $%d", argNum))
		args = append(args, *upd.ErrorMessage)
		argNum++
	}
	if upd.MessageID != nil {
		sets = append(sets, fmt.Sprintf("message_id = $%d", argNum))
		args = append(args, *upd.MessageID)
		argNum++
	}
	if upd.ScheduledSendAt != nil {
		sets = append(sets, fmt.Sprintf("scheduled_send_at = $%d", argNum))
		args = append(args, *upd.ScheduledSendAt)
		argNum++
	}
	if upd.SentAt != nil {
		sets = append(sets, fmt.Sprintf("sent_at = $%d", argNum))
		args = append(args, *upd.SentAt)
	}
	if upd.ResetRetries {
		sets = append(sets, "retry_count = 0", "error_message = ''")
	}
	if upd.IncrementRetry {
		sets = append(sets, "retry_count = retry_count + 1")
	}

	query := `UPDATE job_applications SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND status = ANY($2) RETURNING ` + applicationColumns

	a, err := scanApplication(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to transition application to %s: %w", to, err)
	}
	return a, nil
}

// ListDueApplications returns READY applications whose scheduled send time has
// passed, oldest first.
func (db *DB) ListDueApplications(ctx context.Context, now time.Time, limit int) ([]JobApplication, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM job_applications
		 WHERE status = 'READY' AND (scheduled_send_at IS NULL OR scheduled_send_at <= $1)
		 ORDER BY COALESCE(scheduled_send_at, created_at), created_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due applications: %w", err)
	}
	defer rows.Close()

	var out []JobApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// RecoverStuckSending fails every SENDING application untouched since cutoff
// and returns the affected IDs. The single UPDATE resolves each row once even
// when two sweeps overlap.
func (db *DB) RecoverStuckSending(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	rows, err := db.pool.Query(ctx,
		`UPDATE job_applications
		 SET status = 'FAILED', error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		 WHERE status = 'SENDING' AND updated_at < $1
		 RETURNING id`, cutoff, message)
	if err != nil {
		return nil, fmt.Errorf("failed to recover stuck applications: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recovered id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountSendsSince counts a user's applications sent since the given time plus
// those currently in flight.
func (db *DB) CountSendsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM job_applications
		 WHERE user_id = $1
		   AND ((status IN ('SENT', 'BOUNCED') AND sent_at >= $2) OR status = 'SENDING')`,
		userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sends: %w", err)
	}
	return n, nil
}
