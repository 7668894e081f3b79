package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AcquireLock marks the named lock as running for holder if it is idle or
// its current run started more than ttl ago. The insert-or-reclaim is a
// single statement, so at most one caller wins.
func (db *DB) AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	var got string
	err := db.pool.QueryRow(ctx,
		`INSERT INTO system_locks (name, holder, is_running, started_at, completed_at)
		 VALUES ($1, $2, TRUE, NOW(), NULL)
		 ON CONFLICT (name) DO UPDATE SET
			holder       = EXCLUDED.holder,
			is_running   = TRUE,
			started_at   = EXCLUDED.started_at,
			completed_at = NULL
		 WHERE NOT system_locks.is_running
		    OR system_locks.started_at < NOW() - make_interval(secs => $3)
		 RETURNING name`,
		name, holder, ttl.Seconds(),
	).Scan(&got)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return true, nil
}

// ReleaseLock marks the named lock idle and stamps its completion time, if
// holder still owns the current run.
func (db *DB) ReleaseLock(ctx context.Context, name, holder string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE system_locks SET is_running = FALSE, completed_at = NOW()
		 WHERE name = $1 AND holder = $2 AND is_running`, name, holder)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

// GetLock returns the named lock's state. Returns nil, nil when the lock has
// never been taken.
func (db *DB) GetLock(ctx context.Context, name string) (*SystemLock, error) {
	var l SystemLock
	err := db.pool.QueryRow(ctx,
		`SELECT name, holder, is_running, started_at, completed_at FROM system_locks WHERE name = $1`, name,
	).Scan(&l.Name, &l.Holder, &l.IsRunning, &l.StartedAt, &l.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lock %s: %w", name, err)
	}
	return &l, nil
}

// InsertSystemLog appends an operational event.
func (db *DB) InsertSystemLog(ctx context.Context, entry SystemLog) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO system_logs (type, source, message, metadata) VALUES ($1, $2, $3, $4)`,
		entry.Type, entry.Source, entry.Message, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert system log: %w", err)
	}
	return nil
}

// CountSystemLogs counts events of one type and source since the given time.
func (db *DB) CountSystemLogs(ctx context.Context, logType, source string, since time.Time) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM system_logs WHERE type = $1 AND source = $2 AND created_at >= $3`,
		logType, source, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count system logs: %w", err)
	}
	return n, nil
}

// CountSystemLogsOfKind is CountSystemLogs narrowed to events whose metadata
// carries the given kind.
func (db *DB) CountSystemLogsOfKind(ctx context.Context, logType, source, kind string, since time.Time) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM system_logs
		 WHERE type = $1 AND source = $2 AND metadata->>'kind' = $3 AND created_at >= $4`,
		logType, source, kind, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count system logs of kind %s: %w", kind, err)
	}
	return n, nil
}

// CountSystemLogsByType groups events since the given time by type.
func (db *DB) CountSystemLogsByType(ctx context.Context, since time.Time) (Counts, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT type, COUNT(*) FROM system_logs WHERE created_at >= $1 GROUP BY type`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count system logs by type: %w", err)
	}
	defer rows.Close()

	counts := Counts{}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("failed to scan log count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// LatestSystemLog returns the newest event of a type, optionally filtered by source.
func (db *DB) LatestSystemLog(ctx context.Context, logType, source string) (*SystemLog, error) {
	query := `SELECT id, type, source, message, metadata, created_at FROM system_logs WHERE type = $1`
	args := []any{logType}
	if source != "" {
		query += ` AND source = $2`
		args = append(args, source)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var l SystemLog
	err := db.pool.QueryRow(ctx, query, args...).Scan(&l.ID, &l.Type, &l.Source, &l.Message, &l.Metadata, &l.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest system log: %w", err)
	}
	return &l, nil
}

// PruneSystemLogs deletes events older than cutoff.
func (db *DB) PruneSystemLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM system_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune system logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
