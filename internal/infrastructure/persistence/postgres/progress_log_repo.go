package postgres

import (
	"context"
	"fmt"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
)

// ProgressLogRepository implements gamification.ProgressLog for PostgreSQL.
// Payloads are stored as JSONB.
type ProgressLogRepository struct {
	conn *Connection
}

// NewProgressLogRepository creates a new ProgressLogRepository.
func NewProgressLogRepository(conn *Connection) *ProgressLogRepository {
	return &ProgressLogRepository{conn: conn}
}

// Append stores an entry. Re-appending the same ID is a no-op.
func (r *ProgressLogRepository) Append(ctx context.Context, entry gamification.ProgressEntry) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	payload := entry.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO progress_events (id, user_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.UserID, entry.EventType, payload, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append progress event: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (r *ProgressLogRepository) Recent(ctx context.Context, userID string, limit int) ([]gamification.ProgressEntry, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id::text, user_id, event_type, payload, occurred_at
		FROM progress_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query progress events: %w", err)
	}
	defer rows.Close()

	var out []gamification.ProgressEntry
	for rows.Next() {
		var e gamification.ProgressEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.Payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan progress event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
