package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
)

// AttendanceRepository implements gamification.AttendanceRepository for PostgreSQL.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

const accessColumns = `user_id, access_date, has_accessed, is_checked, created_at, updated_at`

// Find returns the row for (user, date), or nil.
func (r *AttendanceRepository) Find(ctx context.Context, userID string, date time.Time) (*gamification.DailyAccess, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx,
		`SELECT `+accessColumns+` FROM daily_lms_access WHERE user_id = $1 AND access_date = $2`,
		userID, date)
	access, err := scanAccess(row)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find daily access: %w", err)
	}
	return access, nil
}

// RecordAccess inserts the row in the accessed state, or marks an existing row accessed.
func (r *AttendanceRepository) RecordAccess(ctx context.Context, userID string, date, now time.Time) (*gamification.DailyAccess, bool, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	// xmax = 0 only for a freshly inserted tuple
	row := r.conn.QueryRow(ctx, `
		INSERT INTO daily_lms_access (user_id, access_date, has_accessed, is_checked, created_at, updated_at)
		VALUES ($1, $2, TRUE, FALSE, $3, $3)
		ON CONFLICT (user_id, access_date) DO UPDATE SET
			has_accessed = TRUE,
			updated_at = CASE WHEN daily_lms_access.has_accessed
				THEN daily_lms_access.updated_at ELSE EXCLUDED.updated_at END
		RETURNING `+accessColumns+`, (xmax = 0) AS inserted`,
		userID, date, now)

	var a gamification.DailyAccess
	var inserted bool
	if err := row.Scan(&a.UserID, &a.Date, &a.HasAccessed, &a.IsChecked, &a.CreatedAt, &a.UpdatedAt, &inserted); err != nil {
		return nil, false, fmt.Errorf("record access: %w", err)
	}
	return &a, inserted, nil
}

// Confirm stamps the day with a conditional update. When nothing matches,
// the row is re-read to tell NotYetAccessed from AlreadyChecked.
func (r *AttendanceRepository) Confirm(ctx context.Context, userID string, date, now time.Time) (*gamification.DailyAccess, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, `
		UPDATE daily_lms_access
		SET is_checked = TRUE, updated_at = $3
		WHERE user_id = $1 AND access_date = $2 AND has_accessed AND NOT is_checked
		RETURNING `+accessColumns,
		userID, date, now)

	access, err := scanAccess(row)
	if err == nil {
		return access, nil
	}
	if !IsNoRows(err) {
		return nil, fmt.Errorf("confirm attendance: %w", err)
	}

	current, err := r.Find(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if current.State() == gamification.StateChecked {
		return current, shared.ErrAlreadyChecked
	}
	return current, shared.ErrNotYetAccessed
}

// CountChecked returns the number of stamped days.
func (r *AttendanceRepository) CountChecked(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var n int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM daily_lms_access WHERE user_id = $1 AND is_checked`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count checked days: %w", err)
	}
	return n, nil
}

// ListRange returns the rows with from <= date <= to, ordered by date.
func (r *AttendanceRepository) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*gamification.DailyAccess, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT `+accessColumns+`
		FROM daily_lms_access
		WHERE user_id = $1 AND access_date BETWEEN $2 AND $3
		ORDER BY access_date`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily access: %w", err)
	}
	defer rows.Close()

	var out []*gamification.DailyAccess
	for rows.Next() {
		a, err := scanAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily access: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FirstAccessDate returns the earliest recorded date.
func (r *AttendanceRepository) FirstAccessDate(ctx context.Context, userID string) (time.Time, bool, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var first *time.Time
	err := r.conn.QueryRow(ctx,
		`SELECT MIN(access_date) FROM daily_lms_access WHERE user_id = $1`, userID).Scan(&first)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("first access date: %w", err)
	}
	if first == nil {
		return time.Time{}, false, nil
	}
	return *first, true, nil
}

func scanAccess(row pgx.Row) (*gamification.DailyAccess, error) {
	var a gamification.DailyAccess
	if err := row.Scan(&a.UserID, &a.Date, &a.HasAccessed, &a.IsChecked, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
