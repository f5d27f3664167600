package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
)

// LedgerRepository implements gamification.LedgerRepository for PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

const ledgerColumns = `user_id, baseline_solved_count, last_solved_count, credited_solved_count,
	last_handle, created_at, updated_at`

// Find returns the stored row, or nil.
func (r *LedgerRepository) Find(ctx context.Context, userID string) (*gamification.SolvedProgress, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM solved_progress WHERE user_id = $1`, userID)
	p, err := scanLedger(row)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find solved progress: %w", err)
	}
	return p, nil
}

// Apply runs fn under SELECT ... FOR UPDATE. When the row is missing, the
// insert is guarded by ON CONFLICT DO NOTHING; losing that race means another
// writer created the row first, so fn is re-run against it under the lock.
func (r *LedgerRepository) Apply(
	ctx context.Context,
	userID string,
	fn func(current *gamification.SolvedProgress) (*gamification.SolvedProgress, error),
) (*gamification.SolvedProgress, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var result *gamification.SolvedProgress
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for attempt := 0; attempt < 2; attempt++ {
			current, err := lockLedger(ctx, tx, userID)
			if err != nil {
				return err
			}

			next, err := fn(current)
			if err != nil {
				return err
			}
			if next == nil {
				result = current
				return nil
			}

			if current != nil {
				if err := updateLedger(ctx, tx, next); err != nil {
					return err
				}
				result = next
				return nil
			}

			inserted, err := insertLedger(ctx, tx, next)
			if err != nil {
				return err
			}
			if inserted {
				result = next
				return nil
			}
		}
		return fmt.Errorf("apply solved progress: %w", ErrTransactionFailed)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func lockLedger(ctx context.Context, tx pgx.Tx, userID string) (*gamification.SolvedProgress, error) {
	row := tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM solved_progress WHERE user_id = $1 FOR UPDATE`, userID)
	p, err := scanLedger(row)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock solved progress: %w", err)
	}
	return p, nil
}

func insertLedger(ctx context.Context, tx pgx.Tx, p *gamification.SolvedProgress) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO solved_progress (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO NOTHING`,
		p.UserID, p.BaselineSolvedCount, p.LastSolvedCount, p.CreditedSolvedCount,
		p.LastHandle, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert solved progress: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func updateLedger(ctx context.Context, tx pgx.Tx, p *gamification.SolvedProgress) error {
	_, err := tx.Exec(ctx, `
		UPDATE solved_progress SET
			baseline_solved_count = $2,
			last_solved_count     = $3,
			credited_solved_count = $4,
			last_handle           = $5,
			updated_at            = $6
		WHERE user_id = $1`,
		p.UserID, p.BaselineSolvedCount, p.LastSolvedCount, p.CreditedSolvedCount,
		p.LastHandle, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update solved progress: %w", err)
	}
	return nil
}

func scanLedger(row pgx.Row) (*gamification.SolvedProgress, error) {
	var p gamification.SolvedProgress
	err := row.Scan(
		&p.UserID,
		&p.BaselineSolvedCount,
		&p.LastSolvedCount,
		&p.CreditedSolvedCount,
		&p.LastHandle,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
