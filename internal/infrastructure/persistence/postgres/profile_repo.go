package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
)

// ProfileRepository implements gamification.ProfileRepository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `user_id, total_score, stage, step, progress, created_at, updated_at`

// Get returns the profile or ErrProfileNotFound.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*gamification.Profile, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM gamification_profile WHERE user_id = $1`, userID)
	p, err := scanProfile(row)
	if IsNoRows(err) {
		return nil, shared.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Upsert writes p under the profile row lock and returns the replaced row.
func (r *ProfileRepository) Upsert(ctx context.Context, p *gamification.Profile) (*gamification.Profile, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var previous *gamification.Profile
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM gamification_profile WHERE user_id = $1 FOR UPDATE`, p.UserID)
		prev, err := scanProfile(row)
		switch {
		case IsNoRows(err):
		case err != nil:
			return fmt.Errorf("lock profile: %w", err)
		default:
			previous = prev
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO gamification_profile (user_id, total_score, stage, step, progress, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id) DO UPDATE SET
				total_score = EXCLUDED.total_score,
				stage       = EXCLUDED.stage,
				step        = EXCLUDED.step,
				progress    = EXCLUDED.progress,
				updated_at  = EXCLUDED.updated_at`,
			p.UserID, p.TotalScore, p.Stage, p.Step, p.Progress, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func scanProfile(row pgx.Row) (*gamification.Profile, error) {
	var p gamification.Profile
	if err := row.Scan(&p.UserID, &p.TotalScore, &p.Stage, &p.Step, &p.Progress, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
