package postgres

import (
	"context"
	"fmt"
)

// AccountRepository reads the account and submission tables owned by the
// rest of the LMS. It implements gamification.AccountDirectory and
// gamification.SubmissionCounter.
type AccountRepository struct {
	conn *Connection
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(conn *Connection) *AccountRepository {
	return &AccountRepository{conn: conn}
}

// SolvedAcHandle returns the configured handle, or "" when unset or when
// the account does not exist.
func (r *AccountRepository) SolvedAcHandle(ctx context.Context, userID string) (string, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var handle *string
	err := r.conn.QueryRow(ctx, `SELECT solvedac_handle FROM lms_accounts WHERE user_id = $1`, userID).Scan(&handle)
	if IsNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get solved.ac handle: %w", err)
	}
	if handle == nil {
		return "", nil
	}
	return *handle, nil
}

// Username returns the login name. Unknown accounts fall back to the user ID.
func (r *AccountRepository) Username(ctx context.Context, userID string) (string, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var username string
	err := r.conn.QueryRow(ctx, `SELECT username FROM lms_accounts WHERE user_id = $1`, userID).Scan(&username)
	if IsNoRows(err) {
		return userID, nil
	}
	if err != nil {
		return "", fmt.Errorf("get username: %w", err)
	}
	return username, nil
}

// CountSubmitted counts assignments in the submitted status.
func (r *AccountRepository) CountSubmitted(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM assignment_submissions
		WHERE user_id = $1 AND status = 'submitted'`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}
