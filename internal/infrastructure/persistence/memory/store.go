// Package memory implements the gamification repositories in process memory.
// It backs the development server when no database is configured and the
// application tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements gamification.ProfileRepository.
type ProfileRepository struct {
	mu   sync.Mutex
	rows map[string]gamification.Profile
}

// NewProfileRepository creates an empty ProfileRepository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{rows: make(map[string]gamification.Profile)}
}

// Get returns the stored profile.
func (r *ProfileRepository) Get(_ context.Context, userID string) (*gamification.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.rows[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return &p, nil
}

// Upsert stores p and returns the replaced row.
func (r *ProfileRepository) Upsert(_ context.Context, p *gamification.Profile) (*gamification.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *p
	prev, ok := r.rows[p.UserID]
	if ok {
		stored.CreatedAt = prev.CreatedAt
	}
	r.rows[p.UserID] = stored

	if !ok {
		return nil, nil
	}
	return &prev, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type accessKey struct {
	userID string
	date   time.Time
}

// AttendanceRepository implements gamification.AttendanceRepository.
type AttendanceRepository struct {
	mu   sync.Mutex
	rows map[accessKey]gamification.DailyAccess
}

// NewAttendanceRepository creates an empty AttendanceRepository.
func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{rows: make(map[accessKey]gamification.DailyAccess)}
}

// Find returns the row for (user, date) or nil.
func (r *AttendanceRepository) Find(_ context.Context, userID string, date time.Time) (*gamification.DailyAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[accessKey{userID, date}]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// RecordAccess creates the row if missing.
func (r *AttendanceRepository) RecordAccess(_ context.Context, userID string, date, now time.Time) (*gamification.DailyAccess, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := accessKey{userID, date}
	if row, ok := r.rows[key]; ok {
		if row.RecordAccess(now) {
			r.rows[key] = row
		}
		return &row, false, nil
	}

	row := gamification.NewDailyAccess(userID, date, now)
	r.rows[key] = *row
	return row, true, nil
}

// Confirm moves an accessed row to checked.
func (r *AttendanceRepository) Confirm(_ context.Context, userID string, date, now time.Time) (*gamification.DailyAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := accessKey{userID, date}
	row, ok := r.rows[key]
	if !ok {
		return nil, shared.ErrNotYetAccessed
	}
	if err := row.Confirm(now); err != nil {
		return &row, err
	}
	r.rows[key] = row
	return &row, nil
}

// CountChecked counts the checked rows of the user.
func (r *AttendanceRepository) CountChecked(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, row := range r.rows {
		if key.userID == userID && row.IsChecked {
			n++
		}
	}
	return n, nil
}

// ListRange returns rows between from and to inclusive, ordered by date.
func (r *AttendanceRepository) ListRange(_ context.Context, userID string, from, to time.Time) ([]*gamification.DailyAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*gamification.DailyAccess
	for key, row := range r.rows {
		if key.userID != userID || key.date.Before(from) || key.date.After(to) {
			continue
		}
		row := row
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// FirstAccessDate returns the earliest recorded date of the user.
func (r *AttendanceRepository) FirstAccessDate(_ context.Context, userID string) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first time.Time
	found := false
	for key := range r.rows {
		if key.userID != userID {
			continue
		}
		if !found || key.date.Before(first) {
			first = key.date
			found = true
		}
	}
	return first, found, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements gamification.LedgerRepository.
// Apply holds the repository lock for the whole read-modify-write.
type LedgerRepository struct {
	mu   sync.Mutex
	rows map[string]gamification.SolvedProgress
}

// NewLedgerRepository creates an empty LedgerRepository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{rows: make(map[string]gamification.SolvedProgress)}
}

// Find returns the stored row or nil.
func (r *LedgerRepository) Find(_ context.Context, userID string) (*gamification.SolvedProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// Apply runs fn under the repository lock and stores its non-nil result.
func (r *LedgerRepository) Apply(
	_ context.Context,
	userID string,
	fn func(current *gamification.SolvedProgress) (*gamification.SolvedProgress, error),
) (*gamification.SolvedProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current *gamification.SolvedProgress
	if row, ok := r.rows[userID]; ok {
		current = &row
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	r.rows[userID] = *next
	stored := *next
	return &stored, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// Account is the slice of a user account the gamification core reads.
type Account struct {
	Username       string
	SolvedAcHandle string
	Submitted      int
}

// AccountStore implements gamification.AccountDirectory and
// gamification.SubmissionCounter over a seeded map.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewAccountStore creates an AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]Account)}
}

// Put creates or replaces an account.
func (s *AccountStore) Put(userID string, a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = a
}

// SolvedAcHandle returns the configured handle or "".
func (s *AccountStore) SolvedAcHandle(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[userID].SolvedAcHandle, nil
}

// Username returns the stored username.
// Unknown users get their ID as username so that dev mode works without seeding.
func (s *AccountStore) Username(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok || a.Username == "" {
		return userID, nil
	}
	return a.Username, nil
}

// CountSubmitted returns the seeded submission count.
func (s *AccountStore) CountSubmitted(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[userID].Submitted, nil
}
