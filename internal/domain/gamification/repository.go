package gamification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository stores the one-row-per-user gamification snapshot.
type ProfileRepository interface {
	// Get returns the stored profile.
	// Returns ErrProfileNotFound if the user has none.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Upsert writes p under a row lock and returns the row it replaced,
	// or nil if the profile was created.
	Upsert(ctx context.Context, p *Profile) (previous *Profile, err error)
}

// AttendanceRepository stores DailyAccess rows keyed by (user, date).
type AttendanceRepository interface {
	// Find returns the row for (user, date), or nil if none exists.
	Find(ctx context.Context, userID string, date time.Time) (*DailyAccess, error)

	// RecordAccess creates the row in the accessed state if it is missing.
	// created is false when a row already existed.
	RecordAccess(ctx context.Context, userID string, date, now time.Time) (row *DailyAccess, created bool, err error)

	// Confirm atomically moves an accessed row to checked.
	// Returns ErrNotYetAccessed or ErrAlreadyChecked otherwise.
	Confirm(ctx context.Context, userID string, date, now time.Time) (*DailyAccess, error)

	// CountChecked returns the number of checked days of the user.
	CountChecked(ctx context.Context, userID string) (int, error)

	// ListRange returns the rows with from <= date <= to, ordered by date.
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]*DailyAccess, error)

	// FirstAccessDate returns the earliest recorded date. ok is false if none.
	FirstAccessDate(ctx context.Context, userID string) (date time.Time, ok bool, err error)
}

// LedgerRepository stores the one-row-per-user SolvedProgress.
type LedgerRepository interface {
	// Find returns the stored row, or nil if none exists.
	Find(ctx context.Context, userID string) (*SolvedProgress, error)

	// Apply runs fn with the current row (nil if none) under a per-user row lock.
	// A non-nil result of fn is persisted; nil leaves the row untouched.
	// Apply returns the row as it stands afterwards.
	Apply(ctx context.Context, userID string, fn func(current *SolvedProgress) (*SolvedProgress, error)) (*SolvedProgress, error)
}

// ProgressEntry is one audited gamification event.
type ProgressEntry struct {
	ID         string
	UserID     string
	EventType  string
	Payload    map[string]interface{}
	OccurredAt time.Time
}

// ProgressLog is the append-only audit trail of progression events.
type ProgressLog interface {
	// Append stores an entry.
	Append(ctx context.Context, entry ProgressEntry) error

	// Recent returns up to limit entries of the user, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]ProgressEntry, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// Owned by other parts of the LMS and only read here.
// ══════════════════════════════════════════════════════════════════════════════

// AccountDirectory reads user account fields.
type AccountDirectory interface {
	// SolvedAcHandle returns the user's solved.ac handle, or "" if none is configured.
	SolvedAcHandle(ctx context.Context, userID string) (string, error)

	// Username returns the login name of the user.
	Username(ctx context.Context, userID string) (string, error)
}

// SubmissionCounter counts submitted assignments.
type SubmissionCounter interface {
	// CountSubmitted returns the number of assignments the user has submitted.
	CountSubmitted(ctx context.Context, userID string) (int, error)
}
