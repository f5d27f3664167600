package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: GAMIFICATION PROFILE
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS gamification_profile (
    user_id     TEXT PRIMARY KEY,
    total_score INTEGER NOT NULL DEFAULT 0,
    stage       INTEGER NOT NULL DEFAULT 1,
    step        INTEGER NOT NULL DEFAULT 1,
    progress    DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_score CHECK (total_score >= 0),
    CONSTRAINT valid_progress CHECK (progress >= 0 AND progress <= 1)
);
`

const migration001Down = `
DROP TABLE IF EXISTS gamification_profile;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: DAILY LMS ACCESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS daily_lms_access (
    id           BIGSERIAL PRIMARY KEY,
    user_id      TEXT NOT NULL,
    access_date  DATE NOT NULL,
    has_accessed BOOLEAN NOT NULL DEFAULT FALSE,
    is_checked   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_daily_lms_access_user_date UNIQUE (user_id, access_date)
);

CREATE INDEX IF NOT EXISTS idx_daily_lms_access_checked
    ON daily_lms_access(user_id) WHERE is_checked;
`

const migration002Down = `
DROP TABLE IF EXISTS daily_lms_access;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SOLVED PROGRESS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS solved_progress (
    user_id               TEXT PRIMARY KEY,
    baseline_solved_count INTEGER NOT NULL DEFAULT 0,
    last_solved_count     INTEGER NOT NULL DEFAULT 0,
    credited_solved_count INTEGER NOT NULL DEFAULT 0,
    last_handle           TEXT NOT NULL DEFAULT '',
    created_at            TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_credited CHECK (credited_solved_count >= 0)
);
`

const migration003Down = `
DROP TABLE IF EXISTS solved_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: ACCOUNT AND SUBMISSION COLLABORATORS
// Owned by the account and assignment services; created here only if absent
// so a standalone deployment has something to read.
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS lms_accounts (
    user_id         TEXT PRIMARY KEY,
    username        TEXT NOT NULL,
    solvedac_handle TEXT,
    created_at      TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS assignment_submissions (
    id            BIGSERIAL PRIMARY KEY,
    user_id       TEXT NOT NULL,
    assignment_id TEXT NOT NULL,
    status        VARCHAR(20) NOT NULL DEFAULT 'draft',
    submitted_at  TIMESTAMP WITH TIME ZONE,

    CONSTRAINT uq_submission_user_assignment UNIQUE (user_id, assignment_id)
);

CREATE INDEX IF NOT EXISTS idx_assignment_submissions_submitted
    ON assignment_submissions(user_id) WHERE status = 'submitted';
`

const migration004Down = `
DROP TABLE IF EXISTS assignment_submissions;
DROP TABLE IF EXISTS lms_accounts;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: PROGRESS EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
CREATE TABLE IF NOT EXISTS progress_events (
    id          UUID PRIMARY KEY,
    user_id     TEXT NOT NULL,
    event_type  VARCHAR(64) NOT NULL,
    payload     JSONB NOT NULL DEFAULT '{}'::jsonb,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_progress_events_user_time
    ON progress_events(user_id, occurred_at DESC);
`

const migration005Down = `
DROP TABLE IF EXISTS progress_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_gamification_profile", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_daily_lms_access", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_solved_progress", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_collaborator_tables", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_progress_events", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migrator applies and rolls back migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions and when they were applied.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return ran, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		ran++
	}

	return ran, nil
}

// Rollback rolls back the last applied migration. It returns the version
// rolled back, or 0 when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}
	if lastVersion == 0 {
		return 0, nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return 0, fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	err = m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d: %w", lastVersion, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), lastVersion)
		return err
	})
	if err != nil {
		return 0, err
	}
	return lastVersion, nil
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)

	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}
	return result, nil
}
