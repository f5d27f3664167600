package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
)

// openTestConnection migrates a throwaway schema on DATABASE_URL and drops it
// when the test ends.
func openTestConnection(t *testing.T) *Connection {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := NewConnection(ctx, Config{URL: url})
	require.NoError(t, err)
	schema := "lms_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	conn, err := NewConnection(ctx, Config{URL: url, Schema: schema, MaxConns: 16, QueryTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	ran, err := NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, len(GetMigrations()), ran)
	return conn
}

var itDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func TestAttendanceRepository_Postgres(t *testing.T) {
	conn := openTestConnection(t)
	repo := NewAttendanceRepository(conn)
	ctx := context.Background()
	now := itDay.Add(9 * time.Hour)

	_, err := repo.Confirm(ctx, "u1", itDay, now)
	assert.ErrorIs(t, err, shared.ErrNotYetAccessed)

	first, inserted, err := repo.RecordAccess(ctx, "u1", itDay, now)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, gamification.StateAccessed, first.State())

	again, inserted, err := repo.RecordAccess(ctx, "u1", itDay, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.True(t, first.UpdatedAt.Equal(again.UpdatedAt))

	t.Run("exactly one concurrent confirm wins", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			wins    int
			already int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Confirm(ctx, "u1", itDay, now.Add(2*time.Hour))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case assert.ErrorIs(t, err, shared.ErrAlreadyChecked):
					already++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
		assert.Equal(t, 7, already)
	})

	n, err := repo.CountChecked(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, _, err = repo.RecordAccess(ctx, "u1", itDay.AddDate(0, 0, 2), now)
	require.NoError(t, err)
	rows, err := repo.ListRange(ctx, "u1", itDay, itDay.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].IsChecked)
	assert.False(t, rows[1].IsChecked)

	firstDate, ok, err := repo.FirstAccessDate(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, itDay.Equal(firstDate))

	_, ok, err = repo.FirstAccessDate(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerRepository_Postgres(t *testing.T) {
	conn := openTestConnection(t)
	repo := NewLedgerRepository(conn)
	ctx := context.Background()

	row, err := repo.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, row)

	// concurrent first observations: one creates, the rest see its row
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Apply(ctx, "u1", func(cur *gamification.SolvedProgress) (*gamification.SolvedProgress, error) {
				res := gamification.Reconcile(cur, "u1", "kimcoder", 50, itDay)
				if !res.Changed() {
					return nil, nil
				}
				if res.Outcome == gamification.OutcomeCreated {
					mu.Lock()
					created++
					mu.Unlock()
				}
				return &res.Next, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	row, err = repo.Find(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "kimcoder", row.LastHandle)
	assert.Equal(t, 50, row.BaselineSolvedCount)
	assert.Zero(t, row.CreditedSolvedCount)
	assert.GreaterOrEqual(t, created, 1)

	after, err := repo.Apply(ctx, "u1", func(cur *gamification.SolvedProgress) (*gamification.SolvedProgress, error) {
		res := gamification.Reconcile(cur, "u1", "kimcoder", cur.LastSolvedCount+4, itDay)
		return &res.Next, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, after.CreditedSolvedCount)

	unchanged, err := repo.Apply(ctx, "u1", func(*gamification.SolvedProgress) (*gamification.SolvedProgress, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, after.CreditedSolvedCount, unchanged.CreditedSolvedCount)

	_, err = repo.Apply(ctx, "u1", func(*gamification.SolvedProgress) (*gamification.SolvedProgress, error) {
		return nil, fmt.Errorf("rejected")
	})
	assert.EqualError(t, err, "rejected")
}

func TestProfileRepository_Postgres(t *testing.T) {
	conn := openTestConnection(t)
	repo := NewProfileRepository(conn)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrProfileNotFound)

	p := gamification.NewProfile("u1", itDay)
	p.TotalScore, p.Stage, p.Step, p.Progress = 1260, 2, 3, 0.3
	prev, err := repo.Upsert(ctx, p)
	require.NoError(t, err)
	assert.Nil(t, prev)

	next := *p
	next.TotalScore, next.Stage, next.Step, next.Progress = 4200, 2, 5, 1
	prev, err = repo.Upsert(ctx, &next)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, 1260, prev.TotalScore)

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4200, got.TotalScore)
	assert.Equal(t, 5, got.Step)
	assert.InDelta(t, 1.0, got.Progress, 1e-9)
}

func TestAccountAndProgressLog_Postgres(t *testing.T) {
	conn := openTestConnection(t)
	ctx := context.Background()

	_, err := conn.Exec(ctx, `
		INSERT INTO lms_accounts (user_id, username, solvedac_handle) VALUES
			('u1', 'kim', 'kimcoder'), ('u2', 'lee', NULL)`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `
		INSERT INTO assignment_submissions (user_id, assignment_id, status) VALUES
			('u1', 'a1', 'submitted'), ('u1', 'a2', 'draft'), ('u1', 'a3', 'submitted')`)
	require.NoError(t, err)

	accounts := NewAccountRepository(conn)
	handle, err := accounts.SolvedAcHandle(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "kimcoder", handle)
	handle, err = accounts.SolvedAcHandle(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, handle)
	name, err := accounts.Username(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", name)
	n, err := accounts.CountSubmitted(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	log := NewProgressLogRepository(conn)
	entry := gamification.ProgressEntry{
		ID:         uuid.NewString(),
		UserID:     "u1",
		EventType:  string(shared.EventSolvedCredited),
		Payload:    map[string]interface{}{"delta": 3},
		OccurredAt: itDay,
	}
	require.NoError(t, log.Append(ctx, entry))
	require.NoError(t, log.Append(ctx, entry))

	recent, err := log.Recent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, entry.ID, recent[0].ID)
	assert.EqualValues(t, 3, recent[0].Payload["delta"])
}
