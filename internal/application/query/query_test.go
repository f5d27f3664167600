package query_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dororo-lms/lms-backend/internal/application/command"
	"github.com/dororo-lms/lms-backend/internal/application/query"
	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/persistence/memory"
	"github.com/dororo-lms/lms-backend/pkg/timeutil"
)

var now = time.Date(2026, 3, 10, 14, 0, 0, 0, timeutil.DefaultLocation)

func day(d int) time.Time { return timeutil.Date(2026, 3, d) }

// seed creates rows for the given days; checked days are also stamped.
func seed(t *testing.T, repo *memory.AttendanceRepository, userID string, accessed []int, checked []int) {
	t.Helper()
	ctx := context.Background()
	for _, d := range accessed {
		_, _, err := repo.RecordAccess(ctx, userID, day(d), now)
		require.NoError(t, err)
	}
	for _, d := range checked {
		_, err := repo.Confirm(ctx, userID, day(d), now)
		require.NoError(t, err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Attendance status
// ──────────────────────────────────────────────────────────────────────────────

func TestAttendanceStatus(t *testing.T) {
	repo := memory.NewAttendanceRepository()
	h := query.NewAttendanceStatusHandler(repo, nil)

	res, err := h.Handle(context.Background(), query.AttendanceStatusQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, gamification.SlotCurrent, res.FirstDayStatus)
	assert.Equal(t, gamification.SlotUpcoming, res.SixthDayStatus)

	seed(t, repo, "u1", []int{3, 4, 5}, []int{3, 5})

	res, err = h.Handle(context.Background(), query.AttendanceStatusQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []gamification.SlotStatus{
		gamification.SlotDone, gamification.SlotDone, gamification.SlotCurrent,
		gamification.SlotUpcoming, gamification.SlotUpcoming, gamification.SlotUpcoming,
	}, slots(res))

	_, err = h.Handle(context.Background(), query.AttendanceStatusQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Today attendance
// ──────────────────────────────────────────────────────────────────────────────

func TestTodayAttendance(t *testing.T) {
	repo := memory.NewAttendanceRepository()
	clock := timeutil.FixedClock(now, nil)
	h := query.NewTodayAttendanceHandler(repo, clock)
	ctx := context.Background()

	res, err := h.Handle(ctx, query.TodayAttendanceQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, query.TodayAttendanceDTO{Date: "2026-03-10"}, *res)

	// reading does not create the day
	row, err := repo.Find(ctx, "u1", day(10))
	require.NoError(t, err)
	assert.Nil(t, row)

	seed(t, repo, "u1", []int{10}, nil)
	res, err = h.Handle(ctx, query.TodayAttendanceQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.HasAccessed)
	assert.False(t, res.IsChecked)
	assert.True(t, res.CanCheck)

	seed(t, repo, "u1", nil, []int{10})
	res, err = h.Handle(ctx, query.TodayAttendanceQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.IsChecked)
	assert.False(t, res.CanCheck)
}

// ──────────────────────────────────────────────────────────────────────────────
// Attendance map
// ──────────────────────────────────────────────────────────────────────────────

func TestAttendanceMap(t *testing.T) {
	tests := []struct {
		name      string
		accessed  []int
		checked   []int
		wantStart string
		wantIndex int
		want      []gamification.SlotStatus
	}{
		{
			name:      "no history starts today",
			wantStart: "2026-03-10",
			wantIndex: 1,
			want:      []gamification.SlotStatus{"upcoming", "upcoming", "upcoming", "upcoming", "upcoming", "upcoming"},
		},
		{
			name:      "mixed past and today accessed",
			accessed:  []int{7, 8, 10},
			checked:   []int{7},
			wantStart: "2026-03-07",
			wantIndex: 4,
			want:      []gamification.SlotStatus{"done", "upcoming", "upcoming", "current", "upcoming", "upcoming"},
		},
		{
			name:      "today stamped",
			accessed:  []int{9, 10},
			checked:   []int{9, 10},
			wantStart: "2026-03-09",
			wantIndex: 2,
			want:      []gamification.SlotStatus{"done", "done", "upcoming", "upcoming", "upcoming", "upcoming"},
		},
		{
			name:      "window already passed",
			accessed:  []int{1, 2},
			checked:   []int{1},
			wantStart: "2026-03-01",
			wantIndex: 6,
			want:      []gamification.SlotStatus{"done", "upcoming", "upcoming", "upcoming", "upcoming", "upcoming"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewAttendanceRepository()
			seed(t, repo, "u1", tt.accessed, tt.checked)
			h := query.NewAttendanceMapHandler(repo, timeutil.FixedClock(now, nil))

			res, err := h.Handle(context.Background(), query.AttendanceMapQuery{UserID: "u1"})
			require.NoError(t, err)
			require.Len(t, res.Days, 6)

			assert.Equal(t, tt.wantStart, res.Days[0].Date)
			assert.Equal(t, tt.wantIndex, res.TodayIndex)
			for i, d := range res.Days {
				assert.Equal(t, i+1, d.Index)
				assert.Equal(t, tt.want[i], d.Status, "day %d", i+1)
			}
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// My level
// ──────────────────────────────────────────────────────────────────────────────

type stubRefresher struct {
	snapshot *gamification.StatusSnapshot
	err      error
}

func (s stubRefresher) Handle(context.Context, command.RefreshStatusCommand) (*command.RefreshStatusResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &command.RefreshStatusResult{Snapshot: s.snapshot}, nil
}

func TestMyLevel(t *testing.T) {
	engine := gamification.MustEngine(gamification.DefaultRules())
	counts := gamification.Counts{Attendance: 3, Assignments: 2, CreditedSolved: 5}
	snap := gamification.NewStatusSnapshot("u1", counts, engine.Evaluate(counts), false, now)

	h := query.NewMyLevelHandler(stubRefresher{snapshot: snap})
	res, err := h.Handle(context.Background(), query.MyLevelQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, query.ExpDTO{
		Total:          700,
		Max:            4200,
		Stage:          1,
		Step:           4,
		GlobalProgress: 700.0 / 4200.0,
		StepExpCurrent: 199,
		StepExpMax:     299,
		IsClear:        false,
	}, res.Exp)
	assert.NotNil(t, res.Badges)
	assert.Empty(t, res.Badges)
	assert.Nil(t, res.Trait)

	h = query.NewMyLevelHandler(stubRefresher{err: errors.New("db down")})
	_, err = h.Handle(context.Background(), query.MyLevelQuery{UserID: "u1"})
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Challenge
// ──────────────────────────────────────────────────────────────────────────────

type fakeProfiles struct {
	mu          sync.Mutex
	profileErr  error
	problemsErr error
	handles     []string
}

func (f *fakeProfiles) Profile(_ context.Context, handle string) (*query.SolvedAcProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles = append(f.handles, handle)
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	class := 3
	return &query.SolvedAcProfile{
		Handle:                  handle,
		Tier:                    11,
		Rating:                  1203,
		SolvedCount:             63,
		Class:                   &class,
		MaxStreak:               21,
		ArenaRating:             900,
		ArenaCompetedRoundCount: 7,
	}, nil
}

func (f *fakeProfiles) TopSolvedProblems(_ context.Context, _ string, limit int) ([]query.SolvedAcProblem, error) {
	if f.problemsErr != nil {
		return nil, f.problemsErr
	}
	out := []query.SolvedAcProblem{{ProblemID: 1000, Title: "A+B", Level: 1}}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]*query.ChallengeDTO
}

func (c *mapCache) Get(_ context.Context, handle string) (*query.ChallengeDTO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[handle], nil
}

func (c *mapCache) Set(_ context.Context, handle string, dto *query.ChallengeDTO, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[handle] = dto
	return nil
}

func TestChallenge_Payload(t *testing.T) {
	accounts := memory.NewAccountStore()
	accounts.Put("u1", memory.Account{Username: "student01", SolvedAcHandle: "kimcoder"})
	source := &fakeProfiles{}

	h := query.NewChallengeHandler(accounts, source, nil, query.DefaultChallengeHandlerConfig(), nil)
	res, err := h.Handle(context.Background(), query.ChallengeQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "kimcoder", res.Handle)
	assert.Equal(t, 63, res.SolvedCount)
	require.NotNil(t, res.ClassLevel)
	assert.Equal(t, 3, *res.ClassLevel)
	assert.Nil(t, res.ClassDecoration)
	assert.Equal(t, query.ArenaDTO{Rating: 900, CompetedRoundCount: 7}, res.Arena)
	assert.Equal(t, 21, res.Streak.Max)
	assert.Equal(t, []query.SolvedProblemDTO{{ProblemID: 1000, Title: "A+B", Level: 1}}, res.RecentSolvedProblems)
}

func TestChallenge_UsernameFallback(t *testing.T) {
	accounts := memory.NewAccountStore()
	accounts.Put("u1", memory.Account{Username: "student01"})
	source := &fakeProfiles{}

	h := query.NewChallengeHandler(accounts, source, nil, query.DefaultChallengeHandlerConfig(), nil)
	res, err := h.Handle(context.Background(), query.ChallengeQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "student01", res.Handle)
	assert.Equal(t, []string{"student01"}, source.handles)
}

func TestChallenge_Failures(t *testing.T) {
	accounts := memory.NewAccountStore()
	accounts.Put("u1", memory.Account{SolvedAcHandle: "kimcoder"})

	t.Run("profile failure surfaces", func(t *testing.T) {
		source := &fakeProfiles{profileErr: shared.ErrSolvedSourceUnavailable}
		h := query.NewChallengeHandler(accounts, source, nil, query.DefaultChallengeHandlerConfig(), nil)
		_, err := h.Handle(context.Background(), query.ChallengeQuery{UserID: "u1"})
		assert.ErrorIs(t, err, shared.ErrSolvedSourceUnavailable)
	})

	t.Run("problem search failure empties list", func(t *testing.T) {
		source := &fakeProfiles{problemsErr: shared.ErrSolvedSourceTimeout}
		h := query.NewChallengeHandler(accounts, source, nil, query.DefaultChallengeHandlerConfig(), nil)
		res, err := h.Handle(context.Background(), query.ChallengeQuery{UserID: "u1"})
		require.NoError(t, err)
		assert.NotNil(t, res.RecentSolvedProblems)
		assert.Empty(t, res.RecentSolvedProblems)
	})
}

func TestChallenge_Cache(t *testing.T) {
	accounts := memory.NewAccountStore()
	accounts.Put("u1", memory.Account{SolvedAcHandle: "kimcoder"})
	source := &fakeProfiles{}
	cache := &mapCache{items: make(map[string]*query.ChallengeDTO)}

	h := query.NewChallengeHandler(accounts, source, cache, query.DefaultChallengeHandlerConfig(), nil)
	for i := 0; i < 3; i++ {
		res, err := h.Handle(context.Background(), query.ChallengeQuery{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, "kimcoder", res.Handle)
	}
	assert.Len(t, source.handles, 1)
	assert.Contains(t, cache.items, "kimcoder")
}

func slots(d query.AttendanceStatusDTO) []gamification.SlotStatus {
	return []gamification.SlotStatus{
		d.FirstDayStatus, d.SecondDayStatus, d.ThirdDayStatus,
		d.FourthDayStatus, d.FifthDayStatus, d.SixthDayStatus,
	}
}
