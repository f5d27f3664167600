package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dororo-lms/lms-backend/config"
	"github.com/dororo-lms/lms-backend/internal/application/command"
	"github.com/dororo-lms/lms-backend/internal/application/query"
	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/internal/interface/http/handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeHandler[Q, R any] struct {
	res   R
	err   error
	got   Q
	calls int
}

func (f *fakeHandler[Q, R]) Handle(_ context.Context, q Q) (R, error) {
	f.calls++
	f.got = q
	return f.res, f.err
}

type fakeFeatures map[string]bool

func (f fakeFeatures) Enabled(feature, _ string) bool {
	on, ok := f[feature]
	return !ok || on
}

type fixture struct {
	recordAccess *fakeHandler[command.RecordAccessCommand, *command.RecordAccessResult]
	confirm      *fakeHandler[command.ConfirmAttendanceCommand, *command.ConfirmAttendanceResult]
	status       *fakeHandler[query.AttendanceStatusQuery, *query.AttendanceStatusDTO]
	today        *fakeHandler[query.TodayAttendanceQuery, *query.TodayAttendanceDTO]
	myLevel      *fakeHandler[query.MyLevelQuery, *query.MyLevelDTO]
	attMap       *fakeHandler[query.AttendanceMapQuery, *query.AttendanceMapDTO]
	challenge    *fakeHandler[query.ChallengeQuery, *query.ChallengeDTO]
	health       *handlers.CompositeHealthChecker
	features     fakeFeatures
	cfg          Config
}

func newFixture() *fixture {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return &fixture{
		recordAccess: &fakeHandler[command.RecordAccessCommand, *command.RecordAccessResult]{},
		confirm:      &fakeHandler[command.ConfirmAttendanceCommand, *command.ConfirmAttendanceResult]{},
		status:       &fakeHandler[query.AttendanceStatusQuery, *query.AttendanceStatusDTO]{},
		today:        &fakeHandler[query.TodayAttendanceQuery, *query.TodayAttendanceDTO]{},
		myLevel:      &fakeHandler[query.MyLevelQuery, *query.MyLevelDTO]{},
		attMap:       &fakeHandler[query.AttendanceMapQuery, *query.AttendanceMapDTO]{},
		challenge:    &fakeHandler[query.ChallengeQuery, *query.ChallengeDTO]{},
		health:       handlers.NewCompositeHealthChecker("test"),
		features:     fakeFeatures{},
		cfg:          cfg,
	}
}

func (f *fixture) server() *Server {
	return NewServer(f.cfg, Dependencies{
		RecordAccess:      f.recordAccess,
		ConfirmAttendance: f.confirm,
		AttendanceStatus:  f.status,
		TodayAttendance:   f.today,
		MyLevel:           f.myLevel,
		AttendanceMap:     f.attMap,
		Challenge:         f.challenge,
		Features:          f.features,
		HealthChecker:     f.health,
		BreakerState:      func() string { return "closed" },
	})
}

func do(t *testing.T, s *Server, method, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ─────────────────────────────────────────────────────────────────────────────
// Authentication
// ─────────────────────────────────────────────────────────────────────────────

func TestAPI_RequiresUser(t *testing.T) {
	f := newFixture()
	s := f.server()

	for _, path := range []string{
		"/api/attendance/status/",
		"/api/me/level/",
		"/api/gamification/today-attendance/",
		"/api/student/challenge/",
	} {
		rec := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.NotEmpty(t, decode(t, rec)["detail"], path)
	}
	assert.Zero(t, f.status.calls)
	assert.Zero(t, f.challenge.calls)
}

// ─────────────────────────────────────────────────────────────────────────────
// Attendance
// ─────────────────────────────────────────────────────────────────────────────

func TestAttendanceStatus(t *testing.T) {
	f := newFixture()
	f.status.res = &query.AttendanceStatusDTO{
		FirstDayStatus:  gamification.SlotDone,
		SecondDayStatus: gamification.SlotDone,
		ThirdDayStatus:  gamification.SlotCurrent,
		FourthDayStatus: gamification.SlotUpcoming,
		FifthDayStatus:  gamification.SlotUpcoming,
		SixthDayStatus:  gamification.SlotUpcoming,
		Count:           2,
	}

	rec := do(t, f.server(), http.MethodGet, "/api/attendance/status/", "u1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, string(gamification.SlotDone), body["firstDayStatus"])
	assert.Equal(t, string(gamification.SlotCurrent), body["thirdDayStatus"])
	assert.NotContains(t, body, "Count")
	assert.Equal(t, "u1", f.status.got.UserID)
}

func TestTodayAttendance_Get(t *testing.T) {
	f := newFixture()
	f.today.res = &query.TodayAttendanceDTO{Date: "2026-10-19", HasAccessed: true, CanCheck: true}

	rec := do(t, f.server(), http.MethodGet, "/api/gamification/today-attendance/", "u1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "2026-10-19", body["date"])
	assert.Equal(t, true, body["can_check"])
}

func TestConfirmAttendance(t *testing.T) {
	t.Run("confirmed returns snapshot", func(t *testing.T) {
		f := newFixture()
		f.confirm.res = &command.ConfirmAttendanceResult{
			Status: &gamification.StatusSnapshot{UserID: "u1", TotalScore: 100, MaxScore: 4200, Stage: 1, Step: 1},
		}

		rec := do(t, f.server(), http.MethodPost, "/api/gamification/today-attendance/", "u1")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.EqualValues(t, 100, body["total_score"])
		assert.Equal(t, "u1", f.confirm.got.UserID)
	})

	t.Run("already checked", func(t *testing.T) {
		f := newFixture()
		f.confirm.res = &command.ConfirmAttendanceResult{AlreadyChecked: true}

		rec := do(t, f.server(), http.MethodPost, "/api/gamification/today-attendance/", "u1")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, detailAlreadyChecked, decode(t, rec)["detail"])
	})

	t.Run("not yet accessed", func(t *testing.T) {
		f := newFixture()
		f.confirm.err = shared.ErrNotYetAccessed

		rec := do(t, f.server(), http.MethodPost, "/api/gamification/today-attendance/", "u1")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, detailNotYetAccessed, decode(t, rec)["detail"])
	})

	t.Run("lock busy", func(t *testing.T) {
		f := newFixture()
		f.confirm.err = shared.ErrUserLockBusy.Wrap(errors.New("held"))

		rec := do(t, f.server(), http.MethodPost, "/api/gamification/today-attendance/", "u1")

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unexpected error hides cause", func(t *testing.T) {
		f := newFixture()
		f.confirm.err = errors.New("pq: relation does not exist")

		rec := do(t, f.server(), http.MethodPost, "/api/gamification/today-attendance/", "u1")

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decode(t, rec)["detail"])
	})
}

func TestRecordAccess(t *testing.T) {
	f := newFixture()
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	f.recordAccess.res = &command.RecordAccessResult{
		Access:  &gamification.DailyAccess{UserID: "u1", Date: day, HasAccessed: true},
		Created: true,
	}

	rec := do(t, f.server(), http.MethodPost, "/api/gamification/access/", "u1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "2026-10-19", body["date"])
	assert.Equal(t, true, body["has_accessed"])
	assert.Equal(t, false, body["is_checked"])
	assert.Equal(t, true, body["can_check"])
}

func TestAttendanceMap(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		f := newFixture()
		f.attMap.res = &query.AttendanceMapDTO{
			Days:       []query.MapDayDTO{{Index: 1, Date: "2026-10-19", Status: gamification.SlotCurrent}},
			TodayIndex: 1,
		}

		rec := do(t, f.server(), http.MethodGet, "/api/gamification/attendance-map/", "u1")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, decode(t, rec)["today_index"])
	})

	t.Run("feature off", func(t *testing.T) {
		f := newFixture()
		f.features[config.FeatureAttendanceMap] = false

		rec := do(t, f.server(), http.MethodGet, "/api/gamification/attendance-map/", "u1")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, f.attMap.calls)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Level & Challenge
// ─────────────────────────────────────────────────────────────────────────────

func TestMyLevel(t *testing.T) {
	f := newFixture()
	f.myLevel.res = &query.MyLevelDTO{
		Exp:    query.ExpDTO{Total: 4200, Max: 4200, Stage: 2, Step: 5, GlobalProgress: 1, IsClear: true},
		Badges: []string{},
	}

	rec := do(t, f.server(), http.MethodGet, "/api/me/level/", "u1")

	require.Equal(t, http.StatusOK, rec.Code)
	exp, ok := decode(t, rec)["exp"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, exp["isClear"])
	assert.EqualValues(t, 5, exp["step"])
}

func TestChallenge(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f := newFixture()
		f.challenge.res = &query.ChallengeDTO{Handle: "dororo", SolvedCount: 42, RecentSolvedProblems: []query.SolvedProblemDTO{}}

		rec := do(t, f.server(), http.MethodGet, "/api/student/challenge/", "u1")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "dororo", body["handle"])
		assert.EqualValues(t, 42, body["solved_count"])
	})

	t.Run("no handle", func(t *testing.T) {
		f := newFixture()
		f.challenge.err = shared.ErrNoHandleConfigured

		rec := do(t, f.server(), http.MethodGet, "/api/student/challenge/", "u1")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("solved.ac down", func(t *testing.T) {
		f := newFixture()
		f.challenge.err = shared.ErrSolvedSourceUnavailable.Wrap(errors.New("dial tcp: refused"))

		rec := do(t, f.server(), http.MethodGet, "/api/student/challenge/", "u1")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "solved.ac is unavailable", decode(t, rec)["detail"])
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("solved.ac user missing", func(t *testing.T) {
		f := newFixture()
		f.challenge.err = shared.ErrSolvedUserNotFound

		rec := do(t, f.server(), http.MethodGet, "/api/student/challenge/", "u1")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "solved.ac user not found", decode(t, rec)["detail"])
	})

	t.Run("feature off", func(t *testing.T) {
		f := newFixture()
		f.features[config.FeatureChallenge] = false

		rec := do(t, f.server(), http.MethodGet, "/api/student/challenge/", "u1")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, f.challenge.calls)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Health & Middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newFixture()
		f.health.AddCheck("database", func(context.Context) error { return nil })

		rec := do(t, f.server(), http.MethodGet, "/health", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["request_id"])
		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "closed", data["solvedac_breaker"])
	})

	t.Run("failing check", func(t *testing.T) {
		f := newFixture()
		f.health.AddCheck("database", func(context.Context) error { return errors.New("down") })

		s := f.server()
		assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/health", "").Code)
		assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/ready", "").Code)
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/live", "").Code)
	})
}

func TestRequestID_Propagated(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()

	f.server().Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))
	assert.Equal(t, "req-123", decode(t, rec)["request_id"])
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodOptions, "/api/me/level/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID")
	rec := httptest.NewRecorder()

	f.server().Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, f.myLevel.calls)
}

func TestRateLimit(t *testing.T) {
	f := newFixture()
	f.cfg.RateLimitPerMinute = 2
	s := f.server()

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/live", "").Code)

	rec := do(t, s, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRecovery(t *testing.T) {
	s := newFixture().server()
	s.engine.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := do(t, s, http.MethodGet, "/boom", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["detail"])
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", shared.ErrInvalidID, http.StatusBadRequest},
		{"not yet accessed", shared.ErrNotYetAccessed, http.StatusBadRequest},
		{"no handle", shared.ErrNoHandleConfigured, http.StatusNotFound},
		{"lock busy", shared.ErrUserLockBusy, http.StatusConflict},
		{"timeout", shared.ErrSolvedSourceTimeout, http.StatusServiceUnavailable},
		{"rate limited", shared.ErrSolvedSourceRateLimited, http.StatusServiceUnavailable},
		{"other", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := statusFor(tc.err)
			assert.Equal(t, tc.want, got)
		})
	}
}
