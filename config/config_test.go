package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "Asia/Seoul", cfg.App.Timezone)
	require.NotNil(t, cfg.App.Location)
	assert.Equal(t, "X-User-ID", cfg.HTTP.UserHeader)
	assert.Equal(t, "https://solved.ac/api/v3", cfg.SolvedAc.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.SolvedAc.RequestTimeout)
	assert.Equal(t, 5, cfg.SolvedAc.RecentProblemsLimit)
	assert.Equal(t, GamificationConfig{
		AttendancePoints: 100,
		AssignmentPoints: 150,
		ProblemPoints:    20,
		MaxScore:         4200,
	}, cfg.Gamification)
	assert.True(t, cfg.Features.SolvedAcCreditEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SOLVEDAC_CACHE_TTL", "90s")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "lms")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.SolvedAc.CacheTTL)
	assert.True(t, cfg.Redis.Disabled)
	assert.Equal(t, "postgres://lms:pw@db:5432/lms?sslmode=disable", cfg.Database.URL)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	t.Setenv("HTTP_PORT", "70000")
	t.Setenv("GAMIFICATION_PROBLEM_POINTS", "0")

	_, err := FromEnv()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "APP_TIMEZONE")
	assert.Contains(t, msg, "DATABASE_URL is required in production")
	assert.Contains(t, msg, "HTTP_PORT")
	assert.Contains(t, msg, "GAMIFICATION_*_POINTS")
}

func TestFeatureFlags(t *testing.T) {
	t.Run("env disables a feature", func(t *testing.T) {
		t.Setenv("FEATURE_STUDENT_CHALLENGE", "false")
		ff := LoadFeatureFlags()
		assert.False(t, ff.IsEnabled(FeatureChallenge, nil))
		assert.True(t, ff.IsEnabled(FeatureAttendanceMap, nil))
	})

	t.Run("user override wins", func(t *testing.T) {
		t.Setenv("FEATURE_GAMIFICATION_ATTENDANCE_MAP", "0")
		t.Setenv("FEATURE_USER_OVERRIDES", " u1:gamification.attendance_map=on, u2:student.challenge=off,garbage")
		ff := LoadFeatureFlags()

		assert.True(t, ff.IsEnabled(FeatureAttendanceMap, &FeatureContext{UserID: "u1"}))
		assert.False(t, ff.IsEnabled(FeatureAttendanceMap, &FeatureContext{UserID: "u2"}))
		assert.False(t, ff.Enabled(FeatureChallenge, "u2"))
		assert.True(t, ff.Enabled(FeatureChallenge, "u1"))
	})

	t.Run("rollout is stable per user", func(t *testing.T) {
		t.Setenv("FEATURE_STUDENT_CHALLENGE", "50")
		ff := LoadFeatureFlags()
		assert.True(t, ff.IsEnabled(FeatureChallenge, nil))

		ctx := &FeatureContext{UserID: "student-42"}
		first := ff.IsEnabled(FeatureChallenge, ctx)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ff.IsEnabled(FeatureChallenge, ctx))
		}
	})

	t.Run("unknown feature", func(t *testing.T) {
		ff := LoadFeatureFlags()
		assert.False(t, ff.IsEnabled("nope", nil))
		assert.ErrorIs(t, ff.SetRolloutPercent("nope", 100), ErrFeatureNotFound)
		assert.ErrorIs(t, ff.SetRolloutPercent(FeatureChallenge, 101), ErrInvalidRolloutPercent)
	})
}
