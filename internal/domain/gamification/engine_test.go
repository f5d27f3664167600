package gamification

import (
	"testing"

	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultRules())
	require.NoError(t, err)
	return e
}

func TestRules_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Rules)
		valid  bool
	}{
		{name: "default", mutate: func(r *Rules) {}, valid: true},
		{name: "zero attendance points", mutate: func(r *Rules) { r.AttendancePoints = 0 }},
		{name: "empty table", mutate: func(r *Rules) { r.Levels = nil }},
		{name: "first row not at zero", mutate: func(r *Rules) { r.Levels[0].Min = 1 }},
		{name: "last row short of max", mutate: func(r *Rules) { r.MaxScore = 5000 }},
		{name: "gap", mutate: func(r *Rules) { r.Levels[3].Min = 502 }},
		{name: "overlap", mutate: func(r *Rules) { r.Levels[3].Min = 500 }},
		{name: "inverted row", mutate: func(r *Rules) { r.Levels[0].Max = -1; r.Levels[1].Min = 0 }},
		{name: "duplicate position", mutate: func(r *Rules) { r.Levels[1].Step = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRules()
			tt.mutate(&r)
			err := r.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, shared.ErrInvalidRules)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestNewEngine_CopiesRules(t *testing.T) {
	r := DefaultRules()
	e, err := NewEngine(r)
	require.NoError(t, err)

	r.Levels[0].Max = 9999
	stage, step := e.Resolve(100)
	assert.Equal(t, 1, stage)
	assert.Equal(t, 1, step)
}

func TestEngine_TotalScore(t *testing.T) {
	e := defaultEngine(t)

	tests := []struct {
		name                    string
		att, asg, solved, total int
	}{
		{"nothing", 0, 0, 0, 0},
		{"mixed", 3, 2, 5, 700},
		{"attendance only", 7, 0, 0, 700},
		{"capped", 30, 10, 100, 4200},
		{"exactly max", 42, 0, 0, 4200},
		{"negative counts ignored", -3, 2, -1, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.total, e.TotalScore(tt.att, tt.asg, tt.solved))
		})
	}
}

func TestEngine_TotalScoreMonotonic(t *testing.T) {
	e := defaultEngine(t)
	for a := 0; a < 50; a += 7 {
		for b := 0; b < 30; b += 5 {
			for c := 0; c < 250; c += 31 {
				base := e.TotalScore(a, b, c)
				assert.GreaterOrEqual(t, base, 0)
				assert.LessOrEqual(t, base, e.MaxScore())
				assert.GreaterOrEqual(t, e.TotalScore(a+1, b, c), base)
				assert.GreaterOrEqual(t, e.TotalScore(a, b+1, c), base)
				assert.GreaterOrEqual(t, e.TotalScore(a, b, c+1), base)
			}
		}
	}
}

func TestEngine_Resolve(t *testing.T) {
	e := defaultEngine(t)

	tests := []struct {
		score, stage, step int
	}{
		{-10, 1, 1},
		{0, 1, 1},
		{100, 1, 1},
		{101, 1, 2},
		{250, 1, 2},
		{700, 1, 4},
		{1200, 1, 5},
		{1201, 2, 1},
		{3251, 2, 5},
		{4200, 2, 5},
		{99999, 2, 5},
	}

	for _, tt := range tests {
		stage, step := e.Resolve(tt.score)
		assert.Equal(t, tt.stage, stage, "score %d", tt.score)
		assert.Equal(t, tt.step, step, "score %d", tt.score)
	}
}

func TestEngine_ResolveStaysInsideBounds(t *testing.T) {
	e := defaultEngine(t)
	for s := 0; s <= e.MaxScore(); s++ {
		stage, step := e.Resolve(s)
		lo, hi := e.StepBounds(stage, step)
		if !assert.True(t, lo <= s && s <= hi, "score %d resolved to %d/%d [%d,%d]", s, stage, step, lo, hi) {
			return
		}
	}
}

func TestEngine_StepBoundsUnknownFallsBackToLast(t *testing.T) {
	e := defaultEngine(t)
	lo, hi := e.StepBounds(9, 9)
	assert.Equal(t, 3251, lo)
	assert.Equal(t, 4200, hi)
}

func TestEngine_StepProgress(t *testing.T) {
	e := defaultEngine(t)

	cur, max := e.StepProgress(700, 1, 4)
	assert.Equal(t, 199, cur)
	assert.Equal(t, 299, max)

	// score outside the step is clamped into it
	cur, max = e.StepProgress(50, 1, 4)
	assert.Equal(t, 0, cur)
	assert.Equal(t, 299, max)
}

func TestEngine_StepProgressMinimumMax(t *testing.T) {
	rules := Rules{
		AttendancePoints: 1, AssignmentPoints: 1, ProblemPoints: 1, MaxScore: 10,
		Levels: []LevelRow{
			{Stage: 1, Step: 1, Min: 0, Max: 0},
			{Stage: 1, Step: 2, Min: 1, Max: 10},
		},
	}
	e, err := NewEngine(rules)
	require.NoError(t, err)

	cur, max := e.StepProgress(0, 1, 1)
	assert.Equal(t, 0, cur)
	assert.Equal(t, 1, max)
}

func TestEngine_Evaluate(t *testing.T) {
	e := defaultEngine(t)

	t.Run("mid table", func(t *testing.T) {
		ev := e.Evaluate(Counts{Attendance: 3, Assignments: 2, CreditedSolved: 5})
		assert.Equal(t, Evaluation{
			TotalScore:     700,
			MaxScore:       4200,
			Stage:          1,
			Step:           4,
			StepExpCurrent: 199,
			StepExpMax:     299,
			GlobalProgress: 700.0 / 4200.0,
		}, ev)
	})

	t.Run("all clear", func(t *testing.T) {
		ev := e.Evaluate(Counts{Attendance: 30, Assignments: 10, CreditedSolved: 0})
		assert.Equal(t, 4200, ev.TotalScore)
		assert.True(t, ev.IsClear)
		assert.Equal(t, 2, ev.Stage)
		assert.Equal(t, 5, ev.Step)
		assert.Equal(t, 949, ev.StepExpCurrent)
		assert.Equal(t, ev.StepExpMax, ev.StepExpCurrent)
		assert.Equal(t, 1.0, ev.GlobalProgress)
	})

	t.Run("empty", func(t *testing.T) {
		ev := e.Evaluate(Counts{})
		assert.Equal(t, 1, ev.Stage)
		assert.Equal(t, 1, ev.Step)
		assert.Equal(t, 0, ev.StepExpCurrent)
		assert.Equal(t, 100, ev.StepExpMax)
		assert.False(t, ev.IsClear)
	})
}

func TestEngine_AlternateTable(t *testing.T) {
	rules := Rules{
		AttendancePoints: 10, AssignmentPoints: 10, ProblemPoints: 1, MaxScore: 99,
		Levels: []LevelRow{
			{Stage: 1, Step: 1, Min: 0, Max: 49},
			{Stage: 2, Step: 1, Min: 50, Max: 99},
		},
	}
	e, err := NewEngine(rules)
	require.NoError(t, err)

	ev := e.Evaluate(Counts{Attendance: 5})
	assert.Equal(t, 2, ev.Stage)
	assert.Equal(t, 0, ev.StepExpCurrent)
	assert.Equal(t, 49, ev.StepExpMax)

	ev = e.Evaluate(Counts{Attendance: 20})
	assert.True(t, ev.IsClear)
	assert.Equal(t, 99, ev.TotalScore)
}

func TestMustEngine_PanicsOnInvalidRules(t *testing.T) {
	assert.Panics(t, func() { MustEngine(Rules{}) })
}
