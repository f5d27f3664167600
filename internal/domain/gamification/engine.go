package gamification

// ══════════════════════════════════════════════════════════════════════════════
// SCORE ENGINE + LEVEL RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Counts are the raw activity inputs of the score engine.
type Counts struct {
	Attendance     int `json:"attendance_count"`
	Assignments    int `json:"assignment_count"`
	CreditedSolved int `json:"credited_solved_count"`
}

// Evaluation is the score and level position derived from Counts.
type Evaluation struct {
	TotalScore     int
	MaxScore       int
	Stage          int
	Step           int
	StepExpCurrent int
	StepExpMax     int
	GlobalProgress float64
	IsClear        bool
}

// Engine computes scores and resolves levels for one immutable Rules value.
type Engine struct {
	rules Rules
}

// NewEngine validates rules and returns an Engine bound to a private copy of them.
func NewEngine(rules Rules) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules.clone()}, nil
}

// MustEngine is NewEngine for rules known to be valid. It panics otherwise.
func MustEngine(rules Rules) *Engine {
	e, err := NewEngine(rules)
	if err != nil {
		panic(err)
	}
	return e
}

// Rules returns a copy of the engine's rules.
func (e *Engine) Rules() Rules {
	return e.rules.clone()
}

// MaxScore returns the score cap.
func (e *Engine) MaxScore() int {
	return e.rules.MaxScore
}

// TotalScore is clamp(att*A + asg*B + solved*C, 0, MaxScore).
// Negative counts contribute nothing.
func (e *Engine) TotalScore(attendance, assignments, creditedSolved int) int {
	raw := nonNegative(attendance)*e.rules.AttendancePoints +
		nonNegative(assignments)*e.rules.AssignmentPoints +
		nonNegative(creditedSolved)*e.rules.ProblemPoints
	return clamp(raw, 0, e.rules.MaxScore)
}

// Resolve maps a score to its (stage, step).
// Scores at or below zero map to the first row and scores past every row map to the last.
func (e *Engine) Resolve(score int) (stage, step int) {
	levels := e.rules.Levels
	if score <= 0 {
		return levels[0].Stage, levels[0].Step
	}
	for _, row := range levels {
		if row.Contains(score) {
			return row.Stage, row.Step
		}
	}
	last := levels[len(levels)-1]
	return last.Stage, last.Step
}

// StepBounds returns the inclusive score range of (stage, step), or the last row's range if unknown.
func (e *Engine) StepBounds(stage, step int) (min, max int) {
	for _, row := range e.rules.Levels {
		if row.Stage == stage && row.Step == step {
			return row.Min, row.Max
		}
	}
	last := e.rules.Levels[len(e.rules.Levels)-1]
	return last.Min, last.Max
}

// StepProgress returns the "current / max" experience pair of score inside (stage, step).
// max is at least 1.
func (e *Engine) StepProgress(score, stage, step int) (current, max int) {
	lo, hi := e.StepBounds(stage, step)
	current = clamp(score, lo, hi) - lo
	max = hi - lo
	if max < 1 {
		max = 1
	}
	return current, max
}

// Evaluate runs the score engine and the resolver over counts.
//
// At MaxScore the position is pinned to the last table row with IsClear set
// and a full experience bar.
func (e *Engine) Evaluate(c Counts) Evaluation {
	total := e.TotalScore(c.Attendance, c.Assignments, c.CreditedSolved)
	ev := Evaluation{
		TotalScore:     total,
		MaxScore:       e.rules.MaxScore,
		GlobalProgress: e.globalProgress(total),
	}

	if total >= e.rules.MaxScore {
		last := e.rules.Levels[len(e.rules.Levels)-1]
		ev.Stage, ev.Step = last.Stage, last.Step
		_, ev.StepExpMax = e.StepProgress(total, last.Stage, last.Step)
		ev.StepExpCurrent = ev.StepExpMax
		ev.IsClear = true
		return ev
	}

	ev.Stage, ev.Step = e.Resolve(total)
	ev.StepExpCurrent, ev.StepExpMax = e.StepProgress(total, ev.Stage, ev.Step)
	return ev
}

func (e *Engine) globalProgress(total int) float64 {
	p := float64(total) / float64(e.rules.MaxScore)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
