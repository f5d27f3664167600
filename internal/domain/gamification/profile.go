package gamification

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile is the persisted gamification snapshot of one user.
// It is a cache of the last evaluation; the score is always recomputed from counts.
type Profile struct {
	UserID     string
	TotalScore int
	Stage      int
	Step       int

	// Progress is TotalScore / MaxScore in [0, 1].
	Progress float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile creates an empty profile at the first level.
func NewProfile(userID string, now time.Time) *Profile {
	return &Profile{
		UserID:    userID,
		Stage:     1,
		Step:      1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply copies an evaluation into the profile.
func (p *Profile) Apply(ev Evaluation, now time.Time) {
	p.TotalScore = ev.TotalScore
	p.Stage = ev.Stage
	p.Step = ev.Step
	p.Progress = ev.GlobalProgress
	p.UpdatedAt = now
}

// SamePosition reports whether both profiles sit on the same (stage, step).
func (p *Profile) SamePosition(other *Profile) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Stage == other.Stage && p.Step == other.Step
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// StatusSnapshot is the full progression view produced by the status builder.
type StatusSnapshot struct {
	UserID         string  `json:"user_id"`
	TotalScore     int     `json:"total_score"`
	MaxScore       int     `json:"max_score"`
	Stage          int     `json:"stage"`
	Step           int     `json:"step"`
	GlobalProgress float64 `json:"global_progress"`
	StepExpCurrent int     `json:"step_exp_current"`
	StepExpMax     int     `json:"step_exp_max"`
	IsClear        bool    `json:"is_clear"`

	AttendanceCount     int `json:"attendance_count"`
	AssignmentCount     int `json:"assignment_count"`
	CreditedSolvedCount int `json:"credited_solved_count"`

	// SolvedSourceDegraded is set when solved.ac could not be reached and the
	// stored credited count was used instead.
	SolvedSourceDegraded bool `json:"solved_source_degraded"`

	ComputedAt time.Time `json:"computed_at"`
}

// NewStatusSnapshot combines counts and their evaluation.
func NewStatusSnapshot(userID string, c Counts, ev Evaluation, degraded bool, now time.Time) *StatusSnapshot {
	return &StatusSnapshot{
		UserID:               userID,
		TotalScore:           ev.TotalScore,
		MaxScore:             ev.MaxScore,
		Stage:                ev.Stage,
		Step:                 ev.Step,
		GlobalProgress:       ev.GlobalProgress,
		StepExpCurrent:       ev.StepExpCurrent,
		StepExpMax:           ev.StepExpMax,
		IsClear:              ev.IsClear,
		AttendanceCount:      c.Attendance,
		AssignmentCount:      c.Assignments,
		CreditedSolvedCount:  c.CreditedSolved,
		SolvedSourceDegraded: degraded,
		ComputedAt:           now,
	}
}
