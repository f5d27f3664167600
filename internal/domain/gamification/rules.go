// Package gamification contains the scoring and progression rules of the LMS:
// the score engine, the stage/step level table, the daily attendance state
// machine and the solved-problem ledger. Everything here is pure; storage
// and transport live in the infrastructure layer.
package gamification

import (
	"fmt"
	"strings"

	"github.com/dororo-lms/lms-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULES
// ══════════════════════════════════════════════════════════════════════════════

// LevelRow is one (stage, step) range of the level table. Both bounds are inclusive.
type LevelRow struct {
	Stage int `json:"stage"`
	Step  int `json:"step"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

// Contains reports whether score falls inside the row.
func (r LevelRow) Contains(score int) bool {
	return r.Min <= score && score <= r.Max
}

// Rules is the immutable scoring configuration shared by the score engine and the resolver.
type Rules struct {
	// AttendancePoints is awarded per confirmed attendance day.
	AttendancePoints int

	// AssignmentPoints is awarded per submitted assignment.
	AssignmentPoints int

	// ProblemPoints is awarded per credited solved problem.
	ProblemPoints int

	// MaxScore caps the total score.
	MaxScore int

	// Levels partitions [0, MaxScore] in increasing order.
	Levels []LevelRow
}

// DefaultLevels returns the two-stage, five-step table used by the LMS frontend.
func DefaultLevels() []LevelRow {
	return []LevelRow{
		{Stage: 1, Step: 1, Min: 0, Max: 100},
		{Stage: 1, Step: 2, Min: 101, Max: 250},
		{Stage: 1, Step: 3, Min: 251, Max: 500},
		{Stage: 1, Step: 4, Min: 501, Max: 800},
		{Stage: 1, Step: 5, Min: 801, Max: 1200},
		{Stage: 2, Step: 1, Min: 1201, Max: 1400},
		{Stage: 2, Step: 2, Min: 1401, Max: 1750},
		{Stage: 2, Step: 3, Min: 1751, Max: 2350},
		{Stage: 2, Step: 4, Min: 2351, Max: 3250},
		{Stage: 2, Step: 5, Min: 3251, Max: 4200},
	}
}

// DefaultRules returns the production point values and level table.
func DefaultRules() Rules {
	return Rules{
		AttendancePoints: 100,
		AssignmentPoints: 150,
		ProblemPoints:    20,
		MaxScore:         4200,
		Levels:           DefaultLevels(),
	}
}

// Validate checks that the point values are positive and the level table
// covers [0, MaxScore] without gaps or overlaps.
func (r Rules) Validate() error {
	var problems []string

	if r.AttendancePoints <= 0 || r.AssignmentPoints <= 0 || r.ProblemPoints <= 0 {
		problems = append(problems, "point values must be positive")
	}
	if r.MaxScore <= 0 {
		problems = append(problems, "max score must be positive")
	}

	if len(r.Levels) == 0 {
		problems = append(problems, "level table is empty")
	} else {
		if r.Levels[0].Min != 0 {
			problems = append(problems, fmt.Sprintf("first level must start at 0, got %d", r.Levels[0].Min))
		}
		if last := r.Levels[len(r.Levels)-1]; last.Max != r.MaxScore {
			problems = append(problems, fmt.Sprintf("last level must end at max score %d, got %d", r.MaxScore, last.Max))
		}
		seen := make(map[[2]int]bool, len(r.Levels))
		for i, row := range r.Levels {
			if row.Min > row.Max {
				problems = append(problems, fmt.Sprintf("level %d/%d has min > max", row.Stage, row.Step))
			}
			key := [2]int{row.Stage, row.Step}
			if seen[key] {
				problems = append(problems, fmt.Sprintf("level %d/%d is defined twice", row.Stage, row.Step))
			}
			seen[key] = true
			if i > 0 && row.Min != r.Levels[i-1].Max+1 {
				problems = append(problems, fmt.Sprintf("level %d/%d does not start right after %d/%d",
					row.Stage, row.Step, r.Levels[i-1].Stage, r.Levels[i-1].Step))
			}
		}
	}

	if len(problems) > 0 {
		return shared.ErrInvalidRules.Wrap(fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}

// clone returns a copy whose level table does not alias the caller's slice.
func (r Rules) clone() Rules {
	levels := make([]LevelRow, len(r.Levels))
	copy(levels, r.Levels)
	r.Levels = levels
	return r
}
