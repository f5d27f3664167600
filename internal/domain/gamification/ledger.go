package gamification

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SOLVED PROGRESS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// SolvedProgress remembers what was observed on solved.ac for one user.
// Only growth observed after the baseline is credited, and credit never decreases.
type SolvedProgress struct {
	UserID string

	// BaselineSolvedCount is the external count when tracking started
	// under LastHandle.
	BaselineSolvedCount int

	// LastSolvedCount is the most recently observed external count.
	LastSolvedCount int

	// CreditedSolvedCount is the number of problems credited so far.
	CreditedSolvedCount int

	// LastHandle is the handle the baseline refers to.
	LastHandle string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReconcileOutcome describes what a reconciliation did to the ledger.
type ReconcileOutcome string

const (
	// OutcomeCreated means the first observation became the baseline.
	OutcomeCreated ReconcileOutcome = "created"

	// OutcomeHandleChanged means the ledger re-baselined under a new handle.
	OutcomeHandleChanged ReconcileOutcome = "handle_changed"

	// OutcomeCredited means a positive delta was credited.
	OutcomeCredited ReconcileOutcome = "credited"

	// OutcomeObserved means the observation was recorded without credit.
	OutcomeObserved ReconcileOutcome = "observed"

	// OutcomeUnchanged means nothing new was observed.
	OutcomeUnchanged ReconcileOutcome = "unchanged"
)

// ReconcileResult is the outcome of Reconcile.
type ReconcileResult struct {
	// Next is the ledger row after reconciliation.
	Next SolvedProgress

	Outcome ReconcileOutcome

	// Delta is the number of newly credited problems.
	Delta int

	// PreviousHandle is set when Outcome is OutcomeHandleChanged.
	PreviousHandle string
}

// Changed reports whether Next differs from the stored row and must be written.
func (r ReconcileResult) Changed() bool {
	return r.Outcome != OutcomeUnchanged
}

// Reconcile applies one observed solved count to the ledger row prev (nil if none).
//
// The first observation sets baseline and last without credit. A new handle
// re-baselines and keeps earned credit. Otherwise only positive growth over
// the last observation is credited, and the last observation always moves.
// Negative counts are treated as zero. Handles are compared without
// surrounding whitespace.
func Reconcile(prev *SolvedProgress, userID, handle string, observed int, now time.Time) ReconcileResult {
	observed = nonNegative(observed)
	handle = strings.TrimSpace(handle)

	if prev == nil {
		return ReconcileResult{
			Next: SolvedProgress{
				UserID:              userID,
				BaselineSolvedCount: observed,
				LastSolvedCount:     observed,
				LastHandle:          handle,
				CreatedAt:           now,
				UpdatedAt:           now,
			},
			Outcome: OutcomeCreated,
		}
	}

	next := *prev

	if strings.TrimSpace(prev.LastHandle) != handle {
		next.BaselineSolvedCount = observed
		next.LastSolvedCount = observed
		next.LastHandle = handle
		next.UpdatedAt = now
		return ReconcileResult{
			Next:           next,
			Outcome:        OutcomeHandleChanged,
			PreviousHandle: prev.LastHandle,
		}
	}

	next.LastHandle = handle

	delta := observed - prev.LastSolvedCount
	switch {
	case delta > 0:
		next.CreditedSolvedCount += delta
		next.LastSolvedCount = observed
		next.UpdatedAt = now
		return ReconcileResult{Next: next, Outcome: OutcomeCredited, Delta: delta}
	case delta < 0:
		next.LastSolvedCount = observed
		next.UpdatedAt = now
		return ReconcileResult{Next: next, Outcome: OutcomeObserved}
	default:
		return ReconcileResult{Next: next, Outcome: OutcomeUnchanged}
	}
}

// Credited returns the credited count of a possibly nil row.
func (p *SolvedProgress) Credited() int {
	if p == nil {
		return 0
	}
	return p.CreditedSolvedCount
}
