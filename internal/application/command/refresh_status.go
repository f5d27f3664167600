package command

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
	"github.com/dororo-lms/lms-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH STATUS COMMAND
// Gathers activity counts, scores them, resolves the level and persists the
// profile. solved.ac is contacted before the per-user lock is taken.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshStatusCommand contains the data needed to refresh a user's status.
type RefreshStatusCommand struct {
	// UserID is the user to refresh.
	UserID string
}

// Validate validates the command.
func (c RefreshStatusCommand) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("refresh_status: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// RefreshStatusResult contains the refreshed status.
type RefreshStatusResult struct {
	// Snapshot is the full progression view.
	Snapshot *gamification.StatusSnapshot

	// Profile is the persisted profile.
	Profile *gamification.Profile

	// PositionChanged is true when (stage, step) moved.
	PositionChanged bool

	// Events contains domain events generated during the refresh.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// UserLocker serializes status writes per user.
type UserLocker interface {
	// Lock blocks until the user's lock is held. The returned func releases it.
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// SolvedReconciler brings the solved ledger up to date.
type SolvedReconciler interface {
	Handle(ctx context.Context, cmd ReconcileSolvedCommand) (*ReconcileSolvedResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RefreshStatusHandler handles the RefreshStatusCommand. It is the status builder.
type RefreshStatusHandler struct {
	engine         *gamification.Engine
	attendance     gamification.AttendanceRepository
	submissions    gamification.SubmissionCounter
	ledger         gamification.LedgerRepository
	reconciler     SolvedReconciler
	profiles       gamification.ProfileRepository
	locker         UserLocker
	eventPublisher shared.EventPublisher
	clock          *timeutil.Clock
	logger         *logger.Logger
}

// RefreshStatusDeps groups the collaborators of RefreshStatusHandler.
type RefreshStatusDeps struct {
	Engine         *gamification.Engine
	Attendance     gamification.AttendanceRepository
	Submissions    gamification.SubmissionCounter
	Ledger         gamification.LedgerRepository
	Reconciler     SolvedReconciler
	Profiles       gamification.ProfileRepository
	Locker         UserLocker
	EventPublisher shared.EventPublisher
	Clock          *timeutil.Clock
	Logger         *logger.Logger
}

// NewRefreshStatusHandler creates a new RefreshStatusHandler.
func NewRefreshStatusHandler(deps RefreshStatusDeps) *RefreshStatusHandler {
	if deps.EventPublisher == nil {
		deps.EventPublisher = shared.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &RefreshStatusHandler{
		engine:         deps.Engine,
		attendance:     deps.Attendance,
		submissions:    deps.Submissions,
		ledger:         deps.Ledger,
		reconciler:     deps.Reconciler,
		profiles:       deps.Profiles,
		locker:         deps.Locker,
		eventPublisher: deps.EventPublisher,
		clock:          deps.Clock,
		logger:         deps.Logger.With(logger.Component("refresh_status")),
	}
}

// Handle recomputes and persists the user's status.
//
// A solved.ac outage degrades to the stored credited count. Failures of
// local storage abort the refresh.
func (h *RefreshStatusHandler) Handle(ctx context.Context, cmd RefreshStatusCommand) (*RefreshStatusResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// 1. External reconciliation, outside the user lock.
	reconciled, err := h.reconciler.Handle(ctx, ReconcileSolvedCommand{UserID: cmd.UserID})
	if err != nil {
		return nil, fmt.Errorf("refresh_status: %w", err)
	}

	// 2. Everything below sees a consistent view of this user's rows.
	unlock, err := h.locker.Lock(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh_status: lock user: %w", err)
	}
	defer unlock()

	// an unreadable handle still counts what was already credited
	useCredit := reconciled.Handle != "" || reconciled.Degraded
	counts, err := h.gatherCounts(ctx, cmd.UserID, useCredit)
	if err != nil {
		return nil, fmt.Errorf("refresh_status: %w", err)
	}

	// 3. Score and level.
	ev := h.engine.Evaluate(counts)

	// 4. Persist.
	now := h.clock.Now()
	profile := gamification.NewProfile(cmd.UserID, now)
	profile.Apply(ev, now)

	previous, err := h.profiles.Upsert(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("refresh_status: save profile: %w", err)
	}
	if previous != nil {
		profile.CreatedAt = previous.CreatedAt
	}

	events, moved := h.progressionEvents(cmd.UserID, previous, profile, ev, now)
	publish(h.eventPublisher, h.logger, events...)

	snapshot := gamification.NewStatusSnapshot(cmd.UserID, counts, ev, reconciled.Degraded, now)

	h.logger.Debug("status refreshed",
		logger.UserID(cmd.UserID),
		logger.Score(ev.TotalScore),
		logger.Stage(ev.Stage),
		logger.Step(ev.Step),
		logger.Bool("degraded", reconciled.Degraded),
	)

	return &RefreshStatusResult{
		Snapshot:        snapshot,
		Profile:         profile,
		PositionChanged: moved,
		Events:          events,
	}, nil
}

// gatherCounts reads the three score inputs concurrently.
// Without a handle the solved contribution is zero.
func (h *RefreshStatusHandler) gatherCounts(ctx context.Context, userID string, useCredit bool) (gamification.Counts, error) {
	var counts gamification.Counts
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := h.attendance.CountChecked(gctx, userID)
		if err != nil {
			return fmt.Errorf("count attendance: %w", err)
		}
		counts.Attendance = n
		return nil
	})

	g.Go(func() error {
		n, err := h.submissions.CountSubmitted(gctx, userID)
		if err != nil {
			return fmt.Errorf("count submissions: %w", err)
		}
		counts.Assignments = n
		return nil
	})

	if useCredit {
		g.Go(func() error {
			row, err := h.ledger.Find(gctx, userID)
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}
			counts.CreditedSolved = row.Credited()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return gamification.Counts{}, err
	}
	return counts, nil
}

func (h *RefreshStatusHandler) progressionEvents(
	userID string,
	previous, current *gamification.Profile,
	ev gamification.Evaluation,
	now time.Time,
) ([]shared.Event, bool) {
	var events []shared.Event

	// a fresh profile starts at the first level
	before := previous
	if before == nil {
		before = gamification.NewProfile(userID, now)
	}

	moved := !before.SamePosition(current)
	if moved {
		h.logger.Info("level changed",
			logger.UserID(userID),
			logger.String("from", fmt.Sprintf("%d-%d", before.Stage, before.Step)),
			logger.String("to", fmt.Sprintf("%d-%d", current.Stage, current.Step)),
		)
		events = append(events, shared.NewStageStepChangedEvent(
			userID, before.Stage, before.Step, current.Stage, current.Step, current.TotalScore, now))
	}

	if ev.IsClear && before.TotalScore < ev.MaxScore {
		h.logger.Info("all levels cleared", logger.UserID(userID), logger.Score(ev.TotalScore))
		events = append(events, shared.NewAllClearedEvent(userID, ev.TotalScore, now))
	}

	return events, moved
}
