package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
	"github.com/dororo-lms/lms-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE SOLVED COMMAND
// Credits problems solved on solved.ac since the last observation.
// The external fetch runs before the ledger row is locked.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileSolvedCommand contains the data needed to reconcile the ledger.
type ReconcileSolvedCommand struct {
	// UserID is the user whose ledger is reconciled.
	UserID string
}

// Validate validates the command.
func (c ReconcileSolvedCommand) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("reconcile_solved: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// ReconcileSolvedResult contains the result of reconciliation.
type ReconcileSolvedResult struct {
	// Handle is the handle used, empty if none is configured.
	Handle string

	// Credited is the credited solved count that feeds scoring.
	Credited int

	// Delta is the number of problems credited by this call.
	Delta int

	// Outcome describes the ledger change. Empty when the ledger was not touched.
	Outcome gamification.ReconcileOutcome

	// Degraded is true when solved.ac could not be read and the stored count was used.
	Degraded bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// SolvedCountSource reads the external solved counter of a handle.
type SolvedCountSource interface {
	// SolvedCount returns the total solved count. Any error means the value is unknown.
	SolvedCount(ctx context.Context, handle string) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileSolvedHandler handles the ReconcileSolvedCommand.
type ReconcileSolvedHandler struct {
	accounts       gamification.AccountDirectory
	source         SolvedCountSource
	ledger         gamification.LedgerRepository
	eventPublisher shared.EventPublisher
	clock          *timeutil.Clock
	logger         *logger.Logger

	// Configuration
	creditEnabled bool
}

// ReconcileSolvedHandlerConfig contains configuration for the handler.
type ReconcileSolvedHandlerConfig struct {
	// CreditEnabled turns external reconciliation on. When off the stored
	// credited count is reported without contacting solved.ac.
	CreditEnabled bool
}

// NewReconcileSolvedHandler creates a new ReconcileSolvedHandler.
func NewReconcileSolvedHandler(
	accounts gamification.AccountDirectory,
	source SolvedCountSource,
	ledger gamification.LedgerRepository,
	eventPublisher shared.EventPublisher,
	clock *timeutil.Clock,
	log *logger.Logger,
	config ReconcileSolvedHandlerConfig,
) *ReconcileSolvedHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ReconcileSolvedHandler{
		accounts:       accounts,
		source:         source,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		clock:          clock,
		logger:         log.With(logger.Component("reconcile_solved")),
		creditEnabled:  config.CreditEnabled,
	}
}

// Handle reconciles the user's ledger against solved.ac.
//
// External failures never fail the call: the stored credited count is
// returned with Degraded set and the ledger is left untouched. Only storage
// failures are returned as errors.
func (h *ReconcileSolvedHandler) Handle(ctx context.Context, cmd ReconcileSolvedCommand) (*ReconcileSolvedResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	handle, err := h.accounts.SolvedAcHandle(ctx, cmd.UserID)
	if err != nil {
		h.logger.Warn("handle lookup failed, using stored credit",
			logger.UserID(cmd.UserID),
			logger.Err(err),
		)
		return h.stored(ctx, cmd.UserID, "", true)
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return &ReconcileSolvedResult{}, nil
	}

	if !h.creditEnabled {
		return h.stored(ctx, cmd.UserID, handle, false)
	}

	// fetch first, no lock held
	observed, err := h.source.SolvedCount(ctx, handle)
	if err != nil {
		h.logger.Warn("solved.ac unavailable, using stored credit",
			logger.UserID(cmd.UserID),
			logger.Handle(handle),
			logger.Err(err),
		)
		return h.stored(ctx, cmd.UserID, handle, true)
	}

	now := h.clock.Now()
	var outcome gamification.ReconcileResult

	row, err := h.ledger.Apply(ctx, cmd.UserID, func(current *gamification.SolvedProgress) (*gamification.SolvedProgress, error) {
		outcome = gamification.Reconcile(current, cmd.UserID, handle, observed, now)
		if !outcome.Changed() {
			return nil, nil
		}
		next := outcome.Next
		return &next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile_solved: %w", err)
	}

	h.announce(cmd.UserID, handle, outcome, now)

	return &ReconcileSolvedResult{
		Handle:   handle,
		Credited: row.Credited(),
		Delta:    outcome.Delta,
		Outcome:  outcome.Outcome,
	}, nil
}

// stored reports the persisted credited count without touching the ledger.
func (h *ReconcileSolvedHandler) stored(ctx context.Context, userID, handle string, degraded bool) (*ReconcileSolvedResult, error) {
	row, err := h.ledger.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reconcile_solved: read ledger: %w", err)
	}
	return &ReconcileSolvedResult{
		Handle:   handle,
		Credited: row.Credited(),
		Degraded: degraded,
	}, nil
}

func (h *ReconcileSolvedHandler) announce(userID, handle string, res gamification.ReconcileResult, now time.Time) {
	switch res.Outcome {
	case gamification.OutcomeCreated:
		h.logger.Info("solved ledger created",
			logger.UserID(userID),
			logger.Handle(handle),
			logger.Int("baseline", res.Next.BaselineSolvedCount),
		)
	case gamification.OutcomeCredited:
		h.logger.Info("solved problems credited",
			logger.UserID(userID),
			logger.Handle(handle),
			logger.Int("delta", res.Delta),
			logger.Int("credited", res.Next.CreditedSolvedCount),
		)
		publish(h.eventPublisher, h.logger,
			shared.NewSolvedCreditedEvent(userID, handle, res.Delta, res.Next.CreditedSolvedCount, now))
	case gamification.OutcomeHandleChanged:
		h.logger.Info("solved.ac handle changed, ledger re-baselined",
			logger.UserID(userID),
			logger.String("old_handle", res.PreviousHandle),
			logger.Handle(handle),
		)
		publish(h.eventPublisher, h.logger,
			shared.NewHandleChangedEvent(userID, res.PreviousHandle, handle, res.Next.BaselineSolvedCount, now))
	}
}
