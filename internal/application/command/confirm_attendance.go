package command

import (
	"context"
	"fmt"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
	"github.com/dororo-lms/lms-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIRM ATTENDANCE COMMAND
// Stamps today's attendance and recomputes the user's status.
// ══════════════════════════════════════════════════════════════════════════════

// ConfirmAttendanceCommand contains the data needed to stamp attendance.
type ConfirmAttendanceCommand struct {
	// UserID is the authenticated user.
	UserID string
}

// Validate validates the command.
func (c ConfirmAttendanceCommand) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("confirm_attendance: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// ConfirmAttendanceResult contains the result of a stamp.
type ConfirmAttendanceResult struct {
	// Access is today's row.
	Access *gamification.DailyAccess

	// AlreadyChecked is true when the day had been stamped before. Nothing changed.
	AlreadyChecked bool

	// Status is the recomputed snapshot. Nil when AlreadyChecked.
	Status *gamification.StatusSnapshot
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// StatusRefresher recomputes and persists a user's status.
type StatusRefresher interface {
	Handle(ctx context.Context, cmd RefreshStatusCommand) (*RefreshStatusResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ConfirmAttendanceHandler handles the ConfirmAttendanceCommand.
type ConfirmAttendanceHandler struct {
	attendance     gamification.AttendanceRepository
	status         StatusRefresher
	eventPublisher shared.EventPublisher
	clock          *timeutil.Clock
	logger         *logger.Logger
}

// NewConfirmAttendanceHandler creates a new ConfirmAttendanceHandler.
func NewConfirmAttendanceHandler(
	attendance gamification.AttendanceRepository,
	status StatusRefresher,
	eventPublisher shared.EventPublisher,
	clock *timeutil.Clock,
	log *logger.Logger,
) *ConfirmAttendanceHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ConfirmAttendanceHandler{
		attendance:     attendance,
		status:         status,
		eventPublisher: eventPublisher,
		clock:          clock,
		logger:         log.With(logger.Component("confirm_attendance")),
	}
}

// Handle stamps today's attendance.
//
// Returns ErrNotYetAccessed when today has no recorded access. A day that is
// already stamped yields AlreadyChecked with a nil error.
func (h *ConfirmAttendanceHandler) Handle(ctx context.Context, cmd ConfirmAttendanceCommand) (*ConfirmAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	today := h.clock.Today()
	now := h.clock.Now()

	row, err := h.attendance.Confirm(ctx, cmd.UserID, today, now)
	switch {
	case isAny(err, shared.ErrAlreadyChecked):
		h.logger.Debug("attendance already confirmed", logger.UserID(cmd.UserID))
		return &ConfirmAttendanceResult{Access: row, AlreadyChecked: true}, nil
	case isAny(err, shared.ErrNotYetAccessed):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("confirm_attendance: %w", err)
	}

	h.logger.Info("attendance confirmed",
		logger.UserID(cmd.UserID),
		logger.String("date", timeutil.FormatDate(today)),
	)
	publish(h.eventPublisher, h.logger,
		shared.NewAttendanceConfirmedEvent(cmd.UserID, timeutil.FormatDate(today), now))

	refreshed, err := h.status.Handle(ctx, RefreshStatusCommand{UserID: cmd.UserID})
	if err != nil {
		return nil, fmt.Errorf("confirm_attendance: refresh status: %w", err)
	}

	return &ConfirmAttendanceResult{Access: row, Status: refreshed.Snapshot}, nil
}
