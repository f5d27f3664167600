// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
	"github.com/dororo-lms/lms-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACCESS COMMAND
// Marks today as accessed for a user. Called when the user opens the LMS.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAccessCommand contains the data needed to record an LMS access.
type RecordAccessCommand struct {
	// UserID is the authenticated user.
	UserID string
}

// Validate validates the command.
func (c RecordAccessCommand) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("record_access: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// RecordAccessResult contains the result of recording access.
type RecordAccessResult struct {
	// Access is today's row after the call.
	Access *gamification.DailyAccess

	// Created is true when this call created the row.
	Created bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordAccessHandler handles the RecordAccessCommand.
type RecordAccessHandler struct {
	attendance     gamification.AttendanceRepository
	eventPublisher shared.EventPublisher
	clock          *timeutil.Clock
	logger         *logger.Logger
}

// NewRecordAccessHandler creates a new RecordAccessHandler.
func NewRecordAccessHandler(
	attendance gamification.AttendanceRepository,
	eventPublisher shared.EventPublisher,
	clock *timeutil.Clock,
	log *logger.Logger,
) *RecordAccessHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RecordAccessHandler{
		attendance:     attendance,
		eventPublisher: eventPublisher,
		clock:          clock,
		logger:         log.With(logger.Component("record_access")),
	}
}

// Handle records today's access. Repeated calls are no-ops.
func (h *RecordAccessHandler) Handle(ctx context.Context, cmd RecordAccessCommand) (*RecordAccessResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	today := h.clock.Today()
	now := h.clock.Now()

	row, created, err := h.attendance.RecordAccess(ctx, cmd.UserID, today, now)
	if err != nil {
		return nil, fmt.Errorf("record_access: %w", err)
	}

	if created {
		h.logger.Info("lms access recorded",
			logger.UserID(cmd.UserID),
			logger.String("date", timeutil.FormatDate(today)),
		)
		publish(h.eventPublisher, h.logger,
			shared.NewAccessRecordedEvent(cmd.UserID, timeutil.FormatDate(today), now))
	}

	return &RecordAccessResult{Access: row, Created: created}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// publish sends events and logs failures. A lost event never fails the command.
func publish(publisher shared.EventPublisher, log *logger.Logger, events ...shared.Event) {
	for _, event := range events {
		if err := publisher.Publish(event); err != nil {
			log.Warn("failed to publish event",
				logger.String("event_type", string(event.EventType())),
				logger.String("aggregate_id", event.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// isAny reports whether err matches any of targets.
func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
