// Package eventhandler contains subscribers of gamification domain events.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// PROGRESS AUDIT HANDLER
// Writes every gamification event to the progress log and the application
// log. Level changes and all-clear are logged at INFO, the rest at DEBUG.
// ═══════════════════════════════════════════════════════════════════════════

// ProgressAuditHandler records domain events.
type ProgressAuditHandler struct {
	log    gamification.ProgressLog
	logger *logger.Logger
	config ProgressAuditConfig
}

// ProgressAuditConfig contains configuration for the handler.
type ProgressAuditConfig struct {
	// WriteTimeout bounds one append to the progress log.
	WriteTimeout time.Duration
}

// DefaultProgressAuditConfig returns default configuration.
func DefaultProgressAuditConfig() ProgressAuditConfig {
	return ProgressAuditConfig{WriteTimeout: 2 * time.Second}
}

// NewProgressAuditHandler creates a new ProgressAuditHandler. progressLog may be nil,
// in which case events are only logged.
func NewProgressAuditHandler(progressLog gamification.ProgressLog, log *logger.Logger, config ProgressAuditConfig) *ProgressAuditHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultProgressAuditConfig().WriteTimeout
	}
	return &ProgressAuditHandler{
		log:    progressLog,
		logger: log.With(logger.Component("progress_audit")),
		config: config,
	}
}

// Register subscribes the handler to every event on the bus.
func (h *ProgressAuditHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}

// Handle implements shared.EventHandler.
func (h *ProgressAuditHandler) Handle(event shared.Event) error {
	h.logEvent(event)

	if h.log == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.WriteTimeout)
	defer cancel()

	entry := gamification.ProgressEntry{
		ID:         uuid.NewString(),
		UserID:     event.AggregateID(),
		EventType:  string(event.EventType()),
		Payload:    event.Payload(),
		OccurredAt: event.OccurredAt(),
	}
	if err := h.log.Append(ctx, entry); err != nil {
		return fmt.Errorf("progress audit: append %s: %w", entry.EventType, err)
	}
	return nil
}

func (h *ProgressAuditHandler) logEvent(event shared.Event) {
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.UserID(event.AggregateID()),
	}

	switch e := event.(type) {
	case shared.StageStepChangedEvent:
		fields = append(fields,
			logger.String("from", fmt.Sprintf("%d-%d", e.OldStage, e.OldStep)),
			logger.String("to", fmt.Sprintf("%d-%d", e.NewStage, e.NewStep)),
			logger.Score(e.TotalScore),
		)
		h.logger.Info("progress", fields...)
	case shared.AllClearedEvent:
		h.logger.Info("progress", append(fields, logger.Score(e.TotalScore))...)
	case shared.SolvedCreditedEvent:
		h.logger.Debug("progress", append(fields,
			logger.Handle(e.Handle),
			logger.Int("delta", e.Delta),
			logger.Int("credited", e.Credited),
		)...)
	default:
		h.logger.Debug("progress", fields...)
	}
}
