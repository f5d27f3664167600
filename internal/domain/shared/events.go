package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	EventAccessRecorded      EventType = "gamification.access_recorded"
	EventAttendanceConfirmed EventType = "gamification.attendance_confirmed"
	EventSolvedCredited      EventType = "gamification.solved_credited"
	EventHandleChanged       EventType = "gamification.handle_changed"
	EventStageStepChanged    EventType = "gamification.stage_step_changed"
	EventAllCleared          EventType = "gamification.all_cleared"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance Events
// ═══════════════════════════════════════════════════════════════════════════

// AccessRecordedEvent is emitted the first time a user touches the LMS on a date.
type AccessRecordedEvent struct {
	BaseEvent
	Date string `json:"date"`
}

// Payload implements Event interface.
func (e AccessRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.AggregateId,
		"date":    e.Date,
	}
}

// NewAccessRecordedEvent creates a new AccessRecordedEvent.
func NewAccessRecordedEvent(userID, date string, at time.Time) AccessRecordedEvent {
	return AccessRecordedEvent{
		BaseEvent: NewBaseEvent(EventAccessRecorded, userID, at),
		Date:      date,
	}
}

// AttendanceConfirmedEvent is emitted when a day is stamped.
type AttendanceConfirmedEvent struct {
	BaseEvent
	Date string `json:"date"`
}

// Payload implements Event interface.
func (e AttendanceConfirmedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.AggregateId,
		"date":    e.Date,
	}
}

// NewAttendanceConfirmedEvent creates a new AttendanceConfirmedEvent.
func NewAttendanceConfirmedEvent(userID, date string, at time.Time) AttendanceConfirmedEvent {
	return AttendanceConfirmedEvent{
		BaseEvent: NewBaseEvent(EventAttendanceConfirmed, userID, at),
		Date:      date,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// SolvedCreditedEvent is emitted when newly solved problems are credited.
type SolvedCreditedEvent struct {
	BaseEvent
	Handle   string `json:"handle"`
	Delta    int    `json:"delta"`
	Credited int    `json:"credited"`
}

// Payload implements Event interface.
func (e SolvedCreditedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.AggregateId,
		"handle":   e.Handle,
		"delta":    e.Delta,
		"credited": e.Credited,
	}
}

// NewSolvedCreditedEvent creates a new SolvedCreditedEvent.
func NewSolvedCreditedEvent(userID, handle string, delta, credited int, at time.Time) SolvedCreditedEvent {
	return SolvedCreditedEvent{
		BaseEvent: NewBaseEvent(EventSolvedCredited, userID, at),
		Handle:    handle,
		Delta:     delta,
		Credited:  credited,
	}
}

// HandleChangedEvent is emitted when the ledger re-baselines under a new handle.
type HandleChangedEvent struct {
	BaseEvent
	OldHandle string `json:"old_handle"`
	NewHandle string `json:"new_handle"`
	Baseline  int    `json:"baseline"`
}

// Payload implements Event interface.
func (e HandleChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.AggregateId,
		"old_handle": e.OldHandle,
		"new_handle": e.NewHandle,
		"baseline":   e.Baseline,
	}
}

// NewHandleChangedEvent creates a new HandleChangedEvent.
func NewHandleChangedEvent(userID, oldHandle, newHandle string, baseline int, at time.Time) HandleChangedEvent {
	return HandleChangedEvent{
		BaseEvent: NewBaseEvent(EventHandleChanged, userID, at),
		OldHandle: oldHandle,
		NewHandle: newHandle,
		Baseline:  baseline,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// StageStepChangedEvent is emitted when a persisted profile moves to a new (stage, step).
type StageStepChangedEvent struct {
	BaseEvent
	OldStage   int `json:"old_stage"`
	OldStep    int `json:"old_step"`
	NewStage   int `json:"new_stage"`
	NewStep    int `json:"new_step"`
	TotalScore int `json:"total_score"`
}

// Payload implements Event interface.
func (e StageStepChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.AggregateId,
		"old_stage":   e.OldStage,
		"old_step":    e.OldStep,
		"new_stage":   e.NewStage,
		"new_step":    e.NewStep,
		"total_score": e.TotalScore,
	}
}

// NewStageStepChangedEvent creates a new StageStepChangedEvent.
func NewStageStepChangedEvent(userID string, oldStage, oldStep, newStage, newStep, total int, at time.Time) StageStepChangedEvent {
	return StageStepChangedEvent{
		BaseEvent:  NewBaseEvent(EventStageStepChanged, userID, at),
		OldStage:   oldStage,
		OldStep:    oldStep,
		NewStage:   newStage,
		NewStep:    newStep,
		TotalScore: total,
	}
}

// AllClearedEvent is emitted once, when a user's score first reaches the maximum.
type AllClearedEvent struct {
	BaseEvent
	TotalScore int `json:"total_score"`
}

// Payload implements Event interface.
func (e AllClearedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.AggregateId,
		"total_score": e.TotalScore,
	}
}

// NewAllClearedEvent creates a new AllClearedEvent.
func NewAllClearedEvent(userID string, total int, at time.Time) AllClearedEvent {
	return AllClearedEvent{
		BaseEvent:  NewBaseEvent(EventAllCleared, userID, at),
		TotalScore: total,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
