// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE STATUS QUERY
// Six-slot attendance strip derived from the number of stamped days.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceStatusQuery contains the parameters of the query.
type AttendanceStatusQuery struct {
	UserID string
}

// Validate validates the query.
func (q AttendanceStatusQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("attendance_status: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// AttendanceStatusDTO is the frontend shape of the strip.
type AttendanceStatusDTO struct {
	FirstDayStatus  gamification.SlotStatus `json:"firstDayStatus"`
	SecondDayStatus gamification.SlotStatus `json:"secondDayStatus"`
	ThirdDayStatus  gamification.SlotStatus `json:"thirdDayStatus"`
	FourthDayStatus gamification.SlotStatus `json:"fourthDayStatus"`
	FifthDayStatus  gamification.SlotStatus `json:"fifthDayStatus"`
	SixthDayStatus  gamification.SlotStatus `json:"sixthDayStatus"`

	// Count is the stamped-day total the strip was built from.
	Count int `json:"-"`
}

// AttendanceStatusHandler handles AttendanceStatusQuery.
type AttendanceStatusHandler struct {
	attendance gamification.AttendanceRepository
	logger     *logger.Logger
}

// NewAttendanceStatusHandler creates a new AttendanceStatusHandler.
func NewAttendanceStatusHandler(attendance gamification.AttendanceRepository, log *logger.Logger) *AttendanceStatusHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &AttendanceStatusHandler{
		attendance: attendance,
		logger:     log.With(logger.Component("attendance_status")),
	}
}

// Handle executes the query.
func (h *AttendanceStatusHandler) Handle(ctx context.Context, q AttendanceStatusQuery) (*AttendanceStatusDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	count, err := h.attendance.CountChecked(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("attendance_status: %w", err)
	}

	s := gamification.AttendanceSlots(count)
	return &AttendanceStatusDTO{
		FirstDayStatus:  s[0],
		SecondDayStatus: s[1],
		ThirdDayStatus:  s[2],
		FourthDayStatus: s[3],
		FifthDayStatus:  s[4],
		SixthDayStatus:  s[5],
		Count:           count,
	}, nil
}
