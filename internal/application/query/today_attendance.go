package query

import (
	"context"
	"fmt"
	"time"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TODAY ATTENDANCE QUERY
// Reports whether today was accessed and stamped. Never creates a row.
// ══════════════════════════════════════════════════════════════════════════════

// TodayAttendanceQuery contains the parameters of the query.
type TodayAttendanceQuery struct {
	UserID string
}

// Validate validates the query.
func (q TodayAttendanceQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("today_attendance: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// TodayAttendanceDTO is the stamp widget state.
type TodayAttendanceDTO struct {
	Date        string `json:"date"`
	HasAccessed bool   `json:"has_accessed"`
	IsChecked   bool   `json:"is_checked"`
	CanCheck    bool   `json:"can_check"`
}

// NewTodayAttendanceDTO builds the DTO for date. A nil row reads as absent.
func NewTodayAttendanceDTO(date time.Time, row *gamification.DailyAccess) *TodayAttendanceDTO {
	dto := &TodayAttendanceDTO{Date: timeutil.FormatDate(date)}
	if row != nil {
		dto.HasAccessed = row.HasAccessed
		dto.IsChecked = row.IsChecked
	}
	dto.CanCheck = row.CanCheck()
	return dto
}

// TodayAttendanceHandler handles TodayAttendanceQuery.
type TodayAttendanceHandler struct {
	attendance gamification.AttendanceRepository
	clock      *timeutil.Clock
}

// NewTodayAttendanceHandler creates a new TodayAttendanceHandler.
func NewTodayAttendanceHandler(attendance gamification.AttendanceRepository, clock *timeutil.Clock) *TodayAttendanceHandler {
	return &TodayAttendanceHandler{attendance: attendance, clock: clock}
}

// Handle executes the query.
func (h *TodayAttendanceHandler) Handle(ctx context.Context, q TodayAttendanceQuery) (*TodayAttendanceDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	today := h.clock.Today()
	row, err := h.attendance.Find(ctx, q.UserID, today)
	if err != nil {
		return nil, fmt.Errorf("today_attendance: %w", err)
	}
	return NewTodayAttendanceDTO(today, row), nil
}
