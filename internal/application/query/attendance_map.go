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
// ATTENDANCE MAP QUERY
// Six calendar days starting at the user's first LMS access.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceMapQuery contains the parameters of the query.
type AttendanceMapQuery struct {
	UserID string
}

// Validate validates the query.
func (q AttendanceMapQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("attendance_map: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// MapDayDTO is one day of the map.
type MapDayDTO struct {
	Index  int                     `json:"index"`
	Date   string                  `json:"date"`
	Status gamification.SlotStatus `json:"status"`
}

// AttendanceMapDTO is the map response.
type AttendanceMapDTO struct {
	Days       []MapDayDTO `json:"days"`
	TodayIndex int         `json:"today_index"`
}

// AttendanceMapHandler handles AttendanceMapQuery.
type AttendanceMapHandler struct {
	attendance gamification.AttendanceRepository
	clock      *timeutil.Clock
}

// NewAttendanceMapHandler creates a new AttendanceMapHandler.
func NewAttendanceMapHandler(attendance gamification.AttendanceRepository, clock *timeutil.Clock) *AttendanceMapHandler {
	return &AttendanceMapHandler{attendance: attendance, clock: clock}
}

// Handle executes the query.
func (h *AttendanceMapHandler) Handle(ctx context.Context, q AttendanceMapQuery) (*AttendanceMapDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	today := h.clock.Today()

	start, ok, err := h.attendance.FirstAccessDate(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("attendance_map: first access: %w", err)
	}
	if !ok {
		start = today
	}

	end := timeutil.AddDays(start, gamification.AttendanceWindow-1)
	rows, err := h.attendance.ListRange(ctx, q.UserID, start, end)
	if err != nil {
		return nil, fmt.Errorf("attendance_map: list days: %w", err)
	}

	byDate := make(map[time.Time]*gamification.DailyAccess, len(rows))
	for _, row := range rows {
		byDate[row.Date] = row
	}

	days := make([]MapDayDTO, 0, gamification.AttendanceWindow)
	for i := 0; i < gamification.AttendanceWindow; i++ {
		date := timeutil.AddDays(start, i)
		days = append(days, MapDayDTO{
			Index:  i + 1,
			Date:   timeutil.FormatDate(date),
			Status: gamification.DayStatus(date, today, byDate[date]),
		})
	}

	return &AttendanceMapDTO{
		Days:       days,
		TodayIndex: todayIndex(start, today),
	}, nil
}

// todayIndex is the 1-based position of today in the window, pinned to its ends.
func todayIndex(start, today time.Time) int {
	delta := timeutil.DaysBetween(start, today)
	switch {
	case delta < 0:
		return 1
	case delta >= gamification.AttendanceWindow:
		return gamification.AttendanceWindow
	default:
		return delta + 1
	}
}
