package gamification

import (
	"time"

	"github.com/dororo-lms/lms-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ACCESS
// ══════════════════════════════════════════════════════════════════════════════

// AccessState is the attendance state of one (user, date).
type AccessState string

const (
	// StateAbsent means no row exists for the date.
	StateAbsent AccessState = "absent"

	// StateAccessed means the user touched the LMS but has not confirmed.
	StateAccessed AccessState = "accessed"

	// StateChecked means attendance was confirmed. Terminal.
	StateChecked AccessState = "checked"
)

// DailyAccess is one row of the attendance day-tracker.
// A row only exists once access has been recorded, so HasAccessed is always
// true for stored rows. IsChecked implies HasAccessed.
type DailyAccess struct {
	UserID      string
	Date        time.Time
	HasAccessed bool
	IsChecked   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDailyAccess creates a row in the accessed state.
func NewDailyAccess(userID string, date, now time.Time) *DailyAccess {
	return &DailyAccess{
		UserID:      userID,
		Date:        date,
		HasAccessed: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// State returns the attendance state. A nil row is absent.
func (d *DailyAccess) State() AccessState {
	switch {
	case d == nil || !d.HasAccessed:
		return StateAbsent
	case d.IsChecked:
		return StateChecked
	default:
		return StateAccessed
	}
}

// CanCheck reports whether Confirm would succeed.
func (d *DailyAccess) CanCheck() bool {
	return d.State() == StateAccessed
}

// RecordAccess marks the row accessed. It reports whether anything changed.
func (d *DailyAccess) RecordAccess(now time.Time) bool {
	if d.HasAccessed {
		return false
	}
	d.HasAccessed = true
	d.UpdatedAt = now
	return true
}

// Confirm moves accessed to checked.
// Returns ErrNotYetAccessed for an absent day and ErrAlreadyChecked for a checked one.
func (d *DailyAccess) Confirm(now time.Time) error {
	switch d.State() {
	case StateAbsent:
		return shared.ErrNotYetAccessed
	case StateChecked:
		return shared.ErrAlreadyChecked
	}
	d.IsChecked = true
	d.UpdatedAt = now
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE SLOTS
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceWindow is the number of day slots shown on the attendance board.
const AttendanceWindow = 6

// SlotStatus is the display state of one board slot.
type SlotStatus string

const (
	SlotDone     SlotStatus = "done"
	SlotCurrent  SlotStatus = "current"
	SlotUpcoming SlotStatus = "upcoming"
)

// AttendanceSlots maps the number of checked days to the six slot statuses.
// Slots up to count are done, the next one is current and the rest are upcoming.
func AttendanceSlots(count int) [AttendanceWindow]SlotStatus {
	var slots [AttendanceWindow]SlotStatus
	for i := range slots {
		idx := i + 1
		switch {
		case count >= AttendanceWindow || idx <= count:
			slots[i] = SlotDone
		case idx == count+1:
			slots[i] = SlotCurrent
		default:
			slots[i] = SlotUpcoming
		}
	}
	return slots
}

// DayStatus returns the calendar board status of date relative to today.
// Past days are done only if checked. Today is current once accessed.
func DayStatus(date, today time.Time, row *DailyAccess) SlotStatus {
	state := row.State()
	switch {
	case date.After(today):
		return SlotUpcoming
	case date.Before(today):
		if state == StateChecked {
			return SlotDone
		}
		return SlotUpcoming
	}

	switch state {
	case StateChecked:
		return SlotDone
	case StateAccessed:
		return SlotCurrent
	default:
		return SlotUpcoming
	}
}
