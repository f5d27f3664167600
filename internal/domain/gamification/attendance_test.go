package gamification

import (
	"testing"
	"time"

	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day0 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now0 = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
)

func TestDailyAccess_State(t *testing.T) {
	var missing *DailyAccess
	assert.Equal(t, StateAbsent, missing.State())
	assert.False(t, missing.CanCheck())

	row := NewDailyAccess("u1", day0, now0)
	assert.Equal(t, StateAccessed, row.State())
	assert.True(t, row.CanCheck())

	row.IsChecked = true
	assert.Equal(t, StateChecked, row.State())
	assert.False(t, row.CanCheck())
}

func TestDailyAccess_Confirm(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		var missing *DailyAccess
		assert.ErrorIs(t, missing.Confirm(now0), shared.ErrNotYetAccessed)

		unaccessed := &DailyAccess{UserID: "u1", Date: day0}
		assert.ErrorIs(t, unaccessed.Confirm(now0), shared.ErrNotYetAccessed)
		assert.False(t, unaccessed.IsChecked)
	})

	t.Run("exactly once", func(t *testing.T) {
		row := NewDailyAccess("u1", day0, now0)
		later := now0.Add(time.Hour)

		require.NoError(t, row.Confirm(later))
		assert.True(t, row.IsChecked)
		assert.Equal(t, later, row.UpdatedAt)

		err := row.Confirm(later.Add(time.Minute))
		assert.ErrorIs(t, err, shared.ErrAlreadyChecked)
		assert.Equal(t, later, row.UpdatedAt)
		assert.Equal(t, StateChecked, row.State())
	})
}

func TestDailyAccess_RecordAccessIdempotent(t *testing.T) {
	row := &DailyAccess{UserID: "u1", Date: day0}
	assert.True(t, row.RecordAccess(now0))
	assert.False(t, row.RecordAccess(now0.Add(time.Minute)))
	assert.Equal(t, now0, row.UpdatedAt)

	require.NoError(t, row.Confirm(now0))
	assert.False(t, row.RecordAccess(now0))
	assert.Equal(t, StateChecked, row.State())
}

func TestAttendanceSlots(t *testing.T) {
	D, C, U := SlotDone, SlotCurrent, SlotUpcoming

	tests := []struct {
		count int
		want  [AttendanceWindow]SlotStatus
	}{
		{0, [6]SlotStatus{C, U, U, U, U, U}},
		{1, [6]SlotStatus{D, C, U, U, U, U}},
		{3, [6]SlotStatus{D, D, D, C, U, U}},
		{5, [6]SlotStatus{D, D, D, D, D, C}},
		{6, [6]SlotStatus{D, D, D, D, D, D}},
		{11, [6]SlotStatus{D, D, D, D, D, D}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AttendanceSlots(tt.count), "count %d", tt.count)
	}
}

func TestDayStatus(t *testing.T) {
	today := day0
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	accessed := NewDailyAccess("u1", today, now0)
	checked := NewDailyAccess("u1", today, now0)
	checked.IsChecked = true

	tests := []struct {
		name string
		date time.Time
		row  *DailyAccess
		want SlotStatus
	}{
		{"past checked", yesterday, checked, SlotDone},
		{"past accessed only", yesterday, accessed, SlotUpcoming},
		{"past absent", yesterday, nil, SlotUpcoming},
		{"today checked", today, checked, SlotDone},
		{"today accessed", today, accessed, SlotCurrent},
		{"today absent", today, nil, SlotUpcoming},
		{"future", tomorrow, checked, SlotUpcoming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DayStatus(tt.date, today, tt.row))
		})
	}
}
