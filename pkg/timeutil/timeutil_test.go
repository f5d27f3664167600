package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_TodayUsesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	// 16:30 UTC on March 1 is already March 2 in Seoul.
	clock := FixedClock(time.Date(2025, 3, 1, 16, 30, 0, 0, time.UTC), seoul)

	assert.Equal(t, Date(2025, time.March, 2), clock.Today())
	assert.Equal(t, seoul, clock.Location())
	assert.Equal(t, 1, clock.Now().Hour())
}

func TestDaysBetween(t *testing.T) {
	start := Date(2025, time.February, 27)
	assert.Equal(t, 0, DaysBetween(start, start))
	assert.Equal(t, 2, DaysBetween(start, Date(2025, time.March, 1)))
	assert.Equal(t, -1, DaysBetween(start, Date(2025, time.February, 26)))
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, Date(2025, time.March, 1), AddDays(Date(2025, time.February, 28), 1))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2025-03-02", FormatDate(Date(2025, time.March, 2)))
	assert.Equal(t, "2025-12-31", FormatDate(Date(2025, time.December, 31)))
}

func TestLoadLocation_FallsBack(t *testing.T) {
	assert.Equal(t, DefaultLocation, LoadLocation("Not/AZone"))
}
