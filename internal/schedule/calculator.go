// Package schedule holds the pure date and occurrence-identity math for
// medication courses. Nothing here touches storage or I/O.
package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/pillmate/pillmate/internal/models"
)

// epochYear anchors day indexing. Any moment within one local calendar day
// maps to the same index.
const epochYear = 1970

// DayIndex returns the whole number of calendar days between 1970-01-01 and
// the day containing t. The calculation goes through the date components, not
// elapsed-time division, so DST shifts cannot move a moment across a day
// boundary.
func DayIndex(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// DateForDayIndex is the inverse of DayIndex: local midnight of the indexed day.
func DateForDayIndex(dayIndex int) time.Time {
	utc := time.Date(epochYear, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, dayIndex)
	y, m, d := utc.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// StartOfDay returns local midnight of the day containing t
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of the day containing t
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// CourseEndDate computes the inclusive end of a course window: the end of the
// day (periodLength × period days − 1) days after the start day.
func CourseEndDate(startDate time.Time, periodType models.PeriodType, periodLength int) time.Time {
	days := periodLength * periodType.DayCount()
	return EndOfDay(StartOfDay(startDate).AddDate(0, 0, days-1))
}

// CourseLengthDays returns the inclusive day count of a course window
func CourseLengthDays(start, end time.Time) int {
	return DayIndex(end) - DayIndex(start) + 1
}

// IsValidForDate reports whether date falls inside the course window,
// i.e. on or after the start day and not past the end of the last day.
func IsValidForDate(course *models.Course, date time.Time) bool {
	return !date.Before(StartOfDay(course.StartDate)) && !date.After(course.EndDate)
}

// DefaultDoseTemplates spreads `times` dose slots evenly across the active
// part of the day. Slot k lands at dayStartHour + round(k·activeHours/times).
func DefaultDoseTemplates(times, dayStartHour, dayActiveHours int) []models.DoseTemplate {
	slots := make([]models.DoseTemplate, 0, times)
	for k := 0; k < times; k++ {
		hour := dayStartHour + int(math.Round(float64(k)*float64(dayActiveHours)/float64(times)))
		slots = append(slots, models.DoseTemplate{
			SlotIndex:      k,
			Hour:           hour,
			Minute:         0,
			MealRelation:   models.MealUnset,
			DosageAmount:   1,
			DosageFraction: models.FractionNone,
		})
	}
	return slots
}

// OccurrenceKey builds the deterministic identity of a (course, slot, day)
// triple. It doubles as the primary key in the remote store, which is what
// makes a repeated toggle a read-modify-write on the same document instead of
// a duplicate insert.
func OccurrenceKey(courseID string, slotIndex, dayIndex int) string {
	return fmt.Sprintf("%s_%d_%d", courseID, slotIndex, dayIndex)
}

// ReminderFireTime returns the wall-clock moment a dose slot comes due on the
// indexed day.
func ReminderFireTime(dayIndex int, slot models.DoseTemplate) time.Time {
	day := DateForDayIndex(dayIndex)
	return time.Date(day.Year(), day.Month(), day.Day(), slot.Hour, slot.Minute, 0, 0, day.Location())
}
