package schedule_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/schedule"
)

func TestCourseEndDate_LengthMatchesPeriod(t *testing.T) {
	starts := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2025, 2, 27, 14, 30, 0, 0, time.Local),
		time.Date(2024, 12, 31, 23, 59, 0, 0, time.Local),
	}

	for _, start := range starts {
		for _, pt := range []models.PeriodType{models.PeriodDays, models.PeriodWeeks, models.PeriodMonths} {
			for _, length := range []int{1, 3, 7, 12} {
				end := schedule.CourseEndDate(start, pt, length)
				want := length * pt.DayCount()
				got := schedule.CourseLengthDays(start, end)
				require.Equalf(t, want, got, "start=%s type=%s length=%d", start, pt, length)
			}
		}
	}
}

func TestCourseEndDate_IsEndOfDay(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 15, 0, 0, time.Local)
	end := schedule.CourseEndDate(start, models.PeriodDays, 7)

	require.Equal(t, 23, end.Hour())
	require.Equal(t, 59, end.Minute())
	// Seven days inclusive: start day + 6.
	require.Equal(t, 16, end.Day())
}

func TestDayIndex_SameDayAnyTime(t *testing.T) {
	morning := time.Date(2025, 6, 1, 0, 0, 1, 0, time.Local)
	evening := time.Date(2025, 6, 1, 23, 59, 59, 0, time.Local)
	nextDay := time.Date(2025, 6, 2, 0, 0, 0, 0, time.Local)

	require.Equal(t, schedule.DayIndex(morning), schedule.DayIndex(evening))
	require.Equal(t, schedule.DayIndex(morning)+1, schedule.DayIndex(nextDay))
}

func TestDayIndex_Epoch(t *testing.T) {
	epoch := time.Date(1970, 1, 1, 12, 0, 0, 0, time.Local)
	require.Equal(t, 0, schedule.DayIndex(epoch))
}

func TestDateForDayIndex_RoundTrips(t *testing.T) {
	for _, day := range []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2025, 8, 31, 0, 0, 0, 0, time.Local),
	} {
		idx := schedule.DayIndex(day)
		require.Equal(t, day, schedule.DateForDayIndex(idx))
	}
}

func TestIsValidForDate_WindowBoundaries(t *testing.T) {
	start := time.Date(2025, 5, 1, 10, 0, 0, 0, time.Local)
	course := &models.Course{
		StartDate: start,
		EndDate:   schedule.CourseEndDate(start, models.PeriodDays, 3),
	}

	// Start day counts from its very beginning, even before the creation time.
	require.True(t, schedule.IsValidForDate(course, time.Date(2025, 5, 1, 0, 0, 0, 0, time.Local)))
	// Last full day of the window.
	require.True(t, schedule.IsValidForDate(course, time.Date(2025, 5, 3, 23, 0, 0, 0, time.Local)))
	// Day after the end date.
	require.False(t, schedule.IsValidForDate(course, time.Date(2025, 5, 4, 0, 0, 0, 0, time.Local)))
	// Day before the start.
	require.False(t, schedule.IsValidForDate(course, time.Date(2025, 4, 30, 23, 0, 0, 0, time.Local)))
}

func TestDefaultDoseTemplates_EvenSpread(t *testing.T) {
	slots := schedule.DefaultDoseTemplates(3, 8, 12)

	require.Len(t, slots, 3)
	require.Equal(t, 8, slots[0].Hour)
	require.Equal(t, 12, slots[1].Hour)
	require.Equal(t, 16, slots[2].Hour)

	for i, slot := range slots {
		require.Equal(t, i, slot.SlotIndex)
		require.Equal(t, 1, slot.DosageAmount)
		require.Equal(t, models.FractionNone, slot.DosageFraction)
	}
}

func TestDefaultDoseTemplates_SingleDose(t *testing.T) {
	slots := schedule.DefaultDoseTemplates(1, 9, 12)
	require.Len(t, slots, 1)
	require.Equal(t, 9, slots[0].Hour)
}

func TestOccurrenceKey_DeterministicAndInjective(t *testing.T) {
	require.Equal(t,
		schedule.OccurrenceKey("course-1", 2, 20300),
		schedule.OccurrenceKey("course-1", 2, 20300),
	)

	seen := map[string]string{}
	for _, courseID := range []string{"a", "b", "a-b"} {
		for slot := 0; slot < 4; slot++ {
			for day := 20000; day < 20004; day++ {
				key := schedule.OccurrenceKey(courseID, slot, day)
				triple := fmt.Sprintf("%s/%d/%d", courseID, slot, day)
				prev, ok := seen[key]
				require.Falsef(t, ok, "key %q collides: %s vs %s", key, prev, triple)
				seen[key] = triple
			}
		}
	}
}

func TestReminderFireTime(t *testing.T) {
	day := time.Date(2025, 7, 15, 0, 0, 0, 0, time.Local)
	slot := models.DoseTemplate{SlotIndex: 0, Hour: 9, Minute: 30}

	fireAt := schedule.ReminderFireTime(schedule.DayIndex(day), slot)
	require.Equal(t, time.Date(2025, 7, 15, 9, 30, 0, 0, time.Local), fireAt)
}
