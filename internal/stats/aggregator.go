// Package stats derives adherence statistics from a course's dose templates
// and its occurrence records.
package stats

import (
	"math"

	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/schedule"
)

// Compute derives the full statistics block for a course from its occurrence
// records. Records may be nil when the course has not been persisted yet; the
// totals then come from the templates alone.
//
// A computed percent above 100 means the record set is inconsistent with the
// course window (stale or double-counted data) and resets the percent to 0
// rather than clamping, so the UI shows empty instead of misleadingly full.
func Compute(course *models.Course, records []models.OccurrenceRecord) models.CourseStatistics {
	days := schedule.CourseLengthDays(course.StartDate, course.EndDate)

	var unitsPerDay float64
	for i := range course.DoseSlots {
		unitsPerDay += course.DoseSlots[i].Units()
	}

	st := models.CourseStatistics{
		TimesTotal: days * len(course.DoseSlots),
		UnitsTotal: float64(days) * unitsPerDay,
	}

	for i := range records {
		if !records[i].IsTaken {
			continue
		}
		st.TimesTaken++
		st.UnitsTaken += records[i].DosageSnapshot
	}

	st.TimesToTake = st.TimesTotal - st.TimesTaken
	st.UnitsToTake = st.UnitsTotal - st.UnitsTaken

	if st.TimesTotal > 0 {
		st.TakenPercent = int(math.Round(float64(st.TimesTaken) / (float64(st.TimesTotal) / 100)))
	}
	if st.TakenPercent > 100 {
		st.TakenPercent = 0
	}

	return st
}
