package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/schedule"
	"github.com/pillmate/pillmate/internal/store"
)

// ToggleOccurrence flips the taken state of today's occurrence of one dose
// slot. The first toggle creates the record as taken; later toggles negate
// the mirrored state. The negation reads the local mirror, not the store, so
// two in-flight toggles on the same occurrence can race to a stale result —
// a known limitation of the read-negate-write protocol.
func (e *Engine) ToggleOccurrence(ctx context.Context, courseID string, slotIndex int) (*models.OccurrenceRecord, error) {
	course, ok := e.cache.Course(courseID)
	if !ok {
		return nil, ErrCourseNotFound
	}

	var slot *models.DoseTemplate
	for i := range course.DoseSlots {
		if course.DoseSlots[i].SlotIndex == slotIndex {
			slot = &course.DoseSlots[i]
			break
		}
	}
	if slot == nil {
		return nil, &ValidationError{Reason: "unknown dose slot"}
	}

	now := e.now()
	dayIndex := schedule.DayIndex(now)
	key := schedule.OccurrenceKey(courseID, slotIndex, dayIndex)

	record, exists := e.cache.Record(key)
	if exists {
		record.IsTaken = !record.IsTaken
	} else {
		record = models.OccurrenceRecord{
			ID:        key,
			CourseID:  courseID,
			SlotIndex: slotIndex,
			DayIndex:  dayIndex,
			IsTaken:   true,
		}
	}
	record.DosageSnapshot = slot.Units()
	record.UpdatedAt = now

	if err := e.store.Collection(store.OccurrenceRecords).Set(ctx, key, record); err != nil {
		e.logger.Errorf("Failed to persist occurrence %s: %v", key, err)
		return nil, &PersistenceError{Op: "toggle occurrence", Err: err}
	}

	if course.NotificationsEnabled {
		// Taken occurrences need no reminder; untaken ones get theirs back.
		var err error
		if record.IsTaken {
			err = e.scheduler.CancelReminder(ctx, courseID, slotIndex, dayIndex)
		} else {
			err = e.scheduler.ScheduleReminder(ctx, &course, *slot, dayIndex)
		}
		if err != nil {
			e.logger.Errorf("Failed to sync reminder for occurrence %s: %v", key, err)
		}
	}

	if _, err := e.RecalculateStatistics(ctx, courseID); err != nil {
		e.logger.Errorf("Failed to recalculate statistics for course %s: %v", courseID, err)
	}

	e.metrics.OccurrenceToggled()
	e.logger.WithFields(logrus.Fields{
		"occurrence": key,
		"taken":      record.IsTaken,
	}).Debug("Toggled occurrence")

	return &record, nil
}
