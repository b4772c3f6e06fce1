// Package notify keeps the dose reminder schedule in lock-step with course
// lifecycle changes and dispatches due reminders to a delivery callback.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/schedule"
	"github.com/pillmate/pillmate/internal/store"
)

// Scheduler decides which dose occurrences carry a pending reminder.
// Reminder identity equals occurrence identity, so scheduling and cancelling
// the same (course, slot, day) triple are idempotent operations.
type Scheduler interface {
	ScheduleReminder(ctx context.Context, course *models.Course, slot models.DoseTemplate, dayIndex int) error
	CancelReminder(ctx context.Context, courseID string, slotIndex, dayIndex int) error
	CancelAllForCourse(ctx context.Context, courseID string) error
}

// StoreScheduler persists the reminder schedule into the document store
type StoreScheduler struct {
	store  store.Store
	logger *logrus.Logger
	now    func() time.Time
}

// NewStoreScheduler creates a store-backed reminder scheduler
func NewStoreScheduler(st store.Store, logger *logrus.Logger) *StoreScheduler {
	return &StoreScheduler{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// ScheduleReminder writes (or rewrites) the reminder for one occurrence
func (s *StoreScheduler) ScheduleReminder(ctx context.Context, course *models.Course, slot models.DoseTemplate, dayIndex int) error {
	now := s.now()
	reminder := models.Reminder{
		ID:          schedule.OccurrenceKey(course.ID, slot.SlotIndex, dayIndex),
		CourseID:    course.ID,
		CourseTitle: course.Title,
		SlotIndex:   slot.SlotIndex,
		DayIndex:    dayIndex,
		DosageUnit:  slot.DosageUnit,
		FireAt:      schedule.ReminderFireTime(dayIndex, slot),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Collection(store.Reminders).Set(ctx, reminder.ID, reminder); err != nil {
		return fmt.Errorf("failed to schedule reminder %s: %w", reminder.ID, err)
	}
	return nil
}

// CancelReminder removes the reminder for one occurrence. Cancelling an
// occurrence with no reminder is a no-op.
func (s *StoreScheduler) CancelReminder(ctx context.Context, courseID string, slotIndex, dayIndex int) error {
	id := schedule.OccurrenceKey(courseID, slotIndex, dayIndex)
	if err := s.store.Collection(store.Reminders).Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel reminder %s: %w", id, err)
	}
	return nil
}

// CancelAllForCourse removes every reminder scheduled for a course
func (s *StoreScheduler) CancelAllForCourse(ctx context.Context, courseID string) error {
	reminders := s.store.Collection(store.Reminders)

	docs, err := reminders.Where(ctx, "course_id", "==", courseID)
	if err != nil {
		return fmt.Errorf("failed to find reminders for course %s: %w", courseID, err)
	}
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}

	if err := reminders.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("failed to cancel %d reminders for course %s: %w", len(ids), courseID, err)
	}
	return nil
}
