// Package engine coordinates the course lifecycle: it materializes dosing
// schedules, keeps occurrence records and the reminder schedule consistent
// with course edits, and maintains the derived adherence statistics.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/pillmate/pillmate/internal/cache"
	"github.com/pillmate/pillmate/internal/events"
	"github.com/pillmate/pillmate/internal/metrics"
	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/notify"
	"github.com/pillmate/pillmate/internal/schedule"
	"github.com/pillmate/pillmate/internal/stats"
	"github.com/pillmate/pillmate/internal/store"
)

// Deps wires the engine's collaborators. Clock and the day-shape defaults
// are optional.
type Deps struct {
	Store     store.Store
	Cache     *cache.Cache
	Scheduler notify.Scheduler
	Events    events.Logger
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger

	// Clock supplies "today" for schedule math; defaults to time.Now.
	Clock func() time.Time

	// DayStartHour and DayActiveHours shape default dose templates;
	// default to 8:00 and 12 active hours.
	DayStartHour   int
	DayActiveHours int
}

// Engine is the course lifecycle coordinator
type Engine struct {
	store          store.Store
	cache          *cache.Cache
	scheduler      notify.Scheduler
	events         events.Logger
	metrics        *metrics.Metrics
	logger         *logrus.Logger
	now            func() time.Time
	dayStartHour   int
	dayActiveHours int
}

// New creates an engine from its dependencies
func New(d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.DayStartHour == 0 {
		d.DayStartHour = 8
	}
	if d.DayActiveHours == 0 {
		d.DayActiveHours = 12
	}
	return &Engine{
		store:          d.Store,
		cache:          d.Cache,
		scheduler:      d.Scheduler,
		events:         d.Events,
		metrics:        d.Metrics,
		logger:         d.Logger,
		now:            d.Clock,
		dayStartHour:   d.DayStartHour,
		dayActiveHours: d.DayActiveHours,
	}
}

// CourseDraft carries the user-editable fields of a course. When DoseSlots
// is empty, TimesPerDay slots are generated with the default day spread.
type CourseDraft struct {
	Title                string
	TimesPerDay          int
	DoseSlots            []models.DoseTemplate
	PeriodType           models.PeriodType
	PeriodLength         int
	DosageUnit           string
	NotificationsEnabled bool
	ImageRef             string
}

// CreateCourse validates a draft, materializes its schedule window starting
// today, persists the course, and schedules reminders for every future
// occurrence when notifications are enabled.
func (e *Engine) CreateCourse(ctx context.Context, draft CourseDraft) (*models.Course, error) {
	slots, err := e.validateDraft(&draft, "")
	if err != nil {
		return nil, err
	}

	now := e.now()
	course := models.Course{
		ID:                   uuid.NewString(),
		Title:                strings.TrimSpace(draft.Title),
		DoseSlots:            slots,
		PeriodType:           draft.PeriodType,
		PeriodLength:         draft.PeriodLength,
		StartDate:            now,
		EndDate:              schedule.CourseEndDate(now, draft.PeriodType, draft.PeriodLength),
		NotificationsEnabled: draft.NotificationsEnabled,
		ImageRef:             draft.ImageRef,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	course.Statistics = stats.Compute(&course, nil)

	if err := e.store.Collection(store.Courses).Set(ctx, course.ID, course); err != nil {
		return nil, &PersistenceError{Op: "create course", Err: err}
	}

	if course.NotificationsEnabled {
		e.scheduleAllReminders(ctx, &course)
	}

	e.events.Log(events.CourseCreated, course.Title)
	e.metrics.CourseCreated()
	e.logger.WithFields(logrus.Fields{
		"course_id": course.ID,
		"title":     course.Title,
		"doses":     len(course.DoseSlots),
	}).Info("Created course")

	return &course, nil
}

// UpdateCourse applies a draft to an existing course as an explicit pipeline:
// persist the new course document, prune occurrence records that fell out of
// the (possibly shortened) window, recompute statistics from what remains,
// then cancel and reschedule every reminder. The persist step is fatal; the
// later steps run best-effort and their failures are collected.
func (e *Engine) UpdateCourse(ctx context.Context, courseID string, draft CourseDraft) (*models.Course, error) {
	existing, ok := e.cache.Course(courseID)
	if !ok {
		return nil, ErrCourseNotFound
	}

	slots, err := e.validateDraft(&draft, courseID)
	if err != nil {
		return nil, err
	}

	// The window is anchored on the original start date; only its length moves.
	course := existing
	course.Title = strings.TrimSpace(draft.Title)
	course.DoseSlots = slots
	course.PeriodType = draft.PeriodType
	course.PeriodLength = draft.PeriodLength
	course.EndDate = schedule.CourseEndDate(existing.StartDate, draft.PeriodType, draft.PeriodLength)
	course.NotificationsEnabled = draft.NotificationsEnabled
	course.ImageRef = draft.ImageRef
	course.UpdatedAt = e.now()

	if err := e.store.Collection(store.Courses).Set(ctx, course.ID, course); err != nil {
		return nil, &PersistenceError{Op: "update course", Err: err}
	}

	var cascade *multierror.Error
	if err := e.pruneOccurrences(ctx, &course); err != nil {
		cascade = multierror.Append(cascade, err)
		e.logger.Errorf("Prune step failed for course %s: %v", course.ID, err)
	}
	if st, err := e.RecalculateStatistics(ctx, course.ID); err != nil {
		cascade = multierror.Append(cascade, err)
		e.logger.Errorf("Statistics step failed for course %s: %v", course.ID, err)
	} else {
		course.Statistics = st
	}
	if err := e.rescheduleReminders(ctx, &course); err != nil {
		cascade = multierror.Append(cascade, err)
		e.logger.Errorf("Reschedule step failed for course %s: %v", course.ID, err)
	}

	e.metrics.CourseUpdated()
	e.logger.WithFields(logrus.Fields{
		"course_id": course.ID,
		"title":     course.Title,
	}).Info("Updated course")

	return &course, cascade.ErrorOrNil()
}

// DeleteCourse cancels the course's reminders, removes its occurrence
// records, and deletes the course document. The cascade is best-effort and
// runs forward: a failed later step never rolls back an earlier one.
// Deleting an absent course is a no-op.
func (e *Engine) DeleteCourse(ctx context.Context, courseID string) error {
	course, ok := e.cache.Course(courseID)
	if !ok {
		return nil
	}

	var cascade *multierror.Error

	if err := e.scheduler.CancelAllForCourse(ctx, courseID); err != nil {
		cascade = multierror.Append(cascade, err)
		e.logger.Errorf("Failed to cancel reminders for course %s: %v", courseID, err)
	}

	records := e.cache.RecordsForCourse(courseID)
	if len(records) > 0 {
		ids := make([]string, len(records))
		for i := range records {
			ids[i] = records[i].ID
		}
		if err := e.store.Collection(store.OccurrenceRecords).DeleteMany(ctx, ids); err != nil {
			cascade = multierror.Append(cascade, err)
			e.logger.Errorf("Failed to delete occurrence records for course %s: %v", courseID, err)
		}
	}

	if err := e.store.Collection(store.Courses).Delete(ctx, courseID); err != nil {
		cascade = multierror.Append(cascade, err)
		e.logger.Errorf("Failed to delete course %s: %v", courseID, err)
	}

	e.events.Log(events.CourseDeleted, course.Title)
	e.metrics.CourseDeleted()
	e.logger.WithFields(logrus.Fields{
		"course_id": courseID,
		"title":     course.Title,
	}).Info("Deleted course")

	return cascade.ErrorOrNil()
}

// RecalculateStatistics re-reads the course's occurrence records from the
// store, derives fresh statistics, and persists them onto the course.
func (e *Engine) RecalculateStatistics(ctx context.Context, courseID string) (models.CourseStatistics, error) {
	courses := e.store.Collection(store.Courses)

	doc, found, err := courses.GetByID(ctx, courseID)
	if err != nil {
		return models.CourseStatistics{}, &PersistenceError{Op: "read course", Err: err}
	}
	if !found {
		// The course vanished under us (e.g. deleted mid-toggle); nothing to do.
		return models.CourseStatistics{}, ErrCourseNotFound
	}

	var course models.Course
	if err := doc.Decode(&course); err != nil {
		return models.CourseStatistics{}, &PersistenceError{Op: "decode course", Err: err}
	}

	docs, err := e.store.Collection(store.OccurrenceRecords).Where(ctx, "course_id", "==", courseID)
	if err != nil {
		return models.CourseStatistics{}, &PersistenceError{Op: "read occurrence records", Err: err}
	}

	records := make([]models.OccurrenceRecord, 0, len(docs))
	for _, d := range docs {
		var rec models.OccurrenceRecord
		if err := d.Decode(&rec); err != nil {
			return models.CourseStatistics{}, &PersistenceError{Op: "decode occurrence record", Err: err}
		}
		records = append(records, rec)
	}

	st := stats.Compute(&course, records)

	fields := map[string]any{
		"statistics": st,
		"updated_at": e.now(),
	}
	if err := courses.Update(ctx, courseID, fields); err != nil {
		return models.CourseStatistics{}, &PersistenceError{Op: "persist statistics", Err: err}
	}

	return st, nil
}

// validateDraft checks the user-editable fields and returns the normalized
// dose slots. excludeID skips the title-uniqueness check for the course being
// updated.
func (e *Engine) validateDraft(draft *CourseDraft, excludeID string) ([]models.DoseTemplate, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, &ValidationError{Reason: "course title is empty"}
	}
	for _, other := range e.cache.Courses() {
		if other.ID != excludeID && other.Title == title {
			return nil, &ValidationError{Reason: "a course with this title already exists"}
		}
	}
	if !draft.PeriodType.Valid() {
		return nil, &ValidationError{Reason: "unknown period type"}
	}
	if draft.PeriodLength < 1 {
		return nil, &ValidationError{Reason: "period length must be at least 1"}
	}

	slots := draft.DoseSlots
	if len(slots) == 0 {
		if draft.TimesPerDay < 1 {
			return nil, &ValidationError{Reason: "course needs at least one dose per day"}
		}
		slots = schedule.DefaultDoseTemplates(draft.TimesPerDay, e.dayStartHour, e.dayActiveHours)
		for i := range slots {
			slots[i].DosageUnit = draft.DosageUnit
		}
	}

	normalized := make([]models.DoseTemplate, len(slots))
	copy(normalized, slots)
	for i := range normalized {
		normalized[i].SlotIndex = i
		normalized[i].Normalize()
	}
	return normalized, nil
}

// pruneOccurrences bulk-deletes the occurrence records that fell past the
// course's end-of-window day.
func (e *Engine) pruneOccurrences(ctx context.Context, course *models.Course) error {
	cutoff := schedule.DayIndex(course.StartDate) + schedule.CourseLengthDays(course.StartDate, course.EndDate)

	var stale []string
	for _, rec := range e.cache.RecordsForCourse(course.ID) {
		if rec.DayIndex >= cutoff {
			stale = append(stale, rec.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	if err := e.store.Collection(store.OccurrenceRecords).DeleteMany(ctx, stale); err != nil {
		return &PersistenceError{Op: "prune occurrence records", Err: err}
	}

	e.logger.WithFields(logrus.Fields{
		"course_id": course.ID,
		"pruned":    len(stale),
	}).Info("Pruned occurrence records outside course window")
	return nil
}

// rescheduleReminders cancels every outstanding reminder for the course and
// schedules the full future set again when notifications are enabled.
// Unconditional cancel-then-recreate is simpler than diffing the schedules.
func (e *Engine) rescheduleReminders(ctx context.Context, course *models.Course) error {
	if err := e.scheduler.CancelAllForCourse(ctx, course.ID); err != nil {
		return err
	}
	if course.NotificationsEnabled {
		e.scheduleAllReminders(ctx, course)
	}
	return nil
}

// scheduleAllReminders requests one reminder per future (day, slot) pair in
// the course window. Scheduling is fire-and-forget: individual failures are
// logged and skipped.
func (e *Engine) scheduleAllReminders(ctx context.Context, course *models.Course) {
	now := e.now()
	startDay := schedule.DayIndex(course.StartDate)
	endDay := schedule.DayIndex(course.EndDate)

	for day := startDay; day <= endDay; day++ {
		for _, slot := range course.DoseSlots {
			if !schedule.ReminderFireTime(day, slot).After(now) {
				continue
			}
			if err := e.scheduler.ScheduleReminder(ctx, course, slot, day); err != nil {
				e.logger.Errorf("Failed to schedule reminder for course %s slot %d day %d: %v",
					course.ID, slot.SlotIndex, day, err)
			}
		}
	}
}
