package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/pillmate/pillmate/internal/cache"
	"github.com/pillmate/pillmate/internal/engine"
	"github.com/pillmate/pillmate/internal/events"
	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/notify"
	"github.com/pillmate/pillmate/internal/schedule"
	"github.com/pillmate/pillmate/internal/store"
	"github.com/pillmate/pillmate/internal/store/memory"
)

// fakeClock lets tests move "today" around.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

// recordingEvents captures emitted lifecycle events.
type recordingEvents struct {
	kinds []events.Kind
}

func (r *recordingEvents) Log(kind events.Kind, courseTitle string) {
	r.kinds = append(r.kinds, kind)
}

type testEnv struct {
	engine *engine.Engine
	store  *memory.Store
	cache  *cache.Cache
	clock  *fakeClock
	events *recordingEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	st := memory.New()

	c := cache.New(logger)
	require.NoError(t, c.Subscribe(st))
	t.Cleanup(c.Unsubscribe)

	clock := &fakeClock{t: time.Date(2025, 6, 1, 7, 0, 0, 0, time.Local)}
	ev := &recordingEvents{}

	eng := engine.New(engine.Deps{
		Store:     st,
		Cache:     c,
		Scheduler: notify.NewStoreScheduler(st, logger),
		Events:    ev,
		Logger:    logger,
		Clock:     clock.Now,
	})

	return &testEnv{engine: eng, store: st, cache: c, clock: clock, events: ev}
}

func weekDraft() engine.CourseDraft {
	return engine.CourseDraft{
		Title:                "Amoxicillin",
		TimesPerDay:          3,
		PeriodType:           models.PeriodDays,
		PeriodLength:         7,
		DosageUnit:           "capsule",
		NotificationsEnabled: true,
	}
}

func (env *testEnv) reminders(t *testing.T) []models.Reminder {
	t.Helper()
	docs, err := env.store.Collection(store.Reminders).Get(context.Background())
	require.NoError(t, err)

	out := make([]models.Reminder, 0, len(docs))
	for _, doc := range docs {
		var r models.Reminder
		require.NoError(t, doc.Decode(&r))
		out = append(out, r)
	}
	return out
}

func (env *testEnv) storedCourse(t *testing.T, id string) models.Course {
	t.Helper()
	doc, found, err := env.store.Collection(store.Courses).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)

	var course models.Course
	require.NoError(t, doc.Decode(&course))
	return course
}

func TestCreateCourse(t *testing.T) {
	env := newTestEnv(t)

	course, err := env.engine.CreateCourse(context.Background(), weekDraft())
	require.NoError(t, err)

	require.NotEmpty(t, course.ID)
	require.Equal(t, "Amoxicillin", course.Title)
	require.Len(t, course.DoseSlots, 3)
	require.Equal(t, 7, schedule.CourseLengthDays(course.StartDate, course.EndDate))

	// Fresh course: everything still to take.
	require.Equal(t, 21, course.Statistics.TimesTotal)
	require.Equal(t, 0, course.Statistics.TimesTaken)
	require.Equal(t, 0, course.Statistics.TakenPercent)

	// One reminder per future (day, slot) pair; the course was created before
	// the first dose of the day, so all 21 occurrences are ahead of us.
	require.Len(t, env.reminders(t), 21)

	require.Equal(t, []events.Kind{events.CourseCreated}, env.events.kinds)

	// The cache mirrors the persisted course.
	mirrored, ok := env.cache.Course(course.ID)
	require.True(t, ok)
	require.Equal(t, course.Title, mirrored.Title)
}

func TestCreateCourse_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.CreateCourse(ctx, engine.CourseDraft{Title: "  ", TimesPerDay: 1, PeriodType: models.PeriodDays, PeriodLength: 1})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)

	draft := weekDraft()
	draft.PeriodType = "fortnights"
	_, err = env.engine.CreateCourse(ctx, draft)
	require.ErrorAs(t, err, &verr)

	draft = weekDraft()
	draft.PeriodLength = 0
	_, err = env.engine.CreateCourse(ctx, draft)
	require.ErrorAs(t, err, &verr)

	draft = weekDraft()
	draft.TimesPerDay = 0
	_, err = env.engine.CreateCourse(ctx, draft)
	require.ErrorAs(t, err, &verr)
}

func TestCreateCourse_DuplicateTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.CreateCourse(ctx, weekDraft())
	require.NoError(t, err)

	_, err = env.engine.CreateCourse(ctx, weekDraft())
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)

	// Titles are matched exactly, case-sensitively.
	draft := weekDraft()
	draft.Title = "amoxicillin"
	_, err = env.engine.CreateCourse(ctx, draft)
	require.NoError(t, err)
}

func TestCreateCourse_NoNotifications(t *testing.T) {
	env := newTestEnv(t)

	draft := weekDraft()
	draft.NotificationsEnabled = false
	_, err := env.engine.CreateCourse(context.Background(), draft)
	require.NoError(t, err)

	require.Empty(t, env.reminders(t))
}

func TestCreateCourse_DosageInvariant(t *testing.T) {
	env := newTestEnv(t)

	draft := weekDraft()
	draft.DoseSlots = []models.DoseTemplate{
		{Hour: 9, DosageAmount: 0, DosageFraction: models.FractionNone, DosageUnit: "ml"},
		{Hour: 21, DosageAmount: 0, DosageFraction: models.FractionHalf, DosageUnit: "ml"},
	}

	course, err := env.engine.CreateCourse(context.Background(), draft)
	require.NoError(t, err)

	// Amount and fraction may not both be zero: the first slot snaps to 1.
	require.Equal(t, 1, course.DoseSlots[0].DosageAmount)
	// A pure fraction dose stays as-is.
	require.Equal(t, 0, course.DoseSlots[1].DosageAmount)
	require.Equal(t, models.FractionHalf, course.DoseSlots[1].DosageFraction)

	require.Equal(t, 0, course.DoseSlots[0].SlotIndex)
	require.Equal(t, 1, course.DoseSlots[1].SlotIndex)
}

func TestUpdateCourse_ShrinkPrunesRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	course, err := env.engine.CreateCourse(ctx, weekDraft())
	require.NoError(t, err)
	startDay := schedule.DayIndex(course.StartDate)

	// Take a dose on day 0 and another on day 5.
	_, err = env.engine.ToggleOccurrence(ctx, course.ID, 0)
	require.NoError(t, err)

	env.clock.t = env.clock.t.AddDate(0, 0, 5)
	_, err = env.engine.ToggleOccurrence(ctx, course.ID, 0)
	require.NoError(t, err)
	require.Len(t, env.cache.RecordsForCourse(course.ID), 2)

	// Shrink the window from 7 days to 3: the day-5 record falls outside.
	draft := weekDraft()
	draft.PeriodLength = 3
	updated, err := env.engine.UpdateCourse(ctx, course.ID, draft)
	require.NoError(t, err)

	require.WithinDuration(t, course.StartDate, updated.StartDate, 0)
	require.Equal(t, 3, schedule.CourseLengthDays(updated.StartDate, updated.EndDate))

	records := env.cache.RecordsForCourse(course.ID)
	require.Len(t, records, 1)
	require.Equal(t, startDay, records[0].DayIndex)

	// Statistics recompute against the shrunken window.
	stored := env.storedCourse(t, course.ID)
	require.Equal(t, 9, stored.Statistics.TimesTotal)
	require.Equal(t, 1, stored.Statistics.TimesTaken)
	require.Equal(t, 8, stored.Statistics.TimesToTake)
}

func TestUpdateCourse_ReschedulesReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	course, err := env.engine.CreateCourse(ctx, weekDraft())
	require.NoError(t, err)
	require.Len(t, env.reminders(t), 21)

	// Disabling notifications clears the schedule entirely.
	draft := weekDraft()
	draft.NotificationsEnabled = false
	_, err = env.engine.UpdateCourse(ctx, course.ID, draft)
	require.NoError(t, err)
	require.Empty(t, env.reminders(t))

	// Re-enabling rebuilds the future schedule from scratch.
	draft.NotificationsEnabled = true
	_, err = env.engine.UpdateCourse(ctx, course.ID, draft)
	require.NoError(t, err)
	require.Len(t, env.reminders(t), 21)
}

func TestUpdateCourse_KeepsOwnTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	course, err := env.engine.CreateCourse(ctx, weekDraft())
	require.NoError(t, err)

	// Re-saving a course under its own title is not a duplicate.
	_, err = env.engine.UpdateCourse(ctx, course.ID, weekDraft())
	require.NoError(t, err)

	other := weekDraft()
	other.Title = "Ibuprofen"
	_, err = env.engine.CreateCourse(ctx, other)
	require.NoError(t, err)

	// But stealing another course's title is.
	draft := weekDraft()
	draft.Title = "Ibuprofen"
	_, err = env.engine.UpdateCourse(ctx, course.ID, draft)
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestUpdateCourse_UnknownCourse(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.UpdateCourse(context.Background(), "missing", weekDraft())
	require.ErrorIs(t, err, engine.ErrCourseNotFound)
}

func TestDeleteCourse_Cascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	course, err := env.engine.CreateCourse(ctx, weekDraft())
	require.NoError(t, err)
	_, err = env.engine.ToggleOccurrence(ctx, course.ID, 0)
	require.NoError(t, err)

	require.NoError(t, env.engine.DeleteCourse(ctx, course.ID))

	_, ok := env.cache.Course(course.ID)
	require.False(t, ok)
	require.Empty(t, env.cache.RecordsForCourse(course.ID))
	require.Empty(t, env.reminders(t))
	require.Equal(t, []events.Kind{events.CourseCreated, events.CourseDeleted}, env.events.kinds)
}

func TestDeleteCourse_AbsentIsNoop(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.engine.DeleteCourse(context.Background(), "missing"))
	require.Empty(t, env.events.kinds)
}

func TestRecalculateStatistics_MissingCourse(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.RecalculateStatistics(context.Background(), "missing")
	require.ErrorIs(t, err, engine.ErrCourseNotFound)
}
