package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pillmate/pillmate/internal/engine"
	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/schedule"
)

func TestToggleOccurrence_FirstToggleCreatesTaken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	course, err := env.engine.CreateCourse(ctx, weekDraft())
	require.NoError(t, err)

	record, err := env.engine.ToggleOccurrence(ctx, course.ID, 0)
	require.NoError(t, err)

	today := schedule.DayIndex(env.clock.Now())
	require.Equal(t, schedule.OccurrenceKey(course.ID, 0, today), record.ID)
	require.True(t, record.IsTaken)
	require.Equal(t, 0, record.SlotIndex)
	require.Equal(t, today, record.DayIndex)
	require.InDelta(t, 1.0, record.DosageSnapshot, 1e-9)

	// Statistics follow immediately: 1 of 21 taken is 5 percent.
	stored := env.storedCourse(t, course.ID)
	require.Equal(t, 1, stored.Statistics.TimesTaken)
	require.Equal(t, 20, stored.Statistics.TimesToTake)
	require.Equal(t, 5, stored.Statistics.TakenPercent)

	// The taken occurrence no longer carries a reminder.
	for _, reminder := range env.reminders(t) {
		require.NotEqual(t, record.ID, reminder.ID)
	}
	require.Len(t, env.reminders(t), 20)
}

func TestToggleOccurrence_SecondToggleReverts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	course, err := env.engine.CreateCourse(ctx, weekDraft())
	require.NoError(t, err)

	first, err := env.engine.ToggleOccurrence(ctx, course.ID, 0)
	require.NoError(t, err)
	require.True(t, first.IsTaken)

	second, err := env.engine.ToggleOccurrence(ctx, course.ID, 0)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.False(t, second.IsTaken)

	// Back to square one: statistics and reminder schedule fully restored.
	stored := env.storedCourse(t, course.ID)
	require.Equal(t, 0, stored.Statistics.TimesTaken)
	require.Equal(t, 0, stored.Statistics.TakenPercent)
	require.Len(t, env.reminders(t), 21)

	// Only one record exists for the occurrence, whatever the toggle count.
	require.Len(t, env.cache.RecordsForCourse(course.ID), 1)
}

func TestToggleOccurrence_SnapshotsDosage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := weekDraft()
	draft.DoseSlots = []models.DoseTemplate{
		{Hour: 9, DosageAmount: 2, DosageFraction: models.FractionHalf, DosageUnit: "ml"},
	}
	course, err := env.engine.CreateCourse(ctx, draft)
	require.NoError(t, err)

	record, err := env.engine.ToggleOccurrence(ctx, course.ID, 0)
	require.NoError(t, err)
	require.InDelta(t, 2.5, record.DosageSnapshot, 1e-9)

	stored := env.storedCourse(t, course.ID)
	require.InDelta(t, 2.5, stored.Statistics.UnitsTaken, 1e-9)
}

func TestToggleOccurrence_UnknownCourse(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.ToggleOccurrence(context.Background(), "missing", 0)
	require.ErrorIs(t, err, engine.ErrCourseNotFound)
}

func TestToggleOccurrence_UnknownSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	course, err := env.engine.CreateCourse(ctx, weekDraft())
	require.NoError(t, err)

	_, err = env.engine.ToggleOccurrence(ctx, course.ID, 99)
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestToggleOccurrence_NoNotificationsNoReminderSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := weekDraft()
	draft.NotificationsEnabled = false
	course, err := env.engine.CreateCourse(ctx, draft)
	require.NoError(t, err)

	_, err = env.engine.ToggleOccurrence(ctx, course.ID, 0)
	require.NoError(t, err)
	require.Empty(t, env.reminders(t))
}
