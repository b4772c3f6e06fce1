package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/pillmate/pillmate/internal/notify"
	"github.com/pillmate/pillmate/internal/schedule"
	"github.com/pillmate/pillmate/internal/store/memory"
)

func TestDispatcher_FiresDueRemindersOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sched := notify.NewStoreScheduler(st, logrus.New())
	course := testCourse()

	today := schedule.DayIndex(time.Now())
	// One reminder in the past (due) and one tomorrow (not due).
	dueSlot := course.DoseSlots[0]
	dueSlot.Hour = 0
	dueSlot.Minute = 0
	require.NoError(t, sched.ScheduleReminder(ctx, course, dueSlot, today))
	require.NoError(t, sched.ScheduleReminder(ctx, course, course.DoseSlots[0], today+1))

	d := notify.NewDispatcher(st, nil, logrus.New())

	var sent []string
	send := func(text string) { sent = append(sent, text) }

	d.DispatchDue(ctx, send)
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], "Magnesium")

	// A fired reminder is deactivated and never fires again.
	d.DispatchDue(ctx, send)
	require.Len(t, sent, 1)

	reminders := loadReminders(t, st)
	require.Len(t, reminders, 2)
	for _, r := range reminders {
		if r.DayIndex == today {
			require.False(t, r.Active)
			require.NotNil(t, r.LastSentAt)
		} else {
			require.True(t, r.Active)
		}
	}
}
