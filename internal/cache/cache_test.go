package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/pillmate/pillmate/internal/cache"
	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/store"
	"github.com/pillmate/pillmate/internal/store/memory"
)

func TestCache_MirrorsSnapshots(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	c := cache.New(logrus.New())

	require.NoError(t, c.Subscribe(st))
	defer c.Unsubscribe()

	course := models.Course{
		ID:        "course-1",
		Title:     "Ibuprofen",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local),
	}
	require.NoError(t, st.Collection(store.Courses).Set(ctx, course.ID, course))

	got, ok := c.Course("course-1")
	require.True(t, ok)
	require.Equal(t, "Ibuprofen", got.Title)

	rec := models.OccurrenceRecord{ID: "course-1_0_20089", CourseID: "course-1", IsTaken: true}
	require.NoError(t, st.Collection(store.OccurrenceRecords).Set(ctx, rec.ID, rec))

	gotRec, ok := c.Record(rec.ID)
	require.True(t, ok)
	require.True(t, gotRec.IsTaken)
	require.Len(t, c.RecordsForCourse("course-1"), 1)

	// Deleting remotely drops the mirrored copy on the next snapshot.
	require.NoError(t, st.Collection(store.Courses).Delete(ctx, course.ID))
	_, ok = c.Course("course-1")
	require.False(t, ok)
}

func TestCache_CoursesOrdering(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	c := cache.New(logrus.New())
	require.NoError(t, c.Subscribe(st))
	defer c.Unsubscribe()

	early := models.Course{ID: "b", Title: "B", StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local)}
	late := models.Course{ID: "a", Title: "A", StartDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.Local)}
	require.NoError(t, st.Collection(store.Courses).Set(ctx, late.ID, late))
	require.NoError(t, st.Collection(store.Courses).Set(ctx, early.ID, early))

	courses := c.Courses()
	require.Len(t, courses, 2)
	require.Equal(t, "b", courses[0].ID)
	require.Equal(t, "a", courses[1].ID)
}

func TestCache_SubscribeTwiceFails(t *testing.T) {
	st := memory.New()
	c := cache.New(logrus.New())

	require.NoError(t, c.Subscribe(st))
	require.Error(t, c.Subscribe(st))
	c.Unsubscribe()

	// After unsubscribing the cache can be attached again.
	require.NoError(t, c.Subscribe(st))
	c.Unsubscribe()
}

func TestCache_UnsubscribeStopsUpdatesAndClears(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	c := cache.New(logrus.New())
	require.NoError(t, c.Subscribe(st))

	course := models.Course{ID: "course-1", Title: "Zinc"}
	require.NoError(t, st.Collection(store.Courses).Set(ctx, course.ID, course))
	_, ok := c.Course("course-1")
	require.True(t, ok)

	c.Unsubscribe()
	_, ok = c.Course("course-1")
	require.False(t, ok)

	require.NoError(t, st.Collection(store.Courses).Set(ctx, "course-2", models.Course{ID: "course-2"}))
	_, ok = c.Course("course-2")
	require.False(t, ok)

	// Unsubscribing again is a no-op.
	c.Unsubscribe()
}
