// Package cache keeps an in-process mirror of the courses and occurrence
// record collections. The snapshot listener is the only writer; every other
// component reads through the accessors. Each Cache instance owns its own
// subscription, so independent engines (and tests) never share state.
package cache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/store"
)

// Cache mirrors the two remote collections the engine reads from
type Cache struct {
	logger     *logrus.Logger
	subscribed *atomic.Bool

	mu      sync.RWMutex
	courses map[string]models.Course
	records map[string]models.OccurrenceRecord
	cancels []store.CancelFunc
}

// New creates an empty, unsubscribed cache
func New(logger *logrus.Logger) *Cache {
	return &Cache{
		logger:     logger,
		subscribed: atomic.NewBool(false),
		courses:    make(map[string]models.Course),
		records:    make(map[string]models.OccurrenceRecord),
	}
}

// Subscribe attaches the cache to both collections. Every snapshot replaces
// the mirrored contents wholesale, so the cache is exactly as fresh as the
// last delivered snapshot and never fresher.
func (c *Cache) Subscribe(st store.Store) error {
	if !c.subscribed.CAS(false, true) {
		return fmt.Errorf("cache is already subscribed")
	}

	cancelCourses, err := st.Collection(store.Courses).OnSnapshot(c.applyCourses)
	if err != nil {
		c.subscribed.Store(false)
		return fmt.Errorf("failed to subscribe to courses: %w", err)
	}

	cancelRecords, err := st.Collection(store.OccurrenceRecords).OnSnapshot(c.applyRecords)
	if err != nil {
		cancelCourses()
		c.subscribed.Store(false)
		return fmt.Errorf("failed to subscribe to occurrence records: %w", err)
	}

	c.mu.Lock()
	c.cancels = []store.CancelFunc{cancelCourses, cancelRecords}
	c.mu.Unlock()

	return nil
}

// Unsubscribe detaches the cache from the store and clears the mirror.
// It is safe to call on an unsubscribed cache.
func (c *Cache) Unsubscribe() {
	if !c.subscribed.CAS(true, false) {
		return
	}

	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.courses = make(map[string]models.Course)
	c.records = make(map[string]models.OccurrenceRecord)
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (c *Cache) applyCourses(docs []store.Document) {
	courses := make(map[string]models.Course, len(docs))
	for _, doc := range docs {
		var course models.Course
		if err := doc.Decode(&course); err != nil {
			c.logger.Errorf("Skipping undecodable course %s: %v", doc.ID, err)
			continue
		}
		courses[course.ID] = course
	}

	c.mu.Lock()
	c.courses = courses
	c.mu.Unlock()
}

func (c *Cache) applyRecords(docs []store.Document) {
	records := make(map[string]models.OccurrenceRecord, len(docs))
	for _, doc := range docs {
		var rec models.OccurrenceRecord
		if err := doc.Decode(&rec); err != nil {
			c.logger.Errorf("Skipping undecodable occurrence record %s: %v", doc.ID, err)
			continue
		}
		records[rec.ID] = rec
	}

	c.mu.Lock()
	c.records = records
	c.mu.Unlock()
}

// Course returns one mirrored course by id
func (c *Cache) Course(id string) (models.Course, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[id]
	return course, ok
}

// Courses returns every mirrored course, ordered by start date then title
func (c *Cache) Courses() []models.Course {
	c.mu.RLock()
	courses := make([]models.Course, 0, len(c.courses))
	for _, course := range c.courses {
		courses = append(courses, course)
	}
	c.mu.RUnlock()

	sort.Slice(courses, func(i, j int) bool {
		if !courses[i].StartDate.Equal(courses[j].StartDate) {
			return courses[i].StartDate.Before(courses[j].StartDate)
		}
		return courses[i].Title < courses[j].Title
	})
	return courses
}

// Record returns one mirrored occurrence record by its occurrence key
func (c *Cache) Record(id string) (models.OccurrenceRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	return rec, ok
}

// RecordsForCourse returns the mirrored occurrence records of one course
func (c *Cache) RecordsForCourse(courseID string) []models.OccurrenceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.OccurrenceRecord
	for _, rec := range c.records {
		if rec.CourseID == courseID {
			out = append(out, rec)
		}
	}
	return out
}
