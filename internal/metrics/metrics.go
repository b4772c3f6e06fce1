// Package metrics exposes engine counters over prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine counters. A nil *Metrics is valid and counts
// nothing, so tests can run without a registry.
type Metrics struct {
	coursesCreated      prometheus.Counter
	coursesUpdated      prometheus.Counter
	coursesDeleted      prometheus.Counter
	occurrenceToggles   prometheus.Counter
	remindersDispatched prometheus.Counter
}

// New registers the engine counters with the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		coursesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pillmate_courses_created_total",
			Help: "Number of medication courses created.",
		}),
		coursesUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pillmate_courses_updated_total",
			Help: "Number of medication courses updated.",
		}),
		coursesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pillmate_courses_deleted_total",
			Help: "Number of medication courses deleted.",
		}),
		occurrenceToggles: factory.NewCounter(prometheus.CounterOpts{
			Name: "pillmate_occurrence_toggles_total",
			Help: "Number of dose occurrence toggles.",
		}),
		remindersDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "pillmate_reminders_dispatched_total",
			Help: "Number of dose reminders dispatched.",
		}),
	}
}

func (m *Metrics) CourseCreated() {
	if m != nil {
		m.coursesCreated.Inc()
	}
}

func (m *Metrics) CourseUpdated() {
	if m != nil {
		m.coursesUpdated.Inc()
	}
}

func (m *Metrics) CourseDeleted() {
	if m != nil {
		m.coursesDeleted.Inc()
	}
}

func (m *Metrics) OccurrenceToggled() {
	if m != nil {
		m.occurrenceToggles.Inc()
	}
}

func (m *Metrics) ReminderDispatched() {
	if m != nil {
		m.remindersDispatched.Inc()
	}
}

// Handler returns the HTTP handler serving the default prometheus registry
func Handler() http.Handler {
	return promhttp.Handler()
}
