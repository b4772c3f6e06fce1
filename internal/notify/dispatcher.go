package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/pillmate/pillmate/internal/metrics"
	"github.com/pillmate/pillmate/internal/models"
	"github.com/pillmate/pillmate/internal/store"
)

// SendFunc delivers one reminder message to the user
type SendFunc func(text string)

// Dispatcher periodically scans the reminder schedule and fires due
// reminders through the delivery callback. Delivery guarantees end at the
// callback; a reminder is marked sent once the callback returns.
type Dispatcher struct {
	store    store.Store
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	running  *atomic.Bool
	now      func() time.Time
}

// NewDispatcher creates a reminder dispatcher
func NewDispatcher(st store.Store, m *metrics.Metrics, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		store:    st,
		logger:   logger,
		metrics:  m,
		interval: 30 * time.Second,
		running:  atomic.NewBool(false),
		now:      time.Now,
	}
}

// Run checks for due reminders on every tick and fires the callback for each
// one. It blocks until the context is cancelled, so it should be launched in
// a separate goroutine.
func (d *Dispatcher) Run(ctx context.Context, send SendFunc) {
	if !d.running.CAS(false, true) {
		d.logger.Warn("Reminder dispatcher is already running")
		return
	}
	defer d.running.Store(false)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("Reminder dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Reminder dispatcher stopped")
			return
		case <-ticker.C:
			d.DispatchDue(ctx, send)
		}
	}
}

// DispatchDue fires every due reminder and deactivates it afterwards. Dose
// reminders are one-shot: a new occurrence gets a new reminder document.
func (d *Dispatcher) DispatchDue(ctx context.Context, send SendFunc) {
	docs, err := d.store.Collection(store.Reminders).Get(ctx)
	if err != nil {
		d.logger.Errorf("Failed to load reminders: %v", err)
		return
	}

	now := d.now()
	for _, doc := range docs {
		var reminder models.Reminder
		if err := doc.Decode(&reminder); err != nil {
			d.logger.Errorf("Skipping undecodable reminder %s: %v", doc.ID, err)
			continue
		}
		if !reminder.IsDue(now) {
			continue
		}

		send(formatReminder(&reminder))
		d.metrics.ReminderDispatched()

		fields := map[string]any{
			"active":       false,
			"last_sent_at": now,
			"updated_at":   now,
		}
		if err := d.store.Collection(store.Reminders).Update(ctx, reminder.ID, fields); err != nil {
			d.logger.Errorf("Failed to mark reminder %s as sent: %v", reminder.ID, err)
		}
	}
}

func formatReminder(r *models.Reminder) string {
	unit := r.DosageUnit
	if unit == "" {
		unit = "dose"
	}
	return fmt.Sprintf("💊 *Medication reminder*\n%s — %s #%d is due (%s)",
		r.CourseTitle, unit, r.SlotIndex+1, r.FireAt.Format("15:04"))
}
