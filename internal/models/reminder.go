package models

import "time"

// Reminder is one scheduled dose notification. Its ID is the occurrence key
// of the dose it reminds about, so scheduling and cancelling the same
// occurrence are idempotent.
type Reminder struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	CourseTitle string     `json:"course_title"`
	SlotIndex   int        `json:"slot_index"`
	DayIndex    int        `json:"day_index"`
	DosageUnit  string     `json:"dosage_unit"`
	FireAt      time.Time  `json:"fire_at"`
	Active      bool       `json:"active"`
	LastSentAt  *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsDue returns true if the reminder should fire at the given moment
func (r *Reminder) IsDue(now time.Time) bool {
	if !r.Active {
		return false
	}
	return now.After(r.FireAt)
}
