package models

import "time"

// OccurrenceRecord is the persisted fact of whether one dose slot on one day
// was taken. Its ID is the deterministic occurrence key, never generated, so
// at most one record can exist per (course, slot, day) triple.
type OccurrenceRecord struct {
	ID             string    `json:"id"`
	CourseID       string    `json:"course_id"`
	SlotIndex      int       `json:"slot_index"`
	DayIndex       int       `json:"day_index"`
	IsTaken        bool      `json:"is_taken"`
	DosageSnapshot float64   `json:"dosage_snapshot"`
	UpdatedAt      time.Time `json:"updated_at"`
}
