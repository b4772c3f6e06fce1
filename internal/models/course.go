package models

import "time"

// PeriodType defines the unit a course duration is expressed in
type PeriodType string

const (
	PeriodDays   PeriodType = "days"
	PeriodWeeks  PeriodType = "weeks"
	PeriodMonths PeriodType = "months"
)

// DayCount returns the number of days one period unit spans. Months are a
// fixed 30-day approximation, not calendar-aware.
func (p PeriodType) DayCount() int {
	switch p {
	case PeriodDays:
		return 1
	case PeriodWeeks:
		return 7
	case PeriodMonths:
		return 30
	default:
		return 0
	}
}

// Valid reports whether the period type is one of the supported units
func (p PeriodType) Valid() bool {
	return p.DayCount() != 0
}

// MealRelation defines when a dose is taken relative to a meal
type MealRelation string

const (
	MealUnset  MealRelation = "unset"
	MealBefore MealRelation = "before_meal"
	MealDuring MealRelation = "with_meal"
	MealAfter  MealRelation = "after_meal"
)

// DosageFraction is the fractional part of a dose
type DosageFraction string

const (
	FractionNone         DosageFraction = "none"
	FractionQuarter      DosageFraction = "quarter"
	FractionThird        DosageFraction = "third"
	FractionHalf         DosageFraction = "half"
	FractionTwoThirds    DosageFraction = "two_thirds"
	FractionThreeFourths DosageFraction = "three_fourths"
)

// Value returns the numeric value of the fraction
func (f DosageFraction) Value() float64 {
	switch f {
	case FractionQuarter:
		return 0.25
	case FractionThird:
		return 1.0 / 3.0
	case FractionHalf:
		return 0.5
	case FractionTwoThirds:
		return 2.0 / 3.0
	case FractionThreeFourths:
		return 0.75
	default:
		return 0
	}
}

// DoseTemplate is one scheduled dose slot within a course's day. SlotIndex is
// 0-based and stable for the life of the course.
type DoseTemplate struct {
	SlotIndex      int            `json:"slot_index"`
	Hour           int            `json:"hour"`
	Minute         int            `json:"minute"`
	MealRelation   MealRelation   `json:"meal_relation"`
	DosageAmount   int            `json:"dosage_amount"`
	DosageFraction DosageFraction `json:"dosage_fraction"`
	DosageUnit     string         `json:"dosage_unit"`
}

// Units returns the dose size in dosage units (whole amount plus fraction)
func (d *DoseTemplate) Units() float64 {
	return float64(d.DosageAmount) + d.DosageFraction.Value()
}

// Normalize enforces the dosage invariant: amount and fraction may not both
// be zero. When one is zeroed while the other is already zero, the amount is
// forced back to 1.
func (d *DoseTemplate) Normalize() {
	if d.MealRelation == "" {
		d.MealRelation = MealUnset
	}
	if d.DosageFraction == "" {
		d.DosageFraction = FractionNone
	}
	if d.DosageAmount <= 0 && d.DosageFraction == FractionNone {
		d.DosageAmount = 1
	}
	if d.DosageAmount < 0 {
		d.DosageAmount = 0
	}
}

// CourseStatistics holds adherence numbers derived from occurrence records.
// It is persisted onto the course for fast reads but is never authoritative.
type CourseStatistics struct {
	TakenPercent int     `json:"taken_percent"`
	TimesTaken   int     `json:"times_taken"`
	TimesToTake  int     `json:"times_to_take"`
	TimesTotal   int     `json:"times_total"`
	UnitsTaken   float64 `json:"units_taken"`
	UnitsToTake  float64 `json:"units_to_take"`
	UnitsTotal   float64 `json:"units_total"`
}

// Course represents a medication regimen with a bounded date window
type Course struct {
	ID                   string           `json:"id"`
	Title                string           `json:"title"`
	DoseSlots            []DoseTemplate   `json:"dose_slots"`
	PeriodType           PeriodType       `json:"period_type"`
	PeriodLength         int              `json:"period_length"`
	StartDate            time.Time        `json:"start_date"`
	EndDate              time.Time        `json:"end_date"`
	NotificationsEnabled bool             `json:"notifications_enabled"`
	ImageRef             string           `json:"image_ref,omitempty"`
	Statistics           CourseStatistics `json:"statistics"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}
