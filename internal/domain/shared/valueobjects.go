// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a half-open time period [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return !tm.Before(t.From) && tm.Before(t.To)
}

// TodayAt returns the calendar day containing now, in now's location.
func TodayAt(now time.Time) TimeRange {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return TimeRange{From: start, To: start.AddDate(0, 0, 1)}
}

// Last24HoursAt returns the 24 hours ending at now.
func Last24HoursAt(now time.Time) TimeRange {
	return TimeRange{From: now.Add(-24 * time.Hour), To: now.Add(time.Nanosecond)}
}

// ═══════════════════════════════════════════════════════════════════════════
// Limit Value Object
// ═══════════════════════════════════════════════════════════════════════════

const (
	// DefaultListLimit is how many profiles a list screen shows at once.
	DefaultListLimit = 20
	// MaxListLimit caps any caller-supplied limit.
	MaxListLimit = 100
)

// ClampLimit normalises a caller-supplied list limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
