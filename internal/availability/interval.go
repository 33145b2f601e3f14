// Package availability computes free slots inside working hours from busy intervals.
package availability

import "meetsched/internal/models"

// Overlaps reports whether two half-open intervals share any instant.
// Intervals that only touch at a boundary do not overlap.
func Overlaps(a, b models.TimeInterval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func overlapsAny(slot models.TimeInterval, busy []models.TimeInterval) bool {
	for _, b := range busy {
		if Overlaps(slot, b) {
			return true
		}
	}
	return false
}
