package models

import (
	"fmt"
	"time"
)

// TimeInterval is a half-open range [Start, End).
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns the interval [start, end). It fails when end is not after start.
func NewInterval(start, end time.Time) (TimeInterval, error) {
	if !start.Before(end) {
		return TimeInterval{}, fmt.Errorf("interval end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return TimeInterval{Start: start, End: end}, nil
}

// In returns the same interval expressed in loc.
func (i TimeInterval) In(loc *time.Location) TimeInterval {
	return TimeInterval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

// Duration is End - Start.
func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
