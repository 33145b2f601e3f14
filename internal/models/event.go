package models

import "time"

// CalendarEvent is a calendar entry normalised into the configured civil timezone.
// All-day events have already been widened to whole-day intervals.
type CalendarEvent struct {
	ID       string       // Provider event ID
	Title    string       // Summary or title of the event
	Interval TimeInterval // Occupied range, in the civil timezone
	IsAllDay bool         // True when the provider only reported dates
}

// FreeSlot is a schedulable slot produced by the slot generator.
// The slot covers [Start, End).
type FreeSlot struct {
	Start time.Time
	End   time.Time
	Day   string // "Monday"
	Date  string // "Jan 2, 2006"
	Time  string // "15:04"
}

// BusySlot is a provider-reported occupied range with precomputed labels.
type BusySlot struct {
	Interval  TimeInterval
	Day       string
	Date      string
	TimeRange string // "10:00 - 11:00"
}

// WorkingHours is the daily window within which slots are schedulable.
type WorkingHours struct {
	StartHour int `yaml:"start_hour" json:"startHour"`
	EndHour   int `yaml:"end_hour" json:"endHour"`
}
