package snapshot

import (
	"context"
	"time"
)

// RawBusy is a busy range as the provider reports it (RFC3339 with any offset).
type RawBusy struct {
	Start string
	End   string
}

// RawEvent is an event as the provider reports it. Timed events carry DateTime
// values; all-day events carry only Date values ("2006-01-02", end exclusive).
type RawEvent struct {
	ID            string
	Summary       string
	Status        string
	StartDateTime string
	EndDateTime   string
	StartDate     string
	EndDate       string
}

// Provider is the read side of an external calendar. Implementations return
// apperr-classified errors; anything unclassified is treated as an upstream failure.
type Provider interface {
	QueryFreeBusy(ctx context.Context, credential, calendarID string, start, end time.Time) ([]RawBusy, error)
	ListEvents(ctx context.Context, credential, calendarID string, start, end time.Time) ([]RawEvent, error)
}
