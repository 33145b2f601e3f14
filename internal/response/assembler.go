// Package response maps availability snapshots to the payload returned to callers.
package response

import (
	"fmt"
	"time"

	"meetsched/internal/apperr"
	"meetsched/internal/availability"
	"meetsched/internal/models"
	"meetsched/internal/snapshot"
)

type Period struct {
	Days        int    `json:"days"`
	CurrentTime string `json:"currentTime"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type WorkingHours struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

type BusySlot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Formatted string `json:"formatted"`
	Day       string `json:"day"`
	Date      string `json:"date"`
	TimeRange string `json:"timeRange"`
}

type FreeSlot struct {
	Start     string `json:"start"`
	Formatted string `json:"formatted"`
	Day       string `json:"day"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

type Event struct {
	Summary   string `json:"summary"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Formatted string `json:"formatted"`
	IsAllDay  bool   `json:"isAllDay"`
}

type Stats struct {
	BusySlots int `json:"busySlots"`
	FreeSlots int `json:"freeSlots"`
	Events    int `json:"events"`
}

// Response is the stable output shape for calendar-data and request-meeting.
type Response struct {
	Employee     models.Subject `json:"employee"`
	Message      string         `json:"message"`
	Suggestion   string         `json:"suggestion,omitempty"`
	Period       Period         `json:"period"`
	WorkingHours WorkingHours   `json:"workingHours"`
	BusySlots    []BusySlot     `json:"busySlots"`
	FreeSlots    []FreeSlot     `json:"freeSlots"`
	Events       []Event        `json:"events"`
	Stats        Stats          `json:"stats"`
}

// Assemble builds the response for snap. suggestion may be empty.
func Assemble(snap *snapshot.Snapshot, suggestion string) (*Response, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	resp := &Response{
		Employee:     snap.Subject,
		Message:      Greeting(snap),
		Suggestion:   suggestion,
		Period:       period(snap),
		WorkingHours: workingHours(snap),
		BusySlots:    make([]BusySlot, 0, len(snap.Busy)),
		FreeSlots:    make([]FreeSlot, 0, len(snap.Free)),
		Events:       make([]Event, 0, len(snap.Events)),
		Stats: Stats{
			BusySlots: len(snap.Busy),
			FreeSlots: len(snap.Free),
			Events:    len(snap.Events),
		},
	}
	for _, b := range snap.Busy {
		resp.BusySlots = append(resp.BusySlots, BusySlot{
			Start:     b.Interval.Start.Format(time.RFC3339),
			End:       b.Interval.End.Format(time.RFC3339),
			Formatted: availability.FormatBusy(b),
			Day:       b.Day,
			Date:      b.Date,
			TimeRange: b.TimeRange,
		})
	}
	for _, s := range snap.Free {
		resp.FreeSlots = append(resp.FreeSlots, FreeSlot{
			Start:     s.Start.Format(time.RFC3339),
			Formatted: availability.FormatFree(s),
			Day:       s.Day,
			Date:      s.Date,
			Time:      s.Time,
		})
	}
	for _, e := range snap.Events {
		resp.Events = append(resp.Events, Event{
			Summary:   e.Title,
			Start:     e.Interval.Start.Format(time.RFC3339),
			End:       e.Interval.End.Format(time.RFC3339),
			Formatted: availability.FormatEvent(e),
			IsAllDay:  e.IsAllDay,
		})
	}
	return resp, nil
}

// Greeting is the header line naming the subject and the horizon.
func Greeting(snap *snapshot.Snapshot) string {
	return fmt.Sprintf("Hi! You asked to meet %s. I'm checking the next %d days (from today: %s in %s).",
		snap.Subject.Name, snap.HorizonDays, currentTime(snap), snap.Location.String())
}

func checkSnapshot(snap *snapshot.Snapshot) error {
	switch {
	case snap == nil:
		return apperr.Validation("assemble response", "snapshot is nil")
	case snap.Busy == nil, snap.Free == nil, snap.Events == nil:
		return apperr.Validation("assemble response", "snapshot collections must not be nil")
	case snap.Location == nil:
		return apperr.Validation("assemble response", "snapshot has no timezone")
	}
	return nil
}

func currentTime(snap *snapshot.Snapshot) string {
	now := snap.Now.In(snap.Location)
	return fmt.Sprintf("%s, %s at %s", availability.DayLabel(now), availability.DateLabel(now), availability.TimeLabel(now))
}

func period(snap *snapshot.Snapshot) Period {
	return Period{
		Days:        snap.HorizonDays,
		CurrentTime: currentTime(snap),
		Start:       snap.WindowStart.Format(time.RFC3339),
		End:         snap.WindowEnd.Format(time.RFC3339),
	}
}

func workingHours(snap *snapshot.Snapshot) WorkingHours {
	return WorkingHours{
		Start:    fmt.Sprintf("%02d:00", snap.Hours.StartHour),
		End:      fmt.Sprintf("%02d:00", snap.Hours.EndHour),
		Timezone: snap.Location.String(),
	}
}
