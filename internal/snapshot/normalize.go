package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"meetsched/internal/apperr"
	"meetsched/internal/models"
)

const dateOnly = "2006-01-02"

func normalizeBusy(raw []RawBusy, loc *time.Location) ([]models.TimeInterval, error) {
	out := make([]models.TimeInterval, 0, len(raw))
	for i, r := range raw {
		start, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			return nil, apperr.Upstream("normalize busy", fmt.Errorf("busy[%d] start %q: %w", i, r.Start, err))
		}
		end, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return nil, apperr.Upstream("normalize busy", fmt.Errorf("busy[%d] end %q: %w", i, r.End, err))
		}
		interval, err := models.NewInterval(start.In(loc), end.In(loc))
		if err != nil {
			return nil, apperr.Upstream("normalize busy", fmt.Errorf("busy[%d]: %w", i, err))
		}
		out = append(out, interval)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func normalizeEvents(raw []RawEvent, loc *time.Location) ([]models.CalendarEvent, error) {
	out := make([]models.CalendarEvent, 0, len(raw))
	for i, r := range raw {
		if strings.EqualFold(r.Status, "cancelled") {
			continue
		}
		ev, err := normalizeEvent(r, loc)
		if err != nil {
			return nil, apperr.Upstream("normalize events", fmt.Errorf("event[%d] %q: %w", i, r.ID, err))
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Interval.Start.Before(out[j].Interval.Start) })
	return out, nil
}

func normalizeEvent(r RawEvent, loc *time.Location) (models.CalendarEvent, error) {
	ev := models.CalendarEvent{ID: r.ID, Title: r.Summary}

	switch {
	case r.StartDateTime != "":
		start, err := time.Parse(time.RFC3339, r.StartDateTime)
		if err != nil {
			return ev, fmt.Errorf("start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, r.EndDateTime)
		if err != nil {
			return ev, fmt.Errorf("end: %w", err)
		}
		interval, err := models.NewInterval(start.In(loc), end.In(loc))
		if err != nil {
			return ev, err
		}
		ev.Interval = interval

	case r.StartDate != "":
		interval, err := wholeDays(r.StartDate, r.EndDate, loc)
		if err != nil {
			return ev, err
		}
		ev.Interval = interval
		ev.IsAllDay = true

	default:
		return ev, fmt.Errorf("event has neither dateTime nor date")
	}
	return ev, nil
}

// wholeDays widens a date-only range to [00:00 of start, 00:00 of end) in loc.
// A missing or non-increasing end date covers the start date alone.
func wholeDays(startDate, endDate string, loc *time.Location) (models.TimeInterval, error) {
	start, err := time.ParseInLocation(dateOnly, startDate, loc)
	if err != nil {
		return models.TimeInterval{}, fmt.Errorf("start date: %w", err)
	}
	end := start.AddDate(0, 0, 1)
	if endDate != "" {
		parsed, err := time.ParseInLocation(dateOnly, endDate, loc)
		if err != nil {
			return models.TimeInterval{}, fmt.Errorf("end date: %w", err)
		}
		if parsed.After(start) {
			end = parsed
		}
	}
	return models.NewInterval(start, end)
}
