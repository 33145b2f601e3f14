package availability

import (
	"time"

	"meetsched/internal/models"
)

// Window describes the days and hours over which slots are generated.
type Window struct {
	Start        time.Time // Only the calendar date in Location is used.
	HorizonDays  int
	Hours        models.WorkingHours
	SlotDuration time.Duration
	Location     *time.Location
}

// FreeSlots walks every working day of the window in SlotDuration steps and returns
// the slots that neither lie in the past nor overlap a busy interval.
//
// A slot is dropped as past only when its end is at or before now, so the slot
// currently in progress is still offered. Slots that would run past the end of
// the working day are not generated. The result is ordered by start time.
func FreeSlots(w Window, busy []models.TimeInterval, now time.Time) []models.FreeSlot {
	if w.HorizonDays <= 0 || w.SlotDuration <= 0 {
		return []models.FreeSlot{}
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}

	y, m, d := w.Start.In(loc).Date()
	slots := []models.FreeSlot{}
	for day := 0; day < w.HorizonDays; day++ {
		// time.Date normalises day overflow and keeps wall-clock hours across DST changes.
		dayStart := time.Date(y, m, d+day, w.Hours.StartHour, 0, 0, 0, loc)
		dayEnd := time.Date(y, m, d+day, w.Hours.EndHour, 0, 0, 0, loc)
		if !now.Before(dayEnd) {
			continue
		}

		for cursor := dayStart; !cursor.Add(w.SlotDuration).After(dayEnd); cursor = cursor.Add(w.SlotDuration) {
			slotEnd := cursor.Add(w.SlotDuration)
			if !slotEnd.After(now) {
				continue
			}
			slot := models.TimeInterval{Start: cursor, End: slotEnd}
			if overlapsAny(slot, busy) {
				continue
			}
			slots = append(slots, NewFreeSlot(slot))
		}
	}
	return slots
}

// NewFreeSlot labels a slot interval.
func NewFreeSlot(i models.TimeInterval) models.FreeSlot {
	return models.FreeSlot{
		Start: i.Start,
		End:   i.End,
		Day:   DayLabel(i.Start),
		Date:  DateLabel(i.Start),
		Time:  TimeLabel(i.Start),
	}
}
