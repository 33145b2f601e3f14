package availability

import (
	"fmt"
	"time"

	"meetsched/internal/models"
)

const (
	dateLayout = "Jan 2, 2006"
	timeLayout = "15:04"
)

func DayLabel(t time.Time) string  { return t.Weekday().String() }
func DateLabel(t time.Time) string { return t.Format(dateLayout) }
func TimeLabel(t time.Time) string { return t.Format(timeLayout) }

// RangeLabel renders "10:00 - 11:00". When the interval ends on a later date the
// end carries its date as well.
func RangeLabel(i models.TimeInterval) string {
	if sameDate(i.Start, i.End) {
		return fmt.Sprintf("%s - %s", TimeLabel(i.Start), TimeLabel(i.End))
	}
	return fmt.Sprintf("%s - %s %s", TimeLabel(i.Start), DateLabel(i.End), TimeLabel(i.End))
}

// NewBusySlot labels a busy interval.
func NewBusySlot(i models.TimeInterval) models.BusySlot {
	return models.BusySlot{
		Interval:  i,
		Day:       DayLabel(i.Start),
		Date:      DateLabel(i.Start),
		TimeRange: RangeLabel(i),
	}
}

func FormatFree(s models.FreeSlot) string {
	return fmt.Sprintf("%s, %s at %s", s.Day, s.Date, s.Time)
}

func FormatBusy(b models.BusySlot) string {
	return fmt.Sprintf("%s, %s, %s", b.Day, b.Date, b.TimeRange)
}

func FormatEvent(e models.CalendarEvent) string {
	start := e.Interval.Start
	if e.IsAllDay {
		// All-day intervals end at midnight of the following date.
		last := e.Interval.End.Add(-time.Nanosecond)
		if sameDate(start, last) {
			return fmt.Sprintf("%s, %s (all day)", DayLabel(start), DateLabel(start))
		}
		return fmt.Sprintf("%s, %s - %s, %s (all day)", DayLabel(start), DateLabel(start), DayLabel(last), DateLabel(last))
	}
	return fmt.Sprintf("%s, %s, %s", DayLabel(start), DateLabel(start), RangeLabel(e.Interval))
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
