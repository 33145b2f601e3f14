package mirror

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"meetsched/internal/snapshot"
)

// EncodeFreeSlots writes the snapshot's free slots as a VCALENDAR with one
// transparent VEVENT per slot.
func EncodeFreeSlots(w io.Writer, snap *snapshot.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText("X-WR-CALNAME", fmt.Sprintf("%s availability", snap.Subject.Name))
	cal.Props.SetText("X-WR-TIMEZONE", snap.Location.String())

	stamp := snap.Now.UTC()
	for _, s := range snap.Free {
		ve := ical.NewComponent(ical.CompEvent)
		ve.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@meetsched", slotKey(s.Start), snap.Subject.Email))
		ve.Props.SetText(ical.PropSummary, fmt.Sprintf("Available: %s", snap.Subject.Name))
		ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		ve.Props.SetDateTime(ical.PropDateTimeStart, s.Start.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, s.End.UTC())
		ve.Props.SetText(ical.PropTransparency, "TRANSPARENT")
		cal.Children = append(cal.Children, ve)
	}
	// An empty calendar is not encodable, so fall back to a calendar-level note.
	if len(cal.Children) == 0 {
		ve := ical.NewComponent(ical.CompEvent)
		ve.Props.SetText(ical.PropUID, fmt.Sprintf("none-%s@meetsched", snap.Subject.Email))
		ve.Props.SetText(ical.PropSummary, fmt.Sprintf("No availability for %s", snap.Subject.Name))
		ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		ve.Props.SetDateTime(ical.PropDateTimeStart, snap.WindowStart.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, snap.WindowEnd.UTC())
		ve.Props.SetText(ical.PropTransparency, "TRANSPARENT")
		cal.Children = append(cal.Children, ve)
	}
	return ical.NewEncoder(w).Encode(cal)
}

func slotKey(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
