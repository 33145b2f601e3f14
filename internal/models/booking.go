package models

import "time"

// BookingRequest describes a meeting to insert into an employee's calendar.
type BookingRequest struct {
	EmployeeEmail string
	Title         string
	Description   string
	Start         time.Time
	End           time.Time
	Attendees     []string
}

// Attendee mirrors a provider attendee entry.
type Attendee struct {
	Email          string `json:"email"`
	Organizer      bool   `json:"organizer,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// BookedEvent is what the provider returns after inserting a meeting.
type BookedEvent struct {
	ID        string     `json:"id"`
	Link      string     `json:"link"`
	MeetLink  string     `json:"meetLink,omitempty"`
	Summary   string     `json:"summary"`
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Attendees []Attendee `json:"attendees"`
}
