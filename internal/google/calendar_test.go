package google

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"meetsched/internal/apperr"
	"meetsched/internal/models"
)

func bookingRequest(attendees ...string) models.BookingRequest {
	loc := time.FixedZone("CAT", 2*3600)
	return models.BookingRequest{
		EmployeeEmail: "alice@example.com",
		Title:         "Intro call",
		Description:   "Discuss onboarding",
		Start:         time.Date(2026, 10, 15, 10, 0, 0, 0, loc),
		End:           time.Date(2026, 10, 15, 11, 0, 0, 0, loc),
		Attendees:     attendees,
	}
}

func TestBuildEvent_PrependsEmployeeAsOrganizer(t *testing.T) {
	ev := buildEvent(bookingRequest("bob@example.com"), "Africa/Kigali", "meet-1")

	if len(ev.Attendees) != 2 {
		t.Fatalf("expected 2 attendees, got %d", len(ev.Attendees))
	}
	first := ev.Attendees[0]
	if first.Email != "alice@example.com" || !first.Organizer || first.ResponseStatus != "accepted" {
		t.Fatalf("expected employee first as accepted organizer, got %+v", first)
	}
	if ev.Attendees[1].Email != "bob@example.com" {
		t.Fatalf("unexpected second attendee %+v", ev.Attendees[1])
	}
	if ev.Start.DateTime != "2026-10-15T10:00:00+02:00" || ev.Start.TimeZone != "Africa/Kigali" {
		t.Fatalf("unexpected start %+v", ev.Start)
	}
	if ev.ConferenceData.CreateRequest.RequestId != "meet-1" || ev.ConferenceData.CreateRequest.ConferenceSolutionKey.Type != "hangoutsMeet" {
		t.Fatalf("unexpected conference request %+v", ev.ConferenceData.CreateRequest)
	}
	if ev.Reminders.UseDefault || len(ev.Reminders.Overrides) != 2 || ev.Reminders.Overrides[0].Minutes != 1440 || ev.Reminders.Overrides[1].Minutes != 30 {
		t.Fatalf("unexpected reminders %+v", ev.Reminders)
	}
}

func TestBuildEvent_EmployeeAlreadyListed(t *testing.T) {
	ev := buildEvent(bookingRequest("ALICE@example.com", "bob@example.com", " "), "UTC", "meet-2")
	if len(ev.Attendees) != 2 {
		t.Fatalf("expected 2 attendees, got %d", len(ev.Attendees))
	}
	if ev.Attendees[0].Organizer {
		t.Fatal("listed employee should not be duplicated as organizer")
	}
}

func TestToBookedEvent_MeetLinkFallback(t *testing.T) {
	created := &calendar.Event{
		Id:       "evt1",
		HtmlLink: "https://calendar.google.com/event?eid=1",
		Summary:  "Intro call",
		Start:    &calendar.EventDateTime{DateTime: "2026-10-15T10:00:00+02:00"},
		End:      &calendar.EventDateTime{DateTime: "2026-10-15T11:00:00+02:00"},
		ConferenceData: &calendar.ConferenceData{
			EntryPoints: []*calendar.EntryPoint{{Uri: "https://meet.google.com/abc-defg-hij"}},
		},
		Attendees: []*calendar.EventAttendee{{Email: "alice@example.com", Organizer: true}},
	}
	booked := toBookedEvent(created)
	if booked.MeetLink != "https://meet.google.com/abc-defg-hij" {
		t.Fatalf("expected entry point fallback, got %q", booked.MeetLink)
	}
	if booked.ID != "evt1" || booked.Start != "2026-10-15T10:00:00+02:00" || len(booked.Attendees) != 1 {
		t.Fatalf("unexpected booked event %+v", booked)
	}

	created.HangoutLink = "https://meet.google.com/primary"
	if got := toBookedEvent(created).MeetLink; got != "https://meet.google.com/primary" {
		t.Fatalf("expected hangout link, got %q", got)
	}
}

func TestToRawEvent(t *testing.T) {
	raw := toRawEvent(&calendar.Event{
		Id:      "e",
		Summary: "Offsite",
		Status:  "confirmed",
		Start:   &calendar.EventDateTime{Date: "2026-10-16"},
		End:     &calendar.EventDateTime{Date: "2026-10-17"},
	})
	if raw.StartDate != "2026-10-16" || raw.EndDate != "2026-10-17" || raw.StartDateTime != "" {
		t.Fatalf("unexpected raw event %+v", raw)
	}
}

func TestBusyFromResponse(t *testing.T) {
	resp := &calendar.FreeBusyResponse{Calendars: map[string]calendar.FreeBusyCalendar{
		"alice@example.com": {Busy: []*calendar.TimePeriod{{Start: "2026-10-15T08:00:00Z", End: "2026-10-15T09:00:00Z"}}},
	}}
	busy, err := busyFromResponse(resp, "alice@example.com")
	if err != nil {
		t.Fatalf("busyFromResponse failed: %v", err)
	}
	if len(busy) != 1 || busy[0].Start != "2026-10-15T08:00:00Z" {
		t.Fatalf("unexpected busy %+v", busy)
	}

	if _, err := busyFromResponse(resp, "bob@example.com"); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error for missing calendar, got %v", err)
	}

	resp.Calendars["carol@example.com"] = calendar.FreeBusyCalendar{Errors: []*calendar.Error{{Reason: "notFound"}}}
	if _, err := busyFromResponse(resp, "carol@example.com"); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error for calendar error, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"revoked refresh token", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, apperr.ErrUnauthorized},
		{"401", &googleapi.Error{Code: http.StatusUnauthorized}, apperr.ErrUnauthorized},
		{"scope", &googleapi.Error{Code: http.StatusForbidden, Message: "Request had insufficient authentication scopes."}, apperr.ErrUnauthorized},
		{"rate limit", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, apperr.ErrUpstream},
		{"missing calendar 404", &googleapi.Error{Code: http.StatusNotFound, Message: "Not Found"}, apperr.ErrUpstream},
		{"500", &googleapi.Error{Code: http.StatusInternalServerError}, apperr.ErrUpstream},
		{"network", errors.New("dial tcp: timeout"), apperr.ErrUpstream},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := apperr.KindOf(classify("op", c.err)); got != c.want {
				t.Fatalf("expected %v, got %v", c.want, got)
			}
		})
	}

	if err := classify("events.list", &googleapi.Error{Code: http.StatusNotFound}); errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("provider 404 must not look like a missing employee: %v", err)
	}

	scopeErr := classify("events.insert", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "insufficientPermissions"}}})
	if !errors.Is(scopeErr, ErrInsufficientScope) {
		t.Fatalf("expected ErrInsufficientScope, got %v", scopeErr)
	}
}

func TestOAuthConfigFromClientCredentials(t *testing.T) {
	cfg, err := OAuthConfig("id", "secret", "http://localhost:3000/oauth/callback")
	if err != nil {
		t.Fatalf("OAuthConfig failed: %v", err)
	}
	if cfg.RedirectURL != "http://localhost:3000/oauth/callback" || len(cfg.Scopes) != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	u := ConsentURL(cfg, "state-1")
	for _, want := range []string{"access_type=offline", "prompt=consent", "state=state-1"} {
		if !strings.Contains(u, want) {
			t.Fatalf("consent url %q missing %q", u, want)
		}
	}
}
