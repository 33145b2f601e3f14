package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"meetsched/internal/apperr"
	"meetsched/internal/models"
	"meetsched/internal/snapshot"
)

// ErrInsufficientScope marks a credential that was granted without write access.
var ErrInsufficientScope = errors.New("credential lacks calendar write scope")

const primaryCalendar = "primary"

// CalendarClient talks to the Google Calendar API on behalf of one refresh token per call.
type CalendarClient struct {
	oauth     *oauth2.Config
	logger    *slog.Logger
	timeZone  string
	transport http.RoundTripper
	options   []option.ClientOption
}

// NewClient creates a Google Calendar client. timeZone is the IANA name sent
// with inserted events. transport may be nil.
func NewClient(logger *slog.Logger, config *oauth2.Config, timeZone string, transport http.RoundTripper, opts ...option.ClientOption) *CalendarClient {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CalendarClient{
		oauth:     config,
		logger:    logger,
		timeZone:  timeZone,
		transport: transport,
		options:   opts,
	}
}

var _ snapshot.Provider = (*CalendarClient)(nil)

// service builds a calendar service authenticated with the given refresh token.
func (c *CalendarClient) service(ctx context.Context, refreshToken string) (*calendar.Service, error) {
	base := &http.Client{Transport: c.transport}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	ts := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, c.options...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, apperr.Upstream("calendar.NewService", err)
	}
	return service, nil
}

// QueryFreeBusy returns the busy ranges of calendarID between start and end.
func (c *CalendarClient) QueryFreeBusy(ctx context.Context, refreshToken, calendarID string, start, end time.Time) ([]snapshot.RawBusy, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Querying free/busy", "calendarID", calendarID, "start", start, "end", end)

	resp, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify("freebusy.query", err)
	}
	return busyFromResponse(resp, calendarID)
}

func busyFromResponse(resp *calendar.FreeBusyResponse, calendarID string) ([]snapshot.RawBusy, error) {
	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, apperr.Upstream("freebusy.query", fmt.Errorf("calendar %s missing from response", calendarID))
	}
	if len(cal.Errors) > 0 {
		return nil, apperr.Upstream("freebusy.query", fmt.Errorf("calendar %s: %s", calendarID, cal.Errors[0].Reason))
	}
	out := make([]snapshot.RawBusy, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		out = append(out, snapshot.RawBusy{Start: p.Start, End: p.End})
	}
	return out, nil
}

// ListEvents returns the expanded events of calendarID between start and end, ordered by start.
func (c *CalendarClient) ListEvents(ctx context.Context, refreshToken, calendarID string, start, end time.Time) ([]snapshot.RawEvent, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Fetching events", "calendarID", calendarID, "start", start, "end", end)

	var out []snapshot.RawEvent
	err = svc.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		OrderBy("startTime").
		MaxResults(250).
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				out = append(out, toRawEvent(item))
			}
			return nil
		})
	if err != nil {
		return nil, classify("events.list", err)
	}

	c.logger.Info("Fetched events from Google Calendar", "count", len(out), "calendarID", calendarID)
	return out, nil
}

func toRawEvent(item *calendar.Event) snapshot.RawEvent {
	ev := snapshot.RawEvent{ID: item.Id, Summary: item.Summary, Status: item.Status}
	if item.Start != nil {
		ev.StartDateTime = item.Start.DateTime
		ev.StartDate = item.Start.Date
	}
	if item.End != nil {
		ev.EndDateTime = item.End.DateTime
		ev.EndDate = item.End.Date
	}
	return ev
}

// InsertEvent books a meeting in the employee's primary calendar with a Meet link
// and notifies all attendees.
func (c *CalendarClient) InsertEvent(ctx context.Context, refreshToken string, req models.BookingRequest) (models.BookedEvent, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return models.BookedEvent{}, err
	}

	event := buildEvent(req, c.timeZone, "meet-"+uuid.NewString())
	created, err := svc.Events.Insert(primaryCalendar, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return models.BookedEvent{}, classify("events.insert", err)
	}

	c.logger.Info("Meeting booked", "link", created.HtmlLink, "employee", req.EmployeeEmail)
	return toBookedEvent(created), nil
}

// buildEvent creates the insert payload. The employee is added as the accepted
// organizer unless already listed among the attendees.
func buildEvent(req models.BookingRequest, timeZone, requestID string) *calendar.Event {
	attendees := make([]*calendar.EventAttendee, 0, len(req.Attendees)+1)
	employeeListed := false
	for _, email := range req.Attendees {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		if strings.EqualFold(email, req.EmployeeEmail) {
			employeeListed = true
		}
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}
	if !employeeListed {
		attendees = append([]*calendar.EventAttendee{{
			Email:          req.EmployeeEmail,
			Organizer:      true,
			ResponseStatus: "accepted",
		}}, attendees...)
	}

	return &calendar.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: timeZone},
		End:         &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339), TimeZone: timeZone},
		Attendees:   attendees,
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             requestID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func toBookedEvent(e *calendar.Event) models.BookedEvent {
	out := models.BookedEvent{
		ID:       e.Id,
		Link:     e.HtmlLink,
		MeetLink: e.HangoutLink,
		Summary:  e.Summary,
	}
	if out.MeetLink == "" && e.ConferenceData != nil && len(e.ConferenceData.EntryPoints) > 0 {
		out.MeetLink = e.ConferenceData.EntryPoints[0].Uri
	}
	if e.Start != nil {
		out.Start = e.Start.DateTime
	}
	if e.End != nil {
		out.End = e.End.DateTime
	}
	for _, a := range e.Attendees {
		out.Attendees = append(out.Attendees, models.Attendee{
			Email:          a.Email,
			Organizer:      a.Organizer,
			ResponseStatus: a.ResponseStatus,
		})
	}
	return out
}

// classify maps Google and OAuth errors onto the apperr kinds. A 404 from the
// provider is an upstream failure, not a missing employee.
func classify(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return apperr.Unauthorized(op, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return apperr.Unauthorized(op, err)
		case http.StatusForbidden:
			if insufficientScope(apiErr) {
				return apperr.Unauthorized(op, fmt.Errorf("%w: %v", ErrInsufficientScope, err))
			}
		}
	}
	return apperr.Upstream(op, err)
}

func insufficientScope(apiErr *googleapi.Error) bool {
	if strings.Contains(strings.ToLower(apiErr.Message), "insufficient authentication scopes") {
		return true
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "insufficientPermissions" {
			return true
		}
	}
	return false
}
