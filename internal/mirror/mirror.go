// Package mirror copies booked meetings into a CalDAV calendar and renders
// free slots as iCalendar data.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"meetsched/internal/models"
)

const productID = "-//meetsched//EN"

// basicAuthTransport adds Basic Auth and a User-Agent to each request.
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "meetsched/1.0")
	return t.transport.RoundTrip(req)
}

// Config locates the calendar that receives mirrored meetings.
type Config struct {
	Endpoint     string // e.g. https://caldav.icloud.com/
	Username     string
	Password     string
	CalendarName string
}

func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Username != "" && c.CalendarName != ""
}

// Mirror copies booked meetings to a CalDAV calendar.
type Mirror struct {
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	calendarPath string
}

// NewMirror discovers the named calendar on the server.
func NewMirror(ctx context.Context, logger *slog.Logger, cfg Config, transport http.RoundTripper) (*Mirror, error) {
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := &http.Client{Transport: &basicAuthTransport{
		username:  cfg.Username,
		password:  cfg.Password,
		transport: transport,
	}}

	caldavClient, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	logger.Info("Finding CalDAV calendar", "calendarName", cfg.CalendarName)
	calendarPath, err := findCalendar(ctx, caldavClient, cfg.CalendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", cfg.CalendarName, err)
	}
	logger.Info("Found CalDAV calendar", "path", calendarPath)

	return &Mirror{
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     cfg.Endpoint,
		calendarPath: calendarPath,
	}, nil
}

// MirrorBooking writes the booked meeting as a VEVENT named after its UID.
func (m *Mirror) MirrorBooking(ctx context.Context, req models.BookingRequest, booked models.BookedEvent) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	vevent := bookingComponent(req, booked, time.Now().UTC())
	cal.Children = append(cal.Children, vevent)

	uid, err := vevent.Props.Text(ical.PropUID)
	if err != nil {
		return fmt.Errorf("mirrored event has no uid: %w", err)
	}
	eventPath := path.Join(m.relativeCalendarPath(), uid+".ics")

	writer, err := m.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload event: %w", err)
	}

	m.logger.Info("Mirrored meeting to CalDAV", "summary", booked.Summary, "uid", uid)
	return nil
}

// relativeCalendarPath strips the endpoint's own path so the webdav client,
// which resolves against the endpoint, does not repeat it.
func (m *Mirror) relativeCalendarPath() string {
	u, err := url.Parse(m.endpoint)
	if err != nil || u.Path == "" || u.Path == "/" {
		return m.calendarPath
	}
	return strings.TrimPrefix(m.calendarPath, strings.TrimSuffix(u.Path, "/"))
}

func bookingComponent(req models.BookingRequest, booked models.BookedEvent, stamp time.Time) *ical.Component {
	uid := booked.ID
	if uid == "" {
		uid = uuid.NewString()
	}
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, req.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, req.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, req.End.UTC())
	description := req.Description
	if booked.MeetLink != "" {
		description = strings.TrimSpace(description + "\n\n" + booked.MeetLink)
	}
	if description != "" {
		ve.Props.SetText(ical.PropDescription, description)
	}
	if booked.Link != "" {
		ve.Props.SetText(ical.PropURL, booked.Link)
	}

	organizer := ical.NewProp(ical.PropOrganizer)
	organizer.SetText("mailto:" + req.EmployeeEmail)
	ve.Props.Add(organizer)
	for _, a := range booked.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText("mailto:" + a.Email)
		ve.Props.Add(p)
	}
	return ve
}

func findCalendar(ctx context.Context, c *caldav.Client, name string) (string, error) {
	principalPath, err := c.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}
	homeSetPath, err := c.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	calendars, err := c.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
