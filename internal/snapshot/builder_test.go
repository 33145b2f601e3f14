package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"meetsched/internal/apperr"
	"meetsched/internal/models"
)

type fakeProvider struct {
	mu        sync.Mutex
	busy      []RawBusy
	events    []RawEvent
	busyErr   error
	eventsErr error
	windows   [][2]time.Time
}

func (f *fakeProvider) QueryFreeBusy(_ context.Context, _, _ string, start, end time.Time) ([]RawBusy, error) {
	f.mu.Lock()
	f.windows = append(f.windows, [2]time.Time{start, end})
	f.mu.Unlock()
	return f.busy, f.busyErr
}

func (f *fakeProvider) ListEvents(_ context.Context, _, _ string, start, end time.Time) ([]RawEvent, error) {
	f.mu.Lock()
	f.windows = append(f.windows, [2]time.Time{start, end})
	f.mu.Unlock()
	return f.events, f.eventsErr
}

var kigali = time.FixedZone("CAT", 2*3600)

func newTestBuilder(t *testing.T, p Provider, now time.Time) *Builder {
	t.Helper()
	b, err := NewBuilder(slog.New(slog.NewTextHandler(io.Discard, nil)), p, Config{
		Location:           kigali,
		Hours:              models.WorkingHours{StartHour: 9, EndHour: 17},
		DefaultHorizonDays: 7,
		SlotDuration:       time.Hour,
	})
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	b.SetClock(func() time.Time { return now })
	return b
}

func request(days int) Request {
	return Request{
		Subject:     models.Subject{Name: "Alice", Email: "alice@example.com"},
		Credential:  "refresh-token",
		HorizonDays: days,
	}
}

// 2026-10-12 08:00 in UTC+2, a Monday.
var mondayMorning = time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC)

func TestBuild_NormalizesBusyIntoLocation(t *testing.T) {
	p := &fakeProvider{busy: []RawBusy{{Start: "2026-10-12T08:00:00Z", End: "2026-10-12T09:00:00Z"}}}
	b := newTestBuilder(t, p, mondayMorning)

	snap, err := b.Build(context.Background(), request(1))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(snap.Busy) != 1 {
		t.Fatalf("expected 1 busy slot, got %d", len(snap.Busy))
	}
	if snap.Busy[0].TimeRange != "10:00 - 11:00" {
		t.Fatalf("expected busy range in local time, got %q", snap.Busy[0].TimeRange)
	}
	if snap.Busy[0].Interval.Start.Location() != kigali {
		t.Fatal("busy interval not expressed in the configured location")
	}

	var times []string
	for _, s := range snap.Free {
		times = append(times, s.Time)
	}
	want := []string{"09:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}
	if len(times) != len(want) {
		t.Fatalf("expected %v, got %v", want, times)
	}
	for i := range want {
		if times[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, times)
		}
	}
	if snap.HorizonDays != 1 || snap.Subject.Name != "Alice" {
		t.Fatalf("unexpected snapshot header %+v", snap)
	}
}

func TestBuild_QueriesWindowFromNow(t *testing.T) {
	p := &fakeProvider{}
	b := newTestBuilder(t, p, mondayMorning)

	snap, err := b.Build(context.Background(), request(0))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if snap.HorizonDays != 7 {
		t.Fatalf("expected default horizon 7, got %d", snap.HorizonDays)
	}
	if len(p.windows) != 2 {
		t.Fatalf("expected both provider calls, got %d", len(p.windows))
	}
	for _, w := range p.windows {
		if !w[0].Equal(mondayMorning) || !w[1].Equal(mondayMorning.AddDate(0, 0, 7)) {
			t.Fatalf("unexpected query window %v", w)
		}
	}
	if len(snap.Free) != 7*8 {
		t.Fatalf("expected 56 free slots, got %d", len(snap.Free))
	}
}

func TestBuild_AllDayEventBlocksWholeDay(t *testing.T) {
	p := &fakeProvider{events: []RawEvent{
		{ID: "e1", Summary: "Public holiday", StartDate: "2026-10-13", EndDate: "2026-10-14"},
		{ID: "e2", Summary: "Standup", StartDateTime: "2026-10-12T09:00:00+02:00", EndDateTime: "2026-10-12T09:15:00+02:00"},
	}}
	b := newTestBuilder(t, p, mondayMorning)

	snap, err := b.Build(context.Background(), request(2))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(snap.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snap.Events))
	}
	if snap.Events[0].Title != "Standup" || !snap.Events[1].IsAllDay {
		t.Fatalf("events not ordered by start: %+v", snap.Events)
	}
	holiday := snap.Events[1].Interval
	if holiday.Duration() != 24*time.Hour || holiday.Start.Hour() != 0 || holiday.Start.Location() != kigali {
		t.Fatalf("all-day event not widened to a local day: %v - %v", holiday.Start, holiday.End)
	}
	for _, s := range snap.Free {
		if s.Day == "Tuesday" {
			t.Fatalf("expected no free slots on the all-day event date, got %s", s.Start)
		}
	}
	if len(snap.Free) != 8 {
		t.Fatalf("expected 8 Monday slots, got %d", len(snap.Free))
	}
}

func TestBuild_SkipsCancelledEvents(t *testing.T) {
	p := &fakeProvider{events: []RawEvent{
		{ID: "gone", Status: "cancelled", StartDate: "2026-10-12"},
	}}
	snap, err := newTestBuilder(t, p, mondayMorning).Build(context.Background(), request(1))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(snap.Events) != 0 || len(snap.Free) != 8 {
		t.Fatalf("cancelled event should be ignored, got %d events %d free", len(snap.Events), len(snap.Free))
	}
}

func TestBuild_PropagatesAuthorizationFailure(t *testing.T) {
	p := &fakeProvider{eventsErr: apperr.Unauthorized("events.list", errors.New("invalid_grant"))}
	snap, err := newTestBuilder(t, p, mondayMorning).Build(context.Background(), request(1))
	if snap != nil {
		t.Fatal("expected no snapshot on failure")
	}
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected authorization failure, got %v", err)
	}
}

func TestBuild_UnclassifiedProviderErrorIsUpstream(t *testing.T) {
	p := &fakeProvider{busyErr: errors.New("503 backend error")}
	snap, err := newTestBuilder(t, p, mondayMorning).Build(context.Background(), request(1))
	if snap != nil {
		t.Fatal("expected no snapshot on failure")
	}
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestBuild_MalformedProviderDataIsUpstream(t *testing.T) {
	cases := map[string]*fakeProvider{
		"bad busy start":   {busy: []RawBusy{{Start: "yesterday", End: "2026-10-12T09:00:00Z"}}},
		"reversed busy":    {busy: []RawBusy{{Start: "2026-10-12T10:00:00Z", End: "2026-10-12T09:00:00Z"}}},
		"event no times":   {events: []RawEvent{{ID: "x"}}},
		"bad all-day date": {events: []RawEvent{{ID: "x", StartDate: "13/10/2026"}}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestBuilder(t, p, mondayMorning).Build(context.Background(), request(1))
			if !errors.Is(err, apperr.ErrUpstream) {
				t.Fatalf("expected upstream failure, got %v", err)
			}
		})
	}
}

func TestBuild_ValidatesRequest(t *testing.T) {
	b := newTestBuilder(t, &fakeProvider{}, mondayMorning)

	req := request(-1)
	if _, err := b.Build(context.Background(), req); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation failure for negative horizon, got %v", err)
	}

	if _, err := b.Build(context.Background(), request(200000)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation failure for oversized horizon, got %v", err)
	}
	if _, err := b.Build(context.Background(), request(DefaultMaxHorizonDays)); err != nil {
		t.Fatalf("horizon at the limit should build: %v", err)
	}

	req = request(1)
	req.Subject.Email = " "
	if _, err := b.Build(context.Background(), req); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation failure for empty email, got %v", err)
	}

	req = request(1)
	req.Credential = ""
	if _, err := b.Build(context.Background(), req); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected authorization failure for empty credential, got %v", err)
	}
}

func TestBuild_CustomMaxHorizon(t *testing.T) {
	b, err := NewBuilder(slog.New(slog.NewTextHandler(io.Discard, nil)), &fakeProvider{}, Config{
		Location:           kigali,
		Hours:              models.WorkingHours{StartHour: 9, EndHour: 17},
		DefaultHorizonDays: 7,
		MaxHorizonDays:     14,
		SlotDuration:       time.Hour,
	})
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	b.SetClock(func() time.Time { return mondayMorning })

	if _, err := b.Build(context.Background(), request(15)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation failure above 14 days, got %v", err)
	}
	if _, err := b.Build(context.Background(), request(14)); err != nil {
		t.Fatalf("unexpected error at 14 days: %v", err)
	}
}

func TestBuild_MalformedDataMarksSpanFailed(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	for name, p := range map[string]*fakeProvider{
		"busy":   {busy: []RawBusy{{Start: "yesterday", End: "today"}}},
		"events": {events: []RawEvent{{ID: "e1", StartDateTime: "soon"}}},
	} {
		before := len(sr.Ended())
		if _, err := newTestBuilder(t, p, mondayMorning).Build(context.Background(), request(1)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		ended := sr.Ended()
		if len(ended) != before+1 {
			t.Fatalf("%s: expected one ended span, got %d", name, len(ended)-before)
		}
		if got := ended[len(ended)-1].Status().Code; got != codes.Error {
			t.Fatalf("%s: expected error status, got %v", name, got)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	good := Config{Location: time.UTC, Hours: models.WorkingHours{StartHour: 9, EndHour: 17}, DefaultHorizonDays: 7, SlotDuration: time.Hour}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []Config{
		{Hours: good.Hours, DefaultHorizonDays: 7, SlotDuration: time.Hour},
		{Location: time.UTC, Hours: models.WorkingHours{StartHour: 17, EndHour: 9}, DefaultHorizonDays: 7, SlotDuration: time.Hour},
		{Location: time.UTC, Hours: models.WorkingHours{StartHour: 9, EndHour: 24}, DefaultHorizonDays: 7, SlotDuration: time.Hour},
		{Location: time.UTC, Hours: good.Hours, DefaultHorizonDays: 30, MaxHorizonDays: 14, SlotDuration: time.Hour},
		{Location: time.UTC, Hours: good.Hours, SlotDuration: time.Hour},
		{Location: time.UTC, Hours: good.Hours, DefaultHorizonDays: 7},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("config %d: expected validation error", i)
		}
	}
}
