// Package snapshot assembles an employee's availability snapshot from the calendar provider.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"meetsched/internal/apperr"
	"meetsched/internal/availability"
	"meetsched/internal/models"
)

// DefaultMaxHorizonDays caps requested horizons when Config.MaxHorizonDays is zero.
const DefaultMaxHorizonDays = 60

// Config is the fixed scheduling policy. It is read-only once a Builder exists.
type Config struct {
	Location           *time.Location
	Hours              models.WorkingHours
	DefaultHorizonDays int
	MaxHorizonDays     int // Zero selects DefaultMaxHorizonDays.
	SlotDuration       time.Duration
}

func (c Config) maxHorizon() int {
	if c.MaxHorizonDays > 0 {
		return c.MaxHorizonDays
	}
	return DefaultMaxHorizonDays
}

// Validate checks the policy for values the slot generator cannot work with.
func (c Config) Validate() error {
	if c.Location == nil {
		return fmt.Errorf("timezone is not set")
	}
	if c.Hours.StartHour < 0 || c.Hours.StartHour >= 24 || c.Hours.EndHour < 0 || c.Hours.EndHour >= 24 {
		return fmt.Errorf("working hours must be within [0,24), got %d-%d", c.Hours.StartHour, c.Hours.EndHour)
	}
	if c.Hours.StartHour >= c.Hours.EndHour {
		return fmt.Errorf("working hours start %d must be before end %d", c.Hours.StartHour, c.Hours.EndHour)
	}
	if c.DefaultHorizonDays <= 0 {
		return fmt.Errorf("default horizon must be positive, got %d", c.DefaultHorizonDays)
	}
	if c.MaxHorizonDays < 0 || c.DefaultHorizonDays > c.maxHorizon() {
		return fmt.Errorf("default horizon %d exceeds maximum %d", c.DefaultHorizonDays, c.maxHorizon())
	}
	if c.SlotDuration <= 0 {
		return fmt.Errorf("slot duration must be positive, got %s", c.SlotDuration)
	}
	return nil
}

// Request asks for the snapshot of one subject.
type Request struct {
	Subject     models.Subject
	Credential  string
	HorizonDays int // Zero selects the configured default.
}

// Snapshot is the computed availability for one subject. It is never mutated after Build returns.
type Snapshot struct {
	Subject      models.Subject
	Now          time.Time
	WindowStart  time.Time
	WindowEnd    time.Time
	HorizonDays  int
	Busy         []models.BusySlot
	Events       []models.CalendarEvent
	Free         []models.FreeSlot
	Hours        models.WorkingHours
	Location     *time.Location
	SlotDuration time.Duration
}

// Builder queries the provider and turns its answers into a Snapshot.
type Builder struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewBuilder creates a Builder with the given policy.
func NewBuilder(logger *slog.Logger, provider Provider, cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduling config: %w", err)
	}
	return &Builder{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("meetsched/internal/snapshot"),
		now:      time.Now,
	}, nil
}

// SetClock replaces the source of the current instant.
func (b *Builder) SetClock(now func() time.Time) {
	b.now = now
}

// Config returns the policy the builder was created with.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build fetches free/busy ranges and events concurrently and computes free slots.
// Either provider call failing aborts the whole snapshot.
func (b *Builder) Build(ctx context.Context, req Request) (*Snapshot, error) {
	email := strings.TrimSpace(req.Subject.Email)
	if email == "" {
		return nil, apperr.Validation("build snapshot", "subject email is required")
	}
	if req.Credential == "" {
		return nil, apperr.Unauthorized("build snapshot", fmt.Errorf("no credential for %s", email))
	}
	days := req.HorizonDays
	if days < 0 {
		return nil, apperr.Validation("build snapshot", "horizon must be positive, got %d", days)
	}
	if days == 0 {
		days = b.cfg.DefaultHorizonDays
	}
	if limit := b.cfg.maxHorizon(); days > limit {
		return nil, apperr.Validation("build snapshot", "horizon must be at most %d days, got %d", limit, days)
	}

	ctx, span := b.tracer.Start(ctx, "snapshot.Build", trace.WithAttributes(
		attribute.String("subject.email", email),
		attribute.Int("horizon.days", days),
	))
	defer span.End()

	loc := b.cfg.Location
	now := b.now().In(loc)
	windowEnd := now.AddDate(0, 0, days)

	var (
		rawBusy   []RawBusy
		rawEvents []RawEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawBusy, err = b.provider.QueryFreeBusy(gctx, req.Credential, email, now, windowEnd)
		if err != nil {
			return classify("query free/busy", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rawEvents, err = b.provider.ListEvents(gctx, req.Credential, email, now, windowEnd)
		if err != nil {
			return classify("list events", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error("Calendar provider call failed", "email", email, "error", err)
		return nil, err
	}

	busy, err := normalizeBusy(rawBusy, loc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	events, err := normalizeEvents(rawEvents, loc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	blocking := make([]models.TimeInterval, 0, len(busy)+len(events))
	blocking = append(blocking, busy...)
	for _, ev := range events {
		if ev.IsAllDay {
			blocking = append(blocking, ev.Interval)
		}
	}

	free := availability.FreeSlots(availability.Window{
		Start:        now,
		HorizonDays:  days,
		Hours:        b.cfg.Hours,
		SlotDuration: b.cfg.SlotDuration,
		Location:     loc,
	}, blocking, now)

	busySlots := make([]models.BusySlot, 0, len(busy))
	for _, i := range busy {
		busySlots = append(busySlots, availability.NewBusySlot(i))
	}

	span.SetAttributes(
		attribute.Int("busy.count", len(busySlots)),
		attribute.Int("events.count", len(events)),
		attribute.Int("free.count", len(free)),
	)
	b.logger.Debug("Built availability snapshot", "email", email, "days", days,
		"busy", len(busySlots), "events", len(events), "free", len(free))

	return &Snapshot{
		Subject:      models.Subject{Name: req.Subject.Name, Email: email},
		Now:          now,
		WindowStart:  now,
		WindowEnd:    windowEnd,
		HorizonDays:  days,
		Busy:         busySlots,
		Events:       events,
		Free:         free,
		Hours:        b.cfg.Hours,
		Location:     loc,
		SlotDuration: b.cfg.SlotDuration,
	}, nil
}

// classify keeps provider-assigned kinds and treats everything else as upstream.
func classify(op string, err error) error {
	if apperr.KindOf(err) != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperr.Upstream(op, err)
}
