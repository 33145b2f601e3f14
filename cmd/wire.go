package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"meetsched/internal/config"
	"meetsched/internal/events"
	"meetsched/internal/google"
	"meetsched/internal/handlers"
	"meetsched/internal/mirror"
	"meetsched/internal/oauthstate"
	"meetsched/internal/scheduler"
	"meetsched/internal/snapshot"
	"meetsched/internal/store"
	"meetsched/internal/vault"
)

// deps is everything a command needs, plus the cleanup for it.
type deps struct {
	svc     *scheduler.Service
	oauth   *oauth2.Config
	states  oauthstate.Store
	checks  []handlers.ReadyCheck
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// wire builds the service graph. Without a server the in-memory store is
// useless, so one-shot commands require DATABASE_URL.
func wire(ctx context.Context, logger *slog.Logger, cfg *config.Config, server bool) (*deps, error) {
	d := &deps{}
	ok := false
	defer func() {
		if !ok {
			d.close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential vault: %w", err)
	}

	var st store.Store
	switch {
	case cfg.DatabaseURL != "":
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pg.Close)
		st = pg
	case server:
		logger.Warn("DATABASE_URL not set, employees are kept in memory")
		st = store.NewMemory()
	default:
		return nil, errors.New("DATABASE_URL must be set for this command")
	}
	d.checks = append(d.checks, handlers.ReadyCheck{Name: "db", Check: st.Ping})

	if server {
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
			d.closers = append(d.closers, func() { _ = rdb.Close() })
			rs := oauthstate.NewRedis(rdb, oauthstate.DefaultTTL)
			d.states = rs
			d.checks = append(d.checks, handlers.ReadyCheck{Name: "redis", Check: rs.Ping})
		} else {
			d.states = oauthstate.NewMemory(oauthstate.DefaultTTL)
		}
	}

	oauthConfig, err := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get google oauth config: %w", err)
	}
	d.oauth = oauthConfig
	transport := otelhttp.NewTransport(http.DefaultTransport)
	calendarClient := google.NewClient(logger, oauthConfig, loc.String(), transport)

	builder, err := snapshot.NewBuilder(logger, calendarClient, snapshot.Config{
		Location:           loc,
		Hours:              cfg.WorkingHours,
		DefaultHorizonDays: cfg.HorizonDays,
		MaxHorizonDays:     cfg.MaxHorizonDays,
		SlotDuration:       cfg.SlotDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot builder: %w", err)
	}

	schedDeps := scheduler.Deps{
		Logger:  logger,
		Store:   st,
		Vault:   v,
		Builder: builder,
		Booker:  calendarClient,
	}

	if cfg.Gemini.APIKey != "" {
		gemini, err := google.NewGemini(ctx, logger, cfg.Gemini.APIKey, cfg.Gemini.Model, &http.Client{Transport: transport})
		if err != nil {
			return nil, err
		}
		schedDeps.Suggester = gemini
		schedDeps.Names = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, meeting suggestions are disabled")
	}

	if cfg.Kafka.Brokers != "" {
		pub := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		d.closers = append(d.closers, func() { _ = pub.Close() })
		schedDeps.Publisher = pub
	}

	mcfg := mirror.Config{
		Endpoint:     cfg.CalDAV.Endpoint,
		Username:     cfg.CalDAV.Username,
		Password:     cfg.CalDAV.Password,
		CalendarName: cfg.CalDAV.Calendar,
	}
	if mcfg.Enabled() {
		m, err := mirror.NewMirror(ctx, logger, mcfg, transport)
		if err != nil {
			logger.Warn("CalDAV mirror disabled", "error", err)
		} else {
			schedDeps.Mirror = m
		}
	}

	d.svc = scheduler.New(schedDeps)
	ok = true
	return d, nil
}
