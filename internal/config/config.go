// Package config loads service configuration from an optional YAML file
// overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meetsched/internal/models"
)

// GoogleConfig holds OAuth client settings.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// GeminiConfig holds the language model settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// KafkaConfig enables booking notifications when Brokers is set.
type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

// CalDAVConfig enables mirroring of booked meetings.
type CalDAVConfig struct {
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

// OTelConfig controls trace export.
type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Timezone is the IANA civil timezone every instant is expressed in.
	Timezone string `yaml:"timezone"`

	WorkingHours models.WorkingHours `yaml:"working_hours"`

	// HorizonDays is the default number of days to compute availability for.
	HorizonDays int `yaml:"horizon_days"`

	// MaxHorizonDays caps the horizon a single request may ask for.
	MaxHorizonDays int `yaml:"max_horizon_days"`

	// SlotMinutes is the length of one schedulable slot.
	SlotMinutes int `yaml:"slot_minutes"`

	// EncryptionKey seals refresh tokens at rest.
	EncryptionKey string `yaml:"encryption_key"`

	// DatabaseURL selects Postgres storage; empty keeps employees in memory.
	DatabaseURL string `yaml:"database_url"`

	// RedisAddr selects Redis for OAuth state; empty keeps it in memory.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	CORSOrigins []string `yaml:"cors_origins"`

	Google GoogleConfig `yaml:"google"`
	Gemini GeminiConfig `yaml:"gemini"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	CalDAV CalDAVConfig `yaml:"caldav"`
	OTel   OTelConfig   `yaml:"otel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:       ":3000",
		Timezone:     "Africa/Kigali",
		WorkingHours: models.WorkingHours{StartHour: 9, EndHour: 17},
		HorizonDays:    7,
		MaxHorizonDays: 60,
		SlotMinutes:    60,
		CORSOrigins:  []string{"*"},
		Gemini:       GeminiConfig{Model: "gemini-2.0-flash"},
		Kafka:        KafkaConfig{Topic: "meeting.booked.v1"},
		OTel:         OTelConfig{Endpoint: "localhost:4317", SampleRatio: 1},
	}
}

// Load reads path (if non-empty and present), applies environment overrides
// and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// normalize fills zero values left by partial files.
func (c *Config) normalize() {
	d := Default()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.HorizonDays == 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.MaxHorizonDays == 0 {
		c.MaxHorizonDays = d.MaxHorizonDays
	}
	if c.SlotMinutes == 0 {
		c.SlotMinutes = d.SlotMinutes
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = d.Gemini.Model
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = d.Kafka.Topic
	}
	if c.OTel.Endpoint == "" {
		c.OTel.Endpoint = d.OTel.Endpoint
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be an integer (got %q)", key, v))
				return
			}
			*dst = n
		}
	}

	str("LISTEN_ADDR", &c.Listen)
	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("PORT must be a valid TCP port (got %q)", v))
		} else {
			c.Listen = ":" + strconv.Itoa(p)
		}
	}
	str("PRIMARY_TIMEZONE", &c.Timezone)
	num("WORK_START_HOUR", &c.WorkingHours.StartHour)
	num("WORK_END_HOUR", &c.WorkingHours.EndHour)
	num("HORIZON_DAYS", &c.HorizonDays)
	num("MAX_HORIZON_DAYS", &c.MaxHorizonDays)
	num("SLOT_MINUTES", &c.SlotMinutes)
	str("ENCRYPTION_KEY", &c.EncryptionKey)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	if v, ok := lookup("CORS_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		c.CORSOrigins = splitList(v)
	}

	str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	str("GOOGLE_REDIRECT_URI", &c.Google.RedirectURL)
	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("GEMINI_MODEL", &c.Gemini.Model)
	str("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("CALDAV_ENDPOINT", &c.CalDAV.Endpoint)
	str("CALDAV_USERNAME", &c.CalDAV.Username)
	str("CALDAV_PASSWORD", &c.CalDAV.Password)
	str("CALDAV_CALENDAR", &c.CalDAV.Calendar)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTel.Endpoint)
	if v, ok := lookup("OTEL_ENABLED"); ok && strings.TrimSpace(v) != "" {
		c.OTel.Enabled = isTruthy(v)
	}
	if v, ok := lookup("OTEL_SAMPLING_RATIO"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f < 0 || f > 1 {
			errs = append(errs, fmt.Errorf("OTEL_SAMPLING_RATIO must be within [0,1] (got %q)", v))
		} else {
			c.OTel.SampleRatio = f
		}
	}
	return errors.Join(errs...)
}

// Validate checks the values the scheduling core depends on.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err))
	}
	h := c.WorkingHours
	if h.StartHour < 0 || h.StartHour >= 24 || h.EndHour < 0 || h.EndHour >= 24 || h.StartHour >= h.EndHour {
		errs = append(errs, fmt.Errorf("working hours must satisfy 0 <= start < end < 24 (got %d-%d)", h.StartHour, h.EndHour))
	}
	if c.HorizonDays <= 0 {
		errs = append(errs, fmt.Errorf("horizon_days must be positive (got %d)", c.HorizonDays))
	}
	if c.MaxHorizonDays < c.HorizonDays {
		errs = append(errs, fmt.Errorf("max_horizon_days must be at least horizon_days (got %d < %d)", c.MaxHorizonDays, c.HorizonDays))
	}
	if c.SlotMinutes <= 0 {
		errs = append(errs, fmt.Errorf("slot_minutes must be positive (got %d)", c.SlotMinutes))
	}
	return errors.Join(errs...)
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// SlotDuration is SlotMinutes as a duration.
func (c *Config) SlotDuration() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
