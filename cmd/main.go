package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"meetsched/internal/config"
	"meetsched/internal/google"
	"meetsched/internal/handlers"
	"meetsched/internal/httpx"
	"meetsched/internal/models"
	"meetsched/internal/telemetry"
)

const serviceName = "meetsched"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  serviceName,
		Usage: "Compute employee availability from Google Calendar and book meetings.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", EnvVars: []string{"MEETSCHED_CONFIG"}, Usage: "Path to a YAML config file."},
		},
		Commands: []*cli.Command{
			serveCommand(),
			authCommand(),
			employeeCommand(),
			availabilityCommand(),
			bookCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			otelShutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTel)
			if err != nil {
				return fmt.Errorf("failed to set up tracing: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = otelShutdown(shutdownCtx)
			}()

			d, err := wire(ctx, logger, cfg, true)
			if err != nil {
				return err
			}
			defer d.close()

			h := handlers.New(logger, d.svc, d.oauth, d.states, d.checks...)
			handler := httpx.Chain(h.Routes(),
				httpx.WithRequestID,
				httpx.WithAccessLog(logger),
				httpx.WithCORS(httpx.CORSPolicy{
					AllowedOrigins: cfg.CORSOrigins,
					AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
					AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
					MaxAge:         10 * time.Minute,
				}),
				httpx.WithBodyLimit(1<<20),
				httpx.WithTimeout(60*time.Second),
			)
			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           otelhttp.NewHandler(handler, serviceName),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server starting", "addr", srv.Addr, "timezone", cfg.Timezone)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server failed: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown failed", "error", err)
			}
			logger.Info("HTTP server stopped")
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize an employee's Google account and print the refresh token.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Save the token for this employee name."},
			&cli.StringFlag{Name: "email", Usage: "Employee email, required with --name."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", google.ConsentURL(oauthConfig, uuid.NewString()))
			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.Exchange(c.Context, oauthConfig, authCode)
			if err != nil {
				return err
			}
			fmt.Printf("Refresh token: %s\n", token.RefreshToken)

			if c.String("name") == "" {
				return nil
			}
			d, err := wire(c.Context, logger, cfg, false)
			if err != nil {
				return err
			}
			defer d.close()
			emp, err := d.svc.SaveEmployee(c.Context, c.String("name"), c.String("email"), token.RefreshToken)
			if err != nil {
				return err
			}
			logger.Info("Successfully authenticated and saved employee.", "name", emp.Name, "email", emp.Email)
			return nil
		},
	}
}

func employeeCommand() *cli.Command {
	return &cli.Command{
		Name:  "employee",
		Usage: "Manage employees.",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Store an employee with a Google refresh token.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "token", Required: true, EnvVars: []string{"REFRESH_TOKEN"}},
				},
				Action: func(c *cli.Context) error {
					logger := setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					d, err := wire(c.Context, logger, cfg, false)
					if err != nil {
						return err
					}
					defer d.close()
					_, err = d.svc.SaveEmployee(c.Context, c.String("name"), c.String("email"), c.String("token"))
					return err
				},
			},
			{
				Name:  "list",
				Usage: "List stored employees.",
				Action: func(c *cli.Context) error {
					logger := setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					d, err := wire(c.Context, logger, cfg, false)
					if err != nil {
						return err
					}
					defer d.close()
					list, err := d.svc.Employees(c.Context)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tEMAIL\tCREATED")
					for _, e := range list {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Email, e.CreatedAt.Format(time.RFC3339))
					}
					return tw.Flush()
				},
			},
		},
	}
}

func availabilityCommand() *cli.Command {
	return &cli.Command{
		Name:  "availability",
		Usage: "Print an employee's availability as JSON.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "employee", Required: true},
			&cli.IntFlag{Name: "days", Usage: "Horizon in days; 0 uses the configured default."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			d, err := wire(c.Context, logger, cfg, false)
			if err != nil {
				return err
			}
			defer d.close()

			resp, err := d.svc.CalendarData(c.Context, c.String("employee"), c.Int("days"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}

func bookCommand() *cli.Command {
	return &cli.Command{
		Name:  "book",
		Usage: "Book a meeting with Google Meet in an employee's calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true, Usage: "Employee email."},
			&cli.StringFlag{Name: "title", Required: true},
			&cli.StringFlag{Name: "start", Required: true, Usage: "RFC3339 start time."},
			&cli.StringFlag{Name: "end", Required: true, Usage: "RFC3339 end time."},
			&cli.StringFlag{Name: "description"},
			&cli.StringSliceFlag{Name: "attendee", Usage: "Attendee email, repeatable."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			start, err := time.Parse(time.RFC3339, c.String("start"))
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			end, err := time.Parse(time.RFC3339, c.String("end"))
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			d, err := wire(c.Context, logger, cfg, false)
			if err != nil {
				return err
			}
			defer d.close()

			booked, err := d.svc.BookMeeting(c.Context, models.BookingRequest{
				EmployeeEmail: c.String("email"),
				Title:         c.String("title"),
				Description:   c.String("description"),
				Start:         start,
				End:           end,
				Attendees:     c.StringSlice("attendee"),
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(booked)
		},
	}
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)).With("service", serviceName)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
