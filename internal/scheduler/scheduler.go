// Package scheduler wires identity lookup, credential decryption, snapshot
// building, suggestions and booking into the request flows the service exposes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"meetsched/internal/apperr"
	"meetsched/internal/events"
	"meetsched/internal/models"
	"meetsched/internal/response"
	"meetsched/internal/snapshot"
	"meetsched/internal/store"
)

// Suggester turns a prompt into a natural-language scheduling suggestion.
type Suggester interface {
	Suggest(ctx context.Context, prompt string) (string, error)
}

// NameExtractor finds the employee named in a customer message. An empty
// name with a nil error means none was found.
type NameExtractor interface {
	ExtractName(ctx context.Context, message string) (string, error)
}

// Booker inserts meetings into the external calendar.
type Booker interface {
	InsertEvent(ctx context.Context, refreshToken string, req models.BookingRequest) (models.BookedEvent, error)
}

// Vault seals refresh tokens at rest.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Mirror copies a booked meeting somewhere else.
type Mirror interface {
	MirrorBooking(ctx context.Context, req models.BookingRequest, booked models.BookedEvent) error
}

// Deps are the collaborators of a Service. Suggester, Names, Booker, Publisher
// and Mirror are optional; flows that need a missing one fail as upstream errors.
type Deps struct {
	Logger    *slog.Logger
	Store     store.Store
	Vault     Vault
	Builder   *snapshot.Builder
	Suggester Suggester
	Names     NameExtractor
	Booker    Booker
	Publisher events.Publisher
	Mirror    Mirror
}

// Service runs one request to completion; it holds no per-request state.
type Service struct {
	logger    *slog.Logger
	store     store.Store
	vault     Vault
	builder   *snapshot.Builder
	suggester Suggester
	names     NameExtractor
	booker    Booker
	publisher events.Publisher
	mirror    Mirror
}

func New(d Deps) *Service {
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		logger:    d.Logger,
		store:     d.Store,
		vault:     d.Vault,
		builder:   d.Builder,
		suggester: d.Suggester,
		names:     d.Names,
		booker:    d.Booker,
		publisher: publisher,
		mirror:    d.Mirror,
	}
}

var meetPattern = regexp.MustCompile(`(?i)meet\s+(.+)`)

// SaveEmployee stores a new employee with an encrypted refresh token.
func (s *Service) SaveEmployee(ctx context.Context, name, email, refreshToken string) (models.Employee, error) {
	name, email, refreshToken = strings.TrimSpace(name), strings.TrimSpace(email), strings.TrimSpace(refreshToken)
	if name == "" || email == "" || refreshToken == "" {
		return models.Employee{}, apperr.Validation("save employee", "missing fields")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.Employee{}, apperr.Validation("save employee", "invalid email %q", email)
	}

	sealed, err := s.vault.Encrypt(refreshToken)
	if err != nil {
		return models.Employee{}, fmt.Errorf("failed to encrypt token: %w", err)
	}
	emp := models.Employee{Name: name, Email: email, EncryptedToken: sealed}
	if err := s.store.Create(ctx, &emp); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Employee{}, apperr.Validation("save employee", "employee %s already exists", email)
		}
		return models.Employee{}, fmt.Errorf("failed to save employee: %w", err)
	}
	s.logger.Info("Employee saved", "name", name, "email", email)
	return emp, nil
}

// Employees lists all stored employees.
func (s *Service) Employees(ctx context.Context) ([]models.Employee, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return list, nil
}

// Snapshot builds the availability snapshot of the named employee.
func (s *Service) Snapshot(ctx context.Context, employeeName string, days int) (*snapshot.Snapshot, error) {
	if strings.TrimSpace(employeeName) == "" {
		return nil, apperr.Validation("calendar data", "no employee name")
	}
	emp, err := s.findByName(ctx, employeeName)
	if err != nil {
		return nil, err
	}
	return s.snapshotFor(ctx, emp, days)
}

// CalendarData returns the assembled availability of the named employee without a suggestion.
func (s *Service) CalendarData(ctx context.Context, employeeName string, days int) (*response.Response, error) {
	snap, err := s.Snapshot(ctx, employeeName, days)
	if err != nil {
		return nil, err
	}
	return response.Assemble(snap, "")
}

// RequestMeeting resolves the employee named in message, computes their
// availability and asks the suggester for a reply to the customer.
func (s *Service) RequestMeeting(ctx context.Context, message string, days int) (*response.Response, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("request meeting", "no message")
	}
	emp, err := s.resolveEmployee(ctx, message)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshotFor(ctx, emp, days)
	if err != nil {
		return nil, err
	}

	prompt, err := response.Prompt(snap, message)
	if err != nil {
		return nil, err
	}
	if s.suggester == nil {
		return nil, apperr.Upstream("suggest", errors.New("language model is not configured"))
	}
	suggestion, err := s.suggester.Suggest(ctx, prompt)
	if err != nil {
		if apperr.KindOf(err) == nil {
			err = apperr.Upstream("suggest", err)
		}
		return nil, err
	}
	return response.Assemble(snap, suggestion)
}

// BookMeeting inserts the meeting into the employee's calendar, then
// announces and mirrors it. Announce and mirror failures are only logged.
func (s *Service) BookMeeting(ctx context.Context, req models.BookingRequest) (models.BookedEvent, error) {
	req.EmployeeEmail = strings.TrimSpace(req.EmployeeEmail)
	req.Title = strings.TrimSpace(req.Title)
	if req.EmployeeEmail == "" || req.Title == "" || req.Start.IsZero() || req.End.IsZero() {
		return models.BookedEvent{}, apperr.Validation("book meeting", "missing required fields: employeeEmail, meetingTitle, startTime, endTime")
	}
	if !req.End.After(req.Start) {
		return models.BookedEvent{}, apperr.Validation("book meeting", "endTime must be after startTime")
	}

	if s.booker == nil {
		return models.BookedEvent{}, apperr.Upstream("book meeting", errors.New("calendar provider is not configured"))
	}
	emp, err := s.store.FindByEmail(ctx, req.EmployeeEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.BookedEvent{}, apperr.NotFound("book meeting", "employee %s not found", req.EmployeeEmail)
		}
		return models.BookedEvent{}, fmt.Errorf("failed to look up employee: %w", err)
	}
	token, err := s.credential(emp)
	if err != nil {
		return models.BookedEvent{}, err
	}
	req.EmployeeEmail = emp.Email

	booked, err := s.booker.InsertEvent(ctx, token, req)
	if err != nil {
		if apperr.KindOf(err) == nil {
			err = apperr.Upstream("book meeting", err)
		}
		s.logger.Error("Failed to book meeting", "employee", emp.Email, "error", err)
		return models.BookedEvent{}, err
	}

	if err := s.publisher.MeetingBooked(ctx, req, booked); err != nil {
		s.logger.Warn("Failed to publish booking event", "eventID", booked.ID, "error", err)
	}
	if s.mirror != nil {
		if err := s.mirror.MirrorBooking(ctx, req, booked); err != nil {
			s.logger.Warn("Failed to mirror booking", "eventID", booked.ID, "error", err)
		}
	}
	return booked, nil
}

// resolveEmployee tries the "meet <name>" form first and falls back to the
// name extractor when that does not identify a stored employee.
func (s *Service) resolveEmployee(ctx context.Context, message string) (models.Employee, error) {
	var lookupErr error
	if m := meetPattern.FindStringSubmatch(message); m != nil {
		emp, err := s.findByName(ctx, strings.TrimSpace(m[1]))
		if err == nil {
			return emp, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return models.Employee{}, err
		}
		lookupErr = err
	}

	if s.names != nil {
		name, err := s.names.ExtractName(ctx, message)
		if err != nil {
			if apperr.KindOf(err) == nil {
				err = apperr.Upstream("extract name", err)
			}
			return models.Employee{}, err
		}
		if name != "" {
			return s.findByName(ctx, name)
		}
	}

	if lookupErr != nil {
		return models.Employee{}, lookupErr
	}
	return models.Employee{}, apperr.Validation("request meeting", `cannot parse name. Try: "meet [employee name]"`)
}

func (s *Service) findByName(ctx context.Context, name string) (models.Employee, error) {
	emp, err := s.store.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Employee{}, apperr.NotFound("find employee", "employee %q not found", name)
		}
		return models.Employee{}, fmt.Errorf("failed to look up employee: %w", err)
	}
	return emp, nil
}

func (s *Service) credential(emp models.Employee) (string, error) {
	token, err := s.vault.Decrypt(emp.EncryptedToken)
	if err != nil {
		s.logger.Warn("Stored token could not be decrypted", "email", emp.Email, "error", err)
		return "", apperr.Unauthorized("decrypt credential", fmt.Errorf("no valid token for %s", emp.Email))
	}
	if token == "" {
		return "", apperr.Unauthorized("decrypt credential", fmt.Errorf("no token for %s", emp.Email))
	}
	return token, nil
}

func (s *Service) snapshotFor(ctx context.Context, emp models.Employee, days int) (*snapshot.Snapshot, error) {
	token, err := s.credential(emp)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(ctx, snapshot.Request{
		Subject:     models.Subject{Name: emp.Name, Email: emp.Email},
		Credential:  token,
		HorizonDays: days,
	})
}
