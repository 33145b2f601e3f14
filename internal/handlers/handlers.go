// Package handlers exposes the scheduling service over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"meetsched/internal/google"
	"meetsched/internal/mirror"
	"meetsched/internal/models"
	"meetsched/internal/oauthstate"
	"meetsched/internal/response"
	"meetsched/internal/snapshot"
)

// Scheduler is the service surface the routes need.
type Scheduler interface {
	SaveEmployee(ctx context.Context, name, email, refreshToken string) (models.Employee, error)
	Employees(ctx context.Context) ([]models.Employee, error)
	Snapshot(ctx context.Context, employeeName string, days int) (*snapshot.Snapshot, error)
	CalendarData(ctx context.Context, employeeName string, days int) (*response.Response, error)
	RequestMeeting(ctx context.Context, message string, days int) (*response.Response, error)
	BookMeeting(ctx context.Context, req models.BookingRequest) (models.BookedEvent, error)
}

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type Handler struct {
	svc    Scheduler
	oauth  *oauth2.Config
	states oauthstate.Store
	logger *slog.Logger
	checks []ReadyCheck
}

// New builds the route handler. oauth may be nil when onboarding is disabled.
func New(logger *slog.Logger, svc Scheduler, oauth *oauth2.Config, states oauthstate.Store, checks ...ReadyCheck) *Handler {
	return &Handler{svc: svc, oauth: oauth, states: states, logger: logger, checks: checks}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /auth", h.Auth)
	mux.HandleFunc("GET /oauth/callback", h.OAuthCallback)
	mux.HandleFunc("POST /save-employee", h.SaveEmployee)
	mux.HandleFunc("GET /employees", h.Employees)
	mux.HandleFunc("POST /calendar-data", h.CalendarData)
	mux.HandleFunc("GET /calendar-data.ics", h.CalendarFeed)
	mux.HandleFunc("POST /request-meeting", h.RequestMeeting)
	mux.HandleFunc("POST /book-meeting", h.BookMeeting)
	return mux
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var failures []string
	for _, check := range h.checks {
		if check.Check == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			failures = append(failures, check.Name+": "+err.Error())
		}
	}
	if len(failures) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Join(failures, "; ")))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Auth redirects the operator to the Google consent screen.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "google oauth is not configured"})
		return
	}
	state, err := h.states.Issue(r.Context())
	if err != nil {
		h.logger.Error("Failed to issue oauth state", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to start authorization"})
		return
	}
	http.Redirect(w, r, google.ConsentURL(h.oauth, state), http.StatusFound)
}

// OAuthCallback verifies the state, exchanges the code and shows the refresh token.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "google oauth is not configured"})
		return
	}
	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "authorization denied: " + msg})
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing code or state"})
		return
	}
	ok, err := h.states.Consume(r.Context(), state)
	if err != nil {
		h.logger.Error("Failed to verify oauth state", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to verify state"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid or expired state"})
		return
	}

	token, err := google.Exchange(r.Context(), h.oauth, code)
	if err != nil {
		h.logger.Error("OAuth exchange failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "failed to exchange authorization code"})
		return
	}
	h.logger.Info("OAuth authorization completed")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, `<!doctype html>
<html><body>
<h2>Authorization complete</h2>
<p>Save this refresh token with the employee record (POST /save-employee):</p>
<pre>%s</pre>
</body></html>
`, html.EscapeString(token.RefreshToken))
}

type saveEmployeeRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}

type employeeBody struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func toEmployeeBody(e models.Employee) employeeBody {
	return employeeBody{ID: e.ID, Name: e.Name, Email: e.Email, CreatedAt: e.CreatedAt}
}

func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req saveEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	emp, err := h.svc.SaveEmployee(r.Context(), req.Name, req.Email, req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Employee saved!", "employee": toEmployeeBody(emp)})
}

func (h *Handler) Employees(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Employees(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]employeeBody, 0, len(list))
	for _, e := range list {
		out = append(out, toEmployeeBody(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": out})
}

type calendarDataRequest struct {
	EmployeeName string `json:"employeeName"`
	Days         int    `json:"days"`
}

func (h *Handler) CalendarData(w http.ResponseWriter, r *http.Request) {
	var req calendarDataRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.svc.CalendarData(r.Context(), req.EmployeeName, req.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CalendarFeed serves the free slots of one employee as iCalendar.
func (h *Handler) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context(), r.URL.Query().Get("employeeName"), 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := mirror.EncodeFreeSlots(w, snap); err != nil {
		h.logger.Error("Failed to encode free slots", "employee", snap.Subject.Email, "error", err)
	}
}

type requestMeetingRequest struct {
	Message string `json:"message"`
	Days    int    `json:"days"`
}

func (h *Handler) RequestMeeting(w http.ResponseWriter, r *http.Request) {
	var req requestMeetingRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.svc.RequestMeeting(r.Context(), req.Message, req.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type bookMeetingRequest struct {
	EmployeeEmail string   `json:"employeeEmail"`
	MeetingTitle  string   `json:"meetingTitle"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime"`
	Description   string   `json:"description"`
	Attendees     []string `json:"attendees"`
}

func (h *Handler) BookMeeting(w http.ResponseWriter, r *http.Request) {
	var req bookMeetingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.EmployeeEmail) == "" || strings.TrimSpace(req.MeetingTitle) == "" ||
		strings.TrimSpace(req.StartTime) == "" || strings.TrimSpace(req.EndTime) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing required fields: employeeEmail, meetingTitle, startTime, endTime"})
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid startTime, expected RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid endTime, expected RFC3339"})
		return
	}

	booked, err := h.svc.BookMeeting(r.Context(), models.BookingRequest{
		EmployeeEmail: req.EmployeeEmail,
		Title:         req.MeetingTitle,
		Description:   req.Description,
		Start:         start,
		End:           end,
		Attendees:     req.Attendees,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Meeting booked successfully!",
		"event":   booked,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return false
	}
	return true
}
