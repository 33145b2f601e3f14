package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"meetsched/internal/apperr"
	"meetsched/internal/google"
	"meetsched/internal/httpx"
)

type errorBody struct {
	Error     string `json:"error"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorBody{RequestID: httpx.RequestIDFromContext(r.Context())}

	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	case http.StatusBadGateway:
		h.logger.Error("Upstream request failed", "path", r.URL.Path, "error", err)
		body.Error = "calendar or language model service failed"
	default:
		h.logger.Warn("Request rejected", "path", r.URL.Path, "status", status, "error", err)
		body.Error = clientMessage(err)
	}
	if errors.Is(err, google.ErrInsufficientScope) {
		body.Hint = "the employee must re-authorize with calendar write access via /auth"
	}
	writeJSON(w, status, body)
}

// clientMessage is the cause of a classified error without the op prefix.
func clientMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	if e != nil {
		return e.Kind.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
