package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"reportal/internal/core"
	"reportal/internal/period"
)

// Requester identity is carried in trusted headers set by the
// authenticating proxy in front of the portal. Zone users only see their
// own zone, region users their region, admins everything.
type requester struct {
	User   string
	Zone   string
	Region string
	Role   string
}

const (
	roleAdmin  = "admin"
	roleRegion = "region"
	roleZone   = "zone"
)

func parseRequester(r *http.Request) requester {
	req := requester{
		User:   sanitizeInput(r.Header.Get("X-Reportal-User")),
		Zone:   sanitizeInput(r.Header.Get("X-Reportal-Zone")),
		Region: sanitizeInput(r.Header.Get("X-Reportal-Region")),
		Role:   strings.ToLower(sanitizeInput(r.Header.Get("X-Reportal-Role"))),
	}
	if req.Role == "" {
		req.Role = roleZone
	}
	return req
}

// scope narrows a zone/region filter pair to what the requester may see.
func (q requester) scope(zone, region string) (string, string) {
	switch q.Role {
	case roleAdmin:
		return zone, region
	case roleRegion:
		return zone, q.Region
	default:
		return q.Zone, ""
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateKey):
		status = http.StatusConflict
	case errors.Is(err, core.ErrUnknownKind),
		errors.Is(err, core.ErrInvalidMetric),
		errors.Is(err, core.ErrMissingZone),
		errors.Is(err, core.ErrMissingPeriod),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, period.ErrInvalidSelector):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
