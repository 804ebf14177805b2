package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"reportal/internal/core"
	"reportal/internal/storage"
)

type recordResponse struct {
	ID      int64        `json:"id"`
	Record  *core.Record `json:"record,omitempty"`
	Warning string       `json:"warning,omitempty"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRecord(w, r)
	case http.MethodGet:
		s.handleListRecords(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	req := parseRequester(r)

	var rec core.Record
	if err := decodeBody(r, &rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	// Zone users submit for their own zone regardless of the payload.
	if req.Role == roleZone && req.Zone != "" {
		rec.Zone = req.Zone
	}
	if rec.SubmittedBy == "" {
		rec.SubmittedBy = req.User
	}

	id, warning, err := s.records.Create(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.resultCache.Purge()

	resp := recordResponse{ID: id}
	if warning != nil {
		resp.Warning = warning.String()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	req := parseRequester(r)
	q := r.URL.Query()

	kind := core.Kind(sanitizeInput(q.Get("kind")))
	if !core.ValidKind(kind) {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind))
		return
	}

	f := storage.Filter{
		Zone:        sanitizeInput(q.Get("zone")),
		SubmittedBy: sanitizeInput(q.Get("submitted_by")),
	}
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid year"})
			return
		}
		f.Year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid month"})
			return
		}
		f.Month = m
	}

	zone, _ := req.scope(f.Zone, "")
	f.Zone = zone

	records, err := s.records.List(r.Context(), kind, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRecordByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/records/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid record id"})
		return
	}

	kind := core.Kind(sanitizeInput(r.URL.Query().Get("kind")))
	if !core.ValidKind(kind) {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind))
		return
	}

	req := parseRequester(r)

	switch r.Method {
	case http.MethodGet:
		rec, err := s.records.Get(r.Context(), id, kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !s.canAccess(req, rec.Zone) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "record belongs to another zone"})
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPut:
		existing, err := s.records.Get(r.Context(), id, kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !s.canAccess(req, existing.Zone) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "record belongs to another zone"})
			return
		}

		var rec core.Record
		if err := decodeBody(r, &rec); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
		if rec.SubmittedBy == "" {
			rec.SubmittedBy = existing.SubmittedBy
		}

		warning, err := s.records.Update(r.Context(), id, kind, rec)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.resultCache.Purge()

		resp := recordResponse{ID: id}
		if warning != nil {
			resp.Warning = warning.String()
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodDelete:
		existing, err := s.records.Get(r.Context(), id, kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !s.canAccess(req, existing.Zone) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "record belongs to another zone"})
			return
		}

		if err := s.records.Delete(r.Context(), id, kind); err != nil {
			writeError(w, r, err)
			return
		}
		s.resultCache.Purge()
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// canAccess reports whether the requester may touch a record in the given
// zone. Region users are resolved through the zone directory and denied
// when the zone is not in their region.
func (s *Server) canAccess(req requester, zone string) bool {
	switch req.Role {
	case roleAdmin:
		return true
	case roleRegion:
		region, ok := s.zones.Lookup(zone)
		return ok && region == req.Region
	default:
		return req.Zone == "" || req.Zone == zone
	}
}
