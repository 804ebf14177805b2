package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"reportal/internal/aggregate"
	"reportal/internal/core"
	"reportal/internal/currency"
	"reportal/internal/export"
	"reportal/internal/period"
)

const maxUploadBytes = 10 << 20

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	q, req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	key := cacheKey("aggregate", q, req)
	if res, found := s.resultCache.Get(key); found {
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := s.engine.Aggregate(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.resultCache.Set(key, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	q, req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	key := cacheKey("rank", q, req)
	if res, found := s.resultCache.Get(key); found {
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := s.engine.Rank(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.resultCache.Set(key, res)
	writeJSON(w, http.StatusOK, res)
}

type exportRequest struct {
	Title  string          `json:"title"`
	Target string          `json:"target"`
	Ranked bool            `json:"ranked"`
	Query  aggregate.Query `json:"query"`
}

// handleExport runs a query and returns the result as an xlsx download,
// or publishes it to the configured spreadsheet when target is "sheets".
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	req := parseRequester(r)
	var body exportRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	body.Query.Zone, body.Query.Region = req.scope(body.Query.Zone, body.Query.Region)

	var (
		res aggregate.Result
		err error
	)
	if body.Ranked {
		res, err = s.engine.Rank(r.Context(), body.Query)
	} else {
		res, err = s.engine.Aggregate(r.Context(), body.Query)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	title := sanitizeInput(body.Title)
	if title == "" {
		title = "Report " + time.Now().Format("2006-01-02")
	}
	doc := export.FromResult(title, res)

	if body.Target == "sheets" {
		if s.publisher == nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "sheets publishing is not configured"})
			return
		}
		ref, err := s.publisher.Publish(r.Context(), doc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reference": ref})
		return
	}

	data, err := export.Render(doc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", title+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleUpload ingests a filled template workbook. The form carries the
// workbook plus the kind, zone and currency shared by every row.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	req := parseRequester(r)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form: " + err.Error()})
		return
	}

	kind := core.Kind(sanitizeInput(r.FormValue("kind")))
	zone := sanitizeInput(r.FormValue("zone"))
	currencyCode := sanitizeInput(r.FormValue("currency"))
	if req.Role == roleZone && req.Zone != "" {
		zone = req.Zone
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read upload: " + err.Error()})
		return
	}

	columns, rows, err := export.ParseWorkbook(data)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.records.IngestBatch(r.Context(), kind, zone, currencyCode, req.User, columns, rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.resultCache.Purge()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	kind := core.Kind(sanitizeInput(r.URL.Query().Get("kind")))
	data, err := export.Template(kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(kind)+"_template.xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"base":  currency.Base,
		"rates": s.rates.Snapshot(),
	})
}

type ratesReloadRequest struct {
	Path        string `json:"path"`
	Renormalize bool   `json:"renormalize"`
}

// handleRatesReload merges a rates file into the live table. With
// renormalize set, stored records are recomputed against the new rates.
func (s *Server) handleRatesReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	req := parseRequester(r)
	if req.Role != roleAdmin {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "rate reload requires admin role"})
		return
	}

	var body ratesReloadRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if body.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing rates path"})
		return
	}

	if err := s.rates.Reload(body.Path); err != nil {
		writeError(w, r, err)
		return
	}

	resp := map[string]any{"rates": s.rates.Snapshot()}
	if body.Renormalize {
		updated, err := s.records.Renormalize(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp["renormalized"] = updated
	}
	s.resultCache.Purge()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, period.Options(time.Now()))
}

type kindInfo struct {
	Kind    core.Kind `json:"kind"`
	Fields  []string  `json:"fields"`
	Metrics []string  `json:"metrics"`
}

// handleKinds lists every record kind with its fields and the metrics it
// can be aggregated by.
func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	out := make([]kindInfo, 0, len(core.Kinds))
	for _, kind := range core.Kinds {
		sc := core.SchemaFor(kind)
		info := kindInfo{Kind: kind, Fields: []string{}, Metrics: []string{}}
		for _, field := range sc.Fields {
			info.Fields = append(info.Fields, field.Name)
		}
		if sc.HasAmount {
			info.Metrics = append(info.Metrics, core.MetricGrandTotal)
		}
		info.Metrics = append(info.Metrics, sc.MetricFields...)
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	out := map[string][]string{}
	for _, region := range s.zones.Regions() {
		out[region] = s.zones.Zones(region)
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeQuery reads an aggregation query from the body and narrows it to
// the requester's visibility.
func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (aggregate.Query, requester, bool) {
	req := parseRequester(r)

	var q aggregate.Query
	if err := decodeBody(r, &q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return aggregate.Query{}, req, false
	}
	q.Zone, q.Region = req.scope(q.Zone, q.Region)
	return q, req, true
}

func cacheKey(op string, q aggregate.Query, req requester) string {
	payload, err := json.Marshal(q)
	if err != nil {
		return op + ":" + req.Role + ":" + time.Now().String()
	}
	return op + ":" + req.Role + ":" + string(payload)
}
