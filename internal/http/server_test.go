package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reportal/internal/aggregate"
	"reportal/internal/core"
	"reportal/internal/currency"
	"reportal/internal/services"
	"reportal/internal/storage"
	"reportal/internal/zones"
)

func newTestServer() *Server {
	store := storage.NewMemoryStore(storage.RejectDuplicates)
	rates := currency.NewTable(nil)
	zmap := zones.New(map[string][]string{
		"Region 1": {"Zone A", "Zone B"},
	})
	records := services.NewRecordService(store, rates, nil)
	engine := aggregate.NewEngine(store, rates, zmap)
	return NewServer(":0", records, engine, rates, zmap, nil)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

var adminHeaders = map[string]string{
	"X-Reportal-User": "admin@hq",
	"X-Reportal-Role": "admin",
}

func createPartner(t *testing.T, srv *Server, zone, name string) int64 {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/records", map[string]any{
		"kind": "adult_partner",
		"zone": zone,
		"attributes": map[string]any{
			"first_name":  name,
			"total_teevo": 100,
		},
		"currency": "NGN",
	}, adminHeaders)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var resp recordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.ID
}

func TestRecordLifecycle(t *testing.T) {
	srv := newTestServer()
	id := createPartner(t, srv, "Zone A", "Ada")

	t.Run("get", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/records/%d?kind=adult_partner", id), nil, adminHeaders)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got core.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Attr("first_name") != "Ada" {
			t.Fatalf("payload = %+v", got.Attributes)
		}
		if got.Normalized.String() != "0.06" {
			t.Fatalf("normalized = %s", got.Normalized)
		}
	})

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/records?kind=adult_partner", nil, adminHeaders)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got []core.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("count = %d", len(got))
		}
	})

	t.Run("update", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/records/%d?kind=adult_partner", id), map[string]any{
			"zone": "Zone B",
			"attributes": map[string]any{
				"first_name": "Ada B",
			},
			"currency": "USD",
			"amount":   "10",
		}, adminHeaders)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/records/%d?kind=adult_partner", id), nil, adminHeaders)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/records/%d?kind=adult_partner", id), nil, adminHeaders)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status after delete = %d", rec.Code)
		}
	})
}

func TestRecordValidationStatuses(t *testing.T) {
	srv := newTestServer()

	t.Run("unknown kind", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/records", map[string]any{
			"kind": "mystery",
		}, adminHeaders)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("missing zone", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/records", map[string]any{
			"kind": "adult_partner",
		}, adminHeaders)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("duplicate periodic report conflicts", func(t *testing.T) {
		report := map[string]any{
			"kind":         "periodic_report",
			"year":         2024,
			"month":        6,
			"submitted_by": "admin@hq",
			"attributes":   map[string]any{"souls_won": 5},
		}
		if rec := doJSON(t, srv, http.MethodPost, "/api/records", report, adminHeaders); rec.Code != http.StatusCreated {
			t.Fatalf("first report status = %d, body %s", rec.Code, rec.Body)
		}
		if rec := doJSON(t, srv, http.MethodPost, "/api/records", report, adminHeaders); rec.Code != http.StatusConflict {
			t.Fatalf("duplicate status = %d", rec.Code)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader("{nope"))
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestZoneScoping(t *testing.T) {
	srv := newTestServer()
	createPartner(t, srv, "Zone A", "in-a")
	idB := createPartner(t, srv, "Zone B", "in-b")

	zoneB := map[string]string{
		"X-Reportal-User": "leader@zone-b",
		"X-Reportal-Role": "zone",
		"X-Reportal-Zone": "Zone B",
	}

	t.Run("list is scoped to own zone", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/records?kind=adult_partner", nil, zoneB)
		var got []core.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Zone != "Zone B" {
			t.Fatalf("zone user saw %+v", got)
		}
	})

	t.Run("create lands in own zone regardless of payload", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/records", map[string]any{
			"kind":       "adult_partner",
			"zone":       "Zone A",
			"attributes": map[string]any{"first_name": "sneaky"},
		}, zoneB)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d", rec.Code)
		}
		list := doJSON(t, srv, http.MethodGet, "/api/records?kind=adult_partner&zone=Zone+A", nil, adminHeaders)
		var got []core.Record
		json.Unmarshal(list.Body.Bytes(), &got)
		for _, r := range got {
			if r.Attr("first_name") == "sneaky" {
				t.Fatal("record escaped the submitter's zone")
			}
		}
	})

	t.Run("cannot touch another zone's record", func(t *testing.T) {
		zoneA := map[string]string{
			"X-Reportal-Role": "zone",
			"X-Reportal-Zone": "Zone A",
		}
		rec := doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/records/%d?kind=adult_partner", idB), nil, zoneA)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("region role resolves through the directory", func(t *testing.T) {
		region1 := map[string]string{
			"X-Reportal-Role":   "region",
			"X-Reportal-Region": "Region 1",
		}
		rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/records/%d?kind=adult_partner", idB), nil, region1)
		if rec.Code != http.StatusOK {
			t.Fatalf("region user should read zone B: %d", rec.Code)
		}

		region2 := map[string]string{
			"X-Reportal-Role":   "region",
			"X-Reportal-Region": "Region 2",
		}
		rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/records/%d?kind=adult_partner", idB), nil, region2)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("foreign region should be denied: %d", rec.Code)
		}
	})
}

func TestAggregateEndpoint(t *testing.T) {
	srv := newTestServer()
	createPartner(t, srv, "Zone A", "a")
	createPartner(t, srv, "Zone A", "b")

	body := map[string]any{
		"kinds": []string{"adult_partner"},
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/aggregate", body, adminHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var res aggregate.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Summary.Count != 2 {
		t.Fatalf("count = %d", res.Summary.Count)
	}

	t.Run("cache is purged on writes", func(t *testing.T) {
		createPartner(t, srv, "Zone A", "c")
		rec := doJSON(t, srv, http.MethodPost, "/api/aggregate", body, adminHeaders)
		var res aggregate.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Summary.Count != 3 {
			t.Fatalf("stale result served, count = %d", res.Summary.Count)
		}
	})

	t.Run("invalid metric", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/aggregate", map[string]any{
			"kinds":  []string{"adult_partner"},
			"metric": "souls_won",
		}, adminHeaders)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestRankEndpoint(t *testing.T) {
	srv := newTestServer()
	createPartner(t, srv, "Zone A", "a")
	createPartner(t, srv, "Zone B", "b")

	rec := doJSON(t, srv, http.MethodPost, "/api/rank", map[string]any{
		"kinds": []string{"adult_partner"},
		"top_n": 1,
	}, adminHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res aggregate.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d", len(res.Rows))
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer()
	createPartner(t, srv, "Zone A", "a")

	rec := doJSON(t, srv, http.MethodPost, "/api/export", map[string]any{
		"title": "Zone A Partners",
		"query": map[string]any{"kinds": []string{"adult_partner"}},
	}, adminHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty workbook")
	}

	t.Run("sheets target without publisher", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/export", map[string]any{
			"target": "sheets",
			"query":  map[string]any{"kinds": []string{"adult_partner"}},
		}, adminHeaders)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer()

	t.Run("periods", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/periods", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var opts map[string][]string
		if err := json.Unmarshal(rec.Body.Bytes(), &opts); err != nil {
			t.Fatal(err)
		}
		if len(opts["Annual"]) == 0 || len(opts["Quarterly"]) == 0 {
			t.Fatalf("options incomplete: %v", opts)
		}
	})

	t.Run("kinds", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/kinds", nil, nil)
		var infos []kindInfo
		if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
			t.Fatal(err)
		}
		if len(infos) != len(core.Kinds) {
			t.Fatalf("got %d kinds", len(infos))
		}
	})

	t.Run("zones", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/zones", nil, nil)
		var regions map[string][]string
		if err := json.Unmarshal(rec.Body.Bytes(), &regions); err != nil {
			t.Fatal(err)
		}
		if len(regions["Region 1"]) != 2 {
			t.Fatalf("regions = %v", regions)
		}
	})

	t.Run("template", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/template?kind=cell_record", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Body.Len() == 0 {
			t.Fatal("empty template")
		}
	})

	t.Run("rates", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/rates", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "ESPEES") {
			t.Fatalf("body = %s", rec.Body)
		}
	})
}

func TestRatesReloadRequiresAdmin(t *testing.T) {
	srv := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/rates/reload", map[string]any{
		"path": "/tmp/rates.json",
	}, map[string]string{"X-Reportal-Role": "zone"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMethodChecks(t *testing.T) {
	srv := newTestServer()
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/records"},
		{http.MethodGet, "/api/aggregate"},
		{http.MethodGet, "/api/rank"},
		{http.MethodGet, "/api/export"},
		{http.MethodPost, "/api/periods"},
		{http.MethodPost, "/api/kinds"},
		{http.MethodGet, "/api/rates/reload"},
	}
	for _, tc := range cases {
		rec := doJSON(t, srv, tc.method, tc.path, nil, adminHeaders)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s = %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer()
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d", path, rec.Code)
		}
	}
}
