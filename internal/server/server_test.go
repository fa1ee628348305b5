package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
	"github.com/sw33tLie/kpiscope/pkg/storage"
)

const testConfig = `
metadata:
  version: "2.1"
column_mappings:
  number: Number
kpis:
  SM004:
    name: First Time Fix
    calculation: {method: zero_reassignments}
`

func newTestServer(t *testing.T, seed bool, user, pass string) *httptest.Server {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "cache"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if seed {
		snap := storage.Snapshot{
			Counts: counts.Counts{"total_tickets": 4},
			KPIs: map[string]kpi.Result{
				"SM004": {Name: "First Time Fix", Status: kpi.StatusTargetMet, Metrics: map[string]interface{}{"ftf_rate": 75.0}},
			},
			Run: &storage.RunMetadata{RunID: "r1", Timestamp: "2024-06-01T00:00:00Z", ProcessingMode: "baseline", RecordCount: 4},
		}
		if err := store.Commit(context.Background(), snap); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	ts := httptest.NewServer(New(store, cfg, user, pass).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false, "", "")
	code, body := get(t, ts.URL+"/api/health")
	if code != http.StatusOK {
		t.Fatalf("want 200, got %d", code)
	}
	var h HealthResponse
	if err := json.Unmarshal([]byte(body), &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "no_baseline" || h.BaselineReady || h.ConfigVersion != "2.1" {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestKPIRoutes(t *testing.T) {
	ts := newTestServer(t, true, "", "")

	code, body := get(t, ts.URL+"/api/kpis/SM004")
	if code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", code, body)
	}
	var res kpi.Result
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != kpi.StatusTargetMet || res.Metrics["ftf_rate"] != 75.0 {
		t.Fatalf("unexpected result %+v", res)
	}

	if code, _ := get(t, ts.URL+"/api/kpis/SM999"); code != http.StatusNotFound {
		t.Fatalf("unknown KPI: want 404, got %d", code)
	}
	if code, body := get(t, ts.URL+"/api/counts"); code != http.StatusOK || !strings.Contains(body, `"total_tickets":4`) {
		t.Fatalf("counts: got %d %s", code, body)
	}
	if code, body := get(t, ts.URL+"/api/last-run"); code != http.StatusOK || !strings.Contains(body, `"run_id":"r1"`) {
		t.Fatalf("last run: got %d %s", code, body)
	}
	if code, body := get(t, ts.URL+"/api/scorecard"); code != http.StatusOK || !strings.Contains(body, `"overall_score"`) {
		t.Fatalf("scorecard: got %d %s", code, body)
	}
	if code, body := get(t, ts.URL+"/metrics"); code != http.StatusOK || !strings.Contains(body, "kpiscope_baseline_present 1") {
		t.Fatalf("metrics: got %d %s", code, body)
	}
}

func TestEmptyCache(t *testing.T) {
	ts := newTestServer(t, false, "", "")
	for _, path := range []string{"/api/scorecard", "/api/last-run"} {
		if code, _ := get(t, ts.URL+path); code != http.StatusNotFound {
			t.Errorf("%s: want 404, got %d", path, code)
		}
	}
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, true, "admin", "secret")
	if code, _ := get(t, ts.URL+"/api/kpis"); code != http.StatusUnauthorized {
		t.Fatalf("want 401 without credentials, got %d", code)
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/kpis", nil)
	req.SetBasicAuth("admin", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200 with credentials, got %d", resp.StatusCode)
	}
}
