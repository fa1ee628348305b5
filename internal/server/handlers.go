package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sw33tLie/kpiscope/pkg/scorecard"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type HealthResponse struct {
	Status        string   `json:"status"`
	BaselineReady bool     `json:"baseline_ready"`
	CachedKPIs    int      `json:"cached_kpis"`
	LastRun       string   `json:"last_run,omitempty"`
	LastMode      string   `json:"last_mode,omitempty"`
	CacheDir      string   `json:"cache_dir"`
	ConfigVersion string   `json:"config_version,omitempty"`
	EnabledKPIs   []string `json:"enabled_kpis,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		BaselineReady: s.Store.HasBaseline(),
		CachedKPIs:    len(s.Store.LoadKPIs()),
		CacheDir:      s.Store.Dir(),
	}
	if !resp.BaselineReady {
		resp.Status = "no_baseline"
	}
	if run, ok := s.Store.LoadRunMetadata(); ok {
		resp.LastRun = run.Timestamp
		resp.LastMode = run.ProcessingMode
	}
	if s.Config != nil {
		resp.ConfigVersion = s.Config.Version()
		resp.EnabledKPIs = s.Config.EnabledKPIs()
	}
	writeJSON(w, resp)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Store.LoadKPIs())
}

func (s *Server) handleKPI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, ok := s.Store.LoadKPIs()[id]
	if !ok {
		http.Error(w, "KPI not found in cache: "+id, http.StatusNotFound)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Store.LoadCounts())
}

func (s *Server) handleScorecard(w http.ResponseWriter, r *http.Request) {
	if s.Config == nil {
		http.Error(w, "no KPI configuration loaded", http.StatusServiceUnavailable)
		return
	}
	kpis := s.Store.LoadKPIs()
	if len(kpis) == 0 {
		http.Error(w, "no cached KPIs, run a baseline first", http.StatusNotFound)
		return
	}
	writeJSON(w, scorecard.Aggregate(s.Config, kpis, time.Now()))
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.Store.LoadRunMetadata()
	if !ok {
		http.Error(w, "no run recorded", http.StatusNotFound)
		return
	}
	writeJSON(w, run)
}
