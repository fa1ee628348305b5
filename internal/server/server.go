package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sw33tLie/kpiscope/internal/telemetry"
	"github.com/sw33tLie/kpiscope/internal/utils"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/storage"
)

// Server serves the cached KPI state read-only.
type Server struct {
	Store    *storage.Store
	Config   *config.Config
	Username string
	Password string
}

func New(store *storage.Store, cfg *config.Config, user, pass string) *Server {
	return &Server{
		Store:    store,
		Config:   cfg,
		Username: user,
		Password: pass,
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.basicAuth(s.handleHealth))
	mux.HandleFunc("GET /api/kpis", s.basicAuth(s.handleKPIs))
	mux.HandleFunc("GET /api/kpis/{id}", s.basicAuth(s.handleKPI))
	mux.HandleFunc("GET /api/counts", s.basicAuth(s.handleCounts))
	mux.HandleFunc("GET /api/scorecard", s.basicAuth(s.handleScorecard))
	mux.HandleFunc("GET /api/last-run", s.basicAuth(s.handleLastRun))

	metrics := promhttp.HandlerFor(telemetry.Registry(telemetry.NewCollector(s.Store, s.Config)), promhttp.HandlerOpts{})
	mux.Handle("GET /metrics", s.basicAuth(metrics.ServeHTTP))

	return mux
}

func (s *Server) Start(addr string) error {
	utils.Log.Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
