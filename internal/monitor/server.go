// Package monitor serves the engine's operational HTTP surface.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Pinger reports backing-store connectivity, typically *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server hosts /health and /metrics.
type Server struct {
	addr     string
	registry *prometheus.Registry
	db       Pinger
	srv      *http.Server
}

// NewServer builds the monitor server. db may be nil (health reports on the
// process only).
func NewServer(addr string, registry *prometheus.Registry, db Pinger) *Server {
	s := &Server{addr: addr, registry: registry, db: db}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.addr).Msg("monitor server listening")
	return s.srv.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Healthy  bool      `json:"healthy"`
	Database string    `json:"database,omitempty"`
	Checked  time.Time `json:"checked_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Healthy: true, Checked: time.Now().UTC()}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			resp.Healthy = false
			resp.Database = err.Error()
		} else {
			resp.Database = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !resp.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
