// Package ops exposes the operational HTTP surface of the harvester:
// liveness, Prometheus metrics, and a coverage status summary.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/geopop/harvester/internal/harvest"
)

// Server wires the operational endpoints to the stores.
type Server struct {
	router    chi.Router
	accounts  harvest.AccountStore
	coverage  harvest.CoverageStore
	logger    *zap.Logger
	startedAt time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(accounts harvest.AccountStore, coverage harvest.CoverageStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		accounts:  accounts,
		coverage:  coverage,
		logger:    logger,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", s.status)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Accounts      int64  `json:"accounts"`
	Expanded      int64  `json:"expanded"`
	CoveredDates  int64  `json:"covered_dates"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Started       string `json:"started"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	total, expanded, err := s.accounts.CountAccounts(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "count accounts failed")
		return
	}
	covered, err := s.coverage.CountCovered(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "count coverage failed")
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Accounts:      total,
		Expanded:      expanded,
		CoveredDates:  covered,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Started:       s.startedAt.UTC().Format(time.RFC3339),
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
