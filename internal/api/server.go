// Package api provides the stampd HTTP server: the surface the customer
// app, the store terminal, and the admin console talk to. The server is a
// thin layer over the workflow services; all lifecycle rules live below.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stampd-network/stampd/internal/app/issuance"
	"github.com/stampd-network/stampd/internal/app/migration"
	"github.com/stampd-network/stampd/internal/app/redemption"
	"github.com/stampd-network/stampd/internal/app/watch"
	"github.com/stampd-network/stampd/internal/domain"
	"github.com/stampd-network/stampd/internal/infra/sqlite"
	"github.com/stampd-network/stampd/internal/store"
)

// Version is the daemon version reported by /api/version.
const Version = "0.1.0"

// Server is the stampd HTTP API server.
type Server struct {
	entities       *store.Store
	issuance       *issuance.Service
	redemption     *redemption.Engine
	migration      *migration.Service
	journal        *sqlite.DB     // nil disables the history endpoints
	watcher        *watch.Watcher // nil degrades /wait to an immediate read
	feed           *DecisionHub
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(entities *store.Store, iss *issuance.Service, red *redemption.Engine, mig *migration.Service) *Server {
	return &Server{
		entities:   entities,
		issuance:   iss,
		redemption: red,
		migration:  mig,
		feed:       NewDecisionHub(),
	}
}

// SetJournal enables the history endpoints backed by the decision journal.
func (s *Server) SetJournal(db *sqlite.DB) { s.journal = db }

// SetWatcher enables the long-poll /wait endpoints.
func (s *Server) SetWatcher(w *watch.Watcher) { s.watcher = w }

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Feed returns the live decision hub (for broadcasting events).
func (s *Server) Feed() *DecisionHub { return s.feed }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	// Customer + terminal: stamp issuance
	r.Route("/api/issuance", func(r chi.Router) {
		r.Post("/", s.handleSubmitIssuance)
		r.Get("/", s.handleListIssuance)
		r.Get("/{id}", s.handleGetIssuance)
		r.Get("/{id}/wait", s.handleWaitIssuance)
		r.Post("/{id}/approve", s.handleDecideIssuance(domain.StatusApproved))
		r.Post("/{id}/reject", s.handleDecideIssuance(domain.StatusRejected))
	})

	// Customer + terminal: reward redemption
	r.Route("/api/redemptions", func(r chi.Router) {
		r.Post("/", s.handleStartRedemption)
		r.Get("/{id}", s.handleGetRedemption)
		r.Post("/{id}/present", s.handlePresentRedemption)
		r.Post("/{id}/confirm", s.handleConfirmRedemption)
		r.Post("/{id}/cancel", s.handleCancelRedemption)
	})

	// Customer + admin: card migration
	r.Route("/api/migrations", func(r chi.Router) {
		r.Post("/", s.handleSubmitMigration)
		r.Get("/", s.handleListMigrations)
		r.Get("/{id}", s.handleGetMigration)
		r.Get("/{id}/wait", s.handleWaitMigration)
		r.Post("/{id}/approve", s.handleApproveMigration)
		r.Post("/{id}/reject", s.handleRejectMigration)
	})

	// Stores and the operational gate
	r.Route("/api/stores", func(r chi.Router) {
		r.Post("/", s.handleCreateStore)
		r.Get("/{id}", s.handleGetStore)
		r.Post("/{id}/toggle", s.handleToggleStore)
	})

	// Wallet setup: stamp cards and rewards
	r.Route("/api/cards", func(r chi.Router) {
		r.Post("/", s.handleCreateCard)
		r.Get("/", s.handleListCards)
		r.Get("/{id}", s.handleGetCard)
	})
	r.Route("/api/rewards", func(r chi.Router) {
		r.Post("/", s.handleCreateReward)
		r.Get("/{id}", s.handleGetReward)
	})

	// History views (journal-backed)
	if s.journal != nil {
		r.Route("/api/history", func(r chi.Router) {
			r.Get("/issuance", s.handleIssuanceHistory)
			r.Get("/sessions", s.handleSessionHistory)
			r.Get("/migrations", s.handleMigrationHistory)
		})
	}

	// Live decision feed for terminal dashboards
	r.Get("/api/feed/decisions", s.feed.HandleSSE)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a workflow error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, domainStatus(err), err.Error())
}

// domainStatus maps the domain error taxonomy onto HTTP statuses.
func domainStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreClosed):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrRewardUsed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers for the browser-based surfaces.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
