package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// ─── Long-Poll Wait ─────────────────────────────────────────────────────────
// The /wait endpoints hold the connection open until the request is
// decided, so a requester gets the decision in one round trip instead of
// polling GET in a loop. The handler itself runs an observation against
// the entity store; a server without a watcher answers immediately with
// the current state, which degrades cleanly to plain polling.

const defaultWaitTimeout = 30 * time.Second

// waitTimeout reads ?timeout_s, capped at 60 to stay inside the
// router-level request timeout.
func waitTimeout(r *http.Request) time.Duration {
	if raw := r.URL.Query().Get("timeout_s"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 60 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultWaitTimeout
}

// waitTerminal blocks until the observed entity turns terminal, the
// client disconnects, or the timeout elapses. Returns whether the caller
// should re-read and respond (false means the client is gone).
func (s *Server) waitTerminal(r *http.Request, id string) bool {
	if s.watcher == nil {
		return true
	}

	decided := make(chan struct{}, 1)
	sub := s.watcher.Observe(id, func(string) { decided <- struct{}{} })
	defer sub.Cancel()

	select {
	case <-decided:
		return true
	case <-time.After(waitTimeout(r)):
		return true
	case <-r.Context().Done():
		return false
	}
}

// handleWaitIssuance long-polls an issuance request until it is decided.
// GET /api/issuance/{id}/wait?timeout_s=30
func (s *Server) handleWaitIssuance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := s.issuance.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !req.Status.Terminal() {
		if !s.waitTerminal(r, id) {
			return
		}
		if req, err = s.issuance.Get(id); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, req)
}

// handleWaitMigration long-polls a migration request until it is decided.
// GET /api/migrations/{id}/wait?timeout_s=30
func (s *Server) handleWaitMigration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := s.migration.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !req.Status.Terminal() {
		if !s.waitTerminal(r, id) {
			return
		}
		if req, err = s.migration.Get(id); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, req)
}
