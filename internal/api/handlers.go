package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stampd-network/stampd/internal/domain"
	"github.com/stampd-network/stampd/internal/infra/observability"
)

// ─── Issuance Handlers ──────────────────────────────────────────────────────

type submitIssuanceRequest struct {
	StoreID   string          `json:"store_id"`
	CardID    string          `json:"card_id"`
	Requester domain.Identity `json:"requester"`
}

// handleSubmitIssuance creates a pending stamp request.
// POST /api/issuance
func (s *Server) handleSubmitIssuance(w http.ResponseWriter, r *http.Request) {
	var body submitIssuanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := s.issuance.Submit(body.StoreID, body.CardID, body.Requester)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// handleListIssuance returns requests for a store, optionally filtered by
// status. The terminal's approval queue is ?status=pending.
// GET /api/issuance?store_id=...&status=pending
func (s *Server) handleListIssuance(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")
	status := r.URL.Query().Get("status")

	reqs := s.entities.ListIssuance(func(req domain.IssuanceRequest) bool {
		if storeID != "" && req.StoreID != storeID {
			return false
		}
		if status != "" && string(req.Status) != status {
			return false
		}
		return true
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": reqs,
		"count":    len(reqs),
	})
}

// handleGetIssuance returns one request; customers poll this by id.
// GET /api/issuance/{id}
func (s *Server) handleGetIssuance(w http.ResponseWriter, r *http.Request) {
	req, err := s.issuance.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleDecideIssuance approves or rejects a pending request.
// POST /api/issuance/{id}/approve | /reject
func (s *Server) handleDecideIssuance(outcome domain.RequestStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.issuance.Decide(chi.URLParam(r, "id"), outcome)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s.feed.Broadcast(DecisionEvent{
			Type:    "issuance_decided",
			ID:      req.ID,
			StoreID: req.StoreID,
			Status:  string(req.Status),
		})
		writeJSON(w, http.StatusOK, req)
	}
}

// ─── Redemption Handlers ────────────────────────────────────────────────────

type startRedemptionRequest struct {
	RewardID string `json:"reward_id"`
	WalletID string `json:"wallet_id"`
	StoreID  string `json:"store_id"`
}

// handleStartRedemption opens a redemption session and starts its countdown.
// POST /api/redemptions
func (s *Server) handleStartRedemption(w http.ResponseWriter, r *http.Request) {
	var body startRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess, err := s.redemption.Start(body.RewardID, body.WalletID, body.StoreID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// handleGetRedemption returns one session; customers poll this for the clock.
// GET /api/redemptions/{id}
func (s *Server) handleGetRedemption(w http.ResponseWriter, r *http.Request) {
	sess, err := s.redemption.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handlePresentRedemption is the customer's "show to staff" action.
// POST /api/redemptions/{id}/present
func (s *Server) handlePresentRedemption(w http.ResponseWriter, r *http.Request) {
	sess, err := s.redemption.Present(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleConfirmRedemption is the staff-side finalize.
// POST /api/redemptions/{id}/confirm
func (s *Server) handleConfirmRedemption(w http.ResponseWriter, r *http.Request) {
	sess, err := s.redemption.Confirm(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.feed.Broadcast(DecisionEvent{
		Type:    "redemption_finalized",
		ID:      sess.ID,
		StoreID: sess.StoreID,
		Status:  string(sess.Status),
	})
	writeJSON(w, http.StatusOK, sess)
}

// handleCancelRedemption fails a live session; either actor may call it.
// POST /api/redemptions/{id}/cancel
func (s *Server) handleCancelRedemption(w http.ResponseWriter, r *http.Request) {
	sess, err := s.redemption.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.feed.Broadcast(DecisionEvent{
		Type:    "redemption_finalized",
		ID:      sess.ID,
		StoreID: sess.StoreID,
		Status:  string(sess.Status),
	})
	writeJSON(w, http.StatusOK, sess)
}

// ─── Migration Handlers ─────────────────────────────────────────────────────

type submitMigrationRequest struct {
	StoreName      string `json:"store_name"`
	RequestedCount int    `json:"requested_count"`
	EvidenceRef    string `json:"evidence_ref"`
}

// handleSubmitMigration creates a pending migration request.
// POST /api/migrations
func (s *Server) handleSubmitMigration(w http.ResponseWriter, r *http.Request) {
	var body submitMigrationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := s.migration.Submit(body.StoreName, body.RequestedCount, body.EvidenceRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// handleListMigrations returns the admin review list.
// GET /api/migrations?status=pending
func (s *Server) handleListMigrations(w http.ResponseWriter, r *http.Request) {
	var reqs []domain.MigrationRequest
	if r.URL.Query().Get("status") == string(domain.StatusPending) {
		reqs = s.migration.Pending()
	} else {
		reqs = s.migration.List()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": reqs,
		"count":    len(reqs),
	})
}

// handleGetMigration returns one migration request.
// GET /api/migrations/{id}
func (s *Server) handleGetMigration(w http.ResponseWriter, r *http.Request) {
	req, err := s.migration.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type approveMigrationRequest struct {
	ApprovedCount *int `json:"approved_count"`
}

// handleApproveMigration approves, possibly for fewer stamps than requested.
// POST /api/migrations/{id}/approve
func (s *Server) handleApproveMigration(w http.ResponseWriter, r *http.Request) {
	var body approveMigrationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	req, err := s.migration.Decide(chi.URLParam(r, "id"), domain.StatusApproved, body.ApprovedCount, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.feed.Broadcast(DecisionEvent{
		Type:   "migration_decided",
		ID:     req.ID,
		Status: string(req.Status),
	})
	writeJSON(w, http.StatusOK, req)
}

type rejectMigrationRequest struct {
	Reason string `json:"reason"`
}

// handleRejectMigration rejects with a mandatory reason.
// POST /api/migrations/{id}/reject
func (s *Server) handleRejectMigration(w http.ResponseWriter, r *http.Request) {
	var body rejectMigrationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := s.migration.Decide(chi.URLParam(r, "id"), domain.StatusRejected, nil, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.feed.Broadcast(DecisionEvent{
		Type:   "migration_decided",
		ID:     req.ID,
		Status: string(req.Status),
	})
	writeJSON(w, http.StatusOK, req)
}

// ─── Store & Gate Handlers ──────────────────────────────────────────────────

type createStoreRequest struct {
	Name string `json:"name"`
}

// handleCreateStore registers a store. New stores start open.
// POST /api/stores
func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var body createStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "store name is required")
		return
	}

	st := s.entities.CreateStore(body.Name)
	observability.StoreGateOpen.WithLabelValues(st.ID).Set(1)
	writeJSON(w, http.StatusCreated, st)
}

// handleGetStore returns a store with its gate state.
// GET /api/stores/{id}
func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	st, err := s.entities.GetStore(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleToggleStore flips the open/closed gate. The gate only affects new
// issuance submissions; in-flight requests and sessions are untouched.
// POST /api/stores/{id}/toggle
func (s *Server) handleToggleStore(w http.ResponseWriter, r *http.Request) {
	st, err := s.entities.ToggleStore(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	gate := 0.0
	if st.Open {
		gate = 1.0
	}
	observability.StoreGateOpen.WithLabelValues(st.ID).Set(gate)
	writeJSON(w, http.StatusOK, st)
}

// ─── Card & Reward Handlers ─────────────────────────────────────────────────

type createCardRequest struct {
	StoreID           string `json:"store_id"`
	Max               int    `json:"max"`
	RewardDescription string `json:"reward_description"`
}

// handleCreateCard registers a stamp card for a store.
// POST /api/cards
func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var body createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Max <= 0 {
		writeError(w, http.StatusBadRequest, "card max must be positive")
		return
	}

	card, err := s.entities.CreateCard(body.StoreID, body.Max, body.RewardDescription)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// handleListCards returns a store's cards.
// GET /api/cards?store_id=...
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards := s.entities.ListCards(r.URL.Query().Get("store_id"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cards": cards,
		"count": len(cards),
	})
}

// handleGetCard returns one card with its progress.
// GET /api/cards/{id}
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.entities.GetCard(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

type createRewardRequest struct {
	WalletID string `json:"wallet_id"`
	Name     string `json:"name"`
}

// handleCreateReward registers a redeemable reward in a wallet.
// POST /api/rewards
func (s *Server) handleCreateReward(w http.ResponseWriter, r *http.Request) {
	var body createRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reward := s.entities.CreateReward(body.WalletID, body.Name)
	writeJSON(w, http.StatusCreated, reward)
}

// handleGetReward returns one reward.
// GET /api/rewards/{id}
func (s *Server) handleGetReward(w http.ResponseWriter, r *http.Request) {
	reward, err := s.entities.GetReward(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

// ─── History Handlers ───────────────────────────────────────────────────────

func historyLimit(r *http.Request) int {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}

// handleIssuanceHistory returns decided requests for a store.
// GET /api/history/issuance?store_id=...&limit=50
func (s *Server) handleIssuanceHistory(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.journal.IssuanceHistory(r.URL.Query().Get("store_id"), historyLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": reqs,
		"count":    len(reqs),
	})
}

// handleSessionHistory returns finished sessions for a store.
// GET /api/history/sessions?store_id=...&limit=50
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.journal.SessionHistory(r.URL.Query().Get("store_id"), historyLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleMigrationHistory returns decided migration requests.
// GET /api/history/migrations?limit=50
func (s *Server) handleMigrationHistory(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.journal.MigrationHistory(historyLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": reqs,
		"count":    len(reqs),
	})
}
