// Package store implements the entity store: the canonical in-memory
// collections of stores, stamp cards, rewards, issuance requests,
// redemption sessions, and migration requests.
//
// The store is the single source of truth shared by all actors (customer,
// store terminal, admin). Every per-entity transition runs under one lock,
// so two racing decisions against the same entity cannot both succeed —
// the second observes ErrInvalidTransition. Callers receive value copies,
// never pointers into the maps.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stampd-network/stampd/internal/domain"
)

// Store holds the canonical entity collections.
type Store struct {
	mu         sync.RWMutex
	stores     map[string]*domain.Store
	cards      map[string]*domain.StampCard
	rewards    map[string]*domain.Reward
	issuance   map[string]*domain.IssuanceRequest
	sessions   map[string]*domain.RedemptionSession
	migrations map[string]*domain.MigrationRequest
}

// New creates an empty entity store.
func New() *Store {
	return &Store{
		stores:     make(map[string]*domain.Store),
		cards:      make(map[string]*domain.StampCard),
		rewards:    make(map[string]*domain.Reward),
		issuance:   make(map[string]*domain.IssuanceRequest),
		sessions:   make(map[string]*domain.RedemptionSession),
		migrations: make(map[string]*domain.MigrationRequest),
	}
}

func newID() string { return uuid.NewString() }

// ─── Stores & Gate ──────────────────────────────────────────────────────────

// CreateStore registers a store. New stores start open.
func (s *Store) CreateStore(name string) domain.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &domain.Store{ID: newID(), Name: name, Open: true}
	s.stores[st.ID] = st
	return *st
}

// GetStore returns a store by id.
func (s *Store) GetStore(id string) (domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[id]
	if !ok {
		return domain.Store{}, domain.ErrNotFound
	}
	return *st, nil
}

// ToggleStore flips the store's open/closed gate and returns the new state.
// The gate only affects new issuance submissions, never in-flight work.
func (s *Store) ToggleStore(id string) (domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stores[id]
	if !ok {
		return domain.Store{}, domain.ErrNotFound
	}
	st.Open = !st.Open
	return *st, nil
}

// IsOpen reports whether the store gate accepts new issuance requests.
func (s *Store) IsOpen(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	return st.Open, nil
}

// ─── Stamp Cards ────────────────────────────────────────────────────────────

// CreateCard registers a stamp card for a store.
func (s *Store) CreateCard(storeID string, max int, rewardDesc string) (domain.StampCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[storeID]; !ok {
		return domain.StampCard{}, domain.ErrNotFound
	}
	c := &domain.StampCard{ID: newID(), StoreID: storeID, Max: max, RewardDescription: rewardDesc}
	s.cards[c.ID] = c
	return *c, nil
}

// GetCard returns a stamp card by id.
func (s *Store) GetCard(id string) (domain.StampCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return domain.StampCard{}, domain.ErrNotFound
	}
	return *c, nil
}

// ListCards returns all cards for a store.
func (s *Store) ListCards(storeID string) []domain.StampCard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StampCard
	for _, c := range s.cards {
		if c.StoreID == storeID {
			out = append(out, *c)
		}
	}
	return out
}

// ─── Rewards ────────────────────────────────────────────────────────────────

// CreateReward registers a redeemable reward in a customer wallet.
func (s *Store) CreateReward(walletID, name string) domain.Reward {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &domain.Reward{ID: newID(), WalletID: walletID, Name: name}
	s.rewards[r.ID] = r
	return *r
}

// GetReward returns a reward by id.
func (s *Store) GetReward(id string) (domain.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rewards[id]
	if !ok {
		return domain.Reward{}, domain.ErrNotFound
	}
	return *r, nil
}

// ─── Issuance Requests ──────────────────────────────────────────────────────

// CreateIssuance appends a pending stamp request. The gate check and the
// append share one critical section, so a toggle cannot slip in between
// and admit a request into a just-closed store.
func (s *Store) CreateIssuance(storeID, cardID string, who domain.Identity) (domain.IssuanceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stores[storeID]
	if !ok {
		return domain.IssuanceRequest{}, fmt.Errorf("store %s: %w", storeID, domain.ErrNotFound)
	}
	if _, ok := s.cards[cardID]; !ok {
		return domain.IssuanceRequest{}, fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	if !st.Open {
		return domain.IssuanceRequest{}, domain.ErrStoreClosed
	}

	req := &domain.IssuanceRequest{
		ID:             newID(),
		StoreID:        storeID,
		CardID:         cardID,
		RequesterName:  who.Name,
		RequesterPhone: who.Phone,
		Count:          1,
		Status:         domain.StatusPending,
		CreatedAt:      time.Now(),
	}
	s.issuance[req.ID] = req
	return *req, nil
}

// GetIssuance returns an issuance request by id.
func (s *Store) GetIssuance(id string) (domain.IssuanceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.issuance[id]
	if !ok {
		return domain.IssuanceRequest{}, domain.ErrNotFound
	}
	return *req, nil
}

// ListIssuance returns requests matching the filter, newest first unless a
// comparator is given. A nil filter matches everything.
func (s *Store) ListIssuance(filter func(domain.IssuanceRequest) bool, less ...func(a, b domain.IssuanceRequest) bool) []domain.IssuanceRequest {
	s.mu.RLock()
	var out []domain.IssuanceRequest
	for _, req := range s.issuance {
		if filter == nil || filter(*req) {
			out = append(out, *req)
		}
	}
	s.mu.RUnlock()

	cmp := func(a, b domain.IssuanceRequest) bool { return a.CreatedAt.After(b.CreatedAt) }
	if len(less) > 0 {
		cmp = less[0]
	}
	sort.Slice(out, func(i, j int) bool { return cmp(out[i], out[j]) })
	return out
}

// DecideIssuance atomically transitions a pending request to approved or
// rejected. On approval the linked stamp card is incremented in the same
// critical section, clamped at its max (overflow is a no-op by policy).
// A request already decided yields ErrInvalidTransition.
func (s *Store) DecideIssuance(id string, outcome domain.RequestStatus) (domain.IssuanceRequest, error) {
	if outcome != domain.StatusApproved && outcome != domain.StatusRejected {
		return domain.IssuanceRequest{}, fmt.Errorf("%w: outcome %q", domain.ErrValidation, outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.issuance[id]
	if !ok {
		return domain.IssuanceRequest{}, domain.ErrNotFound
	}
	if req.Status.Terminal() {
		return domain.IssuanceRequest{}, fmt.Errorf("%w: request already %s", domain.ErrInvalidTransition, req.Status)
	}

	req.Status = outcome
	req.DecidedAt = time.Now()

	if outcome == domain.StatusApproved {
		if card, ok := s.cards[req.CardID]; ok {
			card.AddStamp()
		}
	}
	return *req, nil
}

// ─── Redemption Sessions ────────────────────────────────────────────────────

// CreateSession starts a redemption session for an unused reward.
// A reward already marked used yields ErrRewardUsed. At most one live
// session may exist per reward: a second start while one is active or
// awaiting confirmation yields ErrInvalidTransition. Prior failed or
// expired sessions do not block a retry.
func (s *Store) CreateSession(rewardID, walletID, storeID string, ttlSeconds int) (domain.RedemptionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reward, ok := s.rewards[rewardID]
	if !ok {
		return domain.RedemptionSession{}, domain.ErrNotFound
	}
	if reward.IsUsed {
		return domain.RedemptionSession{}, domain.ErrRewardUsed
	}
	for _, existing := range s.sessions {
		if existing.RewardID == rewardID && !existing.Status.Terminal() {
			return domain.RedemptionSession{}, fmt.Errorf("%w: reward already has a live session", domain.ErrInvalidTransition)
		}
	}

	sess := &domain.RedemptionSession{
		ID:               newID(),
		RewardID:         rewardID,
		WalletID:         walletID,
		StoreID:          storeID,
		Status:           domain.SessionActive,
		RemainingSeconds: ttlSeconds,
		TTLSeconds:       ttlSeconds,
		CreatedAt:        time.Now(),
	}
	s.sessions[sess.ID] = sess
	return *sess, nil
}

// GetSession returns a redemption session by id.
func (s *Store) GetSession(id string) (domain.RedemptionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.RedemptionSession{}, domain.ErrNotFound
	}
	return *sess, nil
}

// MutateSession runs fn against the session and its reward under the store
// lock, giving the caller one consistent snapshot to transition from.
// The countdown tick and the staff confirm both funnel through here, which
// is what makes expiry-beats-late-confirm enforceable in a single place.
// If fn returns an error the mutation is discarded.
func (s *Store) MutateSession(id string, fn func(sess *domain.RedemptionSession, reward *domain.Reward) error) (domain.RedemptionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.RedemptionSession{}, domain.ErrNotFound
	}
	reward := s.rewards[sess.RewardID]

	// Work on copies so a rejected transition leaves no partial write.
	sessCopy := *sess
	var rewardCopy domain.Reward
	if reward != nil {
		rewardCopy = *reward
	}
	if err := fn(&sessCopy, &rewardCopy); err != nil {
		return *sess, err
	}

	*sess = sessCopy
	if reward != nil {
		*reward = rewardCopy
	}
	return sessCopy, nil
}

// ─── Migration Requests ─────────────────────────────────────────────────────

// CreateMigration appends a pending card-migration request.
func (s *Store) CreateMigration(storeName string, requestedCount int, evidenceRef string) domain.MigrationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := &domain.MigrationRequest{
		ID:             newID(),
		StoreName:      storeName,
		RequestedCount: requestedCount,
		EvidenceRef:    evidenceRef,
		Status:         domain.StatusPending,
		SubmittedAt:    time.Now(),
	}
	s.migrations[req.ID] = req
	return *req
}

// GetMigration returns a migration request by id.
func (s *Store) GetMigration(id string) (domain.MigrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.migrations[id]
	if !ok {
		return domain.MigrationRequest{}, domain.ErrNotFound
	}
	return *req, nil
}

// ListMigrations returns migration requests matching the filter, newest first.
func (s *Store) ListMigrations(filter func(domain.MigrationRequest) bool) []domain.MigrationRequest {
	s.mu.RLock()
	var out []domain.MigrationRequest
	for _, req := range s.migrations {
		if filter == nil || filter(*req) {
			out = append(out, *req)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

// DecideMigration atomically transitions a pending migration request.
// Field validation (approved count range, reject reason) belongs to the
// migration workflow; the store enforces terminal-state immutability only.
func (s *Store) DecideMigration(id string, outcome domain.RequestStatus, approvedCount int, rejectReason string) (domain.MigrationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.migrations[id]
	if !ok {
		return domain.MigrationRequest{}, domain.ErrNotFound
	}
	if req.Status.Terminal() {
		return domain.MigrationRequest{}, fmt.Errorf("%w: request already %s", domain.ErrInvalidTransition, req.Status)
	}

	req.Status = outcome
	req.DecidedAt = time.Now()
	switch outcome {
	case domain.StatusApproved:
		req.ApprovedCount = approvedCount
	case domain.StatusRejected:
		req.RejectReason = rejectReason
	}
	return *req, nil
}

// ─── Generic Status Lookup ──────────────────────────────────────────────────

// EntityStatus resolves the status of any tracked entity by id, for
// observers that only care about pending-vs-terminal. The second return
// reports whether the status is terminal.
func (s *Store) EntityStatus(id string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if req, ok := s.issuance[id]; ok {
		return string(req.Status), req.Status.Terminal(), nil
	}
	if sess, ok := s.sessions[id]; ok {
		return string(sess.Status), sess.Status.Terminal(), nil
	}
	if req, ok := s.migrations[id]; ok {
		return string(req.Status), req.Status.Terminal(), nil
	}
	return "", false, domain.ErrNotFound
}
