// Package issuance implements the stamp-issuance workflow:
// a customer submits a pending request, the store terminal approves or
// rejects it, and an approval drives the stamp-card counter.
package issuance

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stampd-network/stampd/internal/domain"
	"github.com/stampd-network/stampd/internal/infra/observability"
	"github.com/stampd-network/stampd/internal/store"
)

// Journal receives decided requests for the history views.
type Journal interface {
	RecordIssuance(domain.IssuanceRequest) error
}

// Service coordinates the issuance request lifecycle.
type Service struct {
	store   *store.Store
	journal Journal // nil disables journaling
	log     *zap.Logger
}

// New creates the issuance workflow service.
func New(st *store.Store, journal Journal, log *zap.Logger) *Service {
	return &Service{store: st, journal: journal, log: log}
}

// Submit creates a pending stamp request with count=1.
// Fails with ErrStoreClosed while the store gate is closed; the gate has
// no effect on requests already in flight. The gate is evaluated inside
// the store's append critical section, so a racing toggle either beats
// the submission or misses it entirely.
func (s *Service) Submit(storeID, cardID string, who domain.Identity) (domain.IssuanceRequest, error) {
	if !who.Valid() {
		return domain.IssuanceRequest{}, fmt.Errorf("%w: requester name and phone are required", domain.ErrValidation)
	}

	req, err := s.store.CreateIssuance(storeID, cardID, who)
	if err != nil {
		if errors.Is(err, domain.ErrStoreClosed) {
			observability.IssuanceRejectedClosed.Inc()
		}
		return domain.IssuanceRequest{}, err
	}
	observability.IssuanceSubmitted.Inc()
	s.log.Info("issuance request submitted",
		zap.String("request_id", req.ID),
		zap.String("store_id", storeID),
	)
	return req, nil
}

// Decide transitions a pending request to approved or rejected.
// Approval increments the linked stamp card, clamped at its max.
// The decision is immediately visible to any store reader; observers
// pick it up on their next poll.
func (s *Service) Decide(id string, outcome domain.RequestStatus) (domain.IssuanceRequest, error) {
	req, err := s.store.DecideIssuance(id, outcome)
	if err != nil {
		return domain.IssuanceRequest{}, err
	}

	observability.IssuanceDecisions.WithLabelValues(string(outcome)).Inc()
	s.log.Info("issuance request decided",
		zap.String("request_id", req.ID),
		zap.String("outcome", string(outcome)),
	)

	if s.journal != nil {
		if err := s.journal.RecordIssuance(req); err != nil {
			// History is best-effort; the decision itself already stands.
			observability.JournalErrors.Inc()
			s.log.Warn("journal write failed", zap.String("request_id", req.ID), zap.Error(err))
		}
	}
	return req, nil
}

// Get returns a request by id.
func (s *Service) Get(id string) (domain.IssuanceRequest, error) {
	return s.store.GetIssuance(id)
}

// Pending returns the terminal's approval queue for a store, newest first.
func (s *Service) Pending(storeID string) []domain.IssuanceRequest {
	return s.store.ListIssuance(func(r domain.IssuanceRequest) bool {
		return r.StoreID == storeID && r.Status == domain.StatusPending
	})
}
