// Package migration implements the card-migration workflow: bulk requests
// to carry over stamp counts earned before a store joined the program,
// reviewed by an admin. Structurally the same submit → pending → decision
// lifecycle as issuance, with no store gate and partial approval.
package migration

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stampd-network/stampd/internal/domain"
	"github.com/stampd-network/stampd/internal/infra/observability"
	"github.com/stampd-network/stampd/internal/store"
)

// Journal receives decided migration requests for the history views.
type Journal interface {
	RecordMigration(domain.MigrationRequest) error
}

// Service coordinates the migration request lifecycle.
type Service struct {
	store   *store.Store
	journal Journal // nil disables journaling
	log     *zap.Logger
}

// New creates the migration workflow service.
func New(st *store.Store, journal Journal, log *zap.Logger) *Service {
	return &Service{store: st, journal: journal, log: log}
}

// Submit creates a pending migration request. Submissions are always
// accepted; review happens at decision time.
func (s *Service) Submit(storeName string, requestedCount int, evidenceRef string) (domain.MigrationRequest, error) {
	if strings.TrimSpace(storeName) == "" {
		return domain.MigrationRequest{}, fmt.Errorf("%w: store name is required", domain.ErrValidation)
	}
	if requestedCount <= 0 {
		return domain.MigrationRequest{}, fmt.Errorf("%w: requested count must be positive", domain.ErrValidation)
	}

	req := s.store.CreateMigration(storeName, requestedCount, evidenceRef)
	s.log.Info("migration request submitted",
		zap.String("request_id", req.ID),
		zap.String("store_name", storeName),
		zap.Int("requested_count", requestedCount),
	)
	return req, nil
}

// Decide transitions a pending migration request.
//
// Approval may grant fewer stamps than requested: approvedCount defaults
// to the requested count when nil, and must satisfy
// 0 <= approvedCount <= requestedCount. Rejection requires a non-empty
// reason. Violations fail with ErrValidation before any state changes.
func (s *Service) Decide(id string, outcome domain.RequestStatus, approvedCount *int, rejectReason string) (domain.MigrationRequest, error) {
	req, err := s.store.GetMigration(id)
	if err != nil {
		return domain.MigrationRequest{}, err
	}

	var granted int
	switch outcome {
	case domain.StatusApproved:
		granted = req.RequestedCount
		if approvedCount != nil {
			granted = *approvedCount
		}
		if granted < 0 {
			return domain.MigrationRequest{}, fmt.Errorf("%w: approved count must not be negative", domain.ErrValidation)
		}
		if granted > req.RequestedCount {
			return domain.MigrationRequest{}, fmt.Errorf("%w: approved count %d exceeds requested %d",
				domain.ErrValidation, granted, req.RequestedCount)
		}
	case domain.StatusRejected:
		if strings.TrimSpace(rejectReason) == "" {
			return domain.MigrationRequest{}, fmt.Errorf("%w: rejection requires a reason", domain.ErrValidation)
		}
	default:
		return domain.MigrationRequest{}, fmt.Errorf("%w: outcome %q", domain.ErrValidation, outcome)
	}

	decided, err := s.store.DecideMigration(id, outcome, granted, rejectReason)
	if err != nil {
		return domain.MigrationRequest{}, err
	}

	observability.MigrationDecisions.WithLabelValues(string(outcome)).Inc()
	s.log.Info("migration request decided",
		zap.String("request_id", decided.ID),
		zap.String("outcome", string(outcome)),
		zap.Int("approved_count", decided.ApprovedCount),
	)

	if s.journal != nil {
		if err := s.journal.RecordMigration(decided); err != nil {
			observability.JournalErrors.Inc()
			s.log.Warn("journal write failed", zap.String("request_id", decided.ID), zap.Error(err))
		}
	}
	return decided, nil
}

// Get returns a migration request by id.
func (s *Service) Get(id string) (domain.MigrationRequest, error) {
	return s.store.GetMigration(id)
}

// List returns all migration requests, newest first.
func (s *Service) List() []domain.MigrationRequest {
	return s.store.ListMigrations(nil)
}

// Pending returns the admin review queue, newest first.
func (s *Service) Pending() []domain.MigrationRequest {
	return s.store.ListMigrations(func(r domain.MigrationRequest) bool {
		return r.Status == domain.StatusPending
	})
}
