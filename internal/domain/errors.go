package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. No error here is
// fatal to the process; every operation surfaces a typed outcome.

var (
	// ErrNotFound means the entity id is unknown. Always recoverable.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidTransition means a mutation was attempted on an entity
	// whose status is already terminal. The caller holds stale state and
	// should re-read.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStoreClosed means the store gate rejected a new issuance request.
	ErrStoreClosed = errors.New("store is closed")

	// ErrSessionExpired means the redemption countdown reached zero before
	// the attempted action. Distinct from a failed session — the two are
	// never merged.
	ErrSessionExpired = errors.New("redemption session expired")

	// ErrRewardUsed means a redemption was started for an already-consumed reward.
	ErrRewardUsed = errors.New("reward already used")

	// ErrValidation means a required field is missing or out of range.
	// The caller must correct the input and resubmit.
	ErrValidation = errors.New("validation failed")
)
