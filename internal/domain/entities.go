// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"strings"
	"time"
)

// ─── Status Types ───────────────────────────────────────────────────────────

// RequestStatus is the lifecycle status of an issuance or migration request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// SessionStatus is the lifecycle status of a redemption session.
type SessionStatus string

const (
	SessionActive          SessionStatus = "active"
	SessionAwaitingConfirm SessionStatus = "awaiting_confirm"
	SessionSucceeded       SessionStatus = "succeeded"
	SessionFailed          SessionStatus = "failed"
	SessionExpired         SessionStatus = "expired"
)

// Terminal reports whether the session can no longer change state.
func (s SessionStatus) Terminal() bool {
	return s == SessionSucceeded || s == SessionFailed || s == SessionExpired
}

// ─── Actor Identity ─────────────────────────────────────────────────────────

// Identity is the acting customer as seen by the store terminal.
// Format is not validated beyond non-emptiness.
type Identity struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Valid reports whether both fields are non-empty.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.Name) != "" && strings.TrimSpace(i.Phone) != ""
}

// ─── Entities ───────────────────────────────────────────────────────────────

// Store is a participating store with its operational gate.
type Store struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Open bool   `json:"open"`
}

// StampCard tracks a customer's stamp progress toward a reward.
type StampCard struct {
	ID                string `json:"id"`
	StoreID           string `json:"store_id"`
	Current           int    `json:"current"`
	Max               int    `json:"max"`
	RewardDescription string `json:"reward_description"`
}

// Complete reports whether the card has collected all stamps.
func (c StampCard) Complete() bool { return c.Current >= c.Max }

// AddStamp increments the stamp counter, clamped at Max.
// Incrementing a full card is a no-op, not an error.
func (c *StampCard) AddStamp() {
	if c.Current < c.Max {
		c.Current++
	}
}

// Reward is a completed card's redeemable reward.
// IsUsed flips to true only on a succeeded redemption, and never back.
type Reward struct {
	ID       string `json:"id"`
	WalletID string `json:"wallet_id"`
	Name     string `json:"name"`
	IsUsed   bool   `json:"is_used"`
}

// IssuanceRequest is a customer's ask to add one stamp to a card.
// Once the status leaves pending the request is immutable; requests are
// never deleted (append-only history).
type IssuanceRequest struct {
	ID             string        `json:"id"`
	StoreID        string        `json:"store_id"`
	CardID         string        `json:"card_id"`
	RequesterName  string        `json:"requester_name"`
	RequesterPhone string        `json:"requester_phone"`
	Count          int           `json:"count"`
	Status         RequestStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	DecidedAt      time.Time     `json:"decided_at,omitzero"`
}

// RedemptionSession is a time-boxed, staff-witnessed transaction that
// consumes a reward. RemainingSeconds only decreases while the session
// is live; at zero the session expires and can never re-enter active.
type RedemptionSession struct {
	ID               string        `json:"id"`
	RewardID         string        `json:"reward_id"`
	WalletID         string        `json:"wallet_id"`
	StoreID          string        `json:"store_id"`
	Status           SessionStatus `json:"status"`
	RemainingSeconds int           `json:"remaining_seconds"`
	TTLSeconds       int           `json:"ttl_seconds"`
	CreatedAt        time.Time     `json:"created_at"`
	FinishedAt       time.Time     `json:"finished_at,omitzero"`
}

// MigrationRequest is a bulk request to carry over stamp counts
// accumulated before the program joined the system.
type MigrationRequest struct {
	ID             string        `json:"id"`
	StoreName      string        `json:"store_name"`
	RequestedCount int           `json:"requested_count"`
	ApprovedCount  int           `json:"approved_count,omitempty"`
	Status         RequestStatus `json:"status"`
	RejectReason   string        `json:"reject_reason,omitempty"`
	EvidenceRef    string        `json:"evidence_ref,omitempty"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	DecidedAt      time.Time     `json:"decided_at,omitzero"`
}
