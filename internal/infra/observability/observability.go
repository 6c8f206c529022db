// Package observability defines the Prometheus metrics for the stampd
// daemon: issuance decisions, redemption session outcomes, watcher polls,
// and the store gate state.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Issuance Metrics ───────────────────────────────────────────────────────

// IssuanceSubmitted counts accepted stamp requests.
var IssuanceSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stampd",
	Subsystem: "issuance",
	Name:      "submitted_total",
	Help:      "Total stamp issuance requests accepted.",
})

// IssuanceRejectedClosed counts submissions refused by the store gate.
var IssuanceRejectedClosed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stampd",
	Subsystem: "issuance",
	Name:      "gate_rejected_total",
	Help:      "Total issuance submissions refused because the store was closed.",
})

// IssuanceDecisions counts terminal decisions by outcome.
var IssuanceDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stampd",
	Subsystem: "issuance",
	Name:      "decisions_total",
	Help:      "Total issuance decisions by outcome.",
}, []string{"outcome"})

// ─── Redemption Metrics ─────────────────────────────────────────────────────

// SessionsStarted counts redemption sessions created.
var SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stampd",
	Subsystem: "redemption",
	Name:      "sessions_started_total",
	Help:      "Total redemption sessions started.",
})

// SessionsFinalized counts sessions reaching a terminal state by outcome.
var SessionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stampd",
	Subsystem: "redemption",
	Name:      "sessions_finalized_total",
	Help:      "Total redemption sessions finalized by outcome (succeeded, failed, expired).",
}, []string{"outcome"})

// ActiveSessions tracks sessions whose countdown is still running.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "stampd",
	Subsystem: "redemption",
	Name:      "active_sessions",
	Help:      "Redemption sessions currently counting down.",
})

// ─── Migration Metrics ──────────────────────────────────────────────────────

// MigrationDecisions counts migration decisions by outcome.
var MigrationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stampd",
	Subsystem: "migration",
	Name:      "decisions_total",
	Help:      "Total card-migration decisions by outcome.",
}, []string{"outcome"})

// ─── Watcher Metrics ────────────────────────────────────────────────────────

// WatcherPolls counts observation ticks against the entity store.
var WatcherPolls = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stampd",
	Subsystem: "watch",
	Name:      "polls_total",
	Help:      "Total synchronization poll ticks.",
})

// WatcherActive tracks live observations.
var WatcherActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "stampd",
	Subsystem: "watch",
	Name:      "active_observations",
	Help:      "Observations currently polling for a terminal state.",
})

// ─── Gate & Journal Metrics ─────────────────────────────────────────────────

// StoreGateOpen reports the gate state per store (1=open, 0=closed).
var StoreGateOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "stampd",
	Subsystem: "gate",
	Name:      "open",
	Help:      "Whether the store gate accepts new issuance requests (1) or not (0).",
}, []string{"store"})

// JournalErrors counts failed decision-journal writes.
var JournalErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stampd",
	Subsystem: "journal",
	Name:      "write_errors_total",
	Help:      "Total decision journal write failures.",
})
