// Package sqlite persists the decision journal: an append-only history of
// decided issuance requests, finished redemption sessions, and decided
// migration requests. The entity store stays the source of truth for live
// state; the journal only backs the history views.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"

	"github.com/stampd-network/stampd/internal/domain"
)

// DB wraps the journal database handle.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the journal database and applies migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// A single writer keeps sqlite happy under concurrent decisions.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.conn.Close() }

// Migrations returns the journal schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS issuance_history (
			id              TEXT PRIMARY KEY,
			store_id        TEXT NOT NULL,
			card_id         TEXT NOT NULL,
			requester_name  TEXT NOT NULL,
			requester_phone TEXT NOT NULL,
			count           INTEGER NOT NULL,
			status          TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			decided_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_issuance_history_store ON issuance_history(store_id, decided_at)`,

		`CREATE TABLE IF NOT EXISTS session_history (
			id          TEXT PRIMARY KEY,
			reward_id   TEXT NOT NULL,
			wallet_id   TEXT NOT NULL,
			store_id    TEXT NOT NULL,
			status      TEXT NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			created_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_history_store ON session_history(store_id, finished_at)`,

		`CREATE TABLE IF NOT EXISTS migration_history (
			id              TEXT PRIMARY KEY,
			store_name      TEXT NOT NULL,
			requested_count INTEGER NOT NULL,
			approved_count  INTEGER NOT NULL DEFAULT 0,
			status          TEXT NOT NULL,
			reject_reason   TEXT,
			submitted_at    TEXT NOT NULL,
			decided_at      TEXT NOT NULL
		)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("journal migration: %w", err)
		}
	}
	return nil
}

// ─── Writes ─────────────────────────────────────────────────────────────────

// RecordIssuance appends a decided issuance request.
func (db *DB) RecordIssuance(req domain.IssuanceRequest) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO issuance_history
		(id, store_id, card_id, requester_name, requester_phone, count, status, created_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.StoreID, req.CardID, req.RequesterName, req.RequesterPhone,
		req.Count, string(req.Status),
		req.CreatedAt.Format(time.RFC3339Nano), req.DecidedAt.Format(time.RFC3339Nano))
	return err
}

// RecordSession appends a finished redemption session.
func (db *DB) RecordSession(sess domain.RedemptionSession) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO session_history
		(id, reward_id, wallet_id, store_id, status, ttl_seconds, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.RewardID, sess.WalletID, sess.StoreID, string(sess.Status),
		sess.TTLSeconds,
		sess.CreatedAt.Format(time.RFC3339Nano), sess.FinishedAt.Format(time.RFC3339Nano))
	return err
}

// RecordMigration appends a decided migration request.
func (db *DB) RecordMigration(req domain.MigrationRequest) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO migration_history
		(id, store_name, requested_count, approved_count, status, reject_reason, submitted_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.StoreName, req.RequestedCount, req.ApprovedCount, string(req.Status),
		req.RejectReason,
		req.SubmittedAt.Format(time.RFC3339Nano), req.DecidedAt.Format(time.RFC3339Nano))
	return err
}

// ─── History Reads ──────────────────────────────────────────────────────────

// IssuanceHistory returns decided issuance requests for a store, newest first.
func (db *DB) IssuanceHistory(storeID string, limit int) ([]domain.IssuanceRequest, error) {
	rows, err := db.conn.Query(`SELECT id, store_id, card_id, requester_name, requester_phone,
		count, status, created_at, decided_at
		FROM issuance_history WHERE store_id = ? ORDER BY decided_at DESC LIMIT ?`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IssuanceRequest
	for rows.Next() {
		var req domain.IssuanceRequest
		var status, createdAt, decidedAt string
		if err := rows.Scan(&req.ID, &req.StoreID, &req.CardID, &req.RequesterName,
			&req.RequesterPhone, &req.Count, &status, &createdAt, &decidedAt); err != nil {
			return nil, err
		}
		req.Status = domain.RequestStatus(status)
		req.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		req.DecidedAt, _ = time.Parse(time.RFC3339Nano, decidedAt)
		out = append(out, req)
	}
	return out, rows.Err()
}

// SessionHistory returns finished redemption sessions for a store, newest first.
func (db *DB) SessionHistory(storeID string, limit int) ([]domain.RedemptionSession, error) {
	rows, err := db.conn.Query(`SELECT id, reward_id, wallet_id, store_id, status,
		ttl_seconds, created_at, finished_at
		FROM session_history WHERE store_id = ? ORDER BY finished_at DESC LIMIT ?`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RedemptionSession
	for rows.Next() {
		var sess domain.RedemptionSession
		var status, createdAt, finishedAt string
		if err := rows.Scan(&sess.ID, &sess.RewardID, &sess.WalletID, &sess.StoreID,
			&status, &sess.TTLSeconds, &createdAt, &finishedAt); err != nil {
			return nil, err
		}
		sess.Status = domain.SessionStatus(status)
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sess.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// MigrationHistory returns decided migration requests, newest first.
func (db *DB) MigrationHistory(limit int) ([]domain.MigrationRequest, error) {
	rows, err := db.conn.Query(`SELECT id, store_name, requested_count, approved_count,
		status, reject_reason, submitted_at, decided_at
		FROM migration_history ORDER BY decided_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MigrationRequest
	for rows.Next() {
		var req domain.MigrationRequest
		var status, submittedAt, decidedAt string
		var reason sql.NullString
		if err := rows.Scan(&req.ID, &req.StoreName, &req.RequestedCount, &req.ApprovedCount,
			&status, &reason, &submittedAt, &decidedAt); err != nil {
			return nil, err
		}
		req.Status = domain.RequestStatus(status)
		req.RejectReason = reason.String
		req.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
		req.DecidedAt, _ = time.Parse(time.RFC3339Nano, decidedAt)
		out = append(out, req)
	}
	return out, rows.Err()
}
