package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stampd-network/stampd/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIssuanceHistory_Roundtrip(t *testing.T) {
	db := openTestDB(t)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, status := range []domain.RequestStatus{domain.StatusApproved, domain.StatusRejected} {
		err := db.RecordIssuance(domain.IssuanceRequest{
			ID:             string(rune('a' + i)),
			StoreID:        "store-1",
			CardID:         "card-1",
			RequesterName:  "Mina",
			RequesterPhone: "010-1111-2222",
			Count:          1,
			Status:         status,
			CreatedAt:      base,
			DecidedAt:      base.Add(time.Duration(i+1) * time.Second),
		})
		if err != nil {
			t.Fatalf("RecordIssuance: %v", err)
		}
	}

	got, err := db.IssuanceHistory("store-1", 10)
	if err != nil {
		t.Fatalf("IssuanceHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest decision first.
	if got[0].Status != domain.StatusRejected || got[1].Status != domain.StatusApproved {
		t.Errorf("history not ordered newest first: %s, %s", got[0].Status, got[1].Status)
	}
	if got[0].RequesterName != "Mina" || got[0].Count != 1 {
		t.Errorf("fields lost in roundtrip: %+v", got[0])
	}

	other, _ := db.IssuanceHistory("store-2", 10)
	if len(other) != 0 {
		t.Errorf("history leaked across stores: %d rows", len(other))
	}
}

func TestSessionHistory_Roundtrip(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC()
	err := db.RecordSession(domain.RedemptionSession{
		ID:         "sess-1",
		RewardID:   "reward-1",
		WalletID:   "wallet-1",
		StoreID:    "store-1",
		Status:     domain.SessionExpired,
		TTLSeconds: 60,
		CreatedAt:  now,
		FinishedAt: now.Add(60 * time.Second),
	})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	got, err := db.SessionHistory("store-1", 10)
	if err != nil {
		t.Fatalf("SessionHistory: %v", err)
	}
	if len(got) != 1 || got[0].Status != domain.SessionExpired || got[0].TTLSeconds != 60 {
		t.Errorf("roundtrip = %+v", got)
	}
}

func TestMigrationHistory_Roundtrip(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC()
	err := db.RecordMigration(domain.MigrationRequest{
		ID:             "mig-1",
		StoreName:      "Old Cafe",
		RequestedCount: 25,
		Status:         domain.StatusRejected,
		RejectReason:   "evidence unreadable",
		SubmittedAt:    now,
		DecidedAt:      now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("RecordMigration: %v", err)
	}

	got, err := db.MigrationHistory(10)
	if err != nil {
		t.Fatalf("MigrationHistory: %v", err)
	}
	if len(got) != 1 || got[0].RejectReason != "evidence unreadable" {
		t.Errorf("roundtrip = %+v", got)
	}
}
