package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yegors/co-los/pkg/logger"
)

func newTestStorage(t *testing.T) *CarrierStorage {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "data", "co-los.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := NewCarrierStorage(db, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	storage.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return storage
}

func TestSeedAndList(t *testing.T) {
	s := newTestStorage(t)

	inserted, err := s.Seed([]CarrierRecord{
		{Code: "UAL", Name: "United Airlines", DefaultRangeKm: 200},
		{Code: "AAL", Name: "American Airlines", DefaultRangeKm: 200},
	})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("Inserted %d, want 2", inserted)
	}

	records, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 || records[0].Code != "AAL" || records[1].Code != "UAL" {
		t.Fatalf("Unexpected records: %+v", records)
	}
	if !records[0].UpdatedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("UpdatedAt = %v", records[0].UpdatedAt)
	}
}

func TestSeedKeepsExistingRows(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.Seed([]CarrierRecord{{Code: "DAL", Name: "Delta Air Lines", DefaultRangeKm: 200}}); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if err := s.UpdateRange("DAL", 275); err != nil {
		t.Fatalf("UpdateRange failed: %v", err)
	}

	inserted, err := s.Seed([]CarrierRecord{
		{Code: "DAL", Name: "Delta Air Lines", DefaultRangeKm: 200},
		{Code: "SWA", Name: "Southwest Airlines", DefaultRangeKm: 180},
	})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("Inserted %d, want 1", inserted)
	}

	records, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 || records[0].Code != "DAL" || records[0].DefaultRangeKm != 275 {
		t.Errorf("Unexpected records after reseed: %+v", records)
	}
}

func TestUpdateMissing(t *testing.T) {
	s := newTestStorage(t)

	if err := s.UpdateRange("XXX", 100); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRange error = %v, want ErrNotFound", err)
	}
}

func TestStoragePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "co-los.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s, err := NewCarrierStorage(db, logger.Nop())
	if err != nil {
		t.Fatalf("NewCarrierStorage failed: %v", err)
	}
	if _, err := s.Seed([]CarrierRecord{{Code: "BAW", Name: "British Airways", DefaultRangeKm: 220}}); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db.Close()

	s, err = NewCarrierStorage(db, logger.Nop())
	if err != nil {
		t.Fatalf("NewCarrierStorage failed: %v", err)
	}
	records, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].Name != "British Airways" || records[0].DefaultRangeKm != 220 {
		t.Errorf("Unexpected records: %+v", records)
	}
}
