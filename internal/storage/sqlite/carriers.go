package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/co-los/pkg/logger"
)

// ErrNotFound is returned when a carrier is not stored
var ErrNotFound = errors.New("carrier not found")

// CarrierStorage handles storage of carrier records
type CarrierStorage struct {
	db     *sql.DB
	logger *logger.Logger
	now    func() time.Time
}

// NewCarrierStorage creates a new SQLite carrier storage
func NewCarrierStorage(db *sql.DB, log *logger.Logger) (*CarrierStorage, error) {
	storage := &CarrierStorage{
		db:     db,
		logger: log.Named("sqlite-carriers"),
		now:    time.Now,
	}

	if err := storage.initDB(); err != nil {
		log.Error("Failed to initialize carrier storage", logger.Error(err))
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *CarrierStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS carriers (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			default_range_km REAL NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create carriers table: %w", err)
	}

	return nil
}

// Seed inserts the given carriers, leaving rows that already exist untouched
// so ranges changed at runtime survive restarts. It returns the number of
// rows inserted.
func (s *CarrierStorage) Seed(records []CarrierRecord) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO carriers (code, name, default_range_km, updated_at)
		VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare seed statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	now := s.now().UTC().Format(time.RFC3339)
	for _, record := range records {
		result, err := stmt.Exec(record.Code, record.Name, record.DefaultRangeKm, now)
		if err != nil {
			return 0, fmt.Errorf("failed to seed carrier %s: %w", record.Code, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}

	s.logger.Debug("Seeded carriers",
		logger.Int("offered", len(records)),
		logger.Int("inserted", inserted),
	)
	return inserted, nil
}

// List returns all stored carriers ordered by code
func (s *CarrierStorage) List() ([]*CarrierRecord, error) {
	rows, err := s.db.Query(
		`SELECT code, name, default_range_km, updated_at
		FROM carriers
		ORDER BY code`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query carriers: %w", err)
	}
	defer rows.Close()

	return s.scanCarrierRows(rows)
}

// UpdateRange sets a carrier's default range
func (s *CarrierStorage) UpdateRange(code string, rangeKm float64) error {
	result, err := s.db.Exec(
		`UPDATE carriers
		SET default_range_km = ?, updated_at = ?
		WHERE code = ?`,
		rangeKm,
		s.now().UTC().Format(time.RFC3339),
		code,
	)
	if err != nil {
		return fmt.Errorf("failed to update carrier range: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// scanCarrierRows scans database rows into CarrierRecord structs
func (s *CarrierStorage) scanCarrierRows(rows *sql.Rows) ([]*CarrierRecord, error) {
	var records []*CarrierRecord
	for rows.Next() {
		var record CarrierRecord
		var updatedAt string

		if err := rows.Scan(
			&record.Code,
			&record.Name,
			&record.DefaultRangeKm,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan carrier: %w", err)
		}

		var err error
		record.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate carriers: %w", err)
	}

	return records, nil
}
