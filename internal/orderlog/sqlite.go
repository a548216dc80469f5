package orderlog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS completed_orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trailer TEXT NOT NULL,
	station TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP NOT NULL,
	scanned INTEGER NOT NULL
);`

// Open opens (creating if needed) the order database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open order database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping order database: %w", err)
	}
	return db, nil
}

// Store is the SQLite-backed log, used when the kiosk keeps its completed
// order history across restarts.
type Store struct {
	db *sql.DB
}

// NewStore bootstraps the schema on an open database.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create completed_orders table: %w", err)
	}
	return &Store{db: db}, nil
}

// Append implements Log.
func (s *Store) Append(rec types.CompletedOrderRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO completed_orders (trailer, station, started_at, ended_at, scanned) VALUES (?, ?, ?, ?, ?)`,
		rec.Trailer, rec.Station, rec.Start, rec.End, rec.Scanned,
	)
	if err != nil {
		return fmt.Errorf("failed to append order: %w", err)
	}
	return nil
}

// All implements Log. Insertion order is the rowid order.
func (s *Store) All() ([]types.CompletedOrderRecord, error) {
	rows, err := s.db.Query(
		`SELECT trailer, station, started_at, ended_at, scanned FROM completed_orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []types.CompletedOrderRecord
	for rows.Next() {
		var rec types.CompletedOrderRecord
		if err := rows.Scan(&rec.Trailer, &rec.Station, &rec.Start, &rec.End, &rec.Scanned); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count implements Log.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM completed_orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

var _ Log = (*Store)(nil)
