// Package orderlog keeps the append-only history of completed orders.
package orderlog

import (
	"sync"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// Log is the completed-order history. Records are append-only and reads
// return them in insertion order.
type Log interface {
	// Append records one completed order
	Append(rec types.CompletedOrderRecord) error
	// All returns every record in insertion order
	All() ([]types.CompletedOrderRecord, error)
	// Count returns the number of records
	Count() (int, error)
}

// Memory is the process-lifetime log used when no database is configured.
type Memory struct {
	mu   sync.Mutex
	recs []types.CompletedOrderRecord
}

// NewMemory creates an empty in-memory log.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Log.
func (m *Memory) Append(rec types.CompletedOrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

// All implements Log.
func (m *Memory) All() ([]types.CompletedOrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.CompletedOrderRecord, len(m.recs))
	copy(out, m.recs)
	return out, nil
}

// Count implements Log.
func (m *Memory) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs), nil
}

var _ Log = (*Memory)(nil)
