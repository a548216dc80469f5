package decoder

import (
	"context"
	"sync"
	"time"
)

// MockSource replays scripted decode batches, standing in for the camera
// pipeline in tests and simulated kiosks. Once the script is exhausted it
// blocks like a camera with nothing in view, until the context ends.
type MockSource struct {
	id       string
	interval time.Duration

	mu      sync.Mutex
	batches [][]string
	pos     int
}

// NewMockSource creates a scripted source that yields one batch per
// interval.
func NewMockSource(id string, interval time.Duration, batches ...[]string) *MockSource {
	return &MockSource{id: id, interval: interval, batches: batches}
}

// ID implements Source.
func (m *MockSource) ID() string {
	return m.id
}

// Next implements Source.
func (m *MockSource) Next(ctx context.Context) ([]string, error) {
	if m.interval > 0 {
		t := time.NewTimer(m.interval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.pos < len(m.batches) {
		batch := m.batches[m.pos]
		m.pos++
		m.mu.Unlock()
		return batch, nil
	}
	m.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

var _ Source = (*MockSource)(nil)
