package types

import (
	"context"
	"time"
)

// WorkerMetrics contains health metrics for a decode worker.
type WorkerMetrics struct {
	DecodesEmitted uint64    `json:"decodes_emitted"`
	SourceErrors   uint64    `json:"source_errors"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// DecodeWorker reads decoded strings from one stream and feeds the coordinator.
type DecodeWorker interface {
	// ID returns the worker's unique identifier
	ID() string
	// Start begins the worker
	Start(ctx context.Context) error
	// Stop stops the worker, waiting at most timeout for the read loop to exit
	Stop(timeout time.Duration) error
	// Metrics returns current worker health metrics
	Metrics() WorkerMetrics
}
