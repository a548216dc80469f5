// Package decoder feeds decoded barcode values from scan streams into the
// coordinator.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

const sourceRetryDelay = 100 * time.Millisecond

// Source is the decode collaborator boundary: a pipeline that turns camera
// frames into decoded strings. Next blocks until a batch is available, the
// context ends, or the stream closes with io.EOF.
type Source interface {
	// ID identifies the stream
	ID() string
	// Next returns the next batch of decoded strings
	Next(ctx context.Context) ([]string, error)
}

// Worker pumps one source into the shared decode event channel. Source
// errors are contained here: a crashing decode stream degrades the portal
// to the remaining streams, it never reaches the coordinator.
type Worker struct {
	source Source
	events chan<- types.DecodedEvent

	seq     atomic.Uint64
	decoded atomic.Uint64
	errs    atomic.Uint64

	mu        sync.Mutex
	cancel    context.CancelFunc
	doneCh    chan struct{}
	lastSeen  time.Time
	isRunning bool
}

// NewWorker creates a worker over one source.
func NewWorker(source Source, events chan<- types.DecodedEvent) *Worker {
	return &Worker{source: source, events: events}
}

// ID implements types.DecodeWorker.
func (w *Worker) ID() string {
	return w.source.ID()
}

// Start begins the read loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("worker %s already running", w.ID())
	}
	w.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	done := w.doneCh
	w.mu.Unlock()

	slog.Info("decode worker starting", "worker_id", w.ID())

	go w.run(ctx, done)
	return nil
}

// Stop cancels the read loop and waits at most timeout for it to exit. On
// timeout the worker is abandoned and an error returned; the caller logs it
// and proceeds with teardown.
func (w *Worker) Stop(timeout time.Duration) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	done := w.doneCh
	w.mu.Unlock()

	cancel()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		slog.Info("decode worker stopped",
			"worker_id", w.ID(),
			"decodes_emitted", w.decoded.Load(),
		)
		return nil
	case <-t.C:
		return fmt.Errorf("worker %s did not stop within %v", w.ID(), timeout)
	}
}

// Metrics implements types.DecodeWorker.
func (w *Worker) Metrics() types.WorkerMetrics {
	w.mu.Lock()
	last := w.lastSeen
	w.mu.Unlock()
	return types.WorkerMetrics{
		DecodesEmitted: w.decoded.Load(),
		SourceErrors:   w.errs.Load(),
		LastSeenAt:     last,
	}
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		batch, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, io.EOF) {
				slog.Info("decode stream ended", "worker_id", w.ID())
				return
			}
			w.errs.Add(1)
			slog.Warn("decode source error", "worker_id", w.ID(), "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(sourceRetryDelay):
			}
			continue
		}

		now := time.Now()
		w.mu.Lock()
		w.lastSeen = now
		w.mu.Unlock()

		for _, raw := range batch {
			if raw == "" {
				continue
			}
			ev := types.DecodedEvent{
				StreamID: w.ID(),
				Raw:      raw,
				Seq:      w.seq.Add(1),
				TraceID:  uuid.New().String(),
				At:       now,
			}
			select {
			case w.events <- ev:
				w.decoded.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}
}

var _ types.DecodeWorker = (*Worker)(nil)
