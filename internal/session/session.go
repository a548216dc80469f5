// Package session owns the scan lifecycle of one manifest: armed by a
// discovered manifest, triggered by proximity, fed by decode streams,
// resolved by completion or cancellation.
package session

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/fanin"
	"github.com/neyoyoyminoy/palletPortal/internal/feedback"
	"github.com/neyoyoyminoy/palletPortal/internal/manifest"
	"github.com/neyoyoyminoy/palletPortal/internal/orderlog"
	"github.com/neyoyoyminoy/palletPortal/internal/proximity"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// Session is the manifest-scoped state machine at the center of the portal.
// All transitions are driven by the coordinator goroutine; the mutex guards
// snapshot reads from the health and control surfaces.
type Session struct {
	station string
	ambient *feedback.Controller
	events  EventSink
	orders  orderlog.Log

	mu        sync.RWMutex
	state     State
	manifest  *types.ShipmentManifest
	matcher   *manifest.Matcher
	acc       *fanin.FanIn
	scanStart time.Time
}

// New creates an idle session slot.
func New(station string, ambient *feedback.Controller, events EventSink, orders orderlog.Log) *Session {
	return &Session{
		station: station,
		ambient: ambient,
		events:  events,
		orders:  orders,
	}
}

// Arm loads a manifest into an idle session. Arming anything but an idle
// session is a no-op: manifest changes mid-session are ignored until the
// active session resolves.
func (s *Session) Arm(m *types.ShipmentManifest) bool {
	if m == nil || m.Len() == 0 {
		slog.Warn("refusing to arm with empty manifest")
		return false
	}

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		slog.Info("manifest ignored, session already active",
			"state", state.String(),
			"source", m.Source,
		)
		return false
	}
	s.state = StateArmed
	s.manifest = m
	s.matcher = manifest.NewMatcher(m)
	s.acc = nil
	s.scanStart = time.Time{}
	s.mu.Unlock()

	s.ambient.Set(feedback.ModeArmed)
	s.events.ManifestLoaded(m)

	slog.Info("manifest armed", "source", m.Source, "codes", m.Len())
	return true
}

// BeginProximityWait moves an armed session into sensing.
func (s *Session) BeginProximityWait() bool {
	s.mu.Lock()
	if s.state != StateArmed {
		state := s.state
		s.mu.Unlock()
		slog.Warn("cannot await proximity", "state", state.String())
		return false
	}
	s.state = StateAwaitingProximity
	expected := s.manifest.Len()
	s.mu.Unlock()

	slog.Info("awaiting proximity trigger", "expected", expected)
	return true
}

// ProximityReady moves the session into scanning when the gate fires. Late
// decisions arriving after a cancellation are dropped.
func (s *Session) ProximityReady(dec proximity.Decision) bool {
	s.mu.Lock()
	if s.state != StateAwaitingProximity {
		state := s.state
		s.mu.Unlock()
		slog.Debug("proximity decision dropped", "state", state.String())
		return false
	}
	s.state = StateScanning
	s.acc = fanin.New(s.matcher)
	s.scanStart = time.Now()
	expected := s.matcher.Expected()
	s.mu.Unlock()

	s.ambient.Set(feedback.ModeScanning)
	s.events.ScanStarted(dec.FusedIn)

	slog.Info("scan pass started", "fused_in", dec.FusedIn, "expected", expected)
	return true
}

// HandleDecode folds one decoded value into the running scan and plays the
// resulting side effects: first-match pulse, progress events, completion.
// Decodes outside a scan pass return the zero outcome and are dropped.
func (s *Session) HandleDecode(ev types.DecodedEvent) fanin.Outcome {
	s.mu.RLock()
	if s.state != StateScanning || s.acc == nil {
		s.mu.RUnlock()
		return fanin.Outcome{}
	}
	acc := s.acc
	s.mu.RUnlock()

	out := acc.Accept(ev)

	if out.NewMatch {
		if out.Found == 1 {
			s.ambient.Pulse()
		}
		s.events.ScanProgress(out.Code, out.Found, out.Expected)
	}
	if out.Completed {
		s.complete(out)
	}
	return out
}

// complete transitions Scanning into Complete and records the order. The
// ambient lock engages here so nothing can repaint the archway until reset.
func (s *Session) complete(out fanin.Outcome) {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	s.state = StateComplete
	rec := types.CompletedOrderRecord{
		Trailer: trailerFromSource(s.manifest.Source),
		Station: s.station,
		Start:   s.scanStart,
		End:     time.Now(),
		Scanned: out.Found,
	}
	s.mu.Unlock()

	s.ambient.Set(feedback.ModeComplete)
	if err := s.orders.Append(rec); err != nil {
		slog.Error("failed to append completed order", "error", err)
	}
	s.events.OrderCompleted(rec)

	slog.Info("order complete",
		"trailer", rec.Trailer,
		"scanned", rec.Scanned,
		"duration", rec.Duration().Round(time.Millisecond),
	)
}

// Cancel aborts an in-flight session without recording anything. The found
// set is discarded and the ambient lock, if any, is cleared.
func (s *Session) Cancel(reason string) bool {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return false
	}
	from := s.state
	s.resetLocked()
	s.mu.Unlock()

	s.ambient.Reset()
	s.events.SessionReset(reason)

	slog.Info("session cancelled", "from", from.String(), "reason", reason)
	return true
}

// Reset acknowledges a completed order and returns to idle. It is the only
// legal exit from Complete.
func (s *Session) Reset() bool {
	s.mu.Lock()
	if s.state != StateComplete {
		state := s.state
		s.mu.Unlock()
		slog.Warn("reset ignored", "state", state.String())
		return false
	}
	s.resetLocked()
	s.mu.Unlock()

	s.ambient.Reset()
	s.events.SessionReset("order complete")

	slog.Info("session reset, ready for next manifest")
	return true
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.manifest = nil
	s.matcher = nil
	s.acc = nil
	s.scanStart = time.Time{}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Manifest returns the active manifest, nil when idle.
func (s *Session) Manifest() *types.ShipmentManifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

// Status returns a snapshot for the health and control surfaces.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{State: s.state.String()}
	if s.manifest != nil {
		st.Source = s.manifest.Source
		st.Expected = s.manifest.Len()
	}
	if s.acc != nil {
		st.Found = s.acc.Found()
	}
	st.ScanStartedAt = s.scanStart
	return st
}

// FoundCodes returns the verified codes of the running or completed scan in
// manifest order.
func (s *Session) FoundCodes() []types.ManifestCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.acc == nil {
		return nil
	}
	return s.acc.FoundCodes()
}

func trailerFromSource(source string) string {
	if source == "" {
		return "unknown"
	}
	return filepath.Base(source)
}
