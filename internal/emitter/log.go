package emitter

import (
	"log/slog"

	"github.com/neyoyoyminoy/palletPortal/internal/session"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// LogSink is the event sink used when no MQTT broker is configured. Events
// land in the structured log at debug level so kiosks without a UI bus still
// leave a trace.
type LogSink struct{}

// NewLogSink creates a log-only event sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// ManifestLoaded implements session.EventSink.
func (s *LogSink) ManifestLoaded(m *types.ShipmentManifest) {
	slog.Debug("event: manifest loaded", "source", m.Source, "expected", m.Len())
}

// ScanStarted implements session.EventSink.
func (s *LogSink) ScanStarted(fusedIn float64) {
	slog.Debug("event: scan started", "fused_in", fusedIn)
}

// ScanProgress implements session.EventSink.
func (s *LogSink) ScanProgress(code types.ManifestCode, found, expected int) {
	slog.Debug("event: scan progress", "code", code, "found", found, "expected", expected)
}

// OrderCompleted implements session.EventSink.
func (s *LogSink) OrderCompleted(rec types.CompletedOrderRecord) {
	slog.Debug("event: order completed", "trailer", rec.Trailer, "scanned", rec.Scanned)
}

// SessionReset implements session.EventSink.
func (s *LogSink) SessionReset(reason string) {
	slog.Debug("event: session reset", "reason", reason)
}

var _ session.EventSink = (*LogSink)(nil)
