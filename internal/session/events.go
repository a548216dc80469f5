package session

import (
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// State is the scan session lifecycle state.
type State int

const (
	// StateIdle means no manifest is loaded
	StateIdle State = iota
	// StateArmed means a manifest is loaded and sensing has not begun
	StateArmed
	// StateAwaitingProximity means the portal is watching for a pallet
	StateAwaitingProximity
	// StateScanning means decode streams are active and matches accumulate
	StateScanning
	// StateComplete means every expected code was verified; the session
	// holds here until the manifest source is removed
	StateComplete
)

// String returns the state name used in logs, events and status payloads.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateAwaitingProximity:
		return "awaiting_proximity"
	case StateScanning:
		return "scanning"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// EventSink receives the session's UI-facing events. Sinks are called from
// the coordinator goroutine after the session lock is released: a slow sink
// delays event delivery but can never wedge a transition.
type EventSink interface {
	// ManifestLoaded announces a newly armed manifest
	ManifestLoaded(m *types.ShipmentManifest)
	// ScanStarted announces the proximity trigger
	ScanStarted(fusedIn float64)
	// ScanProgress announces a newly verified code
	ScanProgress(code types.ManifestCode, found, expected int)
	// OrderCompleted announces a fully verified load
	OrderCompleted(rec types.CompletedOrderRecord)
	// SessionReset announces the return to idle
	SessionReset(reason string)
}

// Status is a read-only session snapshot for health and control surfaces.
type Status struct {
	State         string    `json:"state"`
	Source        string    `json:"source,omitempty"`
	Expected      int       `json:"expected"`
	Found         int       `json:"found"`
	ScanStartedAt time.Time `json:"scan_started_at"`
}
