package emitter

import (
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// Event kinds, appended to the events topic.
const (
	KindManifestLoaded = "manifest_loaded"
	KindScanStarted    = "scan_started"
	KindScanProgress   = "scan_progress"
	KindOrderCompleted = "order_completed"
	KindSessionReset   = "session_reset"
)

// ManifestLoadedEvent announces a newly armed manifest.
type ManifestLoadedEvent struct {
	Source   string    `json:"source"`
	Codes    []string  `json:"codes"`
	Expected int       `json:"expected"`
	At       time.Time `json:"at"`
}

// ScanStartedEvent announces the proximity trigger.
type ScanStartedEvent struct {
	FusedIn float64   `json:"fused_in"`
	At      time.Time `json:"at"`
}

// ScanProgressEvent announces a newly verified code.
type ScanProgressEvent struct {
	Code     string    `json:"code"`
	Found    int       `json:"found"`
	Expected int       `json:"expected"`
	At       time.Time `json:"at"`
}

// OrderCompletedEvent announces a fully verified load.
type OrderCompletedEvent struct {
	types.CompletedOrderRecord
	DurationS float64   `json:"duration_s"`
	At        time.Time `json:"at"`
}

// SessionResetEvent announces the return to idle.
type SessionResetEvent struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}
