// Package feedback drives the archway's ambient light feedback.
package feedback

import (
	"log/slog"
	"sync"
)

// Mode is a steady ambient feedback mode.
type Mode int

const (
	// ModeStandby is the idle animation shown while waiting for a manifest
	ModeStandby Mode = iota
	// ModeArmed shows a manifest is loaded and the portal awaits a pallet
	ModeArmed
	// ModeScanning shows an active scan pass
	ModeScanning
	// ModeComplete is the locked all-verified state
	ModeComplete
)

// String returns the mode name used in logs and events.
func (m Mode) String() string {
	switch m {
	case ModeStandby:
		return "standby"
	case ModeArmed:
		return "armed"
	case ModeScanning:
		return "scanning"
	case ModeComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// LockState says whether mode writes are currently accepted.
type LockState int

const (
	// Normal accepts writes, last writer wins
	Normal LockState = iota
	// Locked rejects every write until Reset
	Locked
)

// Driver renders feedback on the actual light hardware.
type Driver interface {
	// Render displays a steady mode
	Render(mode Mode)
	// Flash plays the one-shot first-match pulse over the current mode
	Flash()
}

// Controller is the single owner of the ambient feedback state. Writers race
// freely and the last one wins, with one exception: ModeComplete locks the
// controller and every later write is rejected until Reset. The completion
// state stays visible no matter what the teardown path tries to render.
type Controller struct {
	driver Driver

	mu     sync.Mutex
	mode   Mode
	lock   LockState
	reason string
}

// New creates a controller in standby and renders it.
func New(driver Driver) *Controller {
	c := &Controller{driver: driver, mode: ModeStandby}
	driver.Render(ModeStandby)
	return c
}

// Set switches the steady mode. It reports false when the write was
// rejected by a completion lock. Setting ModeComplete engages the lock.
func (c *Controller) Set(mode Mode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lock == Locked {
		slog.Debug("ambient write rejected", "mode", mode.String(), "locked_by", c.reason)
		return false
	}
	c.mode = mode
	if mode == ModeComplete {
		c.lock = Locked
		c.reason = "completion"
	}
	c.driver.Render(mode)
	return true
}

// Pulse plays the one-shot first-match flash without changing the steady
// mode. Rejected while locked.
func (c *Controller) Pulse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lock == Locked {
		return false
	}
	c.driver.Flash()
	return true
}

// Reset clears any lock and returns to standby. Only session teardown
// calls this.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lock = Normal
	c.reason = ""
	c.mode = ModeStandby
	c.driver.Render(ModeStandby)
}

// Snapshot returns the current mode and lock state.
func (c *Controller) Snapshot() (Mode, LockState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode, c.lock
}

// LogDriver renders feedback as log lines; it stands in when no light
// hardware is attached.
type LogDriver struct{}

// Render implements Driver.
func (LogDriver) Render(mode Mode) {
	slog.Info("ambient mode", "mode", mode.String())
}

// Flash implements Driver.
func (LogDriver) Flash() {
	slog.Info("ambient pulse", "pulse", "first_match")
}

var _ Driver = LogDriver{}
