// Package proximity decides when a pallet is close enough to the archway to
// start scanning.
package proximity

import (
	"sync"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// Default thresholds for MB1040-class ultrasonic rangefinders, in inches.
const (
	DefaultHardMinIn = 6.0
	DefaultMaxIn     = 254.0
	DefaultTriggerIn = 13.0
)

// Config holds the gate thresholds, in inches.
type Config struct {
	// HardMinIn is the minimum reliable distance; readings below it are discarded
	HardMinIn float64
	// MaxIn is the maximum reliable distance; readings above it are discarded
	MaxIn float64
	// TriggerIn is the distance at or under which the gate fires
	TriggerIn float64
}

func (c Config) withDefaults() Config {
	if c.HardMinIn == 0 {
		c.HardMinIn = DefaultHardMinIn
	}
	if c.MaxIn == 0 {
		c.MaxIn = DefaultMaxIn
	}
	if c.TriggerIn == 0 {
		c.TriggerIn = DefaultTriggerIn
	}
	return c
}

// Decision is the outcome of evaluating one reading cycle.
type Decision struct {
	// Ready is true on the single cycle that fires the gate
	Ready bool
	// FusedIn is the average of the valid readings this cycle
	FusedIn float64
	// HasReading is false when no sensor produced a valid reading
	HasReading bool
}

// Gate fuses readings from up to two sensors and fires when either sensor
// individually reports at or under the trigger distance. Firing is one-shot:
// after it the gate stays spent until Rearm, no matter how long the pallet
// lingers in range.
type Gate struct {
	cfg Config

	mu    sync.Mutex
	fired bool
}

// NewGate creates a gate; zero thresholds take the package defaults.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg.withDefaults()}
}

// Update evaluates one cycle of readings. Nil readings and readings outside
// [HardMinIn, MaxIn] are treated as absent, never clamped.
func (g *Gate) Update(a, b *types.ProximityReading) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sum float64
	var n int
	trigger := false
	for _, r := range [2]*types.ProximityReading{a, b} {
		if r == nil || !g.inRange(r.DistanceIn) {
			continue
		}
		sum += r.DistanceIn
		n++
		if r.DistanceIn <= g.cfg.TriggerIn {
			trigger = true
		}
	}
	if n == 0 {
		return Decision{}
	}

	d := Decision{FusedIn: sum / float64(n), HasReading: true}
	if trigger && !g.fired {
		g.fired = true
		d.Ready = true
	}
	return d
}

// Fired reports whether the gate has fired since the last rearm.
func (g *Gate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}

// Rearm makes a spent gate able to fire again.
func (g *Gate) Rearm() {
	g.mu.Lock()
	g.fired = false
	g.mu.Unlock()
}

func (g *Gate) inRange(d float64) bool {
	return d >= g.cfg.HardMinIn && d <= g.cfg.MaxIn
}
