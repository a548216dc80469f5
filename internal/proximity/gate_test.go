package proximity

import (
	"testing"
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

func reading(id string, in float64) *types.ProximityReading {
	return &types.ProximityReading{SensorID: id, DistanceIn: in, At: time.Now()}
}

// TestGateFiresExactlyOnce walks a pallet in and verifies the gate fires on
// the first in-range cycle and never again while it lingers.
func TestGateFiresExactlyOnce(t *testing.T) {
	g := NewGate(Config{HardMinIn: 6, MaxIn: 254, TriggerIn: 13})

	distances := []float64{20, 20, 10, 10, 10}
	fired := 0
	firedAt := -1
	for i, d := range distances {
		dec := g.Update(reading("ping0", d), nil)
		if !dec.HasReading {
			t.Fatalf("cycle %d: expected a reading", i)
		}
		if dec.Ready {
			fired++
			if firedAt < 0 {
				firedAt = i
			}
		}
	}

	if fired != 1 {
		t.Errorf("expected exactly 1 ready decision, got %d", fired)
	}
	if firedAt != 2 {
		t.Errorf("expected gate to fire at cycle 2, fired at %d", firedAt)
	}
	if !g.Fired() {
		t.Error("expected gate to report fired")
	}
}

// TestGateEitherSensorTriggers verifies a single close sensor fires the gate
// even when the fused average is outside the trigger distance.
func TestGateEitherSensorTriggers(t *testing.T) {
	g := NewGate(Config{})

	dec := g.Update(reading("ping0", 40), reading("ping1", 12))
	if !dec.Ready {
		t.Fatal("expected ready: one sensor is at 12 inches")
	}
	if dec.FusedIn != 26 {
		t.Errorf("expected fused distance 26, got %v", dec.FusedIn)
	}
}

// TestGateFusion verifies fused distance averages the valid readings and
// falls back to the single present one.
func TestGateFusion(t *testing.T) {
	g := NewGate(Config{})

	if dec := g.Update(reading("ping0", 20), reading("ping1", 30)); dec.FusedIn != 25 {
		t.Errorf("two sensors: expected fused 25, got %v", dec.FusedIn)
	}
	if dec := g.Update(nil, reading("ping1", 30)); dec.FusedIn != 30 || !dec.HasReading {
		t.Errorf("one sensor: expected fused 30, got %+v", dec)
	}
	if dec := g.Update(nil, nil); dec.HasReading || dec.Ready {
		t.Errorf("no sensors: expected no reading, got %+v", dec)
	}
}

// TestGateOutOfRangeExcluded verifies readings outside the reliable band are
// treated as absent, never clamped and never able to trigger.
func TestGateOutOfRangeExcluded(t *testing.T) {
	g := NewGate(Config{HardMinIn: 6, MaxIn: 254, TriggerIn: 13})

	// 3 is under the hard minimum: close, but not trustworthy.
	dec := g.Update(reading("ping0", 3), reading("ping1", 300))
	if dec.HasReading {
		t.Errorf("expected no valid reading, got %+v", dec)
	}
	if dec.Ready {
		t.Error("out-of-range reading must not fire the gate")
	}

	dec = g.Update(reading("ping0", 3), reading("ping1", 20))
	if !dec.HasReading || dec.FusedIn != 20 {
		t.Errorf("expected fused 20 from the one valid reading, got %+v", dec)
	}
}

// TestGateRearm verifies a spent gate fires again only after an explicit
// rearm.
func TestGateRearm(t *testing.T) {
	g := NewGate(Config{})

	if dec := g.Update(reading("ping0", 10), nil); !dec.Ready {
		t.Fatal("expected first trigger to fire")
	}
	if dec := g.Update(reading("ping0", 10), nil); dec.Ready {
		t.Fatal("spent gate must not fire again")
	}

	g.Rearm()
	if g.Fired() {
		t.Error("rearmed gate must not report fired")
	}
	if dec := g.Update(reading("ping0", 10), nil); !dec.Ready {
		t.Error("rearmed gate should fire")
	}
}
