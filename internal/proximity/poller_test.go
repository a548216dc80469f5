package proximity

import (
	"context"
	"testing"
	"time"
)

func fastPollerConfig() PollerConfig {
	return PollerConfig{
		ReadTimeout: 20 * time.Millisecond,
		SettleDelay: time.Millisecond,
		CyclePause:  time.Millisecond,
	}
}

// TestPollerFiresReadyOnApproach scripts an approach on one sensor and
// verifies exactly one ready decision arrives, then the loop goes quiet.
func TestPollerFiresReadyOnApproach(t *testing.T) {
	a := NewSimSensor("ping0", []float64{30, 20, 12})
	b := NewSimSensor("ping1", nil) // never reads

	p := NewPoller(a, b, NewGate(Config{}), fastPollerConfig())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	select {
	case dec := <-p.Ready():
		if !dec.Ready {
			t.Fatalf("expected ready decision, got %+v", dec)
		}
		if dec.FusedIn != 12 {
			t.Errorf("expected fused 12 at trigger, got %v", dec.FusedIn)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ready decision")
	}

	// The loop exits after firing; no second decision may appear.
	select {
	case dec := <-p.Ready():
		t.Fatalf("unexpected second decision: %+v", dec)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestPollerEmitsUpdates verifies distance telemetry flows while the pallet
// is still out of trigger range.
func TestPollerEmitsUpdates(t *testing.T) {
	a := NewSimSensor("ping0", []float64{40})

	p := NewPoller(a, nil, NewGate(Config{}), fastPollerConfig())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	select {
	case u := <-p.Updates():
		if u.FusedIn != 40 {
			t.Errorf("expected update at 40 inches, got %v", u.FusedIn)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for distance update")
	}
}

// TestPollerToleratesDeadSensors verifies a poller with no readable sensor
// keeps cycling without firing and stops cleanly.
func TestPollerToleratesDeadSensors(t *testing.T) {
	a := NewSimSensor("ping0", []float64{-1})
	b := NewSimSensor("ping1", []float64{-1})

	p := NewPoller(a, b, NewGate(Config{}), fastPollerConfig())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	select {
	case dec := <-p.Ready():
		t.Fatalf("unexpected decision from dead sensors: %+v", dec)
	default:
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if stats := p.Stats(); stats.Cycles == 0 {
		t.Error("expected at least one cycle")
	}
}

// TestPollerStopIsIdempotent verifies double stop and restart guards.
func TestPollerStopIsIdempotent(t *testing.T) {
	p := NewPoller(NewSimSensor("ping0", []float64{100}), nil, NewGate(Config{}), fastPollerConfig())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("expected second Start to fail")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

// TestPollerCancelledContext verifies the read loop exits when the context
// is cancelled even without an explicit stop.
func TestPollerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(NewSimSensor("ping0", []float64{100}), nil, NewGate(Config{}), fastPollerConfig())

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit on context cancel")
	}
}
