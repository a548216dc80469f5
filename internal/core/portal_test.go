package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/decoder"
	"github.com/neyoyoyminoy/palletPortal/internal/feedback"
	"github.com/neyoyoyminoy/palletPortal/internal/proximity"
	"github.com/neyoyoyminoy/palletPortal/internal/session"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

const testConfigTemplate = `instance_id: portal-test
station: Dock 7
shutdown_timeout_s: 2
manifest:
  mount_roots: ["%s"]
  poll_ms: 5
proximity:
  simulate: true
  read_timeout_ms: 20
  settle_ms: 1
  cycle_ms: 5
scanner:
  streams: 2
  stop_timeout_ms: 500
  simulate: true
`

// startPortal builds a portal watching mountRoot and runs it until the test
// ends. configure may swap in scripted hardware before Run.
func startPortal(t *testing.T, mountRoot string, configure func(*Portal)) *Portal {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "portal.yaml")
	raw := fmt.Sprintf(testConfigTemplate, mountRoot)
	if err := os.WriteFile(cfgPath, []byte(raw), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	p, err := NewPortal(cfgPath)
	if err != nil {
		t.Fatalf("NewPortal: %v", err)
	}
	if configure != nil {
		configure(p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(3 * time.Second):
			t.Error("run did not exit after cancel")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := p.Shutdown(shutdownCtx); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
	})

	return p
}

// insertStick simulates plugging in a USB drive carrying a manifest.
func insertStick(t *testing.T, root, name, content string) string {
	t.Helper()
	stick := filepath.Join(root, name)
	if err := os.MkdirAll(stick, 0o755); err != nil {
		t.Fatalf("failed to create stick dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stick, "barcodes.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return stick
}

func waitForState(t *testing.T, p *Portal, want session.State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.session.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached %s, still %s", want, p.session.State())
}

func waitForFound(t *testing.T, p *Portal, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.session.Status().Found >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never saw %d verified codes, still %d", want, p.session.Status().Found)
}

// quickApproach is a two-cycle pallet approach with one blocked sensor.
func quickApproach() (proximity.SensorDriver, proximity.SensorDriver) {
	return proximity.NewSimSensor("left", []float64{40, 12}),
		proximity.NewSimSensor("right", nil)
}

func TestPortalEndToEnd(t *testing.T) {
	root := t.TempDir()

	p := startPortal(t, root, func(p *Portal) {
		p.UseSensors(quickApproach)
		p.UseSources(func(m *types.ShipmentManifest) []decoder.Source {
			// Case-folded match, one stray, one cross-stream duplicate.
			return []decoder.Source{
				decoder.NewMockSource("cam0", time.Millisecond,
					[]string{"a1"}, []string{"zzz"}, []string{"A3"}),
				decoder.NewMockSource("cam1", time.Millisecond,
					[]string{"A1"}, []string{"A2"}),
			}
		})
	})

	insertStick(t, root, "usb0", "A1, A2, A3\n")

	waitForState(t, p, session.StateComplete, 3*time.Second)

	orders, err := p.orders.All()
	if err != nil {
		t.Fatalf("failed to read order log: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("want 1 completed order, got %d", len(orders))
	}
	rec := orders[0]
	if rec.Trailer != "usb0" {
		t.Errorf("trailer = %q, want usb0", rec.Trailer)
	}
	if rec.Station != "Dock 7" {
		t.Errorf("station = %q, want Dock 7", rec.Station)
	}
	if rec.Scanned != 3 {
		t.Errorf("scanned = %d, want 3", rec.Scanned)
	}
	if rec.End.Before(rec.Start) {
		t.Errorf("record ends before it starts: %v .. %v", rec.Start, rec.End)
	}

	// Completion holds the archway light until the stick is pulled.
	mode, lock := p.ambient.Snapshot()
	if mode != feedback.ModeComplete || lock != feedback.Locked {
		t.Errorf("ambient = %s/%v, want locked complete", mode, lock)
	}

	// The order is visible on the http surface.
	rr := httptest.NewRecorder()
	p.OrdersHandler(rr, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("orders endpoint returned %d", rr.Code)
	}
	var body struct {
		Orders []types.CompletedOrderRecord `json:"orders"`
		Count  int                          `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode orders response: %v", err)
	}
	if body.Count != 1 || len(body.Orders) != 1 || body.Orders[0].Trailer != "usb0" {
		t.Errorf("unexpected orders response: %+v", body)
	}

	rr = httptest.NewRecorder()
	p.MetricsHandler(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned %d", rr.Code)
	}
	metrics := rr.Body.String()
	if !strings.Contains(metrics, `portal_orders_recorded{instance="portal-test"} 1`) {
		t.Errorf("metrics missing recorded order count:\n%s", metrics)
	}
	if !strings.Contains(metrics, `portal_codes_found{instance="portal-test"} 3`) {
		t.Errorf("metrics missing found count:\n%s", metrics)
	}

	// Pulling the stick acknowledges the completed order.
	if err := os.RemoveAll(filepath.Join(root, "usb0")); err != nil {
		t.Fatalf("failed to remove stick: %v", err)
	}
	waitForState(t, p, session.StateIdle, 3*time.Second)

	mode, lock = p.ambient.Snapshot()
	if mode != feedback.ModeStandby || lock != feedback.Normal {
		t.Errorf("ambient after reset = %s/%v, want unlocked standby", mode, lock)
	}

	status := p.GetStatus()
	if got, ok := status["orders_recorded"].(int); !ok || got != 1 {
		t.Errorf("orders_recorded = %v, want 1", status["orders_recorded"])
	}
}

func TestPortalRemovalMidScanCancels(t *testing.T) {
	root := t.TempDir()

	p := startPortal(t, root, func(p *Portal) {
		p.UseSensors(quickApproach)
		p.UseSources(func(m *types.ShipmentManifest) []decoder.Source {
			// One decode then silence; the pass can never complete.
			return []decoder.Source{
				decoder.NewMockSource("cam0", time.Millisecond, []string{"B1"}),
			}
		})
	})

	insertStick(t, root, "usb1", "B1\nB2\nB3\n")

	waitForState(t, p, session.StateScanning, 3*time.Second)
	waitForFound(t, p, 1, 3*time.Second)

	if err := os.RemoveAll(filepath.Join(root, "usb1")); err != nil {
		t.Fatalf("failed to remove stick: %v", err)
	}
	waitForState(t, p, session.StateIdle, 3*time.Second)

	orders, err := p.orders.All()
	if err != nil {
		t.Fatalf("failed to read order log: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("cancelled pass must not be recorded, got %d orders", len(orders))
	}

	// Discovery resumes: a fresh stick arms a new session.
	insertStick(t, root, "usb2", "C1, C2\n")
	waitForState(t, p, session.StateScanning, 3*time.Second)

	st := p.session.Status()
	if st.Expected != 2 {
		t.Errorf("new session expects %d codes, want 2", st.Expected)
	}
	if filepath.Base(st.Source) != "usb2" {
		t.Errorf("new session source = %q, want usb2", st.Source)
	}
}

func TestPortalSimulatedRunCompletes(t *testing.T) {
	root := t.TempDir()

	// No hardware hooks at all: config-driven simulation end to end.
	p := startPortal(t, root, nil)

	insertStick(t, root, "usb0", "P100 P101 P102 P103\n")

	waitForState(t, p, session.StateComplete, 5*time.Second)

	orders, err := p.orders.All()
	if err != nil {
		t.Fatalf("failed to read order log: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("want 1 completed order, got %d", len(orders))
	}
	if orders[0].Scanned != 4 {
		t.Errorf("scanned = %d, want 4", orders[0].Scanned)
	}

	health := p.HealthCheck()
	if health.Status != "healthy" {
		t.Errorf("health = %q, want healthy", health.Status)
	}
	if health.SessionState != "complete" {
		t.Errorf("session state = %q, want complete", health.SessionState)
	}
}
