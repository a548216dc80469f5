// Package core wires the portal together: manifest watcher, proximity gate,
// decode fan-in, session state machine, order log, and the MQTT surfaces.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/config"
	"github.com/neyoyoyminoy/palletPortal/internal/control"
	"github.com/neyoyoyminoy/palletPortal/internal/emitter"
	"github.com/neyoyoyminoy/palletPortal/internal/feedback"
	"github.com/neyoyoyminoy/palletPortal/internal/orderlog"
	"github.com/neyoyoyminoy/palletPortal/internal/proximity"
	"github.com/neyoyoyminoy/palletPortal/internal/session"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
	"github.com/neyoyoyminoy/palletPortal/internal/usbwatch"
)

// Portal is the main service orchestrator
type Portal struct {
	cfg *config.Config

	// Core components
	watcher        *usbwatch.Watcher
	session        *session.Session
	ambient        *feedback.Controller
	orders         orderlog.Log
	ordersDB       *sql.DB
	sink           session.EventSink
	emitter        *emitter.MQTTEmitter
	controlHandler *control.Handler

	// Hardware providers, simulated unless an embedder links real drivers
	sensors SensorProvider
	sources SourceProvider

	decodeCh chan types.DecodedEvent

	// Lifecycle management
	started   time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	cancelCtx context.CancelFunc // For MQTT shutdown command

	// Coordinator-owned state, guarded for status snapshots
	poller     *proximity.Poller
	workers    []types.DecodeWorker
	activePath string
}

// NewPortal creates a new portal service instance
func NewPortal(configPath string) (*Portal, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"station", cfg.Station,
	)

	p := &Portal{
		cfg:      cfg,
		ambient:  feedback.New(&feedback.LogDriver{}),
		decodeCh: make(chan types.DecodedEvent, 64),
	}

	if err := p.initOrderLog(); err != nil {
		return nil, err
	}
	p.initEventSink()

	p.session = session.New(cfg.Station, p.ambient, p.sink, p.orders)
	p.watcher = usbwatch.NewWatcher(usbwatch.Config{
		Roots:        cfg.Manifest.MountRoots,
		Filenames:    cfg.Manifest.Filenames,
		PollInterval: time.Duration(cfg.Manifest.PollMS) * time.Millisecond,
		MaxDepth:     cfg.Manifest.MaxDepth,
	})

	return p, nil
}

// initOrderLog opens the completed-order store: sqlite when a path is
// configured, in-memory otherwise.
func (p *Portal) initOrderLog() error {
	if p.cfg.Orders.DBPath == "" {
		p.orders = orderlog.NewMemory()
		slog.Info("order log is in-memory only (no db_path configured)")
		return nil
	}

	db, err := orderlog.Open(p.cfg.Orders.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open order db: %w", err)
	}
	store, err := orderlog.NewStore(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize order db: %w", err)
	}

	p.ordersDB = db
	p.orders = store
	slog.Info("order log backed by sqlite", "path", p.cfg.Orders.DBPath)
	return nil
}

// initEventSink picks the event transport: MQTT when a broker is configured,
// the structured log otherwise.
func (p *Portal) initEventSink() {
	if p.cfg.MQTT.Broker != "" {
		p.emitter = emitter.NewMQTTEmitter(p.cfg)
		p.sink = p.emitter
		return
	}
	p.sink = emitter.NewLogSink()
	slog.Info("no mqtt broker configured, events go to the log")
}

// Run starts the portal service and blocks until context is cancelled
func (p *Portal) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	p.isRunning = true
	p.started = time.Now()
	p.mu.Unlock()

	// Create cancellable context for MQTT shutdown command
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.mu.Lock()
	p.cancelCtx = cancel
	p.mu.Unlock()

	slog.Info("portal service starting",
		"instance_id", p.cfg.InstanceID,
		"station", p.cfg.Station,
	)

	// Hardware providers fall back to simulation when nothing is linked
	if p.sensors == nil {
		if !p.cfg.Proximity.Simulate {
			slog.Warn("no rangefinder driver linked, using simulated sensors")
		}
		p.sensors = p.simSensors
	}
	if p.sources == nil {
		if !p.cfg.Scanner.Simulate {
			slog.Warn("no camera decode pipeline linked, using simulated sources")
		}
		p.sources = p.simSources
	}

	// Connect MQTT and the control plane when a broker is configured
	if p.emitter != nil {
		if err := p.emitter.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect mqtt: %w", err)
		}

		p.controlHandler = control.NewHandler(p.cfg, p.emitter.Client, control.CommandCallbacks{
			OnGetStatus: p.GetStatus,
			OnGetOrders: p.orders.All,
			OnShutdown:  p.shutdownViaControl,
		})
		if err := p.controlHandler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
	}

	if err := p.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start usb watcher: %w", err)
	}

	p.wg.Add(1)
	go p.coordinate(ctx)

	slog.Info("portal service running",
		"trigger_in", p.cfg.Proximity.TriggerIn,
		"streams", p.cfg.Scanner.Streams,
	)

	// Wait for context cancellation
	<-ctx.Done()

	slog.Info("portal service run loop exiting")
	return nil
}

// Shutdown performs graceful shutdown of all components
func (p *Portal) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	slog.Info("shutting down portal service")

	// Shutdown sequence (order is important!):
	// 1. Stop decode workers FIRST (they feed the coordinator)
	p.stopScanWorkers()

	// 2. Stop the proximity poller
	p.stopPoller()

	// 3. Stop manifest discovery
	if p.watcher != nil {
		slog.Info("stopping usb watcher")
		if err := p.watcher.Stop(); err != nil {
			slog.Error("failed to stop usb watcher", "error", err)
		}
	}

	// 4. Stop control plane
	if p.controlHandler != nil {
		slog.Info("stopping control handler")
		if err := p.controlHandler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	// 5. Wait for the coordinator to finish (without holding the lock)
	slog.Info("waiting for goroutines to finish")
	p.wg.Wait()
	slog.Info("all goroutines finished")

	// 6. Disconnect MQTT
	if p.emitter != nil {
		if err := p.emitter.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	// 7. Close the order store
	if p.ordersDB != nil {
		if err := p.ordersDB.Close(); err != nil {
			slog.Error("failed to close order db", "error", err)
		}
	}

	p.mu.Lock()
	uptime := time.Since(p.started)
	p.isRunning = false
	p.mu.Unlock()

	slog.Info("portal service shutdown complete",
		"uptime", uptime,
	)

	return nil
}

// shutdownViaControl initiates graceful shutdown via MQTT control command
func (p *Portal) shutdownViaControl() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.isRunning {
		return fmt.Errorf("service not running")
	}

	if p.cancelCtx == nil {
		return fmt.Errorf("shutdown not available (no cancel context)")
	}

	// Cancelling the run context makes Run() exit; main handles the
	// graceful shutdown sequence from there.
	p.cancelCtx()
	return nil
}

// GetStatus returns the current status of the service
func (p *Portal) GetStatus() map[string]interface{} {
	st := p.session.Status()
	mode, lock := p.ambient.Snapshot()
	orderCount, err := p.orders.Count()
	if err != nil {
		slog.Error("failed to count orders", "error", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	status := map[string]interface{}{
		"instance_id": p.cfg.InstanceID,
		"station":     p.cfg.Station,
		"uptime_s":    time.Since(p.started).Seconds(),
		"running":     p.isRunning,
		"session": map[string]interface{}{
			"state":    st.State,
			"source":   st.Source,
			"expected": st.Expected,
			"found":    st.Found,
		},
		"ambient": map[string]interface{}{
			"mode":   mode.String(),
			"locked": lock == feedback.Locked,
		},
		"orders_recorded": orderCount,
	}

	if p.poller != nil {
		status["proximity"] = p.poller.Stats()
	}
	if len(p.workers) > 0 {
		workerStats := make([]map[string]interface{}, 0, len(p.workers))
		for _, w := range p.workers {
			m := w.Metrics()
			workerStats = append(workerStats, map[string]interface{}{
				"id":              w.ID(),
				"decodes_emitted": m.DecodesEmitted,
				"source_errors":   m.SourceErrors,
			})
		}
		status["workers"] = workerStats
	}
	if p.emitter != nil {
		status["mqtt_connected"] = p.emitter.Stats().Connected
	}

	return status
}

// ShutdownTimeout returns the configured graceful shutdown timeout
// Returns default of 5 seconds if not configured
func (p *Portal) ShutdownTimeout() time.Duration {
	timeout := time.Duration(p.cfg.ShutdownTimeoutS) * time.Second
	if timeout == 0 {
		return 5 * time.Second // Default
	}
	return timeout
}
