package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/feedback"
)

// WorkerHealthMetrics contains health metrics for one decode worker
type WorkerHealthMetrics struct {
	DecodesEmitted uint64    `json:"decodes_emitted"`
	SourceErrors   uint64    `json:"source_errors"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// HealthStatus represents the health state of the portal service
type HealthStatus struct {
	Status        string                         `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64                          `json:"uptime_seconds"`
	SessionState  string                         `json:"session_state"`
	Expected      int                            `json:"expected"`
	Found         int                            `json:"found"`
	AmbientMode   string                         `json:"ambient_mode"`
	AmbientLocked bool                           `json:"ambient_locked"`
	MQTTConnected bool                           `json:"mqtt_connected"`
	WorkersUp     int                            `json:"workers_up"`
	Workers       map[string]WorkerHealthMetrics `json:"workers,omitempty"`
}

// HealthCheck returns the current health status of the service
func (p *Portal) HealthCheck() HealthStatus {
	st := p.session.Status()
	mode, lock := p.ambient.Snapshot()

	p.mu.RLock()
	defer p.mu.RUnlock()

	status := HealthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(p.started).Seconds()),
		SessionState:  st.State,
		Expected:      st.Expected,
		Found:         st.Found,
		AmbientMode:   mode.String(),
		AmbientLocked: lock == feedback.Locked,
		Workers:       make(map[string]WorkerHealthMetrics),
	}

	if p.emitter != nil {
		status.MQTTConnected = p.emitter.Stats().Connected
	}

	status.WorkersUp = len(p.workers)
	for _, w := range p.workers {
		m := w.Metrics()
		status.Workers[w.ID()] = WorkerHealthMetrics{
			DecodesEmitted: m.DecodesEmitted,
			SourceErrors:   m.SourceErrors,
			LastSeenAt:     m.LastSeenAt,
		}
	}

	// Determine overall health status
	if !p.isRunning {
		status.Status = "unhealthy"
	} else if p.emitter != nil && !status.MQTTConnected {
		status.Status = "degraded"
	}

	return status
}

// LivenessHandler handles /health endpoint (simple liveness check)
// Returns 200 if the service process is alive
func (p *Portal) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(p.started).Seconds()),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ReadinessHandler handles /readiness endpoint (detailed readiness check)
func (p *Portal) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := p.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// MetricsHandler handles /metrics endpoint in Prometheus text format
func (p *Portal) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	st := p.session.Status()
	orderCount, err := p.orders.Count()
	if err != nil {
		slog.Error("failed to count orders", "error", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	instance := p.cfg.InstanceID
	var b strings.Builder
	fmt.Fprintf(&b, "portal_uptime_seconds{instance=%q} %d\n",
		instance, int64(time.Since(p.started).Seconds()))
	fmt.Fprintf(&b, "portal_orders_recorded{instance=%q} %d\n", instance, orderCount)
	fmt.Fprintf(&b, "portal_codes_expected{instance=%q} %d\n", instance, st.Expected)
	fmt.Fprintf(&b, "portal_codes_found{instance=%q} %d\n", instance, st.Found)

	if p.poller != nil {
		ps := p.poller.Stats()
		fmt.Fprintf(&b, "portal_proximity_cycles{instance=%q} %d\n", instance, ps.Cycles)
		fmt.Fprintf(&b, "portal_proximity_dropped_updates{instance=%q} %d\n", instance, ps.DroppedUpdates)
	}
	for _, wk := range p.workers {
		m := wk.Metrics()
		fmt.Fprintf(&b, "portal_decodes_emitted{instance=%q,stream=%q} %d\n", instance, wk.ID(), m.DecodesEmitted)
		fmt.Fprintf(&b, "portal_source_errors{instance=%q,stream=%q} %d\n", instance, wk.ID(), m.SourceErrors)
	}
	if p.emitter != nil {
		es := p.emitter.Stats()
		var published uint64
		for _, n := range es.Published {
			published += n
		}
		fmt.Fprintf(&b, "portal_events_published{instance=%q} %d\n", instance, published)
		fmt.Fprintf(&b, "portal_event_errors{instance=%q} %d\n", instance, es.Errors)
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.String()))
}

// OrdersHandler handles /orders endpoint, serving the completed-order log
func (p *Portal) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	orders, err := p.orders.All()
	if err != nil {
		slog.Error("failed to read order log", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "order log unavailable"})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

// StartHealthServer starts the HTTP health check server on the given port
// This runs in a separate goroutine and does not block
func (p *Portal) StartHealthServer(port string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", p.LivenessHandler)
	mux.HandleFunc("/readiness", p.ReadinessHandler)
	mux.HandleFunc("/metrics", p.MetricsHandler)
	mux.HandleFunc("/orders", p.OrdersHandler)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server",
		"port", port,
		"endpoints", []string{"/health", "/readiness", "/metrics", "/orders"},
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}
