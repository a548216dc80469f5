package proximity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// PollerConfig holds the read cadence.
type PollerConfig struct {
	// ReadTimeout bounds a single sensor read (echo edge wait)
	ReadTimeout time.Duration
	// SettleDelay separates the two sensor reads to avoid ultrasonic crosstalk
	SettleDelay time.Duration
	// CyclePause is the idle time between reading cycles
	CyclePause time.Duration
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 50 * time.Millisecond
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 100 * time.Millisecond
	}
	if c.CyclePause == 0 {
		c.CyclePause = 3 * time.Second
	}
	return c
}

// Update is one observed distance cycle, for telemetry consumers. Updates
// are lossy: slow consumers drop them, they never stall the read loop.
type Update struct {
	// FusedIn is the fused distance in inches
	FusedIn float64
	// At is when the cycle completed
	At time.Time
}

// PollerStats is a snapshot of poller counters.
type PollerStats struct {
	Cycles         uint64 `json:"cycles"`
	DroppedUpdates uint64 `json:"dropped_updates"`
	IsRunning      bool   `json:"is_running"`
}

// Poller drives both sensors through one gate: read A, settle, read B,
// evaluate. It emits at most one ready decision per arming, then its loop
// exits. A poller is single-use; every arming gets a fresh one.
type Poller struct {
	a, b SensorDriver
	gate *Gate
	cfg  PollerConfig

	readyCh   chan Decision
	updatesCh chan Update
	stopCh    chan struct{}
	wg        sync.WaitGroup

	cycles  atomic.Uint64
	dropped atomic.Uint64

	mu        sync.Mutex
	isRunning bool
}

// NewPoller creates a poller over two sensor drivers. Either driver may be
// nil; the gate then works from the remaining one.
func NewPoller(a, b SensorDriver, gate *Gate, cfg PollerConfig) *Poller {
	return &Poller{
		a:         a,
		b:         b,
		gate:      gate,
		cfg:       cfg.withDefaults(),
		readyCh:   make(chan Decision, 1),
		updatesCh: make(chan Update, 8),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the read loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.isRunning = true
	p.mu.Unlock()

	slog.Info("proximity poller starting",
		"read_timeout", p.cfg.ReadTimeout,
		"settle_delay", p.cfg.SettleDelay,
		"cycle_pause", p.cfg.CyclePause,
	)

	p.wg.Add(1)
	go p.run(ctx)

	return nil
}

// Ready returns the channel that carries the single gate decision.
func (p *Poller) Ready() <-chan Decision {
	return p.readyCh
}

// Updates returns the lossy distance telemetry channel.
func (p *Poller) Updates() <-chan Update {
	return p.updatesCh
}

// Stop ends the read loop and waits for it to exit.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	slog.Info("proximity poller stopped",
		"cycles", p.cycles.Load(),
		"dropped_updates", p.dropped.Load(),
	)
	return nil
}

// Stats returns a snapshot of poller counters.
func (p *Poller) Stats() PollerStats {
	p.mu.Lock()
	running := p.isRunning
	p.mu.Unlock()
	return PollerStats{
		Cycles:         p.cycles.Load(),
		DroppedUpdates: p.dropped.Load(),
		IsRunning:      running,
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		ra := p.read(ctx, p.a)
		if !p.sleep(ctx, p.cfg.SettleDelay) {
			return
		}
		rb := p.read(ctx, p.b)
		p.cycles.Add(1)

		dec := p.gate.Update(ra, rb)
		if dec.HasReading {
			p.publishUpdate(Update{FusedIn: dec.FusedIn, At: time.Now()})
		} else {
			slog.Debug("no valid proximity reading this cycle")
		}

		if dec.Ready {
			slog.Info("proximity gate fired", "fused_in", dec.FusedIn)
			select {
			case p.readyCh <- dec:
			case <-ctx.Done():
			case <-p.stopCh:
			}
			return
		}

		if !p.sleep(ctx, p.cfg.CyclePause) {
			return
		}
	}
}

// read takes one bounded measurement; any failure counts as no reading.
func (p *Poller) read(ctx context.Context, s SensorDriver) *types.ProximityReading {
	if s == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, p.cfg.ReadTimeout)
	defer cancel()

	d, err := s.ReadDistance(rctx)
	if err != nil {
		slog.Debug("sensor read failed", "sensor", s.ID(), "error", err)
		return nil
	}
	return &types.ProximityReading{SensorID: s.ID(), DistanceIn: d, At: time.Now()}
}

func (p *Poller) publishUpdate(u Update) {
	select {
	case p.updatesCh <- u:
	default:
		p.dropped.Add(1)
	}
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-p.stopCh:
		return false
	case <-t.C:
		return true
	}
}
