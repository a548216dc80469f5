package core

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neyoyoyminoy/palletPortal/internal/decoder"
	"github.com/neyoyoyminoy/palletPortal/internal/proximity"
	"github.com/neyoyoyminoy/palletPortal/internal/session"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
	"github.com/neyoyoyminoy/palletPortal/internal/usbwatch"
)

// coordinate is the single goroutine that drives the session state machine.
// Every transition funnels through this select, so watcher finds, gate
// decisions, and decode results can never race each other. The proximity
// channels are nil between armings; a nil channel simply never fires.
func (p *Portal) coordinate(ctx context.Context) {
	defer p.wg.Done()

	slog.Info("coordinator started")

	var (
		readyCh   <-chan proximity.Decision
		updatesCh <-chan proximity.Update
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("coordinator stopping")
			return

		case ev, ok := <-p.watcher.Events():
			if !ok {
				slog.Info("watcher channel closed")
				return
			}
			switch ev.Kind {
			case usbwatch.EventFound:
				if p.onManifestFound(ctx, ev) {
					readyCh = p.pollerReady()
					updatesCh = p.pollerUpdates()
				}
			case usbwatch.EventRemoved:
				p.onSourceRemoved(ev.Path)
				readyCh, updatesCh = nil, nil
			}

		case dec := <-readyCh:
			readyCh, updatesCh = nil, nil
			p.onProximityReady(ctx, dec)

		case u := <-updatesCh:
			slog.Debug("pallet approaching", "fused_in", u.FusedIn)

		case ev := <-p.decodeCh:
			p.onDecode(ev)
		}
	}
}

// onManifestFound arms the session with a discovered manifest and starts the
// proximity poller. A find while a session is active is ignored; tracking is
// re-pointed at the armed source so its removal still resolves the session.
func (p *Portal) onManifestFound(ctx context.Context, ev usbwatch.Event) bool {
	if !p.session.Arm(ev.Manifest) {
		p.mu.RLock()
		active := p.activePath
		p.mu.RUnlock()
		p.watcher.Track(active)
		return false
	}

	p.mu.Lock()
	p.activePath = ev.Path
	p.mu.Unlock()

	p.session.BeginProximityWait()
	return p.startPoller(ctx)
}

// onProximityReady moves the session into scanning and brings up one decode
// worker per stream. Decisions that lost a race with a removal are dropped
// by the session.
func (p *Portal) onProximityReady(ctx context.Context, dec proximity.Decision) {
	p.stopPoller()

	if !p.session.ProximityReady(dec) {
		return
	}
	p.startScanWorkers(ctx)
}

// onSourceRemoved resolves the session when its manifest source disappears.
// Removal after completion is the operator's acknowledgment; removal at any
// earlier point abandons the pass without a record.
func (p *Portal) onSourceRemoved(path string) {
	p.stopScanWorkers()
	p.stopPoller()

	p.mu.Lock()
	p.activePath = ""
	p.mu.Unlock()

	if p.session.State() == session.StateComplete {
		p.session.Reset()
		return
	}
	p.session.Cancel("manifest source removed")
}

// onDecode folds one decoded value into the session and logs the outcome.
// The session already emits progress and completion events; this is where
// stream attribution and the miss/duplicate noise land.
func (p *Portal) onDecode(ev types.DecodedEvent) {
	out := p.session.HandleDecode(ev)

	switch {
	case out.Completed:
		p.stopScanWorkers()
	case out.NewMatch:
		slog.Debug("code verified",
			"code", out.Code,
			"stream_id", ev.StreamID,
			"found", out.Found,
			"expected", out.Expected,
		)
	case out.AlreadyFound:
		slog.Debug("duplicate decode ignored", "code", out.Code, "stream_id", ev.StreamID)
	case out.NotOnManifest:
		slog.Info("decoded value not on manifest", "raw", ev.Raw, "stream_id", ev.StreamID)
	}
}

// startPoller builds a fresh gate and poller for this arming.
func (p *Portal) startPoller(ctx context.Context) bool {
	left, right := p.sensors()
	gate := proximity.NewGate(proximity.Config{
		HardMinIn: p.cfg.Proximity.HardMinIn,
		MaxIn:     p.cfg.Proximity.MaxIn,
		TriggerIn: p.cfg.Proximity.TriggerIn,
	})
	poller := proximity.NewPoller(left, right, gate, proximity.PollerConfig{
		ReadTimeout: time.Duration(p.cfg.Proximity.ReadTimeoutMS) * time.Millisecond,
		SettleDelay: time.Duration(p.cfg.Proximity.SettleMS) * time.Millisecond,
		CyclePause:  time.Duration(p.cfg.Proximity.CycleMS) * time.Millisecond,
	})

	if err := poller.Start(ctx); err != nil {
		slog.Error("failed to start proximity poller", "error", err)
		return false
	}

	p.mu.Lock()
	p.poller = poller
	p.mu.Unlock()
	return true
}

func (p *Portal) stopPoller() {
	p.mu.Lock()
	poller := p.poller
	p.poller = nil
	p.mu.Unlock()

	if poller == nil {
		return
	}
	if err := poller.Stop(); err != nil {
		slog.Error("failed to stop proximity poller", "error", err)
	}
}

func (p *Portal) pollerReady() <-chan proximity.Decision {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.poller == nil {
		return nil
	}
	return p.poller.Ready()
}

func (p *Portal) pollerUpdates() <-chan proximity.Update {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.poller == nil {
		return nil
	}
	return p.poller.Updates()
}

// startScanWorkers brings up one decode worker per configured stream.
func (p *Portal) startScanWorkers(ctx context.Context) {
	m := p.session.Manifest()
	if m == nil {
		return
	}

	var workers []types.DecodeWorker
	for _, src := range p.sources(m) {
		w := decoder.NewWorker(src, p.decodeCh)
		if err := w.Start(ctx); err != nil {
			slog.Error("failed to start decode worker", "worker_id", w.ID(), "error", err)
			continue
		}
		workers = append(workers, w)
	}

	p.mu.Lock()
	p.workers = workers
	p.mu.Unlock()

	slog.Info("decode workers started", "count", len(workers))
}

// stopScanWorkers stops every decode worker concurrently, each bounded by
// the configured stop timeout. A worker that refuses to die is abandoned
// with a warning; teardown proceeds regardless.
func (p *Portal) stopScanWorkers() {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.mu.Unlock()

	if len(workers) == 0 {
		return
	}

	timeout := time.Duration(p.cfg.Scanner.StopTimeoutMS) * time.Millisecond

	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Stop(timeout)
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("decode worker stop incomplete", "error", err)
	}
}
