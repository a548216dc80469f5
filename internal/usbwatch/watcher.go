// Package usbwatch discovers manifest files on removable media and tracks
// their removal.
package usbwatch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/manifest"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// EventKind discriminates watcher events.
type EventKind int

const (
	// EventFound reports a discovered and parsed manifest
	EventFound EventKind = iota
	// EventRemoved reports that the tracked manifest source disappeared
	EventRemoved
)

// Event is one watcher observation.
type Event struct {
	// Kind discriminates the event
	Kind EventKind
	// Manifest is the parsed manifest, set on EventFound
	Manifest *types.ShipmentManifest
	// Path is the manifest file path
	Path string
}

// Config holds the watcher knobs.
type Config struct {
	// Roots are the mount directories to scan; empty means guess at start
	Roots []string
	// Filenames are the accepted manifest names; empty means the defaults
	Filenames []string
	// PollInterval is the scan cadence
	PollInterval time.Duration
	// MaxDepth is how many directory levels under a root are scanned
	MaxDepth int
}

func (c Config) withDefaults() Config {
	if len(c.Filenames) == 0 {
		c.Filenames = DefaultFilenames
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 2
	}
	return c
}

// directory names never worth descending into on removable media
var skipDirNames = map[string]bool{
	"lost+found":                true,
	"System Volume Information": true,
	"$RECYCLE.BIN":              true,
	".Trashes":                  true,
}

// Watcher polls mount roots for manifest files. After a find it switches to
// presence-tracking the found path and reports its removal; discovery
// resumes once the tracked path is gone. The coordinator can re-point the
// tracked path with Track when it ignores a find.
type Watcher struct {
	cfg Config

	eventsCh chan Event
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	active    string
	lastBad   string
	isRunning bool
}

// NewWatcher creates a watcher; zero config fields take defaults and empty
// roots are guessed from the host at Start.
func NewWatcher(cfg Config) *Watcher {
	return &Watcher{
		cfg:      cfg.withDefaults(),
		eventsCh: make(chan Event, 4),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scan loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.isRunning = true
	w.mu.Unlock()

	if len(w.cfg.Roots) == 0 {
		w.cfg.Roots = GuessMountRoots()
	}

	slog.Info("usb watcher starting",
		"roots", w.cfg.Roots,
		"filenames", w.cfg.Filenames,
		"poll_interval", w.cfg.PollInterval,
	)

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Events returns the watcher event channel.
func (w *Watcher) Events() <-chan Event {
	return w.eventsCh
}

// Stop ends the scan loop and waits for it to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()

	slog.Info("usb watcher stopped")
	return nil
}

// Track re-points presence tracking at path. The coordinator uses it to
// keep watching the armed source after ignoring a find from another stick.
func (w *Watcher) Track(path string) {
	w.mu.Lock()
	w.active = path
	w.mu.Unlock()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			active := w.active
			w.mu.Unlock()

			if active != "" {
				if _, err := os.Stat(active); err != nil {
					w.mu.Lock()
					w.active = ""
					w.mu.Unlock()
					slog.Info("manifest source removed", "path", active)
					w.emit(ctx, Event{Kind: EventRemoved, Path: active})
				}
				continue
			}

			if ev, ok := w.scanOnce(); ok {
				w.mu.Lock()
				w.active = ev.Path
				w.mu.Unlock()
				w.emit(ctx, ev)
			}
		}
	}
}

// scanOnce walks every root looking for the first parseable manifest. An
// unusable candidate is warned about and skipped so it never masks a good
// stick elsewhere.
func (w *Watcher) scanOnce() (Event, bool) {
	for _, root := range w.cfg.Roots {
		for _, path := range w.findManifestFiles(root) {
			raw, err := os.ReadFile(path)
			if err != nil {
				w.warnBadFile(path, err)
				continue
			}
			m, err := manifest.Parse(string(raw))
			if err != nil {
				w.warnBadFile(path, err)
				continue
			}
			m.Source = filepath.Dir(path)

			slog.Info("manifest discovered", "path", path, "codes", m.Len())
			return Event{Kind: EventFound, Manifest: m, Path: path}, true
		}
	}
	return Event{}, false
}

// findManifestFiles walks one root to the configured depth, collecting
// every candidate in walk order.
func (w *Watcher) findManifestFiles(root string) []string {
	root = filepath.Clean(root)
	rootDepth := strings.Count(root, string(os.PathSeparator))

	var found []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skipDirNames[d.Name()] {
				return fs.SkipDir
			}
			if strings.Count(path, string(os.PathSeparator))-rootDepth > w.cfg.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if w.isManifestName(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	return found
}

func (w *Watcher) isManifestName(name string) bool {
	for _, candidate := range w.cfg.Filenames {
		if strings.EqualFold(name, candidate) {
			return true
		}
	}
	return false
}

// warnBadFile logs a broken manifest once per path, not once per poll.
func (w *Watcher) warnBadFile(path string, err error) {
	w.mu.Lock()
	repeat := w.lastBad == path
	w.lastBad = path
	w.mu.Unlock()

	if !repeat {
		slog.Warn("ignoring unusable manifest file", "path", path, "error", err)
	}
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.eventsCh <- ev:
	case <-ctx.Done():
	case <-w.stopCh:
	}
}
