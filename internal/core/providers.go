package core

import (
	"fmt"
	"time"

	"github.com/neyoyoyminoy/palletPortal/internal/decoder"
	"github.com/neyoyoyminoy/palletPortal/internal/proximity"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// simDecodeInterval paces scripted decode batches in simulation.
const simDecodeInterval = 150 * time.Millisecond

// SensorProvider builds the pair of archway rangefinders for one arming.
// Pollers are single-use, so fresh drivers are requested every time a
// manifest arms.
type SensorProvider func() (left, right proximity.SensorDriver)

// SourceProvider builds the decode sources for one scan pass over the given
// manifest.
type SourceProvider func(m *types.ShipmentManifest) []decoder.Source

// UseSensors links real rangefinder drivers in place of the simulated ones.
// Must be called before Run.
func (p *Portal) UseSensors(provider SensorProvider) {
	p.sensors = provider
}

// UseSources links a real camera decode pipeline in place of the simulated
// sources. Must be called before Run.
func (p *Portal) UseSources(provider SourceProvider) {
	p.sources = provider
}

// simSensors builds two scripted rangefinders replaying a pallet approach.
func (p *Portal) simSensors() (proximity.SensorDriver, proximity.SensorDriver) {
	return proximity.NewSimSensor("sonar-left", proximity.DefaultApproachScript()),
		proximity.NewSimSensor("sonar-right", proximity.DefaultApproachScript())
}

// simSources builds scripted decode sources that replay the armed manifest,
// so a kiosk without cameras still walks the full scan path. Codes are dealt
// round-robin across the streams; the first code is repeated on the last
// stream to exercise cross-stream dedup.
func (p *Portal) simSources(m *types.ShipmentManifest) []decoder.Source {
	n := p.cfg.Scanner.Streams
	if n < 1 {
		n = 1
	}

	scripts := make([][][]string, n)
	for i, code := range m.Codes {
		s := i % n
		scripts[s] = append(scripts[s], []string{string(code)})
	}
	if n > 1 && len(m.Codes) > 0 {
		scripts[n-1] = append(scripts[n-1], []string{string(m.Codes[0])})
	}

	sources := make([]decoder.Source, 0, n)
	for i, batches := range scripts {
		id := fmt.Sprintf("sim%d", i)
		sources = append(sources, decoder.NewMockSource(id, simDecodeInterval, batches...))
	}
	return sources
}
