package proximity

import (
	"context"
	"errors"
	"sync"
)

// ErrNoReading is reported by a driver when no echo arrives within the read
// deadline or the measurement is outside the sensor's reliable range.
var ErrNoReading = errors.New("proximity: no reading")

// SensorDriver measures the distance to whatever is in front of one sensor.
// Hardware drivers time an ultrasonic echo pulse; the portal also runs on
// scripted drivers when no rangefinder is attached.
type SensorDriver interface {
	// ID returns the sensor's identifier
	ID() string
	// ReadDistance returns the measured distance in inches, or ErrNoReading
	ReadDistance(ctx context.Context) (float64, error)
}

// SimSensor replays a scripted approach so the portal can run without
// rangefinder hardware. Script values at or under zero mean "no reading
// this cycle"; the last value repeats once the script is exhausted.
type SimSensor struct {
	id string

	mu     sync.Mutex
	script []float64
	pos    int
}

// NewSimSensor creates a scripted sensor.
func NewSimSensor(id string, script []float64) *SimSensor {
	return &SimSensor{id: id, script: script}
}

// DefaultApproachScript simulates a pallet jack rolling up to the archway.
func DefaultApproachScript() []float64 {
	return []float64{180, 140, 96, 60, 34, 18, 12}
}

// ID implements SensorDriver.
func (s *SimSensor) ID() string {
	return s.id
}

// ReadDistance implements SensorDriver.
func (s *SimSensor) ReadDistance(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return 0, ErrNoReading
	}
	d := s.script[s.pos]
	if s.pos < len(s.script)-1 {
		s.pos++
	}
	if d <= 0 {
		return 0, ErrNoReading
	}
	return d, nil
}

var _ SensorDriver = (*SimSensor)(nil)
