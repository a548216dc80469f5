package types

import "time"

// DecodedEvent is a single decoded string produced by one decode stream.
type DecodedEvent struct {
	// StreamID identifies the decode stream that produced the value
	StreamID string
	// Raw is the decoded text exactly as the decoder emitted it
	Raw string
	// Seq is the monotonic sequence number, per stream
	Seq uint64
	// TraceID is a unique identifier for tracing the event through the pipeline
	TraceID string
	// At is when the value was decoded
	At time.Time
}

// ProximityReading is one valid distance measurement from one sensor.
// A reading that could not be taken (echo timeout, out of range) is
// represented as a nil *ProximityReading, never as a sentinel distance.
type ProximityReading struct {
	// SensorID identifies the sensor that produced the reading
	SensorID string
	// DistanceIn is the measured distance in inches
	DistanceIn float64
	// At is when the reading was taken
	At time.Time
}
