package types

import "time"

// CompletedOrderRecord is one fully verified load, as shown on the
// completed-orders report.
type CompletedOrderRecord struct {
	// Trailer identifies the load, derived from the manifest source
	Trailer string `json:"trailer"`
	// Station is the archway label of the portal that verified the load
	Station string `json:"station"`
	// Start is when scanning began (proximity trigger)
	Start time.Time `json:"start"`
	// End is when the last expected code was verified
	End time.Time `json:"end"`
	// Scanned is the number of distinct codes verified
	Scanned int `json:"scanned"`
}

// Duration returns the span from proximity trigger to completion.
func (r CompletedOrderRecord) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
