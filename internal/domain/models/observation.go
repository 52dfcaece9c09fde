package models

import "time"

// Observation is a single GOES X-ray flux measurement. Timestamp is the
// store key: writing a second observation with the same timestamp replaces
// the first.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Flux      float64   `json:"flux"`
}
