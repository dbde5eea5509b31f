package model

import "time"

// ViolationRecord captures a single speed violation. Records are immutable
// once created; the monitor appends them to its list and counters.
type ViolationRecord struct {
	AircraftID  string
	Airline     string
	Phase       FlightPhase
	ActualSpeed float64
	MinAllowed  float64
	MaxAllowed  float64
	Timestamp   time.Time
	Description string
}

// Deviation returns how far the recorded speed fell outside the envelope.
func (v ViolationRecord) Deviation() float64 {
	switch {
	case v.ActualSpeed > v.MaxAllowed:
		return v.ActualSpeed - v.MaxAllowed
	case v.ActualSpeed < v.MinAllowed:
		return v.MinAllowed - v.ActualSpeed
	default:
		return 0
	}
}
