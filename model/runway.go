package model

// RunwayID identifies one of the airport's three runways.
type RunwayID string

const (
	RunwayA RunwayID = "RWY_A" // north-south alignment, arrivals
	RunwayB RunwayID = "RWY_B" // east-west alignment, departures
	RunwayC RunwayID = "RWY_C" // flexible, reserved for cargo/emergency
)

// RunwayIDs lists the runways in the fixed scan order used for assignment.
func RunwayIDs() []RunwayID {
	return []RunwayID{RunwayA, RunwayB, RunwayC}
}

// RunwayStatus describes a runway's availability.
type RunwayStatus int

const (
	RunwayAvailable RunwayStatus = iota
	RunwayInUse
	RunwayMaintenance
	RunwayWeatherClosed
)

func (s RunwayStatus) String() string {
	switch s {
	case RunwayAvailable:
		return "AVAILABLE"
	case RunwayInUse:
		return "IN_USE"
	case RunwayMaintenance:
		return "MAINTENANCE"
	case RunwayWeatherClosed:
		return "WEATHER_CLOSED"
	default:
		return "UNKNOWN"
	}
}
