package model

// FlightPhase is one stage of an arrival or departure sequence.
type FlightPhase int

const (
	// Arrival phases.
	PhaseHolding FlightPhase = iota
	PhaseApproach
	PhaseLanding
	PhaseTaxiIn
	PhaseAtGateArrival

	// Departure phases.
	PhaseAtGateDeparture
	PhaseTaxiOut
	PhaseTakeoffRoll
	PhaseClimb
	PhaseCruise
)

func (p FlightPhase) String() string {
	switch p {
	case PhaseHolding:
		return "HOLDING"
	case PhaseApproach:
		return "APPROACH"
	case PhaseLanding:
		return "LANDING"
	case PhaseTaxiIn:
		return "TAXI_IN"
	case PhaseAtGateArrival:
		return "AT_GATE_ARRIVAL"
	case PhaseAtGateDeparture:
		return "AT_GATE_DEPARTURE"
	case PhaseTaxiOut:
		return "TAXI_OUT"
	case PhaseTakeoffRoll:
		return "TAKEOFF_ROLL"
	case PhaseClimb:
		return "CLIMB"
	case PhaseCruise:
		return "CRUISE"
	default:
		return "UNKNOWN"
	}
}

// ArrivalSequence is the fixed phase order for north/south traffic.
var ArrivalSequence = []FlightPhase{
	PhaseHolding, PhaseApproach, PhaseLanding, PhaseTaxiIn, PhaseAtGateArrival,
}

// DepartureSequence is the fixed phase order for east/west traffic.
var DepartureSequence = []FlightPhase{
	PhaseAtGateDeparture, PhaseTaxiOut, PhaseTakeoffRoll, PhaseClimb, PhaseCruise,
}

// InitialPhase returns the first phase for a flight in the given direction.
func InitialPhase(dir Direction) FlightPhase {
	if dir.IsArrival() {
		return ArrivalSequence[0]
	}
	return DepartureSequence[0]
}

// TerminalPhase returns the final phase for a flight in the given direction.
func TerminalPhase(dir Direction) FlightPhase {
	if dir.IsArrival() {
		return ArrivalSequence[len(ArrivalSequence)-1]
	}
	return DepartureSequence[len(DepartureSequence)-1]
}

// IsTerminal reports whether p ends the sequence it belongs to.
func (p FlightPhase) IsTerminal() bool {
	return p == PhaseAtGateArrival || p == PhaseCruise
}

// IsGroundPhase reports whether the aircraft is on the ground in phase p.
// Ground faults can only occur in these phases.
func (p FlightPhase) IsGroundPhase() bool {
	switch p {
	case PhaseTaxiIn, PhaseAtGateArrival, PhaseAtGateDeparture, PhaseTaxiOut, PhaseTakeoffRoll:
		return true
	default:
		return false
	}
}
