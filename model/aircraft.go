package model

// AircraftType classifies an aircraft for runway eligibility and billing.
type AircraftType int

const (
	TypeCommercial AircraftType = iota
	TypeCargo
	TypeEmergency
)

func (t AircraftType) String() string {
	switch t {
	case TypeCommercial:
		return "COMMERCIAL"
	case TypeCargo:
		return "CARGO"
	case TypeEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// Direction is the cardinal direction a flight operates in. North and
// south traffic are arrivals; east and west traffic are departures.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "NORTH"
	case South:
		return "SOUTH"
	case East:
		return "EAST"
	case West:
		return "WEST"
	default:
		return "UNKNOWN"
	}
}

// IsArrival reports whether the direction corresponds to arriving traffic.
func (d Direction) IsArrival() bool {
	return d == North || d == South
}

// Directions lists every cardinal direction in a stable order.
func Directions() []Direction {
	return []Direction{North, South, East, West}
}

// Aircraft is the mutable per-flight vehicle state. An Aircraft is owned by
// exactly one Flight; phase and speed are mutated only by the phase machine
// while the owning flight is being advanced. The Runway holds the aircraft's
// ID, never a pointer, so an aircraft's lifetime ends with its flight.
type Aircraft struct {
	ID        string
	Type      AircraftType
	Direction Direction
	Airline   string

	CurrentPhase FlightPhase
	CurrentSpeed float64
	// PhaseEntrySpeed is the speed sampled when the current phase was
	// entered. Deterministic profiles (landing decay) interpolate from it
	// rather than from the already-adjusted CurrentSpeed.
	PhaseEntrySpeed float64

	// AssignedRunway is empty until a runway accepts this aircraft.
	AssignedRunway RunwayID
	HasRunway      bool

	// FlaggedPhases records phases that already produced a violation
	// record, so a phase is never billed twice.
	FlaggedPhases map[FlightPhase]bool

	// InjectedSpeed pins CurrentSpeed outside the envelope for the rest
	// of the phase when a violation has been injected.
	InjectedSpeed bool

	GroundFault bool
}

// NewAircraft builds an aircraft in the initial phase for its direction.
func NewAircraft(id string, typ AircraftType, dir Direction, airline string) *Aircraft {
	return &Aircraft{
		ID:            id,
		Type:          typ,
		Direction:     dir,
		Airline:       airline,
		CurrentPhase:  InitialPhase(dir),
		FlaggedPhases: make(map[FlightPhase]bool),
	}
}
