package core

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/towerworks/atc-simulator/model"
)

// ErrCapacityExceeded indicates every candidate airline's fleet is
// saturated. Generation simply skips the cycle; this is not surfaced as a
// user-facing failure.
var ErrCapacityExceeded = errors.New("airline fleet capacity exceeded")

// Per-direction generation cadence and emergency odds.
var (
	generationIntervals = map[model.Direction]time.Duration{
		model.North: 180 * time.Second,
		model.South: 120 * time.Second,
		model.East:  150 * time.Second,
		model.West:  240 * time.Second,
	}
	emergencyProbability = map[model.Direction]float64{
		model.North: 0.10,
		model.South: 0.05,
		model.East:  0.15,
		model.West:  0.20,
	}
)

// GenerationInterval returns the configured cadence for a direction.
func GenerationInterval(dir model.Direction) time.Duration {
	return generationIntervals[dir]
}

// EmergencyProbability returns the configured emergency odds for a direction.
func EmergencyProbability(dir model.Direction) float64 {
	return emergencyProbability[dir]
}

// AirlinePicker is the generator's view of the airline roster: pick a
// carrier with spare fleet capacity for the given type preference and claim
// one airframe from it.
type AirlinePicker interface {
	PickAirline(preferred model.AircraftType) (*model.Airline, error)
}

// FlightGenerator produces new flights per direction on independent
// intervals. Each direction keeps its own last-generation mark, so a slow
// direction never starves a fast one.
type FlightGenerator struct {
	mu sync.Mutex

	picker  AirlinePicker
	machine *PhaseMachine
	rng     *rand.Rand

	lastGenerated map[model.Direction]time.Time
	seq           int
}

// NewFlightGenerator constructs a generator drawing airlines from picker.
func NewFlightGenerator(picker AirlinePicker, machine *PhaseMachine, seed int64) *FlightGenerator {
	return &FlightGenerator{
		picker:        picker,
		machine:       machine,
		rng:           rand.New(rand.NewSource(seed)),
		lastGenerated: make(map[model.Direction]time.Time),
	}
}

// Generate returns the flights due at simTime across all directions. A
// direction produces at most one flight per elapsed interval; directions
// whose airlines are all at capacity are skipped for the cycle.
func (g *FlightGenerator) Generate(simTime time.Time) []*model.Flight {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []*model.Flight
	for _, dir := range model.Directions() {
		last, ok := g.lastGenerated[dir]
		if ok && simTime.Sub(last) < generationIntervals[dir] {
			continue
		}
		f, err := g.generateLocked(dir, simTime)
		if err != nil {
			// Capacity pressure; try again next interval.
			continue
		}
		g.lastGenerated[dir] = simTime
		out = append(out, f)
	}
	return out
}

// GenerateForDirection forces a flight for one direction regardless of the
// interval, used by the cargo-presence invariant to synthesize cargo
// traffic on demand.
func (g *FlightGenerator) GenerateForDirection(dir model.Direction, preferred model.AircraftType, simTime time.Time) (*model.Flight, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generateForLocked(dir, preferred, false, simTime)
}

func (g *FlightGenerator) generateLocked(dir model.Direction, simTime time.Time) (*model.Flight, error) {
	emergency := g.rng.Float64() < emergencyProbability[dir]
	preferred := model.TypeCommercial
	if emergency {
		preferred = model.TypeEmergency
	}
	return g.generateForLocked(dir, preferred, emergency, simTime)
}

func (g *FlightGenerator) generateForLocked(dir model.Direction, preferred model.AircraftType, emergency bool, simTime time.Time) (*model.Flight, error) {
	airline, err := g.picker.PickAirline(preferred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapacityExceeded, err)
	}

	typ := airline.PrimaryType
	if emergency {
		typ = model.TypeEmergency
	} else if preferred == model.TypeCargo {
		typ = model.TypeCargo
	}
	if typ == model.TypeEmergency {
		emergency = true
	}

	g.seq++
	id := fmt.Sprintf("%s-%03d", flightPrefix(airline.Name), g.seq)

	aircraft := model.NewAircraft(id, typ, dir, airline.Name)
	g.machine.InitSpeed(aircraft)

	status := model.StatusScheduled
	return &model.Flight{
		ID:          id,
		Aircraft:    aircraft,
		Status:      status,
		Emergency:   emergency,
		ScheduledAt: simTime,
		Plan:        BuildFlightPlan(dir, emergency),
	}, nil
}

// flightPrefix derives a short callsign prefix from the airline name.
func flightPrefix(airline string) string {
	letters := make([]rune, 0, 2)
	for _, r := range airline {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
			if len(letters) == 2 {
				break
			}
		}
	}
	if len(letters) == 0 {
		return "FL"
	}
	return string(letters)
}
