package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/towerworks/atc-simulator/model"
)

type rosterPicker struct {
	airlines []*model.Airline
}

func (p *rosterPicker) PickAirline(preferred model.AircraftType) (*model.Airline, error) {
	var fallback *model.Airline
	for _, a := range p.airlines {
		if !a.HasCapacity() {
			continue
		}
		if a.PrimaryType == preferred {
			return a, nil
		}
		if fallback == nil {
			fallback = a
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("no capacity")
}

func newTestGenerator(airlines []*model.Airline) *FlightGenerator {
	return NewFlightGenerator(&rosterPicker{airlines: airlines}, NewPhaseMachine(1), 2)
}

func TestGenerateProducesAllDirectionsInitially(t *testing.T) {
	g := newTestGenerator(DefaultAirlines())
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	flights := g.Generate(now)
	if len(flights) != 4 {
		t.Fatalf("first generation produced %d flights, want 4", len(flights))
	}
	seen := map[model.Direction]bool{}
	for _, f := range flights {
		seen[f.Aircraft.Direction] = true
		if f.Status != model.StatusScheduled {
			t.Fatalf("new flight status = %s, want SCHEDULED", f.Status)
		}
		if len(f.Plan) == 0 {
			t.Fatalf("flight %s has no plan", f.ID)
		}
		if f.Aircraft.CurrentPhase != model.InitialPhase(f.Aircraft.Direction) {
			t.Fatalf("flight %s starts in %s", f.ID, f.Aircraft.CurrentPhase)
		}
	}
	for _, dir := range model.Directions() {
		if !seen[dir] {
			t.Fatalf("no flight generated for %s", dir)
		}
	}
}

func TestGenerateHonorsPerDirectionIntervals(t *testing.T) {
	g := newTestGenerator(DefaultAirlines())
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	g.Generate(start)

	// 130s in: only SOUTH's 120s interval has elapsed.
	flights := g.Generate(start.Add(130 * time.Second))
	if len(flights) != 1 {
		t.Fatalf("generation at +130s produced %d flights, want 1", len(flights))
	}
	if flights[0].Aircraft.Direction != model.South {
		t.Fatalf("flight at +130s is %s, want SOUTH", flights[0].Aircraft.Direction)
	}
}

func TestGenerateForDirectionForcesCargo(t *testing.T) {
	g := newTestGenerator(DefaultAirlines())
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	f, err := g.GenerateForDirection(model.East, model.TypeCargo, now)
	if err != nil {
		t.Fatalf("GenerateForDirection error: %v", err)
	}
	if f.Aircraft.Type != model.TypeCargo {
		t.Fatalf("forced cargo flight has type %s", f.Aircraft.Type)
	}
	if f.Emergency {
		t.Fatalf("cargo flight must not be an emergency")
	}
}

func TestGenerateSkipsSaturatedFleets(t *testing.T) {
	airlines := []*model.Airline{
		{Name: "PIA", PrimaryType: model.TypeCommercial, TotalAircraft: 1, MaxFlights: 1, ActiveFleet: 1},
	}
	g := newTestGenerator(airlines)
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	if flights := g.Generate(now); len(flights) != 0 {
		t.Fatalf("saturated roster produced %d flights, want 0", len(flights))
	}

	_, err := g.GenerateForDirection(model.North, model.TypeCommercial, now)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestEmergencyAirlineFlightsAreEmergencies(t *testing.T) {
	airlines := []*model.Airline{
		{Name: "Pakistan Airforce", PrimaryType: model.TypeEmergency, TotalAircraft: 2, MaxFlights: 2},
	}
	g := newTestGenerator(airlines)
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	flights := g.Generate(now)
	if len(flights) == 0 {
		t.Fatalf("expected flights from emergency-only roster")
	}
	for _, f := range flights {
		if f.Aircraft.Type != model.TypeEmergency || !f.Emergency {
			t.Fatalf("flight %s from emergency carrier is %s, emergency=%v", f.ID, f.Aircraft.Type, f.Emergency)
		}
	}
}

func TestFlightPrefix(t *testing.T) {
	tests := []struct {
		airline string
		want    string
	}{
		{"PIA", "PI"},
		{"AirBlue", "AB"},
		{"Blue Dart", "BD"},
		{"lowercase", "FL"},
	}
	for _, tt := range tests {
		if got := flightPrefix(tt.airline); got != tt.want {
			t.Fatalf("flightPrefix(%q) = %q, want %q", tt.airline, got, tt.want)
		}
	}
}
