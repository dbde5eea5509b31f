package core

import (
	"errors"
	"testing"

	"github.com/towerworks/atc-simulator/model"
)

func TestRunwayDirectionAlignment(t *testing.T) {
	tests := []struct {
		runway model.RunwayID
		dir    model.Direction
		want   bool
	}{
		{model.RunwayA, model.North, true},
		{model.RunwayA, model.South, true},
		{model.RunwayA, model.East, false},
		{model.RunwayB, model.East, true},
		{model.RunwayB, model.West, true},
		{model.RunwayB, model.North, false},
		{model.RunwayC, model.North, true},
		{model.RunwayC, model.West, true},
	}
	for _, tt := range tests {
		r := NewRunway(tt.runway)
		if got := r.EligibleDirection(tt.dir); got != tt.want {
			t.Fatalf("%s.EligibleDirection(%s) = %v, want %v", tt.runway, tt.dir, got, tt.want)
		}
	}
}

func TestRunwayCReservedForCargoAndEmergency(t *testing.T) {
	r := NewRunway(model.RunwayC)

	if !r.EligibleType(model.TypeCargo, false) {
		t.Fatalf("cargo must be eligible for RWY_C")
	}
	if !r.EligibleType(model.TypeEmergency, false) {
		t.Fatalf("emergency must be eligible for RWY_C")
	}
	if r.EligibleType(model.TypeCommercial, false) {
		t.Fatalf("commercial must not be eligible for RWY_C without overflow")
	}
	if !r.EligibleType(model.TypeCommercial, true) {
		t.Fatalf("commercial must be eligible for RWY_C with overflow enabled")
	}
}

func TestTryAssignAndRelease(t *testing.T) {
	r := NewRunway(model.RunwayA)
	a := model.NewAircraft("PA-001", model.TypeCommercial, model.North, "PIA")

	if err := r.TryAssign(a, false); err != nil {
		t.Fatalf("TryAssign error: %v", err)
	}
	if r.Status() != model.RunwayInUse || r.Occupant() != "PA-001" {
		t.Fatalf("runway not occupied after assign: %s by %q", r.Status(), r.Occupant())
	}

	b := model.NewAircraft("PA-002", model.TypeCommercial, model.South, "PIA")
	if err := r.TryAssign(b, false); !errors.Is(err, ErrRunwayUnavailable) {
		t.Fatalf("expected ErrRunwayUnavailable for occupied runway, got %v", err)
	}

	if !r.Release("PA-001") {
		t.Fatalf("Release by occupant must succeed")
	}
	if r.Status() != model.RunwayAvailable {
		t.Fatalf("runway not available after release: %s", r.Status())
	}
	if r.Release("PA-001") {
		t.Fatalf("double release must be a no-op")
	}
	if r.UsageCount() != 1 {
		t.Fatalf("usage count = %d, want 1", r.UsageCount())
	}
}

func TestAssignmentLeavesAircraftStateToCaller(t *testing.T) {
	// Aircraft runway fields belong to the scheduler's coarse lock; the
	// runway must only touch its own occupancy.
	r := NewRunway(model.RunwayA)
	a := model.NewAircraft("PA-001", model.TypeCommercial, model.North, "PIA")

	if err := r.TryAssign(a, false); err != nil {
		t.Fatalf("TryAssign error: %v", err)
	}
	if a.HasRunway || a.AssignedRunway != "" {
		t.Fatalf("TryAssign mutated aircraft fields: %+v", a)
	}

	a.AssignedRunway = model.RunwayA
	a.HasRunway = true
	if !r.Release("PA-001") {
		t.Fatalf("Release error")
	}
	if !a.HasRunway || a.AssignedRunway != model.RunwayA {
		t.Fatalf("Release mutated aircraft fields: %+v", a)
	}
}

func TestTryAssignRejectsWrongDirection(t *testing.T) {
	r := NewRunway(model.RunwayB)
	a := model.NewAircraft("PA-001", model.TypeCommercial, model.North, "PIA")
	if err := r.TryAssign(a, false); !errors.Is(err, ErrRunwayUnavailable) {
		t.Fatalf("expected ErrRunwayUnavailable for misaligned direction, got %v", err)
	}
}

func TestSetStatusEvictsOccupant(t *testing.T) {
	r := NewRunway(model.RunwayA)
	a := model.NewAircraft("PA-001", model.TypeCommercial, model.North, "PIA")
	if err := r.TryAssign(a, false); err != nil {
		t.Fatalf("TryAssign error: %v", err)
	}

	evicted := r.SetStatus(model.RunwayWeatherClosed)
	if evicted != "PA-001" {
		t.Fatalf("SetStatus evicted %q, want PA-001", evicted)
	}
	if r.Status() != model.RunwayWeatherClosed {
		t.Fatalf("status = %s, want WEATHER_CLOSED", r.Status())
	}

	b := model.NewAircraft("PA-002", model.TypeCommercial, model.South, "PIA")
	if err := r.TryAssign(b, false); !errors.Is(err, ErrRunwayUnavailable) {
		t.Fatalf("closed runway accepted an assignment")
	}
}

func TestRunwayPool(t *testing.T) {
	p := NewRunwayPool()
	all := p.All()
	if len(all) != 3 {
		t.Fatalf("pool has %d runways, want 3", len(all))
	}
	if all[0].ID() != model.RunwayA || all[2].ID() != model.RunwayC {
		t.Fatalf("pool scan order wrong: %v, %v, %v", all[0].ID(), all[1].ID(), all[2].ID())
	}

	a := model.NewAircraft("FE-001", model.TypeCargo, model.East, "FedEx")
	if err := p.Get(model.RunwayC).TryAssign(a, false); err != nil {
		t.Fatalf("TryAssign error: %v", err)
	}
	if !p.Release(model.RunwayC, "FE-001") {
		t.Fatalf("pool release must free the assigned runway")
	}
	if p.Get(model.RunwayC).Status() != model.RunwayAvailable {
		t.Fatalf("runway not available after pool release")
	}
}
