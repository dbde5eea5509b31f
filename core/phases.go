package core

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/towerworks/atc-simulator/model"
)

// ErrInvalidTransition indicates a phase advance was requested outside the
// fixed arrival/departure sequence, e.g. from a terminal phase. The
// orchestrator never requests one under correct operation, so callers treat
// it as a logic error rather than a recoverable condition.
var ErrInvalidTransition = errors.New("invalid phase transition")

// SpeedEnvelope is the closed [Min, Max] speed interval permitted for a
// phase, in km/h.
type SpeedEnvelope struct {
	Min float64
	Max float64
}

// Contains reports whether speed falls inside the envelope.
func (e SpeedEnvelope) Contains(speed float64) bool {
	return speed >= e.Min && speed <= e.Max
}

// speedEnvelopes is the per-phase speed table. Landing decays toward its
// floor and takeoff roll ramps toward its ceiling; the table holds the full
// interval either way.
var speedEnvelopes = map[model.FlightPhase]SpeedEnvelope{
	model.PhaseHolding:       {Min: 400, Max: 600},
	model.PhaseApproach:      {Min: 240, Max: 290},
	model.PhaseLanding:       {Min: 30, Max: 240},
	model.PhaseTaxiIn:        {Min: 15, Max: 30},
	model.PhaseAtGateArrival: {Min: 0, Max: 5},

	model.PhaseAtGateDeparture: {Min: 0, Max: 5},
	model.PhaseTaxiOut:         {Min: 15, Max: 30},
	model.PhaseTakeoffRoll:     {Min: 0, Max: 290},
	model.PhaseClimb:           {Min: 250, Max: 463},
	model.PhaseCruise:          {Min: 800, Max: 900},
}

// EnvelopeFor returns the speed envelope for a phase.
func EnvelopeFor(phase model.FlightPhase) SpeedEnvelope {
	return speedEnvelopes[phase]
}

// PhaseMachine advances aircraft along their fixed phase sequence and keeps
// their speed consistent with the new phase. It owns the randomness used for
// resampling so tests can seed it deterministically.
type PhaseMachine struct {
	rng *rand.Rand
}

// NewPhaseMachine builds a machine seeded from seed; pass a fixed seed in
// tests for reproducible speed samples.
func NewPhaseMachine(seed int64) *PhaseMachine {
	return &PhaseMachine{rng: rand.New(rand.NewSource(seed))}
}

// NextPhase returns the phase following current in the sequence for dir, or
// ErrInvalidTransition when current is terminal.
func NextPhase(current model.FlightPhase, dir model.Direction) (model.FlightPhase, error) {
	seq := model.DepartureSequence
	if dir.IsArrival() {
		seq = model.ArrivalSequence
	}
	for i, p := range seq {
		if p != current {
			continue
		}
		if i == len(seq)-1 {
			return current, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, current)
		}
		return seq[i+1], nil
	}
	return current, fmt.Errorf("%w: %s is not in the %s sequence", ErrInvalidTransition, current, dir)
}

// Advance moves the aircraft to the next phase in its sequence and resamples
// its speed within the new envelope. A pinned (injected) speed survives the
// transition check but is cleared here: injection applies per phase, so a new
// phase draws a fresh sample and the injector decides again.
func (m *PhaseMachine) Advance(a *model.Aircraft) error {
	next, err := NextPhase(a.CurrentPhase, a.Direction)
	if err != nil {
		return err
	}
	a.CurrentPhase = next
	a.InjectedSpeed = false
	a.CurrentSpeed = m.SampleSpeed(next)
	a.PhaseEntrySpeed = a.CurrentSpeed
	return nil
}

// SampleSpeed draws a uniform speed within the envelope for phase. Takeoff
// roll starts from a standstill regardless of the envelope ceiling.
func (m *PhaseMachine) SampleSpeed(phase model.FlightPhase) float64 {
	if phase == model.PhaseTakeoffRoll {
		return 0
	}
	env := speedEnvelopes[phase]
	return env.Min + m.rng.Float64()*(env.Max-env.Min)
}

// InitSpeed sets the aircraft's speed for its current (initial) phase.
func (m *PhaseMachine) InitSpeed(a *model.Aircraft) {
	a.CurrentSpeed = m.SampleSpeed(a.CurrentPhase)
	a.PhaseEntrySpeed = a.CurrentSpeed
}

// ProgressSpeed recomputes speed for phases with a deterministic profile:
// landing decays linearly from the phase-entry speed toward the envelope
// floor and takeoff roll ramps linearly from zero toward the ceiling.
// elapsed and total describe progress through the phase; other phases are
// left untouched. Injected speeds are pinned and never adjusted. The call
// is idempotent for a given elapsed: both profiles interpolate from fixed
// endpoints, never from the previously adjusted speed.
func (m *PhaseMachine) ProgressSpeed(a *model.Aircraft, elapsed, total time.Duration) {
	if a.InjectedSpeed || total <= 0 {
		return
	}
	frac := float64(elapsed) / float64(total)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	env := speedEnvelopes[a.CurrentPhase]
	switch a.CurrentPhase {
	case model.PhaseLanding:
		start := a.PhaseEntrySpeed
		if start < env.Min {
			start = env.Min
		}
		a.CurrentSpeed = start - frac*(start-env.Min)
	case model.PhaseTakeoffRoll:
		a.CurrentSpeed = frac * env.Max
	}
}

// IsSpeedValid reports whether the aircraft's speed is inside the envelope
// for its current phase.
func IsSpeedValid(a *model.Aircraft) bool {
	return speedEnvelopes[a.CurrentPhase].Contains(a.CurrentSpeed)
}
