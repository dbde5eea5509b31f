package core

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/towerworks/atc-simulator/model"
)

// ErrGroundFault marks a randomly injected ground condition (brake failure,
// hydraulic leak). The owning flight cancels and releases its runway; the
// fault is logged but never retried.
var ErrGroundFault = errors.New("ground fault")

const (
	// violationChance is the per-phase probability that an aircraft is
	// forced to hold an out-of-envelope speed.
	violationChance = 0.15
	// Injected deviations fall in [minDeviation, maxDeviation] km/h
	// beyond a bound of the envelope.
	minDeviation = 5.0
	maxDeviation = 40.0

	// groundFaultChance is the per-check probability of a ground fault
	// for an aircraft in a ground phase.
	groundFaultChance = 0.05
)

// Injector drives the simulation's statistical failure models: deliberate
// speed violations and ground faults. Emergency aircraft are exempt from
// injected violations; they are already operating outside normal rules.
type Injector struct {
	mu  sync.Mutex
	rng *rand.Rand

	// Probability overrides, settable for tests.
	violationP float64
	groundP    float64
}

// NewInjector builds an injector seeded from seed.
func NewInjector(seed int64) *Injector {
	return &Injector{
		rng:        rand.New(rand.NewSource(seed)),
		violationP: violationChance,
		groundP:    groundFaultChance,
	}
}

// SetProbabilities overrides the default odds; tests pin them to 0 or 1.
func (in *Injector) SetProbabilities(violation, ground float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.violationP = violation
	in.groundP = ground
}

// MaybeInjectViolation decides, once per phase entry, whether the aircraft
// should hold an out-of-envelope speed for the remainder of the phase. On a
// hit the speed is pinned 5-40 km/h above or below the envelope and the
// aircraft's InjectedSpeed flag is set so the phase machine leaves it alone.
func (in *Injector) MaybeInjectViolation(a *model.Aircraft) bool {
	if a.Type == model.TypeEmergency {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.rng.Float64() >= in.violationP {
		return false
	}
	env := EnvelopeFor(a.CurrentPhase)
	dev := minDeviation + in.rng.Float64()*(maxDeviation-minDeviation)
	if in.rng.Intn(2) == 0 && env.Min-dev >= 0 {
		a.CurrentSpeed = env.Min - dev
	} else {
		a.CurrentSpeed = env.Max + dev
	}
	a.InjectedSpeed = true
	return true
}

// MaybeInjectGroundFault rolls for a ground fault. Only aircraft in ground
// phases are eligible, and a faulted aircraft never faults again.
func (in *Injector) MaybeInjectGroundFault(a *model.Aircraft) bool {
	if a.GroundFault || !a.CurrentPhase.IsGroundPhase() {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.rng.Float64() >= in.groundP {
		return false
	}
	a.GroundFault = true
	return true
}
