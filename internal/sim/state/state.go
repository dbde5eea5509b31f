// internal/sim/state/state.go
package state

import (
	"sync"

	"github.com/towerworks/atc-simulator/internal/logging"
	"github.com/towerworks/atc-simulator/model"
	"github.com/towerworks/atc-simulator/registry"
)

// Re-export registry sentinel errors so callers can depend on state.*
// instead of registry.* directly if they want to.
var (
	// ErrFlightExists indicates a flight ID collision.
	ErrFlightExists = registry.ErrFlightExists
	// ErrFlightNotFound indicates a requested flight was not found.
	ErrFlightNotFound = registry.ErrFlightNotFound
	// ErrInvalidStatus indicates a flight status transition outside the
	// allowed graph.
	ErrInvalidStatus = registry.ErrInvalidStatus
)

// Statistics aggregates simulation totals. A copy is returned to readers.
type Statistics struct {
	TotalFlights      int `json:"total_flights"`
	CompletedFlights  int `json:"completed_flights"`
	CanceledFlights   int `json:"canceled_flights"`
	EmergencyFlights  int `json:"emergency_flights"`
	GroundFaults      int `json:"ground_faults"`
	RunwayAssignments int `json:"runway_assignments"`
	DeniedFlights     int `json:"denied_flights"`
	Violations        int `json:"violations"`
}

// FlightMetricsRecorder receives count updates for flight entities.
type FlightMetricsRecorder interface {
	SetFlightCounts(byStatus map[string]int, queueDepth int)
}

// ControlState coordinates the simulation's shared collections: the flight
// registry, the denied-flight queue, and run statistics.
//
// mu is the coarse scheduler-level lock. Take it before touching the
// registry to maintain the global lock ordering ControlState -> Registry.
// Runway locks are leaf-level: a loop may take a runway lock while holding
// mu, but never the reverse, and no external call (notice issuance,
// persistence) may run under either.
type ControlState struct {
	mu sync.RWMutex

	reg *registry.Registry

	// deniedQueue is the FIFO of flights that requested a runway and
	// received none; drained in bounded batches by the retry loop. queued
	// mirrors the queue's membership for O(1) lookups.
	deniedQueue []*model.Flight
	queued      map[string]struct{}

	stats Statistics

	log     logging.Logger
	metrics FlightMetricsRecorder
}

// Option customises ControlState construction.
type Option func(*ControlState)

// WithMetricsRecorder attaches an optional recorder for entity gauges.
func WithMetricsRecorder(m FlightMetricsRecorder) Option {
	return func(s *ControlState) {
		s.metrics = m
	}
}

// New wires a ControlState over the given registry.
func New(reg *registry.Registry, log logging.Logger, opts ...Option) *ControlState {
	if log == nil {
		log = logging.Noop()
	}
	s := &ControlState{reg: reg, log: log, queued: make(map[string]struct{})}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Registry exposes the underlying flight registry.
func (s *ControlState) Registry() *registry.Registry {
	return s.reg
}

// WithReadLock executes fn while holding the read lock. fn must not call
// other ControlState methods that take the lock.
func (s *ControlState) WithReadLock(fn func() error) error {
	if fn == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// WithLock executes fn while holding the write lock. The same re-entrancy
// caveat as WithReadLock applies.
func (s *ControlState) WithLock(fn func() error) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// AddFlight registers a new flight and updates run statistics.
func (s *ControlState) AddFlight(f *model.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.AddFlight(f); err != nil {
		return err
	}
	s.stats.TotalFlights++
	if f.Emergency {
		s.stats.EmergencyFlights++
	}
	s.updateMetricsLocked()
	return nil
}

// SetFlightStatus transitions a flight and keeps statistics in step.
func (s *ControlState) SetFlightStatus(id string, status model.FlightStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.SetStatus(id, status, reason); err != nil {
		return err
	}
	switch status {
	case model.StatusCompleted:
		s.stats.CompletedFlights++
	case model.StatusCanceled:
		s.stats.CanceledFlights++
	}
	s.updateMetricsLocked()
	return nil
}

// EnqueueDenied adds a flight to the denied-runway queue. Emergency flights
// go to the head, behind any emergencies already waiting; everything else
// appends FIFO. A flight already in the queue is not added twice.
func (s *ControlState) EnqueueDenied(f *model.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queued[f.ID]; ok {
		return
	}
	if f.Emergency {
		i := 0
		for i < len(s.deniedQueue) && s.deniedQueue[i].Emergency {
			i++
		}
		s.deniedQueue = append(s.deniedQueue, nil)
		copy(s.deniedQueue[i+1:], s.deniedQueue[i:])
		s.deniedQueue[i] = f
	} else {
		s.deniedQueue = append(s.deniedQueue, f)
	}
	s.queued[f.ID] = struct{}{}
	s.stats.DeniedFlights++
	s.updateMetricsLocked()
}

// IsQueued reports whether the flight is currently in the denied queue.
func (s *ControlState) IsQueued(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.queued[id]
	return ok
}

// DequeueDenied removes and returns up to max flights from the head of the
// denied queue. Flights that are no longer retryable are dropped rather
// than returned. claim, when non-nil, runs for each returned flight while
// the queue lock is still held, so a flight is never observable as neither
// queued nor claimed; claim must not call back into ControlState.
func (s *ControlState) DequeueDenied(max int, claim func(*model.Flight)) []*model.Flight {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Flight
	for len(out) < max && len(s.deniedQueue) > 0 {
		f := s.deniedQueue[0]
		s.deniedQueue = s.deniedQueue[1:]
		delete(s.queued, f.ID)
		if !f.Retryable() {
			continue
		}
		if claim != nil {
			claim(f)
		}
		out = append(out, f)
	}
	s.updateMetricsLocked()
	return out
}

// QueueDepth returns the current denied-queue length.
func (s *ControlState) QueueDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deniedQueue)
}

// RecordAssignment counts a successful runway assignment.
func (s *ControlState) RecordAssignment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.RunwayAssignments++
}

// RecordGroundFault counts a ground fault cancellation.
func (s *ControlState) RecordGroundFault() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.GroundFaults++
}

// RecordViolation counts a speed violation.
func (s *ControlState) RecordViolation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Violations++
}

// Stats returns a copy of the run statistics.
func (s *ControlState) Stats() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// updateMetricsLocked pushes entity counts to the metrics recorder.
// Callers must hold mu.
func (s *ControlState) updateMetricsLocked() {
	if s.metrics == nil {
		return
	}
	byStatus := make(map[string]int)
	for _, st := range []model.FlightStatus{
		model.StatusScheduled, model.StatusActive, model.StatusEmergency,
		model.StatusCompleted, model.StatusCanceled, model.StatusDiverted,
	} {
		byStatus[st.String()] = 0
	}
	for _, f := range s.reg.ListFlights() {
		byStatus[f.Status.String()]++
	}
	s.metrics.SetFlightCounts(byStatus, len(s.deniedQueue))
}
