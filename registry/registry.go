package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/towerworks/atc-simulator/model"
)

var (
	// ErrFlightExists indicates a flight ID collision.
	ErrFlightExists = errors.New("flight already exists")
	// ErrFlightNotFound indicates a requested flight was not found.
	ErrFlightNotFound = errors.New("flight not found")
	// ErrAirlineNotFound indicates a requested airline was not found.
	ErrAirlineNotFound = errors.New("airline not found")
	// ErrInvalidStatus indicates a flight status transition outside the
	// allowed graph. No state changes on rejection.
	ErrInvalidStatus = errors.New("invalid flight status transition")
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventFlightAdded EventType = iota
	EventStatusChanged
)

// Event is emitted to subscribers when a flight is added or changes status.
type Event struct {
	Type     EventType
	FlightID string
	Status   model.FlightStatus
}

// Registry is an in-memory, thread-safe store for flights and the airline
// roster. It tracks every flight's lifecycle status and enforces the status
// transition graph; flight plans live on the flights themselves.
type Registry struct {
	mu sync.RWMutex

	flights  map[string]*model.Flight
	order    []string
	airlines map[string]*model.Airline

	// subs is keyed by subscription token so unsubscribing one callback
	// never disturbs the others.
	subs    map[int]func(Event)
	nextSub int
}

// New constructs a registry over the given airline roster.
func New(airlines []*model.Airline) *Registry {
	r := &Registry{
		flights:  make(map[string]*model.Flight),
		airlines: make(map[string]*model.Airline, len(airlines)),
		subs:     make(map[int]func(Event)),
	}
	for _, a := range airlines {
		r.airlines[a.Name] = a
	}
	return r
}

// AddFlight registers a new flight and claims one airframe from its
// airline's fleet. It returns an error if the ID already exists.
func (r *Registry) AddFlight(f *model.Flight) error {
	r.mu.Lock()

	if _, exists := r.flights[f.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrFlightExists, f.ID)
	}
	r.flights[f.ID] = f
	r.order = append(r.order, f.ID)
	if a, ok := r.airlines[f.Aircraft.Airline]; ok {
		a.ActiveFleet++
	}
	event := Event{Type: EventFlightAdded, FlightID: f.ID, Status: f.Status}
	subs := r.snapshotSubsLocked()
	r.mu.Unlock()

	// Notify outside the lock to avoid re-entrant deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// GetFlight returns the flight with the given ID, or nil if not found.
func (r *Registry) GetFlight(id string) *model.Flight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flights[id]
}

// ListFlights returns all flights in insertion order.
func (r *Registry) ListFlights() []*model.Flight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Flight, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.flights[id])
	}
	return out
}

// ListByStatus returns flights currently in the given status.
func (r *Registry) ListByStatus(status model.FlightStatus) []*model.Flight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Flight
	for _, id := range r.order {
		if f := r.flights[id]; f.Status == status {
			out = append(out, f)
		}
	}
	return out
}

// ListLive returns flights that are ACTIVE or EMERGENCY.
func (r *Registry) ListLive() []*model.Flight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Flight
	for _, id := range r.order {
		if f := r.flights[id]; f.Status.IsLive() {
			out = append(out, f)
		}
	}
	return out
}

// CountLiveCargo returns how many cargo flights are live right now, the
// quantity the cargo-presence invariant watches.
func (r *Registry) CountLiveCargo() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, f := range r.flights {
		if f.Status.IsLive() && f.Aircraft.Type == model.TypeCargo {
			n++
		}
	}
	return n
}

// SetStatus transitions a flight's status, enforcing the allowed graph.
// Terminal flights release one airframe back to their airline's fleet.
func (r *Registry) SetStatus(id string, status model.FlightStatus, reason string) error {
	r.mu.Lock()

	f, ok := r.flights[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrFlightNotFound, id)
	}
	if !f.CanTransitionTo(status) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s for %q", ErrInvalidStatus, f.Status, status, id)
	}
	wasTerminal := f.Status.IsTerminal()
	f.Status = status
	if reason != "" {
		f.StatusReason = reason
	}
	if status.IsTerminal() && !wasTerminal {
		if a, ok := r.airlines[f.Aircraft.Airline]; ok && a.ActiveFleet > 0 {
			a.ActiveFleet--
		}
	}
	event := Event{Type: EventStatusChanged, FlightID: id, Status: status}
	subs := r.snapshotSubsLocked()
	r.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Airline returns the airline with the given name, or nil.
func (r *Registry) Airline(name string) *model.Airline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.airlines[name]
}

// ListAirlines returns the full roster.
func (r *Registry) ListAirlines() []*model.Airline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Airline, 0, len(r.airlines))
	for _, a := range r.airlines {
		out = append(out, a)
	}
	return out
}

// PickAirline chooses a carrier with spare fleet capacity, preferring those
// whose primary type matches. It satisfies core.AirlinePicker.
func (r *Registry) PickAirline(preferred model.AircraftType) (*model.Airline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var fallback *model.Airline
	for _, a := range r.airlines {
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
	return nil, fmt.Errorf("no airline with capacity for %s", preferred)
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function; calling it more than once is harmless.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token := r.nextSub
	r.nextSub++
	r.subs[token] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, token)
	}
}

// snapshotSubsLocked copies the current subscribers so events can be
// delivered outside the lock. Callers must hold mu.
func (r *Registry) snapshotSubsLocked() []func(Event) {
	out := make([]func(Event), 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}
