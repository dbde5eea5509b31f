package core

import (
	"errors"
	"sync"
	"time"

	"github.com/towerworks/atc-simulator/model"
)

// ErrRunwayUnavailable indicates an assignment attempt against a busy,
// closed, or ineligible runway. It is not fatal; the candidate flight is
// queued for retry.
var ErrRunwayUnavailable = errors.New("runway unavailable")

// Runway is one of the airport's three strips. Assignment and release are
// the only occupancy mutators and are serialized by the runway's own mutex;
// different runways proceed independently. Lock ordering: a runway lock is
// leaf-level; never acquire the control-state lock while holding one.
type Runway struct {
	id model.RunwayID

	mu         sync.Mutex
	status     model.RunwayStatus
	occupantID string

	usageCount     int
	usageTime      time.Duration
	lastAssignedAt time.Time

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// NewRunway constructs an available runway.
func NewRunway(id model.RunwayID) *Runway {
	return &Runway{id: id, status: model.RunwayAvailable, now: time.Now}
}

// ID returns the runway identifier.
func (r *Runway) ID() model.RunwayID { return r.id }

// Status returns the current runway status.
func (r *Runway) Status() model.RunwayStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Occupant returns the ID of the aircraft using the runway, or "".
func (r *Runway) Occupant() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupantID
}

// UsageCount returns how many aircraft have used the runway.
func (r *Runway) UsageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usageCount
}

// UsageTime returns the accumulated occupied time.
func (r *Runway) UsageTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usageTime
}

// EligibleDirection reports whether the runway serves the given direction.
// RWY_A is aligned north-south, RWY_B east-west, RWY_C serves any direction.
func (r *Runway) EligibleDirection(dir model.Direction) bool {
	switch r.id {
	case model.RunwayA:
		return dir == model.North || dir == model.South
	case model.RunwayB:
		return dir == model.East || dir == model.West
	default:
		return true
	}
}

// EligibleType reports whether the runway accepts the aircraft type under
// the strict reservation rule: RWY_C is for cargo and emergency traffic.
// Commercial overflow onto RWY_C is a policy decision made by the scheduler,
// which passes allowOverflow through TryAssign.
func (r *Runway) EligibleType(typ model.AircraftType, allowOverflow bool) bool {
	if r.id != model.RunwayC {
		return true
	}
	return typ == model.TypeCargo || typ == model.TypeEmergency || allowOverflow
}

// TryAssign attempts to give the runway to the aircraft. It fails with
// ErrRunwayUnavailable when the runway is not available or the aircraft is
// not eligible. Only the runway's own occupancy changes here; the aircraft's
// AssignedRunway/HasRunway fields are guarded by the scheduler's coarse lock
// and are the caller's to update.
func (r *Runway) TryAssign(a *model.Aircraft, allowOverflow bool) error {
	if !r.EligibleDirection(a.Direction) || !r.EligibleType(a.Type, allowOverflow) {
		return ErrRunwayUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != model.RunwayAvailable {
		return ErrRunwayUnavailable
	}
	r.status = model.RunwayInUse
	r.occupantID = a.ID
	r.usageCount++
	r.lastAssignedAt = r.now()
	return nil
}

// Release frees the runway if aircraftID is its current occupant. The
// occupied interval is added to the usage time. As with TryAssign, the
// aircraft-side bookkeeping stays with the caller.
func (r *Runway) Release(aircraftID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.occupantID == "" || r.occupantID != aircraftID {
		return false
	}
	r.accumulateUsageLocked()
	r.occupantID = ""
	r.status = model.RunwayAvailable
	return true
}

// SetStatus forces the runway into maintenance or weather closure (or back
// to available). Any occupant is evicted after its usage time is recorded;
// the evicted aircraft ID is returned so the scheduler can requeue its
// flight.
func (r *Runway) SetStatus(status model.RunwayStatus) (evicted string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.occupantID != "" && status != model.RunwayInUse {
		r.accumulateUsageLocked()
		evicted = r.occupantID
		r.occupantID = ""
	}
	r.status = status
	return evicted
}

func (r *Runway) accumulateUsageLocked() {
	if !r.lastAssignedAt.IsZero() {
		if d := r.now().Sub(r.lastAssignedAt); d > 0 {
			r.usageTime += d
		}
		r.lastAssignedAt = time.Time{}
	}
}

// RunwayPool holds the airport's fixed set of runways. The set never changes
// after construction, so the pool itself needs no lock; each runway
// serializes its own occupancy changes.
type RunwayPool struct {
	runways map[model.RunwayID]*Runway
	order   []model.RunwayID
}

// NewRunwayPool builds the standard three-runway pool.
func NewRunwayPool() *RunwayPool {
	p := &RunwayPool{runways: make(map[model.RunwayID]*Runway)}
	for _, id := range model.RunwayIDs() {
		p.runways[id] = NewRunway(id)
		p.order = append(p.order, id)
	}
	return p
}

// Get returns the runway with the given ID, or nil.
func (p *RunwayPool) Get(id model.RunwayID) *Runway {
	return p.runways[id]
}

// All returns the runways in the fixed scan order.
func (p *RunwayPool) All() []*Runway {
	out := make([]*Runway, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.runways[id])
	}
	return out
}

// Release frees the runway with the given ID if aircraftID occupies it.
func (p *RunwayPool) Release(id model.RunwayID, aircraftID string) bool {
	r := p.runways[id]
	if r == nil {
		return false
	}
	return r.Release(aircraftID)
}
