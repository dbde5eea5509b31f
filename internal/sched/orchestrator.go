// Package sched runs the control loops that drive the airport simulation:
// the tick-driven flight lifecycle, traffic generation, speed monitoring,
// and the denied-runway retry queue.
package sched

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/towerworks/atc-simulator/core"
	"github.com/towerworks/atc-simulator/internal/logging"
	"github.com/towerworks/atc-simulator/internal/observability"
	"github.com/towerworks/atc-simulator/internal/sim/state"
	"github.com/towerworks/atc-simulator/model"
	"github.com/towerworks/atc-simulator/timectrl"
)

// Status is the orchestrator's lifecycle state.
type Status int

const (
	StatusInitialized Status = iota
	StatusRunning
	StatusPaused
	StatusStopped
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "INITIALIZED"
	case StatusRunning:
		return "RUNNING"
	case StatusPaused:
		return "PAUSED"
	case StatusStopped:
		return "STOPPED"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Config tunes the orchestrator's loops. Zero values are replaced with the
// defaults below.
type Config struct {
	// AllowOverflow lets commercial traffic use RWY_C when its directional
	// runway is busy.
	AllowOverflow bool
	// RetryInterval is the wall-clock cadence of the denied-queue retry
	// loop.
	RetryInterval time.Duration
	// RetryBatch bounds how many denied flights one retry cycle attempts.
	RetryBatch int
	// MonitorInterval is the wall-clock cadence of the speed monitoring
	// sweep.
	MonitorInterval time.Duration
	// GenerateInterval is the wall-clock cadence at which the generator is
	// polled; the generator itself enforces the per-direction sim-time
	// intervals.
	GenerateInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.RetryInterval <= 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
	if c.RetryBatch <= 0 {
		c.RetryBatch = 3
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 100 * time.Millisecond
	}
	if c.GenerateInterval <= 0 {
		c.GenerateInterval = 50 * time.Millisecond
	}
	return c
}

// Deps collects the orchestrator's collaborators. Clock, State, Runways,
// Generator, Machine, Monitor, and Injector are required; the rest are
// optional.
type Deps struct {
	Clock     *timectrl.TimeController
	State     *state.ControlState
	Runways   *core.RunwayPool
	Generator *core.FlightGenerator
	Machine   *core.PhaseMachine
	Monitor   *core.ViolationMonitor
	Injector  *core.Injector

	Log         logging.Logger
	Metrics     *observability.SimCollector
	LoopMetrics *observability.SchedulerCollector
}

// Orchestrator owns the simulation's goroutines. The tick listener runs on
// the time controller's goroutine; generation, monitoring, and retry each
// run on their own, all parked by the controller's pause gate and joined on
// shutdown.
type Orchestrator struct {
	cfg Config

	clock     *timectrl.TimeController
	state     *state.ControlState
	runways   *core.RunwayPool
	generator *core.FlightGenerator
	machine   *core.PhaseMachine
	monitor   *core.ViolationMonitor
	injector  *core.Injector

	log         logging.Logger
	metrics     *observability.SimCollector
	loopMetrics *observability.SchedulerCollector

	mu            sync.Mutex
	status        Status
	stopRequested bool
	// retrying holds flights currently between dequeue and their retry
	// outcome, so the tick listener does not race the retry loop for them.
	retrying map[string]struct{}

	quit chan struct{}
	wg   sync.WaitGroup
}

// New wires an orchestrator and registers its tick listener. Call before
// the clock starts.
func New(cfg Config, deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = logging.Noop()
	}
	o := &Orchestrator{
		cfg:         cfg.withDefaults(),
		clock:       deps.Clock,
		state:       deps.State,
		runways:     deps.Runways,
		generator:   deps.Generator,
		machine:     deps.Machine,
		monitor:     deps.Monitor,
		injector:    deps.Injector,
		log:         log,
		metrics:     deps.Metrics,
		loopMetrics: deps.LoopMetrics,
		status:      StatusInitialized,
		retrying:    make(map[string]struct{}),
		quit:        make(chan struct{}),
	}
	o.clock.AddListener(o.onTick)
	return o
}

// Status returns the orchestrator's lifecycle state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Run starts the clock and the control loops for the given simulation
// duration. The returned channel closes once the run ends and every loop
// has joined. A non-positive duration runs until Stop.
func (o *Orchestrator) Run(duration time.Duration) <-chan struct{} {
	o.mu.Lock()
	o.status = StatusRunning
	o.mu.Unlock()

	clockDone := o.clock.Start(duration)

	o.wg.Add(3)
	go o.generationLoop()
	go o.monitorLoop()
	go o.retryLoop()

	finished := make(chan struct{})
	go func() {
		<-clockDone
		o.clock.Stop()
		close(o.quit)
		o.wg.Wait()

		o.mu.Lock()
		if o.stopRequested {
			o.status = StatusStopped
		} else {
			o.status = StatusCompleted
		}
		o.mu.Unlock()
		close(finished)
	}()
	return finished
}

// Pause closes the gate: time stops and every loop parks.
func (o *Orchestrator) Pause() {
	o.clock.Pause()
	o.mu.Lock()
	if o.status == StatusRunning {
		o.status = StatusPaused
	}
	o.mu.Unlock()
}

// Resume reopens the gate.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	if o.status == StatusPaused {
		o.status = StatusRunning
	}
	o.mu.Unlock()
	o.clock.Resume()
}

// Stop ends the run early. It returns immediately; wait on the channel from
// Run for the loops to join.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopRequested = true
	o.mu.Unlock()
	o.clock.Stop()
}

// onTick advances the simulation by one step: activate flights that are
// due, then walk the live ones through their plans. Runs on the clock
// goroutine.
func (o *Orchestrator) onTick(simTime time.Time) {
	o.activateDue(simTime)
	o.advanceLive(simTime)
}

func (o *Orchestrator) activateDue(simTime time.Time) {
	var due []*model.Flight
	o.state.WithReadLock(func() error {
		for _, f := range o.state.Registry().ListByStatus(model.StatusScheduled) {
			if f.ScheduledAt.After(simTime) || f.Aircraft.HasRunway {
				continue
			}
			due = append(due, f)
		}
		return nil
	})
	// Emergencies contending for a strip this tick go first.
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].Emergency && !due[j].Emergency
	})

	for _, f := range due {
		if o.state.IsQueued(f.ID) || o.inRetry(f.ID) {
			continue
		}
		if o.tryActivate(f, simTime) {
			continue
		}
		o.state.EnqueueDenied(f)
		if o.metrics != nil {
			o.metrics.AssignmentsDenied.Inc()
		}
		o.log.Info(context.Background(), "no runway available, flight queued",
			logging.String("flight", f.ID),
			logging.String("direction", f.Aircraft.Direction.String()),
			logging.String("type", f.Aircraft.Type.String()),
		)
	}
}

// tryActivate assigns a runway and moves the flight to ACTIVE or EMERGENCY.
// On failure nothing changes and the caller decides whether to queue.
func (o *Orchestrator) tryActivate(f *model.Flight, simTime time.Time) bool {
	var assigned *core.Runway
	for _, r := range o.candidateRunways(f.Aircraft) {
		if r == nil {
			continue
		}
		if err := r.TryAssign(f.Aircraft, o.cfg.AllowOverflow); err == nil {
			assigned = r
			break
		}
	}
	if assigned == nil {
		return false
	}

	o.state.WithLock(func() error {
		f.ActivatedAt = simTime
		f.EstimatedCompletionAt = simTime.Add(core.PlanDuration(f.Plan))
		f.Aircraft.AssignedRunway = assigned.ID()
		f.Aircraft.HasRunway = true
		return nil
	})

	status := model.StatusActive
	if f.Emergency {
		status = model.StatusEmergency
	}
	if err := o.state.SetFlightStatus(f.ID, status, ""); err != nil {
		assigned.Release(f.Aircraft.ID)
		o.state.WithLock(func() error {
			f.Aircraft.AssignedRunway = ""
			f.Aircraft.HasRunway = false
			return nil
		})
		return false
	}

	o.state.RecordAssignment()
	if o.metrics != nil {
		o.metrics.RunwayAssignments.WithLabelValues(string(assigned.ID())).Inc()
		o.metrics.SetRunwayOccupied(string(assigned.ID()), true)
	}
	o.log.Info(context.Background(), "flight activated",
		logging.String("flight", f.ID),
		logging.String("runway", string(assigned.ID())),
		logging.String("status", status.String()),
	)

	// The initial phase gets the same injection rolls as every later one:
	// HOLDING for arrivals, the gate for departures.
	var fault bool
	o.state.WithLock(func() error {
		if o.injector.MaybeInjectViolation(f.Aircraft) {
			o.log.Warn(context.Background(), "speed violation injected",
				logging.String("flight", f.ID),
				logging.String("phase", f.Aircraft.CurrentPhase.String()),
				logging.Float64("speed", f.Aircraft.CurrentSpeed),
			)
		}
		fault = o.injector.MaybeInjectGroundFault(f.Aircraft)
		return nil
	})
	if fault {
		o.failGround(f)
	}
	return true
}

func (o *Orchestrator) advanceLive(simTime time.Time) {
	var completed, faulted []*model.Flight

	for _, f := range o.state.Registry().ListLive() {
		var complete, fault bool
		o.state.WithLock(func() error {
			if f.PlanStep >= len(f.Plan) {
				return nil
			}
			a := f.Aircraft
			elapsed := simTime.Sub(f.ActivatedAt)
			step := f.Plan[f.PlanStep]

			phaseStart := time.Duration(0)
			if f.PlanStep > 0 {
				phaseStart = f.Plan[f.PlanStep-1].Offset
			}
			o.machine.ProgressSpeed(a, elapsed-phaseStart, step.Offset-phaseStart)

			if elapsed < step.Offset {
				return nil
			}

			if step.TargetPhase != a.CurrentPhase {
				if err := o.machine.Advance(a); err == nil {
					if o.injector.MaybeInjectViolation(a) {
						o.log.Warn(context.Background(), "speed violation injected",
							logging.String("flight", f.ID),
							logging.String("phase", a.CurrentPhase.String()),
							logging.Float64("speed", a.CurrentSpeed),
						)
					}
					if o.injector.MaybeInjectGroundFault(a) {
						fault = true
					}
				}
			}
			if step.ReleasesRunway {
				o.releaseRunwayLocked(a)
			}
			f.PlanStep++
			if step.Completes {
				complete = true
			}
			return nil
		})

		switch {
		case fault:
			faulted = append(faulted, f)
		case complete:
			completed = append(completed, f)
		}
	}

	for _, f := range completed {
		if err := o.state.SetFlightStatus(f.ID, model.StatusCompleted, ""); err != nil {
			continue
		}
		o.releaseRunway(f.Aircraft)
		o.monitor.Forget(f.Aircraft.ID)
		o.log.Info(context.Background(), "flight completed",
			logging.String("flight", f.ID),
			logging.Duration("delay", f.Delay(simTime)),
		)
	}
	for _, f := range faulted {
		o.failGround(f)
	}
}

// failGround cancels a flight struck by a ground fault and frees its
// runway.
func (o *Orchestrator) failGround(f *model.Flight) {
	if err := o.state.SetFlightStatus(f.ID, model.StatusCanceled, core.ErrGroundFault.Error()); err != nil {
		return
	}
	o.releaseRunway(f.Aircraft)
	o.state.RecordGroundFault()
	o.monitor.Forget(f.Aircraft.ID)
	if o.metrics != nil {
		o.metrics.GroundFaults.Inc()
	}
	o.log.Warn(context.Background(), "ground fault, flight canceled",
		logging.String("flight", f.ID),
		logging.String("phase", f.Aircraft.CurrentPhase.String()),
	)
}

func (o *Orchestrator) releaseRunway(a *model.Aircraft) {
	o.state.WithLock(func() error {
		o.releaseRunwayLocked(a)
		return nil
	})
}

// releaseRunwayLocked frees the aircraft's runway and clears its runway
// fields. Callers must hold the coarse state lock; the runway's own lock is
// leaf-level so taking it here preserves the lock ordering.
func (o *Orchestrator) releaseRunwayLocked(a *model.Aircraft) {
	if !a.HasRunway {
		return
	}
	released := a.AssignedRunway
	if !o.runways.Release(released, a.ID) {
		return
	}
	a.AssignedRunway = ""
	a.HasRunway = false
	if o.metrics != nil {
		o.metrics.SetRunwayOccupied(string(released), false)
	}
}

// generationLoop polls the flight generator and registers whatever traffic
// is due.
func (o *Orchestrator) generationLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.GenerateInterval)
	defer ticker.Stop()

	for {
		if !o.clock.WaitIfPaused() {
			return
		}
		select {
		case <-o.quit:
			return
		case <-ticker.C:
		}

		for _, f := range o.generator.Generate(o.clock.Now()) {
			o.admitFlight(f)
		}
	}
}

func (o *Orchestrator) admitFlight(f *model.Flight) {
	if err := o.state.AddFlight(f); err != nil {
		o.log.Error(context.Background(), "flight admission failed",
			logging.String("flight", f.ID),
			logging.String("error", err.Error()),
		)
		return
	}
	if o.metrics != nil {
		o.metrics.FlightsGenerated.WithLabelValues(
			f.Aircraft.Direction.String(), f.Aircraft.Type.String(),
		).Inc()
	}
	o.log.Info(context.Background(), "flight generated",
		logging.String("flight", f.ID),
		logging.String("airline", f.Aircraft.Airline),
		logging.String("direction", f.Aircraft.Direction.String()),
		logging.String("type", f.Aircraft.Type.String()),
		logging.Any("emergency", f.Emergency),
	)
}

// noticeJob pairs a detected violation with the flight context billing
// needs.
type noticeJob struct {
	rec      model.ViolationRecord
	flightID string
	category model.AircraftType
}

// monitorLoop sweeps live aircraft for speed violations and keeps the
// cargo-presence invariant. Detection runs under the coarse lock; notice
// issuance happens after it is dropped.
func (o *Orchestrator) monitorLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.MonitorInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		if !o.clock.WaitIfPaused() {
			return
		}
		select {
		case <-o.quit:
			return
		case <-ticker.C:
		}

		o.monitorSweep(ctx, o.clock.Now())
	}
}

// monitorSweep observes every live aircraft under the coarse lock, then
// issues notices for whatever violated after the lock is dropped.
func (o *Orchestrator) monitorSweep(ctx context.Context, now time.Time) {
	var jobs []noticeJob
	o.state.WithLock(func() error {
		for _, f := range o.state.Registry().ListLive() {
			rec := o.monitor.Observe(ctx, f.Aircraft, f.ID, now)
			if rec != nil {
				jobs = append(jobs, noticeJob{rec: *rec, flightID: f.ID, category: f.Aircraft.Type})
			}
		}
		return nil
	})

	for _, j := range jobs {
		o.state.RecordViolation()
		if o.metrics != nil {
			o.metrics.Violations.WithLabelValues(j.rec.Airline, j.rec.Phase.String()).Inc()
		}
		o.monitor.Issue(ctx, core.NoticeRequestFor(j.rec, j.flightID, j.category))
		if o.metrics != nil {
			o.metrics.NoticesIssued.Inc()
		}
	}

	o.ensureCargoPresence(now)
}

// ensureCargoPresence synthesizes a cargo flight when none is live,
// scheduled, or queued, alternating between arrival and departure traffic.
func (o *Orchestrator) ensureCargoPresence(now time.Time) {
	if n := o.state.Registry().CountLiveCargo(); n > 0 {
		if n > 1 {
			o.log.Debug(context.Background(), "multiple cargo flights live", logging.Int("count", n))
		}
		return
	}
	for _, f := range o.state.Registry().ListByStatus(model.StatusScheduled) {
		if f.Aircraft.Type == model.TypeCargo {
			return
		}
	}

	dir := model.East
	if o.state.Stats().TotalFlights%2 == 0 {
		dir = model.South
	}
	f, err := o.generator.GenerateForDirection(dir, model.TypeCargo, now)
	if err != nil {
		// Every cargo-capable fleet is saturated; try next sweep.
		return
	}
	o.admitFlight(f)
	if o.loopMetrics != nil {
		o.loopMetrics.IncCargoSynthesized()
	}
}

// retryLoop drains the denied queue in bounded batches, reattempting runway
// assignment and requeuing what still cannot get a strip.
func (o *Orchestrator) retryLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		if !o.clock.WaitIfPaused() {
			return
		}
		select {
		case <-o.quit:
			return
		case <-ticker.C:
		}

		o.retryCycle()
	}
}

// retryCycle reattempts runway assignment for one bounded batch from the
// denied queue. Flights are marked as retrying inside the dequeue, before
// the queue lock drops, so the tick listener can never see one as neither
// queued nor claimed and activate it concurrently.
func (o *Orchestrator) retryCycle() {
	start := time.Now()
	batch := o.state.DequeueDenied(o.cfg.RetryBatch, func(f *model.Flight) {
		o.markRetry(f.ID)
	})
	for _, f := range batch {
		if o.loopMetrics != nil {
			o.loopMetrics.IncRetries()
		}
		if o.tryActivate(f, o.clock.Now()) {
			o.unmarkRetry(f.ID)
			continue
		}
		o.state.EnqueueDenied(f)
		o.unmarkRetry(f.ID)
		if o.loopMetrics != nil {
			o.loopMetrics.IncRequeued()
		}
	}
	if o.loopMetrics != nil && len(batch) > 0 {
		o.loopMetrics.ObserveRetryCycle(time.Since(start))
	}
}

func (o *Orchestrator) markRetry(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retrying[id] = struct{}{}
}

func (o *Orchestrator) unmarkRetry(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.retrying, id)
}

func (o *Orchestrator) inRetry(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.retrying[id]
	return ok
}
