package timectrl

import (
	"sync"
	"time"
)

// SimClock is a read-only view of simulation time. Components depend on
// this abstraction rather than the concrete controller so tests can feed
// them a fixed clock.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Elapsed returns how much simulation time has passed since start.
	Elapsed() time.Duration
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances one tick per wall-clock tick interval.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still
	// stepping by Tick in simulation time.
	Accelerated
)

// TimeController drives simulation time and notifies registered listeners
// on every tick. It also owns the pause gate the scheduler loops park on:
// Pause suspends the tick loop and any goroutine blocked in WaitIfPaused,
// Resume wakes them atomically, and Stop wakes everything for shutdown.
type TimeController struct {
	mu        sync.Mutex
	cond      *sync.Cond
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	elapsed     time.Duration
	paused      bool
	stopped     bool

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	tc := &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
	tc.cond = sync.NewCond(&tc.mu)
	return tc
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.currentTime
}

// Elapsed returns simulation time elapsed since start. Implements SimClock.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.elapsed
}

// SetTime jumps the controller to a specific simulation time.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
	tc.elapsed = t.Sub(tc.StartTime)
}

// AddListener registers a callback invoked on every tick. Listeners must be
// registered before Start.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Pause suspends time advance and parks every loop waiting on the gate.
func (tc *TimeController) Pause() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.paused = true
}

// Resume releases the pause gate, waking all parked loops.
func (tc *TimeController) Resume() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.paused {
		tc.paused = false
		tc.cond.Broadcast()
	}
}

// Stop permanently stops the controller and wakes anything parked on the
// pause gate so it can observe the stop.
func (tc *TimeController) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.stopped = true
	tc.cond.Broadcast()
}

// Paused reports whether the gate is currently closed.
func (tc *TimeController) Paused() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.paused
}

// Stopped reports whether the controller has been stopped.
func (tc *TimeController) Stopped() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.stopped
}

// WaitIfPaused blocks while the controller is paused, yielding the
// processor rather than spinning. It returns false once the controller has
// been stopped; loops use that as their exit signal.
func (tc *TimeController) WaitIfPaused() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for tc.paused && !tc.stopped {
		tc.cond.Wait()
	}
	return !tc.stopped
}

// Start runs the controller for the specified simulation duration in a
// separate goroutine and returns a channel closed when it finishes, either
// by exhausting the duration or by Stop. A non-positive duration runs until
// Stop.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(tc.tickInterval())
		defer ticker.Stop()

		for {
			if !tc.WaitIfPaused() {
				return
			}

			<-ticker.C

			tc.mu.Lock()
			if tc.stopped {
				tc.mu.Unlock()
				return
			}
			if tc.paused {
				tc.mu.Unlock()
				continue
			}
			tc.currentTime = tc.currentTime.Add(tc.Tick)
			tc.elapsed += tc.Tick
			simTime := tc.currentTime
			finished := duration > 0 && tc.elapsed >= duration
			tc.mu.Unlock()

			for _, fn := range tc.listeners {
				fn(simTime)
			}

			if finished {
				return
			}
		}
	}()
	return done
}

// tickInterval maps the mode onto a wall-clock ticker period. Accelerated
// mode still uses a ticker, just a much faster one, which keeps the loop
// shape identical in both modes.
func (tc *TimeController) tickInterval() time.Duration {
	if tc.Mode == Accelerated {
		return time.Millisecond
	}
	return tc.Tick
}
