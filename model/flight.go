package model

import "time"

// FlightStatus tracks a flight through its lifecycle. Completed, canceled,
// and diverted are terminal; no further transitions are accepted.
type FlightStatus int

const (
	StatusScheduled FlightStatus = iota
	StatusActive
	StatusEmergency
	StatusCompleted
	StatusCanceled
	StatusDiverted
)

func (s FlightStatus) String() string {
	switch s {
	case StatusScheduled:
		return "SCHEDULED"
	case StatusActive:
		return "ACTIVE"
	case StatusEmergency:
		return "EMERGENCY"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCanceled:
		return "CANCELED"
	case StatusDiverted:
		return "DIVERTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the status accepts no further transitions.
func (s FlightStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusDiverted
}

// IsLive reports whether the flight is currently operating in the system.
func (s FlightStatus) IsLive() bool {
	return s == StatusActive || s == StatusEmergency
}

// PlanStep is one entry in a flight plan: advance to the next phase (or
// complete the flight) once Offset has elapsed since activation. The plan
// is a plain data table interpreted by the orchestrator, so it carries no
// captured state and can be inspected by tests.
type PlanStep struct {
	// TargetPhase is the phase the aircraft should be in after the step.
	// It is informational; the phase machine always advances along the
	// fixed sequence.
	TargetPhase FlightPhase
	// Offset is the delay from flight activation to this step.
	Offset time.Duration
	// ReleasesRunway marks the step after which the runway is no longer
	// needed (landing rolled out, or climb established).
	ReleasesRunway bool
	// Completes marks the final step, which ends the flight.
	Completes bool
}

// Flight wraps one Aircraft and its plan. Fields are guarded by the control
// state's coarse lock; the Flight itself carries no mutex.
type Flight struct {
	ID        string
	Aircraft  *Aircraft
	Status    FlightStatus
	Emergency bool

	ScheduledAt           time.Time
	ActivatedAt           time.Time
	EstimatedCompletionAt time.Time

	// StatusReason records why a flight was canceled or diverted.
	StatusReason string

	Plan     []PlanStep
	PlanStep int
}

// Delay returns how long past its scheduled time the flight activated, or
// how long it has been waiting if it is still scheduled at now.
func (f *Flight) Delay(now time.Time) time.Duration {
	switch {
	case !f.ActivatedAt.IsZero():
		d := f.ActivatedAt.Sub(f.ScheduledAt)
		if d < 0 {
			return 0
		}
		return d
	case f.Status == StatusScheduled && now.After(f.ScheduledAt):
		return now.Sub(f.ScheduledAt)
	default:
		return 0
	}
}

// CanTransitionTo validates a status change against the allowed graph.
func (f *Flight) CanTransitionTo(next FlightStatus) bool {
	if f.Status.IsTerminal() {
		return false
	}
	switch next {
	case StatusActive, StatusEmergency:
		return f.Status == StatusScheduled || f.Status.IsLive()
	case StatusCompleted, StatusCanceled, StatusDiverted:
		return true
	default:
		return false
	}
}

// Retryable reports whether a denied flight should stay in the retry queue.
func (f *Flight) Retryable() bool {
	return !f.Status.IsTerminal() && !f.Aircraft.HasRunway
}
