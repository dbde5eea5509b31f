package core

import (
	"time"

	"github.com/towerworks/atc-simulator/model"
)

// BuildFlightPlan produces the ordered (phase-target, offset) table a flight
// follows after activation. Arrival and departure plans differ only in their
// offsets; emergency plans run the same steps at half pace. The runway is
// released once the aircraft has rolled out (arrivals) or established climb
// (departures); the final step completes the flight.
func BuildFlightPlan(dir model.Direction, emergency bool) []model.PlanStep {
	at := func(secs int) time.Duration {
		d := time.Duration(secs) * time.Second
		if emergency {
			d /= 2
		}
		return d
	}

	if dir.IsArrival() {
		return []model.PlanStep{
			{TargetPhase: model.PhaseApproach, Offset: at(30)},
			{TargetPhase: model.PhaseLanding, Offset: at(60)},
			{TargetPhase: model.PhaseTaxiIn, Offset: at(90), ReleasesRunway: true},
			{TargetPhase: model.PhaseAtGateArrival, Offset: at(120)},
			{TargetPhase: model.PhaseAtGateArrival, Offset: at(150), Completes: true},
		}
	}
	return []model.PlanStep{
		{TargetPhase: model.PhaseTaxiOut, Offset: at(30)},
		{TargetPhase: model.PhaseTakeoffRoll, Offset: at(60)},
		{TargetPhase: model.PhaseClimb, Offset: at(75)},
		{TargetPhase: model.PhaseCruise, Offset: at(90), ReleasesRunway: true},
		{TargetPhase: model.PhaseCruise, Offset: at(120), Completes: true},
	}
}

// PlanDuration returns the offset of the last plan step, i.e. the expected
// time from activation to completion.
func PlanDuration(plan []model.PlanStep) time.Duration {
	if len(plan) == 0 {
		return 0
	}
	return plan[len(plan)-1].Offset
}

// PhaseDuration returns how long the flight is expected to spend in the
// phase entered by step i, derived from the gap to the following step. Used
// to drive the landing decay and takeoff ramp profiles.
func PhaseDuration(plan []model.PlanStep, i int) time.Duration {
	if i < 0 || i >= len(plan)-1 {
		return 0
	}
	return plan[i+1].Offset - plan[i].Offset
}
