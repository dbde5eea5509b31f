package sched

import (
	"github.com/towerworks/atc-simulator/core"
	"github.com/towerworks/atc-simulator/model"
)

// candidateRunways returns the runways to try for an aircraft, in priority
// order. Emergencies get every runway their direction allows, cargo heads
// for the reserved strip first, and commercial traffic sticks to its
// directional runway unless overflow onto RWY_C is enabled.
func (o *Orchestrator) candidateRunways(a *model.Aircraft) []*core.Runway {
	all := o.runways.All()

	switch a.Type {
	case model.TypeEmergency:
		var out []*core.Runway
		for _, r := range all {
			if r.EligibleDirection(a.Direction) {
				out = append(out, r)
			}
		}
		return out

	case model.TypeCargo:
		out := []*core.Runway{o.runways.Get(model.RunwayC)}
		for _, r := range all {
			if r.ID() != model.RunwayC && r.EligibleDirection(a.Direction) {
				out = append(out, r)
			}
		}
		return out

	default:
		var out []*core.Runway
		for _, r := range all {
			if r.ID() == model.RunwayC {
				if o.cfg.AllowOverflow {
					out = append(out, r)
				}
				continue
			}
			if r.EligibleDirection(a.Direction) {
				out = append(out, r)
			}
		}
		return out
	}
}
