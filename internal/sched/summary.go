package sched

import (
	"time"

	"github.com/towerworks/atc-simulator/internal/sim/state"
)

// RunwayUsage is one runway's utilization over the run.
type RunwayUsage struct {
	Assignments int           `json:"assignments"`
	OccupiedFor time.Duration `json:"occupied_for"`
	Status      string        `json:"status"`
	Occupant    string        `json:"occupant,omitempty"`
}

// Summary is the end-of-run report.
type Summary struct {
	Status  string           `json:"status"`
	Elapsed time.Duration    `json:"elapsed"`
	Stats   state.Statistics `json:"stats"`

	RunwayUsage         map[string]RunwayUsage `json:"runway_usage"`
	QueueDepth          int                    `json:"queue_depth"`
	ViolationsByAirline map[string]int         `json:"violations_by_airline"`
	FinesByAirline      map[string]float64     `json:"fines_by_airline"`
}

// Summarize snapshots the run: totals, runway utilization, and the
// violation ledger per airline.
func (o *Orchestrator) Summarize() Summary {
	s := Summary{
		Status:              o.Status().String(),
		Elapsed:             o.clock.Elapsed(),
		Stats:               o.state.Stats(),
		RunwayUsage:         make(map[string]RunwayUsage),
		QueueDepth:          o.state.QueueDepth(),
		ViolationsByAirline: o.monitor.CountsByAirline(),
		FinesByAirline:      make(map[string]float64),
	}
	for _, r := range o.runways.All() {
		s.RunwayUsage[string(r.ID())] = RunwayUsage{
			Assignments: r.UsageCount(),
			OccupiedFor: r.UsageTime(),
			Status:      r.Status().String(),
			Occupant:    r.Occupant(),
		}
	}
	for airline := range s.ViolationsByAirline {
		s.FinesByAirline[airline] = o.monitor.CalculateFines(airline)
	}
	return s
}
