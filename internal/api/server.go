// Package api exposes the simulation's read-only query surface and a small
// control endpoint over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/towerworks/atc-simulator/core"
	"github.com/towerworks/atc-simulator/internal/billing"
	"github.com/towerworks/atc-simulator/internal/logging"
	"github.com/towerworks/atc-simulator/internal/sched"
	"github.com/towerworks/atc-simulator/internal/sim/state"
	"github.com/towerworks/atc-simulator/model"
)

// Server serves simulation state as JSON.
type Server struct {
	state        *state.ControlState
	runways      *core.RunwayPool
	monitor      *core.ViolationMonitor
	bills        *billing.Service
	orchestrator *sched.Orchestrator
	log          logging.Logger
}

// NewServer wires the query server over the simulation's collaborators.
// bills may be nil when billing is disabled.
func NewServer(st *state.ControlState, runways *core.RunwayPool, monitor *core.ViolationMonitor, bills *billing.Service, orch *sched.Orchestrator, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		state:        st,
		runways:      runways,
		monitor:      monitor,
		bills:        bills,
		orchestrator: orch,
		log:          log,
	}
}

// Router builds the chi router for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/flights", s.handleFlights)
		r.Get("/flights/{id}", s.handleFlight)
		r.Get("/airlines", s.handleAirlines)
		r.Get("/runways", s.handleRunways)
		r.Get("/queues", s.handleQueues)
		r.Get("/violations", s.handleViolations)
		r.Get("/notices", s.handleNotices)
		r.Get("/summary", s.handleSummary)

		r.Post("/control/pause", s.handlePause)
		r.Post("/control/resume", s.handleResume)
		r.Post("/control/stop", s.handleStop)
	})
	return r
}

// flightView is the JSON shape of one flight.
type flightView struct {
	ID        string `json:"id"`
	Airline   string `json:"airline"`
	Type      string `json:"type"`
	Direction string `json:"direction"`
	Status    string `json:"status"`
	Emergency bool   `json:"emergency"`

	Phase  string  `json:"phase"`
	Speed  float64 `json:"speed_kmh"`
	Runway string  `json:"runway,omitempty"`

	ScheduledAt           time.Time     `json:"scheduled_at"`
	ActivatedAt           *time.Time    `json:"activated_at,omitempty"`
	EstimatedCompletionAt *time.Time    `json:"estimated_completion_at,omitempty"`
	Delay                 time.Duration `json:"delay"`

	StatusReason string `json:"status_reason,omitempty"`
}

func (s *Server) flightView(f *model.Flight, now time.Time) flightView {
	v := flightView{
		ID:           f.ID,
		Airline:      f.Aircraft.Airline,
		Type:         f.Aircraft.Type.String(),
		Direction:    f.Aircraft.Direction.String(),
		Status:       f.Status.String(),
		Emergency:    f.Emergency,
		Phase:        f.Aircraft.CurrentPhase.String(),
		Speed:        f.Aircraft.CurrentSpeed,
		ScheduledAt:  f.ScheduledAt,
		Delay:        f.Delay(now),
		StatusReason: f.StatusReason,
	}
	if f.Aircraft.HasRunway {
		v.Runway = string(f.Aircraft.AssignedRunway)
	}
	if !f.ActivatedAt.IsZero() {
		t := f.ActivatedAt
		v.ActivatedAt = &t
	}
	if !f.EstimatedCompletionAt.IsZero() {
		t := f.EstimatedCompletionAt
		v.EstimatedCompletionAt = &t
	}
	return v
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	wantStatus := strings.ToUpper(r.URL.Query().Get("status"))

	var views []flightView
	s.state.WithReadLock(func() error {
		for _, f := range s.state.Registry().ListFlights() {
			if wantStatus != "" && f.Status.String() != wantStatus {
				continue
			}
			views = append(views, s.flightView(f, now))
		}
		return nil
	})
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var view *flightView
	s.state.WithReadLock(func() error {
		if f := s.state.Registry().GetFlight(id); f != nil {
			v := s.flightView(f, time.Now())
			view = &v
		}
		return nil
	})
	if view == nil {
		writeError(w, http.StatusNotFound, "flight not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAirlines(w http.ResponseWriter, r *http.Request) {
	var views []model.Airline
	for _, a := range s.state.Registry().ListAirlines() {
		view := *a
		view.Type = view.PrimaryType.String()
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

type runwayView struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Occupant    string        `json:"occupant,omitempty"`
	UsageCount  int           `json:"usage_count"`
	OccupiedFor time.Duration `json:"occupied_for"`
}

func (s *Server) handleRunways(w http.ResponseWriter, r *http.Request) {
	var views []runwayView
	for _, rw := range s.runways.All() {
		views = append(views, runwayView{
			ID:          string(rw.ID()),
			Status:      rw.Status().String(),
			Occupant:    rw.Occupant(),
			UsageCount:  rw.UsageCount(),
			OccupiedFor: rw.UsageTime(),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	// Snapshot under the read lock, filter by queue membership after; the
	// state lock is not re-entrant.
	type candidate struct {
		id   string
		view flightView
	}
	var scheduled []candidate
	s.state.WithReadLock(func() error {
		for _, f := range s.state.Registry().ListByStatus(model.StatusScheduled) {
			scheduled = append(scheduled, candidate{id: f.ID, view: s.flightView(f, now)})
		}
		return nil
	})

	var queued []flightView
	for _, c := range scheduled {
		if s.state.IsQueued(c.id) {
			queued = append(queued, c.view)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"depth":   s.state.QueueDepth(),
		"flights": queued,
	})
}

type violationView struct {
	AircraftID  string    `json:"aircraft_id"`
	Airline     string    `json:"airline"`
	Phase       string    `json:"phase"`
	ActualSpeed float64   `json:"actual_speed_kmh"`
	MinAllowed  float64   `json:"min_allowed_kmh"`
	MaxAllowed  float64   `json:"max_allowed_kmh"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var recs []model.ViolationRecord
	switch {
	case q.Get("airline") != "":
		recs = s.monitor.ViolationsForAirline(q.Get("airline"))
	case q.Get("aircraft") != "":
		recs = s.monitor.ViolationsForAircraft(q.Get("aircraft"))
	default:
		recs = s.monitor.Violations()
	}

	views := make([]violationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, violationView{
			AircraftID:  rec.AircraftID,
			Airline:     rec.Airline,
			Phase:       rec.Phase.String(),
			ActualSpeed: rec.ActualSpeed,
			MinAllowed:  rec.MinAllowed,
			MaxAllowed:  rec.MaxAllowed,
			Timestamp:   rec.Timestamp,
			Description: rec.Description,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type noticeView struct {
	ID           string    `json:"id"`
	AircraftID   string    `json:"aircraft_id"`
	Airline      string    `json:"airline"`
	FlightNumber string    `json:"flight_number"`
	Category     string    `json:"category"`
	IssuedAt     time.Time `json:"issued_at"`
	DueAt        time.Time `json:"due_at"`
	FineAmount   float64   `json:"fine_amount"`
	ServiceFee   float64   `json:"service_fee"`
	TotalDue     float64   `json:"total_due"`
	Status       string    `json:"status"`
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	if s.bills == nil {
		writeError(w, http.StatusNotFound, "billing disabled")
		return
	}
	q := r.URL.Query()

	var notices []billing.Notice
	switch {
	case q.Get("airline") != "":
		notices = s.bills.NoticesForAirline(q.Get("airline"))
	case q.Get("aircraft") != "":
		notices = s.bills.NoticesForAircraft(q.Get("aircraft"))
	default:
		notices = s.bills.ListNotices()
	}

	views := make([]noticeView, 0, len(notices))
	for _, n := range notices {
		views = append(views, noticeView{
			ID:           n.ID,
			AircraftID:   n.AircraftID,
			Airline:      n.Airline,
			FlightNumber: n.FlightNumber,
			Category:     n.Category.String(),
			IssuedAt:     n.IssuedAt,
			DueAt:        n.DueAt,
			FineAmount:   n.FineAmount,
			ServiceFee:   n.ServiceFee,
			TotalDue:     n.TotalDue,
			Status:       n.Status.String(),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Summarize())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"status": s.orchestrator.Status().String()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"status": s.orchestrator.Status().String()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": s.orchestrator.Status().String()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
