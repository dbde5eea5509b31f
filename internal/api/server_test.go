package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/towerworks/atc-simulator/core"
	"github.com/towerworks/atc-simulator/internal/billing"
	"github.com/towerworks/atc-simulator/internal/logging"
	"github.com/towerworks/atc-simulator/internal/sched"
	"github.com/towerworks/atc-simulator/internal/sim/state"
	"github.com/towerworks/atc-simulator/model"
	"github.com/towerworks/atc-simulator/registry"
	"github.com/towerworks/atc-simulator/timectrl"
)

func newTestServer(t *testing.T) (*Server, *state.ControlState, *billing.Service) {
	t.Helper()

	airlines := []*model.Airline{
		{Name: "PIA", PrimaryType: model.TypeCommercial, TotalAircraft: 10, MaxFlights: 10},
		{Name: "FedEx", PrimaryType: model.TypeCargo, TotalAircraft: 10, MaxFlights: 10},
	}
	reg := registry.New(airlines)
	st := state.New(reg, logging.Noop())

	machine := core.NewPhaseMachine(1)
	injector := core.NewInjector(2)
	injector.SetProbabilities(0, 0)
	monitor := core.NewViolationMonitor(nil, logging.Noop())
	runways := core.NewRunwayPool()
	clock := timectrl.NewTimeController(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.Second, timectrl.Accelerated)

	orch := sched.New(sched.Config{}, sched.Deps{
		Clock:     clock,
		State:     st,
		Runways:   runways,
		Generator: core.NewFlightGenerator(reg, machine, 3),
		Machine:   machine,
		Monitor:   monitor,
		Injector:  injector,
		Log:       logging.Noop(),
	})

	bills := billing.NewService(logging.Noop())
	return NewServer(st, runways, monitor, bills, orch, logging.Noop()), st, bills
}

func addFlight(t *testing.T, st *state.ControlState, id string, typ model.AircraftType, dir model.Direction, airline string) *model.Flight {
	t.Helper()
	f := &model.Flight{
		ID:          id,
		Aircraft:    model.NewAircraft(id, typ, dir, airline),
		Status:      model.StatusScheduled,
		ScheduledAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Plan:        core.BuildFlightPlan(dir, false),
	}
	if err := st.AddFlight(f); err != nil {
		t.Fatalf("AddFlight error: %v", err)
	}
	return f
}

func get(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return rec
}

func TestFlightsEndpoint(t *testing.T) {
	srv, st, _ := newTestServer(t)
	addFlight(t, st, "PI-001", model.TypeCommercial, model.North, "PIA")
	addFlight(t, st, "FE-001", model.TypeCargo, model.East, "FedEx")
	if err := st.SetFlightStatus("FE-001", model.StatusActive, ""); err != nil {
		t.Fatalf("SetFlightStatus error: %v", err)
	}
	router := srv.Router()

	var all []map[string]any
	if rec := get(t, router, "/api/flights", &all); rec.Code != http.StatusOK {
		t.Fatalf("GET /api/flights = %d", rec.Code)
	}
	if len(all) != 2 {
		t.Fatalf("flights = %d, want 2", len(all))
	}

	var active []map[string]any
	get(t, router, "/api/flights?status=active", &active)
	if len(active) != 1 || active[0]["id"] != "FE-001" {
		t.Fatalf("status filter wrong: %+v", active)
	}

	var one map[string]any
	if rec := get(t, router, "/api/flights/PI-001", &one); rec.Code != http.StatusOK {
		t.Fatalf("GET /api/flights/PI-001 = %d", rec.Code)
	}
	if one["airline"] != "PIA" || one["phase"] != "HOLDING" {
		t.Fatalf("flight view wrong: %+v", one)
	}

	if rec := get(t, router, "/api/flights/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing flight returned %d, want 404", rec.Code)
	}
}

func TestRunwaysEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var views []map[string]any
	if rec := get(t, srv.Router(), "/api/runways", &views); rec.Code != http.StatusOK {
		t.Fatalf("GET /api/runways = %d", rec.Code)
	}
	if len(views) != 3 {
		t.Fatalf("runways = %d, want 3", len(views))
	}
	if views[0]["id"] != "RWY_A" || views[0]["status"] != "AVAILABLE" {
		t.Fatalf("runway view wrong: %+v", views[0])
	}
}

func TestNoticesEndpointFilters(t *testing.T) {
	srv, _, bills := newTestServer(t)
	_, err := bills.IssueNotice(context.Background(), core.NoticeRequest{
		AircraftID: "PA-001", Airline: "PIA", FlightNumber: "PA-001",
		Category: model.TypeCommercial, RecordedSpeed: 650,
		MinAllowed: 400, MaxAllowed: 600, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("IssueNotice error: %v", err)
	}
	router := srv.Router()

	var notices []map[string]any
	get(t, router, "/api/notices", &notices)
	if len(notices) != 1 || notices[0]["status"] != "UNPAID" {
		t.Fatalf("notices wrong: %+v", notices)
	}

	notices = nil
	get(t, router, "/api/notices?airline=FedEx", &notices)
	if len(notices) != 0 {
		t.Fatalf("airline filter returned %d notices, want 0", len(notices))
	}
}

func TestQueuesAndSummaryEndpoints(t *testing.T) {
	srv, st, _ := newTestServer(t)
	f := addFlight(t, st, "PI-001", model.TypeCommercial, model.North, "PIA")
	st.EnqueueDenied(f)
	router := srv.Router()

	var queues map[string]any
	get(t, router, "/api/queues", &queues)
	if queues["depth"].(float64) != 1 {
		t.Fatalf("queue depth = %v, want 1", queues["depth"])
	}

	var summary map[string]any
	if rec := get(t, router, "/api/summary", &summary); rec.Code != http.StatusOK {
		t.Fatalf("GET /api/summary = %d", rec.Code)
	}
	if summary["status"] != "INITIALIZED" {
		t.Fatalf("summary status = %v", summary["status"])
	}
}

func TestControlEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/control/pause", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/control/pause = %d", rec.Code)
	}

	// Pause before Run leaves the orchestrator INITIALIZED but closes the
	// clock gate; resume reopens it.
	req = httptest.NewRequest(http.MethodPost, "/api/control/resume", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/control/resume = %d", rec.Code)
	}
}
