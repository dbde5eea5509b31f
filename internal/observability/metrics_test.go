package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewSimCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector error: %v", err)
	}
	// A second construction against the same registry reuses the existing
	// collectors instead of failing.
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector (second) error: %v", err)
	}

	first.AssignmentsDenied.Inc()
	second.AssignmentsDenied.Inc()
	if got := counterValue(t, first.AssignmentsDenied); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}

func TestSetFlightCountsDrivesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector error: %v", err)
	}

	c.SetFlightCounts(map[string]int{"ACTIVE": 3, "SCHEDULED": 1}, 2)

	if got := gaugeValue(t, c.FlightsByStatus.WithLabelValues("ACTIVE")); got != 3 {
		t.Fatalf("ACTIVE gauge = %v, want 3", got)
	}
	if got := gaugeValue(t, c.DeniedQueueDepth); got != 2 {
		t.Fatalf("queue depth gauge = %v, want 2", got)
	}
}

func TestSetRunwayOccupied(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector error: %v", err)
	}

	c.SetRunwayOccupied("RWY_A", true)
	if got := gaugeValue(t, c.RunwayOccupied.WithLabelValues("RWY_A")); got != 1 {
		t.Fatalf("occupied gauge = %v, want 1", got)
	}
	c.SetRunwayOccupied("RWY_A", false)
	if got := gaugeValue(t, c.RunwayOccupied.WithLabelValues("RWY_A")); got != 0 {
		t.Fatalf("occupied gauge = %v, want 0", got)
	}
}

func TestSchedulerCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("NewSchedulerCollector error: %v", err)
	}

	c.IncRetries()
	c.IncRequeued()
	c.IncCargoSynthesized()
	c.ObserveRetryCycle(5 * time.Millisecond)

	if got := counterValue(t, c.RetriesTotal); got != 1 {
		t.Fatalf("retries = %v, want 1", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "scheduler_retry_cycle_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Fatalf("retry cycle histogram not registered")
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("metric write error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("metric write error: %v", err)
	}
	return m.GetGauge().GetValue()
}
