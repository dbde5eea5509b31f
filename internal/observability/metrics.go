package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation surface:
// entity gauges driven by the control state and counters driven by the
// scheduler's event paths.
type SimCollector struct {
	gatherer prometheus.Gatherer

	FlightsByStatus  *prometheus.GaugeVec
	RunwayOccupied   *prometheus.GaugeVec
	DeniedQueueDepth prometheus.Gauge

	FlightsGenerated  *prometheus.CounterVec
	RunwayAssignments *prometheus.CounterVec
	AssignmentsDenied prometheus.Counter
	Violations        *prometheus.CounterVec
	NoticesIssued     prometheus.Counter
	GroundFaults      prometheus.Counter
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	flights := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atc_flights",
		Help: "Current number of flights, labeled by lifecycle status.",
	}, []string{"status"})
	flights, err := registerGaugeVec(reg, flights, "atc_flights")
	if err != nil {
		return nil, err
	}

	occupied := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atc_runway_occupied",
		Help: "1 when the runway is occupied, 0 otherwise, labeled by runway.",
	}, []string{"runway"})
	occupied, err = registerGaugeVec(reg, occupied, "atc_runway_occupied")
	if err != nil {
		return nil, err
	}

	queueDepth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atc_denied_queue_depth",
		Help: "Current number of flights waiting in the denied-runway queue.",
	}), "atc_denied_queue_depth")
	if err != nil {
		return nil, err
	}

	generated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atc_flights_generated_total",
		Help: "Total flights generated, labeled by direction and aircraft type.",
	}, []string{"direction", "type"})
	generated, err = registerCounterVec(reg, generated, "atc_flights_generated_total")
	if err != nil {
		return nil, err
	}

	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atc_runway_assignments_total",
		Help: "Total successful runway assignments, labeled by runway.",
	}, []string{"runway"})
	assignments, err = registerCounterVec(reg, assignments, "atc_runway_assignments_total")
	if err != nil {
		return nil, err
	}

	denied, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atc_assignments_denied_total",
		Help: "Total runway assignment attempts that found no eligible runway.",
	}), "atc_assignments_denied_total")
	if err != nil {
		return nil, err
	}

	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atc_speed_violations_total",
		Help: "Total speed violations recorded, labeled by airline and phase.",
	}, []string{"airline", "phase"})
	violations, err = registerCounterVec(reg, violations, "atc_speed_violations_total")
	if err != nil {
		return nil, err
	}

	notices, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atc_notices_issued_total",
		Help: "Total violation notices handed to the billing collaborator.",
	}), "atc_notices_issued_total")
	if err != nil {
		return nil, err
	}

	faults, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atc_ground_faults_total",
		Help: "Total injected ground faults that canceled a flight.",
	}), "atc_ground_faults_total")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		FlightsByStatus:   flights,
		RunwayOccupied:    occupied,
		DeniedQueueDepth:  queueDepth,
		FlightsGenerated:  generated,
		RunwayAssignments: assignments,
		AssignmentsDenied: denied,
		Violations:        violations,
		NoticesIssued:     notices,
		GroundFaults:      faults,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetFlightCounts satisfies the state package's metrics recorder interface
// so the control state can drive gauges directly from its mutators.
func (c *SimCollector) SetFlightCounts(byStatus map[string]int, queueDepth int) {
	if c == nil {
		return
	}
	if c.FlightsByStatus != nil {
		for status, n := range byStatus {
			c.FlightsByStatus.WithLabelValues(status).Set(float64(n))
		}
	}
	if c.DeniedQueueDepth != nil {
		c.DeniedQueueDepth.Set(float64(queueDepth))
	}
}

// SetRunwayOccupied flips a runway's occupancy gauge.
func (c *SimCollector) SetRunwayOccupied(runway string, occupied bool) {
	if c == nil || c.RunwayOccupied == nil {
		return
	}
	v := 0.0
	if occupied {
		v = 1.0
	}
	c.RunwayOccupied.WithLabelValues(runway).Set(v)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
