package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerCollector exposes scheduler-loop Prometheus metrics.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	RetryCycleDuration prometheus.Histogram
	RetriesTotal       prometheus.Counter
	RequeuedTotal      prometheus.Counter
	CargoSynthesized   prometheus.Counter
}

// NewSchedulerCollector registers scheduler metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycleHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_retry_cycle_duration_seconds",
		Help:    "Duration of denied-flight retry cycles.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	cycleHistogram, err := registerHistogram(reg, cycleHistogram, "scheduler_retry_cycle_duration_seconds")
	if err != nil {
		return nil, err
	}

	retries, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_retries_total",
		Help: "Cumulative runway assignment retries for denied flights.",
	}), "scheduler_retries_total")
	if err != nil {
		return nil, err
	}

	requeued, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_requeued_total",
		Help: "Cumulative flights re-enqueued after a failed retry.",
	}), "scheduler_requeued_total")
	if err != nil {
		return nil, err
	}

	cargo, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_cargo_synthesized_total",
		Help: "Cargo flights created by the cargo-presence invariant.",
	}), "scheduler_cargo_synthesized_total")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:           gatherer,
		RetryCycleDuration: cycleHistogram,
		RetriesTotal:       retries,
		RequeuedTotal:      requeued,
		CargoSynthesized:   cargo,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveRetryCycle records one retry-cycle duration measurement.
func (c *SchedulerCollector) ObserveRetryCycle(d time.Duration) {
	if c == nil || c.RetryCycleDuration == nil {
		return
	}
	c.RetryCycleDuration.Observe(d.Seconds())
}

// IncRetries counts an assignment retry attempt.
func (c *SchedulerCollector) IncRetries() {
	if c == nil || c.RetriesTotal == nil {
		return
	}
	c.RetriesTotal.Inc()
}

// IncRequeued counts a flight put back on the denied queue.
func (c *SchedulerCollector) IncRequeued() {
	if c == nil || c.RequeuedTotal == nil {
		return
	}
	c.RequeuedTotal.Inc()
}

// IncCargoSynthesized counts an invariant-driven cargo flight creation.
func (c *SchedulerCollector) IncCargoSynthesized() {
	if c == nil || c.CargoSynthesized == nil {
		return
	}
	c.CargoSynthesized.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
