// Command simulator runs the airport traffic control simulation: flight
// generation across four directions, three-runway scheduling, speed
// monitoring with violation notices, and an HTTP query surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/towerworks/atc-simulator/core"
	"github.com/towerworks/atc-simulator/internal/api"
	"github.com/towerworks/atc-simulator/internal/billing"
	"github.com/towerworks/atc-simulator/internal/logging"
	"github.com/towerworks/atc-simulator/internal/observability"
	"github.com/towerworks/atc-simulator/internal/sched"
	"github.com/towerworks/atc-simulator/internal/sim/state"
	"github.com/towerworks/atc-simulator/model"
	"github.com/towerworks/atc-simulator/registry"
	"github.com/towerworks/atc-simulator/timectrl"
)

func main() {
	var (
		duration      = flag.Duration("duration", 5*time.Minute, "simulation duration in simulation time")
		tick          = flag.Duration("tick", time.Second, "simulation time advanced per tick")
		accelerated   = flag.Bool("accelerated", false, "run ticks as fast as the loop allows")
		httpAddr      = flag.String("http-addr", ":8080", "query API listen address (empty disables)")
		metricsAddr   = flag.String("metrics-addr", ":9090", "Prometheus listen address (empty disables)")
		airlinesPath  = flag.String("airlines", "", "path to an airline roster JSON file (default roster when empty)")
		allowOverflow = flag.Bool("allow-overflow", false, "let commercial traffic overflow onto RWY_C")
		seed          = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	airlines, err := loadRoster(*airlinesPath)
	if err != nil {
		log.Error(ctx, "airline roster load failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	simMetrics, err := observability.NewSimCollector(promReg)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	loopMetrics, err := observability.NewSchedulerCollector(promReg)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	reg := registry.New(airlines)
	st := state.New(reg, log, state.WithMetricsRecorder(simMetrics))

	billSvc := billing.NewService(log)
	dispatcher := billing.NewDispatcher(billSvc, log)
	defer dispatcher.Close()

	machine := core.NewPhaseMachine(*seed)
	injector := core.NewInjector(*seed + 1)
	generator := core.NewFlightGenerator(reg, machine, *seed+2)
	monitor := core.NewViolationMonitor(dispatcher, log)
	runways := core.NewRunwayPool()

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	clock := timectrl.NewTimeController(time.Now(), *tick, mode)

	orch := sched.New(sched.Config{AllowOverflow: *allowOverflow}, sched.Deps{
		Clock:       clock,
		State:       st,
		Runways:     runways,
		Generator:   generator,
		Machine:     machine,
		Monitor:     monitor,
		Injector:    injector,
		Log:         log,
		Metrics:     simMetrics,
		LoopMetrics: loopMetrics,
	})

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", simMetrics.Handler())
		startHTTP(ctx, *metricsAddr, mux, log)
	}
	if *httpAddr != "" {
		server := api.NewServer(st, runways, monitor, billSvc, orch, log)
		startHTTP(ctx, *httpAddr, server.Router(), log)
	}

	// Flip unpaid notices to OVERDUE as simulation time passes their due
	// date.
	overdueQuit := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-overdueQuit:
				return
			case <-ticker.C:
				billSvc.MarkOverdue(clock.Now())
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info(ctx, "signal received, stopping", logging.String("signal", sig.String()))
		orch.Stop()
	}()

	log.Info(ctx, "simulation starting",
		logging.Duration("duration", *duration),
		logging.Duration("tick", *tick),
		logging.Any("accelerated", *accelerated),
		logging.Int("airlines", len(airlines)),
	)

	<-orch.Run(*duration)
	close(overdueQuit)
	dispatcher.Close()

	printSummary(orch.Summarize(), billSvc)
}

// loadRoster reads the airline roster from path, or returns the built-in
// default roster when path is empty.
func loadRoster(path string) ([]*model.Airline, error) {
	if path == "" {
		return core.DefaultAirlines(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return core.LoadAirlineRoster(f)
}

// startHTTP serves handler on addr in the background. Listener errors other
// than a clean close are logged, not fatal; the simulation runs regardless.
func startHTTP(ctx context.Context, addr string, handler http.Handler, log logging.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info(ctx, "http listener starting", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http listener failed",
				logging.String("addr", addr),
				logging.String("error", err.Error()),
			)
		}
	}()
}

func printSummary(s sched.Summary, bills *billing.Service) {
	fmt.Println()
	fmt.Println("=== simulation summary ===")
	fmt.Printf("status: %s  elapsed: %s\n", s.Status, s.Elapsed)
	fmt.Printf("flights: %d total, %d completed, %d canceled, %d emergency\n",
		s.Stats.TotalFlights, s.Stats.CompletedFlights, s.Stats.CanceledFlights, s.Stats.EmergencyFlights)
	fmt.Printf("runway assignments: %d  denied: %d  still queued: %d\n",
		s.Stats.RunwayAssignments, s.Stats.DeniedFlights, s.QueueDepth)
	fmt.Printf("violations: %d  ground faults: %d\n", s.Stats.Violations, s.Stats.GroundFaults)

	ids := make([]string, 0, len(s.RunwayUsage))
	for id := range s.RunwayUsage {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		u := s.RunwayUsage[id]
		fmt.Printf("  %s: %d assignments, occupied %s, %s\n", id, u.Assignments, u.OccupiedFor, u.Status)
	}

	airlines := make([]string, 0, len(s.ViolationsByAirline))
	for a := range s.ViolationsByAirline {
		airlines = append(airlines, a)
	}
	sort.Strings(airlines)
	for _, a := range airlines {
		fmt.Printf("  %s: %d violations, fines %.0f, notices outstanding %.0f\n",
			a, s.ViolationsByAirline[a], s.FinesByAirline[a], bills.OutstandingForAirline(a))
	}
}
