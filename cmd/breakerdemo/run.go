package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eugener/breaker"
	"github.com/eugener/breaker/bconfig"
	"github.com/eugener/breaker/biolog"
	"github.com/eugener/breaker/bprom"
	"github.com/eugener/breaker/btrace"
)

func run(addr, configPath, tracingEndpoint string) error {
	slog.Info("starting breakerdemo", "version", version, "addr", addr)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := bprom.NewMetrics(promRegistry)

	ctx := context.Background()
	var tracingShutdown func(context.Context) error
	if tracingEndpoint != "" {
		shutdown, err := btrace.Setup(ctx, "breakerdemo", tracingEndpoint, 0.1)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			slog.Info("opentelemetry tracing enabled", "endpoint", tracingEndpoint)
		}
	}

	instrument := breaker.MultiInstrument{metrics.For("flaky"), biolog.New(slog.Default(), "flaky")}
	cb, err := buildBreaker(configPath, breaker.SystemClock{}, instrument)
	if err != nil {
		return fmt.Errorf("build breaker: %w", err)
	}

	h := newHandler(handlerDeps{
		breaker:        cb,
		metricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		tracer:         btrace.Tracer("breakerdemo"),
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("breakerdemo ready", "addr", addr, "endpoints", []string{"GET /flaky", "GET /healthz", "GET /metrics"})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("breakerdemo stopped")
	return nil
}

// buildBreaker returns the breaker the /flaky handler wraps. With a
// configPath it loads the "flaky" entry from a bconfig preset file;
// otherwise it falls back to a sane built-in default so the demo runs
// with zero configuration. Every transition is reported to instrument
// (the bprom and biolog adapters wired up in run).
func buildBreaker(configPath string, clock breaker.Clock, instrument breaker.Instrument) (*breaker.CircuitBreaker, error) {
	if configPath == "" {
		policy, err := breaker.NewConsecutiveFailuresPolicy(3, mustExponential(time.Second, 30*time.Second))
		if err != nil {
			return nil, err
		}
		return breaker.NewCircuitBreaker(policy, clock, instrument), nil
	}

	cfg, err := bconfig.Load(configPath)
	if err != nil {
		return nil, err
	}
	breakers, err := bconfig.Build(cfg, clock, cryptoRNG{}, instrument)
	if err != nil {
		return nil, err
	}
	cb, ok := breakers["flaky"]
	if !ok {
		return nil, fmt.Errorf("config %q has no breaker named %q", configPath, "flaky")
	}
	return cb, nil
}

func mustExponential(min, max time.Duration) breaker.Backoff {
	b, err := breaker.NewExponentialBackoff(min, max)
	if err != nil {
		panic(err)
	}
	return b
}

// cryptoRNG adapts math/rand/v2's global generator to breaker.RNG, for
// the demo's jittered-backoff presets. Production code that needs a
// reproducible sequence should inject its own breaker.RNG instead.
type cryptoRNG struct{}

func (cryptoRNG) Uint64() uint64 { return rand.Uint64() }
