package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/eugener/breaker"
)

const requestIDHeader = "X-Request-Id"

type handlerDeps struct {
	breaker        *breaker.CircuitBreaker
	metricsHandler http.Handler
	tracer         trace.Tracer
}

// newHandler wires the demo's routes behind request-id and logging
// middleware, in the same layering order the breaker's ambient-stack
// request pipeline follows elsewhere in this codebase.
func newHandler(deps handlerDeps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logging)
	r.Use(recovery)

	r.Get("/healthz", s.handleHealthz)
	if deps.metricsHandler != nil {
		r.Handle("/metrics", deps.metricsHandler)
	}
	r.Get("/flaky", s.handleFlaky)

	return r
}

type server struct {
	deps handlerDeps
}

// flakyDependency simulates an unreliable downstream: it fails roughly
// 40% of the time, and returns ctx's error at once if ctx is already done.
func flakyDependency(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if rand.Float64() < 0.4 {
		return "", errors.New("upstream returned 503")
	}
	return "ok", nil
}

func (s *server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "flaky-dependency")
	defer span.end()

	result, err := breaker.CallWith(s.deps.breaker, breaker.HTTPClassifier, func() (string, error) {
		return flakyDependency(ctx)
	})

	switch {
	case errors.Is(err, breaker.ErrRejected):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "rejected",
			"detail": "circuit breaker is open",
		})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "error",
			"detail": err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"result": result,
		})
	}
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.deps.breaker.Snapshot().State.String(),
	})
}

type span struct{ trace.Span }

func (sp span) end() {
	if sp.Span != nil {
		sp.Span.End()
	}
}

func (s *server) startSpan(ctx context.Context, name string) (context.Context, span) {
	if s.deps.tracer == nil {
		return ctx, span{}
	}
	ctx, sp := s.deps.tracer.Start(ctx, name)
	return ctx, span{sp}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"request_id", w.Header().Get(requestIDHeader),
			"duration", time.Since(start),
		)
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered", "error", rec, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "detail": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
