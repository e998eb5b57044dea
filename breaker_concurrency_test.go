package breaker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eugener/breaker/internal/testutil"
)

// TestCircuitBreaker_HalfOpenAdmitsExactlyOneProbe stresses the
// single-probe-in-flight invariant (spec.md §5) under real goroutine
// contention rather than sequential calls, using errgroup to fan out
// concurrent callers against a breaker parked at the Open/HalfOpen
// boundary.
func TestCircuitBreaker_HalfOpenAdmitsExactlyOneProbe(t *testing.T) {
	t.Parallel()

	policy, err := NewConsecutiveFailuresPolicy(1, NewConstantBackoff(5*time.Second))
	if err != nil {
		t.Fatalf("NewConsecutiveFailuresPolicy: %v", err)
	}
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	cb := NewCircuitBreaker(policy, clock, nil)

	Call(cb, func() (int, error) { return 0, errors.New("boom") })
	clock.Advance(5 * time.Second)

	var admitted, rejected atomic.Int32
	release := make(chan struct{})
	g, ctx := errgroup.WithContext(context.Background())
	const callers = 64
	for range callers {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			_, err := Call(cb, func() (int, error) {
				admitted.Add(1)
				// Keep the probe in flight until every other caller has
				// been turned away, so none arrives after it has closed
				// the breaker (a Closed breaker admits every call).
				select {
				case <-release:
				case <-time.After(time.Second):
				}
				return 0, nil
			})
			if errors.Is(err, ErrRejected) && rejected.Add(1) == callers-1 {
				close(release)
			}
			if err != nil && !errors.Is(err, ErrRejected) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("errgroup: %v", err)
	}

	if got := admitted.Load(); got != 1 {
		t.Fatalf("admitted %d concurrent probes, want exactly 1", got)
	}
	if cb.Snapshot().State != StateClosed {
		t.Fatalf("state = %v, want closed after the single probe succeeded", cb.Snapshot().State)
	}
}

// TestCircuitBreaker_ConcurrentFailuresTripExactlyOnce checks that racing
// OnError calls under the Closed state never double-fire OnOpen, since the
// StateMachine transition out of Closed must happen at most once.
func TestCircuitBreaker_ConcurrentFailuresTripExactlyOnce(t *testing.T) {
	t.Parallel()

	policy, err := NewConsecutiveFailuresPolicy(50, NewConstantBackoff(time.Second))
	if err != nil {
		t.Fatalf("NewConsecutiveFailuresPolicy: %v", err)
	}
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	inst := &countingInstrumentSafe{}
	cb := NewCircuitBreaker(policy, clock, inst)

	var g errgroup.Group
	const callers = 200
	for range callers {
		g.Go(func() error {
			_, _ = Call(cb, func() (int, error) { return 0, errors.New("boom") })
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("errgroup: %v", err)
	}

	if cb.Snapshot().State != StateOpen {
		t.Fatalf("state = %v, want open after well over threshold failures", cb.Snapshot().State)
	}
	if got := inst.open.Load(); got != 1 {
		t.Fatalf("OnOpen fired %d times, want exactly 1", got)
	}
}

type countingInstrumentSafe struct {
	open atomic.Int32
}

func (c *countingInstrumentSafe) OnCallRejected() {}
func (c *countingInstrumentSafe) OnOpen()         { c.open.Add(1) }
func (c *countingInstrumentSafe) OnHalfOpen()     {}
func (c *countingInstrumentSafe) OnClosed()       {}
