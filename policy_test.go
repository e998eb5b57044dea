package breaker

import (
	"testing"
	"time"
)

func TestConsecutiveFailuresPolicy_TripsAtThreshold(t *testing.T) {
	t.Parallel()

	p, err := NewConsecutiveFailuresPolicy(3, NewConstantBackoff(time.Second))
	if err != nil {
		t.Fatalf("NewConsecutiveFailuresPolicy: %v", err)
	}
	now := time.Unix(0, 0)

	if p.RecordFailure(now) {
		t.Fatal("tripped after 1 failure, want not yet")
	}
	if p.RecordFailure(now) {
		t.Fatal("tripped after 2 failures, want not yet")
	}
	if !p.RecordFailure(now) {
		t.Fatal("did not trip at threshold of 3")
	}
}

func TestConsecutiveFailuresPolicy_SuccessClearsCounter(t *testing.T) {
	t.Parallel()

	p, _ := NewConsecutiveFailuresPolicy(2, NewConstantBackoff(time.Second))
	now := time.Unix(0, 0)

	p.RecordFailure(now)
	p.RecordSuccess(now)
	if p.RecordFailure(now) {
		t.Fatal("tripped after counter should have been cleared by success")
	}
}

func TestConsecutiveFailuresPolicy_InvalidThreshold(t *testing.T) {
	t.Parallel()
	if _, err := NewConsecutiveFailuresPolicy(0, NewConstantBackoff(time.Second)); err == nil {
		t.Fatal("expected error for threshold <= 0")
	}
}

func TestSuccessRateOverTimeWindowPolicy_RequiresMinRequests(t *testing.T) {
	t.Parallel()

	p, err := NewSuccessRateOverTimeWindowPolicy(0.5, 10, time.Minute, 6, NewConstantBackoff(time.Second))
	if err != nil {
		t.Fatalf("NewSuccessRateOverTimeWindowPolicy: %v", err)
	}
	now := time.Unix(0, 0)

	for range 5 {
		if p.RecordFailure(now) {
			t.Fatal("tripped before minRequests observations")
		}
	}
}

func TestSuccessRateOverTimeWindowPolicy_TripsOnRate(t *testing.T) {
	t.Parallel()

	// requiredRate=0.5 -> trips when fail/total strictly > 0.5.
	p, err := NewSuccessRateOverTimeWindowPolicy(0.5, 4, time.Minute, 6, NewConstantBackoff(time.Second))
	if err != nil {
		t.Fatalf("NewSuccessRateOverTimeWindowPolicy: %v", err)
	}
	now := time.Unix(0, 0)

	p.RecordSuccess(now)
	p.RecordFailure(now)
	// This failure brings total to 3, still below minRequests=4: no trip.
	if p.RecordFailure(now) {
		t.Fatal("tripped before minRequests reached")
	}
	// This failure brings total to 4 with fail=3: 3 > 4*(1-0.5), trips.
	if !p.RecordFailure(now) {
		t.Fatal("expected trip once total=4 and fail(3)/4 > 0.5")
	}
}

func TestSuccessRateOverTimeWindowPolicy_ExactRateDoesNotTrip(t *testing.T) {
	t.Parallel()

	p, err := NewSuccessRateOverTimeWindowPolicy(0.5, 2, time.Minute, 6, NewConstantBackoff(time.Second))
	if err != nil {
		t.Fatalf("NewSuccessRateOverTimeWindowPolicy: %v", err)
	}
	now := time.Unix(0, 0)

	p.RecordSuccess(now)
	// total=2, fail=1 -> rate exactly 0.5, strict inequality means no trip.
	if p.RecordFailure(now) {
		t.Fatal("tripped at exactly the threshold rate, want strict inequality")
	}
}

func TestSuccessRateOverTimeWindowPolicy_InvalidArgs(t *testing.T) {
	t.Parallel()

	backoff := NewConstantBackoff(time.Second)
	if _, err := NewSuccessRateOverTimeWindowPolicy(0, 1, time.Minute, 6, backoff); err == nil {
		t.Fatal("expected error for requiredRate <= 0")
	}
	if _, err := NewSuccessRateOverTimeWindowPolicy(1.5, 1, time.Minute, 6, backoff); err == nil {
		t.Fatal("expected error for requiredRate > 1")
	}
	if _, err := NewSuccessRateOverTimeWindowPolicy(0.5, 0, time.Minute, 6, backoff); err == nil {
		t.Fatal("expected error for minRequests <= 0")
	}
}

func TestCompositePolicy_TripsOnEither(t *testing.T) {
	t.Parallel()

	first, _ := NewConsecutiveFailuresPolicy(100, NewConstantBackoff(time.Second))
	second, _ := NewConsecutiveFailuresPolicy(1, NewConstantBackoff(2*time.Second))
	c := NewCompositePolicy(first, second)

	now := time.Unix(0, 0)
	if !c.RecordFailure(now) {
		t.Fatal("composite did not trip when second child tripped")
	}
}

func TestCompositePolicy_CanResetRequiresBoth(t *testing.T) {
	t.Parallel()

	first, _ := NewConsecutiveFailuresPolicy(1, NewConstantBackoff(time.Second))
	second, err := NewSuccessRateOverTimeWindowPolicy(0.5, 1, time.Minute, 6, NewConstantBackoff(time.Second))
	if err != nil {
		t.Fatalf("NewSuccessRateOverTimeWindowPolicy: %v", err)
	}
	c := NewCompositePolicy(first, second)
	now := time.Unix(0, 0)

	second.RecordFailure(now)
	second.RecordFailure(now)
	if c.CanReset(now) {
		t.Fatal("CanReset true even though second child's window still looks unhealthy")
	}
}

func TestCompositePolicy_BackoffUsesFirst(t *testing.T) {
	t.Parallel()

	first, _ := NewConsecutiveFailuresPolicy(1, NewConstantBackoff(5*time.Second))
	second, _ := NewConsecutiveFailuresPolicy(1, NewConstantBackoff(99*time.Second))
	c := NewCompositePolicy(first, second)

	if got := c.BackoffPeek(); got != 5*time.Second {
		t.Fatalf("BackoffPeek = %v, want first child's 5s", got)
	}
}
