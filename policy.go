package breaker

import (
	"errors"
	"time"
)

// ErrInvalidThreshold is returned when a policy is constructed with a
// non-positive trip threshold.
var ErrInvalidThreshold = errors.New("breaker: threshold must be > 0")

// ErrInvalidRate is returned when a success-rate policy's required rate
// is outside (0, 1].
var ErrInvalidRate = errors.New("breaker: required rate must be in (0, 1]")

// FailurePolicy observes call outcomes and decides when a breaker should
// trip or be allowed to reset. Each policy owns a Backoff, exposed here
// so the StateMachine never has to know which strategy produced it.
type FailurePolicy interface {
	// RecordSuccess records a successful call.
	RecordSuccess(now time.Time)
	// RecordFailure records a failed call and reports whether the
	// policy has now accumulated enough evidence to trip.
	RecordFailure(now time.Time) (shouldTrip bool)
	// CanReset reports whether the policy's own evidence currently
	// supports closing the breaker. The StateMachine does not consult
	// it (a HalfOpen probe success always closes); CompositePolicy's
	// CanReset combines the answers of its two children.
	CanReset(now time.Time) bool
	// ResetCounters clears accumulated evidence, independent of the
	// backoff. Called whenever the breaker (re-)enters Closed.
	ResetCounters()
	// BackoffNext returns the next cooldown duration and advances it.
	BackoffNext() time.Duration
	// BackoffPeek returns the current cooldown frontier without
	// advancing it.
	BackoffPeek() time.Duration
	// BackoffReset restarts the owned backoff at its first element.
	BackoffReset()
}

// --- ConsecutiveFailures ---

// ConsecutiveFailuresPolicy trips after threshold consecutive failures;
// any success clears the counter.
type ConsecutiveFailuresPolicy struct {
	threshold int
	n         int
	backoff   Backoff
}

// NewConsecutiveFailuresPolicy returns a policy that trips once n
// consecutive failures without an intervening success reach threshold.
func NewConsecutiveFailuresPolicy(threshold int, backoff Backoff) (*ConsecutiveFailuresPolicy, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}
	return &ConsecutiveFailuresPolicy{threshold: threshold, backoff: backoff}, nil
}

func (p *ConsecutiveFailuresPolicy) RecordSuccess(time.Time) {
	p.n = 0
}

func (p *ConsecutiveFailuresPolicy) RecordFailure(time.Time) bool {
	p.n++
	return p.n >= p.threshold
}

func (p *ConsecutiveFailuresPolicy) CanReset(time.Time) bool { return true }

func (p *ConsecutiveFailuresPolicy) ResetCounters() { p.n = 0 }

func (p *ConsecutiveFailuresPolicy) BackoffNext() time.Duration { return p.backoff.Next() }
func (p *ConsecutiveFailuresPolicy) BackoffPeek() time.Duration { return p.backoff.Peek() }
func (p *ConsecutiveFailuresPolicy) BackoffReset()              { p.backoff.Reset() }

// --- SuccessRateOverTimeWindow ---

// SuccessRateOverTimeWindowPolicy trips when, over a sliding window,
// at least minRequests have been observed and the failure rate exceeds
// 1 - requiredRate.
type SuccessRateOverTimeWindowPolicy struct {
	requiredRate float64
	minRequests  int
	ok, fail     *WindowedAdder
	backoff      Backoff
}

// NewSuccessRateOverTimeWindowPolicy returns a policy backed by two
// WindowedAdders (successes, failures) sharing the same window/buckets.
func NewSuccessRateOverTimeWindowPolicy(requiredRate float64, minRequests int, window time.Duration, buckets int, backoff Backoff) (*SuccessRateOverTimeWindowPolicy, error) {
	if requiredRate <= 0 || requiredRate > 1 {
		return nil, ErrInvalidRate
	}
	if minRequests <= 0 {
		return nil, ErrInvalidThreshold
	}
	ok, err := NewWindowedAdder(window, buckets)
	if err != nil {
		return nil, err
	}
	fail, err := NewWindowedAdder(window, buckets)
	if err != nil {
		return nil, err
	}
	return &SuccessRateOverTimeWindowPolicy{
		requiredRate: requiredRate,
		minRequests:  minRequests,
		ok:           ok,
		fail:         fail,
		backoff:      backoff,
	}, nil
}

func (p *SuccessRateOverTimeWindowPolicy) RecordSuccess(now time.Time) {
	p.ok.Add(1, now)
}

func (p *SuccessRateOverTimeWindowPolicy) RecordFailure(now time.Time) bool {
	p.fail.Add(1, now)
	return p.evaluate(now)
}

// evaluate reports whether the observed failure rate currently exceeds
// 1 - requiredRate, given at least minRequests total observations.
// Uses strict inequality: a rate exactly at the threshold does not trip.
func (p *SuccessRateOverTimeWindowPolicy) evaluate(now time.Time) bool {
	ok := p.ok.Sum(now)
	fail := p.fail.Sum(now)
	total := ok + fail
	if total < int64(p.minRequests) {
		return false
	}
	return float64(fail) > float64(total)*(1-p.requiredRate)
}

func (p *SuccessRateOverTimeWindowPolicy) CanReset(now time.Time) bool {
	return !p.evaluate(now)
}

func (p *SuccessRateOverTimeWindowPolicy) ResetCounters() {
	p.ok.Reset()
	p.fail.Reset()
}

func (p *SuccessRateOverTimeWindowPolicy) BackoffNext() time.Duration { return p.backoff.Next() }
func (p *SuccessRateOverTimeWindowPolicy) BackoffPeek() time.Duration { return p.backoff.Peek() }
func (p *SuccessRateOverTimeWindowPolicy) BackoffReset()              { p.backoff.Reset() }

// --- Composite OR ---

// CompositePolicy combines two policies by OR: it trips if either child
// trips, and permits reset only when both children agree. Its exposed
// backoff is always the first child's; the second child's backoff is
// never advanced or read, only reset together with the first by
// BackoffReset.
type CompositePolicy struct {
	first, second FailurePolicy
}

// NewCompositePolicy combines first and second by OR. first's backoff
// is the one the owning StateMachine will use for Open cooldowns.
func NewCompositePolicy(first, second FailurePolicy) *CompositePolicy {
	return &CompositePolicy{first: first, second: second}
}

func (c *CompositePolicy) RecordSuccess(now time.Time) {
	c.first.RecordSuccess(now)
	c.second.RecordSuccess(now)
}

func (c *CompositePolicy) RecordFailure(now time.Time) bool {
	tripFirst := c.first.RecordFailure(now)
	tripSecond := c.second.RecordFailure(now)
	return tripFirst || tripSecond
}

func (c *CompositePolicy) CanReset(now time.Time) bool {
	return c.first.CanReset(now) && c.second.CanReset(now)
}

func (c *CompositePolicy) ResetCounters() {
	c.first.ResetCounters()
	c.second.ResetCounters()
}

func (c *CompositePolicy) BackoffNext() time.Duration { return c.first.BackoffNext() }
func (c *CompositePolicy) BackoffPeek() time.Duration { return c.first.BackoffPeek() }
func (c *CompositePolicy) BackoffReset() {
	c.first.BackoffReset()
	c.second.BackoffReset()
}
