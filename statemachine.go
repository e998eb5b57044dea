package breaker

import (
	"sync"
	"time"
)

// State is one of the three breaker states.
type State int

const (
	// StateClosed admits calls; outcomes accumulate in the policy.
	StateClosed State = iota
	// StateOpen rejects calls without invoking the operation.
	StateOpen
	// StateHalfOpen admits exactly one probe call at a time.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time read of the state machine, useful for
// gauges and admin endpoints.
type Snapshot struct {
	State State
	Until time.Time // zero in StateClosed
}

// StateMachine holds the breaker's state and pending deadline, gates
// calls, and routes outcomes into a FailurePolicy. Its mutex guards the
// state and the policy; every public method acquires it
// for a short, non-blocking critical section and releases it before any
// Instrument callback runs, so user code never executes under the lock.
type StateMachine struct {
	mu         sync.Mutex
	clock      Clock
	policy     FailurePolicy
	instrument Instrument

	state State
	until time.Time
}

// NewStateMachine returns a StateMachine in StateClosed. A nil instrument
// is replaced with NoopInstrument.
func NewStateMachine(policy FailurePolicy, clock Clock, instrument Instrument) *StateMachine {
	if instrument == nil {
		instrument = NoopInstrument{}
	}
	return &StateMachine{
		clock:      clock,
		policy:     policy,
		instrument: instrument,
		state:      StateClosed,
	}
}

// IsCallPermitted reports whether a call may proceed right now, advancing
// Open->HalfOpen and HalfOpen-retry transitions as a side effect.
func (sm *StateMachine) IsCallPermitted() bool {
	now := sm.clock.Now()

	sm.mu.Lock()
	var permitted bool
	var emitHalfOpen bool
	switch sm.state {
	case StateClosed:
		permitted = true
	case StateOpen:
		if now.Before(sm.until) {
			permitted = false
		} else {
			sm.state = StateHalfOpen
			sm.until = now.Add(sm.policy.BackoffPeek())
			permitted = true
			emitHalfOpen = true
		}
	case StateHalfOpen:
		if now.Before(sm.until) {
			// Either the single probe is already in flight, or the
			// deadline simply hasn't elapsed yet -- either way, reject.
			permitted = false
		} else {
			// The prior probe never reported an outcome; its deadline
			// lapsed, so the next caller retries it using the current
			// backoff frontier. This is the self-healing bound from
			// spec.md §5: HalfOpen can never deadlock.
			sm.until = now.Add(sm.policy.BackoffPeek())
			permitted = true
		}
	}
	sm.mu.Unlock()

	if emitHalfOpen {
		sm.instrument.OnHalfOpen()
	}
	if !permitted {
		sm.instrument.OnCallRejected()
	}
	return permitted
}

// OnSuccess reports a completed call.
func (sm *StateMachine) OnSuccess() {
	now := sm.clock.Now()

	sm.mu.Lock()
	var emitClosed bool
	switch sm.state {
	case StateClosed:
		sm.policy.RecordSuccess(now)
	case StateHalfOpen:
		// A probe success always closes the breaker, even if the
		// policy's own window still looks unhealthy. This resolves the
		// ambiguity noted in spec.md §9 in favor of liveness.
		sm.policy.RecordSuccess(now)
		sm.policy.ResetCounters()
		sm.policy.BackoffReset()
		sm.state = StateClosed
		sm.until = time.Time{}
		emitClosed = true
	case StateOpen:
		// Stale outcome from a call admitted under a prior episode;
		// dropped silently per spec.md §4.5/§9.
	}
	sm.mu.Unlock()

	if emitClosed {
		sm.instrument.OnClosed()
	}
}

// OnError reports a failed call.
func (sm *StateMachine) OnError() {
	now := sm.clock.Now()

	sm.mu.Lock()
	var emitOpen bool
	switch sm.state {
	case StateClosed:
		if sm.policy.RecordFailure(now) {
			sm.state = StateOpen
			sm.until = now.Add(sm.policy.BackoffNext())
			emitOpen = true
		}
	case StateHalfOpen:
		// The probe failed: reopen unconditionally, regardless of what
		// the policy's own trip evaluation would have said. Still feed
		// the outcome to the policy so window-based policies keep
		// monotonic evidence across the episode.
		sm.policy.RecordFailure(now)
		sm.state = StateOpen
		sm.until = now.Add(sm.policy.BackoffNext())
		emitOpen = true
	case StateOpen:
		// Stale outcome; dropped silently.
	}
	sm.mu.Unlock()

	if emitOpen {
		sm.instrument.OnOpen()
	}
}

// Reset forces StateClosed and clears the policy's counters and backoff,
// regardless of the prior state.
func (sm *StateMachine) Reset() {
	sm.mu.Lock()
	sm.state = StateClosed
	sm.until = time.Time{}
	sm.policy.ResetCounters()
	sm.policy.BackoffReset()
	sm.mu.Unlock()
}

// Snapshot returns the current state and pending deadline without
// mutating anything (unlike IsCallPermitted, it never advances Open to
// HalfOpen -- it is a pure read for observability).
func (sm *StateMachine) Snapshot() Snapshot {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return Snapshot{State: sm.state, Until: sm.until}
}
