// Package biolog adapts breaker.Instrument to structured logging via
// log/slog, the logger the teacher wires up in cmd/gandalf. It is the
// simplest possible Instrument: every transition becomes one log line,
// with no counters or gauges of its own (bprom covers those).
package biolog

import (
	"log/slog"

	"github.com/eugener/breaker"
)

// Instrument logs every breaker event at logger, tagged with name so a
// process running several breakers can tell them apart in its logs.
type Instrument struct {
	logger *slog.Logger
	name   string
}

// New returns an Instrument that logs under name. A nil logger falls
// back to slog.Default().
func New(logger *slog.Logger, name string) *Instrument {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrument{logger: logger, name: name}
}

// OnCallRejected logs a rejected call at debug level: under a flapping
// dependency this can fire many times a second and is rarely worth
// info-level noise.
func (i *Instrument) OnCallRejected() {
	i.logger.Debug("circuit breaker rejected call", "breaker", i.name)
}

// OnOpen logs a transition into the open state.
func (i *Instrument) OnOpen() {
	i.logger.Warn("circuit breaker opened", "breaker", i.name)
}

// OnHalfOpen logs a transition into the half-open probing state.
func (i *Instrument) OnHalfOpen() {
	i.logger.Info("circuit breaker half-open, probing", "breaker", i.name)
}

// OnClosed logs a transition back into the closed state.
func (i *Instrument) OnClosed() {
	i.logger.Info("circuit breaker closed", "breaker", i.name)
}

var _ breaker.Instrument = (*Instrument)(nil)
