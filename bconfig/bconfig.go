// Package bconfig loads circuit breaker presets from YAML, so a
// deployment can declare per-dependency breaker tuning in a config
// file instead of compiling it in. It follows the same
// load-and-expand-environment-variables shape as the rest of this
// codebase's YAML configuration.
package bconfig

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/eugener/breaker"
)

// Config is the top-level breaker preset file.
type Config struct {
	Breakers []BreakerEntry `yaml:"breakers"`
}

// BreakerEntry declares one named breaker's failure policy and backoff.
type BreakerEntry struct {
	Name   string      `yaml:"name"`
	Policy PolicyEntry `yaml:"policy"`
}

// PolicyEntry selects and parameterizes a FailurePolicy. Exactly one of
// ConsecutiveFailures or SuccessRate should be set; if both are set the
// two are combined with a composite OR.
type PolicyEntry struct {
	ConsecutiveFailures *ConsecutiveFailuresEntry `yaml:"consecutive_failures"`
	SuccessRate         *SuccessRateEntry         `yaml:"success_rate"`
}

// ConsecutiveFailuresEntry parameterizes breaker.ConsecutiveFailuresPolicy.
type ConsecutiveFailuresEntry struct {
	Threshold int          `yaml:"threshold"`
	Backoff   BackoffEntry `yaml:"backoff"`
}

// SuccessRateEntry parameterizes breaker.SuccessRateOverTimeWindowPolicy.
type SuccessRateEntry struct {
	RequiredRate float64       `yaml:"required_rate"`
	MinRequests  int           `yaml:"min_requests"`
	Window       time.Duration `yaml:"window"`
	Buckets      int           `yaml:"buckets"`
	Backoff      BackoffEntry  `yaml:"backoff"`
}

// BackoffEntry selects and parameterizes a Backoff strategy. Strategy
// is one of "constant", "exponential", "equal_jittered", "full_jittered".
type BackoffEntry struct {
	Strategy string        `yaml:"strategy"`
	Value    time.Duration `yaml:"value"` // used by "constant"
	Min      time.Duration `yaml:"min"`   // used by the exponential family
	Max      time.Duration `yaml:"max"`   // used by the exponential family
}

// Build constructs the Backoff this entry describes. Jittered strategies
// are seeded with rng; a nil rng is only valid for "constant" and
// "exponential".
func (e BackoffEntry) Build(rng breaker.RNG) (breaker.Backoff, error) {
	switch e.Strategy {
	case "", "constant":
		return breaker.NewConstantBackoff(e.Value), nil
	case "exponential":
		return breaker.NewExponentialBackoff(e.Min, e.Max)
	case "equal_jittered":
		return breaker.NewEqualJitteredBackoff(e.Min, e.Max, rng)
	case "full_jittered":
		return breaker.NewFullJitteredBackoff(e.Min, e.Max, rng)
	default:
		return nil, fmt.Errorf("bconfig: unknown backoff strategy %q", e.Strategy)
	}
}

// Build constructs the FailurePolicy this entry describes.
func (e PolicyEntry) Build(rng breaker.RNG) (breaker.FailurePolicy, error) {
	var policies []breaker.FailurePolicy

	if e.ConsecutiveFailures != nil {
		cf := e.ConsecutiveFailures
		bo, err := cf.Backoff.Build(rng)
		if err != nil {
			return nil, err
		}
		p, err := breaker.NewConsecutiveFailuresPolicy(cf.Threshold, bo)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	if e.SuccessRate != nil {
		sr := e.SuccessRate
		bo, err := sr.Backoff.Build(rng)
		if err != nil {
			return nil, err
		}
		p, err := breaker.NewSuccessRateOverTimeWindowPolicy(sr.RequiredRate, sr.MinRequests, sr.Window, sr.Buckets, bo)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	switch len(policies) {
	case 0:
		return nil, fmt.Errorf("bconfig: breaker entry declares no policy")
	case 1:
		return policies[0], nil
	default:
		return breaker.NewCompositePolicy(policies[0], policies[1]), nil
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values,
// leaving the pattern untouched when the variable is unset.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(name); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML breaker preset file at path, expanding
// ${VAR} environment references before unmarshaling.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read breaker config: %w", err)
	}
	data = expandEnv(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse breaker config: %w", err)
	}
	return cfg, nil
}

// Build constructs one breaker.CircuitBreaker per entry in cfg, keyed by
// entry name, registering each with clock and instrument. rng is only
// consulted by jittered backoff strategies.
func Build(cfg *Config, clock breaker.Clock, rng breaker.RNG, instrument breaker.Instrument) (map[string]*breaker.CircuitBreaker, error) {
	out := make(map[string]*breaker.CircuitBreaker, len(cfg.Breakers))
	for _, entry := range cfg.Breakers {
		policy, err := entry.Policy.Build(rng)
		if err != nil {
			return nil, fmt.Errorf("breaker %q: %w", entry.Name, err)
		}
		out[entry.Name] = breaker.NewCircuitBreaker(policy, clock, instrument)
	}
	return out, nil
}
