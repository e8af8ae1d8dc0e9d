package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

// StateChangeFunc observes transitions. It runs with the breaker locked and
// must not call back into it.
type StateChangeFunc func(name string, from, to CircuitState)

// CircuitBreaker opens after FailureThreshold consecutive failures, rejects
// calls for OpenTimeout, then admits up to HalfOpenMaxReq trials. The circuit
// closes once every trial succeeds and reopens on the first failed trial.
//
// Outcomes are tagged with the generation they were admitted in; a call that
// finishes after the state moved on does not count. A nil breaker admits
// everything.
type CircuitBreaker struct {
	name     string
	cfg      CircuitBreakerConfig
	onChange StateChangeFunc
	now      func() time.Time

	mu             sync.Mutex
	state          CircuitState
	generation     uint64
	failures       int
	trials         int
	trialSuccesses int
	openUntil      time.Time
}

func normalizeConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 15 * time.Second
	}
	if cfg.HalfOpenMaxReq < 1 {
		cfg.HalfOpenMaxReq = 1
	}
	return cfg
}

// NewCircuitBreaker returns nil when cfg is disabled.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, onChange StateChangeFunc) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	return &CircuitBreaker{
		name:     name,
		cfg:      normalizeConfig(cfg),
		onChange: onChange,
		now:      time.Now,
		state:    CircuitStateClosed,
	}
}

func (b *CircuitBreaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Do runs fn if the breaker admits it. countsAsFailure picks the errors that
// trip the breaker; nil means every error does. Other errors count as success.
func (b *CircuitBreaker) Do(fn func() error, countsAsFailure func(error) bool) error {
	if b == nil {
		return fn()
	}

	generation, err := b.admit()
	if err != nil {
		return err
	}

	err = fn()
	failed := err != nil && (countsAsFailure == nil || countsAsFailure(err))
	b.settle(generation, failed)
	return err
}

func (b *CircuitBreaker) State() CircuitState {
	if b == nil {
		return CircuitStateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked(b.now())
}

func (b *CircuitBreaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentLocked(b.now()) {
	case CircuitStateOpen:
		return 0, fmt.Errorf("%w: %s", ErrCircuitOpen, b.name)
	case CircuitStateHalfOpen:
		if b.trials >= b.cfg.HalfOpenMaxReq {
			return 0, fmt.Errorf("%w: %s trials in flight", ErrCircuitOpen, b.name)
		}
		b.trials++
	}
	return b.generation, nil
}

func (b *CircuitBreaker) settle(generation uint64, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state := b.currentLocked(now)
	if generation != b.generation {
		return
	}

	switch state {
	case CircuitStateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.setStateLocked(CircuitStateOpen, now)
		}
	case CircuitStateHalfOpen:
		if failed {
			b.setStateLocked(CircuitStateOpen, now)
			return
		}
		b.trialSuccesses++
		if b.trialSuccesses >= b.cfg.HalfOpenMaxReq {
			b.setStateLocked(CircuitStateClosed, now)
		}
	}
}

// currentLocked moves an expired open circuit to half-open.
func (b *CircuitBreaker) currentLocked(now time.Time) CircuitState {
	if b.state == CircuitStateOpen && !now.Before(b.openUntil) {
		b.setStateLocked(CircuitStateHalfOpen, now)
	}
	return b.state
}

func (b *CircuitBreaker) setStateLocked(to CircuitState, now time.Time) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.generation++
	b.failures = 0
	b.trials = 0
	b.trialSuccesses = 0
	b.openUntil = time.Time{}
	if to == CircuitStateOpen {
		b.openUntil = now.Add(b.cfg.OpenTimeout)
	}

	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
