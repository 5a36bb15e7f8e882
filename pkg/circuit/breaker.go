package circuit

import (
	stderrors "errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State represents circuit breaker states
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned without calling the protected function while the circuit is open
var ErrOpen = stderrors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	Name             string        `json:"name"`
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures that open the circuit
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`  // time spent open before a probe is let through
	SuccessThreshold int           `json:"success_threshold"` // probe successes needed to close again
}

// Stats tracks circuit breaker statistics
type Stats struct {
	State               State     `json:"state"`
	Requests            int64     `json:"requests"`
	Successes           int64     `json:"successes"`
	Failures            int64     `json:"failures"`
	Rejected            int64     `json:"rejected"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureTime     time.Time `json:"last_failure_time"`
	NextRetryTime       time.Time `json:"next_retry_time"`
}

// Breaker implements the circuit breaker pattern.
// The protected call runs without the lock held; in half-open state one probe runs at a time.
type Breaker struct {
	config    Config
	stats     Stats
	probing   bool
	probeWins int
	mu        sync.Mutex
	logger    zerolog.Logger
	isFailure func(error) bool
	now       func() time.Time
}

// New creates a new circuit breaker.
// isFailure decides which errors count toward opening; nil counts every error.
func New(config Config, isFailure func(error) bool, logger zerolog.Logger) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}

	return &Breaker{
		config:    config,
		stats:     Stats{State: StateClosed},
		logger:    logger.With().Str("circuit_breaker", config.Name).Logger(),
		isFailure: isFailure,
		now:       time.Now,
	}
}

// Execute runs fn unless the circuit is open
func (b *Breaker) Execute(fn func() error) error {
	probe, err := b.before()
	if err != nil {
		return err
	}

	err = fn()
	b.after(probe, err)
	return err
}

// Stats returns a snapshot of the breaker statistics
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// State returns the current state
func (b *Breaker) State() State {
	return b.Stats().State
}

// before admits a call and reports whether it is the half-open probe
func (b *Breaker) before() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stats.State {
	case StateOpen:
		if b.now().Before(b.stats.NextRetryTime) {
			b.stats.Rejected++
			return false, ErrOpen
		}
		b.stats.State = StateHalfOpen
		b.probeWins = 0
		b.logger.Info().Msg("Circuit breaker transitioning to half-open")
	case StateClosed:
		b.stats.Requests++
		return false, nil
	}

	if b.probing {
		b.stats.Rejected++
		return false, ErrOpen
	}
	b.probing = true
	b.stats.Requests++
	return true, nil
}

func (b *Breaker) after(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}

	if err != nil && b.isFailure(err) {
		b.stats.Failures++
		b.stats.ConsecutiveFailures++
		b.stats.LastFailureTime = b.now()

		trip := probe || (b.stats.State == StateClosed && b.stats.ConsecutiveFailures >= b.config.FailureThreshold)
		if trip {
			b.stats.State = StateOpen
			b.stats.NextRetryTime = b.now().Add(b.config.RecoveryTimeout)
			b.logger.Warn().
				Int("failures", b.stats.ConsecutiveFailures).
				Time("next_retry", b.stats.NextRetryTime).
				Msg("Circuit breaker opened")
		}
		return
	}

	// errors that do not count leave the failure streak untouched
	if err != nil {
		return
	}

	b.stats.Successes++
	b.stats.ConsecutiveFailures = 0

	if probe && b.stats.State == StateHalfOpen {
		b.probeWins++
		if b.probeWins >= b.config.SuccessThreshold {
			b.stats.State = StateClosed
			b.logger.Info().Msg("Circuit breaker closed after successful recovery")
		}
	}
}
