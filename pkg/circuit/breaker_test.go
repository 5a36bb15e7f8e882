package circuit

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = stderrors.New("boom")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold, successes int, isFailure func(error) bool) (*Breaker, *clock) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New(Config{
		Name:             "test",
		FailureThreshold: threshold,
		RecoveryTimeout:  10 * time.Second,
		SuccessThreshold: successes,
	}, isFailure, zerolog.Nop())
	b.now = clk.Now
	return b, clk
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, 1, nil)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute(fail), errBoom)
		assert.Equal(t, StateClosed, b.State())
	}

	assert.ErrorIs(t, b.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	stats := b.Stats()
	assert.Equal(t, int64(3), stats.Requests)
	assert.Equal(t, int64(3), stats.Failures)
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	b, _ := newTestBreaker(2, 1, nil)

	require.Error(t, b.Execute(fail))
	require.NoError(t, b.Execute(succeed))
	require.Error(t, b.Execute(fail))

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 1, b.Stats().ConsecutiveFailures)
}

func TestBreakerRecovery(t *testing.T) {
	t.Run("probe success closes", func(t *testing.T) {
		b, clk := newTestBreaker(1, 2, nil)
		require.Error(t, b.Execute(fail))
		require.Equal(t, StateOpen, b.State())

		clk.Advance(5 * time.Second)
		assert.ErrorIs(t, b.Execute(succeed), ErrOpen)

		clk.Advance(5 * time.Second)
		require.NoError(t, b.Execute(succeed))
		assert.Equal(t, StateHalfOpen, b.State())

		require.NoError(t, b.Execute(succeed))
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("probe failure reopens", func(t *testing.T) {
		b, clk := newTestBreaker(1, 1, nil)
		require.Error(t, b.Execute(fail))

		clk.Advance(10 * time.Second)
		require.ErrorIs(t, b.Execute(fail), errBoom)

		stats := b.Stats()
		assert.Equal(t, StateOpen, stats.State)
		assert.Equal(t, clk.Now().Add(10*time.Second), stats.NextRetryTime)
	})
}

func TestBreakerSingleProbe(t *testing.T) {
	b, clk := newTestBreaker(1, 1, nil)
	require.Error(t, b.Execute(fail))
	clk.Advance(10 * time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	assert.ErrorIs(t, b.Execute(succeed), ErrOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIgnoresUncountedErrors(t *testing.T) {
	errIgnored := stderrors.New("ignored")
	b, _ := newTestBreaker(2, 1, func(err error) bool { return !stderrors.Is(err, errIgnored) })

	require.Error(t, b.Execute(fail))
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Execute(func() error { return errIgnored }), errIgnored)
	}

	stats := b.Stats()
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, 1, stats.ConsecutiveFailures)
	assert.Equal(t, int64(1), stats.Failures)
}

func TestNewClampsThresholds(t *testing.T) {
	b := New(Config{Name: "zero"}, nil, zerolog.Nop())
	assert.Equal(t, 1, b.config.FailureThreshold)
	assert.Equal(t, 1, b.config.SuccessThreshold)
}
