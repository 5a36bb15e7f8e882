package completion

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"codescribe/internal/core/domain"
	"codescribe/internal/core/ports"
	"codescribe/pkg/circuit"
	"codescribe/pkg/errors"

	"github.com/rs/zerolog"
)

// GuardConfig controls the circuit breaker in front of the completion API
type GuardConfig struct {
	Threshold int           // consecutive failures that open the circuit, 0 disables it
	Cooldown  time.Duration // time spent open before a probe request
}

// GuardedClient fails fast while the completion API keeps failing
type GuardedClient struct {
	next     ports.CompletionClient
	breaker  *circuit.Breaker
	provider string
}

// NewGuardedClient wraps client with a breaker, or returns it unchanged when the threshold is 0
func NewGuardedClient(client *Client, guard GuardConfig, log zerolog.Logger) ports.CompletionClient {
	if guard.Threshold <= 0 {
		return client
	}

	return &GuardedClient{
		next: client,
		breaker: circuit.New(circuit.Config{
			Name:             "completion_api",
			FailureThreshold: guard.Threshold,
			RecoveryTimeout:  guard.Cooldown,
			SuccessThreshold: 1,
		}, countsAsOutage, log),
		provider: client.config.Provider,
	}
}

// Complete forwards to the wrapped client unless the circuit is open
func (g *GuardedClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	var resp *domain.CompletionResponse
	err := g.breaker.Execute(func() error {
		var err error
		resp, err = g.next.Complete(ctx, req)
		return err
	})
	if stderrors.Is(err, circuit.ErrOpen) {
		return nil, errors.Newf(errors.UpstreamError, "CIRCUIT_OPEN", "%s API is unavailable, retrying shortly", g.provider).
			WithStatus(http.StatusServiceUnavailable)
	}
	return resp, err
}

// Stats exposes the breaker state for diagnostics
func (g *GuardedClient) Stats() circuit.Stats {
	return g.breaker.Stats()
}

// countsAsOutage reports whether err says the upstream is unhealthy.
// Canceled callers and bad requests do not count.
func countsAsOutage(err error) bool {
	appErr, ok := errors.As(err)
	if !ok {
		return true
	}

	switch appErr.Type {
	case errors.UpstreamTimeoutError, errors.NetworkError, errors.PaymentRequiredError:
		return true
	case errors.UpstreamError:
		return appErr.HTTPStatus >= http.StatusInternalServerError || appErr.HTTPStatus == http.StatusTooManyRequests
	default:
		return false
	}
}
