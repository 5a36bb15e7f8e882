package health

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func newTestApp(h *HealthChecker) *fiber.App {
	app := fiber.New()
	app.Get("/health", h.HealthHandler)
	app.Get("/health/readiness", h.ReadinessHandler)
	app.Get("/health/liveness", h.LivenessHandler)
	return app
}

func decode(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// Test HealthChecker Creation
func TestHealthCheckerCreation(t *testing.T) {
	h := NewHealthChecker(Options{})
	require.NotNil(t, h)
	assert.Equal(t, "dev", h.version)
	assert.Positive(t, h.timeout)
}

func TestHealthStatus(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantStatus string
		wantDeps   map[string]bool
	}{
		{
			name:       "api key and in-memory limiter",
			opts:       Options{APIKeyConfigured: true},
			wantStatus: StatusHealthy,
			wantDeps:   map[string]bool{"completion_api": true, "rate_limit_storage": true},
		},
		{
			name:       "missing api key",
			opts:       Options{},
			wantStatus: StatusDegraded,
			wantDeps:   map[string]bool{"completion_api": false, "rate_limit_storage": true},
		},
		{
			name:       "redis reachable",
			opts:       Options{APIKeyConfigured: true, Redis: fakePinger{}},
			wantStatus: StatusHealthy,
			wantDeps:   map[string]bool{"completion_api": true, "rate_limit_storage": true},
		},
		{
			name:       "redis down",
			opts:       Options{APIKeyConfigured: true, Redis: fakePinger{err: stderrors.New("connection refused")}},
			wantStatus: StatusDegraded,
			wantDeps:   map[string]bool{"completion_api": true, "rate_limit_storage": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := NewHealthChecker(tt.opts).GetHealthStatus(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, status.Status)
			assert.NotEmpty(t, status.Uptime)
			require.Len(t, status.Dependencies, len(tt.wantDeps))
			for name, available := range tt.wantDeps {
				assert.Equal(t, available, status.Dependencies[name].Available, name)
			}
		})
	}
}

func TestSetAPIKeyConfigured(t *testing.T) {
	h := NewHealthChecker(Options{})
	h.SetAPIKeyConfigured(true)

	status, err := h.GetHealthStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, status.Status)
}

func TestHealthHandlers(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		app := newTestApp(NewHealthChecker(Options{APIKeyConfigured: true, Version: "1.2.3", Environment: "test"}))

		code, body := decode(t, app, "/health")
		assert.Equal(t, fiber.StatusOK, code)
		assert.Equal(t, StatusHealthy, body["status"])
		assert.Equal(t, "1.2.3", body["version"])
		assert.Equal(t, "test", body["environment"])

		code, body = decode(t, app, "/health/readiness")
		assert.Equal(t, fiber.StatusOK, code)
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("degraded", func(t *testing.T) {
		app := newTestApp(NewHealthChecker(Options{APIKeyConfigured: true, Redis: fakePinger{err: stderrors.New("down")}}))

		code, body := decode(t, app, "/health")
		assert.Equal(t, fiber.StatusServiceUnavailable, code)
		assert.Equal(t, StatusDegraded, body["status"])

		code, body = decode(t, app, "/health/readiness")
		assert.Equal(t, fiber.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", body["status"])
		assert.Equal(t, "rate_limit_storage unavailable", body["reason"])
	})

	t.Run("liveness ignores dependencies", func(t *testing.T) {
		app := newTestApp(NewHealthChecker(Options{}))

		code, body := decode(t, app, "/health/liveness")
		assert.Equal(t, fiber.StatusOK, code)
		assert.Equal(t, "alive", body["status"])
		assert.NotEmpty(t, body["uptime"])
	})
}
