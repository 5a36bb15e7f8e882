package health

import (
	"context"
	"sync/atomic"
	"time"

	"codescribe/internal/core/domain"
	"codescribe/internal/core/ports"

	"github.com/gofiber/fiber/v2"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Pinger is satisfied by the redis storage
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the health checker
type Options struct {
	Version          string
	Environment      string
	Provider         string
	APIKeyConfigured bool
	Redis            Pinger // nil when rate limiting is in memory
	Timeout          time.Duration
}

// HealthChecker reports liveness, readiness and dependency health
type HealthChecker struct {
	version     string
	environment string
	provider    string
	redis       Pinger
	timeout     time.Duration
	apiKey      atomic.Bool
	startTime   time.Time
}

var _ ports.HealthService = (*HealthChecker)(nil)

// NewHealthChecker creates a health checker
func NewHealthChecker(opts Options) *HealthChecker {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	h := &HealthChecker{
		version:     opts.Version,
		environment: opts.Environment,
		provider:    opts.Provider,
		redis:       opts.Redis,
		timeout:     opts.Timeout,
		startTime:   time.Now(),
	}
	h.apiKey.Store(opts.APIKeyConfigured)
	return h
}

// SetAPIKeyConfigured updates the completion credential state after a config reload
func (h *HealthChecker) SetAPIKeyConfigured(configured bool) {
	h.apiKey.Store(configured)
}

// Uptime returns the time since the checker was created
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}

// GetHealthStatus returns the overall health report
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (*domain.HealthStatus, error) {
	deps, err := h.CheckDependencies(ctx)
	if err != nil {
		return nil, err
	}

	status := &domain.HealthStatus{
		Status:       StatusHealthy,
		Version:      h.version,
		Timestamp:    time.Now(),
		Uptime:       h.Uptime().String(),
		Dependencies: deps,
	}

	// Determine overall status
	for _, dep := range deps {
		if !dep.Available {
			status.Status = StatusDegraded
		}
	}

	return status, nil
}

// CheckDependencies checks the completion credentials and redis
func (h *HealthChecker) CheckDependencies(ctx context.Context) (map[string]domain.DepInfo, error) {
	deps := make(map[string]domain.DepInfo, 2)

	if h.apiKey.Load() {
		deps["completion_api"] = domain.DepInfo{Status: "configured", Available: true, Message: h.provider}
	} else {
		deps["completion_api"] = domain.DepInfo{Status: "unconfigured", Available: false, Message: "OPENAI_API_KEY is not set"}
	}

	if h.redis == nil {
		deps["rate_limit_storage"] = domain.DepInfo{Status: "in_memory", Available: true}
		return deps, nil
	}

	// Use a shorter timeout for the redis check
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	if err := h.redis.Ping(pingCtx); err != nil {
		deps["rate_limit_storage"] = domain.DepInfo{Status: "unavailable", Available: false, Message: err.Error()}
	} else {
		deps["rate_limit_storage"] = domain.DepInfo{Status: "available", Available: true, Latency: time.Since(start).String()}
	}

	return deps, nil
}

// Fiber handlers

// HealthHandler returns the full report, 503 when degraded
func (h *HealthChecker) HealthHandler(c *fiber.Ctx) error {
	health, err := h.GetHealthStatus(c.UserContext())
	if err != nil {
		return err
	}

	statusCode := fiber.StatusOK
	if health.Status != StatusHealthy {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":       health.Status,
		"version":      health.Version,
		"environment":  h.environment,
		"timestamp":    health.Timestamp,
		"uptime":       health.Uptime,
		"dependencies": health.Dependencies,
	})
}

// ReadinessHandler reports whether requests can be served
func (h *HealthChecker) ReadinessHandler(c *fiber.Ctx) error {
	deps, err := h.CheckDependencies(c.UserContext())
	if err != nil {
		return err
	}

	for name, dep := range deps {
		if !dep.Available {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"reason": name + " " + dep.Status,
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessHandler answers as long as the process can respond
func (h *HealthChecker) LivenessHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    h.Uptime().String(),
	})
}
