package http

import (
	"strconv"
	"strings"
	"time"

	"codescribe/health"
	"codescribe/internal/core/ports"
	"codescribe/pkg/errors"
	"codescribe/pkg/logger"
	"codescribe/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
)

// RequestIDHeader is echoed back on every response
const RequestIDHeader = "X-Request-ID"

// Options controls the fiber app and its middleware
type Options struct {
	BodyLimit          int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RateLimitEnabled   bool
	RateLimitPerMinute int
	CorsEnabled        bool
	CorsAllowedOrigins []string
	EnableStackTrace   bool
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		BodyLimit:          10 * 1024 * 1024,
		RateLimitEnabled:   true,
		RateLimitPerMinute: 60,
		CorsEnabled:        true,
		CorsAllowedOrigins: []string{"*"},
	}
}

// Deps are the collaborators served by the app
type Deps struct {
	Docs           ports.DocumentationService
	Health         *health.HealthChecker // nil disables the health routes
	Logger         *logger.Logger
	Metrics        *metrics.Metrics // nil disables request metrics
	LimiterStorage fiber.Storage    // nil keeps rate limiting in memory
}

// NewApp builds the fiber app with error rendering, middleware and routes
func NewApp(opts Options, deps Deps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "codescribe",
		ErrorHandler:          ErrorHandler(deps.Logger),
		BodyLimit:             opts.BodyLimit,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		IdleTimeout:           opts.IdleTimeout,
		DisableStartupMessage: true,
	})

	// request logging wraps recover so panics are logged with their final status
	app.Use(requestMiddleware(deps.Logger, deps.Metrics))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: opts.EnableStackTrace,
	}))

	if opts.CorsEnabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins(opts.CorsAllowedOrigins),
			AllowMethods: "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS",
			AllowHeaders: "*",
		}))
	}

	if opts.RateLimitEnabled {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimitPerMinute,
			Expiration: time.Minute,
			Storage:    deps.LimiterStorage,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			Next: func(c *fiber.Ctx) bool {
				// probes must never be throttled
				return strings.HasPrefix(c.Path(), "/health")
			},
			LimitReached: func(c *fiber.Ctx) error {
				return errors.NewRateLimitError("Rate limit exceeded, try again later")
			},
		}))
	}

	NewDocsHandler(deps.Docs).SetupRoutes(app)

	if deps.Health != nil {
		app.Get("/health", deps.Health.HealthHandler)
		app.Get("/health/readiness", deps.Health.ReadinessHandler)
		app.Get("/health/liveness", deps.Health.LivenessHandler)
	}

	return app
}

// ErrorHandler renders every error as {"detail": "⚠️ ..."} with its mapped status
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *errors.AppError
		if fe, ok := err.(*fiber.Error); ok {
			appErr = fromFiberError(fe)
		} else {
			appErr = errors.Normalize(err)
		}

		if appErr.HTTPStatus >= fiber.StatusInternalServerError {
			log.LogError(c.UserContext(), err, "Request failed", map[string]interface{}{
				"type": appErr.Type,
				"code": appErr.Code,
				"path": c.Path(),
			})
		}

		return c.Status(appErr.HTTPStatus).JSON(errors.NewErrorResponse(appErr))
	}
}

// fromFiberError keeps fiber's own status for routing and body-limit errors
func fromFiberError(fe *fiber.Error) *errors.AppError {
	switch {
	case fe.Code == fiber.StatusNotFound:
		return errors.New(errors.NotFoundError, "ROUTE_NOT_FOUND", fe.Message)
	case fe.Code >= fiber.StatusInternalServerError:
		return errors.NewInternalError(fe.Message).WithStatus(fe.Code)
	default:
		return errors.NewValidationError(fe.Message).WithStatus(fe.Code)
	}
}

// requestMiddleware assigns a request ID, logs the request and records metrics.
// Errors are rendered here so the logged status matches the response.
func requestMiddleware(log *logger.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDHeader, requestID)
		c.SetUserContext(logger.WithRequestID(c.UserContext(), requestID))

		if m != nil {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()
		}

		if err := c.Next(); err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		duration := time.Since(start)
		status := c.Response().StatusCode()
		log.LogRequest(c.UserContext(), c.Method(), c.Path(), status, c.IP(), duration)

		if m != nil {
			m.RecordHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status), duration, int64(len(c.Response().Body())))
		}

		return nil
	}
}

func corsOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}
