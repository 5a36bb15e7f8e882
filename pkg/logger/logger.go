package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is used to store correlation IDs in context
type ContextKey string

const (
	CorrelationIDKey ContextKey = "correlation_id"
	RequestIDKey     ContextKey = "request_id"
)

// Logger wraps zerolog with additional functionality
type Logger struct {
	*zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string `json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format     string `json:"format" yaml:"format" validate:"oneof=json console"`
	Output     string `json:"output" yaml:"output" validate:"oneof=stdout stderr file"`
	Filename   string `json:"filename,omitempty" yaml:"filename,omitempty"`
	TimeFormat string `json:"time_format" yaml:"time_format"`
}

// DefaultConfig returns a default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// New creates a new structured logger
func New(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// Configure output
	var output io.Writer
	switch config.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		if config.Filename == "" {
			config.Filename = "logs/app.log"
		}
		file, err := os.OpenFile(config.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		output = file
	default:
		output = os.Stdout
	}

	return NewWithWriter(config, output)
}

// NewWithWriter creates a logger writing to w, honoring level and format
func NewWithWriter(config *Config, w io.Writer) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	if config.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{Logger: &logger}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	logger := zerolog.Nop()
	return &Logger{Logger: &logger}
}

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context) context.Context {
	correlationID := uuid.New().String()
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// FromContext creates a logger with context values
func (l *Logger) FromContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With()

	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok {
		logger = logger.Str("correlation_id", correlationID)
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		logger = logger.Str("request_id", requestID)
	}

	contextLogger := logger.Logger()
	return &contextLogger
}

// LogRequest logs HTTP request details
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, clientIP string, duration time.Duration) {
	l.FromContext(ctx).Info().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Str("client_ip", clientIP).
		Dur("duration", duration).
		Msg("HTTP request processed")
}

// LogError logs error with context
func (l *Logger) LogError(ctx context.Context, err error, msg string, fields map[string]interface{}) {
	event := l.FromContext(ctx).Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// LogGenerationStart logs the beginning of a documentation request
func (l *Logger) LogGenerationStart(ctx context.Context, codeLength, chunkCount int) {
	l.FromContext(ctx).Info().
		Int("code_length", codeLength).
		Int("chunks", chunkCount).
		Msg("Documentation generation started")
}

// LogGenerationComplete logs the outcome of a documentation request
func (l *Logger) LogGenerationComplete(ctx context.Context, succeeded, failed int, docLength int, duration time.Duration) {
	l.FromContext(ctx).Info().
		Int("succeeded", succeeded).
		Int("failed", failed).
		Int("documentation_length", docLength).
		Dur("duration", duration).
		Msg("Documentation generation completed")
}

// LogChunkFailure logs a chunk that was skipped
func (l *Logger) LogChunkFailure(ctx context.Context, index, total int, err error) {
	l.FromContext(ctx).Warn().
		Err(err).
		Int("chunk", index+1).
		Int("total", total).
		Msg("Skipping chunk after completion failure")
}

// Global logger instance
var globalLogger *Logger

// Init initializes the global logger
func Init(config *Config) error {
	logger, err := New(config)
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// Get returns the global logger
func Get() *Logger {
	if globalLogger == nil {
		// Fallback to default logger
		logger, _ := New(DefaultConfig())
		globalLogger = logger
	}
	return globalLogger
}
