package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"codescribe/internal/adapters/secondary/completion"
	"codescribe/internal/core/services"
	"codescribe/pkg/logger"
	"codescribe/pkg/storage"
	"codescribe/pkg/validator"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the CodeScribe backend
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Completion CompletionConfig `yaml:"completion"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Validation ValidationConfig `yaml:"validation"`
	Security   SecurityConfig   `yaml:"security"`
	Health     HealthConfig     `yaml:"health"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string        `yaml:"port" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Environment     string        `yaml:"environment" validate:"oneof=development staging production test"`
}

// CompletionConfig holds the remote completion API settings
type CompletionConfig struct {
	APIKey    string        `yaml:"api_key" json:"-"`
	Endpoint  string        `yaml:"endpoint" validate:"required,url"`
	Model     string        `yaml:"model" validate:"required"`
	Provider  string        `yaml:"provider" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" validate:"min=1s"`
	MaxTokens int           `yaml:"max_tokens" validate:"min=1"`
	Referer   string        `yaml:"referer"`
	Title     string        `yaml:"title"`

	// BreakerThreshold consecutive upstream failures open the circuit; 0 disables it
	BreakerThreshold int           `yaml:"breaker_threshold" validate:"min=0"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" validate:"min=0"`
}

// GeneratorConfig tunes chunking and fan-out
type GeneratorConfig struct {
	ChunkSize      int           `yaml:"chunk_size" validate:"min=1"`
	Concurrency    int           `yaml:"concurrency" validate:"min=1"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=0"`
}

// RedisConfig holds Redis connection configuration.
// An empty Host keeps rate limiting in memory.
type RedisConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
	Password  string `yaml:"password" json:"-"`
	DB        int    `yaml:"db" validate:"min=0"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format     string `yaml:"format" validate:"oneof=json console"`
	Output     string `yaml:"output" validate:"oneof=stdout stderr file"`
	Filename   string `yaml:"filename,omitempty"`
	TimeFormat string `yaml:"time_format"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      string `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// ValidationConfig bounds request and tuning values
type ValidationConfig struct {
	MaxCodeLength  int `yaml:"max_code_length" validate:"min=0"`
	MaxChunkSize   int `yaml:"max_chunk_size" validate:"min=1"`
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=1"`
	MaxTokens      int `yaml:"max_tokens" validate:"min=1"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitEnabled   bool     `yaml:"rate_limit_enabled"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" validate:"min=1"`
	CorsEnabled        bool     `yaml:"cors_enabled"`
	CorsAllowedOrigins []string `yaml:"cors_allowed_origins"`
	MaxRequestBodySize int      `yaml:"max_request_body_size" validate:"min=1"`
}

// HealthConfig holds health check configuration
type HealthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute, // large inputs fan out into many sequential calls
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
		},
		Completion: CompletionConfig{
			Endpoint:  completion.DefaultEndpoint,
			Model:     completion.DefaultModel,
			Provider:  completion.DefaultProvider,
			Timeout:   completion.DefaultTimeout,
			MaxTokens: completion.DefaultMaxTokens,

			BreakerCooldown: 30 * time.Second,
		},
		Generator: GeneratorConfig{
			ChunkSize:   2000,
			Concurrency: 1,
		},
		Redis: RedisConfig{
			Port:      6379,
			Namespace: "codescribe:limiter",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			Filename:   "logs/app.log",
			TimeFormat: time.RFC3339,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Port:      "9090",
			Path:      "/metrics",
			Namespace: "codescribe",
			Subsystem: "api",
		},
		Validation: ValidationConfig{
			MaxCodeLength:  0,
			MaxChunkSize:   100000,
			MaxConcurrency: 16,
			MaxTokens:      32000,
		},
		Security: SecurityConfig{
			RateLimitEnabled:   true,
			RateLimitPerMinute: 60,
			CorsEnabled:        true,
			CorsAllowedOrigins: []string{"*"},
			MaxRequestBodySize: 10 * 1024 * 1024, // 10MB
		},
		Health: HealthConfig{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
	}
}

// Load reads configuration from environment variables over the defaults
func Load() *Config {
	c := Default()
	c.applyEnv()
	return c
}

// LoadFile reads a YAML file over the defaults, then applies environment overrides
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.applyEnv()
	return c, nil
}

// applyEnv overrides fields whose environment variable is set
func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getDurationEnv("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)

	c.Completion.APIKey = getEnv("OPENAI_API_KEY", c.Completion.APIKey)
	c.Completion.Endpoint = getEnv("COMPLETION_ENDPOINT", c.Completion.Endpoint)
	c.Completion.Model = getEnv("COMPLETION_MODEL", c.Completion.Model)
	c.Completion.Provider = getEnv("COMPLETION_PROVIDER", c.Completion.Provider)
	c.Completion.Timeout = getDurationEnv("COMPLETION_TIMEOUT", c.Completion.Timeout)
	c.Completion.MaxTokens = getIntEnv("COMPLETION_MAX_TOKENS", c.Completion.MaxTokens)
	c.Completion.Referer = getEnv("COMPLETION_REFERER", c.Completion.Referer)
	c.Completion.Title = getEnv("COMPLETION_TITLE", c.Completion.Title)
	c.Completion.BreakerThreshold = getIntEnv("COMPLETION_BREAKER_THRESHOLD", c.Completion.BreakerThreshold)
	c.Completion.BreakerCooldown = getDurationEnv("COMPLETION_BREAKER_COOLDOWN", c.Completion.BreakerCooldown)

	c.Generator.ChunkSize = getIntEnv("CHUNK_SIZE", c.Generator.ChunkSize)
	c.Generator.Concurrency = getIntEnv("GENERATOR_CONCURRENCY", c.Generator.Concurrency)
	c.Generator.RequestTimeout = getDurationEnv("GENERATOR_REQUEST_TIMEOUT", c.Generator.RequestTimeout)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getIntEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("REDIS_DB", c.Redis.DB)
	c.Redis.Namespace = getEnv("REDIS_NAMESPACE", c.Redis.Namespace)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
	c.Logging.Filename = getEnv("LOG_FILENAME", c.Logging.Filename)
	c.Logging.TimeFormat = getEnv("LOG_TIME_FORMAT", c.Logging.TimeFormat)

	c.Metrics.Enabled = getBoolEnv("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Port = getEnv("METRICS_PORT", c.Metrics.Port)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)
	c.Metrics.Namespace = getEnv("METRICS_NAMESPACE", c.Metrics.Namespace)
	c.Metrics.Subsystem = getEnv("METRICS_SUBSYSTEM", c.Metrics.Subsystem)

	c.Validation.MaxCodeLength = getIntEnv("VALIDATION_MAX_CODE_LENGTH", c.Validation.MaxCodeLength)
	c.Validation.MaxChunkSize = getIntEnv("VALIDATION_MAX_CHUNK_SIZE", c.Validation.MaxChunkSize)
	c.Validation.MaxConcurrency = getIntEnv("VALIDATION_MAX_CONCURRENCY", c.Validation.MaxConcurrency)
	c.Validation.MaxTokens = getIntEnv("VALIDATION_MAX_TOKENS", c.Validation.MaxTokens)

	c.Security.RateLimitEnabled = getBoolEnv("SECURITY_RATE_LIMIT_ENABLED", c.Security.RateLimitEnabled)
	c.Security.RateLimitPerMinute = getIntEnv("SECURITY_RATE_LIMIT_PER_MINUTE", c.Security.RateLimitPerMinute)
	c.Security.CorsEnabled = getBoolEnv("SECURITY_CORS_ENABLED", c.Security.CorsEnabled)
	c.Security.CorsAllowedOrigins = getStringSliceEnv("SECURITY_CORS_ALLOWED_ORIGINS", c.Security.CorsAllowedOrigins)
	c.Security.MaxRequestBodySize = getIntEnv("SECURITY_MAX_REQUEST_BODY_SIZE", c.Security.MaxRequestBodySize)

	c.Health.Enabled = getBoolEnv("HEALTH_ENABLED", c.Health.Enabled)
	c.Health.Timeout = getDurationEnv("HEALTH_TIMEOUT", c.Health.Timeout)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Int("default", defaultValue).Msg("Invalid integer value, using default")
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Warn().Str("key", key).Str("value", value).Bool("default", defaultValue).Msg("Invalid boolean value, using default")
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).Msg("Invalid duration value, using default")
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// Validate checks struct tags and the generator bounds
func (c *Config) Validate() error {
	if err := validator.New(nil).ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validator.New(c.ValidatorConfig()).ValidateGenerationOptions(
		c.Generator.ChunkSize, c.Generator.Concurrency, c.Completion.MaxTokens,
	); err != nil {
		return fmt.Errorf("invalid generator settings: %w", err)
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// RedisEnabled reports whether a Redis host is configured
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// LoggerConfig maps the logging section onto pkg/logger
func (c *Config) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Output:     c.Logging.Output,
		Filename:   c.Logging.Filename,
		TimeFormat: c.Logging.TimeFormat,
	}
}

// ValidatorConfig maps the validation section onto pkg/validator
func (c *Config) ValidatorConfig() *validator.Config {
	return &validator.Config{
		MinChunkSize:   1,
		MaxChunkSize:   c.Validation.MaxChunkSize,
		MaxConcurrency: c.Validation.MaxConcurrency,
		MaxTokens:      c.Validation.MaxTokens,
		MaxCodeLength:  c.Validation.MaxCodeLength,
	}
}

// StorageConfig maps the redis section onto pkg/storage
func (c *Config) StorageConfig() *storage.Config {
	sc := storage.DefaultConfig()
	sc.Host = c.Redis.Host
	sc.Port = c.Redis.Port
	sc.Password = c.Redis.Password
	sc.DB = c.Redis.DB
	if c.Redis.Namespace != "" {
		sc.Namespace = c.Redis.Namespace
	}
	return sc
}

// CompletionClientConfig maps the completion section onto the HTTP client
func (c *Config) CompletionClientConfig() completion.Config {
	return completion.Config{
		Endpoint: c.Completion.Endpoint,
		APIKey:   c.Completion.APIKey,
		Model:    c.Completion.Model,
		Provider: c.Completion.Provider,
		Timeout:  c.Completion.Timeout,
		Referer:  c.Completion.Referer,
		Title:    c.Completion.Title,
	}
}

// CompletionGuardConfig maps the breaker settings onto the completion guard
func (c *Config) CompletionGuardConfig() completion.GuardConfig {
	return completion.GuardConfig{
		Threshold: c.Completion.BreakerThreshold,
		Cooldown:  c.Completion.BreakerCooldown,
	}
}

// GeneratorOptions maps the generator section onto the documentation service
func (c *Config) GeneratorOptions() services.Options {
	return services.Options{
		ChunkSize:      c.Generator.ChunkSize,
		MaxTokens:      c.Completion.MaxTokens,
		Concurrency:    c.Generator.Concurrency,
		RequestTimeout: c.Generator.RequestTimeout,
		Provider:       c.Completion.Provider,
	}
}
