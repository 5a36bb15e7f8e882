package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with custom validation rules
type Validator struct {
	validate *validator.Validate
	config   *Config
}

// Config holds validation configuration
type Config struct {
	MinChunkSize   int `json:"min_chunk_size" yaml:"min_chunk_size"`     // Smallest accepted chunk size in characters
	MaxChunkSize   int `json:"max_chunk_size" yaml:"max_chunk_size"`     // Largest accepted chunk size in characters
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`   // Upper bound for concurrent completion calls
	MaxTokens      int `json:"max_tokens" yaml:"max_tokens"`             // Upper bound for max_tokens per completion
	MaxCodeLength  int `json:"max_code_length" yaml:"max_code_length"`   // 0 disables the length check
}

// DefaultConfig returns default validation configuration
func DefaultConfig() *Config {
	return &Config{
		MinChunkSize:   1,
		MaxChunkSize:   100000,
		MaxConcurrency: 16,
		MaxTokens:      32000,
		MaxCodeLength:  0,
	}
}

// New creates a new validator instance
func New(config *Config) *Validator {
	if config == nil {
		config = DefaultConfig()
	}

	validate := validator.New()

	// Register custom validation tags
	validate.RegisterValidation("chunk_size", validateRange(config.MinChunkSize, config.MaxChunkSize))
	validate.RegisterValidation("concurrency", validateRange(1, config.MaxConcurrency))
	validate.RegisterValidation("max_tokens", validateRange(1, config.MaxTokens))
	validate.RegisterValidation("code_length", validateCodeLength(config.MaxCodeLength))

	return &Validator{
		validate: validate,
		config:   config,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

// ValidateStruct validates a struct
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var validationErrors ValidationErrors
	for _, err := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Tag:     err.Tag(),
			Value:   fmt.Sprintf("%v", err.Value()),
			Message: getErrorMessage(err),
		})
	}
	return validationErrors
}

// ValidateGenerationOptions validates generator tuning parameters
func (v *Validator) ValidateGenerationOptions(chunkSize, concurrency, maxTokens int) error {
	var errors ValidationErrors

	if chunkSize < v.config.MinChunkSize || chunkSize > v.config.MaxChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunk_size",
			Tag:     "chunk_size",
			Value:   fmt.Sprintf("%d", chunkSize),
			Message: fmt.Sprintf("Chunk size %d must be between %d and %d", chunkSize, v.config.MinChunkSize, v.config.MaxChunkSize),
		})
	}

	if concurrency < 1 || concurrency > v.config.MaxConcurrency {
		errors = append(errors, ValidationError{
			Field:   "concurrency",
			Tag:     "concurrency",
			Value:   fmt.Sprintf("%d", concurrency),
			Message: fmt.Sprintf("Concurrency %d must be between 1 and %d", concurrency, v.config.MaxConcurrency),
		})
	}

	if maxTokens < 1 || maxTokens > v.config.MaxTokens {
		errors = append(errors, ValidationError{
			Field:   "max_tokens",
			Tag:     "max_tokens",
			Value:   fmt.Sprintf("%d", maxTokens),
			Message: fmt.Sprintf("Max tokens %d must be between 1 and %d", maxTokens, v.config.MaxTokens),
		})
	}

	if len(errors) > 0 {
		return errors
	}

	return nil
}

// Custom validation functions
func validateRange(minValue, maxValue int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := int(fl.Field().Int())
		return value >= minValue && value <= maxValue
	}
}

func validateCodeLength(maxLength int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if maxLength <= 0 {
			return true
		}
		return len([]rune(fl.Field().String())) <= maxLength
	}
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", err.Field(), err.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", err.Field())
	case "chunk_size":
		return fmt.Sprintf("%s has invalid chunk size", err.Field())
	case "concurrency":
		return fmt.Sprintf("%s has invalid concurrency", err.Field())
	case "max_tokens":
		return fmt.Sprintf("%s has invalid token limit", err.Field())
	case "code_length":
		return fmt.Sprintf("%s exceeds the maximum code length", err.Field())
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}

// Global validator instance
var globalValidator *Validator

// Init initializes the global validator
func Init(config *Config) {
	globalValidator = New(config)
}

// Get returns the global validator
func Get() *Validator {
	if globalValidator == nil {
		globalValidator = New(DefaultConfig())
	}
	return globalValidator
}
