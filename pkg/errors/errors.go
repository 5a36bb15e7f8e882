package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Error types
	ValidationError      ErrorType = "validation_error"
	NoDocumentationError ErrorType = "no_documentation_error"
	UpstreamTimeoutError ErrorType = "upstream_timeout_error"
	PaymentRequiredError ErrorType = "payment_required_error"
	UpstreamError        ErrorType = "upstream_error"
	NetworkError         ErrorType = "network_error"
	CanceledError        ErrorType = "request_canceled_error"
	RateLimitError       ErrorType = "rate_limit_error"
	NotFoundError        ErrorType = "not_found_error"
	ConfigurationError   ErrorType = "configuration_error"
	InternalError        ErrorType = "internal_error"
)

// StatusClientClosedRequest is the non-standard status used when the caller
// went away before a response was produced.
const StatusClientClosedRequest = 499

// DetailPrefix marks every error detail returned to callers.
const DetailPrefix = "⚠️ "

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"http_status"`
	Timestamp  time.Time              `json:"timestamp"`
	File       string                 `json:"file,omitempty"`
	Line       int                    `json:"line,omitempty"`
	Function   string                 `json:"function,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	InnerError error                  `json:"-"` // Not serialized
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// Detail is the caller-facing message, prefixed so it stands apart from normal output.
func (e *AppError) Detail() string {
	return DetailPrefix + e.Message
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithStatus overrides the HTTP status derived from the error type
func (e *AppError) WithStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	err := &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: getHTTPStatus(errType),
		Timestamp:  time.Now(),
	}

	// Add stack trace information
	if pc, file, line, ok := runtime.Caller(1); ok {
		err.File = file
		err.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			err.Function = fn.Name()
		}
	}

	return err
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	appErr := New(errType, code, message)
	appErr.InnerError = err
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// Newf creates a new AppError with formatted message
func Newf(errType ErrorType, code, format string, args ...interface{}) *AppError {
	return New(errType, code, fmt.Sprintf(format, args...))
}

// Predefined error constructors

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return New(ValidationError, "VALIDATION_FAILED", message)
}

// NewNoDocumentationError reports that no chunk produced any documentation.
// The per-chunk causes are kept as the inner error for logging.
func NewNoDocumentationError(causes error) *AppError {
	err := New(NoDocumentationError, "NO_DOCUMENTATION_GENERATED", "Failed to generate documentation for any code chunks")
	err.InnerError = causes
	return err
}

// NewUpstreamTimeoutError creates a gateway timeout error for the named provider
func NewUpstreamTimeoutError(provider string) *AppError {
	return Newf(UpstreamTimeoutError, "UPSTREAM_TIMEOUT", "%s API timed out. Please try again later.", provider)
}

// NewPaymentRequiredError surfaces the upstream billing message verbatim
func NewPaymentRequiredError(upstreamMessage string) *AppError {
	return Newf(PaymentRequiredError, "PAYMENT_REQUIRED", "Payment required: %s", upstreamMessage)
}

// NewUpstreamError carries the upstream status code and body text.
func NewUpstreamError(provider string, status int, body string) *AppError {
	err := Newf(UpstreamError, "UPSTREAM_ERROR", "%s API Error: %s", provider, body).
		WithContext("upstream_status", status)
	if status >= http.StatusBadRequest {
		err.HTTPStatus = status
	}
	return err
}

// NewMalformedResponseError is returned when a 200 response cannot be used
func NewMalformedResponseError(provider string, cause error) *AppError {
	return Wrap(cause, UpstreamError, "MALFORMED_RESPONSE", fmt.Sprintf("%s API returned an invalid response", provider))
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *AppError {
	return Wrap(cause, NetworkError, "NETWORK_ERROR", "Failed to reach the completion API")
}

// NewCanceledError reports a request abandoned by its caller
func NewCanceledError(cause error) *AppError {
	return Wrap(cause, CanceledError, "REQUEST_CANCELED", "Request canceled")
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(message string) *AppError {
	return New(RateLimitError, "RATE_LIMIT_EXCEEDED", message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return New(NotFoundError, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *AppError {
	return New(ConfigurationError, "CONFIGURATION_ERROR", message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return New(InternalError, "INTERNAL_ERROR", message)
}

// NewGenerationError is the last-resort conversion of an unexpected failure
func NewGenerationError(cause error) *AppError {
	return Wrap(cause, InternalError, "INTERNAL_ERROR", fmt.Sprintf("Error generating documentation: %v", cause))
}

// FromContext converts a context error into the matching AppError.
// Deadline expiry counts as an upstream timeout.
func FromContext(err error, provider string) *AppError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		appErr := NewUpstreamTimeoutError(provider)
		appErr.InnerError = err
		return appErr
	}
	return NewCanceledError(err)
}

// ErrorResponse is the JSON body returned for failed requests
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *AppError) *ErrorResponse {
	return &ErrorResponse{Detail: err.Detail()}
}

// getHTTPStatus maps error types to HTTP status codes
func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case UpstreamTimeoutError:
		return http.StatusGatewayTimeout
	case PaymentRequiredError:
		return http.StatusPaymentRequired
	case UpstreamError, NetworkError:
		return http.StatusBadGateway
	case CanceledError:
		return StatusClientClosedRequest
	case RateLimitError:
		return http.StatusTooManyRequests
	case NotFoundError:
		return http.StatusNotFound
	case NoDocumentationError, ConfigurationError, InternalError:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *AppError from an error chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errType
	}
	return false
}

// IsCode checks if the error has a specific code
func IsCode(err error, code string) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Normalize returns err as an *AppError, converting anything unknown to an internal error
func Normalize(err error) *AppError {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return NewGenerationError(err)
}
