package completion

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"codescribe/internal/core/domain"
	"codescribe/pkg/errors"
)

const (
	DefaultEndpoint  = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel     = "mistralai/mistral-7b-instruct"
	DefaultProvider  = "OpenRouter"
	DefaultTimeout   = 30 * time.Second
	DefaultMaxTokens = 1500

	unknownPaymentError = "Unknown error"
	maxErrorBodyBytes   = 64 << 10
)

// Config holds completion client configuration
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Provider string // label used in error messages
	Timeout  time.Duration
	Referer  string // optional HTTP-Referer attribution header
	Title    string // optional X-Title attribution header
}

// Client calls an OpenAI-compatible chat completions endpoint
type Client struct {
	config     Config
	httpClient *http.Client
}

type chatRequest struct {
	Model     string           `json:"model"`
	Messages  []domain.Message `json:"messages"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a completion client, filling in defaults
func NewClient(config Config) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Provider == "" {
		config.Provider = DefaultProvider
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends one chat completion request and returns the first choice
func (c *Client) Complete(ctx context.Context, in domain.CompletionRequest) (*domain.CompletionResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.config.Model,
		Messages:  in.Messages,
		MaxTokens: in.MaxTokens,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.InternalError, "ENCODE_FAILED", "failed to encode completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationError, "INVALID_ENDPOINT", "failed to create completion request")
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.config.Referer != "" {
		req.Header.Set("HTTP-Referer", c.config.Referer)
	}
	if c.config.Title != "" {
		req.Header.Set("X-Title", c.config.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return c.decode(resp.Body)
	case http.StatusRequestTimeout:
		return nil, errors.NewUpstreamTimeoutError(c.config.Provider)
	case http.StatusPaymentRequired:
		return nil, errors.NewPaymentRequiredError(paymentMessage(resp.Body))
	default:
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, errors.NewUpstreamError(c.config.Provider, resp.StatusCode, string(text))
	}
}

func (c *Client) decode(r io.Reader) (*domain.CompletionResponse, error) {
	var payload chatResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, errors.NewMalformedResponseError(c.config.Provider, err)
	}
	if len(payload.Choices) == 0 {
		return nil, errors.NewMalformedResponseError(c.config.Provider, fmt.Errorf("response contained no choices"))
	}

	return &domain.CompletionResponse{
		Content: payload.Choices[0].Message.Content,
		Model:   payload.Model,
	}, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.FromContext(ctxErr, c.config.Provider)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		appErr := errors.NewUpstreamTimeoutError(c.config.Provider)
		appErr.InnerError = err
		return appErr
	}
	return errors.NewNetworkError(err)
}

// paymentMessage extracts error.message from a 402 body
func paymentMessage(r io.Reader) string {
	var payload errorResponse
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBodyBytes)).Decode(&payload); err != nil {
		return unknownPaymentError
	}
	if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
		return payload.Error.Message
	}
	return unknownPaymentError
}
