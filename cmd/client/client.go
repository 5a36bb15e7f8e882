package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout covers large inputs that fan out into many sequential completions
const DefaultTimeout = 10 * time.Minute

// Client talks to a CodeScribe server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// HealthReport mirrors the /health response
type HealthReport struct {
	Status       string                `json:"status"`
	Version      string                `json:"version"`
	Environment  string                `json:"environment"`
	Timestamp    time.Time             `json:"timestamp"`
	Uptime       string                `json:"uptime"`
	Dependencies map[string]Dependency `json:"dependencies"`
}

// Dependency is one entry of HealthReport.Dependencies
type Dependency struct {
	Status    string `json:"status"`
	Available bool   `json:"available"`
	Latency   string `json:"latency,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SourceFile is one input of BatchGenerate
type SourceFile struct {
	Name string
	Code string
}

// BatchResult is the outcome for one SourceFile
type BatchResult struct {
	Name          string
	Documentation string
	Err           error
}

// NewClient creates a new CodeScribe client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Ping returns the root banner message
func (c *Client) Ping(ctx context.Context) (string, error) {
	var body struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, "/", nil, &body); err != nil {
		return "", err
	}
	return body.Message, nil
}

// GenerateDocs requests documentation for a piece of source code
func (c *Client) GenerateDocs(ctx context.Context, code string) (string, error) {
	var body struct {
		Documentation string `json:"documentation"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-docs", map[string]string{"code": code}, &body); err != nil {
		return "", err
	}
	return body.Documentation, nil
}

// Health fetches the server health report.
// A degraded server answers 503 with a report, which is returned without error.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var report HealthReport
	err := c.do(ctx, http.MethodGet, "/health", nil, &report)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusServiceUnavailable && report.Status != "" {
		return &report, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// BatchGenerate documents several files with at most maxConcurrency requests in flight.
// Results keep the order of files.
func (c *Client) BatchGenerate(ctx context.Context, files []SourceFile, maxConcurrency int) []BatchResult {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	jobs := make(chan int, len(files))
	done := make(chan struct{}, len(files))
	results := make([]BatchResult, len(files))

	// Start workers
	for i := 0; i < maxConcurrency; i++ {
		go func() {
			for idx := range jobs {
				doc, err := c.GenerateDocs(ctx, files[idx].Code)
				results[idx] = BatchResult{Name: files[idx].Name, Documentation: doc, Err: err}
				done <- struct{}{}
			}
		}()
	}

	// Send jobs
	for i := range files {
		jobs <- i
	}
	close(jobs)

	for range files {
		<-done
	}

	return results
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(raw))}
		var errBody struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &errBody) == nil && errBody.Detail != "" {
			apiErr.Detail = errBody.Detail
		}
		// health reports still decode on 503
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
