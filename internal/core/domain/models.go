package domain

import (
	"time"
)

// Message roles understood by chat completion endpoints
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CodeInput is the source code submitted for documentation
type CodeInput struct {
	Code string `json:"code"`
}

// Chunk is a contiguous, bounded slice of the submitted code
type Chunk struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Content string `json:"content"`
	Size    int    `json:"size"` // in characters
}

// Position returns the 1-based position of the chunk
func (c Chunk) Position() int {
	return c.Index + 1
}

// ChunkResult holds the outcome of one completion call.
// Exactly one of Text or Err is meaningful.
type ChunkResult struct {
	Index    int           `json:"index"`
	Text     string        `json:"text,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the chunk produced documentation
func (r ChunkResult) OK() bool {
	return r.Err == nil
}

// Document is the aggregated documentation for a CodeInput
type Document struct {
	Documentation string        `json:"documentation"`
	Chunks        int           `json:"chunks"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration"`
}

// Message is a single chat message sent to the completion endpoint
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-neutral chat completion request
type CompletionRequest struct {
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// CompletionResponse carries the text of the first returned choice
type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// HealthStatus represents system health status
type HealthStatus struct {
	Status       string             `json:"status"`
	Version      string             `json:"version"`
	Timestamp    time.Time          `json:"timestamp"`
	Uptime       string             `json:"uptime"`
	Dependencies map[string]DepInfo `json:"dependencies"`
}

// DepInfo represents information about a dependency
type DepInfo struct {
	Status    string `json:"status"`
	Available bool   `json:"available"`
	Latency   string `json:"latency,omitempty"`
	Message   string `json:"message,omitempty"`
}
