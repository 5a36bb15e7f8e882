package ports

import (
	"context"
	"time"

	"codescribe/internal/core/domain"
)

// Primary Ports (inbound)

// DocumentationService turns source code into generated documentation
type DocumentationService interface {
	GenerateDocs(ctx context.Context, input domain.CodeInput) (*domain.Document, error)
}

// HealthService defines health checking operations
type HealthService interface {
	GetHealthStatus(ctx context.Context) (*domain.HealthStatus, error)
	CheckDependencies(ctx context.Context) (map[string]domain.DepInfo, error)
}

// Secondary Ports (outbound)

// CompletionClient sends one chat completion request to the remote model
type CompletionClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error)
}

// PromptBuilder renders the chat messages for one chunk
type PromptBuilder interface {
	Build(chunk domain.Chunk) ([]domain.Message, error)
}

// Chunker partitions code into bounded chunks
type Chunker interface {
	Split(code string, size int) ([]domain.Chunk, error)
}

// GenerationMetrics receives generation statistics
type GenerationMetrics interface {
	RecordGeneration(status string, duration time.Duration, docBytes int)
	RecordCompletion(result string, duration time.Duration)
	RecordChunking(duration time.Duration, chunkCount int, avgChunkSize float64)
}
