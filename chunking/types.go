package chunking

import "codescribe/internal/core/domain"

// DefaultChunkSize is the chunk size in characters used when none is configured
const DefaultChunkSize = 2000

// ChunkResult holds the chunking result
type ChunkResult struct {
	Chunks       []domain.Chunk `json:"chunks"`
	TotalChunks  int            `json:"total_chunks"`
	AverageSize  float64        `json:"average_size"`
	OriginalSize int            `json:"original_size"`
}
