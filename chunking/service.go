package chunking

import (
	"unicode/utf8"

	"codescribe/internal/core/domain"
	"codescribe/pkg/errors"
)

// Service splits source code into fixed-size chunks
type Service struct{}

// NewService creates a new chunking service
func NewService() *Service {
	return &Service{}
}

// Split partitions code into consecutive chunks of at most size characters.
// Chunks are never trimmed or overlapped, so joining them yields code again.
// Empty input yields no chunks.
func (s *Service) Split(code string, size int) ([]domain.Chunk, error) {
	if size < 1 {
		return nil, errors.NewValidationError("chunk size must be at least 1").
			WithContext("chunk_size", size)
	}

	length := utf8.RuneCountInString(code)
	if length == 0 {
		return nil, nil
	}

	total := (length + size - 1) / size
	chunks := make([]domain.Chunk, 0, total)

	start, runes := 0, 0
	for i := range code {
		if runes == size {
			chunks = append(chunks, domain.Chunk{
				Index:   len(chunks),
				Total:   total,
				Content: code[start:i],
				Size:    runes,
			})
			start, runes = i, 0
		}
		runes++
	}
	chunks = append(chunks, domain.Chunk{
		Index:   len(chunks),
		Total:   total,
		Content: code[start:],
		Size:    runes,
	})

	return chunks, nil
}

// Analyze splits code and reports chunk statistics
func (s *Service) Analyze(code string, size int) (*ChunkResult, error) {
	chunks, err := s.Split(code, size)
	if err != nil {
		return nil, err
	}

	avgSize := 0.0
	if len(chunks) > 0 {
		chunkSizeSum := 0
		for _, chunk := range chunks {
			chunkSizeSum += chunk.Size
		}
		avgSize = float64(chunkSizeSum) / float64(len(chunks))
	}

	return &ChunkResult{
		Chunks:       chunks,
		TotalChunks:  len(chunks),
		AverageSize:  avgSize,
		OriginalSize: utf8.RuneCountInString(code),
	}, nil
}
