package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"codescribe/internal/core/domain"
	"codescribe/internal/core/ports"
	"codescribe/pkg/errors"
	"codescribe/pkg/logger"
	"codescribe/pkg/validator"

	"golang.org/x/sync/errgroup"
)

// Separator joins the documentation of consecutive chunks
const Separator = "\n\n"

// Options tunes documentation generation
type Options struct {
	ChunkSize      int
	MaxTokens      int
	Concurrency    int           // 1 keeps calls sequential
	RequestTimeout time.Duration // 0 disables the aggregate deadline
	Provider       string        // label used for timeout errors
}

// DefaultOptions returns the stock generation settings
func DefaultOptions() Options {
	return Options{
		ChunkSize:   2000,
		MaxTokens:   1500,
		Concurrency: 1,
		Provider:    "OpenRouter",
	}
}

type generatorState struct {
	opts   Options
	client ports.CompletionClient
}

// DocumentationServiceImpl implements the DocumentationService port
type DocumentationServiceImpl struct {
	state   atomic.Pointer[generatorState]
	chunker ports.Chunker
	prompts ports.PromptBuilder
	metrics ports.GenerationMetrics
	logger  *logger.Logger
}

// NewDocumentationService creates a new documentation service
func NewDocumentationService(
	client ports.CompletionClient,
	chunker ports.Chunker,
	prompts ports.PromptBuilder,
	metrics ports.GenerationMetrics,
	log *logger.Logger,
	opts Options,
) (*DocumentationServiceImpl, error) {
	if client == nil {
		return nil, errors.NewConfigurationError("completion client is required")
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &DocumentationServiceImpl{
		chunker: chunker,
		prompts: prompts,
		metrics: metrics,
		logger:  log,
	}
	if err := s.Reconfigure(opts, client); err != nil {
		return nil, err
	}
	return s, nil
}

// Reconfigure swaps the generation settings and, when non-nil, the client.
// Requests already running keep the settings they started with.
func (s *DocumentationServiceImpl) Reconfigure(opts Options, client ports.CompletionClient) error {
	if opts.Provider == "" {
		opts.Provider = DefaultOptions().Provider
	}
	if err := validator.Get().ValidateGenerationOptions(opts.ChunkSize, opts.Concurrency, opts.MaxTokens); err != nil {
		return errors.Wrap(err, errors.ConfigurationError, "INVALID_GENERATION_OPTIONS", err.Error())
	}

	if client == nil {
		current := s.state.Load()
		if current == nil {
			return errors.NewConfigurationError("completion client is required")
		}
		client = current.client
	}

	s.state.Store(&generatorState{opts: opts, client: client})
	return nil
}

// Options returns the settings new requests will use
func (s *DocumentationServiceImpl) Options() Options {
	return s.state.Load().opts
}

// GenerateDocs splits the code, documents every chunk and joins the results in chunk order.
// Failed chunks are skipped; the request fails only when no chunk produced documentation.
func (s *DocumentationServiceImpl) GenerateDocs(ctx context.Context, input domain.CodeInput) (doc *domain.Document, err error) {
	st := s.state.Load()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, errors.NewGenerationError(fmt.Errorf("%v", r))
		}
		s.record(ctx, doc, err, time.Since(start))
	}()

	if st.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.opts.RequestTimeout)
		defer cancel()
	}

	chunkStart := time.Now()
	chunks, err := s.chunker.Split(input.Code, st.opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordChunking(time.Since(chunkStart), len(chunks), averageSize(chunks))
	s.logger.LogGenerationStart(ctx, utf8.RuneCountInString(input.Code), len(chunks))

	results, err := s.generateChunks(ctx, st, chunks)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(results))
	var causes []error
	for _, result := range results {
		if result.OK() {
			texts = append(texts, result.Text)
			continue
		}
		causes = append(causes, fmt.Errorf("chunk %d/%d: %w", result.Index+1, len(chunks), result.Err))
	}

	if len(texts) == 0 {
		return nil, errors.NewNoDocumentationError(stderrors.Join(causes...))
	}

	return &domain.Document{
		Documentation: strings.Join(texts, Separator),
		Chunks:        len(chunks),
		Succeeded:     len(texts),
		Failed:        len(causes),
		Duration:      time.Since(start),
	}, nil
}

// generateChunks runs at most Concurrency completion calls at once.
// Results are stored by chunk index, so completion order never affects aggregation.
func (s *DocumentationServiceImpl) generateChunks(ctx context.Context, st *generatorState, chunks []domain.Chunk) ([]domain.ChunkResult, error) {
	results := make([]domain.ChunkResult, len(chunks))

	var (
		g        errgroup.Group
		panicErr error
		once     sync.Once
	)
	g.SetLimit(st.opts.Concurrency)

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() {
						panicErr = errors.NewGenerationError(fmt.Errorf("chunk %d: %v", chunk.Position(), r))
					})
				}
			}()
			// a slot may free up only after an earlier chunk was canceled
			if ctxErr := ctx.Err(); ctxErr != nil {
				results[i] = domain.ChunkResult{Index: chunk.Index, Err: ctxErr}
				return nil
			}
			results[i] = s.generateChunk(ctx, st, chunk)
			return nil
		})
	}
	g.Wait()

	if panicErr != nil {
		return nil, panicErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.FromContext(ctxErr, st.opts.Provider)
	}
	return results, nil
}

func (s *DocumentationServiceImpl) generateChunk(ctx context.Context, st *generatorState, chunk domain.Chunk) domain.ChunkResult {
	start := time.Now()
	result := domain.ChunkResult{Index: chunk.Index}

	messages, err := s.prompts.Build(chunk)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		s.logger.LogChunkFailure(ctx, chunk.Index, chunk.Total, err)
		return result
	}

	resp, err := st.client.Complete(ctx, domain.CompletionRequest{
		Messages:  messages,
		MaxTokens: st.opts.MaxTokens,
	})
	result.Duration = time.Since(start)

	if err != nil {
		result.Err = err
		s.metrics.RecordCompletion(outcome(err), result.Duration)
		s.logger.LogChunkFailure(ctx, chunk.Index, chunk.Total, err)
		return result
	}

	result.Text = resp.Content
	s.metrics.RecordCompletion("ok", result.Duration)
	return result
}

func (s *DocumentationServiceImpl) record(ctx context.Context, doc *domain.Document, err error, duration time.Duration) {
	if err != nil {
		s.metrics.RecordGeneration(outcome(err), duration, 0)
		s.logger.LogError(ctx, err, "Documentation generation failed", map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
		})
		return
	}
	s.metrics.RecordGeneration("success", duration, len(doc.Documentation))
	s.logger.LogGenerationComplete(ctx, doc.Succeeded, doc.Failed, len(doc.Documentation), duration)
}

func outcome(err error) string {
	if appErr, ok := errors.As(err); ok {
		return string(appErr.Type)
	}
	return string(errors.InternalError)
}

func averageSize(chunks []domain.Chunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	total := 0
	for _, chunk := range chunks {
		total += chunk.Size
	}
	return float64(total) / float64(len(chunks))
}

type nopMetrics struct{}

func (nopMetrics) RecordGeneration(string, time.Duration, int) {}
func (nopMetrics) RecordCompletion(string, time.Duration) {}
func (nopMetrics) RecordChunking(time.Duration, int, float64) {}
