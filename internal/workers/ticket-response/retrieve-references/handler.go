// internal/workers/ticket-response/retrieve-references/handler.go
package retrievereferences

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ticket-responder/internal/common/cache"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/common/metrics"
	"ticket-responder/internal/models"
)

const (
	TaskType = "retrieve-references"
)

var (
	ErrInvalidInput      = errors.New("INVALID_INPUT")
	ErrEmbeddingFailed   = errors.New("EMBEDDING_FAILED")
	ErrVectorQueryFailed = errors.New("VECTOR_QUERY_FAILED")
	ErrRetrievalTimeout  = errors.New("RETRIEVAL_TIMEOUT")
)

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns the topK nearest chunks within namespace, best first.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, namespace string, topK int) ([]models.ReferenceChunk, error)
}

// EmbeddingCache stores query vectors between runs. Optional.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, vec []float32) error
}

type Handler struct {
	config   *Config
	embedder Embedder
	index    VectorIndex
	cache    EmbeddingCache
	cacheTag string
	logger   logger.Logger
}

// NewHandler wires the retriever. cacheTag identifies the embedding model in cache keys.
func NewHandler(config *Config, embedder Embedder, index VectorIndex, embeddingCache EmbeddingCache, cacheTag string, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		embedder: embedder,
		index:    index,
		cache:    embeddingCache,
		cacheTag: cacheTag,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// BuildQuery joins the summary and selected comment bodies, capped at maxChars runes.
func BuildQuery(ticket *models.Ticket, selected []models.Comment, maxChars int) string {
	parts := []string{strings.TrimSpace(ticket.Summary)}
	for _, c := range selected {
		if body := strings.TrimSpace(c.Body); body != "" {
			parts = append(parts, body)
		}
	}
	query := strings.Join(parts, "\n\n")

	if maxChars > 0 {
		if runes := []rune(query); len(runes) > maxChars {
			query = string(runes[:maxChars])
		}
	}
	return query
}

// Execute embeds the query and fetches the top-k chunks. Chunks lacking title, text or
// source are dropped and logged. Zero usable chunks is a valid result.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Ticket == nil {
		return nil, ErrInvalidInput
	}

	query := BuildQuery(input.Ticket, input.Selected, h.config.MaxQueryChars)
	if strings.TrimSpace(query) == "" {
		h.logger.Warn("Empty retrieval query, skipping vector search", map[string]interface{}{
			"ticketKey": input.Ticket.Key,
		})
		return &Output{References: []models.ReferenceChunk{}}, nil
	}

	vector, err := h.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, h.config.QueryTimeout)
	defer cancel()

	chunks, err := h.index.Query(queryCtx, vector, h.config.Namespace, h.config.TopK)
	if err != nil {
		if isTimeout(queryCtx, err) {
			return nil, fmt.Errorf("%w: vector query: %v", ErrRetrievalTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrVectorQueryFailed, err)
	}

	out := &Output{Query: query, References: make([]models.ReferenceChunk, 0, len(chunks))}
	for i, chunk := range chunks {
		if chunk.Rank == 0 {
			chunk.Rank = i + 1
		}
		if !chunk.Complete() {
			out.Dropped++
			metrics.DataQualityEvents.WithLabelValues("reference_metadata_missing").Inc()
			h.logger.Warn("Reference chunk missing metadata, dropped", map[string]interface{}{
				"event":     "reference_metadata_missing",
				"ticketKey": input.Ticket.Key,
				"chunkId":   chunk.ID,
				"rank":      chunk.Rank,
				"missing":   chunk.MissingFields(),
			})
			continue
		}
		out.References = append(out.References, chunk)
	}

	metrics.ReferencesRetrieved.Observe(float64(len(out.References)))
	h.logger.Info("References retrieved", map[string]interface{}{
		"ticketKey":  input.Ticket.Key,
		"namespace":  h.config.Namespace,
		"topK":       h.config.TopK,
		"returned":   len(chunks),
		"usable":     len(out.References),
		"dropped":    out.Dropped,
		"queryChars": len([]rune(query)),
	})
	return out, nil
}

func (h *Handler) embed(ctx context.Context, query string) ([]float32, error) {
	key := cache.Key(h.cacheTag, query)
	if h.cache != nil {
		if vec, ok, err := h.cache.GetEmbedding(ctx, key); err != nil {
			h.logger.Warn("Embedding cache read failed", map[string]interface{}{"error": err})
		} else if ok {
			return vec, nil
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, h.config.EmbeddingTimeout)
	defer cancel()

	vector, err := h.embedder.Embed(embedCtx, query)
	if err != nil {
		if isTimeout(embedCtx, err) {
			return nil, fmt.Errorf("%w: embedding: %v", ErrRetrievalTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	if h.cache != nil {
		if err := h.cache.SetEmbedding(ctx, key, vector); err != nil {
			h.logger.Warn("Embedding cache write failed", map[string]interface{}{"error": err})
		}
	}
	return vector, nil
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded
}
