// internal/workers/ticket-response/retrieve-references/handler_test.go
package retrievereferences

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-responder/internal/common/cache"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/models"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, namespace string, topK int) ([]models.ReferenceChunk, error) {
	args := m.Called(ctx, vector, namespace, topK)
	if v := args.Get(0); v != nil {
		return v.([]models.ReferenceChunk), args.Error(1)
	}
	return nil, args.Error(1)
}

func createTestConfig() *Config {
	return &Config{
		Namespace:        "docs",
		TopK:             10,
		MaxQueryChars:    8000,
		EmbeddingTimeout: time.Second,
		QueryTimeout:     time.Second,
	}
}

func createTestInput() *Input {
	return &Input{
		Ticket: &models.Ticket{Key: "SUP-1", Summary: "Invoice numbers reset"},
		Selected: []models.Comment{
			{ID: "c1", Body: "h2. Fix Notes\nRe-seeded the sequence"},
		},
	}
}

// ==========================
// Query Building
// ==========================

func TestBuildQuery(t *testing.T) {
	in := createTestInput()
	assert.Equal(t, "Invoice numbers reset\n\nh2. Fix Notes\nRe-seeded the sequence", BuildQuery(in.Ticket, in.Selected, 0))
	assert.Equal(t, "Invoice numbers reset", BuildQuery(in.Ticket, nil, 0))
	assert.Equal(t, "Invoice", BuildQuery(in.Ticket, in.Selected, 7))
}

// ==========================
// Execute
// ==========================

func TestExecute_FiltersIncompleteChunks(t *testing.T) {
	vec := []float32{0.1, 0.2}
	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(vec, nil)

	index := new(MockVectorIndex)
	index.On("Query", mock.Anything, vec, "docs", 10).Return([]models.ReferenceChunk{
		{ID: "a", Title: "Invoices", Text: "Numbering", Source: "doc-42", Rank: 1},
		{ID: "b", Title: "", Text: "orphan", Source: "doc-7", Rank: 2},
		{ID: "c", Title: "Exports", Text: "CSV", Source: "doc-9", Rank: 3},
	}, nil)

	h := NewHandler(createTestConfig(), embedder, index, nil, "emb", logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	require.Len(t, out.References, 2)
	assert.Equal(t, "a", out.References[0].ID)
	assert.Equal(t, "c", out.References[1].ID)
	assert.Equal(t, 3, out.References[1].Rank)
	assert.Equal(t, 1, out.Dropped)
}

func TestExecute_ZeroSelectedStillRetrievesOnSummary(t *testing.T) {
	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, "Invoice numbers reset").Return([]float32{1}, nil)

	index := new(MockVectorIndex)
	index.On("Query", mock.Anything, mock.Anything, "docs", 10).Return([]models.ReferenceChunk{}, nil)

	in := createTestInput()
	in.Selected = nil

	h := NewHandler(createTestConfig(), embedder, index, nil, "emb", logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out.References)
	embedder.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		embedErr error
		queryErr error
		wantErr  error
	}{
		{name: "embedding failure", embedErr: errors.New("401"), wantErr: ErrEmbeddingFailed},
		{name: "embedding timeout", embedErr: context.DeadlineExceeded, wantErr: ErrRetrievalTimeout},
		{name: "query failure", queryErr: errors.New("500"), wantErr: ErrVectorQueryFailed},
		{name: "query timeout", queryErr: context.DeadlineExceeded, wantErr: ErrRetrievalTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := new(MockEmbedder)
			if tt.embedErr != nil {
				embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, tt.embedErr)
			} else {
				embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1}, nil)
			}
			index := new(MockVectorIndex)
			index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.queryErr)

			h := NewHandler(createTestConfig(), embedder, index, nil, "emb", logger.NewNoOpLogger())
			_, err := h.Execute(context.Background(), createTestInput())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExecute_EmbeddingCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	embCache := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour, "test")

	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.5, 0.5}, nil).Once()
	index := new(MockVectorIndex)
	index.On("Query", mock.Anything, []float32{0.5, 0.5}, "docs", 10).Return([]models.ReferenceChunk{}, nil)

	h := NewHandler(createTestConfig(), embedder, index, embCache, "emb", logger.NewNoOpLogger())
	for i := 0; i < 2; i++ {
		_, err := h.Execute(context.Background(), createTestInput())
		require.NoError(t, err)
	}
	embedder.AssertNumberOfCalls(t, "Embed", 1)
	index.AssertNumberOfCalls(t, "Query", 2)
}

func TestExecute_EmptyQuerySkipsSearch(t *testing.T) {
	embedder := new(MockEmbedder)
	index := new(MockVectorIndex)

	h := NewHandler(createTestConfig(), embedder, index, nil, "emb", logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), &Input{Ticket: &models.Ticket{Key: "SUP-9", Summary: strings.Repeat(" ", 3)}})
	require.NoError(t, err)
	assert.Empty(t, out.References)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}
