// internal/common/genai/client.go
// Package genai talks to Azure OpenAI (or any OpenAI compatible endpoint) for chat completions and embeddings.
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrEmptyCompletion = errors.New("completion returned no content")
	ErrEmptyEmbedding  = errors.New("embedding returned no vector")
)

// Options select an endpoint and deployment.
type Options struct {
	Provider    string // azure | openai
	Endpoint    string
	APIKey      string
	APIVersion  string
	Deployment  string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
}

func clientConfig(opts Options) openai.ClientConfig {
	if opts.Provider == "openai" {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.Endpoint != "" {
			cfg.BaseURL = strings.TrimRight(opts.Endpoint, "/")
		}
		return cfg
	}

	cfg := openai.DefaultAzureConfig(opts.APIKey, strings.TrimRight(opts.Endpoint, "/"))
	if opts.APIVersion != "" {
		cfg.APIVersion = opts.APIVersion
	}
	deployment := opts.Deployment
	cfg.AzureModelMapperFunc = func(string) string { return deployment }
	return cfg
}

// ChatClient implements the generation capability.
type ChatClient struct {
	api  *openai.Client
	opts Options
}

func NewChatClient(opts Options) *ChatClient {
	return &ChatClient{api: openai.NewClientWithConfig(clientConfig(opts)), opts: opts}
}

// Complete sends one system and one user turn and returns the assistant text.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.opts.Deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxCompletionTokens: c.opts.MaxTokens,
		Temperature:         float32(c.opts.Temperature),
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, c.opts.MaxRetries, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// EmbeddingClient implements the embedding capability.
type EmbeddingClient struct {
	api  *openai.Client
	opts Options
}

func NewEmbeddingClient(opts Options) *EmbeddingClient {
	return &EmbeddingClient{api: openai.NewClientWithConfig(clientConfig(opts)), opts: opts}
}

// Model identifies the embedding deployment, used as part of cache keys.
func (c *EmbeddingClient) Model() string {
	return c.opts.Deployment
}

// Embed returns the vector for text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.opts.Deployment),
	}

	var resp openai.EmbeddingResponse
	err := withRetry(ctx, c.opts.MaxRetries, func() error {
		var callErr error
		resp, callErr = c.api.CreateEmbeddings(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}

// withRetry retries rate limits and server errors with exponential backoff.
func withRetry(ctx context.Context, maxRetries int, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(250*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries+1, lastErr)
}

// IsRetryable reports whether err is a rate limit or server side failure.
func IsRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
