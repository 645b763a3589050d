// internal/app/app_test.go
package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-responder/internal/common/config"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/common/pinecone"
)

func TestModelOptions(t *testing.T) {
	cfg := &config.Config{}
	cfg.Azure.Provider = "azure"
	cfg.Azure.Endpoint = "https://shared.openai.azure.com"
	cfg.Azure.APIKey = "key"
	cfg.Azure.APIVersion = "2024-02-01"

	t.Run("falls back to shared endpoint", func(t *testing.T) {
		opts := modelOptions(cfg, config.ModelConfig{Deployment: "gpt", MaxTokens: 512, Temperature: 0.2})

		assert.Equal(t, "https://shared.openai.azure.com", opts.Endpoint)
		assert.Equal(t, "gpt", opts.Deployment)
		assert.Equal(t, "key", opts.APIKey)
		assert.Equal(t, "2024-02-01", opts.APIVersion)
		assert.Equal(t, 512, opts.MaxTokens)
		assert.Equal(t, ModelRetries, opts.MaxRetries)
	})

	t.Run("model endpoint wins", func(t *testing.T) {
		opts := modelOptions(cfg, config.ModelConfig{Endpoint: "https://triage.openai.azure.com", Deployment: "mini"})

		assert.Equal(t, "https://triage.openai.azure.com", opts.Endpoint)
		assert.Equal(t, "mini", opts.Deployment)
	})
}

func TestNotifierDisabled(t *testing.T) {
	a := &App{cfg: &config.Config{}, log: logger.NewNoOpLogger()}

	assert.Nil(t, a.notifier(context.Background()))
}

func TestVectorIndexDefaultsToPinecone(t *testing.T) {
	a := &App{cfg: &config.Config{}, log: logger.NewNoOpLogger()}
	a.cfg.VectorIndex.Provider = "pinecone"

	idx, err := a.vectorIndex()

	require.NoError(t, err)
	assert.IsType(t, &pinecone.Client{}, idx)
}

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewNoOpLogger()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, log, "redis ping")

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		cause := errors.New("connection refused")
		calls := 0
		err := RetryWithBackoff(func() error {
			calls++
			return cause
		}, 3, time.Millisecond, log, "postgres ping")

		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "postgres ping failed after 3 attempts")
		assert.Equal(t, 3, calls)
	})
}
