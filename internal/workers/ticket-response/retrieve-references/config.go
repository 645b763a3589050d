// internal/workers/ticket-response/retrieve-references/config.go
package retrievereferences

import (
	"time"

	"ticket-responder/internal/common/config"
)

type Config struct {
	Namespace        string
	TopK             int
	MaxQueryChars    int
	EmbeddingTimeout time.Duration
	QueryTimeout     time.Duration
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Namespace:        cfg.VectorIndex.Namespace,
		TopK:             cfg.VectorIndex.TopK,
		MaxQueryChars:    cfg.VectorIndex.MaxQueryChars,
		EmbeddingTimeout: config.GetDuration(cfg.Pipeline.Timeouts.Embedding),
		QueryTimeout:     config.GetDuration(cfg.Pipeline.Timeouts.VectorQuery),
	}
}
