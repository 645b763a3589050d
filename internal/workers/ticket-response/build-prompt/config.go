// internal/workers/ticket-response/build-prompt/config.go
package buildprompt

import (
	"os"
	"strings"

	"ticket-responder/internal/common/config"
	apperrors "ticket-responder/internal/common/errors"
)

type Config struct {
	// MaxPromptChars bounds system plus user message, counted in runes. Zero disables the bound.
	MaxPromptChars int
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{MaxPromptChars: cfg.Pipeline.MaxPromptChars}
}

// LoadSystemPrompt reads the fixed system instruction once at start-up.
func LoadSystemPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.NewSystemPromptMissingError(path, err)
	}
	prompt := strings.TrimSpace(strings.ReplaceAll(string(data), "\r", ""))
	if prompt == "" {
		return "", apperrors.NewSystemPromptMissingError(path, os.ErrNotExist)
	}
	return prompt, nil
}
