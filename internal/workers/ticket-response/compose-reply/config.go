// internal/workers/ticket-response/compose-reply/config.go
package composereply

import "ticket-responder/internal/common/config"

type Config struct {
	// SnippetChars is the excerpt length in the references table. Zero drops the column.
	SnippetChars    int
	ReferencesTitle string
}

func NewConfig(cfg *config.Config) *Config {
	title := cfg.Compose.ReferencesTitle
	if title == "" {
		title = "References"
	}
	return &Config{
		SnippetChars:    cfg.Compose.SnippetChars,
		ReferencesTitle: title,
	}
}
