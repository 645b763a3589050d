// internal/workers/ticket-response/select-comments/config.go
package selectcomments

import "ticket-responder/internal/common/config"

type Config struct {
	Keywords []string
}

func NewConfig(cfg *config.Config) *Config {
	keywords := make([]string, len(cfg.Pipeline.Keywords))
	copy(keywords, cfg.Pipeline.Keywords)
	return &Config{Keywords: keywords}
}
