// internal/workers/ticket-response/respond-ticket/config.go
package respondticket

import (
	"time"

	"ticket-responder/internal/common/config"
)

type Config struct {
	JQL        string
	LastRunUTC string
	// MaxConcurrentTickets bounds tickets in flight; 1 processes them in search order.
	MaxConcurrentTickets  int
	SearchTimeout         time.Duration
	GenerationTimeout     time.Duration
	PublishTimeout        time.Duration
	JobTimeout            time.Duration
	ReplyToHeadingComment bool
}

func NewConfig(cfg *config.Config) *Config {
	concurrency := cfg.Pipeline.MaxConcurrentTickets
	if concurrency < 1 {
		concurrency = 1
	}
	return &Config{
		JQL:                   cfg.Pipeline.JQL,
		LastRunUTC:            cfg.Pipeline.LastRunUTC,
		MaxConcurrentTickets:  concurrency,
		SearchTimeout:         config.GetDuration(cfg.Pipeline.Timeouts.Search),
		GenerationTimeout:     config.GetDuration(cfg.Pipeline.Timeouts.Generation),
		PublishTimeout:        config.GetDuration(cfg.Pipeline.Timeouts.Publish),
		JobTimeout:            config.GetDuration(cfg.Camunda.Timeout),
		ReplyToHeadingComment: cfg.Pipeline.ReplyToHeadingComment,
	}
}
