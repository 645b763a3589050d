// internal/workers/ticket-response/build-prompt/handler.go
package buildprompt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/common/metrics"
	"ticket-responder/internal/models"
)

const (
	TaskType = "build-prompt"
)

var (
	ErrInvalidInput  = errors.New("INVALID_INPUT")
	ErrPromptTooLong = errors.New("PROMPT_TOO_LONG")
)

type Handler struct {
	config *Config
	system string
	logger logger.Logger
}

// NewHandler takes the system instruction loaded at start-up; it is never re-read.
func NewHandler(config *Config, systemPrompt string, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		system: systemPrompt,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute renders the system and user messages. When they exceed the length limit the
// lowest-ranked references are dropped one at a time; comments are never cut.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Ticket == nil {
		return nil, ErrInvalidInput
	}

	refs := make([]models.ReferenceChunk, len(input.References))
	copy(refs, input.References)
	sort.SliceStable(refs, func(i, j int) bool { return rankOf(refs, i) < rankOf(refs, j) })

	systemLen := utf8.RuneCountInString(h.system)
	kept := len(refs)
	user := renderUser(input.Ticket.Summary, input.Comments, refs)

	for h.config.MaxPromptChars > 0 && systemLen+utf8.RuneCountInString(user) > h.config.MaxPromptChars {
		if kept == 0 {
			return nil, fmt.Errorf("%w: %d chars exceed limit %d without references",
				ErrPromptTooLong, systemLen+utf8.RuneCountInString(user), h.config.MaxPromptChars)
		}
		kept--
		user = renderUser(input.Ticket.Summary, input.Comments, refs[:kept])
	}

	dropped := len(refs) - kept
	if dropped > 0 {
		metrics.DataQualityEvents.WithLabelValues("prompt_references_trimmed").Inc()
		h.logger.Warn("Prompt over length, lowest-ranked references dropped", map[string]interface{}{
			"event":     "prompt_references_trimmed",
			"ticketKey": input.Ticket.Key,
			"dropped":   dropped,
			"kept":      kept,
			"limit":     h.config.MaxPromptChars,
		})
	}

	prompt := &models.PromptContext{
		System:            h.system,
		User:              user,
		Comments:          input.Comments,
		References:        refs[:kept],
		DroppedReferences: dropped,
	}

	h.logger.Debug("Prompt built", map[string]interface{}{
		"ticketKey":  input.Ticket.Key,
		"comments":   len(input.Comments),
		"references": kept,
		"chars":      systemLen + utf8.RuneCountInString(user),
	})
	return &Output{Prompt: prompt}, nil
}

// rankOf orders unranked chunks after ranked ones, keeping their relative order.
func rankOf(refs []models.ReferenceChunk, i int) int {
	if refs[i].Rank <= 0 {
		return int(^uint(0) >> 1)
	}
	return refs[i].Rank
}
