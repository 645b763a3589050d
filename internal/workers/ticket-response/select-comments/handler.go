// internal/workers/ticket-response/select-comments/handler.go
package selectcomments

import (
	"context"
	"errors"

	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/models"
)

const (
	TaskType = "select-comments"
)

var ErrInvalidInput = errors.New("INVALID_INPUT")

// Scorer rates a candidate comment. Unparseable output must come back as a score, not an error.
type Scorer interface {
	Score(ctx context.Context, ticket *models.Ticket, comment models.Comment) (models.TriageScore, error)
}

type Handler struct {
	config *Config
	scorer Scorer
	logger logger.Logger
}

func NewHandler(config *Config, scorer Scorer, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		scorer: scorer,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Candidates returns, in thread order, the comments whose heading names a keyword.
func (h *Handler) Candidates(ticket *models.Ticket) []Candidate {
	var out []Candidate
	for _, c := range ticket.Comments {
		heading, ok := ParseHeading(c.Body)
		if !ok {
			continue
		}
		kw, ok := MatchKeyword(heading, h.config.Keywords)
		if !ok {
			continue
		}
		out = append(out, Candidate{Comment: c, Heading: heading, Keyword: kw})
	}
	return out
}

// Execute scores every candidate and keeps those at or above the threshold.
// No candidates is a valid result; the first scoring error fails the ticket.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Ticket == nil {
		return nil, ErrInvalidInput
	}
	ticket := input.Ticket

	out := &Output{
		Selected:   []models.Comment{},
		Candidates: h.Candidates(ticket),
	}

	for _, cand := range out.Candidates {
		score, err := h.scorer.Score(ctx, ticket, cand.Comment)
		if err != nil {
			return nil, err
		}
		out.Scores = append(out.Scores, score)
		if score.Selected() {
			out.Selected = append(out.Selected, cand.Comment)
		}
	}

	h.logger.Info("Comments selected", map[string]interface{}{
		"ticketKey":  ticket.Key,
		"comments":   len(ticket.Comments),
		"candidates": len(out.Candidates),
		"selected":   len(out.Selected),
	})
	return out, nil
}
