// internal/workers/ticket-response/triage-comments/handler.go
package triagecomments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ticket-responder/internal/common/cache"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/common/metrics"
	"ticket-responder/internal/models"
)

const (
	TaskType = "triage-comments"
)

var (
	ErrTriageTimeout = errors.New("TRIAGE_TIMEOUT")
	ErrTriageFailed  = errors.New("TRIAGE_FAILED")
)

// Completer is the text generation capability used for scoring.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ScoreCache stores scores between runs. Optional.
type ScoreCache interface {
	GetTriageScore(ctx context.Context, key string) (models.TriageScore, bool, error)
	SetTriageScore(ctx context.Context, key string, score models.TriageScore) error
}

type Handler struct {
	config    *Config
	completer Completer
	cache     ScoreCache
	logger    logger.Logger
}

func NewHandler(config *Config, completer Completer, scoreCache ScoreCache, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		completer: completer,
		cache:     scoreCache,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Score rates one candidate comment. Output that cannot be read as a score in [0, 1]
// yields an unparseable zero score, not an error. Errors are transport failures only.
func (h *Handler) Score(ctx context.Context, ticket *models.Ticket, comment models.Comment) (models.TriageScore, error) {
	cacheKey := cache.Key(ticket.Key, comment.ID, comment.Body)
	if cached, ok := h.lookup(ctx, cacheKey); ok {
		cached.Threshold = h.config.Threshold
		cached.Cached = true
		h.record(ticket, cached)
		return cached, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := h.completer.Complete(callCtx, h.config.Instruction, h.buildUserMessage(ticket, comment))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return models.TriageScore{}, fmt.Errorf("%w: comment %s: %v", ErrTriageTimeout, comment.ID, err)
		}
		return models.TriageScore{}, fmt.Errorf("%w: comment %s: %v", ErrTriageFailed, comment.ID, err)
	}

	result := models.TriageScore{
		CommentID: comment.ID,
		Threshold: h.config.Threshold,
	}
	score, rationale, ok := parseScore(raw, comment.ID)
	if ok {
		result.Score = score
		result.Rationale = rationale
	} else {
		result.Unparseable = true
		metrics.DataQualityEvents.WithLabelValues("triage_score_unparseable").Inc()
		h.logger.Warn("Triage output unparseable, scoring 0.0", map[string]interface{}{
			"event":     "triage_score_unparseable",
			"ticketKey": ticket.Key,
			"commentId": comment.ID,
			"output":    compact(raw, 200),
		})
	}

	h.store(ctx, cacheKey, result)
	h.record(ticket, result)
	return result, nil
}

func (h *Handler) buildUserMessage(ticket *models.Ticket, comment models.Comment) string {
	payload := userPayload{
		Ticket: ticketPayload{
			Key:     ticket.Key,
			Summary: compact(ticket.Summary, h.config.MaxSummaryChars),
		},
		Comment: commentPayload{
			ID:     comment.ID,
			Author: comment.Author,
			Body:   compact(comment.Body, h.config.MaxCommentChars),
		},
		OutputSchema: map[string]interface{}{
			"score":     0.1,
			"rationale": "<one sentence>",
		},
	}
	if !comment.Created.IsZero() {
		payload.Comment.Created = comment.Created.UTC().Format(time.RFC3339)
	}

	// Struct fields marshal in declaration order, so the message is deterministic.
	data, _ := json.Marshal(payload)
	return "You must answer with a single JSON object only, no extra text.\n" + string(data)
}

func (h *Handler) lookup(ctx context.Context, key string) (models.TriageScore, bool) {
	if h.cache == nil {
		return models.TriageScore{}, false
	}
	score, ok, err := h.cache.GetTriageScore(ctx, key)
	if err != nil {
		h.logger.Warn("Triage cache read failed", map[string]interface{}{"error": err})
		return models.TriageScore{}, false
	}
	return score, ok
}

func (h *Handler) store(ctx context.Context, key string, score models.TriageScore) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetTriageScore(ctx, key, score); err != nil {
		h.logger.Warn("Triage cache write failed", map[string]interface{}{"error": err})
	}
}

func (h *Handler) record(ticket *models.Ticket, score models.TriageScore) {
	outcome := "rejected"
	switch {
	case score.Unparseable:
		outcome = "unparseable"
	case score.Selected():
		outcome = "selected"
	}
	metrics.CommentsTriaged.WithLabelValues(outcome).Inc()

	h.logger.Debug("Comment scored", map[string]interface{}{
		"ticketKey": ticket.Key,
		"commentId": score.CommentID,
		"score":     score.Score,
		"threshold": score.Threshold,
		"cached":    score.Cached,
		"outcome":   outcome,
	})
}
