// internal/workers/ticket-response/respond-ticket/handler.go
package respondticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ticket-responder/internal/common/audit"
	"ticket-responder/internal/common/config"
	apperrors "ticket-responder/internal/common/errors"
	"ticket-responder/internal/common/genai"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/common/metrics"
	"ticket-responder/internal/models"
	buildprompt "ticket-responder/internal/workers/ticket-response/build-prompt"
	composereply "ticket-responder/internal/workers/ticket-response/compose-reply"
	retrievereferences "ticket-responder/internal/workers/ticket-response/retrieve-references"
	selectcomments "ticket-responder/internal/workers/ticket-response/select-comments"
	triagecomments "ticket-responder/internal/workers/ticket-response/triage-comments"
	"ticket-responder/pkg/registry"
)

const (
	TaskType = registry.TicketResponseTaskType
)

var (
	ErrGenerationFailed  = errors.New("GENERATION_FAILED")
	ErrGenerationTimeout = errors.New("GENERATION_TIMEOUT")
	ErrGenerationEmpty   = errors.New("GENERATION_EMPTY")
	ErrPublishFailed     = errors.New("PUBLISH_FAILED")
	ErrPublishTimeout    = errors.New("PUBLISH_TIMEOUT")
)

// TicketSource supplies the tickets of a run with their complete comment threads.
type TicketSource interface {
	Search(ctx context.Context, jql string) ([]models.Ticket, error)
}

// Generator produces the answer from the rendered prompt.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Publisher posts the composed reply to the ticket.
type Publisher interface {
	Post(ctx context.Context, ticketKey string, doc *models.ReplyDocument) error
}

type Selector interface {
	Execute(ctx context.Context, input *selectcomments.Input) (*selectcomments.Output, error)
}

type Retriever interface {
	Execute(ctx context.Context, input *retrievereferences.Input) (*retrievereferences.Output, error)
}

type PromptBuilder interface {
	Execute(ctx context.Context, input *buildprompt.Input) (*buildprompt.Output, error)
}

type Composer interface {
	Execute(ctx context.Context, input *composereply.Input) (*composereply.Output, error)
}

// RunStore remembers when the last clean run started.
type RunStore interface {
	GetLastRun(ctx context.Context) (time.Time, bool, error)
	SetLastRun(ctx context.Context, t time.Time) error
}

type Notifier interface {
	NotifyRun(ctx context.Context, summary *models.RunSummary) error
}

// TicketRecorder receives one call per terminal ticket.
type TicketRecorder interface {
	RecordTicket(ctx context.Context, state string, duration time.Duration)
}

// Dependencies are the collaborators of a run. Audit, RunStore, Notifier, Recorder and
// Tracer are optional.
type Dependencies struct {
	Source    TicketSource
	Selector  Selector
	Retriever Retriever
	Prompts   PromptBuilder
	Generator Generator
	Composer  Composer
	Publisher Publisher
	Audit     audit.Sink
	RunStore  RunStore
	Notifier  Notifier
	Recorder  TicketRecorder
	Tracer    trace.Tracer
}

type Handler struct {
	config *Config
	deps   Dependencies
	tracer trace.Tracer
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TaskType)
	}
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config: config,
		deps:   deps,
		tracer: tracer,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
}

// Run searches for tickets and takes each one through the pipeline. Per-ticket failures
// are recorded in the summary and never abort the run; only configuration and search
// errors are returned.
func (h *Handler) Run(ctx context.Context, input *Input) (*models.RunSummary, error) {
	if input == nil {
		input = &Input{}
	}
	jql, err := h.searchQuery(ctx, input)
	if err != nil {
		return nil, err
	}

	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		Query:     jql,
		StartedAt: time.Now().UTC(),
	}
	log := h.logger.With(map[string]interface{}{"runId": summary.RunID})

	ctx, span := h.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("run.id", summary.RunID),
		attribute.String("run.query", jql),
	))
	defer span.End()

	searchCtx, cancel := withTimeout(ctx, h.config.SearchTimeout)
	tickets, err := h.deps.Source.Search(searchCtx, jql)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.ErrCodeTicketSearchFailed))
		return nil, apperrors.NewTicketSearchFailedError(err).WithMetadata("jql", jql)
	}
	log.Info("Tickets fetched", map[string]interface{}{"tickets": len(tickets), "jql": jql})

	results := make([]models.TicketResult, len(tickets))
	p := pool.New().WithMaxGoroutines(h.config.MaxConcurrentTickets)
	for i := range tickets {
		i := i
		p.Go(func() {
			results[i] = h.processTicket(ctx, summary.RunID, &tickets[i])
		})
	}
	p.Wait()

	for _, r := range results {
		summary.Add(r)
	}
	summary.FinishedAt = time.Now().UTC()
	span.SetAttributes(
		attribute.Int("run.published", summary.Published),
		attribute.Int("run.failed", summary.Failed),
	)

	h.finishRun(ctx, input, summary, log)
	return summary, nil
}

// searchQuery resolves the JQL for this run and expands its period placeholder.
func (h *Handler) searchQuery(ctx context.Context, input *Input) (string, error) {
	if key := strings.TrimSpace(input.TicketKey); key != "" {
		return fmt.Sprintf(`key = "%s"`, strings.ReplaceAll(key, `"`, `\"`)), nil
	}

	jql := strings.TrimSpace(input.JQL)
	if jql == "" {
		jql = strings.TrimSpace(h.config.JQL)
	}
	if jql == "" {
		return "", apperrors.NewConfigurationInvalidError("no ticket search query configured")
	}
	return config.BuildSearchQuery(jql, h.lastRun(ctx)), nil
}

func (h *Handler) lastRun(ctx context.Context) time.Time {
	if raw := strings.TrimSpace(h.config.LastRunUTC); raw != "" {
		if t, ok := config.ParseLastRun(raw); ok {
			return t
		}
		h.logger.Warn("Ignoring unparseable last run timestamp", map[string]interface{}{
			"lastRunUtc": raw,
		})
	}
	if h.deps.RunStore == nil {
		return time.Time{}
	}
	t, ok, err := h.deps.RunStore.GetLastRun(ctx)
	if err != nil {
		h.logger.Warn("Last run lookup failed", map[string]interface{}{"error": err.Error()})
		return time.Time{}
	}
	if !ok {
		return time.Time{}
	}
	return t
}

func (h *Handler) finishRun(ctx context.Context, input *Input, summary *models.RunSummary, log logger.Logger) {
	log.Info("Run finished", map[string]interface{}{
		"processed": summary.Processed,
		"published": summary.Published,
		"failed":    summary.Failed,
		"duration":  summary.FinishedAt.Sub(summary.StartedAt).String(),
	})
	for _, f := range summary.Failures {
		log.Warn("Ticket failed", map[string]interface{}{
			"ticketKey": f.Key,
			"stage":     string(f.FailedStage),
			"errorCode": f.ErrorCode,
			"reason":    f.Error,
		})
	}

	if h.deps.Audit != nil {
		if err := h.deps.Audit.WriteSummary(ctx, summary); err != nil {
			log.Warn("Run summary audit write failed", map[string]interface{}{
				"errorCode": string(apperrors.ErrCodeAuditWriteFailed),
				"error":     err.Error(),
			})
		}
	}

	if h.deps.Notifier != nil {
		if err := h.deps.Notifier.NotifyRun(ctx, summary); err != nil {
			log.Warn("Run notification failed", map[string]interface{}{"error": err.Error()})
		}
	}

	// Only a clean scheduled run moves the window; failed tickets are picked up again next time.
	if h.deps.RunStore != nil && input.TicketKey == "" && summary.Failed == 0 {
		if err := h.deps.RunStore.SetLastRun(ctx, summary.StartedAt); err != nil {
			log.Warn("Last run store failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// ticketRun is the mutable state of one ticket's pipeline. It is owned by a single goroutine.
type ticketRun struct {
	runID  string
	ticket *models.Ticket
	result models.TicketResult
	stage  models.Stage
	prompt *models.PromptContext
	raw    string
	reply  *models.ReplyDocument
	logger logger.Logger
}

func (r *ticketRun) fail(stage models.Stage, code string, err error) {
	r.result.State = models.StateFailed
	r.result.FailedStage = stage
	r.result.ErrorCode = code
	r.result.Error = err.Error()
}

// processTicket moves one ticket from Fetched to Published or Failed. A panic inside a
// stage fails the ticket at that stage.
func (h *Handler) processTicket(ctx context.Context, runID string, ticket *models.Ticket) models.TicketResult {
	metrics.TicketsActive.Inc()
	defer metrics.TicketsActive.Dec()

	start := time.Now()
	run := &ticketRun{
		runID:  runID,
		ticket: ticket,
		result: models.TicketResult{Key: ticket.Key, State: models.StateFetched},
		logger: h.logger.With(map[string]interface{}{"runId": runID, "ticketKey": ticket.Key}),
	}

	ctx, span := h.tracer.Start(ctx, "ticket", trace.WithAttributes(attribute.String("ticket.key", ticket.Key)))

	var pc panics.Catcher
	pc.Try(func() { h.pipeline(ctx, run) })
	if r := pc.Recovered(); r != nil {
		run.fail(run.stage, "INTERNAL_ERROR", fmt.Errorf("panic: %v", r.Value))
		metrics.StageFailures.WithLabelValues(string(run.stage), "INTERNAL_ERROR").Inc()
		run.logger.Error("Stage panicked", map[string]interface{}{
			"stage": string(run.stage),
			"panic": r.String(),
		})
	}

	run.result.Duration = time.Since(start)
	span.SetAttributes(attribute.String("ticket.state", string(run.result.State)))
	if run.result.State == models.StateFailed {
		span.SetStatus(codes.Error, run.result.ErrorCode)
	}
	span.End()

	metrics.TicketsProcessed.WithLabelValues(string(run.result.State)).Inc()
	if h.deps.Recorder != nil {
		h.deps.Recorder.RecordTicket(ctx, string(run.result.State), run.result.Duration)
	}
	h.writeAudit(ctx, run)

	run.logger.Info("Ticket finished", map[string]interface{}{
		"state":       string(run.result.State),
		"failedStage": string(run.result.FailedStage),
		"errorCode":   run.result.ErrorCode,
		"duration":    run.result.Duration.String(),
	})
	return run.result
}

func (h *Handler) pipeline(ctx context.Context, run *ticketRun) {
	var selected []models.Comment
	ok := h.stage(ctx, run, models.StageSelect, models.StateSelected, func(ctx context.Context) error {
		out, err := h.deps.Selector.Execute(ctx, &selectcomments.Input{Ticket: run.ticket})
		if err != nil {
			return err
		}
		selected = out.Selected
		run.result.SelectedComments = len(selected)
		return nil
	})
	if !ok {
		return
	}

	var refs []models.ReferenceChunk
	ok = h.stage(ctx, run, models.StageRetrieve, models.StateRetrieved, func(ctx context.Context) error {
		out, err := h.deps.Retriever.Execute(ctx, &retrievereferences.Input{Ticket: run.ticket, Selected: selected})
		if err != nil {
			return err
		}
		refs = out.References
		return nil
	})
	if !ok {
		return
	}

	ok = h.stage(ctx, run, models.StagePrompt, models.StatePrompted, func(ctx context.Context) error {
		out, err := h.deps.Prompts.Execute(ctx, &buildprompt.Input{
			Ticket:     run.ticket,
			Comments:   selected,
			References: refs,
		})
		if err != nil {
			return err
		}
		run.prompt = out.Prompt
		run.result.References = len(out.Prompt.References)
		run.result.DroppedReferences = out.Prompt.DroppedReferences
		return nil
	})
	if !ok {
		return
	}

	ok = h.stage(ctx, run, models.StageGenerate, models.StateGenerated, func(ctx context.Context) error {
		genCtx, cancel := withTimeout(ctx, h.config.GenerationTimeout)
		defer cancel()
		answer, err := h.deps.Generator.Complete(genCtx, run.prompt.System, run.prompt.User)
		if err != nil {
			if errors.Is(err, genai.ErrEmptyCompletion) {
				return fmt.Errorf("%w: %v", ErrGenerationEmpty, err)
			}
			if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
			}
			return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		run.raw = answer
		if strings.TrimSpace(answer) == "" {
			return ErrGenerationEmpty
		}
		return nil
	})
	if !ok {
		return
	}

	ok = h.stage(ctx, run, models.StageCompose, models.StateComposed, func(ctx context.Context) error {
		in := &composereply.Input{
			TicketKey:  run.ticket.Key,
			Answer:     run.raw,
			References: run.prompt.References,
		}
		if h.config.ReplyToHeadingComment && len(selected) > 0 {
			in.InReplyTo = selected[0].ID
		}
		out, err := h.deps.Composer.Execute(ctx, in)
		if err != nil {
			return err
		}
		run.reply = out.Reply
		return nil
	})
	if !ok {
		return
	}

	h.stage(ctx, run, models.StagePublish, models.StatePublished, func(ctx context.Context) error {
		pubCtx, cancel := withTimeout(ctx, h.config.PublishTimeout)
		defer cancel()
		if err := h.deps.Publisher.Post(pubCtx, run.ticket.Key, run.reply); err != nil {
			h.logUnpublished(run, err)
			if errors.Is(pubCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %v", ErrPublishTimeout, err)
			}
			return fmt.Errorf("%w: %v", ErrPublishFailed, err)
		}
		return nil
	})
}

// stage runs fn inside a span. On success the ticket moves to next; on error it fails at stage.
func (h *Handler) stage(ctx context.Context, run *ticketRun, stage models.Stage, next models.TicketState, fn func(ctx context.Context) error) bool {
	run.stage = stage
	ctx, span := h.tracer.Start(ctx, string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())

	if err != nil {
		code := errorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		metrics.StageFailures.WithLabelValues(string(stage), code).Inc()
		run.fail(stage, code, err)
		run.logger.Warn("Stage failed", map[string]interface{}{
			"stage":     string(stage),
			"errorCode": code,
			"error":     err.Error(),
		})
		return false
	}

	run.result.State = next
	return true
}

// logUnpublished keeps the composed reply in the log so it can be posted by hand.
func (h *Handler) logUnpublished(run *ticketRun, err error) {
	fields := map[string]interface{}{
		"ticketKey": run.ticket.Key,
		"error":     err.Error(),
		"plainText": run.reply.PlainText,
		"inReplyTo": run.reply.InReplyTo,
	}
	if raw, mErr := json.Marshal(run.reply.ADF); mErr == nil {
		fields["adf"] = string(raw)
	}
	run.logger.Error("Reply not published, keeping composed document for recovery", fields)
}

func (h *Handler) writeAudit(ctx context.Context, run *ticketRun) {
	if h.deps.Audit == nil {
		return
	}
	rec := &audit.Record{
		RunID:       run.runID,
		TicketKey:   run.ticket.Key,
		State:       run.result.State,
		FailedStage: run.result.FailedStage,
		ErrorCode:   run.result.ErrorCode,
		Error:       run.result.Error,
		Prompt:      run.prompt,
		RawOutput:   run.raw,
		Reply:       run.reply,
		RecordedAt:  time.Now().UTC(),
	}
	if err := h.deps.Audit.WriteTicket(ctx, rec); err != nil {
		run.logger.Warn("Audit write failed", map[string]interface{}{
			"errorCode": string(apperrors.ErrCodeAuditWriteFailed),
			"error":     err.Error(),
		})
	}
}

var stageErrorCodes = []struct {
	err  error
	code apperrors.ErrorCode
}{
	{selectcomments.ErrInvalidInput, "INVALID_INPUT"},
	{triagecomments.ErrTriageTimeout, apperrors.ErrCodeTriageTimeout},
	{triagecomments.ErrTriageFailed, apperrors.ErrCodeTriageFailed},
	{retrievereferences.ErrRetrievalTimeout, apperrors.ErrCodeRetrievalTimeout},
	{retrievereferences.ErrEmbeddingFailed, apperrors.ErrCodeEmbeddingFailed},
	{retrievereferences.ErrVectorQueryFailed, apperrors.ErrCodeVectorQueryFailed},
	{buildprompt.ErrPromptTooLong, apperrors.ErrCodePromptTooLong},
	{ErrGenerationTimeout, apperrors.ErrCodeGenerationTimeout},
	{ErrGenerationFailed, apperrors.ErrCodeGenerationFailed},
	{ErrGenerationEmpty, apperrors.ErrCodeGenerationEmpty},
	{composereply.ErrComposeFailed, apperrors.ErrCodeComposeFailed},
	{ErrPublishTimeout, apperrors.ErrCodePublishTimeout},
	{ErrPublishFailed, apperrors.ErrCodePublishFailed},
}

// errorCode maps a stage error to its code. Unknown errors fall back to a StandardError
// code in the chain, then INTERNAL_ERROR.
func errorCode(err error) string {
	for _, m := range stageErrorCodes {
		if errors.Is(err, m.err) {
			return string(m.code)
		}
	}
	if code := apperrors.CodeOf(err); code != "" {
		return string(code)
	}
	return "INTERNAL_ERROR"
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
