// internal/app/app.go
// Package app assembles the ticket pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"

	"ticket-responder/internal/common/audit"
	awsclient "ticket-responder/internal/common/aws"
	"ticket-responder/internal/common/cache"
	"ticket-responder/internal/common/config"
	"ticket-responder/internal/common/database"
	"ticket-responder/internal/common/genai"
	"ticket-responder/internal/common/jira"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/common/notify"
	"ticket-responder/internal/common/observability"
	"ticket-responder/internal/common/pinecone"
	buildprompt "ticket-responder/internal/workers/ticket-response/build-prompt"
	composereply "ticket-responder/internal/workers/ticket-response/compose-reply"
	respondticket "ticket-responder/internal/workers/ticket-response/respond-ticket"
	retrievereferences "ticket-responder/internal/workers/ticket-response/retrieve-references"
	selectcomments "ticket-responder/internal/workers/ticket-response/select-comments"
	triagecomments "ticket-responder/internal/workers/ticket-response/triage-comments"
)

const (
	// ModelRetries bounds retries of model and vector index calls.
	ModelRetries   = 2
	connectRetries = 5
)

// App owns every long-lived client of the process.
type App struct {
	Handler *respondticket.Handler

	cfg *config.Config
	log logger.Logger
	obs *observability.Observability

	redis    *database.RedisClient
	postgres *database.PostgresClient
	closers  []func() error
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("Close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.obs != nil {
		a.obs.Shutdown()
	}
}

func modelOptions(cfg *config.Config, model config.ModelConfig) genai.Options {
	endpoint := model.Endpoint
	if endpoint == "" {
		endpoint = cfg.Azure.Endpoint
	}
	return genai.Options{
		Provider:    cfg.Azure.Provider,
		Endpoint:    endpoint,
		APIKey:      cfg.Azure.APIKey,
		APIVersion:  cfg.Azure.APIVersion,
		Deployment:  model.Deployment,
		MaxTokens:   model.MaxTokens,
		Temperature: model.Temperature,
		MaxRetries:  ModelRetries,
	}
}

// New builds the pipeline from cfg. Optional backends are connected only when configured.
// Telemetry is exported into reg, the default prometheus registry when nil.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, reg promclient.Registerer) (*App, error) {
	obs, err := observability.New(cfg.App.Name, reg)
	if err != nil {
		return nil, fmt.Errorf("observability init: %w", err)
	}
	a := &App{cfg: cfg, log: log, obs: obs}

	var (
		scoreCache     triagecomments.ScoreCache
		embeddingCache retrievereferences.EmbeddingCache
		runStore       respondticket.RunStore
	)
	if cfg.Cache.Enabled {
		a.redis = database.NewRedis(cfg.Database.Redis)
		a.closers = append(a.closers, a.redis.Close)
		err := RetryWithBackoff(func() error { return a.redis.Ping(ctx) }, connectRetries, time.Second, log, "Redis connection")
		if err != nil {
			a.Close()
			return nil, err
		}
		c := cache.New(a.redis.Client, config.GetDuration(cfg.Cache.TTL), cfg.Cache.Prefix)
		scoreCache, embeddingCache, runStore = c, c, c
	}

	sinks := audit.MultiSink{}
	if cfg.Audit.Dir != "" {
		fileSink, err := audit.NewFileSink(cfg.Audit.Dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		sinks = append(sinks, fileSink)
	}
	if cfg.Audit.Postgres {
		a.postgres, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, a.postgres.Close)
		err = RetryWithBackoff(func() error { return a.postgres.Ping(ctx) }, connectRetries, time.Second, log, "PostgreSQL connection")
		if err != nil {
			a.Close()
			return nil, err
		}
		pgSink := audit.NewPostgresSink(a.postgres.DB)
		if err := pgSink.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		sinks = append(sinks, pgSink)
	}

	index, err := a.vectorIndex()
	if err != nil {
		a.Close()
		return nil, err
	}

	triageInstruction := ""
	if cfg.Pipeline.TriagePromptPath != "" {
		if triageInstruction, err = buildprompt.LoadSystemPrompt(cfg.Pipeline.TriagePromptPath); err != nil {
			a.Close()
			return nil, err
		}
	}
	systemPrompt, err := buildprompt.LoadSystemPrompt(cfg.Pipeline.SystemPromptPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	scorer := triagecomments.NewHandler(
		triagecomments.NewConfig(cfg, triageInstruction),
		genai.NewChatClient(modelOptions(cfg, cfg.Azure.Triage)),
		scoreCache,
		log,
	)

	embedder := genai.NewEmbeddingClient(modelOptions(cfg, config.ModelConfig{
		Endpoint:   cfg.Azure.Embedding.Endpoint,
		Deployment: cfg.Azure.Embedding.Deployment,
	}))

	jiraClient := jira.NewClient(&cfg.Jira, config.GetDuration(cfg.Pipeline.Timeouts.Search), log)
	var publisher respondticket.Publisher = jiraClient
	if cfg.Pipeline.DryRun {
		publisher = jira.NewLoggingPublisher(log)
	}

	deps := respondticket.Dependencies{
		Source:    jiraClient,
		Selector:  selectcomments.NewHandler(selectcomments.NewConfig(cfg), scorer, log),
		Retriever: retrievereferences.NewHandler(retrievereferences.NewConfig(cfg), embedder, index, embeddingCache, embedder.Model(), log),
		Prompts:   buildprompt.NewHandler(buildprompt.NewConfig(cfg), systemPrompt, log),
		Generator: genai.NewChatClient(modelOptions(cfg, cfg.Azure.Generation)),
		Composer:  composereply.NewHandler(composereply.NewConfig(cfg), log),
		Publisher: publisher,
		RunStore:  runStore,
		Recorder:  obs,
		Tracer:    obs.Tracer(),
	}
	if len(sinks) > 0 {
		deps.Audit = sinks
	}
	if notifier := a.notifier(ctx); notifier != nil {
		deps.Notifier = notifier
	}

	a.Handler = respondticket.NewHandler(respondticket.NewConfig(cfg), deps, log)
	return a, nil
}

func (a *App) vectorIndex() (retrievereferences.VectorIndex, error) {
	if a.cfg.VectorIndex.Provider == "elasticsearch" {
		es, err := database.NewElasticsearch(a.cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		return retrievereferences.NewElasticsearchIndex(es.Client, a.cfg.VectorIndex.Index, a.cfg.VectorIndex.VectorField), nil
	}
	timeout := config.GetDuration(a.cfg.Pipeline.Timeouts.VectorQuery)
	return pinecone.NewClient(&a.cfg.Pinecone, timeout, ModelRetries), nil
}

// notifier returns nil when no channel is enabled. AWS client failures disable the channel.
func (a *App) notifier(ctx context.Context) *notify.Notifier {
	ncfg := &a.cfg.Notifications
	if !ncfg.SNS.Enabled && !ncfg.SES.Enabled {
		return nil
	}

	var (
		topics notify.TopicPublisher
		mail   notify.EmailSender
	)
	if ncfg.SNS.Enabled {
		if c, err := awsclient.NewSNSClient(ctx, ncfg.AWS.Region); err != nil {
			a.log.Warn("SNS client unavailable, notifications disabled for channel", map[string]interface{}{"error": err.Error()})
		} else {
			topics = c
		}
	}
	if ncfg.SES.Enabled {
		if c, err := awsclient.NewSESClient(ctx, ncfg.AWS.Region); err != nil {
			a.log.Warn("SES client unavailable, notifications disabled for channel", map[string]interface{}{"error": err.Error()})
		} else {
			mail = c
		}
	}

	n := notify.New(ncfg, topics, mail, a.log)
	if !n.Enabled() {
		return nil
	}
	return n
}

// RetryWithBackoff retries operation with doubling delays.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
