// cmd/ticket-responder/commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"ticket-responder/internal/app"
	"ticket-responder/internal/common/camunda"
	"ticket-responder/internal/common/config"
	"ticket-responder/internal/common/database"
	"ticket-responder/internal/common/jira"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/common/pinecone"
	respondticket "ticket-responder/internal/workers/ticket-response/respond-ticket"
)

const defaultWorkerMetricsPort = 8080

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ==========================
// run
// ==========================

func newRunCommand(opts *options) *cobra.Command {
	var (
		jql       string
		ticketKey string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every ticket matched by the configured search once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLog, log, err := setup(opts)
			if err != nil {
				return err
			}
			defer zapLog.Sync()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := app.New(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Metrics.Port > 0 {
				srv := serveMetrics(cfg.Metrics.Port, log)
				defer shutdownServer(srv, log)
			}

			summary, err := a.Handler.Run(ctx, &respondticket.Input{JQL: jql, TicketKey: ticketKey})
			if err != nil {
				return err
			}

			out, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d tickets failed", summary.Failed, summary.Processed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jql, "jql", "", "Override pipeline.jql for this run")
	cmd.Flags().StringVar(&ticketKey, "ticket", "", "Process a single ticket by key")
	return cmd
}

// ==========================
// worker
// ==========================

func newWorkerCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Serve ticket-response jobs from the Zeebe gateway until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLog, log, err := setup(opts)
			if err != nil {
				return err
			}
			defer zapLog.Sync()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := app.New(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			var client *camunda.Client
			err = app.RetryWithBackoff(func() error {
				var err error
				client, err = camunda.NewClient(&cfg.Camunda)
				return err
			}, 10, 2*time.Second, log, "Zeebe client initialization")
			if err != nil {
				return err
			}
			defer client.Close()
			log.Info("Zeebe client connected", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

			port := cfg.Metrics.Port
			if port <= 0 {
				port = defaultWorkerMetricsPort
			}
			srv := serveMetrics(port, log)
			defer shutdownServer(srv, log)

			w := camunda.NewWorker(
				client.GetClient(),
				respondticket.TaskType,
				cfg.Camunda.MaxJobsActive,
				config.GetDuration(cfg.Camunda.Timeout),
				a.Handler,
				log,
			)

			<-ctx.Done()
			log.Info("Shutdown signal received, stopping worker", nil)
			w.Stop()
			return nil
		},
	}
}

// serveMetrics exposes /metrics and /health on port.
func serveMetrics(port int, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Metrics server listening", map[string]interface{}{"port": port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return srv
}

func shutdownServer(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Metrics server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// ==========================
// check
// ==========================

type checkResult struct {
	name   string
	detail string
	err    error
}

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify connectivity to Jira and the configured backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLog, log, err := setup(opts)
			if err != nil {
				return err
			}
			defer zapLog.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			results := runChecks(ctx, cfg, log)

			failed := 0
			for _, r := range results {
				status := "ok"
				detail := r.detail
				if r.err != nil {
					status = "FAIL"
					detail = r.err.Error()
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-4s %s\n", r.name, status, detail)
			}
			if failed > 0 {
				return fmt.Errorf("%d connectivity checks failed", failed)
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, cfg *config.Config, log logger.Logger) []checkResult {
	var results []checkResult

	jiraClient := jira.NewClient(&cfg.Jira, config.GetDuration(cfg.Pipeline.Timeouts.Search), log)
	account, err := jiraClient.Myself(ctx)
	results = append(results, checkResult{name: "jira", detail: "authenticated as " + account, err: err})

	if cfg.Cache.Enabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		results = append(results, checkResult{name: "redis", detail: cfg.Database.Redis.Address, err: rdb.Ping(ctx)})
		_ = rdb.Close()
	}

	if cfg.Audit.Postgres {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err == nil {
			err = pg.Ping(ctx)
			_ = pg.Close()
		}
		results = append(results, checkResult{name: "postgres", detail: cfg.Database.Postgres.Host, err: err})
	}

	if cfg.Database.Elasticsearch.GetURL() != "" {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			err = es.Ping(ctx)
		}
		results = append(results, checkResult{name: "elasticsearch", detail: cfg.Database.Elasticsearch.GetURL(), err: err})
	}

	if cfg.VectorIndex.Provider == "pinecone" {
		pc := pinecone.NewClient(&cfg.Pinecone, config.GetDuration(cfg.Pipeline.Timeouts.VectorQuery), app.ModelRetries)
		host, err := pc.Host(ctx)
		results = append(results, checkResult{name: "pinecone", detail: host, err: err})
	}

	return results
}
