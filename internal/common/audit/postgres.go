// internal/common/audit/postgres.go
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ticket-responder/internal/models"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ticket_audit (
	id                 BIGSERIAL PRIMARY KEY,
	run_id             TEXT NOT NULL,
	ticket_key         TEXT NOT NULL,
	state              TEXT NOT NULL,
	failed_stage       TEXT,
	error_code         TEXT,
	error_message      TEXT,
	system_message     TEXT,
	user_message       TEXT,
	dropped_references INTEGER NOT NULL DEFAULT 0,
	raw_output         TEXT,
	reply_adf          JSONB,
	reply_text         TEXT,
	recorded_at        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS run_summary (
	run_id      TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	processed   INTEGER NOT NULL,
	published   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	failures    JSONB
);`

const insertTicketAudit = `
	INSERT INTO ticket_audit (
		run_id, ticket_key, state, failed_stage, error_code, error_message,
		system_message, user_message, dropped_references, raw_output,
		reply_adf, reply_text, recorded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const insertRunSummary = `
	INSERT INTO run_summary (
		run_id, query, started_at, finished_at, processed, published, failed, failures
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (run_id) DO NOTHING`

// PostgresSink stores audit records in ticket_audit and run_summary.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the audit tables when they do not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (s *PostgresSink) WriteTicket(ctx context.Context, rec *Record) error {
	var system, user string
	var dropped int
	if rec.Prompt != nil {
		system, user, dropped = rec.Prompt.System, rec.Prompt.User, rec.Prompt.DroppedReferences
	}

	var replyADF []byte
	var replyText sql.NullString
	if rec.Reply != nil {
		replyText = sql.NullString{String: rec.Reply.PlainText, Valid: true}
		if rec.Reply.ADF != nil {
			raw, err := json.Marshal(rec.Reply.ADF)
			if err != nil {
				return fmt.Errorf("encode reply adf: %w", err)
			}
			replyADF = raw
		}
	}

	_, err := s.db.ExecContext(ctx, insertTicketAudit,
		rec.RunID,
		rec.TicketKey,
		string(rec.State),
		nullString(string(rec.FailedStage)),
		nullString(rec.ErrorCode),
		nullString(rec.Error),
		nullString(system),
		nullString(user),
		dropped,
		nullString(rec.RawOutput),
		replyADF,
		replyText,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket audit %s: %w", rec.TicketKey, err)
	}
	return nil
}

func (s *PostgresSink) WriteSummary(ctx context.Context, summary *models.RunSummary) error {
	failures, err := json.Marshal(summary.Failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertRunSummary,
		summary.RunID,
		summary.Query,
		summary.StartedAt,
		summary.FinishedAt,
		summary.Processed,
		summary.Published,
		summary.Failed,
		failures,
	)
	if err != nil {
		return fmt.Errorf("insert run summary %s: %w", summary.RunID, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
