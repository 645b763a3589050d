// internal/common/audit/audit.go
// Package audit persists a traceable record of every processed ticket and run.
package audit

import (
	"context"
	"errors"
	"time"

	"ticket-responder/internal/models"
)

// Record captures what was sent to the generation capability and what came back.
type Record struct {
	RunID       string                `json:"runId"`
	TicketKey   string                `json:"ticketKey"`
	State       models.TicketState    `json:"state"`
	FailedStage models.Stage          `json:"failedStage,omitempty"`
	ErrorCode   string                `json:"errorCode,omitempty"`
	Error       string                `json:"error,omitempty"`
	Prompt      *models.PromptContext `json:"prompt,omitempty"`
	RawOutput   string                `json:"rawOutput,omitempty"`
	Reply       *models.ReplyDocument `json:"-"`
	RecordedAt  time.Time             `json:"recordedAt"`
}

// Sink stores audit records.
type Sink interface {
	WriteTicket(ctx context.Context, rec *Record) error
	WriteSummary(ctx context.Context, summary *models.RunSummary) error
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) WriteTicket(ctx context.Context, rec *Record) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteTicket(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteSummary(ctx context.Context, summary *models.RunSummary) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteSummary(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards everything.
type Nop struct{}

func (Nop) WriteTicket(context.Context, *Record) error             { return nil }
func (Nop) WriteSummary(context.Context, *models.RunSummary) error { return nil }
