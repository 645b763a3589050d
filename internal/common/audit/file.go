// internal/common/audit/file.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ticket-responder/internal/models"
)

const (
	promptFile   = "prompt.json"
	replyADFFile = "reply.adf.json"
	replyTxtFile = "reply.txt"
)

// FileSink writes <dir>/<KEY>/prompt.json, reply.adf.json and reply.txt.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) WriteTicket(_ context.Context, rec *Record) error {
	ticketDir := filepath.Join(s.dir, safeName(rec.TicketKey))
	if err := os.MkdirAll(ticketDir, 0o755); err != nil {
		return fmt.Errorf("create ticket audit dir: %w", err)
	}

	if err := writeJSONFile(filepath.Join(ticketDir, promptFile), rec); err != nil {
		return err
	}

	if rec.Reply == nil {
		return nil
	}
	if rec.Reply.ADF != nil {
		if err := writeJSONFile(filepath.Join(ticketDir, replyADFFile), rec.Reply.ADF); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(ticketDir, replyTxtFile), []byte(rec.Reply.PlainText), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", replyTxtFile, err)
	}
	return nil
}

func (s *FileSink) WriteSummary(_ context.Context, summary *models.RunSummary) error {
	return writeJSONFile(filepath.Join(s.dir, "run-"+safeName(summary.RunID)+".json"), summary)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// safeName keeps ticket keys from escaping the audit directory.
func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
