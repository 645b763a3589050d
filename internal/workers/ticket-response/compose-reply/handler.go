// internal/workers/ticket-response/compose-reply/handler.go
package composereply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"ticket-responder/internal/common/adf"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/common/validation"
	"ticket-responder/internal/models"
)

const (
	TaskType = "compose-reply"
)

var (
	ErrInvalidInput  = errors.New("INVALID_INPUT")
	ErrComposeFailed = errors.New("COMPOSE_FAILED")
)

var documentSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"type", "version", "content"},
	"properties": map[string]interface{}{
		"type":    map[string]interface{}{"const": adf.TypeDoc},
		"version": map[string]interface{}{"const": 1},
		"content": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]interface{}{"$ref": "#/definitions/node"},
		},
	},
	"definitions": map[string]interface{}{
		"node": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"type"},
			"properties": map[string]interface{}{
				"type":    map[string]interface{}{"type": "string", "minLength": 1},
				"content": map[string]interface{}{"type": "array", "items": map[string]interface{}{"$ref": "#/definitions/node"}},
			},
			"if": map[string]interface{}{
				"properties": map[string]interface{}{"type": map[string]interface{}{"const": adf.TypeText}},
			},
			"then": map[string]interface{}{
				"required":   []interface{}{"text"},
				"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string", "minLength": 1}},
			},
		},
	},
})

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute turns the generated answer into an ADF document followed by a collapsible
// references table, plus the same content as wiki markup. References are deduplicated by
// source, first occurrence wins; with none left the references section is omitted.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrInvalidInput
	}

	answer := strings.TrimSpace(strings.ReplaceAll(input.Answer, "\r\n", "\n"))
	blocks := markdownToADF(answer)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: answer has no renderable content", ErrComposeFailed)
	}

	refs := models.DedupeBySource(input.References)
	if dups := len(input.References) - len(refs); dups > 0 {
		h.logger.Debug("Duplicate reference sources collapsed", map[string]interface{}{
			"ticketKey":  input.TicketKey,
			"duplicates": dups,
		})
	}

	plain := wikiBlocks(blocks)
	if len(refs) > 0 {
		section := adf.Expand(h.config.ReferencesTitle, h.referencesTable(refs))
		blocks = append(blocks, section)
		plain += "\n\n" + wikiBlock(section, "")
	}

	doc := adf.NewDocument(blocks...)
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	h.logger.Debug("Reply composed", map[string]interface{}{
		"ticketKey":  input.TicketKey,
		"blocks":     len(doc.Content),
		"references": len(refs),
	})

	return &Output{Reply: &models.ReplyDocument{
		Body:       answer,
		References: refs,
		ADF:        doc,
		PlainText:  plain,
		InReplyTo:  input.InReplyTo,
	}}, nil
}

func (h *Handler) referencesTable(refs []models.ReferenceChunk) adf.Node {
	header := []string{"Reference", "Source"}
	if h.config.SnippetChars > 0 {
		header = append(header, "Excerpt")
	}

	rows := make([][]adf.Node, 0, len(refs))
	for _, ref := range refs {
		title := strings.TrimSpace(ref.Title)
		source := strings.TrimSpace(ref.Source)

		titleText := adf.Text(title)
		if isURL(source) {
			titleText = adf.Text(title, adf.Link(source))
		}
		row := []adf.Node{
			adf.Paragraph(titleText),
			adf.Paragraph(adf.Text(source)),
		}
		if h.config.SnippetChars > 0 {
			row = append(row, adf.Paragraph(textNode(snippet(ref.Text, h.config.SnippetChars), nil)...))
		}
		rows = append(rows, row)
	}
	return adf.Table(header, rows)
}

func validateDocument(doc *adf.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrComposeFailed, err)
	}
	res, err := documentSchema.ValidateJSON(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrComposeFailed, err)
	}
	if !res.Valid {
		return fmt.Errorf("%w: %s", ErrComposeFailed, res.Error())
	}
	return nil
}

// isURL reports whether source is an absolute http(s) address. Other sources are shown
// as plain text since Jira rejects relative link targets.
func isURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// snippet collapses whitespace and keeps the first limit runes.
func snippet(text string, limit int) string {
	collapsed := strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
