// internal/common/jira/publish.go
package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	apphttp "ticket-responder/internal/common/http"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/models"
)

const PostFormatPlain = "plain"

type commentRequest struct {
	Body     interface{} `json:"body"`
	ParentID string      `json:"parentId,omitempty"`
}

type commentResponse struct {
	ID string `json:"id"`
}

// Post publishes the reply as a comment. The structured document goes to the v3 API;
// a 400 from it, or plain post format, sends the wiki markup rendering to v2 instead.
func (c *Client) Post(ctx context.Context, ticketKey string, doc *models.ReplyDocument) error {
	if c.postFormat != PostFormatPlain && doc.ADF != nil {
		id, err := c.postComment(ctx, "/rest/api/3/issue/", ticketKey, commentRequest{Body: doc.ADF, ParentID: doc.InReplyTo})
		if err == nil {
			c.logger.Info("Reply published", map[string]interface{}{
				"ticketKey": ticketKey,
				"commentId": id,
				"format":    "adf",
			})
			return nil
		}

		var se *apphttp.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
			return err
		}
		c.logger.Warn("Structured reply rejected, falling back to plain text", map[string]interface{}{
			"ticketKey": ticketKey,
			"response":  se.Body,
		})
	}

	id, err := c.postComment(ctx, "/rest/api/2/issue/", ticketKey, commentRequest{Body: doc.PlainText, ParentID: doc.InReplyTo})
	if err != nil {
		return err
	}
	c.logger.Info("Reply published", map[string]interface{}{
		"ticketKey": ticketKey,
		"commentId": id,
		"format":    "plain",
	})
	return nil
}

func (c *Client) postComment(ctx context.Context, prefix, ticketKey string, body commentRequest) (string, error) {
	var out commentResponse
	u := c.url(prefix+url.PathEscape(ticketKey)+"/comment", nil)
	if err := c.publish.DoJSON(ctx, "POST", u, c.headers(), body, &out); err != nil {
		return "", fmt.Errorf("post comment to %s: %w", ticketKey, err)
	}
	return out.ID, nil
}

// LoggingPublisher logs replies instead of posting them.
type LoggingPublisher struct {
	logger logger.Logger
}

func NewLoggingPublisher(log logger.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: log.With(map[string]interface{}{"component": "dry-run-publisher"})}
}

func (p *LoggingPublisher) Post(_ context.Context, ticketKey string, doc *models.ReplyDocument) error {
	p.logger.Info("Dry run, reply not published", map[string]interface{}{
		"ticketKey":  ticketKey,
		"references": len(doc.References),
		"inReplyTo":  doc.InReplyTo,
		"plainText":  doc.PlainText,
	})
	return nil
}
