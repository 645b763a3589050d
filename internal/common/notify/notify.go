// internal/common/notify/notify.go
// Package notify announces finished runs over SNS and SES.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ticket-responder/internal/common/config"
	apperrors "ticket-responder/internal/common/errors"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/models"
)

// TopicPublisher is satisfied by aws.SNSClient.
type TopicPublisher interface {
	PublishToTopic(ctx context.Context, topicARN, subject, message string) (string, error)
}

// EmailSender is satisfied by aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

type Notifier struct {
	config *config.NotificationConfig
	sns    TopicPublisher
	ses    EmailSender
	logger logger.Logger
}

// New builds a notifier. A nil publisher or sender disables that channel.
func New(cfg *config.NotificationConfig, sns TopicPublisher, ses EmailSender, log logger.Logger) *Notifier {
	return &Notifier{
		config: cfg,
		sns:    sns,
		ses:    ses,
		logger: log.With(map[string]interface{}{"component": "notify"}),
	}
}

// Enabled reports whether any channel will be used.
func (n *Notifier) Enabled() bool {
	return n.snsEnabled() || n.sesEnabled()
}

func (n *Notifier) snsEnabled() bool {
	return n.sns != nil && n.config.SNS.Enabled && n.config.SNS.TopicARN != ""
}

func (n *Notifier) sesEnabled() bool {
	return n.ses != nil && n.config.SES.Enabled && len(n.config.SES.ToEmails) > 0
}

// NotifyRun sends the summary on every enabled channel. A failing channel does not stop the others.
func (n *Notifier) NotifyRun(ctx context.Context, summary *models.RunSummary) error {
	subject := Subject(summary)
	var errs []error

	if n.snsEnabled() {
		payload, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("encode run summary: %w", err)
		}
		id, err := n.sns.PublishToTopic(ctx, n.config.SNS.TopicARN, subject, string(payload))
		if err != nil {
			errs = append(errs, apperrors.NewNotificationSendFailedError("sns", err))
		} else {
			n.logger.Info("Run summary published", map[string]interface{}{"channel": "sns", "messageId": id})
		}
	}

	if n.sesEnabled() {
		id, err := n.ses.SendText(ctx, n.config.SES.FromEmail, n.config.SES.ToEmails, subject, Body(summary))
		if err != nil {
			errs = append(errs, apperrors.NewNotificationSendFailedError("ses", err))
		} else {
			n.logger.Info("Run summary emailed", map[string]interface{}{"channel": "ses", "messageId": id})
		}
	}

	return errors.Join(errs...)
}

func Subject(s *models.RunSummary) string {
	return fmt.Sprintf("ticket-responder run %s: %d published, %d failed", s.RunID, s.Published, s.Failed)
}

// Body renders the summary as plain text.
func Body(s *models.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:       %s\n", s.RunID)
	fmt.Fprintf(&b, "Query:     %s\n", s.Query)
	fmt.Fprintf(&b, "Started:   %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Finished:  %s\n", s.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Processed: %d\n", s.Processed)
	fmt.Fprintf(&b, "Published: %d\n", s.Published)
	fmt.Fprintf(&b, "Failed:    %d\n", s.Failed)

	if len(s.Failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "- %s [%s] %s: %s\n", f.Key, f.FailedStage, f.ErrorCode, f.Error)
		}
	}
	return b.String()
}
