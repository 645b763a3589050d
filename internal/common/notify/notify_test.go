// internal/common/notify/notify_test.go
package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-responder/internal/common/config"
	apperrors "ticket-responder/internal/common/errors"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/models"
)

type MockTopicPublisher struct {
	mock.Mock
}

func (m *MockTopicPublisher) PublishToTopic(ctx context.Context, topicARN, subject, message string) (string, error) {
	args := m.Called(ctx, topicARN, subject, message)
	return args.String(0), args.Error(1)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendText(ctx context.Context, from string, to []string, subject, body string) (string, error) {
	args := m.Called(ctx, from, to, subject, body)
	return args.String(0), args.Error(1)
}

func createTestConfig() *config.NotificationConfig {
	cfg := &config.NotificationConfig{}
	cfg.SNS.Enabled = true
	cfg.SNS.TopicARN = "arn:aws:sns:eu-west-1:1:runs"
	cfg.SES.Enabled = true
	cfg.SES.FromEmail = "bot@example.com"
	cfg.SES.ToEmails = []string{"team@example.com"}
	return cfg
}

func createTestSummary() *models.RunSummary {
	s := &models.RunSummary{
		RunID:      "run-7",
		Query:      "project = SUP",
		StartedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC),
	}
	s.Add(models.TicketResult{Key: "SUP-1", State: models.StatePublished})
	s.Add(models.TicketResult{Key: "SUP-2", State: models.StateFailed, FailedStage: models.StageGenerate,
		ErrorCode: "GENERATION_TIMEOUT", Error: "deadline exceeded"})
	return s
}

func TestNotifyRun_BothChannels(t *testing.T) {
	sns := new(MockTopicPublisher)
	ses := new(MockEmailSender)
	summary := createTestSummary()

	sns.On("PublishToTopic", mock.Anything, "arn:aws:sns:eu-west-1:1:runs", Subject(summary),
		mock.MatchedBy(func(msg string) bool { return strings.HasPrefix(msg, "{") })).
		Return("sns-1", nil)
	ses.On("SendText", mock.Anything, "bot@example.com", []string{"team@example.com"}, Subject(summary),
		mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "SUP-2") &&
				strings.Contains(body, "GENERATION_TIMEOUT") &&
				strings.Contains(body, "Published: 1")
		})).
		Return("ses-1", nil)

	n := New(createTestConfig(), sns, ses, logger.NewTestLogger(t))
	assert.True(t, n.Enabled())
	require.NoError(t, n.NotifyRun(context.Background(), summary))

	sns.AssertExpectations(t)
	ses.AssertExpectations(t)
}

func TestNotifyRun_ChannelFailureDoesNotStopOthers(t *testing.T) {
	sns := new(MockTopicPublisher)
	ses := new(MockEmailSender)
	sns.On("PublishToTopic", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("throttled"))
	ses.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ses-1", nil)

	n := New(createTestConfig(), sns, ses, logger.NewNoOpLogger())
	err := n.NotifyRun(context.Background(), createTestSummary())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, apperrors.CodeOf(err))
	ses.AssertExpectations(t)
}

func TestNotifyRun_Disabled(t *testing.T) {
	sns := new(MockTopicPublisher)
	n := New(&config.NotificationConfig{}, sns, nil, logger.NewNoOpLogger())
	assert.False(t, n.Enabled())
	require.NoError(t, n.NotifyRun(context.Background(), createTestSummary()))
	sns.AssertNotCalled(t, "PublishToTopic", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "ticket-responder run run-7: 1 published, 1 failed", Subject(createTestSummary()))
}
