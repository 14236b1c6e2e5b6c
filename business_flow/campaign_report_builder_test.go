package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func reportConfig() models.SendingConfig {
	cfg := models.DefaultSendingConfig()
	cfg.DoNotDisturb.Timezone = "UTC"
	cfg.ErrorSimulation.RetryAttempts = 2
	cfg.ErrorSimulation.RetryDelayMinutes = 5
	return cfg
}

type messageOpt func(*models.SendingMessage)

func reportMessage(pos int, number string, status models.SendingMessageStatus, opts ...messageOpt) models.SendingMessage {
	m := models.SendingMessage{
		UUID:            uuid.New(),
		Position:        pos,
		RecipientName:   "recipient",
		RecipientNumber: number,
		Content:         "hello",
		Status:          status,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func sentAt(t time.Time) messageOpt {
	return func(m *models.SendingMessage) {
		m.SentAt = &t
		m.LastAttemptAt = &t
	}
}

func failedAt(t time.Time, reason string, retries int) messageOpt {
	return func(m *models.SendingMessage) {
		m.LastAttemptAt = &t
		m.FailureReason = &reason
		m.RetryCount = retries
	}
}

func TestBuildCampaignReport_Status(t *testing.T) {
	sent := func(pos int) models.SendingMessage {
		return reportMessage(pos, "+98912000000"+string(rune('0'+pos)), models.SendingMessageStatusSent, sentAt(reportStart))
	}
	failed := func(pos int) models.SendingMessage {
		return reportMessage(pos, "+98912000000"+string(rune('0'+pos)), models.SendingMessageStatusFailed, failedAt(reportStart, "network timeout", 0))
	}
	pending := func(pos int) models.SendingMessage {
		return reportMessage(pos, "+98912000000"+string(rune('0'+pos)), models.SendingMessageStatusPending)
	}

	tests := []struct {
		name     string
		messages []models.SendingMessage
		stopped  bool
		want     models.CampaignReportStatus
	}{
		{name: "all sent", messages: []models.SendingMessage{sent(0), sent(1)}, want: models.CampaignReportStatusCompleted},
		{name: "mixed", messages: []models.SendingMessage{sent(0), failed(1)}, want: models.CampaignReportStatusPartial},
		{name: "nothing sent", messages: []models.SendingMessage{failed(0), failed(1)}, want: models.CampaignReportStatusFailed},
		{name: "stopped early", messages: []models.SendingMessage{sent(0), pending(1)}, stopped: true, want: models.CampaignReportStatusCancelled},
		{name: "stopped after the last message", messages: []models.SendingMessage{sent(0), sent(1)}, stopped: true, want: models.CampaignReportStatusCompleted},
		{name: "empty", messages: nil, want: models.CampaignReportStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := BuildCampaignReport(ReportInput{
				Messages: tt.messages,
				Config:   reportConfig(),
				Timing:   ReportTiming{StartedAt: reportStart, FinishedAt: reportStart.Add(time.Minute), Stopped: tt.stopped},
			})
			assert.Equal(t, tt.want, report.Status)
		})
	}
}

func TestBuildCampaignReport_AllFailed(t *testing.T) {
	msgs := []models.SendingMessage{
		reportMessage(0, "+989120000001", models.SendingMessageStatusFailed, failedAt(reportStart, "network timeout while contacting provider", 0)),
		reportMessage(1, "+989120000002", models.SendingMessageStatusFailed, failedAt(reportStart, "rate limit exceeded: too many requests", 1)),
		reportMessage(2, "+989120000003", models.SendingMessageStatusFailed, failedAt(reportStart, "message rejected by provider", 2)),
	}

	report := BuildCampaignReport(ReportInput{
		RunUUID:      uuid.New(),
		CampaignName: "spring sale",
		Messages:     msgs,
		Config:       reportConfig(),
		Timing:       ReportTiming{StartedAt: reportStart, FinishedAt: reportStart.Add(90 * time.Second)},
	})

	assert.Equal(t, models.CampaignReportStatusFailed, report.Status)
	require.Len(t, report.FailedMessages, 3)
	assert.Equal(t, 3, report.Errors.Total())
	assert.Equal(t, 1, report.Errors.Network)
	assert.Equal(t, 1, report.Errors.RateLimit)
	assert.Equal(t, 1, report.Errors.Other)
	assert.Equal(t, int64(90), report.DurationSeconds)
	assert.Zero(t, report.Rates.SuccessRate)
	assert.Equal(t, 100.0, report.Rates.FailureRate)
	assert.Equal(t, 2, report.Summary.RetriedMessages)

	assert.True(t, report.FailedMessages[0].CanRetry)
	assert.True(t, report.FailedMessages[1].CanRetry)
	assert.False(t, report.FailedMessages[2].CanRetry, "retry count reached the limit")
	require.NotNil(t, report.FailedMessages[0].NextRetryAt)
	assert.Equal(t, reportStart.Add(5*time.Minute), *report.FailedMessages[0].NextRetryAt)
	assert.Nil(t, report.FailedMessages[2].NextRetryAt)
	assert.Len(t, report.RetryableMessages(), 2)
}

func TestBuildCampaignReport_RatesAndPeakTimes(t *testing.T) {
	delivered := reportStart.Add(time.Hour)
	msgs := []models.SendingMessage{
		reportMessage(0, "+989120000001", models.SendingMessageStatusSent, sentAt(reportStart), func(m *models.SendingMessage) {
			m.DeliveredAt = &delivered
			m.ReadAt = &delivered
		}),
		reportMessage(1, "+989120000002", models.SendingMessageStatusSent, sentAt(reportStart.Add(10*time.Minute)), func(m *models.SendingMessage) {
			m.DeliveredAt = &delivered
		}),
		reportMessage(2, "+989120000003", models.SendingMessageStatusSent, sentAt(reportStart.Add(2*time.Hour))),
		reportMessage(3, "+989120000004", models.SendingMessageStatusFailed, failedAt(reportStart.Add(2*time.Hour), "api error: provider returned 500", 0)),
	}

	report := BuildCampaignReport(ReportInput{
		Messages: msgs,
		Config:   reportConfig(),
		Timing:   ReportTiming{StartedAt: reportStart, FinishedAt: reportStart.Add(3 * time.Hour)},
		Pricing:  FlatRatePricing{PricePerMessage: 250, CurrencyCode: "IRR"},
	})

	assert.Equal(t, models.CampaignReportStatusPartial, report.Status)
	assert.Equal(t, 75.0, report.Rates.SuccessRate)
	assert.Equal(t, 50.0, report.Rates.DeliveryRate)
	assert.Equal(t, 25.0, report.Rates.ReadRate)
	assert.Equal(t, 1, report.Errors.API)

	assert.Equal(t, []models.PeakHour{
		{Hour: 9, Sent: 2, Failed: 0, SuccessRate: 100},
		{Hour: 11, Sent: 1, Failed: 1, SuccessRate: 50},
	}, report.PeakTimes)

	assert.Equal(t, 1000.0, report.Costs.EstimatedCost)
	assert.Equal(t, 750.0, report.Costs.ActualCost)
	assert.Equal(t, 250.0, report.Costs.CostPerMessage)
	assert.Equal(t, "IRR", report.Costs.Currency)
}

func TestBuildCampaignReport_DeliveryWithoutReceipts(t *testing.T) {
	msgs := []models.SendingMessage{
		reportMessage(0, "+989120000001", models.SendingMessageStatusSent, sentAt(reportStart)),
		reportMessage(1, "+989120000002", models.SendingMessageStatusScheduled),
	}
	report := BuildCampaignReport(ReportInput{Messages: msgs, Config: reportConfig()})

	assert.Equal(t, 1, report.Summary.DeliveredMessages)
	assert.Equal(t, 50.0, report.Rates.DeliveryRate)
	assert.Equal(t, 1, report.Summary.ScheduledMessages)
	assert.Zero(t, report.DurationSeconds)
}

func TestBuildCampaignReport_RecipientQuality(t *testing.T) {
	msgs := []models.SendingMessage{
		reportMessage(0, "+98 912 000 0001", models.SendingMessageStatusSent),
		reportMessage(1, "+98-912-000-0001", models.SendingMessageStatusSent),
		reportMessage(2, "12345", models.SendingMessageStatusSent),
		reportMessage(3, "+989120000002", models.SendingMessageStatusSent),
	}
	q := BuildCampaignReport(ReportInput{Messages: msgs, Config: reportConfig()}).RecipientQuality

	assert.Equal(t, 3, q.UniqueRecipients)
	assert.Equal(t, 1, q.DuplicateRecipients)
	assert.Equal(t, []string{"+989120000001"}, q.DuplicateNumbers)
	assert.Equal(t, []string{"12345"}, q.InvalidNumberList)
	assert.Equal(t, 1, q.InvalidNumbers)
}

func TestBuildCampaignReport_IsDeterministic(t *testing.T) {
	msgs := []models.SendingMessage{
		reportMessage(1, "+989120000002", models.SendingMessageStatusFailed, failedAt(reportStart, "timeout", 0)),
		reportMessage(0, "+989120000001", models.SendingMessageStatusSent, sentAt(reportStart)),
	}
	in := ReportInput{Messages: msgs, Config: reportConfig(), Timing: ReportTiming{StartedAt: reportStart, FinishedAt: reportStart}}
	assert.Equal(t, BuildCampaignReport(in), BuildCampaignReport(in))
}

func TestKeywordErrorClassifier(t *testing.T) {
	tests := []struct {
		reason string
		want   models.ErrorCategory
	}{
		{"Network timeout", models.ErrorCategoryNetwork},
		{"connection refused", models.ErrorCategoryNetwork},
		{"API error: provider returned 500", models.ErrorCategoryAPI},
		{"429 Too Many Requests", models.ErrorCategoryRateLimit},
		{"rate limit exceeded", models.ErrorCategoryRateLimit},
		{"invalid number: recipient is not registered on WhatsApp", models.ErrorCategoryInvalidNumber},
		{"message rejected by provider", models.ErrorCategoryOther},
		{"", models.ErrorCategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.want, KeywordErrorClassifier{}.Classify(tt.reason))
		})
	}
}
