package businessflow

import (
	"fmt"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet        = "Summary"
	errorsSheet         = "Errors"
	peakHoursSheet      = "Peak Hours"
	failedMessagesSheet = "Failed Messages"
)

// renderReportWorkbook lays a report out over four sheets and returns the XLSX bytes
func renderReportWorkbook(report models.CampaignReportData) ([]byte, error) {
	xl := excelize.NewFile()
	defer xl.Close()

	xl.SetSheetName(xl.GetSheetName(0), summarySheet)
	for _, name := range []string{errorsSheet, peakHoursSheet, failedMessagesSheet} {
		if _, err := xl.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	s, r, c, q := report.Summary, report.Rates, report.Costs, report.RecipientQuality
	summary := [][]any{
		{"field", "value"},
		{"run_uuid", report.RunUUID.String()},
		{"campaign_name", report.CampaignName},
		{"status", string(report.Status)},
		{"started_at", formatReportTime(report.StartedAt)},
		{"finished_at", formatReportTime(report.FinishedAt)},
		{"duration_seconds", report.DurationSeconds},
		{"total_messages", s.TotalMessages},
		{"sent_messages", s.SentMessages},
		{"failed_messages", s.FailedMessages},
		{"pending_messages", s.PendingMessages},
		{"scheduled_messages", s.ScheduledMessages},
		{"delivered_messages", s.DeliveredMessages},
		{"read_messages", s.ReadMessages},
		{"retried_messages", s.RetriedMessages},
		{"success_rate", r.SuccessRate},
		{"delivery_rate", r.DeliveryRate},
		{"read_rate", r.ReadRate},
		{"failure_rate", r.FailureRate},
		{"estimated_cost", c.EstimatedCost},
		{"actual_cost", c.ActualCost},
		{"cost_per_message", c.CostPerMessage},
		{"currency", c.Currency},
		{"unique_recipients", q.UniqueRecipients},
		{"duplicate_recipients", q.DuplicateRecipients},
		{"invalid_numbers", q.InvalidNumbers},
	}
	if err := writeRows(xl, summarySheet, summary); err != nil {
		return nil, err
	}

	e := report.Errors
	errorRows := [][]any{
		{"category", "count"},
		{string(models.ErrorCategoryNetwork), e.Network},
		{string(models.ErrorCategoryAPI), e.API},
		{string(models.ErrorCategoryRateLimit), e.RateLimit},
		{string(models.ErrorCategoryInvalidNumber), e.InvalidNumber},
		{string(models.ErrorCategoryOther), e.Other},
	}
	if err := writeRows(xl, errorsSheet, errorRows); err != nil {
		return nil, err
	}

	peakRows := [][]any{{"hour", "sent", "failed", "success_rate"}}
	for _, h := range report.PeakTimes {
		peakRows = append(peakRows, []any{h.Hour, h.Sent, h.Failed, h.SuccessRate})
	}
	if err := writeRows(xl, peakHoursSheet, peakRows); err != nil {
		return nil, err
	}

	failedRows := [][]any{{
		"message_id", "position", "recipient_name", "recipient_number", "failure_reason",
		"category", "retry_count", "can_retry", "last_attempt_at", "next_retry_at",
	}}
	for _, m := range report.FailedMessages {
		failedRows = append(failedRows, []any{
			m.MessageID.String(), m.Position, m.RecipientName, m.RecipientNumber, m.FailureReason,
			string(m.Category), m.RetryCount, m.CanRetry, formatReportTimePtr(m.LastAttemptAt), formatReportTimePtr(m.NextRetryAt),
		})
	}
	if err := writeRows(xl, failedMessagesSheet, failedRows); err != nil {
		return nil, err
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(xl *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatReportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatReportTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatReportTime(*t)
}
