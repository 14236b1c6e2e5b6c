package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CampaignReportStatus is the outcome of a finished run
type CampaignReportStatus string

const (
	CampaignReportStatusCompleted CampaignReportStatus = "completed"
	CampaignReportStatusPartial   CampaignReportStatus = "partial"
	CampaignReportStatusFailed    CampaignReportStatus = "failed"
	CampaignReportStatusCancelled CampaignReportStatus = "cancelled"
)

// Valid checks if the status is valid
func (s CampaignReportStatus) Valid() bool {
	switch s {
	case CampaignReportStatusCompleted, CampaignReportStatusPartial,
		CampaignReportStatusFailed, CampaignReportStatusCancelled:
		return true
	default:
		return false
	}
}

// ErrorCategory buckets failure reasons in the report
type ErrorCategory string

const (
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryAPI           ErrorCategory = "api"
	ErrorCategoryRateLimit     ErrorCategory = "rate_limit"
	ErrorCategoryInvalidNumber ErrorCategory = "invalid_number"
	ErrorCategoryOther         ErrorCategory = "other"
)

// ReportSummary holds the final per-status counts
type ReportSummary struct {
	TotalMessages     int `json:"total_messages"`
	SentMessages      int `json:"sent_messages"`
	FailedMessages    int `json:"failed_messages"`
	PendingMessages   int `json:"pending_messages"`
	ScheduledMessages int `json:"scheduled_messages"`
	DeliveredMessages int `json:"delivered_messages"`
	ReadMessages      int `json:"read_messages"`
	RetriedMessages   int `json:"retried_messages"`
}

// ReportRates are percentages over the total message count
type ReportRates struct {
	SuccessRate  float64 `json:"success_rate"`
	DeliveryRate float64 `json:"delivery_rate"`
	ReadRate     float64 `json:"read_rate"`
	FailureRate  float64 `json:"failure_rate"`
}

// ReportCosts are aggregated from the caller's pricing model
type ReportCosts struct {
	EstimatedCost  float64 `json:"estimated_cost"`
	ActualCost     float64 `json:"actual_cost"`
	CostPerMessage float64 `json:"cost_per_message"`
	Currency       string  `json:"currency,omitempty"`
}

// RecipientQuality describes the recipient list itself
type RecipientQuality struct {
	UniqueRecipients    int      `json:"unique_recipients"`
	DuplicateRecipients int      `json:"duplicate_recipients"`
	InvalidNumbers      int      `json:"invalid_numbers"`
	DuplicateNumbers    []string `json:"duplicate_numbers"`
	InvalidNumberList   []string `json:"invalid_number_list"`
}

// ErrorBreakdown counts each failed message in exactly one category
type ErrorBreakdown struct {
	Network       int `json:"network"`
	API           int `json:"api"`
	RateLimit     int `json:"rate_limit"`
	InvalidNumber int `json:"invalid_number"`
	Other         int `json:"other"`
}

// Add counts one failure in the given category
func (b *ErrorBreakdown) Add(category ErrorCategory) {
	switch category {
	case ErrorCategoryNetwork:
		b.Network++
	case ErrorCategoryAPI:
		b.API++
	case ErrorCategoryRateLimit:
		b.RateLimit++
	case ErrorCategoryInvalidNumber:
		b.InvalidNumber++
	default:
		b.Other++
	}
}

// Total returns the number of categorized failures
func (b ErrorBreakdown) Total() int {
	return b.Network + b.API + b.RateLimit + b.InvalidNumber + b.Other
}

// PeakHour is one hour-of-day bucket of the send histogram
type PeakHour struct {
	Hour        int     `json:"hour"`
	Sent        int     `json:"sent"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// FailedMessageEntry is a failed message with its retry eligibility
type FailedMessageEntry struct {
	MessageID       uuid.UUID     `json:"message_id"`
	Position        int           `json:"position"`
	RecipientName   string        `json:"recipient_name"`
	RecipientNumber string        `json:"recipient_number"`
	Content         string        `json:"content"`
	FailureReason   string        `json:"failure_reason"`
	Category        ErrorCategory `json:"category"`
	RetryCount      int           `json:"retry_count"`
	CanRetry        bool          `json:"can_retry"`
	LastAttemptAt   *time.Time    `json:"last_attempt_at,omitempty"`
	NextRetryAt     *time.Time    `json:"next_retry_at,omitempty"`
}

// CampaignReportData is the immutable summary of a finished run
type CampaignReportData struct {
	RunUUID          uuid.UUID            `json:"run_uuid"`
	CampaignName     string               `json:"campaign_name"`
	Status           CampaignReportStatus `json:"status"`
	StartedAt        time.Time            `json:"started_at"`
	FinishedAt       time.Time            `json:"finished_at"`
	GeneratedAt      time.Time            `json:"generated_at"`
	DurationSeconds  int64                `json:"duration_seconds"`
	Summary          ReportSummary        `json:"summary"`
	Rates            ReportRates          `json:"rates"`
	Costs            ReportCosts          `json:"costs"`
	RecipientQuality RecipientQuality     `json:"recipient_quality"`
	Errors           ErrorBreakdown       `json:"errors"`
	PeakTimes        []PeakHour           `json:"peak_times"`
	FailedMessages   []FailedMessageEntry `json:"failed_messages_list"`
}

// RetryableMessages returns the failed entries that still have retry budget
func (d CampaignReportData) RetryableMessages() []FailedMessageEntry {
	out := make([]FailedMessageEntry, 0, len(d.FailedMessages))
	for _, m := range d.FailedMessages {
		if m.CanRetry {
			out = append(out, m)
		}
	}
	return out
}

// Value implements the driver.Valuer interface for CampaignReportData
func (d CampaignReportData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for CampaignReportData
func (d *CampaignReportData) Scan(value any) error {
	if value == nil {
		*d = CampaignReportData{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignReportData", value)
	}

	return json.Unmarshal(bytes, d)
}

// CampaignReport is the persisted report of a finished run
type CampaignReport struct {
	ID                  uint                 `gorm:"primaryKey" json:"id"`
	RunID               uint                 `gorm:"not null;uniqueIndex:uk_campaign_reports_run_id" json:"run_id"`
	Status              CampaignReportStatus `gorm:"size:20;not null;index:idx_campaign_reports_status" json:"status"`
	Data                CampaignReportData   `gorm:"type:jsonb;not null" json:"data"`
	RetryableMessageIDs pq.StringArray       `gorm:"type:text[]" json:"retryable_message_ids"`
	CreatedAt           time.Time            `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (CampaignReport) TableName() string {
	return "campaign_reports"
}

// NewCampaignReport wraps report data for persistence
func NewCampaignReport(runID uint, data CampaignReportData) CampaignReport {
	ids := make(pq.StringArray, 0, len(data.FailedMessages))
	for _, m := range data.RetryableMessages() {
		ids = append(ids, m.MessageID.String())
	}
	return CampaignReport{
		RunID:               runID,
		Status:              data.Status,
		Data:                data,
		RetryableMessageIDs: ids,
	}
}

// CampaignReportFilter represents filter criteria for campaign reports
type CampaignReportFilter struct {
	ID     *uint                 `json:"id,omitempty"`
	RunID  *uint                 `json:"run_id,omitempty"`
	Status *CampaignReportStatus `json:"status,omitempty"`
}
