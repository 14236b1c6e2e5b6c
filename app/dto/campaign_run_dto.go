package dto

import (
	"time"

	"github.com/amirphl/campaign-sender/models"
)

// RecipientRequest is one recipient of a new campaign run
type RecipientRequest struct {
	Name        string `json:"name" validate:"max=255"`
	PhoneNumber string `json:"phone_number" validate:"required,max=32"`
	Content     string `json:"content" validate:"required,max=4096"`
}

// CreateCampaignRunRequest represents the request to create a new campaign run.
// A nil config means the default sending config.
type CreateCampaignRunRequest struct {
	Name       string                `json:"name" validate:"required,max=255"`
	Config     *models.SendingConfig `json:"config,omitempty"`
	Recipients []RecipientRequest    `json:"recipients" validate:"required,min=1,dive"`
	AutoStart  bool                  `json:"auto_start"`
}

// CampaignRunResponse is the persisted view of a run
type CampaignRunResponse struct {
	UUID          string               `json:"uuid"`
	Name          string               `json:"name"`
	Status        string               `json:"status"`
	Config        models.SendingConfig `json:"config"`
	ParentRunUUID *string              `json:"parent_run_uuid,omitempty"`
	TotalMessages int                  `json:"total_messages"`
	Loaded        bool                 `json:"loaded"`
	CreatedAt     time.Time            `json:"created_at"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	FinishedAt    *time.Time           `json:"finished_at,omitempty"`
}

// CreateCampaignRunResponse represents the response to create a campaign run
type CreateCampaignRunResponse struct {
	Message string              `json:"message"`
	Run     CampaignRunResponse `json:"run"`
}

// RunControlResponse is returned by start, pause, resume and stop
type RunControlResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
}

// RetryFailedRequest selects failed messages to re-queue. Empty means every retryable message.
type RetryFailedRequest struct {
	RunUUID    string   `json:"-"`
	MessageIDs []string `json:"message_ids,omitempty" validate:"omitempty,dive,uuid"`
}

// RetryFailedResponse lists what was re-queued
type RetryFailedResponse struct {
	Message string   `json:"message"`
	Retried []string `json:"retried"`
	Skipped []string `json:"skipped"`
}

// MarkReceiptRequest records a delivery or read receipt for a sent message
type MarkReceiptRequest struct {
	RunUUID   string     `json:"-"`
	MessageID string     `json:"-" validate:"required,uuid"`
	Type      string     `json:"type" validate:"required,oneof=delivered read"`
	At        *time.Time `json:"at,omitempty"`
}

// MarkReceiptResponse represents the response to a receipt
type MarkReceiptResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
}

// RunStatsResponse carries a statistics snapshot. Live is false when the snapshot
// comes from the cache or from stored messages.
type RunStatsResponse struct {
	UUID  string              `json:"uuid"`
	Live  bool                `json:"live"`
	Stats models.SendingStats `json:"stats"`
}

// ListMessagesRequest represents a page of a run's messages
type ListMessagesRequest struct {
	RunUUID  string  `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=pending sending sent failed paused scheduled"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// PaginationInfo describes a page of results
type PaginationInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ListMessagesResponse represents a page of messages
type ListMessagesResponse struct {
	Messages   []models.SendingMessage `json:"messages"`
	Pagination PaginationInfo          `json:"pagination"`
}

// CampaignReportResponse wraps a finished run's report
type CampaignReportResponse struct {
	Report models.CampaignReportData `json:"report"`
}

// CreateFollowUpRunRequest creates a new run from a report's retryable failures.
// MessageIDs narrows the selection; a nil config reuses the parent's config.
type CreateFollowUpRunRequest struct {
	ParentRunUUID string                `json:"-"`
	Name          string                `json:"name" validate:"omitempty,max=255"`
	Config        *models.SendingConfig `json:"config,omitempty"`
	MessageIDs    []string              `json:"message_ids,omitempty" validate:"omitempty,dive,uuid"`
	AutoStart     bool                  `json:"auto_start"`
}

// ValidateSendingConfigResponse reports whether a sending config is acceptable
type ValidateSendingConfigResponse struct {
	Valid      bool                     `json:"valid"`
	Violations []models.ConfigViolation `json:"violations,omitempty"`
	Config     models.SendingConfig     `json:"config"`
}
