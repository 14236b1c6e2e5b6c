package models

import "time"

// SuspensionReason explains why a running engine is not picking the next message
type SuspensionReason string

const (
	SuspensionNone         SuspensionReason = ""
	SuspensionPaused       SuspensionReason = "paused"
	SuspensionInterval     SuspensionReason = "message_interval"
	SuspensionBatchPause   SuspensionReason = "batch_pause"
	SuspensionDoNotDisturb SuspensionReason = "do_not_disturb"
	SuspensionDailyCap     SuspensionReason = "daily_cap"
	SuspensionScheduled    SuspensionReason = "awaiting_scheduled"
)

// SendingStats is a consistent snapshot derived from the message list and the run clock.
// PendingMessages includes the message currently being sent.
type SendingStats struct {
	TotalMessages          int              `json:"total_messages"`
	SentMessages           int              `json:"sent_messages"`
	FailedMessages         int              `json:"failed_messages"`
	PendingMessages        int              `json:"pending_messages"`
	PausedMessages         int              `json:"paused_messages"`
	ScheduledMessages      int              `json:"scheduled_messages"`
	CurrentBatch           int              `json:"current_batch"`
	TotalBatches           int              `json:"total_batches"`
	ElapsedTime            time.Duration    `json:"elapsed_time"`
	MessagesPerMinute      float64          `json:"messages_per_minute"`
	SuccessRate            float64          `json:"success_rate"`
	EstimatedTimeRemaining *time.Duration   `json:"estimated_time_remaining,omitempty"`
	RunStatus              RunStatus        `json:"run_status"`
	SuspensionReason       SuspensionReason `json:"suspension_reason,omitempty"`
	SuspendedUntil         *time.Time       `json:"suspended_until,omitempty"`
	DailySent              int              `json:"daily_sent"`
	StartedAt              *time.Time       `json:"started_at,omitempty"`
	FinishedAt             *time.Time       `json:"finished_at,omitempty"`
}
