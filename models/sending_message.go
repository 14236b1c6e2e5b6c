package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SendingMessageStatus represents the state of a single message in a run
type SendingMessageStatus string

const (
	SendingMessageStatusPending   SendingMessageStatus = "pending"
	SendingMessageStatusSending   SendingMessageStatus = "sending"
	SendingMessageStatusSent      SendingMessageStatus = "sent"
	SendingMessageStatusFailed    SendingMessageStatus = "failed"
	SendingMessageStatusPaused    SendingMessageStatus = "paused"
	SendingMessageStatusScheduled SendingMessageStatus = "scheduled"
)

// String returns the string representation of the status
func (s SendingMessageStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SendingMessageStatus) Valid() bool {
	switch s {
	case SendingMessageStatusPending, SendingMessageStatusSending,
		SendingMessageStatusSent, SendingMessageStatusFailed,
		SendingMessageStatusPaused, SendingMessageStatusScheduled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SendingMessageStatus
func (s *SendingMessageStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SendingMessageStatus(v)
	case []byte:
		*s = SendingMessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SendingMessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SendingMessageStatus
func (s SendingMessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SendingMessageStatus: %s", s)
	}
	return string(s), nil
}

// CanTransitionTo reports whether the message state machine allows moving to next
func (s SendingMessageStatus) CanTransitionTo(next SendingMessageStatus) bool {
	switch s {
	case SendingMessageStatusPending:
		return next == SendingMessageStatusSending || next == SendingMessageStatusPaused
	case SendingMessageStatusSending:
		return next == SendingMessageStatusSent ||
			next == SendingMessageStatusFailed ||
			next == SendingMessageStatusScheduled
	case SendingMessageStatusFailed:
		return next == SendingMessageStatusPending
	case SendingMessageStatusPaused:
		return next == SendingMessageStatusPending
	case SendingMessageStatusScheduled:
		return next == SendingMessageStatusPending
	default:
		return false
	}
}

// Recipient is one input record of a campaign
type Recipient struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Content     string `json:"content"`
}

// SendingMessage is one unit of work of a campaign run
type SendingMessage struct {
	ID                uint                 `gorm:"primaryKey" json:"-"`
	UUID              uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:uk_sending_messages_uuid" json:"id"`
	RunID             uint                 `gorm:"not null;index:idx_sending_messages_run_id" json:"-"`
	Position          int                  `gorm:"not null" json:"position"`
	RecipientName     string               `gorm:"size:255" json:"recipient_name"`
	RecipientNumber   string               `gorm:"size:32;not null;index:idx_sending_messages_recipient_number" json:"recipient_number"`
	Content           string               `gorm:"type:text;not null" json:"content"`
	Status            SendingMessageStatus `gorm:"type:sending_message_status;not null;default:'pending';index:idx_sending_messages_status" json:"status"`
	SentAt            *time.Time           `json:"sent_at,omitempty"`
	FailureReason     *string              `gorm:"type:text" json:"failure_reason,omitempty"`
	RetryCount        int                  `gorm:"not null;default:0" json:"retry_count"`
	EstimatedSendTime *time.Time           `json:"estimated_send_time,omitempty"`
	LastAttemptAt     *time.Time           `json:"last_attempt_at,omitempty"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	ReadAt            *time.Time           `json:"read_at,omitempty"`
	CreatedAt         time.Time            `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         *time.Time           `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (SendingMessage) TableName() string {
	return "sending_messages"
}

// NewSendingMessages turns recipients into pending messages in input order
func NewSendingMessages(recipients []Recipient) []SendingMessage {
	msgs := make([]SendingMessage, 0, len(recipients))
	for i, r := range recipients {
		msgs = append(msgs, SendingMessage{
			UUID:            uuid.New(),
			Position:        i,
			RecipientName:   r.Name,
			RecipientNumber: r.PhoneNumber,
			Content:         r.Content,
			Status:          SendingMessageStatusPending,
		})
	}
	return msgs
}

// Clone returns a deep copy of the message
func (m SendingMessage) Clone() SendingMessage {
	out := m
	out.SentAt = cloneTime(m.SentAt)
	out.EstimatedSendTime = cloneTime(m.EstimatedSendTime)
	out.LastAttemptAt = cloneTime(m.LastAttemptAt)
	out.DeliveredAt = cloneTime(m.DeliveredAt)
	out.ReadAt = cloneTime(m.ReadAt)
	out.UpdatedAt = cloneTime(m.UpdatedAt)
	if m.FailureReason != nil {
		reason := *m.FailureReason
		out.FailureReason = &reason
	}
	return out
}

// CanRetry reports whether a failed message still has retry budget
func (m SendingMessage) CanRetry(limit int) bool {
	return m.Status == SendingMessageStatusFailed && m.RetryCount < limit
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SendingMessageFilter represents filter criteria for sending messages
type SendingMessageFilter struct {
	ID              *uint                 `json:"id,omitempty"`
	UUID            *uuid.UUID            `json:"uuid,omitempty"`
	UUIDs           []uuid.UUID           `json:"uuids,omitempty"`
	RunID           *uint                 `json:"run_id,omitempty"`
	Status          *SendingMessageStatus `json:"status,omitempty"`
	RecipientNumber *string               `json:"recipient_number,omitempty"`
	SentAfter       *time.Time            `json:"sent_after,omitempty"`
	SentBefore      *time.Time            `json:"sent_before,omitempty"`
}
