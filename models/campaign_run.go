package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunStatus represents the lifecycle state of a campaign run
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusCompleted RunStatus = "completed"
)

// String returns the string representation of the status
func (s RunStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusIdle, RunStatusRunning, RunStatusPaused, RunStatusStopped, RunStatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further message transitions can happen
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusStopped || s == RunStatusCompleted
}

// IsActive reports whether the drive loop is alive
func (s RunStatus) IsActive() bool {
	return s == RunStatusRunning || s == RunStatusPaused
}

// CanTransitionTo checks if the run can move to the given status
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusIdle:
		return next == RunStatusRunning || next == RunStatusStopped
	case RunStatusRunning:
		return next == RunStatusPaused || next == RunStatusStopped || next == RunStatusCompleted
	case RunStatusPaused:
		return next == RunStatusRunning || next == RunStatusStopped || next == RunStatusCompleted
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RunStatus
func (s *RunStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RunStatus(v)
	case []byte:
		*s = RunStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RunStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RunStatus
func (s RunStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RunStatus: %s", s)
	}
	return string(s), nil
}

// CampaignRun is one bulk-send run over a fixed recipient list under one config
type CampaignRun struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_campaign_runs_uuid" json:"uuid"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	Status      RunStatus     `gorm:"type:campaign_run_status;not null;default:'idle';index:idx_campaign_runs_status" json:"status"`
	Config      SendingConfig `gorm:"type:jsonb;not null" json:"config"`
	ParentRunID *uint         `gorm:"index:idx_campaign_runs_parent_run_id" json:"parent_run_id,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
	CreatedAt   time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaign_runs_created_at" json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`

	// Relations
	ParentRun *CampaignRun `gorm:"foreignKey:ParentRunID;references:ID" json:"parent_run,omitempty"`
}

// TableName returns the table name for the model
func (CampaignRun) TableName() string {
	return "campaign_runs"
}

// BeforeCreate ensures UUID and status are set
func (r *CampaignRun) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RunStatusIdle
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// CampaignRunFilter represents filter criteria for campaign runs
type CampaignRunFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	Status        *RunStatus `json:"status,omitempty"`
	ParentRunID   *uint      `json:"parent_run_id,omitempty"`
	Name          *string    `json:"name,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
