package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
	_ "time/tzdata" // zone database for DND and daily-cap timezones
)

// IntervalMode selects how the delay between consecutive sends is resolved
type IntervalMode string

const (
	IntervalModeFixed  IntervalMode = "fixed"
	IntervalModeRandom IntervalMode = "random"
)

// Valid checks if the interval mode is valid
func (m IntervalMode) Valid() bool {
	return m == IntervalModeFixed || m == IntervalModeRandom
}

// RescheduleWindow selects when an auto-rescheduled message becomes eligible again
type RescheduleWindow string

const (
	RescheduleWindowImmediate  RescheduleWindow = "immediate"
	RescheduleWindowNextWindow RescheduleWindow = "next_window"
	RescheduleWindowNextDay    RescheduleWindow = "next_day"
)

// Valid checks if the reschedule window is valid
func (w RescheduleWindow) Valid() bool {
	switch w {
	case RescheduleWindowImmediate, RescheduleWindowNextWindow, RescheduleWindowNextDay:
		return true
	default:
		return false
	}
}

// MessageIntervalConfig is the delay policy between consecutive sends
type MessageIntervalConfig struct {
	Enabled      bool         `json:"enabled"`
	Mode         IntervalMode `json:"mode" validate:"oneof=fixed random"`
	FixedSeconds int          `json:"fixed_seconds" validate:"min=1,max=3600"`
	RandomMin    int          `json:"random_min" validate:"min=1,max=3600"`
	RandomMax    int          `json:"random_max" validate:"min=1,max=3600,gtfield=RandomMin"`
}

// BatchPauseConfig forces a pause after every MessagesPerBatch processed messages
type BatchPauseConfig struct {
	Enabled              bool `json:"enabled"`
	MessagesPerBatch     int  `json:"messages_per_batch" validate:"min=1,max=10000"`
	PauseDurationMinutes int  `json:"pause_duration_minutes" validate:"min=1,max=1440"`
}

// DoNotDisturbConfig is a daily wall-clock window during which nothing is sent
type DoNotDisturbConfig struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time" validate:"clock_time"`
	EndTime   string `json:"end_time" validate:"clock_time,nefield=StartTime"`
	Timezone  string `json:"timezone" validate:"iana_tz"`
}

// DailyCapConfig limits the number of sends per day.
// ResetTimezone selects the zone whose midnight resets the counter; empty falls back to the DND timezone.
type DailyCapConfig struct {
	Enabled           bool   `json:"enabled"`
	MaxMessagesPerDay int    `json:"max_messages_per_day" validate:"min=1,max=100000"`
	ResetAtMidnight   bool   `json:"reset_at_midnight"`
	ResetTimezone     string `json:"reset_timezone,omitempty" validate:"omitempty,iana_tz"`
}

// ErrorSimulationConfig injects synthetic send failures
type ErrorSimulationConfig struct {
	Enabled           bool `json:"enabled"`
	ErrorRatePercent  int  `json:"error_rate_percent" validate:"min=0,max=50"`
	RetryAttempts     int  `json:"retry_attempts" validate:"min=0,max=10"`
	RetryDelayMinutes int  `json:"retry_delay_minutes" validate:"min=0,max=1440"`
}

// AutoReschedulingConfig re-queues failed messages without operator action
type AutoReschedulingConfig struct {
	Enabled                        bool             `json:"enabled"`
	FailedMessageRetryDelayMinutes int              `json:"failed_message_retry_delay_minutes" validate:"min=0,max=1440"`
	MaxRetryAttempts               int              `json:"max_retry_attempts" validate:"min=0,max=10"`
	RescheduleWindow               RescheduleWindow `json:"reschedule_window" validate:"oneof=immediate next_window next_day"`
}

// SendingConfig is the complete pacing and retry policy of one campaign run
type SendingConfig struct {
	MessageInterval  MessageIntervalConfig  `json:"message_interval"`
	BatchPause       BatchPauseConfig       `json:"batch_pause"`
	DoNotDisturb     DoNotDisturbConfig     `json:"do_not_disturb"`
	DailyCap         DailyCapConfig         `json:"daily_cap"`
	ErrorSimulation  ErrorSimulationConfig  `json:"error_simulation"`
	AutoRescheduling AutoReschedulingConfig `json:"auto_rescheduling"`
}

// DefaultSendingConfig returns the documented defaults
func DefaultSendingConfig() SendingConfig {
	return SendingConfig{
		MessageInterval: MessageIntervalConfig{
			Enabled:      true,
			Mode:         IntervalModeRandom,
			FixedSeconds: 10,
			RandomMin:    5,
			RandomMax:    15,
		},
		BatchPause: BatchPauseConfig{
			Enabled:              false,
			MessagesPerBatch:     50,
			PauseDurationMinutes: 5,
		},
		DoNotDisturb: DoNotDisturbConfig{
			Enabled:   false,
			StartTime: "22:00",
			EndTime:   "08:00",
			Timezone:  "Asia/Tehran",
		},
		DailyCap: DailyCapConfig{
			Enabled:           false,
			MaxMessagesPerDay: 1000,
			ResetAtMidnight:   true,
		},
		ErrorSimulation: ErrorSimulationConfig{
			Enabled:           false,
			ErrorRatePercent:  5,
			RetryAttempts:     3,
			RetryDelayMinutes: 5,
		},
		AutoRescheduling: AutoReschedulingConfig{
			Enabled:                        false,
			FailedMessageRetryDelayMinutes: 30,
			MaxRetryAttempts:               3,
			RescheduleWindow:               RescheduleWindowNextWindow,
		},
	}
}

// RetryLimit is the retry budget of a single message under this config
func (c SendingConfig) RetryLimit() int {
	if c.AutoRescheduling.Enabled {
		return c.AutoRescheduling.MaxRetryAttempts
	}
	return c.ErrorSimulation.RetryAttempts
}

// ScheduleLocation is the zone used for day boundaries: the cap reset zone, then the DND zone, then UTC
func (c SendingConfig) ScheduleLocation() *time.Location {
	for _, name := range []string{c.DailyCap.ResetTimezone, c.DoNotDisturb.Timezone} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Value implements the driver.Valuer interface for SendingConfig
func (c SendingConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for SendingConfig
func (c *SendingConfig) Scan(value any) error {
	if value == nil {
		*c = SendingConfig{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SendingConfig", value)
	}

	return json.Unmarshal(bytes, c)
}
