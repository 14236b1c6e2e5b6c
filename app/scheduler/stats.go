package scheduler

import (
	"time"

	"github.com/amirphl/campaign-sender/models"
)

// ComputeStats derives a statistics snapshot from the message list and the run clock.
// startedAt is nil before the run starts. The ETA is only set while active.
func ComputeStats(messages []models.SendingMessage, cfg models.SendingConfig, startedAt *time.Time, now time.Time, active bool) models.SendingStats {
	stats := models.SendingStats{TotalMessages: len(messages)}

	for i := range messages {
		switch messages[i].Status {
		case models.SendingMessageStatusSent:
			stats.SentMessages++
		case models.SendingMessageStatusFailed:
			stats.FailedMessages++
		case models.SendingMessageStatusPending, models.SendingMessageStatusSending:
			stats.PendingMessages++
		case models.SendingMessageStatusPaused:
			stats.PausedMessages++
		case models.SendingMessageStatusScheduled:
			stats.ScheduledMessages++
		}
	}

	processed := stats.SentMessages + stats.FailedMessages
	if processed > 0 {
		stats.SuccessRate = float64(stats.SentMessages) / float64(processed)
	}

	if startedAt != nil && now.After(*startedAt) {
		stats.ElapsedTime = now.Sub(*startedAt)
	}
	if minutes := stats.ElapsedTime.Minutes(); minutes > 0 {
		stats.MessagesPerMinute = float64(processed) / minutes
	}
	if active && stats.MessagesPerMinute > 0 {
		eta := time.Duration(float64(stats.PendingMessages) / stats.MessagesPerMinute * float64(time.Minute))
		stats.EstimatedTimeRemaining = &eta
	}

	stats.CurrentBatch, stats.TotalBatches = 1, 1
	if cfg.BatchPause.Enabled && cfg.BatchPause.MessagesPerBatch > 0 {
		per := cfg.BatchPause.MessagesPerBatch
		stats.TotalBatches = (stats.TotalMessages + per - 1) / per
		stats.CurrentBatch = processed/per + 1
		if stats.TotalBatches > 0 && stats.CurrentBatch > stats.TotalBatches {
			stats.CurrentBatch = stats.TotalBatches
		}
	}

	return stats
}
