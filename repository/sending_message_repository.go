package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SendingMessageRepositoryImpl implements the SendingMessageRepository interface
type SendingMessageRepositoryImpl struct {
	*BaseRepository[models.SendingMessage, models.SendingMessageFilter]
}

// NewSendingMessageRepository creates a new sending message repository
func NewSendingMessageRepository(db *gorm.DB) SendingMessageRepository {
	return &SendingMessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SendingMessage, models.SendingMessageFilter](db),
	}
}

// ByUUID retrieves a message by UUID
func (r *SendingMessageRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.SendingMessage, error) {
	msgs, err := r.ByFilter(ctx, models.SendingMessageFilter{UUID: &id}, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find sending message by UUID: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

// ListByRun retrieves a page of a run's messages in processing order
func (r *SendingMessageRepositoryImpl) ListByRun(ctx context.Context, runID uint, status *models.SendingMessageStatus, limit, offset int) ([]*models.SendingMessage, error) {
	filter := models.SendingMessageFilter{RunID: &runID, Status: status}
	return r.ByFilter(ctx, filter, "position ASC", limit, offset)
}

// AllByRun retrieves every message of a run in processing order
func (r *SendingMessageRepositoryImpl) AllByRun(ctx context.Context, runID uint) ([]models.SendingMessage, error) {
	var msgs []models.SendingMessage
	err := r.getDB(ctx).
		Where("run_id = ?", runID).
		Order("position ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of run %d: %w", runID, err)
	}
	return msgs, nil
}

// UpdateState writes the mutable columns of a message, matched by UUID
func (r *SendingMessageRepositoryImpl) UpdateState(ctx context.Context, msg models.SendingMessage) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finishWrite(db, shouldCommit, err) }()

	res := db.Model(&models.SendingMessage{}).
		Where("uuid = ?", msg.UUID).
		Updates(map[string]any{
			"status":              msg.Status,
			"sent_at":             msg.SentAt,
			"failure_reason":      msg.FailureReason,
			"retry_count":         msg.RetryCount,
			"estimated_send_time": msg.EstimatedSendTime,
			"last_attempt_at":     msg.LastAttemptAt,
			"delivered_at":        msg.DeliveredAt,
			"read_at":             msg.ReadAt,
			"updated_at":          time.Now().UTC(),
		})
	if err = res.Error; err != nil {
		return fmt.Errorf("failed to update sending message %s: %w", msg.UUID, err)
	}
	if res.RowsAffected == 0 {
		err = fmt.Errorf("sending message %s not found", msg.UUID)
		return err
	}

	return nil
}

// CountByStatus returns the per-status message counts of a run
func (r *SendingMessageRepositoryImpl) CountByStatus(ctx context.Context, runID uint) (map[models.SendingMessageStatus]int64, error) {
	var rows []struct {
		Status models.SendingMessageStatus
		Count  int64
	}
	err := r.getDB(ctx).
		Model(&models.SendingMessage{}).
		Select("status, COUNT(*) AS count").
		Where("run_id = ?", runID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count messages of run %d: %w", runID, err)
	}

	counts := make(map[models.SendingMessageStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ByFilter retrieves sending messages based on filter criteria
func (r *SendingMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.SendingMessageFilter, orderBy string, limit, offset int) ([]*models.SendingMessage, error) {
	db := r.getDB(ctx)

	var msgs []*models.SendingMessage
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find sending messages by filter: %w", err)
	}

	return msgs, nil
}

// Count returns the number of sending messages matching the filter
func (r *SendingMessageRepositoryImpl) Count(ctx context.Context, filter models.SendingMessageFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.SendingMessage{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sending messages: %w", err)
	}

	return count, nil
}

// Exists checks if any sending message matching the filter exists
func (r *SendingMessageRepositoryImpl) Exists(ctx context.Context, filter models.SendingMessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *SendingMessageRepositoryImpl) applyFilter(db *gorm.DB, filter models.SendingMessageFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if len(filter.UUIDs) > 0 {
		db = db.Where("uuid IN ?", filter.UUIDs)
	}
	if filter.RunID != nil {
		db = db.Where("run_id = ?", *filter.RunID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.RecipientNumber != nil {
		db = db.Where("recipient_number = ?", *filter.RecipientNumber)
	}
	if filter.SentAfter != nil {
		db = db.Where("sent_at >= ?", *filter.SentAfter)
	}
	if filter.SentBefore != nil {
		db = db.Where("sent_at <= ?", *filter.SentBefore)
	}

	return db
}
