package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignRunRepositoryImpl implements the CampaignRunRepository interface
type CampaignRunRepositoryImpl struct {
	*BaseRepository[models.CampaignRun, models.CampaignRunFilter]
}

// NewCampaignRunRepository creates a new campaign run repository
func NewCampaignRunRepository(db *gorm.DB) CampaignRunRepository {
	return &CampaignRunRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignRun, models.CampaignRunFilter](db),
	}
}

// ByUUID retrieves a campaign run by UUID
func (r *CampaignRunRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.CampaignRun, error) {
	runs, err := r.ByFilter(ctx, models.CampaignRunFilter{UUID: &id}, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign run by UUID: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListByStatus retrieves runs in any of the given statuses, oldest first
func (r *CampaignRunRepositoryImpl) ListByStatus(ctx context.Context, statuses []models.RunStatus) ([]*models.CampaignRun, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var runs []*models.CampaignRun
	err := r.getDB(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign runs by status: %w", err)
	}
	return runs, nil
}

// UpdateStatus updates the lifecycle columns of a run. Nil timestamps are left unchanged.
func (r *CampaignRunRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.RunStatus, startedAt, finishedAt *time.Time) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finishWrite(db, shouldCommit, err) }()

	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if startedAt != nil {
		updates["started_at"] = *startedAt
	}
	if finishedAt != nil {
		updates["finished_at"] = *finishedAt
	}

	err = db.Model(&models.CampaignRun{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign run status: %w", err)
	}

	return nil
}

// ByFilter retrieves campaign runs based on filter criteria
func (r *CampaignRunRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignRunFilter, orderBy string, limit, offset int) ([]*models.CampaignRun, error) {
	db := r.getDB(ctx)

	var runs []*models.CampaignRun
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

	err := query.Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign runs by filter: %w", err)
	}

	return runs, nil
}

// Count returns the number of campaign runs matching the filter
func (r *CampaignRunRepositoryImpl) Count(ctx context.Context, filter models.CampaignRunFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.CampaignRun{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count campaign runs: %w", err)
	}

	return count, nil
}

// Exists checks if any campaign run matching the filter exists
func (r *CampaignRunRepositoryImpl) Exists(ctx context.Context, filter models.CampaignRunFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignRunRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignRunFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.ParentRunID != nil {
		db = db.Where("parent_run_id = ?", *filter.ParentRunID)
	}
	if filter.Name != nil {
		db = db.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}

	return db
}
