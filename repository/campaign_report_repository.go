package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-sender/models"
	"gorm.io/gorm"
)

// CampaignReportRepositoryImpl implements the CampaignReportRepository interface
type CampaignReportRepositoryImpl struct {
	*BaseRepository[models.CampaignReport, models.CampaignReportFilter]
}

// NewCampaignReportRepository creates a new campaign report repository
func NewCampaignReportRepository(db *gorm.DB) CampaignReportRepository {
	return &CampaignReportRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignReport, models.CampaignReportFilter](db),
	}
}

// ByRunID retrieves the report of a run
func (r *CampaignReportRepositoryImpl) ByRunID(ctx context.Context, runID uint) (*models.CampaignReport, error) {
	reports, err := r.ByFilter(ctx, models.CampaignReportFilter{RunID: &runID}, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign report by run ID: %w", err)
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return reports[0], nil
}

// ByFilter retrieves campaign reports based on filter criteria
func (r *CampaignReportRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignReportFilter, orderBy string, limit, offset int) ([]*models.CampaignReport, error) {
	db := r.getDB(ctx)

	var reports []*models.CampaignReport
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

	err := query.Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign reports by filter: %w", err)
	}

	return reports, nil
}

// Count returns the number of campaign reports matching the filter
func (r *CampaignReportRepositoryImpl) Count(ctx context.Context, filter models.CampaignReportFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.CampaignReport{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count campaign reports: %w", err)
	}

	return count, nil
}

// Exists checks if any campaign report matching the filter exists
func (r *CampaignReportRepositoryImpl) Exists(ctx context.Context, filter models.CampaignReportFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignReportRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignReportFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.RunID != nil {
		db = db.Where("run_id = ?", *filter.RunID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}

	return db
}
