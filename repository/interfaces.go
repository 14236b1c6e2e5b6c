package repository

import (
	"context"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRunRepository defines operations for campaign runs
type CampaignRunRepository interface {
	Repository[models.CampaignRun, models.CampaignRunFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.CampaignRun, error)
	ListByStatus(ctx context.Context, statuses []models.RunStatus) ([]*models.CampaignRun, error)
	UpdateStatus(ctx context.Context, id uint, status models.RunStatus, startedAt, finishedAt *time.Time) error
}

// SendingMessageRepository defines operations for the messages of a run
type SendingMessageRepository interface {
	Repository[models.SendingMessage, models.SendingMessageFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.SendingMessage, error)
	ListByRun(ctx context.Context, runID uint, status *models.SendingMessageStatus, limit, offset int) ([]*models.SendingMessage, error)
	AllByRun(ctx context.Context, runID uint) ([]models.SendingMessage, error)
	UpdateState(ctx context.Context, msg models.SendingMessage) error
	CountByStatus(ctx context.Context, runID uint) (map[models.SendingMessageStatus]int64, error)
}

// CampaignReportRepository defines operations for built reports
type CampaignReportRepository interface {
	Repository[models.CampaignReport, models.CampaignReportFilter]
	ByRunID(ctx context.Context, runID uint) (*models.CampaignReport, error)
}
