package businessflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/amirphl/campaign-sender/repository"
	"github.com/aniladanir/retry"
	"github.com/google/uuid"
)

const persistTimeout = 10 * time.Second

// persistenceObserver mirrors engine transitions into the database and the stats cache.
// It runs on the engine goroutine, so every write finishes before the engine moves on.
type persistenceObserver struct {
	runID   uint
	runUUID uuid.UUID

	runRepo repository.CampaignRunRepository
	msgRepo repository.SendingMessageRepository
	cache   *RunCache
	retrier *retry.Retrier
	logger  *slog.Logger

	mu         sync.Mutex
	lastStatus models.RunStatus
	onFinish   func(models.SendingStats)
}

func newPersistenceObserver(
	run *models.CampaignRun,
	runRepo repository.CampaignRunRepository,
	msgRepo repository.SendingMessageRepository,
	cache *RunCache,
	retrier *retry.Retrier,
	logger *slog.Logger,
) *persistenceObserver {
	return &persistenceObserver{
		runID:      run.ID,
		runUUID:    run.UUID,
		runRepo:    runRepo,
		msgRepo:    msgRepo,
		cache:      cache,
		retrier:    retrier,
		logger:     logger.With(slog.String("component", "run_persistence"), slog.String("run_id", run.UUID.String())),
		lastStatus: run.Status,
	}
}

// MessageChanged writes the message state, retrying transient failures
func (o *persistenceObserver) MessageChanged(msg models.SendingMessage) {
	msgLogger := o.logger.With(slog.String("message_id", msg.UUID.String()))
	o.persist(msgLogger, func(ctx context.Context) error {
		return o.msgRepo.UpdateState(ctx, msg)
	})
}

// RunChanged caches the snapshot and writes run status changes. Nothing moves a run out of
// a terminal status.
func (o *persistenceObserver) RunChanged(stats models.SendingStats) {
	o.mu.Lock()
	if o.lastStatus.IsTerminal() {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	if err := o.cache.SetStats(ctx, o.runUUID, stats); err != nil {
		o.logger.Warn("failed to cache run stats", "error", err.Error())
	}
	cancel()

	o.mu.Lock()
	changed := stats.RunStatus != o.lastStatus
	o.lastStatus = stats.RunStatus
	onFinish := o.onFinish
	o.mu.Unlock()
	if !changed {
		return
	}

	o.persist(o.logger, func(ctx context.Context) error {
		return o.runRepo.UpdateStatus(ctx, o.runID, stats.RunStatus, stats.StartedAt, stats.FinishedAt)
	})
	if stats.RunStatus.IsTerminal() && onFinish != nil {
		onFinish(stats)
	}
}

// setOnFinish registers the callback invoked once the run reaches a terminal status
func (o *persistenceObserver) setOnFinish(fn func(models.SendingStats)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onFinish = fn
}

func (o *persistenceObserver) persist(logger *slog.Logger, write func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	retryFunc := func(attempt int) (terminate bool) {
		if err := write(ctx); err != nil {
			logger.Warn("failed to persist run state", "attempt", attempt, "error", err.Error())
			return false
		}
		return true
	}

	if ok := <-o.retrier.Retry(ctx, retryFunc, true); !ok {
		logger.Error("giving up persisting run state")
	}
}
