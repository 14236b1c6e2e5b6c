package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/campaign-sender/app/dto"
	"github.com/amirphl/campaign-sender/app/scheduler"
	"github.com/amirphl/campaign-sender/models"
	"github.com/amirphl/campaign-sender/repository"
	"github.com/amirphl/campaign-sender/utils"
	"github.com/aniladanir/retry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	interruptedSendReason = "interrupted: process exited before the send outcome was known"
)

// CampaignRunFlow handles the lifecycle of campaign runs
type CampaignRunFlow interface {
	CreateRun(ctx context.Context, req *dto.CreateCampaignRunRequest) (*dto.CreateCampaignRunResponse, error)
	GetRun(ctx context.Context, runUUID string) (*dto.CampaignRunResponse, error)
	StartRun(ctx context.Context, runUUID string) (*dto.RunControlResponse, error)
	PauseRun(ctx context.Context, runUUID string) (*dto.RunControlResponse, error)
	ResumeRun(ctx context.Context, runUUID string) (*dto.RunControlResponse, error)
	StopRun(ctx context.Context, runUUID string) (*dto.RunControlResponse, error)
	RetryFailed(ctx context.Context, req *dto.RetryFailedRequest) (*dto.RetryFailedResponse, error)
	MarkReceipt(ctx context.Context, req *dto.MarkReceiptRequest) (*dto.MarkReceiptResponse, error)
	GetStats(ctx context.Context, runUUID string) (*dto.RunStatsResponse, error)
	ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error)
	GetReport(ctx context.Context, runUUID string) (*dto.CampaignReportResponse, error)
	ExportReport(ctx context.Context, runUUID string) (string, []byte, error)
	CreateFollowUpRun(ctx context.Context, req *dto.CreateFollowUpRunRequest) (*dto.CreateCampaignRunResponse, error)
	RecoverInterruptedRuns(ctx context.Context) (int, error)
}

// RunFlowSettings tunes the engines created by the flow
type RunFlowSettings struct {
	MaxRecipients        int
	RecheckInterval      time.Duration
	PersistRetryAttempts int
}

// CampaignRunFlowImpl implements the campaign run business logic
type CampaignRunFlowImpl struct {
	runRepo    repository.CampaignRunRepository
	msgRepo    repository.SendingMessageRepository
	reportRepo repository.CampaignReportRepository
	registry   *scheduler.Registry
	cache      *RunCache
	sender     scheduler.MessageSender
	classifier ErrorClassifier
	pricing    PricingModel
	settings   RunFlowSettings
	retrier    *retry.Retrier
	logger     *slog.Logger

	// runCtx bounds the lifetime of every engine started by the flow
	runCtx     context.Context
	engineOpts []scheduler.EngineOption
	inTx       func(ctx context.Context, fn func(context.Context) error) error
	now        func() time.Time
}

// NewCampaignRunFlow creates a new campaign run flow. Engines started by the flow run
// until runCtx is cancelled or they finish. engineOpts are applied to every engine.
func NewCampaignRunFlow(
	runCtx context.Context,
	db *gorm.DB,
	runRepo repository.CampaignRunRepository,
	msgRepo repository.SendingMessageRepository,
	reportRepo repository.CampaignReportRepository,
	registry *scheduler.Registry,
	cache *RunCache,
	sender scheduler.MessageSender,
	pricing PricingModel,
	settings RunFlowSettings,
	logger *slog.Logger,
	engineOpts ...scheduler.EngineOption,
) (*CampaignRunFlowImpl, error) {
	if settings.PersistRetryAttempts < 1 {
		settings.PersistRetryAttempts = 1
	}
	retrier, err := retry.New(retry.WithMaxAttemps(settings.PersistRetryAttempts))
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence retrier: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CampaignRunFlowImpl{
		runRepo:    runRepo,
		msgRepo:    msgRepo,
		reportRepo: reportRepo,
		registry:   registry,
		cache:      cache,
		sender:     sender,
		classifier: KeywordErrorClassifier{},
		pricing:    pricing,
		settings:   settings,
		retrier:    retrier,
		logger:     logger.With(slog.String("component", "campaign_run_flow")),
		runCtx:     runCtx,
		engineOpts: engineOpts,
		inTx: func(ctx context.Context, fn func(context.Context) error) error {
			return repository.WithTransaction(ctx, db, fn)
		},
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateRun validates the request, persists the run with its messages and loads its engine
func (f *CampaignRunFlowImpl) CreateRun(ctx context.Context, req *dto.CreateCampaignRunRequest) (*dto.CreateCampaignRunResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewBusinessError("CAMPAIGN_NAME_REQUIRED", "Campaign name is required", ErrCampaignNameRequired)
	}
	recipients, err := f.recipients(req.Recipients)
	if err != nil {
		return nil, err
	}
	valid, err := f.validConfig(req.Config, models.DefaultSendingConfig())
	if err != nil {
		return nil, err
	}

	run := &models.CampaignRun{Name: name, Status: models.RunStatusIdle, Config: valid.Config()}
	msgs := models.NewSendingMessages(recipients)
	if err := f.persistRun(ctx, run, msgs); err != nil {
		return nil, err
	}

	resp, err := f.loadAndMaybeStart(ctx, run, msgs, req.AutoStart)
	if err != nil {
		return nil, err
	}
	resp.Message = "Campaign run created successfully"
	return resp, nil
}

// GetRun returns the persisted view of a run
func (f *CampaignRunFlowImpl) GetRun(ctx context.Context, runUUID string) (*dto.CampaignRunResponse, error) {
	run, err := f.runByUUID(ctx, runUUID)
	if err != nil {
		return nil, err
	}

	total, err := f.msgRepo.Count(ctx, models.SendingMessageFilter{RunID: &run.ID})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_RUN_LOOKUP_FAILED", "Failed to count campaign run messages", err)
	}

	var parentUUID *string
	if run.ParentRunID != nil {
		parent, err := f.runRepo.ByID(ctx, *run.ParentRunID)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_RUN_LOOKUP_FAILED", "Failed to load parent campaign run", err)
		}
		if parent != nil {
			id := parent.UUID.String()
			parentUUID = &id
		}
	}

	resp := f.runResponse(run, int(total))
	resp.ParentRunUUID = parentUUID
	return &resp, nil
}

// StartRun starts an idle run
func (f *CampaignRunFlowImpl) StartRun(ctx context.Context, runUUID string) (*dto.RunControlResponse, error) {
	engine, err := f.engine(ctx, runUUID, "start")
	if err != nil {
		return nil, err
	}
	if err := engine.Start(f.runCtx); err != nil {
		return nil, controlError("start", err)
	}
	return controlResponse("Campaign run started", engine), nil
}

// PauseRun pauses a running run
func (f *CampaignRunFlowImpl) PauseRun(ctx context.Context, runUUID string) (*dto.RunControlResponse, error) {
	engine, err := f.engine(ctx, runUUID, "pause")
	if err != nil {
		return nil, err
	}
	if err := engine.Pause(); err != nil {
		return nil, controlError("pause", err)
	}
	return controlResponse("Campaign run paused", engine), nil
}

// ResumeRun resumes a paused run
func (f *CampaignRunFlowImpl) ResumeRun(ctx context.Context, runUUID string) (*dto.RunControlResponse, error) {
	engine, err := f.engine(ctx, runUUID, "resume")
	if err != nil {
		return nil, err
	}
	if err := engine.Resume(); err != nil {
		return nil, controlError("resume", err)
	}
	return controlResponse("Campaign run resumed", engine), nil
}

// StopRun ends a run. Stopping a finished run is a no-op.
func (f *CampaignRunFlowImpl) StopRun(ctx context.Context, runUUID string) (*dto.RunControlResponse, error) {
	run, err := f.runByUUID(ctx, runUUID)
	if err != nil {
		return nil, err
	}
	engine, loaded := f.registry.Get(run.UUID)
	if !loaded && run.Status.IsTerminal() {
		return &dto.RunControlResponse{
			Message: "Campaign run already finished",
			UUID:    run.UUID.String(),
			Status:  run.Status.String(),
		}, nil
	}
	if !loaded {
		if engine, err = f.engineForRun(ctx, run, "stop"); err != nil {
			return nil, err
		}
	}
	if err := engine.Stop(); err != nil {
		return nil, controlError("stop", err)
	}
	return controlResponse("Campaign run stop requested", engine), nil
}

// RetryFailed re-queues failed messages of an active run
func (f *CampaignRunFlowImpl) RetryFailed(ctx context.Context, req *dto.RetryFailedRequest) (*dto.RetryFailedResponse, error) {
	ids, err := parseMessageIDs(req.MessageIDs)
	if err != nil {
		return nil, err
	}
	engine, err := f.engine(ctx, req.RunUUID, "retry")
	if err != nil {
		return nil, err
	}

	result, err := engine.RetryFailed(ids...)
	if err != nil {
		return nil, controlError("retry", err)
	}

	return &dto.RetryFailedResponse{
		Message: fmt.Sprintf("%d failed messages re-queued", len(result.Retried)),
		Retried: uuidStrings(result.Retried),
		Skipped: uuidStrings(result.Skipped),
	}, nil
}

// MarkReceipt records a delivery or read receipt. Receipts for runs that are no longer
// loaded are written straight to storage.
func (f *CampaignRunFlowImpl) MarkReceipt(ctx context.Context, req *dto.MarkReceiptRequest) (*dto.MarkReceiptResponse, error) {
	msgID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_NOT_FOUND", "Message not found in campaign run", ErrMessageNotFound)
	}
	run, err := f.runByUUID(ctx, req.RunUUID)
	if err != nil {
		return nil, err
	}
	at := f.now()
	if req.At != nil {
		at = req.At.UTC()
	}
	read := req.Type == "read"

	if engine, ok := f.registry.Get(run.UUID); ok {
		if read {
			err = engine.MarkRead(msgID, at)
		} else {
			err = engine.MarkDelivered(msgID, at)
		}
		if err != nil {
			return nil, controlError("receipt", err)
		}
	} else if err := f.markStoredReceipt(ctx, run, msgID, at, read); err != nil {
		return nil, err
	}

	return &dto.MarkReceiptResponse{
		Message:   "Receipt recorded",
		MessageID: msgID.String(),
		Type:      req.Type,
	}, nil
}

func (f *CampaignRunFlowImpl) markStoredReceipt(ctx context.Context, run *models.CampaignRun, msgID uuid.UUID, at time.Time, read bool) error {
	msg, err := f.msgRepo.ByUUID(ctx, msgID)
	if err != nil {
		return NewBusinessError("RECEIPT_FAILED", "Failed to load message", err)
	}
	if msg == nil || msg.RunID != run.ID {
		return NewBusinessError("MESSAGE_NOT_FOUND", "Message not found in campaign run", ErrMessageNotFound)
	}
	if msg.Status != models.SendingMessageStatusSent {
		return NewBusinessError("MESSAGE_NOT_SENT", "Message has not been sent", ErrMessageNotSent)
	}
	if msg.DeliveredAt == nil {
		msg.DeliveredAt = &at
	}
	if read && msg.ReadAt == nil {
		readAt := at
		msg.ReadAt = &readAt
	}
	if err := f.msgRepo.UpdateState(ctx, *msg); err != nil {
		return NewBusinessError("RECEIPT_FAILED", "Failed to record receipt", err)
	}
	return nil
}

// GetStats returns the live snapshot of a loaded run, or the last known one otherwise
func (f *CampaignRunFlowImpl) GetStats(ctx context.Context, runUUID string) (*dto.RunStatsResponse, error) {
	run, err := f.runByUUID(ctx, runUUID)
	if err != nil {
		return nil, err
	}
	resp := &dto.RunStatsResponse{UUID: run.UUID.String()}

	if engine, ok := f.registry.Get(run.UUID); ok {
		resp.Live = true
		resp.Stats = engine.Stats()
		return resp, nil
	}

	cached, err := f.cache.Stats(ctx, run.UUID)
	if err != nil && !IsCacheNotAvailable(err) {
		f.requestLogger(ctx).Warn("failed to read cached run stats", "run_id", run.UUID.String(), "error", err.Error())
	}
	if cached != nil {
		resp.Stats = *cached
		return resp, nil
	}

	msgs, err := f.msgRepo.AllByRun(ctx, run.ID)
	if err != nil {
		return nil, NewBusinessError("GET_STATS_FAILED", "Failed to load campaign run messages", err)
	}
	ref := f.now()
	if run.FinishedAt != nil {
		ref = *run.FinishedAt
	}
	stats := scheduler.ComputeStats(msgs, run.Config, run.StartedAt, ref, false)
	stats.RunStatus = run.Status
	stats.StartedAt = run.StartedAt
	stats.FinishedAt = run.FinishedAt
	resp.Stats = stats
	return resp, nil
}

// ListMessages returns a page of a run's messages in processing order
func (f *CampaignRunFlowImpl) ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error) {
	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	run, err := f.runByUUID(ctx, req.RunUUID)
	if err != nil {
		return nil, err
	}

	var status *models.SendingMessageStatus
	if req.Status != nil && *req.Status != "" {
		s := models.SendingMessageStatus(*req.Status)
		status = &s
	}

	total, err := f.msgRepo.Count(ctx, models.SendingMessageFilter{RunID: &run.ID, Status: status})
	if err != nil {
		return nil, NewBusinessError("LIST_MESSAGES_FAILED", "Failed to count messages", err)
	}
	rows, err := f.msgRepo.ListByRun(ctx, run.ID, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_MESSAGES_FAILED", "Failed to list messages", err)
	}

	msgs := make([]models.SendingMessage, 0, len(rows))
	for _, m := range rows {
		msgs = append(msgs, *m)
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &dto.ListMessagesResponse{
		Messages: msgs,
		Pagination: dto.PaginationInfo{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

// GetReport returns the report of a finished run, building it on first access
func (f *CampaignRunFlowImpl) GetReport(ctx context.Context, runUUID string) (*dto.CampaignReportResponse, error) {
	run, err := f.runByUUID(ctx, runUUID)
	if err != nil {
		return nil, err
	}
	report, err := f.report(ctx, run)
	if err != nil {
		return nil, err
	}
	return &dto.CampaignReportResponse{Report: report}, nil
}

// ExportReport renders the report of a finished run as an XLSX workbook
func (f *CampaignRunFlowImpl) ExportReport(ctx context.Context, runUUID string) (string, []byte, error) {
	run, err := f.runByUUID(ctx, runUUID)
	if err != nil {
		return "", nil, err
	}
	report, err := f.report(ctx, run)
	if err != nil {
		return "", nil, err
	}

	data, err := renderReportWorkbook(report)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_REPORT_FAILED", "Failed to render report workbook", err)
	}
	filename := fmt.Sprintf("campaign_report_%s.xlsx", run.UUID.String())
	return filename, data, nil
}

// CreateFollowUpRun creates a new run over the retryable failures of a finished run
func (f *CampaignRunFlowImpl) CreateFollowUpRun(ctx context.Context, req *dto.CreateFollowUpRunRequest) (*dto.CreateCampaignRunResponse, error) {
	ids, err := parseMessageIDs(req.MessageIDs)
	if err != nil {
		return nil, err
	}
	parent, err := f.runByUUID(ctx, req.ParentRunUUID)
	if err != nil {
		return nil, err
	}
	report, err := f.report(ctx, parent)
	if err != nil {
		return nil, err
	}

	entries, err := selectRetryable(report.FailedMessages, ids)
	if err != nil {
		return nil, err
	}
	valid, err := f.validConfig(req.Config, parent.Config)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = parent.Name + " (follow-up)"
	}
	run := &models.CampaignRun{
		Name:        name,
		Status:      models.RunStatusIdle,
		Config:      valid.Config(),
		ParentRunID: &parent.ID,
	}

	// The follow-up send is itself a retry of each message.
	msgs := make([]models.SendingMessage, 0, len(entries))
	for i, e := range entries {
		msgs = append(msgs, models.SendingMessage{
			UUID:            uuid.New(),
			Position:        i,
			RecipientName:   e.RecipientName,
			RecipientNumber: e.RecipientNumber,
			Content:         e.Content,
			Status:          models.SendingMessageStatusPending,
			RetryCount:      e.RetryCount + 1,
		})
	}
	if err := f.persistRun(ctx, run, msgs); err != nil {
		return nil, err
	}

	resp, err := f.loadAndMaybeStart(ctx, run, msgs, req.AutoStart)
	if err != nil {
		return nil, err
	}
	parentUUID := parent.UUID.String()
	resp.Run.ParentRunUUID = &parentUUID
	resp.Message = fmt.Sprintf("Follow-up campaign run created with %d messages", len(msgs))
	return resp, nil
}

// RecoverInterruptedRuns marks runs left running or paused by a previous process as
// stopped and stores their report. Messages caught mid-send are failed since their
// outcome is unknown; a follow-up run can retry them.
func (f *CampaignRunFlowImpl) RecoverInterruptedRuns(ctx context.Context) (int, error) {
	runs, err := f.runRepo.ListByStatus(ctx, []models.RunStatus{models.RunStatusRunning, models.RunStatusPaused})
	if err != nil {
		return 0, NewBusinessError("RECOVER_RUNS_FAILED", "Failed to list interrupted campaign runs", err)
	}

	recovered := 0
	for _, run := range runs {
		if _, loaded := f.registry.Get(run.UUID); loaded {
			continue
		}
		msgs, err := f.msgRepo.AllByRun(ctx, run.ID)
		if err != nil {
			return recovered, NewBusinessError("RECOVER_RUNS_FAILED", "Failed to load interrupted campaign run messages", err)
		}

		finishedAt := f.now()
		for i := range msgs {
			if msgs[i].Status != models.SendingMessageStatusSending {
				continue
			}
			reason := interruptedSendReason
			msgs[i].Status = models.SendingMessageStatusFailed
			msgs[i].FailureReason = &reason
			if msgs[i].LastAttemptAt == nil {
				msgs[i].LastAttemptAt = &finishedAt
			}
			if err := f.msgRepo.UpdateState(ctx, msgs[i]); err != nil {
				return recovered, NewBusinessError("RECOVER_RUNS_FAILED", "Failed to fail interrupted message", err)
			}
		}

		if err := f.runRepo.UpdateStatus(ctx, run.ID, models.RunStatusStopped, run.StartedAt, &finishedAt); err != nil {
			return recovered, NewBusinessError("RECOVER_RUNS_FAILED", "Failed to stop interrupted campaign run", err)
		}
		f.logger.Warn("interrupted campaign run marked as stopped", "run_id", run.UUID.String(), "previous_status", run.Status)
		recovered++

		run.Status = models.RunStatusStopped
		run.FinishedAt = &finishedAt
		if _, err := f.storeReport(ctx, run, f.buildReport(run, msgs)); err != nil {
			f.logger.Error("failed to store report of interrupted campaign run", "run_id", run.UUID.String(), "error", err.Error())
		}
	}
	return recovered, nil
}

func (f *CampaignRunFlowImpl) recipients(in []dto.RecipientRequest) ([]models.Recipient, error) {
	if len(in) == 0 {
		return nil, NewBusinessError("RECIPIENTS_REQUIRED", "At least one recipient is required", ErrRecipientsRequired)
	}
	if f.settings.MaxRecipients > 0 && len(in) > f.settings.MaxRecipients {
		return nil, NewBusinessErrorf("TOO_MANY_RECIPIENTS", "A campaign run accepts at most %d recipients", ErrTooManyRecipients, f.settings.MaxRecipients)
	}

	out := make([]models.Recipient, 0, len(in))
	for i, r := range in {
		phone := strings.TrimSpace(r.PhoneNumber)
		if phone == "" || strings.TrimSpace(r.Content) == "" {
			return nil, NewBusinessErrorf("RECIPIENT_INVALID", "Recipient %d needs a phone number and content", ErrRecipientInvalid, i+1)
		}
		out = append(out, models.Recipient{
			Name:        strings.TrimSpace(r.Name),
			PhoneNumber: phone,
			Content:     r.Content,
		})
	}
	return out, nil
}

func (f *CampaignRunFlowImpl) validConfig(requested *models.SendingConfig, fallback models.SendingConfig) (models.ValidSendingConfig, error) {
	cfg := fallback
	if requested != nil {
		cfg = *requested
	}
	valid, err := models.ValidateSendingConfig(cfg)
	if err != nil {
		return models.ValidSendingConfig{}, NewBusinessError("CONFIG_VALIDATION_FAILED", "Sending config is invalid", err)
	}
	return valid, nil
}

func (f *CampaignRunFlowImpl) persistRun(ctx context.Context, run *models.CampaignRun, msgs []models.SendingMessage) error {
	err := f.inTx(ctx, func(txCtx context.Context) error {
		if err := f.runRepo.Save(txCtx, run); err != nil {
			return err
		}
		batch := make([]*models.SendingMessage, 0, len(msgs))
		for i := range msgs {
			msgs[i].RunID = run.ID
			batch = append(batch, &msgs[i])
		}
		return f.msgRepo.SaveBatch(txCtx, batch)
	})
	if err != nil {
		return NewBusinessError("CREATE_RUN_FAILED", "Failed to create campaign run", err)
	}
	return nil
}

func (f *CampaignRunFlowImpl) loadAndMaybeStart(ctx context.Context, run *models.CampaignRun, msgs []models.SendingMessage, autoStart bool) (*dto.CreateCampaignRunResponse, error) {
	engine, err := f.loadEngine(run, msgs)
	if err != nil {
		return nil, err
	}
	if autoStart {
		if err := engine.Start(f.runCtx); err != nil {
			return nil, controlError("start", err)
		}
	}

	f.requestLogger(ctx).Info("campaign run created", "run_id", run.UUID.String(), "messages", len(msgs), "auto_start", autoStart)
	resp := f.runResponse(run, len(msgs))
	resp.Status = engine.Status().String()
	return &dto.CreateCampaignRunResponse{Run: resp}, nil
}

// loadEngine builds the engine of a run, wires persistence and registers it
func (f *CampaignRunFlowImpl) loadEngine(run *models.CampaignRun, msgs []models.SendingMessage) (*scheduler.RunEngine, error) {
	valid, err := models.ValidateSendingConfig(run.Config)
	if err != nil {
		return nil, NewBusinessError("CONFIG_VALIDATION_FAILED", "Stored sending config is invalid", err)
	}

	observer := newPersistenceObserver(run, f.runRepo, f.msgRepo, f.cache, f.retrier, f.logger)
	opts := []scheduler.EngineOption{
		scheduler.WithRunID(run.UUID),
		scheduler.WithObserver(observer),
		scheduler.WithSender(f.sender),
		scheduler.WithLogger(f.logger),
		scheduler.WithRecheckInterval(f.settings.RecheckInterval),
	}
	engine, err := scheduler.NewRunEngineFromMessages(valid, msgs, append(opts, f.engineOpts...)...)
	if err != nil {
		return nil, NewBusinessError("LOAD_RUN_FAILED", "Failed to load campaign run", err)
	}

	owner := *run
	observer.setOnFinish(func(stats models.SendingStats) {
		f.finalizeRun(&owner, engine, stats)
	})

	if err := f.registry.Register(engine); err != nil {
		if existing, ok := f.registry.Get(run.UUID); ok {
			return existing, nil
		}
		return nil, NewBusinessError("LOAD_RUN_FAILED", "Failed to register campaign run", err)
	}
	return engine, nil
}

// finalizeRun builds and stores the report once the engine reaches a terminal status
func (f *CampaignRunFlowImpl) finalizeRun(run *models.CampaignRun, engine *scheduler.RunEngine, stats models.SendingStats) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	run.Status = stats.RunStatus
	run.StartedAt, run.FinishedAt = engine.Timing()
	data := f.buildReport(run, engine.Messages())
	if _, err := f.storeReport(ctx, run, data); err != nil {
		f.logger.Error("failed to store campaign report", "run_id", run.UUID.String(), "error", err.Error())
		return
	}
	f.logger.Info("campaign report built",
		"run_id", run.UUID.String(),
		"status", data.Status,
		"success_rate", data.Rates.SuccessRate)
}

func (f *CampaignRunFlowImpl) report(ctx context.Context, run *models.CampaignRun) (models.CampaignReportData, error) {
	cached, err := f.cache.Report(ctx, run.UUID)
	if err != nil && !IsCacheNotAvailable(err) {
		f.requestLogger(ctx).Warn("failed to read cached report", "run_id", run.UUID.String(), "error", err.Error())
	}
	if cached != nil {
		return *cached, nil
	}

	stored, err := f.reportRepo.ByRunID(ctx, run.ID)
	if err != nil {
		return models.CampaignReportData{}, NewBusinessError("GET_REPORT_FAILED", "Failed to load campaign report", err)
	}
	if stored != nil {
		f.cacheReport(ctx, run, stored.Data)
		return stored.Data, nil
	}

	var msgs []models.SendingMessage
	engine, loaded := f.registry.Get(run.UUID)
	if loaded {
		if !engine.Status().IsTerminal() {
			return models.CampaignReportData{}, NewBusinessError("RUN_NOT_FINISHED", "Campaign run has not finished yet", ErrRunNotFinished)
		}
		snapshot := *run
		snapshot.Status = engine.Status()
		snapshot.StartedAt, snapshot.FinishedAt = engine.Timing()
		run = &snapshot
		msgs = engine.Messages()
	} else {
		if !run.Status.IsTerminal() {
			return models.CampaignReportData{}, NewBusinessError("RUN_NOT_FINISHED", "Campaign run has not finished yet", ErrRunNotFinished)
		}
		if msgs, err = f.msgRepo.AllByRun(ctx, run.ID); err != nil {
			return models.CampaignReportData{}, NewBusinessError("GET_REPORT_FAILED", "Failed to load campaign run messages", err)
		}
	}

	data, err := f.storeReport(ctx, run, f.buildReport(run, msgs))
	if err != nil {
		return models.CampaignReportData{}, NewBusinessError("GET_REPORT_FAILED", "Failed to store campaign report", err)
	}
	return data, nil
}

func (f *CampaignRunFlowImpl) buildReport(run *models.CampaignRun, msgs []models.SendingMessage) models.CampaignReportData {
	timing := ReportTiming{
		StartedAt:  run.CreatedAt,
		FinishedAt: f.now(),
		Stopped:    run.Status == models.RunStatusStopped,
	}
	if run.StartedAt != nil {
		timing.StartedAt = *run.StartedAt
	}
	if run.FinishedAt != nil {
		timing.FinishedAt = *run.FinishedAt
	}

	return BuildCampaignReport(ReportInput{
		RunUUID:      run.UUID,
		CampaignName: run.Name,
		Messages:     msgs,
		Config:       run.Config,
		Timing:       timing,
		Classifier:   f.classifier,
		Pricing:      f.pricing,
	})
}

// storeReport persists a report unless one exists already and returns the stored one
func (f *CampaignRunFlowImpl) storeReport(ctx context.Context, run *models.CampaignRun, data models.CampaignReportData) (models.CampaignReportData, error) {
	existing, err := f.reportRepo.ByRunID(ctx, run.ID)
	if err != nil {
		return models.CampaignReportData{}, err
	}
	if existing != nil {
		f.cacheReport(ctx, run, existing.Data)
		return existing.Data, nil
	}

	report := models.NewCampaignReport(run.ID, data)
	if err := f.reportRepo.Save(ctx, &report); err != nil {
		// Lost a race with a concurrent builder; the stored report wins.
		if existing, lookupErr := f.reportRepo.ByRunID(ctx, run.ID); lookupErr == nil && existing != nil {
			f.cacheReport(ctx, run, existing.Data)
			return existing.Data, nil
		}
		return models.CampaignReportData{}, err
	}
	f.cacheReport(ctx, run, data)
	return data, nil
}

func (f *CampaignRunFlowImpl) cacheReport(ctx context.Context, run *models.CampaignRun, data models.CampaignReportData) {
	if err := f.cache.SetReport(ctx, run.UUID, data); err != nil {
		f.logger.Warn("failed to cache campaign report", "run_id", run.UUID.String(), "error", err.Error())
	}
}

// requestLogger tags log lines with the request id carried by ctx
func (f *CampaignRunFlowImpl) requestLogger(ctx context.Context) *slog.Logger {
	if id := utils.RequestID(ctx); id != "" {
		return f.logger.With(slog.String("request_id", id))
	}
	return f.logger
}

func (f *CampaignRunFlowImpl) runByUUID(ctx context.Context, id string) (*models.CampaignRun, error) {
	runUUID, err := uuid.Parse(id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_RUN_NOT_FOUND", "Campaign run not found", ErrCampaignRunNotFound)
	}
	run, err := f.runRepo.ByUUID(ctx, runUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_RUN_LOOKUP_FAILED", "Failed to load campaign run", err)
	}
	if run == nil {
		return nil, NewBusinessError("CAMPAIGN_RUN_NOT_FOUND", "Campaign run not found", ErrCampaignRunNotFound)
	}
	return run, nil
}

func (f *CampaignRunFlowImpl) engine(ctx context.Context, runUUID, op string) (*scheduler.RunEngine, error) {
	run, err := f.runByUUID(ctx, runUUID)
	if err != nil {
		return nil, err
	}
	return f.engineForRun(ctx, run, op)
}

// engineForRun returns the loaded engine of a run. Idle runs are rebuilt from storage;
// active runs of another process cannot be controlled from here.
func (f *CampaignRunFlowImpl) engineForRun(ctx context.Context, run *models.CampaignRun, op string) (*scheduler.RunEngine, error) {
	if engine, ok := f.registry.Get(run.UUID); ok {
		return engine, nil
	}
	switch {
	case run.Status.IsTerminal():
		return nil, controlError(op, ErrRunFinished)
	case run.Status != models.RunStatusIdle:
		return nil, NewBusinessError("RUN_NOT_LOADED", "Campaign run is not loaded in this process", ErrRunNotLoaded)
	}

	msgs, err := f.msgRepo.AllByRun(ctx, run.ID)
	if err != nil {
		return nil, NewBusinessError("LOAD_RUN_FAILED", "Failed to load campaign run messages", err)
	}
	return f.loadEngine(run, msgs)
}

func (f *CampaignRunFlowImpl) runResponse(run *models.CampaignRun, total int) dto.CampaignRunResponse {
	resp := dto.CampaignRunResponse{
		UUID:          run.UUID.String(),
		Name:          run.Name,
		Status:        run.Status.String(),
		Config:        run.Config,
		TotalMessages: total,
		CreatedAt:     run.CreatedAt,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
	if engine, ok := f.registry.Get(run.UUID); ok {
		resp.Loaded = true
		resp.Status = engine.Status().String()
		resp.StartedAt, resp.FinishedAt = engine.Timing()
	}
	return resp
}

func controlResponse(message string, engine *scheduler.RunEngine) *dto.RunControlResponse {
	return &dto.RunControlResponse{
		Message: message,
		UUID:    engine.RunID().String(),
		Status:  engine.Status().String(),
	}
}

// selectRetryable picks the retryable failures of a report. With explicit ids every id must
// name a failed message with retry budget left.
func selectRetryable(failed []models.FailedMessageEntry, ids []uuid.UUID) ([]models.FailedMessageEntry, error) {
	if len(ids) == 0 {
		var out []models.FailedMessageEntry
		for _, e := range failed {
			if e.CanRetry {
				out = append(out, e)
			}
		}
		if len(out) == 0 {
			return nil, NewBusinessError("NO_RETRYABLE_MESSAGES", "Report has no retryable messages", ErrNoRetryableMessages)
		}
		return out, nil
	}

	byID := make(map[uuid.UUID]models.FailedMessageEntry, len(failed))
	for _, e := range failed {
		byID[e.MessageID] = e
	}
	out := make([]models.FailedMessageEntry, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		e, ok := byID[id]
		if !ok || !e.CanRetry {
			return nil, NewBusinessErrorf("MESSAGE_NOT_RETRYABLE", "Message %s is not a retryable failure of the run", ErrMessageNotRetryable, id)
		}
		out = append(out, e)
	}
	return out, nil
}

func parseMessageIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, NewBusinessErrorf("MESSAGE_NOT_FOUND", "Invalid message id %q", errors.Join(ErrMessageNotFound, err), s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
