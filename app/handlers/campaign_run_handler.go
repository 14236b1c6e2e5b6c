package handlers

import (
	"context"
	"log/slog"

	"github.com/amirphl/campaign-sender/app/dto"
	businessflow "github.com/amirphl/campaign-sender/business_flow"
	"github.com/amirphl/campaign-sender/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CampaignRunHandlerInterface defines the contract for campaign run handlers
type CampaignRunHandlerInterface interface {
	CreateRun(c fiber.Ctx) error
	GetRun(c fiber.Ctx) error
	StartRun(c fiber.Ctx) error
	PauseRun(c fiber.Ctx) error
	ResumeRun(c fiber.Ctx) error
	StopRun(c fiber.Ctx) error
	RetryFailed(c fiber.Ctx) error
	MarkReceipt(c fiber.Ctx) error
	GetStats(c fiber.Ctx) error
	ListMessages(c fiber.Ctx) error
	GetReport(c fiber.Ctx) error
	ExportReport(c fiber.Ctx) error
	CreateFollowUpRun(c fiber.Ctx) error
}

// CampaignRunHandler handles campaign run HTTP requests
type CampaignRunHandler struct {
	runFlow   businessflow.CampaignRunFlow
	validator *validator.Validate
	logger    *slog.Logger
}

func (h *CampaignRunHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignRunHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewCampaignRunHandler creates a new campaign run handler
func NewCampaignRunHandler(runFlow businessflow.CampaignRunFlow, logger *slog.Logger) *CampaignRunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignRunHandler{
		runFlow:   runFlow,
		validator: validator.New(),
		logger:    logger.With(slog.String("component", "campaign_run_handler")),
	}
}

// CreateRun handles campaign run creation
// @Summary Create Campaign Run
// @Description Create a campaign run from a recipient list and a sending config. The default config is used when none is given.
// @Tags Campaign Runs
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRunRequest true "Campaign run data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignRunResponse} "Campaign run created"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid sending config"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaign-runs [post]
func (h *CampaignRunHandler) CreateRun(c fiber.Ctx) error {
	var req dto.CreateCampaignRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs", utils.RequestTimeout)
	defer cancel()

	result, err := h.runFlow.CreateRun(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Campaign run creation failed", "CREATE_RUN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result.Run)
}

// GetRun returns a campaign run
// @Summary Get Campaign Run
// @Tags Campaign Runs
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignRunResponse} "Campaign run"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Router /api/v1/campaign-runs/{uuid} [get]
func (h *CampaignRunHandler) GetRun(c fiber.Ctx) error {
	runUUID := c.Params("uuid")
	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+runUUID, utils.RequestTimeout)
	defer cancel()

	result, err := h.runFlow.GetRun(ctx, runUUID)
	if err != nil {
		return h.flowError(c, err, "Failed to get campaign run", "GET_RUN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign run retrieved successfully", result)
}

// StartRun starts an idle campaign run
// @Summary Start Campaign Run
// @Tags Campaign Runs
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RunControlResponse} "Campaign run started"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Failure 409 {object} dto.APIResponse "Campaign run already running or finished"
// @Router /api/v1/campaign-runs/{uuid}/start [post]
func (h *CampaignRunHandler) StartRun(c fiber.Ctx) error {
	return h.control(c, "start", h.runFlow.StartRun)
}

// PauseRun pauses a running campaign run
// @Summary Pause Campaign Run
// @Tags Campaign Runs
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RunControlResponse} "Campaign run paused"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Failure 409 {object} dto.APIResponse "Campaign run not started or finished"
// @Router /api/v1/campaign-runs/{uuid}/pause [post]
func (h *CampaignRunHandler) PauseRun(c fiber.Ctx) error {
	return h.control(c, "pause", h.runFlow.PauseRun)
}

// ResumeRun resumes a paused campaign run
// @Summary Resume Campaign Run
// @Tags Campaign Runs
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RunControlResponse} "Campaign run resumed"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Failure 409 {object} dto.APIResponse "Campaign run not started or finished"
// @Router /api/v1/campaign-runs/{uuid}/resume [post]
func (h *CampaignRunHandler) ResumeRun(c fiber.Ctx) error {
	return h.control(c, "resume", h.runFlow.ResumeRun)
}

// StopRun stops a campaign run
// @Summary Stop Campaign Run
// @Description Stop a run at its next checkpoint. Stopping a finished run is a no-op.
// @Tags Campaign Runs
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RunControlResponse} "Stop requested"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Router /api/v1/campaign-runs/{uuid}/stop [post]
func (h *CampaignRunHandler) StopRun(c fiber.Ctx) error {
	return h.control(c, "stop", h.runFlow.StopRun)
}

// RetryFailed re-queues failed messages of an active run
// @Summary Retry Failed Messages
// @Description Re-queue failed messages. Without message ids every message with retry budget left is retried.
// @Tags Campaign Runs
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Param request body dto.RetryFailedRequest false "Messages to retry"
// @Success 200 {object} dto.APIResponse{data=dto.RetryFailedResponse} "Messages re-queued"
// @Failure 404 {object} dto.APIResponse "Campaign run or message not found"
// @Failure 409 {object} dto.APIResponse "Campaign run finished or retry budget exhausted"
// @Router /api/v1/campaign-runs/{uuid}/retry-failed [post]
func (h *CampaignRunHandler) RetryFailed(c fiber.Ctx) error {
	var req dto.RetryFailedRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.RunUUID = c.Params("uuid")
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+req.RunUUID+"/retry-failed", utils.RequestTimeout)
	defer cancel()

	result, err := h.runFlow.RetryFailed(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to retry messages", "RETRY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// MarkReceipt records a delivery or read receipt
// @Summary Record Message Receipt
// @Tags Campaign Runs
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Param message_id path string true "Message UUID"
// @Param request body dto.MarkReceiptRequest true "Receipt"
// @Success 200 {object} dto.APIResponse{data=dto.MarkReceiptResponse} "Receipt recorded"
// @Failure 404 {object} dto.APIResponse "Campaign run or message not found"
// @Failure 409 {object} dto.APIResponse "Message has not been sent"
// @Router /api/v1/campaign-runs/{uuid}/messages/{message_id}/receipt [post]
func (h *CampaignRunHandler) MarkReceipt(c fiber.Ctx) error {
	var req dto.MarkReceiptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.RunUUID = c.Params("uuid")
	req.MessageID = c.Params("message_id")
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+req.RunUUID+"/messages/receipt", utils.RequestTimeout)
	defer cancel()

	result, err := h.runFlow.MarkReceipt(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to record receipt", "RECEIPT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetStats returns the statistics snapshot of a run
// @Summary Get Campaign Run Statistics
// @Tags Campaign Runs
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RunStatsResponse} "Statistics snapshot"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Router /api/v1/campaign-runs/{uuid}/stats [get]
func (h *CampaignRunHandler) GetStats(c fiber.Ctx) error {
	runUUID := c.Params("uuid")
	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+runUUID+"/stats", utils.RequestTimeout)
	defer cancel()

	result, err := h.runFlow.GetStats(ctx, runUUID)
	if err != nil {
		return h.flowError(c, err, "Failed to get campaign run statistics", "GET_STATS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved successfully", result)
}

// ListMessages returns a page of a run's messages
// @Summary List Campaign Run Messages
// @Tags Campaign Runs
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Param status query string false "Message status filter"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListMessagesResponse} "Messages"
// @Failure 400 {object} dto.APIResponse "Invalid filter or pagination"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Router /api/v1/campaign-runs/{uuid}/messages [get]
func (h *CampaignRunHandler) ListMessages(c fiber.Ctx) error {
	req := dto.ListMessagesRequest{RunUUID: c.Params("uuid")}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	var err error
	if req.Page, err = queryInt(c, "page"); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Page must be a number", "INVALID_PAGE", nil)
	}
	if req.PageSize, err = queryInt(c, "page_size"); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Page size must be a number", "INVALID_PAGE_SIZE", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+req.RunUUID+"/messages", utils.RequestTimeout)
	defer cancel()

	result, err := h.runFlow.ListMessages(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to list messages", "LIST_MESSAGES_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Messages retrieved successfully", result)
}

// GetReport returns the report of a finished run
// @Summary Get Campaign Report
// @Tags Campaign Runs
// @Produce json
// @Param uuid path string true "Campaign run UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignReportResponse} "Campaign report"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Failure 409 {object} dto.APIResponse "Campaign run has not finished yet"
// @Router /api/v1/campaign-runs/{uuid}/report [get]
func (h *CampaignRunHandler) GetReport(c fiber.Ctx) error {
	runUUID := c.Params("uuid")
	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+runUUID+"/report", utils.RequestTimeout)
	defer cancel()

	result, err := h.runFlow.GetReport(ctx, runUUID)
	if err != nil {
		return h.flowError(c, err, "Failed to get campaign report", "GET_REPORT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign report retrieved successfully", result)
}

// ExportReport downloads the report of a finished run as an XLSX workbook
// @Summary Export Campaign Report
// @Tags Campaign Runs
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param uuid path string true "Campaign run UUID"
// @Success 200 {file} file "XLSX workbook"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Failure 409 {object} dto.APIResponse "Campaign run has not finished yet"
// @Router /api/v1/campaign-runs/{uuid}/report/export [get]
func (h *CampaignRunHandler) ExportReport(c fiber.Ctx) error {
	runUUID := c.Params("uuid")
	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+runUUID+"/report/export", utils.ExportTimeout)
	defer cancel()

	filename, data, err := h.runFlow.ExportReport(ctx, runUUID)
	if err != nil {
		return h.flowError(c, err, "Failed to export campaign report", "EXPORT_REPORT_FAILED")
	}
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, utils.XLSXContentType)
	return c.Status(fiber.StatusOK).Send(data)
}

// CreateFollowUpRun creates a run over the retryable failures of a finished run
// @Summary Create Follow-up Campaign Run
// @Description Create a new run from the retryable failed messages of a finished run's report.
// @Tags Campaign Runs
// @Accept json
// @Produce json
// @Param uuid path string true "Parent campaign run UUID"
// @Param request body dto.CreateFollowUpRunRequest false "Follow-up options"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignRunResponse} "Follow-up run created"
// @Failure 400 {object} dto.APIResponse "Invalid sending config or message selection"
// @Failure 404 {object} dto.APIResponse "Campaign run not found"
// @Failure 409 {object} dto.APIResponse "Campaign run has not finished yet"
// @Router /api/v1/campaign-runs/{uuid}/follow-up [post]
func (h *CampaignRunHandler) CreateFollowUpRun(c fiber.Ctx) error {
	var req dto.CreateFollowUpRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.ParentRunUUID = c.Params("uuid")
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+req.ParentRunUUID+"/follow-up", utils.RequestTimeout)
	defer cancel()

	result, err := h.runFlow.CreateFollowUpRun(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Follow-up campaign run creation failed", "CREATE_FOLLOW_UP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result.Run)
}

func (h *CampaignRunHandler) control(c fiber.Ctx, op string, fn func(ctx context.Context, runUUID string) (*dto.RunControlResponse, error)) error {
	runUUID := c.Params("uuid")
	ctx, cancel := createRequestContext(c, "/api/v1/campaign-runs/"+runUUID+"/"+op, utils.RequestTimeout)
	defer cancel()

	result, err := fn(ctx, runUUID)
	if err != nil {
		return h.flowError(c, err, "Failed to "+op+" campaign run", "RUN_CONTROL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// flowError maps business errors onto HTTP responses
func (h *CampaignRunHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsCampaignRunNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign run not found", "CAMPAIGN_RUN_NOT_FOUND", nil)
	case businessflow.IsMessageNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Message not found in campaign run", "MESSAGE_NOT_FOUND", nil)
	case businessflow.IsInvalidSendingConfig(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Sending config is invalid", "CONFIG_VALIDATION_FAILED", businessflow.ConfigViolations(err))
	case businessflow.IsCampaignNameRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign name is required", "CAMPAIGN_NAME_REQUIRED", nil)
	case businessflow.IsRecipientsRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one recipient is required", "RECIPIENTS_REQUIRED", nil)
	case businessflow.IsTooManyRecipients(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, businessMessage(err), "TOO_MANY_RECIPIENTS", nil)
	case businessflow.IsRecipientInvalid(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, businessMessage(err), "RECIPIENT_INVALID", nil)
	case businessflow.IsInvalidPage(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Page must be at least 1", "INVALID_PAGE", nil)
	case businessflow.IsInvalidPageSize(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Page size must be between 1 and 100", "INVALID_PAGE_SIZE", nil)
	case businessflow.IsMessageNotRetryable(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, businessMessage(err), "MESSAGE_NOT_RETRYABLE", nil)
	case businessflow.IsNoRetryableMessages(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Report has no retryable messages", "NO_RETRYABLE_MESSAGES", nil)
	case businessflow.IsRunAlreadyRunning(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign run is already running", "RUN_ALREADY_RUNNING", nil)
	case businessflow.IsRunNotStarted(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign run has not been started", "RUN_NOT_STARTED", nil)
	case businessflow.IsRunFinished(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign run has already finished", "RUN_FINISHED", nil)
	case businessflow.IsRunNotFinished(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign run has not finished yet", "RUN_NOT_FINISHED", nil)
	case businessflow.IsRunNotLoaded(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign run is not loaded in this process", "RUN_NOT_LOADED", nil)
	case businessflow.IsEmptyCampaign(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign run has no messages", "EMPTY_CAMPAIGN", nil)
	case businessflow.IsRetryExhausted(err):
		return h.ErrorResponse(c, fiber.StatusConflict, businessMessage(err), "RETRY_EXHAUSTED", nil)
	case businessflow.IsMessageNotSent(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Message has not been sent", "MESSAGE_NOT_SENT", nil)
	}

	h.logger.Error(fallbackMessage, "path", c.Path(), "error", err.Error())
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
