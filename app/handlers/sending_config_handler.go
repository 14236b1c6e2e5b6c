package handlers

import (
	"log/slog"

	"github.com/amirphl/campaign-sender/app/dto"
	businessflow "github.com/amirphl/campaign-sender/business_flow"
	"github.com/amirphl/campaign-sender/models"
	"github.com/gofiber/fiber/v3"
)

// SendingConfigHandlerInterface defines the contract for sending config handlers
type SendingConfigHandlerInterface interface {
	GetDefaults(c fiber.Ctx) error
	Validate(c fiber.Ctx) error
}

// SendingConfigHandler serves sending config defaults and validation
type SendingConfigHandler struct {
	configFlow businessflow.SendingConfigFlow
	logger     *slog.Logger
}

func (h *SendingConfigHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SendingConfigHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewSendingConfigHandler creates a new sending config handler
func NewSendingConfigHandler(configFlow businessflow.SendingConfigFlow, logger *slog.Logger) *SendingConfigHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendingConfigHandler{
		configFlow: configFlow,
		logger:     logger.With(slog.String("component", "sending_config_handler")),
	}
}

// GetDefaults returns the default sending config
// @Summary Get Default Sending Config
// @Tags Sending Config
// @Produce json
// @Success 200 {object} dto.APIResponse{data=models.SendingConfig} "Default sending config"
// @Router /api/v1/sending-config/defaults [get]
func (h *SendingConfigHandler) GetDefaults(c fiber.Ctx) error {
	return h.SuccessResponse(c, fiber.StatusOK, "Default sending config retrieved successfully", h.configFlow.Defaults())
}

// Validate checks a sending config without creating a run
// @Summary Validate Sending Config
// @Description Validate a sending config and list every violation
// @Tags Sending Config
// @Accept json
// @Produce json
// @Param request body models.SendingConfig true "Sending config"
// @Success 200 {object} dto.APIResponse{data=dto.ValidateSendingConfigResponse} "Config is valid"
// @Failure 400 {object} dto.APIResponse "Invalid request body"
// @Failure 422 {object} dto.APIResponse{data=dto.ValidateSendingConfigResponse} "Config has violations"
// @Router /api/v1/sending-config/validate [post]
func (h *SendingConfigHandler) Validate(c fiber.Ctx) error {
	var cfg models.SendingConfig
	if err := c.Bind().JSON(&cfg); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	result, err := h.configFlow.Validate(cfg)
	if err != nil {
		h.logger.Error("sending config validation failed", "error", err.Error())
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to validate sending config", "CONFIG_VALIDATION_FAILED", nil)
	}
	if !result.Valid {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.APIResponse{
			Success: false,
			Message: "Sending config is invalid",
			Data:    result,
			Error: dto.ErrorDetail{
				Code:    "CONFIG_VALIDATION_FAILED",
				Details: result.Violations,
			},
		})
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sending config is valid", result)
}
