package businessflow

import (
	"errors"

	"github.com/amirphl/campaign-sender/app/dto"
	"github.com/amirphl/campaign-sender/models"
)

// SendingConfigFlow exposes the sending config defaults and validation rules
type SendingConfigFlow interface {
	Defaults() models.SendingConfig
	Validate(cfg models.SendingConfig) (*dto.ValidateSendingConfigResponse, error)
}

// SendingConfigFlowImpl implements SendingConfigFlow
type SendingConfigFlowImpl struct{}

func NewSendingConfigFlow() *SendingConfigFlowImpl {
	return &SendingConfigFlowImpl{}
}

// Defaults returns the config applied to runs created without one
func (f *SendingConfigFlowImpl) Defaults() models.SendingConfig {
	return models.DefaultSendingConfig()
}

// Validate checks a config and lists every violation. An invalid config is not an error.
func (f *SendingConfigFlowImpl) Validate(cfg models.SendingConfig) (*dto.ValidateSendingConfigResponse, error) {
	valid, err := models.ValidateSendingConfig(cfg)
	if err == nil {
		return &dto.ValidateSendingConfigResponse{Valid: true, Config: valid.Config()}, nil
	}

	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		return nil, NewBusinessError("CONFIG_VALIDATION_FAILED", "Failed to validate sending config", err)
	}
	return &dto.ValidateSendingConfigResponse{
		Valid:      false,
		Violations: cfgErr.Violations,
		Config:     cfg,
	}, nil
}

// ConfigViolations returns the violations carried by a config validation error
func ConfigViolations(err error) []models.ConfigViolation {
	var cfgErr *models.ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Violations
	}
	return nil
}
