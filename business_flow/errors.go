// Package businessflow contains the use cases of campaign runs: creation, control, reporting and export
package businessflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/campaign-sender/app/scheduler"
	"github.com/amirphl/campaign-sender/models"
)

// Business flow error constants
var (
	// Campaign run errors
	ErrCampaignRunNotFound  = errors.New("campaign run not found")
	ErrCampaignNameRequired = errors.New("campaign name is required")
	ErrRecipientsRequired   = errors.New("at least one recipient is required")
	ErrTooManyRecipients    = errors.New("too many recipients")
	ErrRecipientInvalid     = errors.New("recipient phone number and content are required")
	ErrRunNotFinished       = errors.New("campaign run has not finished yet")
	ErrRunNotLoaded         = errors.New("campaign run is not loaded in this process")

	// Engine control errors
	ErrInvalidSendingConfig = models.ErrInvalidSendingConfig
	ErrRunAlreadyRunning    = scheduler.ErrAlreadyRunning
	ErrEmptyCampaign        = scheduler.ErrEmptyCampaign
	ErrRunNotStarted        = scheduler.ErrRunNotStarted
	ErrRunFinished          = scheduler.ErrRunFinished
	ErrRetryExhausted       = scheduler.ErrRetryExhausted
	ErrMessageNotFound      = scheduler.ErrMessageNotFound
	ErrMessageNotSent       = scheduler.ErrMessageNotSent

	// Report errors
	ErrReportNotFound      = errors.New("campaign report not found")
	ErrNoRetryableMessages = errors.New("report has no retryable messages")
	ErrMessageNotRetryable = errors.New("message is not a retryable failure of the run")

	// Cache errors
	ErrCacheNotAvailable = errors.New("cache not available")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// controlError maps an engine control failure onto a business error
func controlError(op string, err error) *BusinessError {
	switch {
	case errors.Is(err, ErrRunAlreadyRunning):
		return NewBusinessError("RUN_ALREADY_RUNNING", "Campaign run is already running", err)
	case errors.Is(err, ErrEmptyCampaign):
		return NewBusinessError("EMPTY_CAMPAIGN", "Campaign run has no messages", err)
	case errors.Is(err, ErrRunNotStarted):
		return NewBusinessError("RUN_NOT_STARTED", "Campaign run has not been started", err)
	case errors.Is(err, ErrRunFinished):
		return NewBusinessError("RUN_FINISHED", "Campaign run has already finished", err)
	case errors.Is(err, ErrRetryExhausted):
		return NewBusinessError("RETRY_EXHAUSTED", "Retry budget exhausted for requested messages", err)
	case errors.Is(err, ErrMessageNotFound):
		return NewBusinessError("MESSAGE_NOT_FOUND", "Message not found in campaign run", err)
	case errors.Is(err, ErrMessageNotSent):
		return NewBusinessError("MESSAGE_NOT_SENT", "Message has not been sent", err)
	default:
		return NewBusinessErrorf("RUN_"+strings.ToUpper(op)+"_FAILED", "Failed to %s campaign run", err, op)
	}
}

func IsCampaignRunNotFound(err error) bool {
	return errors.Is(err, ErrCampaignRunNotFound)
}

func IsCampaignNameRequired(err error) bool {
	return errors.Is(err, ErrCampaignNameRequired)
}

func IsRecipientsRequired(err error) bool {
	return errors.Is(err, ErrRecipientsRequired)
}

func IsTooManyRecipients(err error) bool {
	return errors.Is(err, ErrTooManyRecipients)
}

func IsRecipientInvalid(err error) bool {
	return errors.Is(err, ErrRecipientInvalid)
}

func IsRunNotFinished(err error) bool {
	return errors.Is(err, ErrRunNotFinished)
}

func IsRunNotLoaded(err error) bool {
	return errors.Is(err, ErrRunNotLoaded)
}

func IsInvalidSendingConfig(err error) bool {
	return errors.Is(err, ErrInvalidSendingConfig)
}

func IsRunAlreadyRunning(err error) bool {
	return errors.Is(err, ErrRunAlreadyRunning)
}

func IsEmptyCampaign(err error) bool {
	return errors.Is(err, ErrEmptyCampaign)
}

func IsRunNotStarted(err error) bool {
	return errors.Is(err, ErrRunNotStarted)
}

func IsRunFinished(err error) bool {
	return errors.Is(err, ErrRunFinished)
}

func IsRetryExhausted(err error) bool {
	return errors.Is(err, ErrRetryExhausted)
}

func IsMessageNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

func IsMessageNotSent(err error) bool {
	return errors.Is(err, ErrMessageNotSent)
}

func IsReportNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound)
}

func IsNoRetryableMessages(err error) bool {
	return errors.Is(err, ErrNoRetryableMessages)
}

func IsMessageNotRetryable(err error) bool {
	return errors.Is(err, ErrMessageNotRetryable)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
