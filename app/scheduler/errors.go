package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Control-operation errors. None of them changes message state.
var (
	ErrAlreadyRunning  = errors.New("campaign run is already running")
	ErrEmptyCampaign   = errors.New("campaign has no messages")
	ErrRunNotStarted   = errors.New("campaign run has not been started")
	ErrRunFinished     = errors.New("campaign run has already finished")
	ErrRetryExhausted  = errors.New("retry budget exhausted")
	ErrMessageNotFound = errors.New("message not found in run")
	ErrMessageNotSent  = errors.New("message has not been sent")
	ErrEngineExists    = errors.New("engine already registered for run")
)

// RetryExhaustedError names the explicitly requested messages that have no retry budget left
type RetryExhaustedError struct {
	MessageIDs []uuid.UUID
}

func (e *RetryExhaustedError) Error() string {
	ids := make([]string, 0, len(e.MessageIDs))
	for _, id := range e.MessageIDs {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("%s: %s", ErrRetryExhausted.Error(), strings.Join(ids, ", "))
}

func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// SendError is a per-message failure. It is recorded on the message and never returned to callers.
type SendError struct {
	Reason    string
	Simulated bool
}

func (e *SendError) Error() string {
	return e.Reason
}
