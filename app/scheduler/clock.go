package scheduler

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/amirphl/campaign-sender/models"
)

// Clock is the time source of a run engine
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RandSource yields values in [0, 1). Used for interval jitter and simulated failures.
type RandSource interface {
	Float64() float64
}

// MessageSender is the send primitive. A returned error fails the message with err.Error() as reason.
type MessageSender interface {
	Send(ctx context.Context, msg models.SendingMessage) error
}

// RunObserver is notified after every message transition and every run-level change.
// Calls arrive in transition order, one at a time, without the engine lock held.
type RunObserver interface {
	MessageChanged(msg models.SendingMessage)
	RunChanged(stats models.SendingStats)
}

type systemClock struct{}

// SystemClock returns the wall clock in UTC
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type globalRand struct{}

// DefaultRandSource returns the goroutine-safe process-wide generator
func DefaultRandSource() RandSource {
	return globalRand{}
}

func (globalRand) Float64() float64 {
	return rand.Float64()
}
