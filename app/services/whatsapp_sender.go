// Package services provides the transports used by campaign runs
package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/amirphl/campaign-sender/models"
)

// SimulatedWhatsAppSender stands in for a WhatsApp provider. Each send waits Latency and
// then succeeds with probability SuccessRate.
type SimulatedWhatsAppSender struct {
	successRate float64
	latency     time.Duration
	float64Fn   func() float64
	logger      *slog.Logger

	accepted atomic.Int64
	rejected atomic.Int64
}

// NewSimulatedWhatsAppSender creates a simulated sender. successRate is clamped to [0, 1].
func NewSimulatedWhatsAppSender(successRate float64, latency time.Duration, logger *slog.Logger) *SimulatedWhatsAppSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedWhatsAppSender{
		successRate: min(max(successRate, 0), 1),
		latency:     latency,
		float64Fn:   rand.Float64,
		logger:      logger.With(slog.String("component", "whatsapp_sender")),
	}
}

// Send delivers one message to the simulated provider
func (s *SimulatedWhatsAppSender) Send(ctx context.Context, msg models.SendingMessage) error {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("network timeout: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if s.float64Fn() >= s.successRate {
		s.rejected.Add(1)
		s.logger.Debug("simulated provider rejected message", "message_id", msg.UUID.String())
		return fmt.Errorf("api error: provider rejected message to %s", msg.RecipientNumber)
	}

	s.accepted.Add(1)
	return nil
}

// Counts returns how many sends the simulated provider accepted and rejected
func (s *SimulatedWhatsAppSender) Counts() (accepted, rejected int64) {
	return s.accepted.Load(), s.rejected.Load()
}
