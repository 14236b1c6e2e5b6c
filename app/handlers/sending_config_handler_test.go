package handlers

import (
	"net/http"
	"testing"

	businessflow "github.com/amirphl/campaign-sender/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
)

func newConfigTestApp() *fiber.App {
	h := NewSendingConfigHandler(businessflow.NewSendingConfigFlow(), nil)
	app := fiber.New()
	app.Get("/api/v1/sending-config/defaults", h.GetDefaults)
	app.Post("/api/v1/sending-config/validate", h.Validate)
	return app
}

func TestSendingConfigHandler(t *testing.T) {
	app := newConfigTestApp()

	resp, envelope := doRequest(t, app, http.MethodGet, "/api/v1/sending-config/defaults", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	valid := `{
		"message_interval": {"enabled": true, "mode": "fixed", "fixed_seconds": 10, "random_min": 5, "random_max": 15},
		"batch_pause": {"enabled": false, "messages_per_batch": 50, "pause_duration_minutes": 5},
		"do_not_disturb": {"enabled": false, "start_time": "22:00", "end_time": "08:00", "timezone": "UTC"},
		"daily_cap": {"enabled": false, "max_messages_per_day": 1000, "reset_at_midnight": true},
		"error_simulation": {"enabled": false, "error_rate_percent": 5, "retry_attempts": 3, "retry_delay_minutes": 5},
		"auto_rescheduling": {"enabled": false, "failed_message_retry_delay_minutes": 30, "max_retry_attempts": 3, "reschedule_window": "next_window"}
	}`
	resp, envelope = doRequest(t, app, http.MethodPost, "/api/v1/sending-config/validate", valid)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	resp, envelope = doRequest(t, app, http.MethodPost, "/api/v1/sending-config/validate", `{"message_interval": {"mode": "sometimes"}}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, envelope.Success)
	assert.Equal(t, "CONFIG_VALIDATION_FAILED", errorCode(envelope))

	resp, envelope = doRequest(t, app, http.MethodPost, "/api/v1/sending-config/validate", `not json`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", errorCode(envelope))
}
