package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StopAll(t *testing.T) {
	registry := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	idle, _ := newTestEngine(t, quietConfig(), recipients("+989120000001"))
	sender := &blockingSender{inFlight: make(chan struct{}, 1), release: make(chan struct{})}
	running, _ := newTestEngine(t, quietConfig(), recipients("+989120000002", "+989120000003"), WithSender(sender))
	require.NoError(t, registry.Register(idle))
	require.NoError(t, registry.Register(running))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, running.Start(ctx))
	<-sender.inFlight

	stopped := make(chan error, 1)
	go func() { stopped <- registry.StopAll(ctx) }()
	require.Eventually(t, func() bool {
		_, ok := registry.Get(idle.RunID())
		return !ok
	}, time.Second, time.Millisecond)
	close(sender.release)
	require.NoError(t, <-stopped)

	assert.Equal(t, models.RunStatusIdle, idle.Status(), "idle runs are unloaded, not stopped")
	assert.Equal(t, models.RunStatusStopped, running.Status())
	_, loaded := registry.Get(running.RunID())
	assert.True(t, loaded)

	require.NoError(t, idle.Start(ctx), "an unloaded idle run can still start")
	require.NoError(t, idle.Wait(ctx))
	assert.Equal(t, models.RunStatusCompleted, idle.Status())
}

func TestRegistry_Sweep(t *testing.T) {
	reg := NewRegistry(nil)
	e, clock := newTestEngine(t, quietConfig(), fiveRecipients())

	require.NoError(t, reg.Register(e))
	assert.ErrorIs(t, reg.Register(e), ErrEngineExists)

	got, ok := reg.Get(e.RunID())
	require.True(t, ok)
	assert.Same(t, e, got)
	assert.Equal(t, 1, reg.Len())

	assert.Zero(t, reg.Sweep(clock.Now().Add(time.Hour), time.Minute), "unfinished engines are kept")

	require.NoError(t, e.Stop())
	assert.Zero(t, reg.Sweep(clock.Now(), time.Minute))
	assert.Equal(t, 1, reg.Sweep(clock.Now().Add(time.Minute), time.Minute))
	assert.Zero(t, reg.Len())

	reg.Remove(uuid.New())
}
