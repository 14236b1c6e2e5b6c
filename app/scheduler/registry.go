package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
)

// Registry tracks the live engines of a process by run UUID
type Registry struct {
	mu      sync.RWMutex
	engines map[uuid.UUID]*RunEngine
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		engines: make(map[uuid.UUID]*RunEngine),
		logger:  logger.With(slog.String("component", "run_registry")),
	}
}

// Register adds an engine under its run id
func (r *Registry) Register(e *RunEngine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[e.RunID()]; ok {
		return ErrEngineExists
	}
	r.engines[e.RunID()] = e
	return nil
}

// Get returns the engine of a run, if loaded
func (r *Registry) Get(runID uuid.UUID) (*RunEngine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[runID]
	return e, ok
}

// Remove drops an engine from the registry
func (r *Registry) Remove(runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, runID)
}

// Len returns the number of registered engines
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// StopAll stops every running or paused engine and waits for their loops to exit or ctx
// to end. Idle engines are unloaded without stopping so their runs stay startable.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	engines := make([]*RunEngine, 0, len(r.engines))
	unloaded := 0
	for id, e := range r.engines {
		if e.Status() == models.RunStatusIdle {
			delete(r.engines, id)
			unloaded++
			continue
		}
		engines = append(engines, e)
	}
	r.mu.Unlock()
	if unloaded > 0 {
		r.logger.Info("idle run engines unloaded", "count", unloaded)
	}

	var errs []error
	for _, e := range engines {
		if !e.Status().IsActive() {
			continue
		}
		if err := e.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range engines {
		if err := e.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
	}
	return errors.Join(errs...)
}

// Sweep drops engines that finished more than retention ago and returns how many were removed
func (r *Registry) Sweep(now time.Time, retention time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.engines {
		_, finishedAt := e.Timing()
		if finishedAt != nil && now.Sub(*finishedAt) >= retention {
			delete(r.engines, id)
			removed++
		}
	}
	return removed
}

// StartJanitor periodically sweeps finished engines in a background goroutine and returns a stop function
func (r *Registry) StartJanitor(parent context.Context, interval, retention time.Duration) func() {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := r.Sweep(now.UTC(), retention); n > 0 {
					r.logger.Info("finished run engines evicted", "count", n)
				}
			}
		}
	}()

	return cancel
}
