// Package scheduler drives campaign runs: one RunEngine per run sequences its messages
// through the send state machine under the run's pacing policy.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const defaultRecheckInterval = time.Second

var simulatedFailureReasons = []string{
	"network timeout while contacting provider",
	"api error: provider returned 500",
	"rate limit exceeded: too many requests",
	"invalid number: recipient is not registered on WhatsApp",
	"message rejected by provider",
}

// EngineOption customizes a RunEngine
type EngineOption func(*RunEngine)

// WithClock sets the time source
func WithClock(c Clock) EngineOption {
	return func(e *RunEngine) { e.clock = c }
}

// WithRandSource sets the source for interval jitter and simulated failures
func WithRandSource(r RandSource) EngineOption {
	return func(e *RunEngine) { e.rand = r }
}

// WithSender sets the send primitive. Without one every non-simulated send succeeds.
func WithSender(s MessageSender) EngineOption {
	return func(e *RunEngine) { e.sender = s }
}

// WithObserver registers a transition observer
func WithObserver(o RunObserver) EngineOption {
	return func(e *RunEngine) { e.observer = o }
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *RunEngine) { e.logger = l }
}

// WithRunID tags the engine with the persisted run UUID
func WithRunID(id uuid.UUID) EngineOption {
	return func(e *RunEngine) { e.runID = id }
}

// WithRecheckInterval bounds how long a suspended loop sleeps before re-evaluating
func WithRecheckInterval(d time.Duration) EngineOption {
	return func(e *RunEngine) {
		if d > 0 {
			e.recheck = d
		}
	}
}

// RetryResult lists what RetryFailed did
type RetryResult struct {
	Retried []uuid.UUID `json:"retried"`
	Skipped []uuid.UUID `json:"skipped"`
}

// RunEngine owns the messages of one campaign run. All mutation is serialized by mu;
// the drive loop is the only goroutine that sends.
type RunEngine struct {
	mu sync.Mutex

	runID    uuid.UUID
	cfg      models.SendingConfig
	quiet    quietWindow
	loc      *time.Location
	midnight cron.Schedule

	messages  []models.SendingMessage
	index     map[uuid.UUID]int
	queue     []int
	scheduled []int

	status          models.RunStatus
	stopRequested   bool
	startedAt       *time.Time
	finishedAt      *time.Time
	processed       int
	nextSendAt      time.Time
	batchPauseUntil time.Time
	dailySent       int
	dayResetAt      time.Time
	suspension      models.SuspensionReason
	suspendedUntil  *time.Time

	clock    Clock
	rand     RandSource
	sender   MessageSender
	observer RunObserver
	logger   *slog.Logger
	recheck  time.Duration

	wake    chan struct{}
	done    chan struct{}
	subs    map[int]chan models.SendingStats
	nextSub int

	// Observer calls are queued under mu in transition order and delivered by one
	// goroutine at a time, never with mu held.
	notifyMu   sync.Mutex
	notifyIdle *sync.Cond
	pending    []notification
	draining   bool
}

type notification struct {
	msgs  []models.SendingMessage
	stats *models.SendingStats
}

// NewRunEngine builds an idle engine for the recipients in input order
func NewRunEngine(cfg models.ValidSendingConfig, recipients []models.Recipient, opts ...EngineOption) (*RunEngine, error) {
	return NewRunEngineFromMessages(cfg, models.NewSendingMessages(recipients), opts...)
}

// NewRunEngineFromMessages builds an idle engine over already created messages.
// Messages are processed by Position; retry counts are kept.
func NewRunEngineFromMessages(cfg models.ValidSendingConfig, msgs []models.SendingMessage, opts ...EngineOption) (*RunEngine, error) {
	e := &RunEngine{
		cfg:     cfg.Config(),
		status:  models.RunStatusIdle,
		clock:   SystemClock(),
		rand:    DefaultRandSource(),
		logger:  slog.Default(),
		recheck: defaultRecheckInterval,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		subs:    make(map[int]chan models.SendingStats),
		index:   make(map[uuid.UUID]int, len(msgs)),
	}
	e.notifyIdle = sync.NewCond(&e.notifyMu)
	for _, opt := range opts {
		opt(e)
	}

	e.messages = make([]models.SendingMessage, 0, len(msgs))
	for _, m := range msgs {
		e.messages = append(e.messages, m.Clone())
	}
	slices.SortStableFunc(e.messages, func(a, b models.SendingMessage) int {
		return a.Position - b.Position
	})
	for i := range e.messages {
		if e.messages[i].UUID == uuid.Nil {
			e.messages[i].UUID = uuid.New()
		}
		if _, dup := e.index[e.messages[i].UUID]; dup {
			return nil, fmt.Errorf("duplicate message id %s", e.messages[i].UUID)
		}
		e.index[e.messages[i].UUID] = i
	}

	e.quiet = newQuietWindow(e.cfg.DoNotDisturb)
	e.loc = e.cfg.ScheduleLocation()
	sched, err := midnightSchedule(e.loc)
	if err != nil {
		e.logger.Warn("falling back to computed midnight", "timezone", e.loc.String(), "error", err)
	}
	e.midnight = sched
	e.logger = e.logger.With(slog.String("component", "run_engine"), slog.String("run_id", e.runID.String()))

	return e, nil
}

// RunID returns the run UUID the engine was tagged with
func (e *RunEngine) RunID() uuid.UUID {
	return e.runID
}

// Config returns a copy of the bound config
func (e *RunEngine) Config() models.SendingConfig {
	return e.cfg
}

// Start seeds every message as pending and launches the drive loop.
// The loop lives until ctx is cancelled, Stop is called or the run completes.
func (e *RunEngine) Start(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}
	go e.drive(ctx)
	return nil
}

func (e *RunEngine) begin() error {
	e.mu.Lock()
	switch {
	case e.status.IsActive():
		e.mu.Unlock()
		return ErrAlreadyRunning
	case e.status.IsTerminal():
		e.mu.Unlock()
		return ErrRunFinished
	case len(e.messages) == 0:
		e.mu.Unlock()
		return ErrEmptyCampaign
	}

	now := e.clock.Now()
	e.queue = e.queue[:0]
	for i := range e.messages {
		e.messages[i].Status = models.SendingMessageStatusPending
		e.queue = append(e.queue, i)
	}
	e.startedAt = &now
	e.status = models.RunStatusRunning
	e.dayResetAt = e.nextDailyReset(now)

	stats := e.snapshotLocked(now)
	e.publishLocked(stats)
	e.notifyLocked(nil, &stats)
	e.mu.Unlock()

	activeRuns.Inc()
	e.logger.Info("campaign run started", "messages", len(e.messages))
	e.flushNotifications()
	return nil
}

// Pause suspends sending before the next pick. Pausing a paused run is a no-op.
func (e *RunEngine) Pause() error {
	e.mu.Lock()
	switch {
	case e.status == models.RunStatusIdle:
		e.mu.Unlock()
		return ErrRunNotStarted
	case e.status.IsTerminal():
		e.mu.Unlock()
		return ErrRunFinished
	case e.status == models.RunStatusPaused:
		e.mu.Unlock()
		return nil
	}

	e.status = models.RunStatusPaused
	changed := e.setQueuedStatusLocked(models.SendingMessageStatusPending, models.SendingMessageStatusPaused)
	stats := e.snapshotLocked(e.clock.Now())
	e.publishLocked(stats)
	e.notifyLocked(changed, &stats)
	e.mu.Unlock()

	e.logger.Info("campaign run paused")
	e.flushNotifications()
	e.signal()
	return nil
}

// Resume continues a paused run from the same point. Resuming a running run is a no-op.
func (e *RunEngine) Resume() error {
	e.mu.Lock()
	switch {
	case e.status == models.RunStatusIdle:
		e.mu.Unlock()
		return ErrRunNotStarted
	case e.status.IsTerminal():
		e.mu.Unlock()
		return ErrRunFinished
	case e.status == models.RunStatusRunning:
		e.mu.Unlock()
		return nil
	}

	e.status = models.RunStatusRunning
	changed := e.setQueuedStatusLocked(models.SendingMessageStatusPaused, models.SendingMessageStatusPending)
	stats := e.snapshotLocked(e.clock.Now())
	e.publishLocked(stats)
	e.notifyLocked(changed, &stats)
	e.mu.Unlock()

	e.logger.Info("campaign run resumed")
	e.flushNotifications()
	e.signal()
	return nil
}

// Stop ends the run at the next checkpoint. An in-flight send is resolved first;
// pending and scheduled messages are left as they are. Stopping twice is a no-op.
func (e *RunEngine) Stop() error {
	e.mu.Lock()
	switch {
	case e.status.IsTerminal():
		e.mu.Unlock()
		return nil
	case e.status == models.RunStatusIdle:
		stats := e.finishLocked(models.RunStatusStopped, e.clock.Now())
		e.notifyLocked(nil, &stats)
		e.mu.Unlock()
		e.flushNotifications()
		close(e.done)
		return nil
	}

	e.stopRequested = true
	e.mu.Unlock()

	e.logger.Info("campaign run stop requested")
	e.signal()
	return nil
}

// RetryFailed re-queues failed messages at the tail of the queue. Without ids every
// message with retry budget left is retried. Explicit ids are all-or-nothing: any
// exhausted id yields a *RetryExhaustedError and nothing changes.
func (e *RunEngine) RetryFailed(ids ...uuid.UUID) (RetryResult, error) {
	e.mu.Lock()
	switch {
	case e.status == models.RunStatusIdle:
		e.mu.Unlock()
		return RetryResult{}, ErrRunNotStarted
	case e.status.IsTerminal():
		e.mu.Unlock()
		return RetryResult{}, ErrRunFinished
	}

	limit := e.cfg.RetryLimit()
	var result RetryResult
	var targets []int

	if len(ids) == 0 {
		for i := range e.messages {
			if e.messages[i].CanRetry(limit) {
				targets = append(targets, i)
			}
		}
	} else {
		var exhausted []uuid.UUID
		seen := make(map[int]bool, len(ids))
		for _, id := range ids {
			idx, ok := e.index[id]
			if !ok {
				e.mu.Unlock()
				return RetryResult{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
			}
			if seen[idx] {
				continue
			}
			seen[idx] = true
			msg := e.messages[idx]
			switch {
			case msg.Status != models.SendingMessageStatusFailed:
				result.Skipped = append(result.Skipped, id)
			case !msg.CanRetry(limit):
				exhausted = append(exhausted, id)
			default:
				targets = append(targets, idx)
			}
		}
		if len(exhausted) > 0 {
			e.mu.Unlock()
			return RetryResult{}, &RetryExhaustedError{MessageIDs: exhausted}
		}
	}

	changed := make([]models.SendingMessage, 0, len(targets))
	for _, idx := range targets {
		msg := &e.messages[idx]
		msg.RetryCount++
		e.requeueLocked(idx)
		result.Retried = append(result.Retried, msg.UUID)
		changed = append(changed, msg.Clone())
	}
	stats := e.snapshotLocked(e.clock.Now())
	e.publishLocked(stats)
	if len(targets) > 0 {
		e.notifyLocked(changed, &stats)
	}
	e.mu.Unlock()

	if len(targets) > 0 {
		messagesProcessedTotal.WithLabelValues("requeued").Add(float64(len(targets)))
		e.logger.Info("failed messages re-queued", "count", len(targets))
		e.flushNotifications()
		e.signal()
	}
	return result, nil
}

// MarkDelivered records a delivery receipt for a sent message
func (e *RunEngine) MarkDelivered(id uuid.UUID, at time.Time) error {
	return e.markReceipt(id, at, false)
}

// MarkRead records a read receipt for a sent message. A read message is also delivered.
func (e *RunEngine) MarkRead(id uuid.UUID, at time.Time) error {
	return e.markReceipt(id, at, true)
}

func (e *RunEngine) markReceipt(id uuid.UUID, at time.Time, read bool) error {
	e.mu.Lock()
	idx, ok := e.index[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	msg := &e.messages[idx]
	if msg.Status != models.SendingMessageStatusSent {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMessageNotSent, id)
	}
	at = at.UTC()
	if msg.DeliveredAt == nil {
		msg.DeliveredAt = &at
	}
	if read && msg.ReadAt == nil {
		readAt := at
		msg.ReadAt = &readAt
	}
	e.notifyLocked([]models.SendingMessage{msg.Clone()}, nil)
	e.mu.Unlock()

	e.flushNotifications()
	return nil
}

// Status returns the run status
func (e *RunEngine) Status() models.RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Stats returns a consistent statistics snapshot
func (e *RunEngine) Stats() models.SendingStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.clock.Now())
}

// Messages returns deep copies of all messages in processing order
func (e *RunEngine) Messages() []models.SendingMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.SendingMessage, 0, len(e.messages))
	for i := range e.messages {
		out = append(out, e.messages[i].Clone())
	}
	return out
}

// Timing returns the start and finish instants of the run
func (e *RunEngine) Timing() (startedAt, finishedAt *time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startedAt != nil {
		s := *e.startedAt
		startedAt = &s
	}
	if e.finishedAt != nil {
		f := *e.finishedAt
		finishedAt = &f
	}
	return startedAt, finishedAt
}

// Done is closed once the run reaches a terminal state and the observer has seen every transition
func (e *RunEngine) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the run finishes or ctx is done
func (e *RunEngine) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving a snapshot after every change, starting with the
// current one. Slow subscribers miss intermediate snapshots. The channel is closed when the
// run finishes or cancel is called.
func (e *RunEngine) Subscribe(buffer int) (<-chan models.SendingStats, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.SendingStats, buffer)

	e.mu.Lock()
	defer e.mu.Unlock()

	ch <- e.snapshotLocked(e.clock.Now())
	if e.status.IsTerminal() {
		close(ch)
		return ch, func() {}
	}

	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(sub)
			}
		})
	}
}

type stepKind int

const (
	stepWait stepKind = iota
	stepSent
	stepFinished
)

type step struct {
	kind      stepKind
	wait      time.Duration
	reason    models.SuspensionReason
	messageID uuid.UUID
}

func (e *RunEngine) drive(ctx context.Context) {
	defer close(e.done)
	defer e.awaitNotifications()
	for {
		st := e.tick(ctx)
		switch st.kind {
		case stepFinished:
			return
		case stepSent:
			continue
		}

		wait := st.wait
		if wait <= 0 || wait > e.recheck {
			wait = e.recheck
		}
		select {
		case <-ctx.Done():
			e.requestStop()
		case <-e.wake:
		case <-e.clock.After(wait):
		}
	}
}

// tick makes one scheduling decision and, when a message is due, sends it.
func (e *RunEngine) tick(ctx context.Context) step {
	e.mu.Lock()
	now := e.clock.Now()
	st, idx, changed, stats := e.decideLocked(now)
	if st.kind != stepSent {
		e.notifyLocked(changed, stats)
		e.mu.Unlock()
		e.flushNotifications()
		return st
	}

	msg := &e.messages[idx]
	e.transitionLocked(msg, models.SendingMessageStatusSending)
	outgoing := msg.Clone()
	changed = append(changed, outgoing)
	e.notifyLocked(changed, stats)
	e.mu.Unlock()
	e.flushNotifications()

	sendErr := e.deliver(ctx, outgoing)

	e.mu.Lock()
	resolved, resolvedStats := e.resolveLocked(idx, sendErr, e.clock.Now())
	e.notifyLocked(resolved, &resolvedStats)
	e.mu.Unlock()
	e.flushNotifications()

	st.messageID = outgoing.UUID
	return st
}

func (e *RunEngine) decideLocked(now time.Time) (step, int, []models.SendingMessage, *models.SendingStats) {
	if e.status.IsTerminal() || e.status == models.RunStatusIdle {
		return step{kind: stepFinished}, -1, nil, nil
	}
	if e.stopRequested {
		stats := e.finishLocked(models.RunStatusStopped, now)
		return step{kind: stepFinished}, -1, nil, &stats
	}

	changed := e.promoteDueLocked(now)
	e.rollDailyWindowLocked(now)

	if len(e.queue) == 0 && len(e.scheduled) == 0 {
		stats := e.finishLocked(models.RunStatusCompleted, now)
		return step{kind: stepFinished}, -1, changed, &stats
	}

	var until *time.Time
	reason := models.SuspensionNone
	switch {
	case e.status == models.RunStatusPaused:
		reason = models.SuspensionPaused
	case now.Before(e.batchPauseUntil):
		reason, until = models.SuspensionBatchPause, timePtr(e.batchPauseUntil)
	case e.cfg.DailyCap.Enabled && e.dailySent >= e.cfg.DailyCap.MaxMessagesPerDay:
		reason, until = models.SuspensionDailyCap, timePtr(e.dayResetAt)
	case e.quiet.contains(now):
		reason, until = models.SuspensionDoNotDisturb, timePtr(e.quiet.endAfter(now))
	case now.Before(e.nextSendAt):
		reason, until = models.SuspensionInterval, timePtr(e.nextSendAt)
	case len(e.queue) == 0:
		reason, until = models.SuspensionScheduled, e.earliestScheduledLocked()
	}

	if reason != models.SuspensionNone {
		st := step{kind: stepWait, reason: reason}
		if until != nil {
			st.wait = until.Sub(now)
		}
		var stats *models.SendingStats
		if e.suspension != reason || !sameInstant(e.suspendedUntil, until) || len(changed) > 0 {
			if e.suspension != reason {
				runSuspensionsTotal.WithLabelValues(string(reason)).Inc()
				if reason != models.SuspensionInterval {
					e.logger.Info("sending suspended", "reason", reason, "until", until)
				}
			}
			e.suspension, e.suspendedUntil = reason, until
			s := e.snapshotLocked(now)
			e.publishLocked(s)
			stats = &s
		}
		return st, -1, changed, stats
	}

	e.suspension, e.suspendedUntil = models.SuspensionNone, nil
	idx := e.queue[0]
	e.queue = e.queue[1:]
	return step{kind: stepSent}, idx, changed, nil
}

func (e *RunEngine) deliver(ctx context.Context, msg models.SendingMessage) error {
	sim := e.cfg.ErrorSimulation
	if sim.Enabled && e.rand.Float64()*100 < float64(sim.ErrorRatePercent) {
		i := int(e.rand.Float64() * float64(len(simulatedFailureReasons)))
		i = min(max(i, 0), len(simulatedFailureReasons)-1)
		return &SendError{Reason: simulatedFailureReasons[i], Simulated: true}
	}
	if e.sender == nil {
		return nil
	}

	start := time.Now()
	err := e.sender.Send(ctx, msg)
	sendDuration.Observe(time.Since(start).Seconds())
	return err
}

func (e *RunEngine) resolveLocked(idx int, sendErr error, now time.Time) ([]models.SendingMessage, models.SendingStats) {
	msg := &e.messages[idx]
	attemptAt := now
	msg.LastAttemptAt = &attemptAt
	e.processed++
	e.dailySent++

	if sendErr == nil {
		e.transitionLocked(msg, models.SendingMessageStatusSent)
		sentAt := now
		msg.SentAt = &sentAt
		msg.FailureReason = nil
		msg.EstimatedSendTime = nil
		messagesProcessedTotal.WithLabelValues("sent").Inc()
		e.logger.Debug("message sent", "message_id", msg.UUID.String())
	} else {
		reason := sendErr.Error()
		msg.FailureReason = &reason
		e.failLocked(idx, now)
		e.logger.Warn("message send failed",
			"message_id", msg.UUID.String(),
			"reason", reason,
			"retry_count", msg.RetryCount,
			"status", msg.Status)
	}

	e.nextSendAt = now.Add(e.drawIntervalLocked())
	if bp := e.cfg.BatchPause; bp.Enabled && bp.MessagesPerBatch > 0 && e.processed%bp.MessagesPerBatch == 0 {
		e.batchPauseUntil = now.Add(time.Duration(bp.PauseDurationMinutes) * time.Minute)
	}
	if dc := e.cfg.DailyCap; dc.Enabled && e.dailySent == dc.MaxMessagesPerDay {
		e.logger.Info("daily cap reached", "daily_sent", e.dailySent, "resets_at", e.dayResetAt)
	}

	stats := e.snapshotLocked(now)
	e.publishLocked(stats)
	return []models.SendingMessage{msg.Clone()}, stats
}

// failLocked applies the auto-rescheduling policy to a message whose send just failed
func (e *RunEngine) failLocked(idx int, now time.Time) {
	msg := &e.messages[idx]
	ar := e.cfg.AutoRescheduling
	if !ar.Enabled || msg.RetryCount >= ar.MaxRetryAttempts {
		e.transitionLocked(msg, models.SendingMessageStatusFailed)
		messagesProcessedTotal.WithLabelValues("failed").Inc()
		return
	}

	msg.RetryCount++
	if ar.RescheduleWindow == models.RescheduleWindowImmediate {
		e.transitionLocked(msg, models.SendingMessageStatusFailed)
		e.requeueLocked(idx)
		messagesProcessedTotal.WithLabelValues("requeued").Inc()
		return
	}

	at := e.rescheduleAtLocked(now)
	e.transitionLocked(msg, models.SendingMessageStatusScheduled)
	msg.EstimatedSendTime = &at
	e.scheduled = append(e.scheduled, idx)
	messagesProcessedTotal.WithLabelValues("rescheduled").Inc()
}

func (e *RunEngine) rescheduleAtLocked(now time.Time) time.Time {
	ar := e.cfg.AutoRescheduling
	at := now.Add(time.Duration(ar.FailedMessageRetryDelayMinutes) * time.Minute)
	if ar.RescheduleWindow == models.RescheduleWindowNextDay {
		if midnight := nextMidnight(e.midnight, e.loc, now); midnight.After(at) {
			at = midnight
		}
	}
	return e.quiet.pushOut(at)
}

// requeueLocked moves a failed message back to the tail of the queue
func (e *RunEngine) requeueLocked(idx int) {
	msg := &e.messages[idx]
	e.transitionLocked(msg, models.SendingMessageStatusPending)
	msg.EstimatedSendTime = nil
	if e.status == models.RunStatusPaused {
		e.transitionLocked(msg, models.SendingMessageStatusPaused)
	}
	e.queue = append(e.queue, idx)
}

// promoteDueLocked moves scheduled messages whose time has come to the queue tail,
// earliest first and by position on ties
func (e *RunEngine) promoteDueLocked(now time.Time) []models.SendingMessage {
	if len(e.scheduled) == 0 {
		return nil
	}
	var due, rest []int
	for _, idx := range e.scheduled {
		at := e.messages[idx].EstimatedSendTime
		if at == nil || !at.After(now) {
			due = append(due, idx)
		} else {
			rest = append(rest, idx)
		}
	}
	if len(due) == 0 {
		return nil
	}
	slices.SortStableFunc(due, func(a, b int) int {
		ta, tb := e.messages[a].EstimatedSendTime, e.messages[b].EstimatedSendTime
		if ta != nil && tb != nil && !ta.Equal(*tb) {
			return ta.Compare(*tb)
		}
		return a - b
	})

	e.scheduled = rest
	changed := make([]models.SendingMessage, 0, len(due))
	for _, idx := range due {
		msg := &e.messages[idx]
		e.transitionLocked(msg, models.SendingMessageStatusPending)
		if e.status == models.RunStatusPaused {
			e.transitionLocked(msg, models.SendingMessageStatusPaused)
		}
		e.queue = append(e.queue, idx)
		changed = append(changed, msg.Clone())
	}
	return changed
}

func (e *RunEngine) earliestScheduledLocked() *time.Time {
	var earliest *time.Time
	for _, idx := range e.scheduled {
		at := e.messages[idx].EstimatedSendTime
		if at != nil && (earliest == nil || at.Before(*earliest)) {
			earliest = at
		}
	}
	if earliest == nil {
		return nil
	}
	return timePtr(*earliest)
}

func (e *RunEngine) rollDailyWindowLocked(now time.Time) {
	if !e.cfg.DailyCap.Enabled || now.Before(e.dayResetAt) {
		return
	}
	if e.dailySent > 0 {
		e.logger.Info("daily counter reset", "daily_sent", e.dailySent)
	}
	e.dailySent = 0
	e.dayResetAt = e.nextDailyReset(now)
}

func (e *RunEngine) nextDailyReset(now time.Time) time.Time {
	if e.cfg.DailyCap.ResetAtMidnight {
		return nextMidnight(e.midnight, e.loc, now)
	}
	return now.Add(24 * time.Hour)
}

func (e *RunEngine) drawIntervalLocked() time.Duration {
	mi := e.cfg.MessageInterval
	if !mi.Enabled {
		return 0
	}
	if mi.Mode == models.IntervalModeFixed {
		return time.Duration(mi.FixedSeconds) * time.Second
	}
	span := mi.RandomMax - mi.RandomMin + 1
	secs := mi.RandomMin + int(e.rand.Float64()*float64(span))
	return time.Duration(min(secs, mi.RandomMax)) * time.Second
}

func (e *RunEngine) setQueuedStatusLocked(from, to models.SendingMessageStatus) []models.SendingMessage {
	var changed []models.SendingMessage
	for _, idx := range e.queue {
		msg := &e.messages[idx]
		if msg.Status == from {
			e.transitionLocked(msg, to)
			changed = append(changed, msg.Clone())
		}
	}
	return changed
}

func (e *RunEngine) transitionLocked(msg *models.SendingMessage, next models.SendingMessageStatus) {
	if !msg.Status.CanTransitionTo(next) {
		e.logger.Error("illegal message transition",
			"message_id", msg.UUID.String(), "from", msg.Status, "to", next)
	}
	msg.Status = next
}

func (e *RunEngine) finishLocked(status models.RunStatus, now time.Time) models.SendingStats {
	wasActive := e.status.IsActive()
	e.status = status
	e.stopRequested = false
	finished := now
	e.finishedAt = &finished
	e.suspension, e.suspendedUntil = models.SuspensionNone, nil

	stats := e.snapshotLocked(now)
	e.publishLocked(stats)
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}

	if wasActive {
		activeRuns.Dec()
	}
	finishedRunsTotal.WithLabelValues(string(status)).Inc()
	e.logger.Info("campaign run finished",
		"status", status,
		"sent", stats.SentMessages,
		"failed", stats.FailedMessages,
		"pending", stats.PendingMessages+stats.PausedMessages,
		"scheduled", stats.ScheduledMessages)
	return stats
}

func (e *RunEngine) snapshotLocked(now time.Time) models.SendingStats {
	ref := now
	if e.finishedAt != nil {
		ref = *e.finishedAt
	}
	stats := ComputeStats(e.messages, e.cfg, e.startedAt, ref, e.status.IsActive())
	stats.RunStatus = e.status
	stats.SuspensionReason = e.suspension
	if e.suspendedUntil != nil {
		stats.SuspendedUntil = timePtr(*e.suspendedUntil)
	}
	stats.DailySent = e.dailySent
	if e.startedAt != nil {
		stats.StartedAt = timePtr(*e.startedAt)
	}
	if e.finishedAt != nil {
		stats.FinishedAt = timePtr(*e.finishedAt)
	}
	return stats
}

func (e *RunEngine) publishLocked(stats models.SendingStats) {
	for _, ch := range e.subs {
		select {
		case ch <- stats:
		default:
		}
	}
}

// notifyLocked queues an observer notification. Callers hold mu, which fixes the order.
func (e *RunEngine) notifyLocked(msgs []models.SendingMessage, stats *models.SendingStats) {
	if e.observer == nil || (len(msgs) == 0 && stats == nil) {
		return
	}
	n := notification{msgs: msgs}
	if stats != nil {
		snapshot := *stats
		n.stats = &snapshot
	}
	e.notifyMu.Lock()
	e.pending = append(e.pending, n)
	e.notifyMu.Unlock()
}

// flushNotifications delivers queued notifications in order. If another goroutine is
// already delivering, it picks up what this caller queued.
func (e *RunEngine) flushNotifications() {
	if e.observer == nil {
		return
	}
	e.notifyMu.Lock()
	if e.draining {
		e.notifyMu.Unlock()
		return
	}
	e.draining = true
	for len(e.pending) > 0 {
		batch := e.pending
		e.pending = nil
		e.notifyMu.Unlock()

		for _, n := range batch {
			for _, m := range n.msgs {
				e.observer.MessageChanged(m)
			}
			if n.stats != nil {
				e.observer.RunChanged(*n.stats)
			}
		}

		e.notifyMu.Lock()
	}
	e.draining = false
	e.notifyIdle.Broadcast()
	e.notifyMu.Unlock()
}

// awaitNotifications blocks until every queued notification has been delivered
func (e *RunEngine) awaitNotifications() {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	for e.draining || len(e.pending) > 0 {
		e.notifyIdle.Wait()
	}
}

func (e *RunEngine) requestStop() {
	e.mu.Lock()
	if e.status.IsActive() {
		e.stopRequested = true
	}
	e.mu.Unlock()
}

func (e *RunEngine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
