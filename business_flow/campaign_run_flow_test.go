package businessflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/campaign-sender/app/dto"
	"github.com/amirphl/campaign-sender/app/scheduler"
	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constRand float64

func (r constRand) Float64() float64 { return float64(r) }

// numberSender fails every message addressed to one of its numbers
type numberSender struct {
	mu      sync.Mutex
	failing map[string]bool
	sent    []string
}

func (s *numberSender) Send(_ context.Context, msg models.SendingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[msg.RecipientNumber] {
		return errors.New("network timeout: connection refused")
	}
	s.sent = append(s.sent, msg.RecipientNumber)
	return nil
}

type flowFixture struct {
	flow     *CampaignRunFlowImpl
	runs     *fakeRunRepo
	msgs     *fakeMessageRepo
	reports  *fakeReportRepo
	registry *scheduler.Registry
	sender   *numberSender
}

func newFlowFixture(t *testing.T, failing ...string) *flowFixture {
	t.Helper()
	fx := &flowFixture{
		runs:    newFakeRunRepo(),
		msgs:    newFakeMessageRepo(),
		reports: newFakeReportRepo(),
		sender:  &numberSender{failing: make(map[string]bool)},
	}
	for _, n := range failing {
		fx.sender.failing[n] = true
	}
	fx.restart(t)
	return fx
}

// restart builds a fresh flow and registry over the same storage, as a new process would
func (fx *flowFixture) restart(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fx.registry = scheduler.NewRegistry(logger)
	flow, err := NewCampaignRunFlow(ctx, nil, fx.runs, fx.msgs, fx.reports, fx.registry,
		NewRunCache(nil, "test:", time.Minute, time.Minute), fx.sender,
		FlatRatePricing{PricePerMessage: 0.5, CurrencyCode: "USD"},
		RunFlowSettings{MaxRecipients: 5, RecheckInterval: 10 * time.Millisecond, PersistRetryAttempts: 3},
		logger, scheduler.WithRandSource(constRand(0.5)))
	require.NoError(t, err)
	flow.inTx = func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }
	fx.flow = flow
}

// fastConfig sends back to back
func fastConfig() *models.SendingConfig {
	cfg := models.DefaultSendingConfig()
	cfg.MessageInterval.Enabled = false
	cfg.DoNotDisturb.Timezone = "UTC"
	return &cfg
}

func slowConfig() *models.SendingConfig {
	cfg := fastConfig()
	cfg.MessageInterval = models.MessageIntervalConfig{
		Enabled: true, Mode: models.IntervalModeFixed, FixedSeconds: 3600, RandomMin: 5, RandomMax: 15,
	}
	return cfg
}

func recipients(numbers ...string) []dto.RecipientRequest {
	out := make([]dto.RecipientRequest, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, dto.RecipientRequest{Name: "Customer", PhoneNumber: n, Content: "Your order has shipped"})
	}
	return out
}

func (fx *flowFixture) wait(t *testing.T, runUUID string) {
	t.Helper()
	engine, ok := fx.registry.Get(uuid.MustParse(runUUID))
	require.True(t, ok, "engine should be loaded")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, engine.Wait(ctx))
}

func TestCampaignRunFlow_CreateRunValidation(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	badConfig := fastConfig()
	badConfig.MessageInterval.Enabled = true
	badConfig.MessageInterval.Mode = models.IntervalModeRandom
	badConfig.MessageInterval.RandomMin = 20
	badConfig.MessageInterval.RandomMax = 10

	tests := []struct {
		name  string
		req   dto.CreateCampaignRunRequest
		check func(error) bool
	}{
		{
			name:  "blank name",
			req:   dto.CreateCampaignRunRequest{Name: "  ", Recipients: recipients("+989120000001")},
			check: IsCampaignNameRequired,
		},
		{
			name:  "no recipients",
			req:   dto.CreateCampaignRunRequest{Name: "promo"},
			check: IsRecipientsRequired,
		},
		{
			name: "too many recipients",
			req: dto.CreateCampaignRunRequest{Name: "promo", Recipients: recipients(
				"+989120000001", "+989120000002", "+989120000003", "+989120000004", "+989120000005", "+989120000006")},
			check: IsTooManyRecipients,
		},
		{
			name:  "recipient without content",
			req:   dto.CreateCampaignRunRequest{Name: "promo", Recipients: []dto.RecipientRequest{{PhoneNumber: "+989120000001"}}},
			check: IsRecipientInvalid,
		},
		{
			name:  "invalid config",
			req:   dto.CreateCampaignRunRequest{Name: "promo", Config: badConfig, Recipients: recipients("+989120000001")},
			check: IsInvalidSendingConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := fx.flow.CreateRun(ctx, &tt.req)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	count, err := fx.runs.Count(ctx, models.CampaignRunFilter{})
	require.NoError(t, err)
	assert.Zero(t, count, "rejected requests must not persist runs")
}

func TestCampaignRunFlow_Lifecycle(t *testing.T) {
	fx := newFlowFixture(t, "+989120000002")
	ctx := context.Background()

	created, err := fx.flow.CreateRun(ctx, &dto.CreateCampaignRunRequest{
		Name:       "spring sale",
		Config:     fastConfig(),
		Recipients: recipients("+989120000001", "+989120000002", "+989120000003"),
		AutoStart:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, created.Run.TotalMessages)
	assert.True(t, created.Run.Loaded)
	runUUID := created.Run.UUID

	fx.wait(t, runUUID)

	run, err := fx.flow.GetRun(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted.String(), run.Status)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)

	stored, err := fx.runs.ByUUID(ctx, uuid.MustParse(runUUID))
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.NotNil(t, stored.FinishedAt)

	counts, err := fx.msgs.CountByStatus(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.SendingMessageStatusSent])
	assert.Equal(t, int64(1), counts[models.SendingMessageStatusFailed])

	t.Run("report is stored once on finish", func(t *testing.T) {
		assert.Equal(t, 1, fx.reports.saves)

		resp, err := fx.flow.GetReport(ctx, runUUID)
		require.NoError(t, err)
		report := resp.Report
		assert.Equal(t, models.CampaignReportStatusPartial, report.Status)
		assert.Equal(t, 3, report.Summary.TotalMessages)
		assert.Equal(t, 2, report.Summary.SentMessages)
		assert.Equal(t, 1, report.Summary.FailedMessages)
		assert.Equal(t, 1, report.Errors.Network)
		require.Len(t, report.FailedMessages, 1)
		assert.Equal(t, "+989120000002", report.FailedMessages[0].RecipientNumber)
		assert.True(t, report.FailedMessages[0].CanRetry)
		assert.Equal(t, "USD", report.Costs.Currency)
		assert.InDelta(t, 1.0, report.Costs.ActualCost, 1e-9)

		_, err = fx.flow.GetReport(ctx, runUUID)
		require.NoError(t, err)
		assert.Equal(t, 1, fx.reports.saves)
	})

	t.Run("export renders an xlsx workbook", func(t *testing.T) {
		filename, data, err := fx.flow.ExportReport(ctx, runUUID)
		require.NoError(t, err)
		assert.Equal(t, "campaign_report_"+runUUID+".xlsx", filename)
		assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx files are zip archives")
	})

	t.Run("stats of a finished run", func(t *testing.T) {
		resp, err := fx.flow.GetStats(ctx, runUUID)
		require.NoError(t, err)
		assert.True(t, resp.Live)
		assert.Equal(t, 3, resp.Stats.TotalMessages)
		assert.Equal(t, 2, resp.Stats.SentMessages)
		assert.Equal(t, 1, resp.Stats.FailedMessages)
	})

	t.Run("controls on a finished run", func(t *testing.T) {
		_, err := fx.flow.StartRun(ctx, runUUID)
		assert.True(t, IsRunFinished(err), "unexpected error: %v", err)

		_, err = fx.flow.PauseRun(ctx, runUUID)
		assert.True(t, IsRunFinished(err), "unexpected error: %v", err)

		_, err = fx.flow.RetryFailed(ctx, &dto.RetryFailedRequest{RunUUID: runUUID})
		assert.True(t, IsRunFinished(err), "unexpected error: %v", err)
	})

	t.Run("stats without a loaded engine come from storage", func(t *testing.T) {
		fx.registry.Remove(uuid.MustParse(runUUID))

		resp, err := fx.flow.GetStats(ctx, runUUID)
		require.NoError(t, err)
		assert.False(t, resp.Live)
		assert.Equal(t, models.RunStatusCompleted, resp.Stats.RunStatus)
		assert.Equal(t, 2, resp.Stats.SentMessages)
		assert.Equal(t, 1, resp.Stats.FailedMessages)

		stop, err := fx.flow.StopRun(ctx, runUUID)
		require.NoError(t, err)
		assert.Equal(t, "Campaign run already finished", stop.Message)
	})
}

func TestCampaignRunFlow_FollowUpRun(t *testing.T) {
	fx := newFlowFixture(t, "+989120000002", "+989120000003")
	ctx := context.Background()

	created, err := fx.flow.CreateRun(ctx, &dto.CreateCampaignRunRequest{
		Name:       "reminder",
		Config:     fastConfig(),
		Recipients: recipients("+989120000001", "+989120000002", "+989120000003"),
		AutoStart:  true,
	})
	require.NoError(t, err)
	parentUUID := created.Run.UUID
	fx.wait(t, parentUUID)

	report, err := fx.flow.GetReport(ctx, parentUUID)
	require.NoError(t, err)
	require.Len(t, report.Report.FailedMessages, 2)

	t.Run("unknown message id is rejected", func(t *testing.T) {
		_, err := fx.flow.CreateFollowUpRun(ctx, &dto.CreateFollowUpRunRequest{
			ParentRunUUID: parentUUID,
			MessageIDs:    []string{uuid.NewString()},
		})
		assert.True(t, IsMessageNotRetryable(err), "unexpected error: %v", err)
	})

	// the provider recovers before the follow-up
	fx.sender.mu.Lock()
	fx.sender.failing = map[string]bool{}
	fx.sender.mu.Unlock()

	followUp, err := fx.flow.CreateFollowUpRun(ctx, &dto.CreateFollowUpRunRequest{
		ParentRunUUID: parentUUID,
		AutoStart:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "reminder (follow-up)", followUp.Run.Name)
	require.NotNil(t, followUp.Run.ParentRunUUID)
	assert.Equal(t, parentUUID, *followUp.Run.ParentRunUUID)
	assert.Equal(t, 2, followUp.Run.TotalMessages)
	fx.wait(t, followUp.Run.UUID)

	child, err := fx.flow.GetReport(ctx, followUp.Run.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignReportStatusCompleted, child.Report.Status)
	assert.Equal(t, 2, child.Report.Summary.SentMessages)
	assert.Equal(t, 2, child.Report.Summary.RetriedMessages)

	got, err := fx.flow.GetRun(ctx, followUp.Run.UUID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentRunUUID)
	assert.Equal(t, parentUUID, *got.ParentRunUUID)
}

func TestCampaignRunFlow_PauseResumeStop(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	created, err := fx.flow.CreateRun(ctx, &dto.CreateCampaignRunRequest{
		Name:       "slow drip",
		Config:     slowConfig(),
		Recipients: recipients("+989120000001", "+989120000002", "+989120000003"),
	})
	require.NoError(t, err)
	runUUID := created.Run.UUID
	assert.Equal(t, models.RunStatusIdle.String(), created.Run.Status)

	_, err = fx.flow.PauseRun(ctx, runUUID)
	assert.True(t, IsRunNotStarted(err), "unexpected error: %v", err)

	started, err := fx.flow.StartRun(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning.String(), started.Status)

	_, err = fx.flow.StartRun(ctx, runUUID)
	assert.True(t, IsRunAlreadyRunning(err), "unexpected error: %v", err)

	paused, err := fx.flow.PauseRun(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPaused.String(), paused.Status)

	resumed, err := fx.flow.ResumeRun(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning.String(), resumed.Status)

	_, err = fx.flow.StopRun(ctx, runUUID)
	require.NoError(t, err)
	fx.wait(t, runUUID)

	stored, err := fx.runs.ByUUID(ctx, uuid.MustParse(runUUID))
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusStopped, stored.Status)

	report, err := fx.flow.GetReport(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignReportStatusCancelled, report.Report.Status)
	assert.Less(t, report.Report.Summary.SentMessages, 3)
}

func TestCampaignRunFlow_GetReportBeforeFinish(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	created, err := fx.flow.CreateRun(ctx, &dto.CreateCampaignRunRequest{
		Name:       "not yet",
		Config:     fastConfig(),
		Recipients: recipients("+989120000001"),
	})
	require.NoError(t, err)

	_, err = fx.flow.GetReport(ctx, created.Run.UUID)
	assert.True(t, IsRunNotFinished(err), "unexpected error: %v", err)

	_, _, err = fx.flow.ExportReport(ctx, created.Run.UUID)
	assert.True(t, IsRunNotFinished(err), "unexpected error: %v", err)
}

func TestCampaignRunFlow_NotFound(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	for _, id := range []string{"not-a-uuid", uuid.NewString()} {
		t.Run(id, func(t *testing.T) {
			_, err := fx.flow.GetRun(ctx, id)
			assert.True(t, IsCampaignRunNotFound(err))

			_, err = fx.flow.StartRun(ctx, id)
			assert.True(t, IsCampaignRunNotFound(err))

			_, err = fx.flow.GetStats(ctx, id)
			assert.True(t, IsCampaignRunNotFound(err))

			_, err = fx.flow.GetReport(ctx, id)
			assert.True(t, IsCampaignRunNotFound(err))
		})
	}
}

func TestCampaignRunFlow_ListMessages(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	created, err := fx.flow.CreateRun(ctx, &dto.CreateCampaignRunRequest{
		Name:   "paging",
		Config: fastConfig(),
		Recipients: recipients(
			"+989120000001", "+989120000002", "+989120000003", "+989120000004", "+989120000005"),
	})
	require.NoError(t, err)
	runUUID := created.Run.UUID

	pending := models.SendingMessageStatusPending.String()
	sent := models.SendingMessageStatusSent.String()

	tests := []struct {
		name       string
		req        dto.ListMessagesRequest
		wantCount  int
		wantTotal  int64
		wantPages  int
		firstPos   int
		checkError func(error) bool
	}{
		{name: "defaults", req: dto.ListMessagesRequest{}, wantCount: 5, wantTotal: 5, wantPages: 1, firstPos: 0},
		{name: "second page", req: dto.ListMessagesRequest{Page: 2, PageSize: 2}, wantCount: 2, wantTotal: 5, wantPages: 3, firstPos: 2},
		{name: "last page", req: dto.ListMessagesRequest{Page: 3, PageSize: 2}, wantCount: 1, wantTotal: 5, wantPages: 3, firstPos: 4},
		{name: "status filter", req: dto.ListMessagesRequest{Status: &pending}, wantCount: 5, wantTotal: 5, wantPages: 1, firstPos: 0},
		{name: "status without matches", req: dto.ListMessagesRequest{Status: &sent}, wantCount: 0, wantTotal: 0, wantPages: 0},
		{name: "page size too large", req: dto.ListMessagesRequest{PageSize: 101}, checkError: IsInvalidPageSize},
		{name: "negative page", req: dto.ListMessagesRequest{Page: -1}, checkError: IsInvalidPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.RunUUID = runUUID
			resp, err := fx.flow.ListMessages(ctx, &req)
			if tt.checkError != nil {
				require.Error(t, err)
				assert.True(t, tt.checkError(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.Messages, tt.wantCount)
			assert.Equal(t, tt.wantTotal, resp.Pagination.TotalItems)
			assert.Equal(t, tt.wantPages, resp.Pagination.TotalPages)
			if tt.wantCount > 0 {
				assert.Equal(t, tt.firstPos, resp.Messages[0].Position)
			}
		})
	}
}

func TestCampaignRunFlow_RecoverInterruptedRuns(t *testing.T) {
	fx := newFlowFixture(t, "+989120000002")
	ctx := context.Background()

	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	run := &models.CampaignRun{Name: "crashed", Status: models.RunStatusRunning, Config: *fastConfig(), StartedAt: &started}
	require.NoError(t, fx.runs.Save(ctx, run))

	sentMsg := models.SendingMessage{
		UUID: uuid.New(), RunID: run.ID, Position: 0, RecipientNumber: "+989120000001",
		Content: "hi", Status: models.SendingMessageStatusSent, SentAt: &started, LastAttemptAt: &started,
	}
	pendingMsg := models.SendingMessage{
		UUID: uuid.New(), RunID: run.ID, Position: 1, RecipientNumber: "+989120000002",
		Content: "hi", Status: models.SendingMessageStatusPending,
	}
	inFlightMsg := models.SendingMessage{
		UUID: uuid.New(), RunID: run.ID, Position: 2, RecipientNumber: "+989120000003",
		Content: "hi", Status: models.SendingMessageStatusSending,
	}
	require.NoError(t, fx.msgs.SaveBatch(ctx, []*models.SendingMessage{&sentMsg, &pendingMsg, &inFlightMsg}))

	_, err := fx.flow.PauseRun(ctx, run.UUID.String())
	assert.True(t, IsRunNotLoaded(err), "unexpected error: %v", err)

	recovered, err := fx.flow.RecoverInterruptedRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.Equal(t, models.RunStatusStopped, fx.runs.status(run.ID))

	interrupted, err := fx.msgs.ByUUID(ctx, inFlightMsg.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.SendingMessageStatusFailed, interrupted.Status)
	require.NotNil(t, interrupted.FailureReason)
	assert.Equal(t, interruptedSendReason, *interrupted.FailureReason)

	stored, err := fx.reports.ByRunID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "recovery stores the report")
	assert.Equal(t, models.CampaignReportStatusCancelled, stored.Status)

	report, err := fx.flow.GetReport(ctx, run.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, models.CampaignReportStatusCancelled, report.Report.Status)
	assert.Equal(t, 1, report.Report.Summary.SentMessages)
	assert.Equal(t, 1, report.Report.Summary.PendingMessages)
	assert.Equal(t, 1, report.Report.Summary.FailedMessages)

	t.Run("receipts are written to storage", func(t *testing.T) {
		resp, err := fx.flow.MarkReceipt(ctx, &dto.MarkReceiptRequest{
			RunUUID: run.UUID.String(), MessageID: sentMsg.UUID.String(), Type: "read",
		})
		require.NoError(t, err)
		assert.Equal(t, "read", resp.Type)

		got, err := fx.msgs.ByUUID(ctx, sentMsg.UUID)
		require.NoError(t, err)
		assert.NotNil(t, got.DeliveredAt)
		assert.NotNil(t, got.ReadAt)

		_, err = fx.flow.MarkReceipt(ctx, &dto.MarkReceiptRequest{
			RunUUID: run.UUID.String(), MessageID: pendingMsg.UUID.String(), Type: "delivered",
		})
		assert.True(t, IsMessageNotSent(err), "unexpected error: %v", err)

		_, err = fx.flow.MarkReceipt(ctx, &dto.MarkReceiptRequest{
			RunUUID: run.UUID.String(), MessageID: uuid.NewString(), Type: "delivered",
		})
		assert.True(t, IsMessageNotFound(err), "unexpected error: %v", err)
	})

	again, err := fx.flow.RecoverInterruptedRuns(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestCampaignRunFlow_ShutdownKeepsIdleRunsStartable(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	created, err := fx.flow.CreateRun(ctx, &dto.CreateCampaignRunRequest{
		Name:       "scheduled later",
		Config:     fastConfig(),
		Recipients: recipients("+989120000001", "+989120000002"),
	})
	require.NoError(t, err)
	runID := fx.mustRunID(t, created.Run.UUID)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, fx.registry.StopAll(stopCtx))
	assert.Equal(t, models.RunStatusIdle, fx.runs.status(runID))
	report, err := fx.reports.ByRunID(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, report, "an unstarted run has no report")

	fx.restart(t)
	_, err = fx.flow.StartRun(ctx, created.Run.UUID)
	require.NoError(t, err)
	fx.wait(t, created.Run.UUID)
	assert.Equal(t, models.RunStatusCompleted, fx.runs.status(runID))
}

func TestCampaignRunFlow_PersistenceRetries(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()
	fx.msgs.mu.Lock()
	fx.msgs.failNext = 2
	fx.msgs.mu.Unlock()

	created, err := fx.flow.CreateRun(ctx, &dto.CreateCampaignRunRequest{
		Name:       "flaky db",
		Config:     fastConfig(),
		Recipients: recipients("+989120000001"),
		AutoStart:  true,
	})
	require.NoError(t, err)
	fx.wait(t, created.Run.UUID)

	msgs, err := fx.msgs.AllByRun(ctx, fx.mustRunID(t, created.Run.UUID))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SendingMessageStatusSent, msgs[0].Status)
}

func (fx *flowFixture) mustRunID(t *testing.T, runUUID string) uint {
	t.Helper()
	run, err := fx.runs.ByUUID(context.Background(), uuid.MustParse(runUUID))
	require.NoError(t, err)
	require.NotNil(t, run)
	return run.ID
}

func TestSelectRetryable(t *testing.T) {
	retryable := models.FailedMessageEntry{MessageID: uuid.New(), CanRetry: true}
	exhausted := models.FailedMessageEntry{MessageID: uuid.New(), CanRetry: false}
	failed := []models.FailedMessageEntry{retryable, exhausted}

	got, err := selectRetryable(failed, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.FailedMessageEntry{retryable}, got)

	got, err = selectRetryable(failed, []uuid.UUID{retryable.MessageID, retryable.MessageID})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = selectRetryable(failed, []uuid.UUID{exhausted.MessageID})
	assert.True(t, IsMessageNotRetryable(err))

	_, err = selectRetryable([]models.FailedMessageEntry{exhausted}, nil)
	assert.True(t, IsNoRetryableMessages(err))
}
