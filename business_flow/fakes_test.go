package businessflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
)

type fakeRunRepo struct {
	mu     sync.Mutex
	runs   map[uint]models.CampaignRun
	nextID uint
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[uint]models.CampaignRun)}
}

func (r *fakeRunRepo) ByID(_ context.Context, id uint) (*models.CampaignRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (r *fakeRunRepo) ByFilter(_ context.Context, filter models.CampaignRunFilter, _ string, limit, offset int) ([]*models.CampaignRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignRun
	for _, run := range r.runs {
		if filter.UUID != nil && run.UUID != *filter.UUID {
			continue
		}
		if filter.Status != nil && run.Status != *filter.Status {
			continue
		}
		if filter.ParentRunID != nil && (run.ParentRunID == nil || *run.ParentRunID != *filter.ParentRunID) {
			continue
		}
		out = append(out, &run)
	}
	slices.SortFunc(out, func(a, b *models.CampaignRun) int { return int(a.ID) - int(b.ID) })
	return page(out, limit, offset), nil
}

func (r *fakeRunRepo) Save(_ context.Context, run *models.CampaignRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == 0 {
		r.nextID++
		run.ID = r.nextID
	}
	if run.UUID == uuid.Nil {
		run.UUID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *fakeRunRepo) SaveBatch(ctx context.Context, runs []*models.CampaignRun) error {
	for _, run := range runs {
		if err := r.Save(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRunRepo) Count(ctx context.Context, filter models.CampaignRunFilter) (int64, error) {
	runs, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(runs)), err
}

func (r *fakeRunRepo) Exists(ctx context.Context, filter models.CampaignRunFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeRunRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.CampaignRun, error) {
	runs, err := r.ByFilter(ctx, models.CampaignRunFilter{UUID: &id}, "", 1, 0)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

func (r *fakeRunRepo) ListByStatus(ctx context.Context, statuses []models.RunStatus) ([]*models.CampaignRun, error) {
	all, err := r.ByFilter(ctx, models.CampaignRunFilter{}, "", 0, 0)
	if err != nil {
		return nil, err
	}
	var out []*models.CampaignRun
	for _, run := range all {
		if slices.Contains(statuses, run.Status) {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *fakeRunRepo) UpdateStatus(_ context.Context, id uint, status models.RunStatus, startedAt, finishedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("campaign run %d not found", id)
	}
	run.Status = status
	run.StartedAt = startedAt
	run.FinishedAt = finishedAt
	r.runs[id] = run
	return nil
}

func (r *fakeRunRepo) status(id uint) models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id].Status
}

type fakeMessageRepo struct {
	mu      sync.Mutex
	msgs    map[uuid.UUID]models.SendingMessage
	nextID  uint
	updates int
	// failNext makes the next n UpdateState calls fail
	failNext int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{msgs: make(map[uuid.UUID]models.SendingMessage)}
}

func (r *fakeMessageRepo) ByID(_ context.Context, id uint) (*models.SendingMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) ByFilter(_ context.Context, filter models.SendingMessageFilter, _ string, limit, offset int) ([]*models.SendingMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SendingMessage
	for _, m := range r.msgs {
		if filter.UUID != nil && m.UUID != *filter.UUID {
			continue
		}
		if filter.RunID != nil && m.RunID != *filter.RunID {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		msg := m.Clone()
		out = append(out, &msg)
	}
	slices.SortFunc(out, func(a, b *models.SendingMessage) int { return a.Position - b.Position })
	return page(out, limit, offset), nil
}

func (r *fakeMessageRepo) Save(_ context.Context, m *models.SendingMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	r.msgs[m.UUID] = m.Clone()
	return nil
}

func (r *fakeMessageRepo) SaveBatch(ctx context.Context, msgs []*models.SendingMessage) error {
	for _, m := range msgs {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, filter models.SendingMessageFilter) (int64, error) {
	msgs, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(msgs)), err
}

func (r *fakeMessageRepo) Exists(ctx context.Context, filter models.SendingMessageFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeMessageRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.SendingMessage, error) {
	msgs, err := r.ByFilter(ctx, models.SendingMessageFilter{UUID: &id}, "", 1, 0)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return msgs[0], nil
}

func (r *fakeMessageRepo) ListByRun(ctx context.Context, runID uint, status *models.SendingMessageStatus, limit, offset int) ([]*models.SendingMessage, error) {
	return r.ByFilter(ctx, models.SendingMessageFilter{RunID: &runID, Status: status}, "position ASC", limit, offset)
}

func (r *fakeMessageRepo) AllByRun(ctx context.Context, runID uint) ([]models.SendingMessage, error) {
	rows, err := r.ListByRun(ctx, runID, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.SendingMessage, 0, len(rows))
	for _, m := range rows {
		out = append(out, *m)
	}
	return out, nil
}

func (r *fakeMessageRepo) UpdateState(_ context.Context, msg models.SendingMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return errors.New("connection reset by peer")
	}
	stored, ok := r.msgs[msg.UUID]
	if !ok {
		return fmt.Errorf("sending message %s not found", msg.UUID)
	}
	stored.Status = msg.Status
	stored.SentAt = msg.SentAt
	stored.FailureReason = msg.FailureReason
	stored.RetryCount = msg.RetryCount
	stored.EstimatedSendTime = msg.EstimatedSendTime
	stored.LastAttemptAt = msg.LastAttemptAt
	stored.DeliveredAt = msg.DeliveredAt
	stored.ReadAt = msg.ReadAt
	r.msgs[msg.UUID] = stored.Clone()
	r.updates++
	return nil
}

func (r *fakeMessageRepo) CountByStatus(ctx context.Context, runID uint) (map[models.SendingMessageStatus]int64, error) {
	msgs, err := r.AllByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.SendingMessageStatus]int64)
	for _, m := range msgs {
		counts[m.Status]++
	}
	return counts, nil
}

type fakeReportRepo struct {
	mu      sync.Mutex
	reports map[uint]models.CampaignReport
	saves   int
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[uint]models.CampaignReport)}
}

func (r *fakeReportRepo) ByID(_ context.Context, id uint) (*models.CampaignReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.ID == id {
			return &rep, nil
		}
	}
	return nil, nil
}

func (r *fakeReportRepo) ByFilter(_ context.Context, filter models.CampaignReportFilter, _ string, limit, offset int) ([]*models.CampaignReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignReport
	for _, rep := range r.reports {
		if filter.RunID != nil && rep.RunID != *filter.RunID {
			continue
		}
		out = append(out, &rep)
	}
	return page(out, limit, offset), nil
}

func (r *fakeReportRepo) Save(_ context.Context, rep *models.CampaignReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reports[rep.RunID]; exists {
		return fmt.Errorf("duplicate report for run %d", rep.RunID)
	}
	rep.ID = uint(len(r.reports) + 1)
	r.reports[rep.RunID] = *rep
	r.saves++
	return nil
}

func (r *fakeReportRepo) SaveBatch(ctx context.Context, reps []*models.CampaignReport) error {
	for _, rep := range reps {
		if err := r.Save(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeReportRepo) Count(ctx context.Context, filter models.CampaignReportFilter) (int64, error) {
	reps, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(reps)), err
}

func (r *fakeReportRepo) Exists(ctx context.Context, filter models.CampaignReportFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeReportRepo) ByRunID(ctx context.Context, runID uint) (*models.CampaignReport, error) {
	reps, err := r.ByFilter(ctx, models.CampaignReportFilter{RunID: &runID}, "", 1, 0)
	if err != nil || len(reps) == 0 {
		return nil, err
	}
	return reps[0], nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
