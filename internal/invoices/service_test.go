package invoices

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/reminders"
)

type memoryRepo struct {
	invoices map[string]Invoice
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: make(map[string]Invoice)}
}

func (r *memoryRepo) Create(ctx context.Context, inv Invoice) (*Invoice, error) {
	r.invoices[inv.ID] = inv
	return &inv, nil
}

func (r *memoryRepo) Update(ctx context.Context, inv Invoice) (*Invoice, error) {
	if _, ok := r.invoices[inv.ID]; !ok {
		return nil, ErrNotFound
	}
	r.invoices[inv.ID] = inv
	return &inv, nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if req.Status != "" && string(inv.Status) != req.Status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeEngine struct {
	synced  []reminders.Invoice
	warning error
}

func (e *fakeEngine) Sync(ctx context.Context, inv reminders.Invoice) reminders.SyncResult {
	e.synced = append(e.synced, inv)
	return reminders.SyncResult{Warning: e.warning}
}

type fakeSummaryCache struct {
	stored      *DashboardSummary
	invalidated int
}

func (c *fakeSummaryCache) Get(ctx context.Context) (*DashboardSummary, bool) {
	if c.stored == nil {
		return nil, false
	}
	return c.stored, true
}

func (c *fakeSummaryCache) Set(ctx context.Context, summary DashboardSummary) {
	c.stored = &summary
}

func (c *fakeSummaryCache) Invalidate(ctx context.Context) {
	c.stored = nil
	c.invalidated++
}

func newTestService(repo RepositoryPort, engine ReminderEngine, cache SummaryCache, now time.Time) *Service {
	svc := NewService(repo, engine, cache, slog.New(slog.DiscardHandler))
	svc.clock = func() time.Time { return now }
	return svc
}

func createRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		CustomerName:  "Acme Corp",
		CustomerEmail: "billing@acme.test",
		IssueDate:     "2024-03-01",
		DueDate:       "2024-04-10",
		Currency:      "USD",
		Total:         1000,
	}
}

func TestCreateDraftDoesNotSchedule(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	svc := newTestService(newMemoryRepo(), engine, nil, date(2024, 3, 1))

	view, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	require.Equal(t, reminders.InvoiceStatusDraft, view.Status)
	require.NotEmpty(t, view.Number)
	require.Empty(t, engine.synced)
}

func TestCreateSentSchedulesReminders(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	svc := newTestService(newMemoryRepo(), engine, nil, date(2024, 3, 1))

	req := createRequest()
	req.Status = "sent"
	req.PaymentTerms = &PaymentTermsInput{Enabled: true, Terms: reminders.TermNet30}

	view, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.Equal(t, reminders.InvoiceStatusSent, view.Status)
	require.Len(t, engine.synced, 1)
	require.Equal(t, view.ID, engine.synced[0].ID)
}

func TestSendTransitionsAndSchedules(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	svc := newTestService(newMemoryRepo(), engine, nil, date(2024, 3, 1))

	view, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	sent, err := svc.Send(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, reminders.InvoiceStatusSent, sent.Status)
	require.Len(t, engine.synced, 1)

	_, err = svc.Send(ctx, view.ID)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMarkPaidPurgesSchedule(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	svc := newTestService(newMemoryRepo(), engine, nil, date(2024, 3, 1))

	view, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, view.ID)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Send(ctx, view.ID)
	require.NoError(t, err)

	paid, err := svc.MarkPaid(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, reminders.InvoiceStatusPaid, paid.Status)
	// Send and mark-paid both ran the engine; the paid sync plans a purge.
	require.Len(t, engine.synced, 2)
	require.Equal(t, reminders.InvoiceStatusPaid, engine.synced[1].Status)
}

func TestUpdateReschedulesOnlyScheduleFields(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	svc := newTestService(newMemoryRepo(), engine, nil, date(2024, 3, 1))

	req := createRequest()
	req.Status = "sent"
	view, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.Len(t, engine.synced, 1)

	notes := "updated contact"
	_, err = svc.Update(ctx, view.ID, UpdateInvoiceRequest{Notes: &notes})
	require.NoError(t, err)
	require.Len(t, engine.synced, 1)

	dueDate := "2024-05-01"
	updated, err := svc.Update(ctx, view.ID, UpdateInvoiceRequest{DueDate: &dueDate})
	require.NoError(t, err)
	require.Equal(t, date(2024, 5, 1), updated.DueDate)
	require.Len(t, engine.synced, 2)
}

func TestUpdatePaidInvoiceRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryRepo(), &fakeEngine{}, nil, date(2024, 3, 1))

	view, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	_, err = svc.Send(ctx, view.ID)
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, view.ID)
	require.NoError(t, err)

	total := 500.0
	_, err = svc.Update(ctx, view.ID, UpdateInvoiceRequest{Total: &total})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestEngineWarningNeverFailsMutation(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{warning: errors.New("store down")}
	svc := newTestService(newMemoryRepo(), engine, nil, date(2024, 3, 1))

	req := createRequest()
	req.Status = "sent"

	view, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, view)
}

func TestViewAttachesCharges(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryRepo(), &fakeEngine{}, nil, date(2024, 4, 20))

	req := createRequest()
	req.Status = "sent"
	req.LateFees = &LateFeesInput{Enabled: true, Type: "fixed", Amount: 50, GracePeriodDays: 7}

	view, err := svc.Create(ctx, req)
	require.NoError(t, err)

	// Due 2024-04-10, read at 2024-04-20: 10 days overdue, 3 past grace.
	require.Equal(t, reminders.TagOverdue, view.DueStatus.Tag)
	require.Equal(t, 10, view.DueStatus.Days)
	require.True(t, view.Charges.HasLateFee)
	require.Equal(t, 3, view.Charges.ChargeableOverdueDays)
	require.Equal(t, 1050.0, view.Charges.TotalPayable)
}

func TestCustomRuleDaysParsing(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeEngine{}, nil, date(2024, 3, 1))

	req := createRequest()
	req.ReminderSettings = &ReminderSettingsInput{
		Enabled: true,
		CustomRules: []ReminderRuleInput{
			{Direction: "before", Days: "7", Enabled: true},
			{Direction: "after", Days: "oops", Enabled: true},
		},
	}

	view, err := svc.Create(ctx, req)
	require.NoError(t, err)

	stored := repo.invoices[view.ID]
	require.Len(t, stored.ReminderSettings.CustomRules, 2)
	require.Equal(t, 7, stored.ReminderSettings.CustomRules[0].Days)
	// Non-numeric day counts degrade to zero instead of failing the invoice.
	require.Equal(t, 0, stored.ReminderSettings.CustomRules[1].Days)
}

func TestSummaryAggregatesAndCaches(t *testing.T) {
	ctx := context.Background()
	cache := &fakeSummaryCache{}
	svc := newTestService(newMemoryRepo(), &fakeEngine{}, cache, date(2024, 4, 20))

	req := createRequest()
	req.Status = "sent"
	req.LateFees = &LateFeesInput{Enabled: true, Type: "fixed", Amount: 50, GracePeriodDays: 7}
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	draft := createRequest()
	_, err = svc.Create(ctx, draft)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, summary.InvoiceCount)
	require.Equal(t, 1, summary.DraftCount)
	require.Equal(t, 1, summary.OverdueCount)
	require.Equal(t, 1050.0, summary.TotalOutstanding)
	require.Equal(t, 50.0, summary.TotalLateFees)

	require.NotNil(t, cache.stored)

	// Served from cache until the next mutation.
	cache.stored.InvoiceCount = 99
	cached, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 99, cached.InvoiceCount)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
