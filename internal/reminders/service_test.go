package reminders

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	rows      map[string]ScheduledReminder
	listErr   error
	applyErr  error
	clock     time.Time
	applyCall int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows:  make(map[string]ScheduledReminder),
		clock: date(2024, 3, 1),
	}
}

func (m *memoryStore) ListByInvoice(ctx context.Context, invoiceID string) ([]ScheduledReminder, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []ScheduledReminder
	for _, row := range m.rows {
		if row.InvoiceID == invoiceID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) DeleteScheduled(ctx context.Context, invoiceID string) error {
	for id, row := range m.rows {
		if row.InvoiceID == invoiceID && row.Status == ReminderStatusScheduled {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memoryStore) DeleteByIDs(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.rows, id)
	}
	return nil
}

func (m *memoryStore) InsertMany(ctx context.Context, rows []ScheduledReminder) error {
	m.clock = m.clock.Add(time.Second)
	for _, row := range rows {
		row.CreatedAt = m.clock
		m.rows[row.ID] = row
	}
	return nil
}

func (m *memoryStore) ApplyPlan(ctx context.Context, invoiceID string, plan Plan) error {
	m.applyCall++
	if m.applyErr != nil {
		return m.applyErr
	}
	if err := m.DeleteByIDs(ctx, plan.DeleteIDs); err != nil {
		return err
	}
	return m.InsertMany(ctx, plan.Insert)
}

func (m *memoryStore) scheduledCount(invoiceID string) int {
	n := 0
	for _, row := range m.rows {
		if row.InvoiceID == invoiceID && row.Status == ReminderStatusScheduled {
			n++
		}
	}
	return n
}

type rowShape struct {
	kind Kind
	at   time.Time
	days int
}

func (m *memoryStore) shapes(invoiceID string) []rowShape {
	var out []rowShape
	for _, row := range m.rows {
		if row.InvoiceID != invoiceID {
			continue
		}
		out = append(out, rowShape{kind: row.Kind, at: row.ScheduledAt, days: row.OverdueDays})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].at.Equal(out[j].at) {
			return out[i].at.Before(out[j].at)
		}
		return out[i].kind < out[j].kind
	})
	return out
}

func TestSyncReplacesSchedule(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, discardLogger())

	inv := smartInvoice(dueOnReceiptTerms())

	res := svc.Sync(ctx, inv)
	require.True(t, res.OK())
	require.Len(t, res.Plan.Insert, 4)
	require.Equal(t, 4, store.scheduledCount(inv.ID))
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, discardLogger())

	inv := smartInvoice(&PaymentTerms{Enabled: true, Terms: TermNet30})

	first := svc.Sync(ctx, inv)
	require.True(t, first.OK())
	afterFirst := store.shapes(inv.ID)

	second := svc.Sync(ctx, inv)
	require.True(t, second.OK())
	afterSecond := store.shapes(inv.ID)

	require.Equal(t, afterFirst, afterSecond)
	require.Equal(t, 4, store.scheduledCount(inv.ID))
}

func TestSyncEligibilityInvariant(t *testing.T) {
	ctx := context.Background()

	for _, status := range []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusPaid} {
		store := newMemoryStore()
		svc := NewService(store, discardLogger())

		inv := smartInvoice(dueOnReceiptTerms())
		res := svc.Sync(ctx, inv)
		require.True(t, res.OK())
		require.Equal(t, 4, store.scheduledCount(inv.ID))

		inv.Status = status
		res = svc.Sync(ctx, inv)
		require.True(t, res.OK())
		require.Zero(t, store.scheduledCount(inv.ID))
	}
}

func TestSyncCollapsesDuplicateFailedRows(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, discardLogger())

	inv := smartInvoice(nil)
	inv.ReminderSettings = &ReminderSettings{Enabled: false}

	store.rows["f1"] = ScheduledReminder{ID: "f1", InvoiceID: inv.ID, Kind: KindUrgent, Status: ReminderStatusFailed, CreatedAt: date(2024, 2, 1)}
	store.rows["f2"] = ScheduledReminder{ID: "f2", InvoiceID: inv.ID, Kind: KindUrgent, Status: ReminderStatusFailed, CreatedAt: date(2024, 2, 3)}
	store.rows["f3"] = ScheduledReminder{ID: "f3", InvoiceID: inv.ID, Kind: KindUrgent, Status: ReminderStatusFailed, CreatedAt: date(2024, 2, 2)}

	res := svc.Sync(ctx, inv)
	require.True(t, res.OK())

	remaining, err := store.ListByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "f2", remaining[0].ID)
}

func TestSyncStoreFailureIsWarningNotError(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.applyErr = errors.New("connection refused")
	svc := NewService(store, discardLogger())

	res := svc.Sync(ctx, smartInvoice(dueOnReceiptTerms()))
	require.False(t, res.OK())
	require.ErrorIs(t, res.Warning, ErrStoreUnavailable)
}

func TestSyncListFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.listErr = errors.New("connection refused")
	svc := NewService(store, discardLogger())

	res := svc.Sync(ctx, smartInvoice(dueOnReceiptTerms()))
	require.False(t, res.OK())
	require.ErrorIs(t, res.Warning, ErrStoreUnavailable)
}

func TestSyncEmptyPlanSkipsApply(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, discardLogger())

	inv := smartInvoice(nil)
	inv.Status = InvoiceStatusPaid

	res := svc.Sync(ctx, inv)
	require.True(t, res.OK())
	require.Zero(t, store.applyCall)
}

func TestPurgeRemovesScheduledRows(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, discardLogger())

	inv := smartInvoice(dueOnReceiptTerms())
	require.True(t, svc.Sync(ctx, inv).OK())
	require.Equal(t, 4, store.scheduledCount(inv.ID))

	res := svc.Purge(ctx, inv.ID)
	require.True(t, res.OK())
	require.Zero(t, store.scheduledCount(inv.ID))
}
