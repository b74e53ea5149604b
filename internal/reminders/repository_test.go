package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

// planTx records Exec calls so plan application order can be asserted without
// a live database.
type planTx struct {
	calls   []execCall
	execErr error
}

func (t *planTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *planTx) Commit(ctx context.Context) error          { return nil }
func (t *planTx) Rollback(ctx context.Context) error        { return nil }

func (t *planTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}

func (t *planTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *planTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *planTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}

func (t *planTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	t.calls = append(t.calls, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (t *planTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *planTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

func (t *planTx) Conn() *pgx.Conn { return nil }

func TestApplyPlanLocksDeletesInserts(t *testing.T) {
	ctx := context.Background()
	tx := &planTx{}

	plan := Plan{
		DeleteIDs: []string{"a", "b"},
		Insert: []ScheduledReminder{
			{ID: "r1", InvoiceID: "inv-1", Kind: KindFriendly, OverdueDays: -7, ScheduledAt: time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)},
			{ID: "r2", InvoiceID: "inv-1", Kind: KindPolite, OverdueDays: 1, ScheduledAt: time.Date(2024, 4, 11, 0, 0, 0, 0, time.UTC)},
		},
	}

	require.NoError(t, applyPlan(ctx, tx, "inv-1", plan))
	require.Len(t, tx.calls, 4)

	// The advisory lock must be taken before any row changes.
	require.Contains(t, tx.calls[0].sql, "pg_advisory_xact_lock")
	require.Equal(t, []any{"inv-1"}, tx.calls[0].args)

	require.Contains(t, tx.calls[1].sql, "DELETE FROM scheduled_reminders")
	require.Equal(t, []any{[]string{"a", "b"}}, tx.calls[1].args)

	require.Contains(t, tx.calls[2].sql, "INSERT INTO scheduled_reminders")
	require.Equal(t, "r1", tx.calls[2].args[0])
	require.Contains(t, tx.calls[3].sql, "INSERT INTO scheduled_reminders")
	require.Equal(t, "r2", tx.calls[3].args[0])
}

func TestApplyPlanSkipsEmptySections(t *testing.T) {
	ctx := context.Background()

	tx := &planTx{}
	require.NoError(t, applyPlan(ctx, tx, "inv-1", Plan{DeleteIDs: []string{"a"}}))
	require.Len(t, tx.calls, 2)
	require.Contains(t, tx.calls[1].sql, "DELETE FROM scheduled_reminders")

	tx = &planTx{}
	require.NoError(t, applyPlan(ctx, tx, "inv-1", Plan{Insert: []ScheduledReminder{{ID: "r1", InvoiceID: "inv-1"}}}))
	require.Len(t, tx.calls, 2)
	require.Contains(t, tx.calls[1].sql, "INSERT INTO scheduled_reminders")
}

func TestApplyPlanStopsOnLockFailure(t *testing.T) {
	ctx := context.Background()
	tx := &planTx{execErr: errors.New("lock timeout")}

	err := applyPlan(ctx, tx, "inv-1", Plan{DeleteIDs: []string{"a"}})
	require.ErrorContains(t, err, "lock invoice")
	require.Empty(t, tx.calls)
}
