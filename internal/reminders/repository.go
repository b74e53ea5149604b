package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for scheduled reminders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reminderColumns = `id, invoice_id, kind, overdue_days, scheduled_at, status, email_id, created_at`

// ListByInvoice returns every reminder row for an invoice, oldest first.
func (r *Repository) ListByInvoice(ctx context.Context, invoiceID string) ([]ScheduledReminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM scheduled_reminders
		WHERE invoice_id = $1
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// DeleteScheduled removes all not-yet-sent rows for an invoice. Sent and
// failed rows are history and stay untouched.
func (r *Repository) DeleteScheduled(ctx context.Context, invoiceID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM scheduled_reminders WHERE invoice_id = $1 AND status = 'scheduled'`,
		invoiceID)
	return err
}

// DeleteByIDs removes specific reminder rows.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM scheduled_reminders WHERE id = ANY($1)`, ids)
	return err
}

// InsertMany inserts reminder rows.
func (r *Repository) InsertMany(ctx context.Context, reminders []ScheduledReminder) error {
	if len(reminders) == 0 {
		return nil
	}
	return insertMany(ctx, r.pool, reminders)
}

// ApplyPlan performs the plan's deletes and inserts in one RepeatableRead
// transaction. A per-invoice advisory lock serializes concurrent schedule
// runs so a simultaneous send and edit cannot interleave divergent sets.
func (r *Repository) ApplyPlan(ctx context.Context, invoiceID string, plan Plan) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return applyPlan(ctx, tx, invoiceID, plan)
	})
}

func applyPlan(ctx context.Context, tx pgx.Tx, invoiceID string, plan Plan) error {
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, invoiceID); err != nil {
		return fmt.Errorf("lock invoice: %w", err)
	}

	if len(plan.DeleteIDs) > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM scheduled_reminders WHERE id = ANY($1)`, plan.DeleteIDs); err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}
	}
	if len(plan.Insert) > 0 {
		if err := insertMany(ctx, tx, plan.Insert); err != nil {
			return fmt.Errorf("insert reminders: %w", err)
		}
	}
	return nil
}

// ListDue returns scheduled rows whose date has arrived, for the delivery
// worker to dispatch.
func (r *Repository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]ScheduledReminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM scheduled_reminders
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at, id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, DateOf(asOf), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// MarkSent transitions a reminder to sent and records the delivery email id.
func (r *Repository) MarkSent(ctx context.Context, id, emailID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE scheduled_reminders SET status = 'sent', email_id = $2 WHERE id = $1 AND status = 'scheduled'`,
		id, emailID)
	return err
}

// MarkFailed transitions a reminder to failed.
func (r *Repository) MarkFailed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE scheduled_reminders SET status = 'failed' WHERE id = $1 AND status = 'scheduled'`,
		id)
	return err
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertMany(ctx context.Context, db execer, reminders []ScheduledReminder) error {
	const query = `
		INSERT INTO scheduled_reminders (
			id, invoice_id, kind, overdue_days, scheduled_at, status, email_id, created_at
		) VALUES ($1, $2, $3, $4, $5, 'scheduled', NULL, NOW())`

	for _, rem := range reminders {
		_, err := db.Exec(ctx, query,
			rem.ID, rem.InvoiceID, string(rem.Kind), rem.OverdueDays, rem.ScheduledAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanReminders(rows pgx.Rows) ([]ScheduledReminder, error) {
	var out []ScheduledReminder
	for rows.Next() {
		var rem ScheduledReminder
		var emailID pgtype.Text

		err := rows.Scan(
			&rem.ID, &rem.InvoiceID, &rem.Kind, &rem.OverdueDays,
			&rem.ScheduledAt, &rem.Status, &emailID, &rem.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if emailID.Valid {
			rem.EmailID = &emailID.String
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}
