package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/reminders"
)

// Repository provides PostgreSQL backed persistence for invoices. Payment
// terms, late fees and reminder settings are stored as JSONB documents.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

const invoiceColumns = `id, number, customer_name, customer_email, status, issue_date, due_date,
	currency, total, notes, payment_terms, late_fees, reminder_settings, created_at, updated_at`

// Create inserts a new invoice.
func (r *Repository) Create(ctx context.Context, inv Invoice) (*Invoice, error) {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	terms, fees, settings, err := marshalConfigs(inv)
	if err != nil {
		return nil, err
	}

	_, err = r.pool.Exec(ctx, query,
		inv.ID, inv.Number, inv.CustomerName, inv.CustomerEmail, string(inv.Status),
		inv.IssueDate, inv.DueDate, inv.Currency, inv.Total, inv.Notes,
		terms, fees, settings, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Update replaces an invoice's mutable fields.
func (r *Repository) Update(ctx context.Context, inv Invoice) (*Invoice, error) {
	query := `
		UPDATE invoices SET
			customer_name = $2, customer_email = $3, status = $4, due_date = $5,
			total = $6, notes = $7, payment_terms = $8, late_fees = $9,
			reminder_settings = $10, updated_at = $11
		WHERE id = $1`

	terms, fees, settings, err := marshalConfigs(inv)
	if err != nil {
		return nil, err
	}

	tag, err := r.pool.Exec(ctx, query,
		inv.ID, inv.CustomerName, inv.CustomerEmail, string(inv.Status), inv.DueDate,
		inv.Total, inv.Notes, terms, fees, settings, inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return &inv, nil
}

// Get retrieves an invoice by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	inv, err := r.scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns invoices with optional filtering.
func (r *Repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`

	args := []any{}
	argNum := 1

	if req.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, req.Status)
		argNum++
	}
	if req.Search != "" {
		query += fmt.Sprintf(" AND (number ILIKE $%d OR customer_name ILIKE $%d)", argNum, argNum)
		args = append(args, "%"+req.Search+"%")
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, req.Limit)
		argNum++
	}
	if req.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanInvoice(row rowScanner) (*Invoice, error) {
	var inv Invoice
	var notes pgtype.Text
	var terms, fees, settings []byte

	err := row.Scan(
		&inv.ID, &inv.Number, &inv.CustomerName, &inv.CustomerEmail, &inv.Status,
		&inv.IssueDate, &inv.DueDate, &inv.Currency, &inv.Total, &notes,
		&terms, &fees, &settings, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if notes.Valid {
		inv.Notes = &notes.String
	}
	inv.PaymentTerms = unmarshalConfig[reminders.PaymentTerms](r.logger, inv.ID, "payment_terms", terms)
	inv.LateFees = unmarshalConfig[reminders.LateFeePolicy](r.logger, inv.ID, "late_fees", fees)
	inv.ReminderSettings = unmarshalConfig[reminders.ReminderSettings](r.logger, inv.ID, "reminder_settings", settings)

	return &inv, nil
}

func marshalConfigs(inv Invoice) (terms, fees, settings []byte, err error) {
	if inv.PaymentTerms != nil {
		if terms, err = json.Marshal(inv.PaymentTerms); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal payment terms: %w", err)
		}
	}
	if inv.LateFees != nil {
		if fees, err = json.Marshal(inv.LateFees); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal late fees: %w", err)
		}
	}
	if inv.ReminderSettings != nil {
		if settings, err = json.Marshal(inv.ReminderSettings); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal reminder settings: %w", err)
		}
	}
	return terms, fees, settings, nil
}

// unmarshalConfig decodes a JSONB config column. A malformed document is
// treated as absent so one bad config can never make an invoice unreadable;
// the engine then falls back to the raw due date.
func unmarshalConfig[T any](logger *slog.Logger, invoiceID, column string, raw []byte) *T {
	if len(raw) == 0 {
		return nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		if logger != nil {
			logger.Warn("malformed invoice config ignored",
				slog.String("invoice_id", invoiceID),
				slog.String("column", column),
				slog.Any("error", err))
		}
		return nil
	}
	return &out
}
