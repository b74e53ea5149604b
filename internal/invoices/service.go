package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/reminders"
)

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = errors.New("invoices: not found")
	// ErrInvalidStatus indicates a lifecycle transition is not allowed.
	ErrInvalidStatus = errors.New("invoices: invalid status")
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	Create(ctx context.Context, inv Invoice) (*Invoice, error)
	Update(ctx context.Context, inv Invoice) (*Invoice, error)
	Get(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
}

// ReminderEngine schedules reminder rows for an invoice snapshot. Scheduling
// is a best-effort side effect: a degraded result is logged, never returned
// as an error from invoice mutations.
type ReminderEngine interface {
	Sync(ctx context.Context, inv reminders.Invoice) reminders.SyncResult
}

// SummaryCache caches the dashboard summary between mutations.
type SummaryCache interface {
	Get(ctx context.Context) (*DashboardSummary, bool)
	Set(ctx context.Context, summary DashboardSummary)
	Invalidate(ctx context.Context)
}

// Service handles invoice lifecycle business logic.
type Service struct {
	repo    RepositoryPort
	engine  ReminderEngine
	summary SummaryCache
	logger  *slog.Logger
	clock   func() time.Time
}

// NewService builds a Service instance. The summary cache may be nil.
func NewService(repo RepositoryPort, engine ReminderEngine, summary SummaryCache, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		engine:  engine,
		summary: summary,
		logger:  logger,
		clock:   time.Now,
	}
}

// Create creates a new invoice, scheduling reminders when it starts out sent.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest) (*InvoiceView, error) {
	issueDate, err := time.Parse(time.DateOnly, req.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("parse issue date: %w", err)
	}
	dueDate, err := time.Parse(time.DateOnly, req.DueDate)
	if err != nil {
		return nil, fmt.Errorf("parse due date: %w", err)
	}

	status := reminders.InvoiceStatus(req.Status)
	if status == "" {
		status = reminders.InvoiceStatusDraft
	}

	now := s.clock()
	inv := Invoice{
		ID:               uuid.NewString(),
		Number:           req.Number,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		Status:           status,
		IssueDate:        reminders.DateOf(issueDate),
		DueDate:          reminders.DateOf(dueDate),
		Currency:         strings.ToUpper(req.Currency),
		Total:            req.Total,
		Notes:            req.Notes,
		PaymentTerms:     req.PaymentTerms.toDomain(),
		LateFees:         req.LateFees.toDomain(),
		ReminderSettings: req.ReminderSettings.toDomain(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if inv.Number == "" {
		inv.Number = generateNumber(inv.ID)
	}

	created, err := s.repo.Create(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if created.Status != reminders.InvoiceStatusDraft {
		s.syncReminders(ctx, *created)
	}
	s.invalidateSummary(ctx)

	view := s.view(*created)
	return &view, nil
}

// Update edits an invoice, rescheduling reminders when a field the schedule
// depends on changed.
func (s *Service) Update(ctx context.Context, id string, req UpdateInvoiceRequest) (*InvoiceView, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing.Status == reminders.InvoiceStatusPaid {
		return nil, fmt.Errorf("%w: paid invoices cannot be edited", ErrInvalidStatus)
	}

	inv := *existing
	affectsSchedule := false

	if req.CustomerName != nil {
		inv.CustomerName = *req.CustomerName
	}
	if req.CustomerEmail != nil {
		inv.CustomerEmail = *req.CustomerEmail
	}
	if req.Total != nil {
		inv.Total = *req.Total
	}
	if req.Notes != nil {
		inv.Notes = req.Notes
	}
	if req.DueDate != nil {
		dueDate, err := time.Parse(time.DateOnly, *req.DueDate)
		if err != nil {
			return nil, fmt.Errorf("parse due date: %w", err)
		}
		inv.DueDate = reminders.DateOf(dueDate)
		affectsSchedule = true
	}
	if req.PaymentTerms != nil {
		inv.PaymentTerms = req.PaymentTerms.toDomain()
		affectsSchedule = true
	}
	if req.LateFees != nil {
		inv.LateFees = req.LateFees.toDomain()
	}
	if req.ReminderSettings != nil {
		inv.ReminderSettings = req.ReminderSettings.toDomain()
		affectsSchedule = true
	}

	inv.UpdatedAt = s.clock()

	updated, err := s.repo.Update(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	if affectsSchedule && updated.Status == reminders.InvoiceStatusSent {
		s.syncReminders(ctx, *updated)
	}
	s.invalidateSummary(ctx)

	view := s.view(*updated)
	return &view, nil
}

// Send transitions a draft invoice to sent and schedules its reminders.
func (s *Service) Send(ctx context.Context, id string) (*InvoiceView, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing.Status != reminders.InvoiceStatusDraft {
		return nil, fmt.Errorf("%w: only draft invoices can be sent", ErrInvalidStatus)
	}

	inv := *existing
	inv.Status = reminders.InvoiceStatusSent
	inv.UpdatedAt = s.clock()

	updated, err := s.repo.Update(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("send invoice: %w", err)
	}

	s.syncReminders(ctx, *updated)
	s.invalidateSummary(ctx)

	view := s.view(*updated)
	return &view, nil
}

// MarkPaid transitions a sent invoice to paid, purging its scheduled reminders.
func (s *Service) MarkPaid(ctx context.Context, id string) (*InvoiceView, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing.Status != reminders.InvoiceStatusSent {
		return nil, fmt.Errorf("%w: only sent invoices can be marked paid", ErrInvalidStatus)
	}

	inv := *existing
	inv.Status = reminders.InvoiceStatusPaid
	inv.UpdatedAt = s.clock()

	updated, err := s.repo.Update(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("mark invoice paid: %w", err)
	}

	s.syncReminders(ctx, *updated)
	s.invalidateSummary(ctx)

	view := s.view(*updated)
	return &view, nil
}

// Get retrieves one invoice with derived charges.
func (s *Service) Get(ctx context.Context, id string) (*InvoiceView, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(*inv)
	return &view, nil
}

// List returns invoices with derived charges, without touching the reminder
// store.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]InvoiceView, error) {
	rows, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	views := make([]InvoiceView, 0, len(rows))
	for _, inv := range rows {
		views = append(views, s.view(inv))
	}
	return views, nil
}

// Summary aggregates derived status over every invoice, served from cache
// between mutations.
func (s *Service) Summary(ctx context.Context) (*DashboardSummary, error) {
	if s.summary != nil {
		if cached, ok := s.summary.Get(ctx); ok {
			return cached, nil
		}
	}

	rows, err := s.repo.List(ctx, ListInvoicesRequest{})
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var out DashboardSummary
	for _, inv := range rows {
		out.InvoiceCount++
		switch inv.Status {
		case reminders.InvoiceStatusDraft:
			out.DraftCount++
			continue
		case reminders.InvoiceStatusPaid:
			out.PaidCount++
			continue
		}

		snapshot := inv.Snapshot()
		switch reminders.Classify(snapshot, now).Tag {
		case reminders.TagOverdue:
			out.OverdueCount++
		case reminders.TagDueSoon:
			out.DueSoonCount++
		case reminders.TagUpcoming:
			out.UpcomingCount++
		}

		charges := reminders.ComputeCharges(snapshot, now)
		out.TotalOutstanding += charges.TotalPayable
		out.TotalLateFees += charges.LateFeeAmount
	}

	if s.summary != nil {
		s.summary.Set(ctx, out)
	}
	return &out, nil
}

func (s *Service) view(inv Invoice) InvoiceView {
	now := s.clock()
	snapshot := inv.Snapshot()
	return InvoiceView{
		Invoice:   inv,
		DueStatus: reminders.Classify(snapshot, now),
		Charges:   reminders.ComputeCharges(snapshot, now),
	}
}

func (s *Service) syncReminders(ctx context.Context, inv Invoice) {
	res := s.engine.Sync(ctx, inv.Snapshot())
	if !res.OK() {
		// Reminder scheduling never blocks the invoice mutation.
		s.logger.Warn("reminder sync degraded",
			slog.String("invoice_id", inv.ID),
			slog.Any("error", res.Warning))
	}
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.summary != nil {
		s.summary.Invalidate(ctx)
	}
}

func generateNumber(id string) string {
	short := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return "INV-" + short
}
