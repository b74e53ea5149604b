package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrStoreUnavailable wraps persistence failures. The invoice mutation that
// triggered scheduling still succeeds; callers log and continue.
var ErrStoreUnavailable = errors.New("reminders: store unavailable")

// Store is the durable reminder storage the engine plans against.
type Store interface {
	ListByInvoice(ctx context.Context, invoiceID string) ([]ScheduledReminder, error)
	DeleteScheduled(ctx context.Context, invoiceID string) error
	DeleteByIDs(ctx context.Context, ids []string) error
	InsertMany(ctx context.Context, rows []ScheduledReminder) error
	// ApplyPlan performs the plan's deletes and inserts as one transaction,
	// serialized per invoice.
	ApplyPlan(ctx context.Context, invoiceID string, plan Plan) error
}

// SyncResult reports the outcome of a schedule run. A non-nil Warning means
// the plan could not be read or applied; it is never a hard failure for the
// caller.
type SyncResult struct {
	Plan    Plan
	Warning error
}

// OK reports whether the schedule run fully succeeded.
func (r SyncResult) OK() bool {
	return r.Warning == nil
}

// Service plans and applies reminder schedules.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs a reminder scheduling service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Sync recomputes the invoice's reminder schedule and replaces the stored
// scheduled rows with it. Identical inputs yield an identical final row set,
// so a safe concurrency strategy is last writer wins, full replace.
func (s *Service) Sync(ctx context.Context, inv Invoice) SyncResult {
	existing, err := s.store.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return s.warn(inv.ID, fmt.Errorf("%w: list reminders: %v", ErrStoreUnavailable, err))
	}

	var rules []ReminderRule
	if inv.ReminderSettings != nil {
		rules = inv.ReminderSettings.CustomRules
	}

	plan := BuildPlan(inv, rules, existing, s.logger)
	if plan.Empty() {
		return SyncResult{Plan: plan}
	}

	if err := s.store.ApplyPlan(ctx, inv.ID, plan); err != nil {
		return s.warn(inv.ID, fmt.Errorf("%w: apply plan: %v", ErrStoreUnavailable, err))
	}

	s.logger.Info("reminder schedule replaced",
		slog.String("invoice_id", inv.ID),
		slog.Int("deleted", len(plan.DeleteIDs)),
		slog.Int("inserted", len(plan.Insert)))
	return SyncResult{Plan: plan}
}

// Purge removes every scheduled row for the invoice. Used when an invoice
// transitions into draft or paid and no replacement schedule is wanted.
func (s *Service) Purge(ctx context.Context, invoiceID string) SyncResult {
	if err := s.store.DeleteScheduled(ctx, invoiceID); err != nil {
		return s.warn(invoiceID, fmt.Errorf("%w: purge: %v", ErrStoreUnavailable, err))
	}
	return SyncResult{}
}

// List returns every reminder row for the invoice, scheduled or not.
func (s *Service) List(ctx context.Context, invoiceID string) ([]ScheduledReminder, error) {
	return s.store.ListByInvoice(ctx, invoiceID)
}

func (s *Service) warn(invoiceID string, err error) SyncResult {
	s.logger.Warn("reminder scheduling degraded",
		slog.String("invoice_id", invoiceID),
		slog.Any("error", err))
	return SyncResult{Warning: err}
}
