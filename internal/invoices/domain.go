package invoices

import (
	"time"

	"github.com/ledgerline/ledgerline/internal/reminders"
)

// Invoice is the stored invoice model. The "pending"/"overdue" labels shown
// on dashboards are derived at read time, never stored.
type Invoice struct {
	ID               string
	Number           string
	CustomerName     string
	CustomerEmail    string
	Status           reminders.InvoiceStatus
	IssueDate        time.Time
	DueDate          time.Time
	Currency         string
	Total            float64
	Notes            *string
	PaymentTerms     *reminders.PaymentTerms
	LateFees         *reminders.LateFeePolicy
	ReminderSettings *reminders.ReminderSettings
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Snapshot converts the stored model into the read-only view the reminder
// engine plans against.
func (inv Invoice) Snapshot() reminders.Invoice {
	return reminders.Invoice{
		ID:               inv.ID,
		Status:           inv.Status,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		UpdatedAt:        inv.UpdatedAt,
		Total:            inv.Total,
		Currency:         inv.Currency,
		PaymentTerms:     inv.PaymentTerms,
		LateFees:         inv.LateFees,
		ReminderSettings: inv.ReminderSettings,
	}
}

// InvoiceView is an invoice plus its derived read-time financial status.
type InvoiceView struct {
	Invoice
	DueStatus reminders.DueDateStatus
	Charges   reminders.Charges
}

// DashboardSummary aggregates derived status over all invoices.
type DashboardSummary struct {
	InvoiceCount     int     `json:"invoice_count"`
	DraftCount       int     `json:"draft_count"`
	PaidCount        int     `json:"paid_count"`
	OverdueCount     int     `json:"overdue_count"`
	DueSoonCount     int     `json:"due_soon_count"`
	UpcomingCount    int     `json:"upcoming_count"`
	TotalOutstanding float64 `json:"total_outstanding"`
	TotalLateFees    float64 `json:"total_late_fees"`
}

// ============================================================================
// REQUEST DTOS
// ============================================================================

// PaymentTermsInput mirrors reminders.PaymentTerms for request payloads.
type PaymentTermsInput struct {
	Enabled       bool   `json:"enabled"`
	Terms         string `json:"terms" validate:"required_if=Enabled true,max=100"`
	DefaultOption string `json:"default_option,omitempty" validate:"omitempty,max=50"`
}

// LateFeesInput mirrors reminders.LateFeePolicy for request payloads.
type LateFeesInput struct {
	Enabled         bool    `json:"enabled"`
	Type            string  `json:"type" validate:"required_if=Enabled true,omitempty,oneof=fixed percentage"`
	Amount          float64 `json:"amount" validate:"gte=0"`
	GracePeriodDays int     `json:"grace_period_days" validate:"gte=0,lte=365"`
}

// ReminderRuleInput is a user-authored rule. Days arrives as a string so a
// malformed value degrades to zero instead of rejecting the whole invoice.
type ReminderRuleInput struct {
	ID        string `json:"id" validate:"omitempty,max=50"`
	Direction string `json:"direction" validate:"required,oneof=before after"`
	Days      string `json:"days" validate:"required,max=10"`
	Enabled   bool   `json:"enabled"`
}

// ReminderSettingsInput mirrors reminders.ReminderSettings for request payloads.
type ReminderSettingsInput struct {
	Enabled           bool                `json:"enabled"`
	UseSystemDefaults bool                `json:"use_system_defaults"`
	CustomRules       []ReminderRuleInput `json:"custom_rules,omitempty" validate:"omitempty,max=20,dive"`
}

// CreateInvoiceRequest creates an invoice, optionally already sent.
type CreateInvoiceRequest struct {
	Number           string                 `json:"number" validate:"omitempty,max=50"`
	CustomerName     string                 `json:"customer_name" validate:"required,max=200"`
	CustomerEmail    string                 `json:"customer_email" validate:"required,email"`
	Status           string                 `json:"status" validate:"omitempty,oneof=draft sent"`
	IssueDate        string                 `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate          string                 `json:"due_date" validate:"required,datetime=2006-01-02"`
	Currency         string                 `json:"currency" validate:"required,len=3"`
	Total            float64                `json:"total" validate:"gte=0"`
	Notes            *string                `json:"notes,omitempty"`
	PaymentTerms     *PaymentTermsInput     `json:"payment_terms,omitempty"`
	LateFees         *LateFeesInput         `json:"late_fees,omitempty"`
	ReminderSettings *ReminderSettingsInput `json:"reminder_settings,omitempty"`
}

// UpdateInvoiceRequest edits a draft or sent invoice. Nil fields are left
// unchanged.
type UpdateInvoiceRequest struct {
	CustomerName     *string                `json:"customer_name,omitempty" validate:"omitempty,max=200"`
	CustomerEmail    *string                `json:"customer_email,omitempty" validate:"omitempty,email"`
	DueDate          *string                `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Total            *float64               `json:"total,omitempty" validate:"omitempty,gte=0"`
	Notes            *string                `json:"notes,omitempty"`
	PaymentTerms     *PaymentTermsInput     `json:"payment_terms,omitempty"`
	LateFees         *LateFeesInput         `json:"late_fees,omitempty"`
	ReminderSettings *ReminderSettingsInput `json:"reminder_settings,omitempty"`
}

// ListInvoicesRequest filters the invoice list.
type ListInvoicesRequest struct {
	Status string `validate:"omitempty,oneof=draft sent paid"`
	Search string `validate:"omitempty,max=200"`
	Limit  int    `validate:"gte=0,lte=1000"`
	Offset int    `validate:"gte=0"`
}

// ============================================================================
// DTO CONVERSION
// ============================================================================

func (in *PaymentTermsInput) toDomain() *reminders.PaymentTerms {
	if in == nil {
		return nil
	}
	return &reminders.PaymentTerms{
		Enabled:       in.Enabled,
		Terms:         in.Terms,
		DefaultOption: in.DefaultOption,
	}
}

func (in *LateFeesInput) toDomain() *reminders.LateFeePolicy {
	if in == nil {
		return nil
	}
	return &reminders.LateFeePolicy{
		Enabled:         in.Enabled,
		Type:            reminders.FeeType(in.Type),
		Amount:          in.Amount,
		GracePeriodDays: in.GracePeriodDays,
	}
}

func (in *ReminderSettingsInput) toDomain() *reminders.ReminderSettings {
	if in == nil {
		return nil
	}
	out := &reminders.ReminderSettings{
		Enabled:           in.Enabled,
		UseSystemDefaults: in.UseSystemDefaults,
	}
	for _, rule := range in.CustomRules {
		out.CustomRules = append(out.CustomRules, reminders.ReminderRule{
			ID:        rule.ID,
			Direction: reminders.Direction(rule.Direction),
			Days:      reminders.ParseRuleDays(rule.Days),
			Enabled:   rule.Enabled,
		})
	}
	return out
}
