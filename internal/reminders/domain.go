package reminders

import (
	"time"
)

// InvoiceStatus enumerates the stored invoice statuses the engine reacts to.
// "Pending" and "overdue" labels shown elsewhere are derived, never stored.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
)

// Kind enumerates reminder tones, assigned by temporal position.
type Kind string

const (
	KindFriendly Kind = "friendly"
	KindPolite   Kind = "polite"
	KindFirm     Kind = "firm"
	KindUrgent   Kind = "urgent"
)

// kindOrder is the positional assignment order for scheduled reminders.
var kindOrder = []Kind{KindFriendly, KindPolite, KindFirm, KindUrgent}

// ReminderStatus enumerates scheduled reminder row states.
type ReminderStatus string

const (
	ReminderStatusScheduled ReminderStatus = "scheduled"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusFailed    ReminderStatus = "failed"
)

// FeeType enumerates late fee policy types.
type FeeType string

const (
	FeeTypeFixed      FeeType = "fixed"
	FeeTypePercentage FeeType = "percentage"
)

// Direction indicates whether a custom rule fires before or after the due date.
type Direction string

const (
	DirectionBefore Direction = "before"
	DirectionAfter  Direction = "after"
)

// PaymentTerms is the invoice's payment terms configuration.
// Terms is a well-known label (Due on Receipt, Net 15, ...) or a free-form
// custom label; DefaultOption carries the machine alias when the invoice was
// created from a preset.
type PaymentTerms struct {
	Enabled       bool   `json:"enabled"`
	Terms         string `json:"terms"`
	DefaultOption string `json:"default_option,omitempty"`
}

// LateFeePolicy is the invoice's late fee configuration.
type LateFeePolicy struct {
	Enabled         bool    `json:"enabled"`
	Type            FeeType `json:"type"`
	Amount          float64 `json:"amount"`
	GracePeriodDays int     `json:"grace_period_days"`
}

// ReminderRule is a user-authored rule, consulted only when the invoice opts
// out of system defaults.
type ReminderRule struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Days      int       `json:"days"`
	Enabled   bool      `json:"enabled"`
}

// ReminderSettings is the invoice's reminder configuration.
type ReminderSettings struct {
	Enabled           bool           `json:"enabled"`
	UseSystemDefaults bool           `json:"use_system_defaults"`
	CustomRules       []ReminderRule `json:"custom_rules,omitempty"`
}

// Invoice is the read-only snapshot the engine plans against. The engine
// never mutates the invoice itself.
type Invoice struct {
	ID               string
	Status           InvoiceStatus
	IssueDate        time.Time
	DueDate          time.Time
	UpdatedAt        time.Time
	Total            float64
	Currency         string
	PaymentTerms     *PaymentTerms
	LateFees         *LateFeePolicy
	ReminderSettings *ReminderSettings
}

// Eligible reports whether the invoice may carry scheduled reminders at all.
// Eligibility is derived from status, never stored.
func (inv Invoice) Eligible() bool {
	return inv.Status == InvoiceStatusSent
}

// ScheduledReminder is a persisted engine decision: what to send and when.
// OverdueDays is the signed offset from the anchor date (negative = before).
type ScheduledReminder struct {
	ID          string
	InvoiceID   string
	Kind        Kind
	OverdueDays int
	ScheduledAt time.Time
	Status      ReminderStatus
	EmailID     *string
	CreatedAt   time.Time
}

// DateOf truncates a timestamp to its calendar date. All engine math is done
// on calendar dates in UTC, not instants.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// validDate rejects dates that fell out of the representable calendar range,
// e.g. from a corrupted rule offset.
func validDate(t time.Time) bool {
	y := t.Year()
	return !t.IsZero() && y >= 1 && y <= 9999
}
