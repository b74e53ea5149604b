package reminders

import (
	"math"
	"time"
)

// DueDateTag classifies an invoice's position relative to its effective due
// date. Draft invoices get the draft-* variants and are never "overdue".
type DueDateTag string

const (
	TagOverdue       DueDateTag = "overdue"
	TagDueSoon       DueDateTag = "due-soon"
	TagUpcoming      DueDateTag = "upcoming"
	TagDraftPastDue  DueDateTag = "draft-past-due"
	TagDraftDueToday DueDateTag = "draft-due-today"
	TagDraftDueSoon  DueDateTag = "draft-due-soon"
	TagDraftUpcoming DueDateTag = "draft-upcoming"
)

// dueSoonThresholdDays is the window within which an invoice counts as due soon.
const dueSoonThresholdDays = 3

// DueDateStatus is the classifier output: a display tag plus an absolute day
// count (days overdue, or days until due).
type DueDateStatus struct {
	Tag  DueDateTag `json:"tag"`
	Days int        `json:"days"`
}

// EffectiveDueDate resolves the date an invoice is actually due. This is the
// single source of truth: both the scheduler anchor and overdue/fee display
// must route through it.
//
// For due-on-receipt invoices that have been sent, the stored due date is
// replaced by the calendar date of the last mutation (the proxy for "when
// sent"). With forOverdueCheck the result shifts one day forward so that an
// invoice is not counted overdue on its send day itself. Any missing or
// unusable input falls back to the stored due date.
func EffectiveDueDate(inv Invoice, forOverdueCheck bool) time.Time {
	base := DateOf(inv.DueDate)
	pt := inv.PaymentTerms
	if pt == nil || !IsDueOnReceipt(*pt) {
		return base
	}
	if inv.Status == InvoiceStatusDraft || inv.UpdatedAt.IsZero() {
		return base
	}
	effective := DateOf(inv.UpdatedAt)
	if forOverdueCheck {
		effective = effective.AddDate(0, 0, 1)
	}
	return effective
}

// DiffDays returns the whole-day difference from today to the target date,
// rounding partial days up. Zero means due today, negative means past due.
func DiffDays(today, target time.Time) int {
	from := DateOf(today)
	to := DateOf(target)
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// ClassifyDueDate turns an effective due date and stored status into a
// DueDateStatus as of today.
func ClassifyDueDate(effective time.Time, status InvoiceStatus, today time.Time) DueDateStatus {
	diff := DiffDays(today, effective)

	if status == InvoiceStatusDraft {
		switch {
		case diff < 0:
			return DueDateStatus{Tag: TagDraftPastDue, Days: -diff}
		case diff == 0:
			return DueDateStatus{Tag: TagDraftDueToday, Days: 0}
		case diff <= dueSoonThresholdDays:
			return DueDateStatus{Tag: TagDraftDueSoon, Days: diff}
		default:
			return DueDateStatus{Tag: TagDraftUpcoming, Days: diff}
		}
	}

	switch {
	case diff <= 0:
		return DueDateStatus{Tag: TagOverdue, Days: -diff}
	case diff <= dueSoonThresholdDays:
		return DueDateStatus{Tag: TagDueSoon, Days: diff}
	default:
		return DueDateStatus{Tag: TagUpcoming, Days: diff}
	}
}

// Classify is a convenience over EffectiveDueDate and ClassifyDueDate using
// the overdue-check convention.
func Classify(inv Invoice, today time.Time) DueDateStatus {
	return ClassifyDueDate(EffectiveDueDate(inv, true), inv.Status, today)
}
