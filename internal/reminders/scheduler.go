package reminders

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Plan is the scheduler output: rows to remove and rows to insert, applied
// as one unit by the store. Building a plan has no side effects, so the same
// inputs always produce the same plan and a full replace is safe.
type Plan struct {
	DeleteIDs []string
	Insert    []ScheduledReminder
}

// Empty reports whether applying the plan would be a no-op.
func (p Plan) Empty() bool {
	return len(p.DeleteIDs) == 0 && len(p.Insert) == 0
}

// shortNetDaysMax splits custom terms into the frequent short-cycle shape vs
// the long-lead shape.
const shortNetDaysMax = 15

var (
	offsetsDueOnReceipt = []int{1, 3, 7, 14}
	offsetsShortNet     = []int{-7, -3, 1, 7}
	offsetsLongNet      = []int{-14, -7, 1, 7}
	offsetsTwoTenNet30  = []int{-2, 1, 7, 14}
)

// smartOffsets selects the system-default reminder offsets for the invoice's
// payment-term family. Unknown labels fall back to extracting a leading net
// day count; labels without digits get the Net 30 shape.
func smartOffsets(pt *PaymentTerms) []int {
	if pt == nil || !pt.Enabled {
		return offsetsLongNet
	}
	if IsDueOnReceipt(*pt) {
		return offsetsDueOnReceipt
	}
	switch pt.Terms {
	case TermNet15:
		return offsetsShortNet
	case TermNet30:
		return offsetsLongNet
	case TermTwoTenNet30:
		return offsetsTwoTenNet30
	}
	net, ok := NetDays(pt.Terms)
	if !ok {
		return offsetsLongNet
	}
	if net <= shortNetDaysMax {
		return offsetsShortNet
	}
	return offsetsLongNet
}

// BuildPlan computes the reminder schedule replacing any previously scheduled
// (not yet sent) rows for the invoice.
//
// Draft and paid invoices, and invoices with reminders disabled, plan a pure
// purge. Eligible invoices get either the smart schedule for their term
// family or their own custom rules. A single reminder whose computed date is
// invalid is dropped; it never aborts the rest of the plan.
//
// Existing failed rows are deduplicated on every pass: per kind only the most
// recently created row survives, ties broken by ID descending.
func BuildPlan(inv Invoice, rules []ReminderRule, existing []ScheduledReminder, logger *slog.Logger) Plan {
	var plan Plan

	for _, row := range existing {
		if row.Status == ReminderStatusScheduled {
			plan.DeleteIDs = append(plan.DeleteIDs, row.ID)
		}
	}
	plan.DeleteIDs = append(plan.DeleteIDs, staleFailedIDs(existing)...)

	if !inv.Eligible() {
		return plan
	}
	settings := inv.ReminderSettings
	if settings == nil || !settings.Enabled {
		return plan
	}

	anchor := EffectiveDueDate(inv, false)

	if settings.UseSystemDefaults {
		for i, offset := range smartOffsets(inv.PaymentTerms) {
			at := anchor.AddDate(0, 0, offset)
			if !validDate(at) {
				if logger != nil {
					logger.Warn("dropping reminder with invalid date",
						slog.String("invoice_id", inv.ID),
						slog.Int("offset_days", offset))
				}
				continue
			}
			plan.Insert = append(plan.Insert, ScheduledReminder{
				ID:          uuid.NewString(),
				InvoiceID:   inv.ID,
				Kind:        kindOrder[i],
				OverdueDays: offset,
				ScheduledAt: at,
				Status:      ReminderStatusScheduled,
			})
		}
		return plan
	}

	type pending struct {
		offset int
		at     time.Time
	}
	var computed []pending
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		offset := rule.Days
		if rule.Direction == DirectionBefore {
			offset = -rule.Days
		}
		at := anchor.AddDate(0, 0, offset)
		if !validDate(at) {
			if logger != nil {
				logger.Warn("dropping custom rule with invalid date",
					slog.String("invoice_id", inv.ID),
					slog.String("rule_id", rule.ID))
			}
			continue
		}
		computed = append(computed, pending{offset: offset, at: at})
	}

	// Chronological order, not rule input order, determines kind assignment.
	sort.SliceStable(computed, func(i, j int) bool {
		return computed[i].at.Before(computed[j].at)
	})

	for i, p := range computed {
		kind := KindUrgent
		if i < len(kindOrder) {
			kind = kindOrder[i]
		}
		plan.Insert = append(plan.Insert, ScheduledReminder{
			ID:          uuid.NewString(),
			InvoiceID:   inv.ID,
			Kind:        kind,
			OverdueDays: p.offset,
			ScheduledAt: p.at,
			Status:      ReminderStatusScheduled,
		})
	}
	return plan
}

// staleFailedIDs returns the failed rows to drop so that at most one failed
// row per kind remains: the one with the greatest CreatedAt, ID descending on
// ties.
func staleFailedIDs(existing []ScheduledReminder) []string {
	keep := make(map[Kind]ScheduledReminder)
	var stale []string

	for _, row := range existing {
		if row.Status != ReminderStatusFailed {
			continue
		}
		current, ok := keep[row.Kind]
		if !ok {
			keep[row.Kind] = row
			continue
		}
		if newerFailed(row, current) {
			stale = append(stale, current.ID)
			keep[row.Kind] = row
		} else {
			stale = append(stale, row.ID)
		}
	}
	return stale
}

func newerFailed(a, b ScheduledReminder) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
