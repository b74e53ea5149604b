package reminders

import "time"

// Charges is the read-time financial status of an invoice once late fees are
// applied. Rounding to display precision is left to the caller.
type Charges struct {
	HasLateFee            bool    `json:"has_late_fee"`
	LateFeeAmount         float64 `json:"late_fee_amount"`
	TotalPayable          float64 `json:"total_payable"`
	ChargeableOverdueDays int     `json:"chargeable_overdue_days"`
}

// ComputeCharges computes the accrued late fee and total payable for an
// invoice as of today. Only sent invoices accrue fees; draft and paid
// invoices always owe their face total.
func ComputeCharges(inv Invoice, today time.Time) Charges {
	base := Charges{TotalPayable: inv.Total}

	if inv.Status != InvoiceStatusSent {
		return base
	}
	policy := inv.LateFees
	if policy == nil || !policy.Enabled || policy.Amount <= 0 {
		return base
	}

	status := Classify(inv, today)
	if status.Tag != TagOverdue || status.Days <= 0 {
		return base
	}

	chargeable := status.Days - policy.GracePeriodDays
	if chargeable <= 0 {
		// Still within the grace period.
		return base
	}

	var fee float64
	switch policy.Type {
	case FeeTypeFixed:
		fee = policy.Amount
	case FeeTypePercentage:
		fee = inv.Total * policy.Amount / 100
	default:
		return base
	}

	return Charges{
		HasLateFee:            true,
		LateFeeAmount:         fee,
		TotalPayable:          inv.Total + fee,
		ChargeableOverdueDays: chargeable,
	}
}
