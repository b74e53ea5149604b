package reminders

import (
	"regexp"
	"strconv"
	"strings"
)

// Well-known payment term labels.
const (
	TermDueOnReceipt = "Due on Receipt"
	TermNet15        = "Net 15"
	TermNet30        = "Net 30"
	TermTwoTenNet30  = "2/10 Net 30"

	// aliasDueOnReceipt is the preset alias stored alongside the label when
	// the invoice was created from a default option.
	aliasDueOnReceipt = "due_on_receipt"
)

var firstNumberPattern = regexp.MustCompile(`\d+`)

// IsDueOnReceipt reports whether the payment terms resolve to due-on-receipt,
// by exact label or by the preset alias.
func IsDueOnReceipt(pt PaymentTerms) bool {
	if !pt.Enabled {
		return false
	}
	return pt.Terms == TermDueOnReceipt || pt.DefaultOption == aliasDueOnReceipt
}

// NetDays extracts the net payment window from a custom term label by taking
// the first number found, e.g. "Net 45 EOM" -> 45. The second value reports
// whether a number was present at all; callers without one fall back to the
// Net 30 shape.
func NetDays(label string) (int, bool) {
	match := firstNumberPattern.FindString(label)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseRuleDays converts a raw day count from user input into a non-negative
// int. Non-numeric input degrades to zero rather than failing the rule.
func ParseRuleDays(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
