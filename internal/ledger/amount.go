package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a caller-supplied amount. Empty, non-numeric and zero
// values are rejected with a *ValidationError.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must be numeric"}
	}
	if d.IsZero() {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must be non-zero"}
	}
	return d, nil
}
