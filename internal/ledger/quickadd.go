package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is the income/expense choice made by quick-add collaborators such as
// home-screen widgets.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// QuickAdd is an external "add transaction" trigger. Amount is entered as a
// magnitude; the sign comes from Kind.
type QuickAdd struct {
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
	Kind   Kind   `json:"type,omitempty"`
}

// SignedAmount parses Amount and applies the sign implied by Kind. An empty
// Kind keeps the sign the caller typed.
func (q QuickAdd) SignedAmount() (decimal.Decimal, error) {
	amount, err := ParseAmount(q.Amount)
	if err != nil {
		return decimal.Zero, err
	}

	switch Kind(strings.ToLower(string(q.Kind))) {
	case "":
		return amount, nil
	case KindIncome:
		return amount.Abs(), nil
	case KindExpense:
		return amount.Abs().Neg(), nil
	default:
		return decimal.Zero, &ValidationError{Field: "type", Reason: "must be income or expense"}
	}
}
