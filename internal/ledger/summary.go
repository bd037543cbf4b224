package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// MonthTotal is the net amount for one calendar month (YYYY-MM).
type MonthTotal struct {
	Month string          `json:"month" yaml:"month"`
	Total decimal.Decimal `json:"total" yaml:"total"`
	Count int             `json:"count" yaml:"count"`
}

// MonthlySummary nets transactions per UTC month, oldest month first.
func MonthlySummary(txs []Transaction) []MonthTotal {
	byMonth := make(map[string]*MonthTotal)
	for _, tx := range txs {
		month := tx.Date.UTC().Format("2006-01")
		mt, ok := byMonth[month]
		if !ok {
			mt = &MonthTotal{Month: month, Total: decimal.Zero}
			byMonth[month] = mt
		}
		mt.Total = mt.Total.Add(tx.Amount)
		mt.Count++
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Totals is the widget view: gross income, gross expense and balance.
type Totals struct {
	Income  decimal.Decimal `json:"income" yaml:"income"`
	Expense decimal.Decimal `json:"expense" yaml:"expense"`
	Balance decimal.Decimal `json:"balance" yaml:"balance"`
}

// Summarize computes Totals. Expense is reported as a positive magnitude.
func Summarize(txs []Transaction) Totals {
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero, Balance: decimal.Zero}
	for _, tx := range txs {
		if tx.Amount.IsPositive() {
			t.Income = t.Income.Add(tx.Amount)
		} else {
			t.Expense = t.Expense.Add(tx.Amount.Abs())
		}
		t.Balance = t.Balance.Add(tx.Amount)
	}
	return t
}
