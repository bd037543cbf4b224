package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// DateLayout is the ISO-8601 form used on the wire and in the local store.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// dateLayouts are accepted when decoding dates produced by the remote sheet.
var dateLayouts = []string{
	time.RFC3339Nano,
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Transaction is a single income (positive amount) or expense (negative
// amount) record.
type Transaction struct {
	ID     string          `json:"id"`
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

// NewTransaction builds a transaction with a fresh id.
func NewTransaction(amount decimal.Decimal, note string, now time.Time) Transaction {
	return Transaction{
		ID:     uuid.NewString(),
		Date:   now.UTC(),
		Amount: amount,
		Note:   note,
	}
}

// Validate checks the invariants a transaction must hold before it is
// dispatched.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if t.Amount.IsZero() {
		return &ValidationError{Field: "amount", Reason: "must be a non-zero number"}
	}
	return nil
}

// IsIncome reports whether the amount is positive.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// Fields returns the transaction as flat form fields.
func (t Transaction) Fields() Payload {
	return Payload{
		"id":     t.ID,
		"date":   FormatDate(t.Date),
		"amount": t.Amount.String(),
		"note":   t.Note,
	}
}

// FormatDate renders a timestamp in DateLayout, always in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate accepts the date forms the remote sheet is known to return.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// transactionJSON is the wire form of a Transaction.
type transactionJSON struct {
	ID     string          `json:"id"`
	Date   string          `json:"date"`
	Amount json.RawMessage `json:"amount"`
	Note   string          `json:"note"`
}

// MarshalJSON writes the amount as a bare JSON number and the date in
// DateLayout.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:     t.ID,
		Date:   FormatDate(t.Date),
		Amount: json.RawMessage(t.Amount.String()),
		Note:   t.Note,
	})
}

// UnmarshalJSON decodes a record as the remote sheet returns it. Scalar ids
// and notes of any JSON type are taken as text, a missing, null or blank
// amount is zero, and a date in none of the dateLayouts is left zero. Only a
// non-object record or a non-numeric amount is an error.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid transaction JSON")
	}
	rec := gjson.ParseBytes(data)
	if !rec.IsObject() {
		return fmt.Errorf("transaction must be an object, got %s", rec.Type)
	}

	id := rec.Get("id").String()
	amount, err := decodeAmount(rec.Get("amount"))
	if err != nil {
		return fmt.Errorf("transaction %s: %w", id, err)
	}

	var date time.Time
	if s := rec.Get("date").String(); s != "" {
		if d, err := ParseDate(s); err == nil {
			date = d
		}
	}

	t.ID = id
	t.Date = date
	t.Amount = amount
	t.Note = rec.Get("note").String()
	return nil
}

func decodeAmount(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Null:
		return decimal.Zero, nil
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("amount %q is not a number", v.Str)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("amount %s is not a number", v.Raw)
	}
}
