package transport

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/fintrack/fintrack/internal/ledger"
)

// Result is a response that passed every validation step.
type Result struct {
	Action ledger.Action
	Body   json.RawMessage
}

// IsList reports whether the body is a bare JSON array.
func (r Result) IsList() bool {
	return gjson.ParseBytes(r.Body).IsArray()
}

// Transactions decodes a fetch response one record at a time. A body that is
// not a list yields an empty slice. Records that cannot be decoded are left
// out and reported in skipped so one bad row never hides the rest.
func (r Result) Transactions() (txs []ledger.Transaction, skipped []error) {
	txs = []ledger.Transaction{}
	if !r.IsList() {
		return txs, nil
	}

	for i, row := range gjson.ParseBytes(r.Body).Array() {
		var tx ledger.Transaction
		if err := json.Unmarshal([]byte(row.Raw), &tx); err != nil {
			skipped = append(skipped, &ledger.RemoteError{
				Kind:    ledger.KindProtocol,
				Action:  r.Action,
				Message: fmt.Sprintf("record %d: %v", i, err),
				Err:     err,
			})
			continue
		}
		txs = append(txs, tx)
	}
	return txs, skipped
}

// Field returns a top-level field of an object body as a string.
func (r Result) Field(name string) string {
	return gjson.GetBytes(r.Body, name).String()
}
