package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/fintrack/fintrack/internal/ledger"
)

var naturalDates = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseSince accepts a timestamp or date in any format the ledger reads, or
// a natural-language phrase such as "last month" or "3 days ago".
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := ledger.ParseDate(s); err == nil {
		return t, nil
	}

	r, err := naturalDates.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a date", s)
	}
	return r.Time, nil
}

// filterSince keeps transactions dated at or after since. A zero since keeps
// everything.
func filterSince(txs []ledger.Transaction, since time.Time) []ledger.Transaction {
	if since.IsZero() {
		return txs
	}
	out := make([]ledger.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Date.Before(since) {
			out = append(out, tx)
		}
	}
	return out
}
