package ledger

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "integer", raw: "500", want: "500"},
		{name: "negative decimal", raw: "-12.50", want: "-12.5"},
		{name: "surrounding space", raw: "  42 ", want: "42"},
		{name: "empty", raw: "", wantErr: true},
		{name: "zero", raw: "0", wantErr: true},
		{name: "zero decimal", raw: "0.00", wantErr: true},
		{name: "NaN", raw: "NaN", wantErr: true},
		{name: "Inf", raw: "Inf", wantErr: true},
		{name: "text", raw: "twelve", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseAmount(%q) error = %v, want ErrValidation", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) failed: %v", tt.raw, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	ok := Transaction{ID: "tx-1", Amount: decimal.NewFromInt(5)}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() on valid transaction failed: %v", err)
	}

	noID := Transaction{Amount: decimal.NewFromInt(5)}
	var verr *ValidationError
	if err := noID.Validate(); !errors.As(err, &verr) || verr.Field != "id" {
		t.Errorf("Validate() without id = %v, want id ValidationError", err)
	}

	zero := Transaction{ID: "tx-1"}
	if err := zero.Validate(); !errors.As(err, &verr) || verr.Field != "amount" {
		t.Errorf("Validate() with zero amount = %v, want amount ValidationError", err)
	}
}

func TestNewTransaction(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("IST", 5*3600+1800))
	a := NewTransaction(decimal.NewFromInt(500), "salary", now)
	b := NewTransaction(decimal.NewFromInt(500), "salary", now)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids must be unique and non-empty: %q, %q", a.ID, b.ID)
	}
	if !a.Date.Equal(now) || a.Date.Location() != time.UTC {
		t.Errorf("Date = %v, want %v in UTC", a.Date, now)
	}
	if a.Note != "salary" {
		t.Errorf("Note = %q, want salary", a.Note)
	}
}

func TestTransactionJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		tx := Transaction{
			ID:     "tx-1",
			Date:   time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC),
			Amount: decimal.RequireFromString("-12.5"),
			Note:   "coffee",
		}
		data, err := json.Marshal(tx)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		want := `{"id":"tx-1","date":"2026-01-02T03:04:05.006Z","amount":-12.5,"note":"coffee"}`
		if string(data) != want {
			t.Errorf("Marshal = %s, want %s", data, want)
		}

		var back Transaction
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if back.ID != tx.ID || !back.Amount.Equal(tx.Amount) || !back.Date.Equal(tx.Date) || back.Note != tx.Note {
			t.Errorf("round trip = %+v, want %+v", back, tx)
		}
	})

	t.Run("sheet quirks", func(t *testing.T) {
		var tx Transaction
		if err := json.Unmarshal([]byte(`{"id":"x","date":"2026-02-01","amount":"300"}`), &tx); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !tx.Amount.Equal(decimal.NewFromInt(300)) {
			t.Errorf("Amount = %s, want 300", tx.Amount)
		}
		if tx.Note != "" {
			t.Errorf("Note = %q, want empty", tx.Note)
		}
		if tx.Date.Format("2006-01-02") != "2026-02-01" {
			t.Errorf("Date = %v", tx.Date)
		}
	})

	t.Run("loose cells", func(t *testing.T) {
		var tx Transaction
		data := `{"id":42,"date":"yesterday","amount":"","note":100}`
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if tx.ID != "42" {
			t.Errorf("ID = %q, want 42", tx.ID)
		}
		if !tx.Date.IsZero() {
			t.Errorf("Date = %v, want zero for unparseable date", tx.Date)
		}
		if !tx.Amount.IsZero() {
			t.Errorf("Amount = %s, want 0 for blank amount", tx.Amount)
		}
		if tx.Note != "100" {
			t.Errorf("Note = %q, want 100", tx.Note)
		}
	})

	t.Run("rejected records", func(t *testing.T) {
		for _, data := range []string{
			`{"id":"x","amount":"abc"}`,
			`{"id":"x","amount":true}`,
			`"just a string"`,
			`[1,2]`,
		} {
			var tx Transaction
			if err := json.Unmarshal([]byte(data), &tx); err == nil {
				t.Errorf("Unmarshal(%s) succeeded, want error", data)
			}
		}
	})
}

func TestTransactionFields(t *testing.T) {
	tx := Transaction{
		ID:     "tx-1",
		Date:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Amount: decimal.NewFromInt(-40),
	}
	want := Payload{
		"id":     "tx-1",
		"date":   "2026-01-02T03:04:05.000Z",
		"amount": "-40",
		"note":   "",
	}
	if diff := cmp.Diff(want, tx.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteErrorClassification(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	tests := []struct {
		err      *RemoteError
		sentinel error
	}{
		{&RemoteError{Kind: KindTransient, Message: "HTTP 502: Bad Gateway", StatusCode: 502}, ErrTransientNetwork},
		{&RemoteError{Kind: KindTransient, Message: "connection refused", Err: cause}, ErrTransientNetwork},
		{&RemoteError{Kind: KindProtocol, Message: "invalid JSON"}, ErrProtocol},
		{&RemoteError{Kind: KindRejection, Message: "token invalid"}, ErrRemoteRejection},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("%s: errors.Is(%v) = false", tt.err.Kind, tt.sentinel)
		}
		if !IsRemoteFailure(tt.err) {
			t.Errorf("%s: IsRemoteFailure = false", tt.err.Kind)
		}
		if IsValidation(tt.err) {
			t.Errorf("%s: IsValidation = true", tt.err.Kind)
		}
	}

	if !errors.Is(tests[1].err, cause) {
		t.Error("RemoteError should unwrap to its cause")
	}
	if tests[3].err.Error() != "token invalid" {
		t.Errorf("Error() = %q, want server message", tests[3].err.Error())
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range []Action{ActionFetch, ActionAdd, ActionUpdate, ActionDelete} {
		got, err := ParseAction(string(a))
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %q, %v", a, got, err)
		}
	}
	if _, err := ParseAction("sync"); err == nil {
		t.Error("ParseAction(sync) should fail")
	}
	if ActionFetch.IsMutation() {
		t.Error("fetch must not be a mutation")
	}
}

func TestQuickAddSignedAmount(t *testing.T) {
	tests := []struct {
		q    QuickAdd
		want string
	}{
		{QuickAdd{Amount: "250", Kind: KindExpense}, "-250"},
		{QuickAdd{Amount: "-250", Kind: KindExpense}, "-250"},
		{QuickAdd{Amount: "-1000", Kind: KindIncome}, "1000"},
		{QuickAdd{Amount: "-7"}, "-7"},
		{QuickAdd{Amount: "15", Kind: "EXPENSE"}, "-15"},
	}
	for _, tt := range tests {
		got, err := tt.q.SignedAmount()
		if err != nil {
			t.Fatalf("SignedAmount(%+v) failed: %v", tt.q, err)
		}
		if got.String() != tt.want {
			t.Errorf("SignedAmount(%+v) = %s, want %s", tt.q, got, tt.want)
		}
	}

	if _, err := (QuickAdd{Amount: "5", Kind: "gift"}).SignedAmount(); !IsValidation(err) {
		t.Errorf("unknown kind error = %v, want validation", err)
	}
	if _, err := (QuickAdd{Amount: "0", Kind: KindIncome}).SignedAmount(); !IsValidation(err) {
		t.Errorf("zero amount error = %v, want validation", err)
	}
}

func TestMonthlySummary(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
	txs := []Transaction{
		{ID: "a", Date: day(2026, 2, 3), Amount: decimal.NewFromInt(1000)},
		{ID: "b", Date: day(2026, 1, 31), Amount: decimal.NewFromInt(-20)},
		{ID: "c", Date: day(2026, 2, 28), Amount: decimal.RequireFromString("-99.5")},
	}

	got := MonthlySummary(txs)
	if len(got) != 2 {
		t.Fatalf("got %d months, want 2", len(got))
	}
	if got[0].Month != "2026-01" || got[0].Total.String() != "-20" || got[0].Count != 1 {
		t.Errorf("January = %+v", got[0])
	}
	if got[1].Month != "2026-02" || got[1].Total.String() != "900.5" || got[1].Count != 2 {
		t.Errorf("February = %+v", got[1])
	}

	totals := Summarize(txs)
	if totals.Income.String() != "1000" || totals.Expense.String() != "119.5" || totals.Balance.String() != "880.5" {
		t.Errorf("Summarize = income %s expense %s balance %s", totals.Income, totals.Expense, totals.Balance)
	}
}
