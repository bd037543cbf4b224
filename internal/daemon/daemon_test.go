package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/syncer"
)

// fakeSyncer records quick-adds and returns err for every call when set.
type fakeSyncer struct {
	mu      sync.Mutex
	adds    []ledger.QuickAdd
	fetches int
	err     error
}

func (f *fakeSyncer) QuickAdd(_ context.Context, q ledger.QuickAdd) (syncer.Receipt, error) {
	amount, err := q.SignedAmount()
	if err != nil {
		return syncer.Receipt{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return syncer.Receipt{}, f.err
	}
	f.adds = append(f.adds, q)
	return syncer.Receipt{Transaction: ledger.NewTransaction(amount, q.Note, time.Now())}, nil
}

func (f *fakeSyncer) FetchAll(context.Context) []ledger.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return []ledger.Transaction{}
}

func (f *fakeSyncer) notes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, q := range f.adds {
		out = append(out, q.Note)
	}
	return out
}

func (f *fakeSyncer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newDaemon(t *testing.T, s Syncer) (*Daemon, string) {
	t.Helper()
	inbox := t.TempDir()
	d, err := New(s, &Config{Inbox: inbox, DebounceInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return d, inbox
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, &Config{Inbox: t.TempDir()}); err == nil {
		t.Error("New() with nil syncer should fail")
	}
	if _, err := New(&fakeSyncer{}, &Config{}); err == nil {
		t.Error("New() without inbox should fail")
	}
	if _, err := New(&fakeSyncer{}, &Config{Inbox: t.TempDir(), RefreshSchedule: "every tuesday"}); err == nil {
		t.Error("New() with invalid schedule should fail")
	}
	if _, err := New(&fakeSyncer{}, &Config{Inbox: t.TempDir(), RefreshSchedule: "@every 1m"}); err != nil {
		t.Errorf("New() with valid schedule failed: %v", err)
	}
}

func TestProcessFile_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		syncErr    error
		want       Outcome
		inInbox    bool
		inRejected bool
	}{
		{
			name:    "accepted",
			content: `{"amount": "12.50", "note": "lunch", "type": "expense"}`,
			want:    Accepted,
		},
		{
			name:       "malformed json",
			content:    `{"amount": `,
			want:       Rejected,
			inRejected: true,
		},
		{
			name:       "zero amount",
			content:    `{"amount": "0", "note": "nothing"}`,
			want:       Rejected,
			inRejected: true,
		},
		{
			name:       "unknown kind",
			content:    `{"amount": "5", "type": "gift"}`,
			want:       Rejected,
			inRejected: true,
		},
		{
			name:       "remote rejection",
			content:    `{"amount": "5"}`,
			syncErr:    &ledger.RemoteError{Kind: ledger.KindRejection, Message: "token invalid"},
			want:       Rejected,
			inRejected: true,
		},
		{
			name:    "transient failure",
			content: `{"amount": "5"}`,
			syncErr: &ledger.RemoteError{Kind: ledger.KindTransient, Message: "HTTP 503"},
			want:    Retry,
			inInbox: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSyncer{err: tt.syncErr}
			d, inbox := newDaemon(t, s)
			path := writeFile(t, inbox, "item.json", tt.content)

			if got := d.ProcessFile(context.Background(), path); got != tt.want {
				t.Errorf("ProcessFile() = %s, want %s", got, tt.want)
			}
			if got := exists(path); got != tt.inInbox {
				t.Errorf("file in inbox = %v, want %v", got, tt.inInbox)
			}
			if got := exists(filepath.Join(inbox, RejectedDir, "item.json")); got != tt.inRejected {
				t.Errorf("file in rejected = %v, want %v", got, tt.inRejected)
			}
		})
	}
}

func TestProcessFile_MissingFile(t *testing.T) {
	d, inbox := newDaemon(t, &fakeSyncer{})
	if got := d.ProcessFile(context.Background(), filepath.Join(inbox, "gone.json")); got != Accepted {
		t.Errorf("ProcessFile() on missing file = %s, want %s", got, Accepted)
	}
}

func TestScanInbox_NameOrder(t *testing.T) {
	s := &fakeSyncer{}
	d, inbox := newDaemon(t, s)

	writeFile(t, inbox, "02.json", `{"amount": "2", "note": "second"}`)
	writeFile(t, inbox, "01.json", `{"amount": "1", "note": "first"}`)
	writeFile(t, inbox, "notes.txt", `ignored`)

	if n := d.ScanInbox(context.Background()); n != 2 {
		t.Errorf("ScanInbox() = %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"first", "second"}, s.notes()); diff != "" {
		t.Errorf("submission order mismatch (-want +got):\n%s", diff)
	}
	if !exists(filepath.Join(inbox, "notes.txt")) {
		t.Error("non-json files must be left alone")
	}
}

func TestRefresh_RetriesLeftoverFiles(t *testing.T) {
	s := &fakeSyncer{err: errors.New("connection refused")}
	d, inbox := newDaemon(t, s)
	path := writeFile(t, inbox, "a.json", `{"amount": "3", "note": "retry me"}`)

	d.Refresh(context.Background())
	if !exists(path) {
		t.Fatal("file should stay in inbox after a transient failure")
	}

	s.setErr(nil)
	d.Refresh(context.Background())
	if exists(path) {
		t.Error("file should be removed once delivered")
	}
	if s.fetches != 2 {
		t.Errorf("FetchAll calls = %d, want 2", s.fetches)
	}
}

func TestStart_WatchesInbox(t *testing.T) {
	s := &fakeSyncer{}
	d, inbox := newDaemon(t, s)
	writeFile(t, inbox, "existing.json", `{"amount": "1", "note": "existing"}`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, func() bool { return len(s.notes()) == 1 })
	writeFile(t, inbox, "dropped.json", `{"amount": "2", "note": "dropped", "type": "income"}`)
	waitFor(t, func() bool { return len(s.notes()) == 2 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	if diff := cmp.Diff([]string{"existing", "dropped"}, s.notes()); diff != "" {
		t.Errorf("notes mismatch (-want +got):\n%s", diff)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
