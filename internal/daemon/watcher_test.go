package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInboxWatcher_StartStop(t *testing.T) {
	w, err := NewInboxWatcher()
	if err != nil {
		t.Fatalf("NewInboxWatcher() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}

	if err := w.Start(t.TempDir()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := w.Start(t.TempDir()); err == nil {
		t.Error("Start() on a running watcher should fail")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

func TestInboxWatcher_MissingDir(t *testing.T) {
	w, err := NewInboxWatcher()
	if err != nil {
		t.Fatalf("NewInboxWatcher() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Start() on a missing directory should fail")
	}
}

func TestInboxWatcher_JSONOnly(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, RejectedDir), 0o755); err != nil {
		t.Fatalf("Failed to create rejected dir: %v", err)
	}

	w, err := NewInboxWatcher()
	if err != nil {
		t.Fatalf("NewInboxWatcher() failed: %v", err)
	}
	if err := w.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	// Neither of these should produce an event.
	writeFile(t, dir, "readme.txt", "x")
	writeFile(t, filepath.Join(dir, RejectedDir), "old.json", "{}")

	path := writeFile(t, dir, "add.json", `{"amount": "1"}`)
	want, _ := filepath.Abs(path)

	select {
	case ev := <-w.Events():
		if ev.Path != want {
			t.Errorf("event path = %s, want %s", ev.Path, want)
		}
		if ev.Op != OpCreate && ev.Op != OpModify {
			t.Errorf("event op = %s, want create or modify", ev.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbox event")
	}
}

func TestEventOpString(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("EventOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
