package netcheck

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSwitch(t *testing.T) {
	s := NewSwitch(false)
	if s.Online() {
		t.Error("new offline switch reports online")
	}
	s.Set(true)
	if !s.Online() {
		t.Error("switch should report online after Set(true)")
	}
}

func TestNewProbe_Ports(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"https://script.example.com/macros/s/abc/exec", "script.example.com:443"},
		{"http://localhost/api", "localhost:80"},
		{"http://127.0.0.1:8081/exec", "127.0.0.1:8081"},
	}
	for _, tt := range tests {
		p, err := NewProbe(tt.endpoint, time.Second)
		if err != nil {
			t.Fatalf("NewProbe(%q) failed: %v", tt.endpoint, err)
		}
		if p.Addr != tt.want {
			t.Errorf("NewProbe(%q).Addr = %q, want %q", tt.endpoint, p.Addr, tt.want)
		}
	}

	if _, err := NewProbe("ftp://example.com", time.Second); err == nil {
		t.Error("expected error for unsupported scheme")
	}
	if _, err := NewProbe("/relative/path", time.Second); err == nil {
		t.Error("expected error for endpoint without host")
	}
}

func TestProbe_Online(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	p, err := NewProbe(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewProbe() failed: %v", err)
	}

	if !p.Online() {
		t.Error("probe should be online while server is listening")
	}

	srv.Close()
	if p.Online() {
		t.Error("probe should be offline after server closed")
	}
}

func TestProbe_UsesDialer(t *testing.T) {
	var gotAddr string
	p := &Probe{
		Addr:    "remote:443",
		Timeout: time.Second,
		dial: func(network, addr string, timeout time.Duration) (net.Conn, error) {
			gotAddr = addr
			client, server := net.Pipe()
			_ = server.Close()
			return client, nil
		},
	}
	if !p.Online() || gotAddr != "remote:443" {
		t.Errorf("Online() dialed %q", gotAddr)
	}
}

func TestFromMode(t *testing.T) {
	on, err := FromMode(ModeOnline, "", 0)
	if err != nil || !on.Online() {
		t.Errorf("FromMode(online) = %v, %v", on, err)
	}
	off, err := FromMode(ModeOffline, "", 0)
	if err != nil || off.Online() {
		t.Errorf("FromMode(offline) = %v, %v", off, err)
	}
	if _, err := FromMode("sometimes", "", 0); err == nil {
		t.Error("expected error for unknown mode")
	}
}
