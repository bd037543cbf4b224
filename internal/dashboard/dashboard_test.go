package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/syncer"
)

type fakeSource struct {
	busy    bool
	online  bool
	pending int
}

func (f *fakeSource) Busy() bool   { return f.busy }
func (f *fakeSource) Online() bool { return f.online }
func (f *fakeSource) QueueLength(context.Context) (int, error) {
	return f.pending, nil
}

func startServer(t *testing.T, source StatusSource) *Server {
	t.Helper()
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0, Source: source})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, server *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, server.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWelcomeStatus(t *testing.T) {
	server := startServer(t, &fakeSource{busy: true, online: true, pending: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("Expected welcome message type %s, got %s", MessageTypeStatus, msg.Type)
	}

	var st StatusData
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}
	if !st.Busy || !st.Online || st.Pending != 3 {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	numClients := 3
	for i := 0; i < numClients; i++ {
		conn := dial(t, ctx, server)
		readMessage(t, ctx, conn)
	}
	waitForClients(t, server, numClients)
}

func TestHandlerEvents(t *testing.T) {
	server := startServer(t, nil)
	handler := NewHandler(server, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)
	waitForClients(t, server, 1)

	handler.OnBusy(true)
	handler.Notify(syncer.Event{Type: syncer.EventQueued, Action: ledger.ActionAdd, ID: "tx-1", Pending: 1})
	handler.Notify(syncer.Event{Type: syncer.EventDrained, Count: 1, Pending: 0})
	handler.Notify(syncer.Event{Type: syncer.EventFailed, Action: ledger.ActionFetch, Error: "HTTP 500"})

	want := []MessageType{MessageTypeBusy, MessageTypeQueued, MessageTypeDrained, MessageTypeFailed}
	var got []Message
	for range want {
		got = append(got, readMessage(t, ctx, conn))
	}
	for i, msg := range got {
		if msg.Type != want[i] {
			t.Errorf("message %d: expected type %s, got %s", i, want[i], msg.Type)
		}
	}

	var busy BusyData
	if err := json.Unmarshal(got[0].Data, &busy); err != nil || !busy.Busy {
		t.Errorf("Unexpected busy payload %s (%v)", got[0].Data, err)
	}

	var queued EventData
	if err := json.Unmarshal(got[1].Data, &queued); err != nil {
		t.Fatalf("Failed to unmarshal queued payload: %v", err)
	}
	if queued.Action != "add" || queued.ID != "tx-1" || queued.Pending != 1 {
		t.Errorf("Unexpected queued payload %+v", queued)
	}

	stats := handler.GetStats()
	if stats.Queued != 1 || stats.Drains != 1 || stats.Failed != 1 || stats.Pending != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestHealth(t *testing.T) {
	server := NewServer(&Config{Source: &fakeSource{online: true, pending: 2}})
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
		Busy    bool   `json:"busy"`
		Online  bool   `json:"online"`
		Pending int    `json:"pending"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body.Status != "ok" || body.Clients != 0 || body.Busy || !body.Online || body.Pending != 2 {
		t.Errorf("Unexpected health %+v", body)
	}
}
