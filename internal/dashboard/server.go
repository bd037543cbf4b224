// Package dashboard serves a live view of sync activity over WebSocket.
//
// Connected clients receive busy/idle transitions, queue activity, drain
// passes and snapshot refreshes as they happen. A /health endpoint reports
// the number of clients alongside the current busy flag and queue length.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/fintrack/fintrack/internal/logging"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeStatus is sent to every client on connect
	MessageTypeStatus MessageType = "status"

	// MessageTypeBusy indicates a remote call started or finished
	MessageTypeBusy MessageType = "busy"

	// MessageTypeQueued indicates a mutation was queued while offline
	MessageTypeQueued MessageType = "queued"

	// MessageTypeDelivered indicates a remote call succeeded
	MessageTypeDelivered MessageType = "delivered"

	// MessageTypeDrained indicates a drain pass finished
	MessageTypeDrained MessageType = "drained"

	// MessageTypeSnapshot indicates the cached snapshot was replaced
	MessageTypeSnapshot MessageType = "snapshot"

	// MessageTypeFailed indicates a remote call failed
	MessageTypeFailed MessageType = "failed"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StatusData is the payload of status messages and the /health response.
type StatusData struct {
	Busy    bool `json:"busy"`
	Pending int  `json:"pending"`
	Online  bool `json:"online"`
}

// StatusSource supplies the live values reported by the server.
type StatusSource interface {
	Busy() bool
	Online() bool
	QueueLength(ctx context.Context) (int, error)
}

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	source   StatusSource

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger logrus.FieldLogger
}

// Config holds server configuration
type Config struct {
	// Host to bind (default: all interfaces)
	Host string

	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	// Source reports busy state and queue length (optional)
	Source StatusSource

	// Logger for server activity (default: discard)
	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{Port: 8080}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		source:    config.Source,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logging.OrDiscard(config.Logger).WithField("component", "dashboard"),
	}
}

// Router returns the HTTP routes served by the dashboard.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)
	return r
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.WithField("addr", ln.Addr().String()).Info("dashboard listening")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("dashboard server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	return nil
}

// Broadcast sends a message to all connected clients. Messages are dropped
// when the broadcast buffer is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("broadcast channel full, dropping message")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.WithError(err).Warn("failed to marshal message")
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.WithError(err).Debug("failed to send to client")
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	// Welcome first so a client never sees an event before the status.
	welcome, err := s.statusMessage(r.Context())
	if err == nil {
		var data []byte
		data, err = json.Marshal(welcome)
		if err == nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			err = conn.Write(ctx, websocket.MessageText, data)
			cancel()
		}
	}
	if err != nil {
		s.logger.WithError(err).Warn("failed to send welcome message")
		_ = conn.Close(websocket.StatusInternalError, "welcome failed")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.WithField("clients", clientCount).Debug("client connected")

	go s.readLoop(conn)
}

// readLoop keeps the connection open until the client goes away.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; !exists {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.WithField("clients", clientCount).Debug("client disconnected")
}

func (s *Server) status(ctx context.Context) StatusData {
	if s.source == nil {
		return StatusData{}
	}
	st := StatusData{Busy: s.source.Busy(), Online: s.source.Online()}
	if n, err := s.source.QueueLength(ctx); err == nil {
		st.Pending = n
	} else {
		s.logger.WithError(err).Debug("queue length unavailable")
	}
	return st
}

func (s *Server) statusMessage(ctx context.Context) (Message, error) {
	data, err := json.Marshal(s.status(ctx))
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MessageTypeStatus, Timestamp: time.Now(), Data: data}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status(r.Context())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
		"busy":    st.Busy,
		"online":  st.Online,
		"pending": st.Pending,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>fintrack sync</title>
</head>
<body>
    <h1>fintrack sync dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
