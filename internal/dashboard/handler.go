package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fintrack/fintrack/internal/logging"
	"github.com/fintrack/fintrack/internal/syncer"
)

// EventData is the payload of queue and sync messages.
type EventData struct {
	Action  string `json:"action,omitempty"`
	ID      string `json:"id,omitempty"`
	Count   int    `json:"count,omitempty"`
	Pending int    `json:"pending"`
	Error   string `json:"error,omitempty"`
}

// BusyData is the payload of busy messages.
type BusyData struct {
	Busy bool `json:"busy"`
}

// StatsData counts events seen since the handler started.
type StatsData struct {
	Queued    int `json:"queued"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Drains    int `json:"drains"`
	Pending   int `json:"pending"`
}

// Handler turns coordinator events into dashboard messages. It implements
// syncer.Notifier, and OnBusy is meant to be registered with
// Coordinator.OnBusyChange.
type Handler struct {
	server *Server
	logger logrus.FieldLogger

	mu    sync.Mutex
	stats StatsData
}

var _ syncer.Notifier = (*Handler)(nil)

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger logrus.FieldLogger) *Handler {
	return &Handler{
		server: server,
		logger: logging.OrDiscard(logger),
	}
}

// Notify implements syncer.Notifier.
func (h *Handler) Notify(e syncer.Event) {
	var typ MessageType
	h.mu.Lock()
	switch e.Type {
	case syncer.EventQueued:
		typ = MessageTypeQueued
		h.stats.Queued++
		h.stats.Pending = e.Pending
	case syncer.EventDelivered:
		typ = MessageTypeDelivered
		h.stats.Delivered++
	case syncer.EventFailed:
		typ = MessageTypeFailed
		h.stats.Failed++
	case syncer.EventDrained:
		typ = MessageTypeDrained
		h.stats.Drains++
		h.stats.Pending = e.Pending
	case syncer.EventSnapshot:
		typ = MessageTypeSnapshot
	default:
		h.mu.Unlock()
		h.logger.WithField("type", e.Type).Debug("ignoring unknown event")
		return
	}
	pending := h.stats.Pending
	h.mu.Unlock()

	h.send(typ, e.Time, EventData{
		Action:  string(e.Action),
		ID:      e.ID,
		Count:   e.Count,
		Pending: pending,
		Error:   e.Error,
	})
}

// OnBusy broadcasts a busy/idle transition.
func (h *Handler) OnBusy(busy bool) {
	h.send(MessageTypeBusy, time.Now(), BusyData{Busy: busy})
}

func (h *Handler) send(typ MessageType, at time.Time, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.WithError(err).Warn("failed to marshal dashboard payload")
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: at, Data: data})
}

// GetStats returns the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
