package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/epidemica/contagio-server/internal/engine"
	"github.com/epidemica/contagio-server/internal/events"
	"github.com/epidemica/contagio-server/internal/platform/logger"
	"github.com/epidemica/contagio-server/internal/platform/metrics"
)

// Hub maintains the set of active viewer clients and broadcasts tick
// snapshots and run events to them. The hub never touches simulation state:
// the driver pushes read-only snapshots in, taken at tick boundaries.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu       sync.Mutex
	lastSnap *engine.Snapshot

	logger *logger.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("New viewer connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("Viewer disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.Get().RecordWSMessage(false)
				default:
					close(client.send)
					delete(h.clients, client)
					metrics.Get().RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// envelope wraps every outbound message so viewers can route by kind.
type envelope struct {
	Kind    string      `json:"kind"` // "snapshot", "event", "stats"
	Payload interface{} `json:"payload"`
}

// BroadcastSnapshot caches the given tick snapshot and sends it to all
// connected viewers. Satisfies engine.SnapshotSink.
func (h *Hub) BroadcastSnapshot(snap engine.Snapshot) {
	h.mu.Lock()
	h.lastSnap = &snap
	h.mu.Unlock()

	payload, err := json.Marshal(envelope{Kind: "snapshot", Payload: snap})
	if err != nil {
		h.logger.Error("Failed to serialize snapshot for WebSocket broadcast: %v", err)
		return
	}
	h.broadcast <- payload
}

// LastSnapshot returns the most recent snapshot pushed by the driver, or nil
// before the first tick.
func (h *Hub) LastSnapshot() *engine.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSnap
}

// BroadcastEvent serializes a run event and sends it to all viewers.
func (h *Hub) BroadcastEvent(event events.SimEvent) {
	payload, err := json.Marshal(envelope{Kind: "event", Payload: event})
	if err != nil {
		h.logger.Error("Failed to serialize SimEvent for WebSocket broadcast: %v", err)
		return
	}
	h.broadcast <- payload
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes new
// events to the Hub, so viewers see transitions without the engine knowing
// about the network layer.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	go func() {
		pollInterval := time.NewTicker(200 * time.Millisecond)
		defer pollInterval.Stop()

		lastProcessedEvent := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				allEvents := eventLog.Replay()
				newEventsCount := len(allEvents) - lastProcessedEvent

				if newEventsCount > 0 {
					newEvents := allEvents[lastProcessedEvent:]
					for _, event := range newEvents {
						h.BroadcastEvent(event)
					}
					lastProcessedEvent = len(allEvents)
				}
			}
		}
	}()
}
