// Package stream pushes run lifecycle events to websocket clients. The hub
// is fed by the event bus bridge, so anything emitted during a compliance
// run reaches every connected dashboard in real time.
package stream

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/propply/backend/internal/events"
)

// Wire event types sent to websocket clients.
const (
	TypeRunStarted      = "run_started"
	TypeDomainCompleted = "domain_completed"
	TypeRunCompleted    = "run_completed"
	TypeRunFailed       = "run_failed"
	TypeSyncCompleted   = "sync_completed"
)

// streamTypes maps bus event types onto the shorter wire names.
var streamTypes = map[string]string{
	events.EventRunStarted:         TypeRunStarted,
	events.EventRunDomainCompleted: TypeDomainCompleted,
	events.EventRunCompleted:       TypeRunCompleted,
	events.EventRunFailed:          TypeRunFailed,
	events.EventSyncCompleted:      TypeSyncCompleted,
}

// RunEvent is one message on the websocket stream.
type RunEvent struct {
	Type      string                 `json:"type"`
	RunID     string                 `json:"run_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// RunStreamer manages WebSocket connections for live run updates
type RunStreamer struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan RunEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewRunStreamer creates a new run streamer
func NewRunStreamer() *RunStreamer {
	return &RunStreamer{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan RunEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}
}

// Run starts the WebSocket hub
func (rs *RunStreamer) Run() {
	for {
		select {
		case client := <-rs.register:
			rs.mu.Lock()
			rs.clients[client] = true
			rs.mu.Unlock()
			log.Printf("📡 WebSocket client connected (total: %d)", rs.ClientCount())

		case client := <-rs.unregister:
			rs.mu.Lock()
			if _, ok := rs.clients[client]; ok {
				delete(rs.clients, client)
				client.Close()
			}
			rs.mu.Unlock()
			log.Printf("📡 WebSocket client disconnected (total: %d)", rs.ClientCount())

		case event := <-rs.broadcast:
			rs.mu.Lock()
			for client := range rs.clients {
				err := client.WriteJSON(event)
				if err != nil {
					log.Printf("WebSocket write error: %v", err)
					client.Close()
					delete(rs.clients, client)
				}
			}
			rs.mu.Unlock()
		}
	}
}

// HandleWebSocket handles WebSocket connections
func (rs *RunStreamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := rs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	rs.register <- conn

	// Keep connection alive
	go func() {
		defer func() {
			rs.unregister <- conn
		}()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

// BroadcastEvent sends an event to all connected clients
func (rs *RunStreamer) BroadcastEvent(event RunEvent) {
	event.Timestamp = time.Now()
	rs.broadcast <- event
}

// BridgeEventBus subscribes to the bus and forwards every event to
// websocket clients. The returned channel can be handed back to
// bus.Unsubscribe on shutdown.
func (rs *RunStreamer) BridgeEventBus(bus *events.EventBus) chan *events.CloudEvent {
	ch := bus.Subscribe()
	go func() {
		for ce := range ch {
			wireType, ok := streamTypes[ce.Type]
			if !ok {
				wireType = ce.Type
			}
			rs.BroadcastEvent(RunEvent{
				Type:  wireType,
				RunID: ce.RunID,
				Data:  ce.Data,
			})
		}
	}()
	return ch
}

// ClientCount returns the number of connected clients.
func (rs *RunStreamer) ClientCount() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.clients)
}

// GetStatistics returns WebSocket statistics
func (rs *RunStreamer) GetStatistics() map[string]interface{} {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return map[string]interface{}{
		"connected_clients": len(rs.clients),
		"broadcast_queue":   len(rs.broadcast),
	}
}
