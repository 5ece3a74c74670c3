package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/scan"
)

// Event represents a message sent to websocket clients
type Event struct {
	Type      string       `json:"type"`
	Status    string       `json:"status,omitempty"`
	Label     string       `json:"label,omitempty"`
	Fraction  float64      `json:"fraction"`
	Error     string       `json:"error,omitempty"`
	Scan      *scan.Status `json:"scan,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// FromScanEvent converts a runner notification into a websocket message.
func FromScanEvent(e scan.Event) Event {
	status := e.Status
	return Event{
		Type:      "scan",
		Status:    e.Kind,
		Label:     e.Label,
		Fraction:  e.Fraction,
		Error:     status.Error,
		Scan:      &status,
		Timestamp: time.Now().Unix(),
	}
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans scan events out to every connected websocket client.
type Hub struct {
	Log *logging.Logger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	// done is closed once Run has stopped receiving
	done     chan struct{}
	doneOnce sync.Once
	mu       sync.RWMutex
}

func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		Log:        log.Tag(logging.TagHTTP),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.doneOnce.Do(func() { close(h.done) })
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(event Event) {
	encoded, err := json.Marshal(event)
	if err != nil {
		h.Log.Error("failed to marshal event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- encoded:
	default:
		h.Log.Warn("dropping event, broadcast channel full", zap.String("type", event.Type))
	}
}

// NotifyScan is a scan.Runner Notify hook.
func (h *Hub) NotifyScan(e scan.Event) {
	h.Broadcast(FromScanEvent(e))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and registers a client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// writer
	go func() {
		for msg := range client.send {
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		client.conn.Close()
	}()

	// reader (just consume pings/close)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
