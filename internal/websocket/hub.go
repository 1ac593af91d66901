package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/scribesync/api/internal/model"
)

// Client represents a WebSocket subscriber watching one job
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job status transitions out to WebSocket subscribers. Subscribers
// are grouped by job id; a transition for a job with no watchers is dropped.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	jobID   string
	payload []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.jobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.payload:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastStatus pushes a job status transition to all subscribers.
func (h *Hub) BroadcastStatus(jobID string, status model.JobStatus, markdownFileID string) {
	msg := model.WSStatusMessage{
		Type:           model.WSMessageTypeStatus,
		JobID:          jobID,
		Status:         status,
		MarkdownFileID: markdownFileID,
	}
	h.send(jobID, msg)
}

// BroadcastError pushes a job failure to all subscribers.
func (h *Hub) BroadcastError(jobID, code, message string) {
	msg := model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	}
	h.send(jobID, msg)
}

func (h *Hub) send(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] failed to marshal message: %v", err)
		return
	}
	h.broadcast <- &broadcastMessage{jobID: jobID, payload: data}
}

// HandleConnection serves one subscriber until the connection drops.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: we only care about disconnects.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	<-done
}
