package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressHub broadcasts phase-transition events for in-flight analyses
// to any connected /ws/progress client, adapted from the mempool
// poller's broadcast hub — the phases here are fetching, building_graph,
// analyzing, scoring, done rather than block/mempool events.
type ProgressHub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewProgressHub() *ProgressHub {
	h := &ProgressHub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
	go h.run()
	return h
}

func (h *ProgressHub) run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[ProgressHub] write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades the request to a websocket connection and registers
// it for progress broadcasts until it disconnects.
func (h *ProgressHub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[ProgressHub] upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

type progressEvent struct {
	RequestID string `json:"requestId"`
	Phase     string `json:"phase"`
}

// Notify publishes a phase transition for requestID. Safe to call with a
// nil hub (no-op), so progress broadcasting can be wired optionally.
func (h *ProgressHub) Notify(requestID, phase string) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(progressEvent{RequestID: requestID, Phase: phase})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Printf("[ProgressHub] broadcast channel full, dropping phase event for %s", requestID)
	}
}
