package handle

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"neuro-scan/api/internal/capture"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub рассылает события контроллера всем WebSocket-клиентам.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// EventMessage — событие в формате для клиента (с готовой подписью кнопки).
type EventMessage struct {
	capture.Event
	Status string `json:"status"`
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				_ = client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			log.Printf("events: client connected, total=%d", n)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				_ = client.Close()
			}
			n := len(h.clients)
			h.mutex.Unlock()
			log.Printf("events: client disconnected, total=%d", n)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("events: write: %v", err)
					_ = client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Pump переносит события контроллера в рассылку до закрытия канала.
func (h *Hub) Pump(events <-chan capture.Event) {
	for ev := range events {
		h.Publish(EventMessage{Event: ev, Status: capture.StatusText(ev)})
	}
}

func (h *Hub) Publish(v any) {
	message, err := json.Marshal(v)
	if err != nil {
		log.Printf("events: marshal: %v", err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		log.Println("events: broadcast channel is full, dropping message")
	}
}

func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: upgrade: %v", err)
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("events: read: %v", err)
				}
				return
			}
		}
	}()
}
