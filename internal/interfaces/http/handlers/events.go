package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	httpContracts "github.com/sawpanic/rankforum/internal/http"
)

const (
	eventWriteWait  = 10 * time.Second
	eventSendBuffer = 64
)

// EventHub fans settlement events out to websocket subscribers. Slow
// subscribers are dropped rather than allowed to block settlement paths.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*eventClient]struct{}

	upgrader websocket.Upgrader
	onCount  func(delta int)
}

type eventClient struct {
	conn *websocket.Conn
	send chan httpContracts.Event
}

// NewEventHub creates a hub. onCount, if non-nil, is called with +1/-1
// as subscribers come and go.
func NewEventHub(onCount func(delta int)) *EventHub {
	return &EventHub{
		clients: make(map[*eventClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		onCount: onCount,
	}
}

// Serve upgrades the request and streams events until the peer leaves.
func (h *EventHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &eventClient{
		conn: conn,
		send: make(chan httpContracts.Event, eventSendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	if h.onCount != nil {
		h.onCount(1)
	}

	go h.writeLoop(client)
	h.readLoop(client)
}

// Broadcast queues an event for every subscriber. Full queues drop the
// subscriber. Sends happen under the read lock and channels are only
// closed under the write lock, so a send can never hit a closed channel.
func (h *EventHub) Broadcast(ev httpContracts.Event) {
	var dead []*eventClient

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dead {
		h.remove(c)
	}
}

// Subscribers returns the current subscriber count.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) writeLoop(c *eventClient) {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *EventHub) readLoop(c *eventClient) {
	// Subscribers never send payloads; the read loop only notices EOF.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *EventHub) remove(c *eventClient) {
	h.mu.Lock()
	_, present := h.clients[c]
	if present {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if present {
		c.conn.Close()
		if h.onCount != nil {
			h.onCount(-1)
		}
	}
}
