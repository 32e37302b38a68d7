package websocket

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Hub owns every open client socket of this instance, keyed by userId. All
// map mutations happen on the Run goroutine.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastReq
	incoming   chan IncomingMessage
	OnIncoming func(IncomingMessage)
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	logger     *log.Logger
}

type broadcastReq struct {
	UserIDs []string
	Message OutgoingMessage
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastReq),
		incoming:   make(chan IncomingMessage),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	h.logger.Info("hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.UserID]; ok && old != c {
				close(old.Send)
			}
			h.clients[c.UserID] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("hub register", "user", c.UserID, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			// a newer socket of the same user may have replaced c already
			if cur, ok := h.clients[c.UserID]; ok && cur == c {
				delete(h.clients, c.UserID)
				close(c.Send)
				h.logger.Debug("hub unregister", "user", c.UserID, "clients", len(h.clients))
			}
			h.mu.Unlock()

		case req := <-h.broadcast:
			h.mu.RLock()
			for _, id := range req.UserIDs {
				if client, ok := h.clients[id]; ok {
					select {
					case client.Send <- req.Message:
					default:
						h.logger.Warn("dropping message for slow client", "user", id, "event", req.Message.Event)
					}
				}
			}
			h.mu.RUnlock()

		case msg := <-h.incoming:
			if h.OnIncoming != nil {
				h.OnIncoming(msg)
			} else {
				h.logger.Debug("ignoring client frame", "user", msg.From, "event", msg.Event)
			}

		case <-h.quit:
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// add registers c. It reports false once the hub is closed.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) receive(msg IncomingMessage) {
	select {
	case h.incoming <- msg:
	case <-h.quit:
	}
}

func (h *Hub) BroadcastToUsers(userIDs []string, msg OutgoingMessage) {
	select {
	case h.broadcast <- broadcastReq{UserIDs: userIDs, Message: msg}:
	case <-h.quit:
	}
}

func (h *Hub) SendToUser(userID string, msg OutgoingMessage) {
	h.BroadcastToUsers([]string{userID}, msg)
}

func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}
