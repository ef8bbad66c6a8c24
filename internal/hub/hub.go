package hub

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is the send side of a viewer connection.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type Client struct {
	id    string
	conn  Conn
	ready bool
}

func (c *Client) Id() string {
	return c.id
}

// Hub owns the registry of viewer connections. A connection receives
// broadcasts only after it has sent its first message.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *logrus.Entry
}

func New(logger *logrus.Entry) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(conn Conn) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	h.mu.Lock()
	h.clients[id] = &Client{id: id, conn: conn}
	h.mu.Unlock()

	h.logger.WithField("client", id).Info("viewer connected")
	return id
}

// Unregister removes the client and reports whether it was still registered.
func (h *Hub) Unregister(id string) bool {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if ok {
		h.logger.WithField("client", id).Info("viewer removed")
	}
	return ok
}

// MarkReady flips the client to ready. It returns true only on the first
// transition.
func (h *Hub) MarkReady(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok || c.ready {
		return false
	}
	c.ready = true
	h.logger.WithField("client", id).Info("viewer ready")
	return true
}

func (h *Hub) SnapshotReady() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ready := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.ready {
			ready = append(ready, c)
		}
	}
	return ready
}

func (h *Hub) Count() (total, ready int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		total++
		if c.ready {
			ready++
		}
	}
	return total, ready
}

// Broadcast sends v to every client ready at call time and returns how many
// sends succeeded. A failed client is unregistered and closed; the others
// still receive v.
func (h *Hub) Broadcast(v any) int {
	targets := h.SnapshotReady()
	h.logger.Debugf("broadcasting to %d ready viewers", len(targets))

	sent := 0
	for _, c := range targets {
		if err := c.conn.WriteJSON(v); err != nil {
			h.logger.WithError(err).WithField("client", c.id).Warn("send failed, dropping viewer")
			if h.Unregister(c.id) {
				c.conn.Close()
			}
			continue
		}
		sent++
	}
	return sent
}

// CloseAll closes and forgets every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for id, c := range clients {
		c.conn.Close()
		h.logger.WithField("client", id).Debug("viewer closed")
	}
}
