// Package feed publishes the framework-facing call model over
// websockets: every session and conference lifecycle event goes out as
// one JSON envelope to every subscriber.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

const (
	TypeSessionAdded        = "session_added"
	TypeSessionUpdated      = "session_updated"
	TypeSessionDestroyed    = "session_destroyed"
	TypeConferenceAdded     = "conference_added"
	TypeConferenceUpdated   = "conference_updated"
	TypeConferenceDestroyed = "conference_destroyed"
	TypeConnectionEvent     = "connection_event"
)

// Envelope is the single frame shape on the feed.
type Envelope struct {
	Type       string          `json:"type"`
	Session    *SessionView    `json:"session,omitempty"`
	Conference *ConferenceView `json:"conference,omitempty"`
	Cause      *CauseView      `json:"cause,omitempty"`
	Event      string          `json:"event,omitempty"`
}

// Hub implements core.FrameworkBridge by fanning envelopes out to the
// subscriber set. Bridge callbacks arrive on the manager's serial
// queue; views are built there, before anything crosses a goroutine.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) broadcast(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "feed").Msg("envelope marshal")
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		if err := c.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "feed").Msg("dropping slow subscriber")
			c.Close()
			h.unregister(c)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleFeed upgrades the request and subscribes the connection.
func (h *Hub) HandleFeed(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "feed").Msg("ws upgrade")
		return
	}
	client := newClient(ws)
	h.register(client)
	log.Info().Str("module", "feed").Int("subscribers", h.ClientCount()).Msg("feed subscriber joined")

	ctx, cancel := context.WithCancel(ctx)
	go client.writePump(ctx)
	go client.readPump(ctx, func() {
		cancel()
		h.unregister(client)
	})
}

// core.FrameworkBridge implementation.

func (h *Hub) OnSessionAdded(s *core.Session) {
	v := NewSessionView(s)
	h.broadcast(Envelope{Type: TypeSessionAdded, Session: &v})
}

func (h *Hub) OnSessionUpdated(s *core.Session) {
	v := NewSessionView(s)
	h.broadcast(Envelope{Type: TypeSessionUpdated, Session: &v})
}

func (h *Hub) OnSessionDestroyed(s *core.Session, cause domain.DisconnectDescriptor) {
	v := NewSessionView(s)
	cv := NewCauseView(cause)
	h.broadcast(Envelope{Type: TypeSessionDestroyed, Session: &v, Cause: &cv})
}

func (h *Hub) OnConferenceAdded(c *core.Conference) {
	v := NewConferenceView(c, nil)
	h.broadcast(Envelope{Type: TypeConferenceAdded, Conference: &v})
}

func (h *Hub) OnConferenceUpdated(c *core.Conference) {
	v := NewConferenceView(c, nil)
	h.broadcast(Envelope{Type: TypeConferenceUpdated, Conference: &v})
}

func (h *Hub) OnConferenceDestroyed(c *core.Conference) {
	v := NewConferenceView(c, nil)
	h.broadcast(Envelope{Type: TypeConferenceDestroyed, Conference: &v})
}

func (h *Hub) OnConnectionEvent(s *core.Session, event string) {
	v := NewSessionView(s)
	h.broadcast(Envelope{Type: TypeConnectionEvent, Session: &v, Event: event})
}
