package ws

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"krysselista/internal/auth"
	"krysselista/internal/messaging"
	"krysselista/internal/notify"
	"krysselista/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients connect from app contexts, not browsers
	},
}

// Feed is one live update pushed to a connected client.
type Feed struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	conn    *websocket.Conn
	session auth.Session
	writeMu sync.Mutex
}

func (c *client) send(f Feed) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// Hub owns the store subscriptions for the message and notification
// collections and fans changes out to connected clients. Unlike the mobile
// app's whole-collection listeners, delivery is narrowed server-side:
// message events go only to the two participants, notification events only
// to clients matching the target role and kindergarten.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	unsubscribe []store.UnsubscribeFunc
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Start registers the collection subscriptions. Callback failures are
// logged and the subscriptions stay live.
func (h *Hub) Start(ctx context.Context, st store.Store) error {
	unsubMsgs, err := st.Subscribe(ctx, messaging.Collection, h.onMessageEvent)
	if err != nil {
		return err
	}
	h.unsubscribe = append(h.unsubscribe, unsubMsgs)

	unsubNotifs, err := st.Subscribe(ctx, notify.Collection, h.onNotificationEvent)
	if err != nil {
		unsubMsgs()
		return err
	}
	h.unsubscribe = append(h.unsubscribe, unsubNotifs)
	return nil
}

// Stop tears down the store subscriptions and closes every connection.
// Skipping this leaks live listeners firing into a dead hub.
func (h *Hub) Stop() {
	for _, unsub := range h.unsubscribe {
		unsub()
	}
	h.unsubscribe = nil

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

// Handler upgrades an authenticated request to a WebSocket connection.
// The token travels in the query string since browsers and the websocket
// dialer cannot set the Authorization header on upgrade.
func (h *Hub) Handler(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token missing"})
			return
		}
		sess, err := authSvc.SessionFromToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("ws: upgrade failed: %v", err)
			return
		}

		cl := &client{conn: conn, session: sess}
		h.mu.Lock()
		h.clients[cl] = struct{}{}
		h.mu.Unlock()
		log.Printf("ws: client connected: %s (%s)", sess.UserID, sess.Role)

		go h.readLoop(cl)
	}
}

// readLoop drains inbound frames until the peer disconnects. The feed is
// push-only; inbound payloads are ignored.
func (h *Hub) readLoop(cl *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		_ = cl.conn.Close()
		log.Printf("ws: client disconnected: %s", cl.session.UserID)
	}()
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) onMessageEvent(evt store.Event) {
	if evt.Data == nil {
		return
	}
	msg := messaging.FromDoc(evt.Data)
	h.deliver(Feed{Event: "message", Data: msg}, func(s auth.Session) bool {
		return s.UserID == msg.SenderID || s.UserID == msg.ReceiverID
	})
}

func (h *Hub) onNotificationEvent(evt store.Event) {
	if evt.Data == nil {
		return
	}
	n := notify.FromDoc(evt.Data)
	h.deliver(Feed{Event: "notification", Data: n}, func(s auth.Session) bool {
		return s.Role == n.TargetRole && s.KindergartenID == n.KindergartenID
	})
}

func (h *Hub) deliver(f Feed, match func(auth.Session) bool) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if match(c.session) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(f); err != nil {
			log.Printf("ws: send to %s failed: %v", c.session.UserID, err)
		}
	}
}
