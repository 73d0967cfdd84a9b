package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 64
)

// Hub streams feed events for one session to websocket peers
type Hub struct {
	feed     Subscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a hub over feed. checkOrigin may be nil to accept any origin.
func NewHub(feed Subscriber, checkOrigin func(r *http.Request) bool, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// peer is one websocket connection watching a session
type peer struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	gone      chan struct{}
	logger    *zap.Logger
}

// Serve subscribes to sessionID and upgrades the request. The feed
// subscription is in place before the handshake completes, so a client
// that has connected will not miss later events.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	p := &peer{
		send:   make(chan []byte, sendBuffer),
		gone:   make(chan struct{}),
		logger: h.logger.With(zap.String("session_id", sessionID)),
	}

	sub, err := h.feed.Subscribe(r.Context(), sessionID, func(e Event) {
		data, err := json.Marshal(e)
		if err != nil {
			p.logger.Error("failed to encode event", zap.Error(err))
			return
		}
		select {
		case p.send <- data:
		case <-p.gone:
		default:
			p.logger.Warn("peer too slow, disconnecting")
			p.close()
		}
	})
	if err != nil {
		h.logger.Error("failed to subscribe peer", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "subscription failed", http.StatusBadGateway)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		sub.Unsubscribe()
		return
	}
	p.conn = conn
	if counter, ok := h.feed.(interface{ Subscribers(string) int }); ok {
		p.logger.Debug("peer connected", zap.Int("subscribers", counter.Subscribers(sessionID)))
	} else {
		p.logger.Debug("peer connected")
	}

	// a feed that shuts down takes its peers with it
	go func() {
		select {
		case <-sub.Done():
			p.close()
		case <-p.gone:
		}
	}()

	go p.writePump()
	p.readPump()

	sub.Unsubscribe()
	p.close()
	p.logger.Debug("peer disconnected")
}

func (p *peer) close() {
	p.closeOnce.Do(func() { close(p.gone) })
}

// readPump discards client frames and keeps the read deadline moving with
// pongs. It returns when the peer goes away.
func (p *peer) readPump() {
	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Warn("peer read failed", zap.Error(err))
			}
			return
		}
		select {
		case <-p.gone:
			return
		default:
		}
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.gone:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				p.close()
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}
		}
	}
}
