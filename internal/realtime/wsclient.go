package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rosenkoenig/internal/game"
)

// RemoteFeed subscribes to a server's live endpoint over websocket. It
// satisfies Subscriber so clients can use it in place of an in-process Feed.
type RemoteFeed struct {
	baseURL *url.URL
	token   string
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// NewRemoteFeed creates a websocket subscriber for the API at baseURL
// (http or https). token is sent as a bearer credential.
func NewRemoteFeed(baseURL, token string, logger *zap.Logger) (*RemoteFeed, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteFeed{
		baseURL: u,
		token:   token,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// LiveURL returns the websocket endpoint for sessionID
func (f *RemoteFeed) LiveURL(sessionID string) string {
	u := *f.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/sessions/" + url.PathEscape(sessionID) + "/live"
	return u.String()
}

// Subscribe dials the live endpoint. Handler calls happen on one reader
// goroutine in arrival order.
func (f *RemoteFeed) Subscribe(ctx context.Context, sessionID string, h Handler) (Subscription, error) {
	if sessionID == "" {
		return nil, game.Invalid("session", "session id is required")
	}

	header := http.Header{}
	if f.token != "" {
		header.Set("Authorization", "Bearer "+f.token)
	}

	conn, resp, err := f.dialer.DialContext(ctx, f.LiveURL(sessionID), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("subscribe %s: status %d: %w", sessionID, resp.StatusCode, game.ErrTransport)
		}
		return nil, fmt.Errorf("subscribe %s: %v: %w", sessionID, err, game.ErrTransport)
	}

	sub := &remoteSubscription{
		conn:   conn,
		done:   make(chan struct{}),
		ended:  make(chan struct{}),
		logger: f.logger.With(zap.String("session_id", sessionID)),
	}
	go sub.read(h)
	return sub, nil
}

type remoteSubscription struct {
	conn      *websocket.Conn
	done      chan struct{}
	ended     chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// Done is closed when the reader stops, after Unsubscribe or a lost connection
func (s *remoteSubscription) Done() <-chan struct{} {
	return s.ended
}

func (s *remoteSubscription) read(h Handler) {
	defer close(s.ended)
	defer s.conn.Close()
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPingHandler(func(data string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("live connection lost", zap.Error(err))
			}
			return
		}

		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			s.logger.Warn("ignoring malformed event", zap.Error(err))
			continue
		}
		h(e)
	}
}

// Unsubscribe closes the connection; the reader stops on its next read
func (s *remoteSubscription) Unsubscribe() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		select {
		case <-s.ended:
			// the reader already lost the connection and closed it
			return
		default:
		}
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}
