package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"rosenkoenig/internal/models"
)

// NotifyChannel is the channel the database triggers announce changes on
const NotifyChannel = "rosenkoenig_changes"

// SessionLoader reads the current session row
type SessionLoader interface {
	FetchSession(ctx context.Context, id string) (*models.Session, error)
}

// PGBridge republishes pg_notify change announcements into a Publisher, so
// writes made by other processes against the same database reach
// subscribers of this server.
type PGBridge struct {
	listener *pq.Listener
	notify   <-chan *pq.Notification
	feed     Publisher
	sessions SessionLoader
	logger   *zap.Logger
}

// NewPGBridge connects a listener to the database at dsn
func NewPGBridge(dsn string, feed Publisher, sessions SessionLoader, logger *zap.Logger) (*PGBridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			logger.Info("notify listener connected")
		case pq.ListenerEventDisconnected:
			logger.Warn("notify listener disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			logger.Info("notify listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("notify listener connection attempt failed", zap.Error(err))
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	return &PGBridge{
		listener: listener,
		notify:   listener.Notify,
		feed:     feed,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// Run forwards notifications until ctx is cancelled
func (b *PGBridge) Run(ctx context.Context) error {
	defer b.listener.Close()

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-b.notify:
			if n == nil {
				// Reconnected; anything sent while disconnected is lost
				b.logger.Warn("notify listener lost notifications during reconnect")
				continue
			}
			b.handle(ctx, n.Extra)
		case <-ping.C:
			go func() {
				if err := b.listener.Ping(); err != nil {
					b.logger.Warn("notify listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

type notification struct {
	Table     string `json:"table"`
	Op        string `json:"op"`
	SessionID string `json:"session_id"`
}

func (b *PGBridge) handle(ctx context.Context, payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		b.logger.Warn("ignoring malformed notification", zap.String("payload", payload), zap.Error(err))
		return
	}
	if n.SessionID == "" {
		return
	}

	table := Table(n.Table)
	var row interface{}
	switch table {
	case TableSessions:
		s, err := b.sessions.FetchSession(ctx, n.SessionID)
		if err != nil {
			b.logger.Warn("failed to load notified session", zap.String("session_id", n.SessionID), zap.Error(err))
			return
		}
		row = s
	case TableCells, TableCards, TableMoves:
	default:
		b.logger.Debug("ignoring notification for unknown table", zap.String("table", n.Table))
		return
	}

	e, err := NewEvent(table, Op(n.Op), n.SessionID, row)
	if err != nil {
		b.logger.Error("failed to build event", zap.Error(err))
		return
	}
	b.feed.Publish(e)
}
