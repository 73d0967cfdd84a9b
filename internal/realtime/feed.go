package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rosenkoenig/internal/game"
)

const subscriberBuffer = 256

// Feed is an in-process broker fanning events out to subscribers of the
// same session. Each subscription is served by its own goroutine so a slow
// handler never blocks publishers.
type Feed struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*feedSubscription
	nextID uint64
	closed bool
	logger *zap.Logger
}

// NewFeed creates an empty feed
func NewFeed(logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		subs:   make(map[string]map[uint64]*feedSubscription),
		logger: logger,
	}
}

type feedSubscription struct {
	feed      *Feed
	id        uint64
	sessionID string
	events    chan Event
	done      chan struct{}
	once      sync.Once
}

// Subscribe registers h for events of sessionID
func (f *Feed) Subscribe(ctx context.Context, sessionID string, h Handler) (Subscription, error) {
	if sessionID == "" {
		return nil, game.Invalid("session", "session id is required")
	}
	if h == nil {
		return nil, errors.New("nil handler")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %v: %w", sessionID, err, game.ErrTransport)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("feed closed: %w", game.ErrTransport)
	}

	f.nextID++
	sub := &feedSubscription{
		feed:      f,
		id:        f.nextID,
		sessionID: sessionID,
		events:    make(chan Event, subscriberBuffer),
		done:      make(chan struct{}),
	}
	if f.subs[sessionID] == nil {
		f.subs[sessionID] = make(map[uint64]*feedSubscription)
	}
	f.subs[sessionID][sub.id] = sub

	go sub.deliver(h)
	return sub, nil
}

// Publish hands e to every subscriber of e.SessionID
func (f *Feed) Publish(e Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs[e.SessionID] {
		select {
		case sub.events <- e:
		case <-sub.done:
		default:
			f.logger.Warn("dropping event for lagging subscriber",
				zap.String("session_id", e.SessionID),
				zap.String("table", string(e.Table)),
				zap.Uint64("subscription", sub.id),
			)
		}
	}
}

// Subscribers returns the number of live subscriptions for sessionID
func (f *Feed) Subscribers(sessionID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[sessionID])
}

// Close ends every subscription and rejects new ones
func (f *Feed) Close() {
	f.mu.Lock()
	var all []*feedSubscription
	for _, bySession := range f.subs {
		for _, sub := range bySession {
			all = append(all, sub)
		}
	}
	f.subs = make(map[string]map[uint64]*feedSubscription)
	f.closed = true
	f.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
}

func (s *feedSubscription) deliver(h Handler) {
	for {
		select {
		case <-s.done:
			return
		case e := <-s.events:
			h(e)
		}
	}
}

// Done is closed on Unsubscribe or when the feed closes
func (s *feedSubscription) Done() <-chan struct{} {
	return s.done
}

func (s *feedSubscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Unsubscribe removes the subscription. It is safe to call more than once
// and from inside the handler.
func (s *feedSubscription) Unsubscribe() error {
	s.feed.mu.Lock()
	if bySession := s.feed.subs[s.sessionID]; bySession != nil {
		delete(bySession, s.id)
		if len(bySession) == 0 {
			delete(s.feed.subs, s.sessionID)
		}
	}
	s.feed.mu.Unlock()

	s.stop()
	return nil
}
