package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
	"rosenkoenig/internal/realtime"
)

// ErrStopped is returned by calls made after Stop
var ErrStopped = errors.New("synchronizer stopped")

const (
	defaultFetchTimeout = 10 * time.Second
	defaultRetryBase    = 500 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
)

// Source loads the four collections that make up a session
type Source interface {
	FetchSession(ctx context.Context, id string) (*models.Session, error)
	FetchCells(ctx context.Context, id string) ([]models.Cell, error)
	FetchCards(ctx context.Context, id string) ([]models.Card, error)
	FetchMoves(ctx context.Context, id string) ([]models.Move, error)
}

// State is the locally cached copy of one session
type State struct {
	Session *models.Session
	Board   game.Board
	Deck    game.Deck
	Moves   game.MoveLog
}

// ReconcileFunc is called after a session snapshot is installed. prev is
// nil on the first snapshot.
type ReconcileFunc func(prev, next *models.Session)

// ConnectionFunc is told when live updates stop (err wraps
// game.ErrTransport) and when they resume (err is nil)
type ConnectionFunc func(err error)

// pending records which streams changed since the last refresh
type pending struct {
	session      *models.Session
	sessionDirty bool
	cells        bool
	cards        bool
	moves        bool
}

func (p pending) empty() bool {
	return p.session == nil && !p.sessionDirty && !p.cells && !p.cards && !p.moves
}

type request struct {
	fn    func() error
	reply chan error
}

type retry struct {
	gen     uint64
	id      string
	attempt int
}

// Synchronizer keeps a local State in step with one session. It holds at
// most one live subscription. Every state change happens on its dispatcher
// goroutine; feed callbacks only mark streams dirty. A subscription that
// ends on its own is re-established with exponential backoff, followed by
// a full reload.
type Synchronizer struct {
	source       Source
	feed         realtime.Subscriber
	logger       *zap.Logger
	fetchTimeout time.Duration
	retryBase    time.Duration
	retryMax     time.Duration

	mu         sync.Mutex
	state      State
	observers  map[int]func(State)
	nextObs    int
	reconcile  ReconcileFunc
	connection ConnectionFunc

	// owned by the dispatcher
	sub        realtime.Subscription
	sessionID  string
	retryTimer *time.Timer

	pendMu  sync.Mutex
	gen     uint64
	pending pending

	wake     chan struct{}
	requests chan request
	drops    chan uint64
	retries  chan retry
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewSynchronizer starts a synchronizer reading from source and feed
func NewSynchronizer(source Source, feed realtime.Subscriber, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synchronizer{
		source:       source,
		feed:         feed,
		logger:       logger,
		fetchTimeout: defaultFetchTimeout,
		retryBase:    defaultRetryBase,
		retryMax:     defaultRetryMax,
		observers:    map[int]func(State){},
		wake:         make(chan struct{}, 1),
		requests:     make(chan request),
		drops:        make(chan uint64),
		retries:      make(chan retry),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go s.run()
	return s
}

// SetReconcile installs the hook run after each session snapshot
func (s *Synchronizer) SetReconcile(fn ReconcileFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcile = fn
}

// SetConnectionHandler installs the hook told about lost and restored
// live updates
func (s *Synchronizer) SetConnectionHandler(fn ConnectionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = fn
}

// Observe registers fn to receive every installed state. The returned func
// removes it.
func (s *Synchronizer) Observe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// State returns the cached state
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open switches to session id: the previous subscription is released, a
// new one is made and all four collections are loaded. If subscribing
// fails the error wraps game.ErrTransport and the loaded state is kept.
func (s *Synchronizer) Open(ctx context.Context, id string) error {
	if id == "" {
		return game.Invalid("session", "session id is required")
	}
	return s.call(ctx, func() error { return s.open(ctx, id) })
}

// Close releases the current subscription and stops any reconnect in
// progress. It is safe to call when nothing is open.
func (s *Synchronizer) Close() error {
	err := s.call(context.Background(), func() error {
		s.release()
		return nil
	})
	if errors.Is(err, ErrStopped) {
		return nil
	}
	return err
}

// Stop releases the subscription and ends the dispatcher
func (s *Synchronizer) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.stopped
}

func (s *Synchronizer) call(ctx context.Context, fn func() error) error {
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.quit:
			s.release()
			return
		case req := <-s.requests:
			req.reply <- req.fn()
		case <-s.wake:
			s.refresh()
		case gen := <-s.drops:
			s.dropped(gen)
		case r := <-s.retries:
			s.reconnect(r)
		}
	}
}

func (s *Synchronizer) open(ctx context.Context, id string) error {
	s.release()

	gen := s.bumpGeneration()
	sub, err := s.feed.Subscribe(ctx, id, s.handlerFor(gen))
	if err != nil {
		s.logger.Warn("subscribe failed", zap.String("session_id", id), zap.Error(err))
		if errors.Is(err, game.ErrTransport) {
			return fmt.Errorf("subscribe to session %s: %w", id, err)
		}
		return fmt.Errorf("subscribe to session %s: %v: %w", id, err, game.ErrTransport)
	}
	s.sub = sub
	s.sessionID = id
	go s.watch(gen, sub)

	next, err := s.loadAll(ctx, id)
	if err != nil {
		s.release()
		return err
	}

	s.logger.Debug("session opened", zap.String("session_id", id))
	s.install(next, true)
	return nil
}

// release drops the subscription, cancels a pending reconnect and ignores
// any events still in flight
func (s *Synchronizer) release() {
	s.bumpGeneration()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", zap.String("session_id", s.sessionID), zap.Error(err))
		}
		s.sub = nil
	}
	s.sessionID = ""
}

// watch reports the end of sub to the dispatcher. Ends caused by release
// carry a stale generation and are ignored there.
func (s *Synchronizer) watch(gen uint64, sub realtime.Subscription) {
	select {
	case <-sub.Done():
	case <-s.quit:
		return
	}
	select {
	case s.drops <- gen:
	case <-s.quit:
	}
}

// dropped handles a subscription that ended on its own. The cached state
// stays visible while the dispatcher reconnects with backoff.
func (s *Synchronizer) dropped(gen uint64) {
	if gen != s.generation() || s.sub == nil {
		return
	}
	id := s.sessionID
	s.logger.Warn("live updates lost, reconnecting", zap.String("session_id", id))

	s.sub.Unsubscribe()
	s.sub = nil
	s.notifyConnection(fmt.Errorf("live updates for session %s stopped: %w", id, game.ErrTransport))
	s.scheduleRetry(s.bumpGeneration(), id, 0)
}

func (s *Synchronizer) scheduleRetry(gen uint64, id string, attempt int) {
	delay := s.retryMax
	if attempt < 16 {
		if d := s.retryBase << attempt; d > 0 && d < delay {
			delay = d
		}
	}
	s.retryTimer = time.AfterFunc(delay, func() {
		select {
		case s.retries <- retry{gen: gen, id: id, attempt: attempt}:
		case <-s.quit:
		}
	})
}

// reconnect subscribes again and reloads everything, since events were
// missed while the subscription was down
func (s *Synchronizer) reconnect(r retry) {
	if r.gen != s.generation() || r.id != s.sessionID {
		return
	}
	s.retryTimer = nil

	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	gen := s.bumpGeneration()
	sub, err := s.feed.Subscribe(ctx, r.id, s.handlerFor(gen))
	if err != nil {
		s.logger.Debug("reconnect failed",
			zap.String("session_id", r.id),
			zap.Int("attempt", r.attempt+1),
			zap.Error(err),
		)
		s.scheduleRetry(gen, r.id, r.attempt+1)
		return
	}

	next, err := s.loadAll(ctx, r.id)
	if err != nil {
		sub.Unsubscribe()
		s.logger.Debug("reload after reconnect failed",
			zap.String("session_id", r.id),
			zap.Int("attempt", r.attempt+1),
			zap.Error(err),
		)
		s.scheduleRetry(s.bumpGeneration(), r.id, r.attempt+1)
		return
	}

	s.sub = sub
	go s.watch(gen, sub)
	s.logger.Info("live updates restored", zap.String("session_id", r.id), zap.Int("attempts", r.attempt+1))
	s.install(next, true)
	s.notifyConnection(nil)
}

func (s *Synchronizer) notifyConnection(err error) {
	s.mu.Lock()
	fn := s.connection
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *Synchronizer) generation() uint64 {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	return s.gen
}

func (s *Synchronizer) bumpGeneration() uint64 {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	s.gen++
	s.pending = pending{}
	return s.gen
}

func (s *Synchronizer) handlerFor(gen uint64) realtime.Handler {
	return func(e realtime.Event) {
		s.enqueue(gen, e)
	}
}

// enqueue runs on the transport goroutine
func (s *Synchronizer) enqueue(gen uint64, e realtime.Event) {
	s.pendMu.Lock()
	if gen != s.gen {
		s.pendMu.Unlock()
		return
	}

	switch e.Table {
	case realtime.TableSessions:
		var row models.Session
		if len(e.New) > 0 && json.Unmarshal(e.New, &row) == nil && row.ID != "" {
			s.pending.session = &row
			s.pending.sessionDirty = false
		} else {
			s.pending.session = nil
			s.pending.sessionDirty = true
		}
	case realtime.TableCells:
		s.pending.cells = true
	case realtime.TableCards:
		s.pending.cards = true
	case realtime.TableMoves:
		s.pending.moves = true
	default:
		s.pendMu.Unlock()
		return
	}
	s.pendMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) takePending() pending {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	p := s.pending
	s.pending = pending{}
	return p
}

// refresh re-fetches the streams marked dirty and installs the result.
// Failures are logged; the affected stream keeps its previous value.
func (s *Synchronizer) refresh() {
	p := s.takePending()
	if p.empty() || s.sessionID == "" {
		return
	}
	id := s.sessionID

	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	next := s.State()
	var (
		session *models.Session
		cells   []models.Cell
		cards   []models.Card
		moves   []models.Move
	)

	g, gctx := errgroup.WithContext(ctx)
	if p.sessionDirty {
		g.Go(func() (err error) {
			session, err = s.source.FetchSession(gctx, id)
			return s.logged("session", id, err)
		})
	}
	if p.cells {
		g.Go(func() (err error) {
			cells, err = s.source.FetchCells(gctx, id)
			return s.logged("cells", id, err)
		})
	}
	if p.cards {
		g.Go(func() (err error) {
			cards, err = s.source.FetchCards(gctx, id)
			return s.logged("cards", id, err)
		})
	}
	if p.moves {
		g.Go(func() (err error) {
			moves, err = s.source.FetchMoves(gctx, id)
			return s.logged("moves", id, err)
		})
	}
	g.Wait()

	if p.session != nil {
		session = p.session
	}
	if session != nil {
		next.Session = session
		next.Board = next.Board.WithCrown(session.Crown)
	}
	if cells != nil && next.Session != nil {
		board, err := game.BoardFromCells(cells, next.Session.Crown)
		if err != nil {
			s.logger.Error("discarding malformed board", zap.String("session_id", id), zap.Error(err))
		} else {
			next.Board = board
		}
	}
	if cards != nil {
		next.Deck = game.NewDeck(cards)
	}
	if moves != nil {
		next.Moves = game.NewMoveLog(moves)
	}

	s.install(next, session != nil)
}

// logged records a background fetch failure. It never fails the group so
// the other streams still refresh.
func (s *Synchronizer) logged(stream, id string, err error) error {
	if err != nil {
		s.logger.Warn("background refresh failed",
			zap.String("session_id", id),
			zap.String("stream", stream),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Synchronizer) loadAll(ctx context.Context, id string) (State, error) {
	var (
		session *models.Session
		cells   []models.Cell
		cards   []models.Card
		moves   []models.Move
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		session, err = s.source.FetchSession(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		cells, err = s.source.FetchCells(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		cards, err = s.source.FetchCards(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		moves, err = s.source.FetchMoves(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return State{}, err
	}

	board, err := game.BoardFromCells(cells, session.Crown)
	if err != nil {
		return State{}, fmt.Errorf("session %s: %w", id, err)
	}
	return State{
		Session: session,
		Board:   board,
		Deck:    game.NewDeck(cards),
		Moves:   game.NewMoveLog(moves),
	}, nil
}

func (s *Synchronizer) install(next State, sessionChanged bool) {
	s.mu.Lock()
	prev := s.state.Session
	s.state = next
	reconcile := s.reconcile
	observers := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	if sessionChanged && reconcile != nil {
		reconcile(prev, next.Session)
	}
	for _, fn := range observers {
		fn(next)
	}
}
