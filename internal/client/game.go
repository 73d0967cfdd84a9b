package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/interaction"
	"rosenkoenig/internal/models"
	"rosenkoenig/internal/realtime"
	"rosenkoenig/internal/rules"
)

const submitTimeout = 15 * time.Second

// Backend is what a Game needs from the server
type Backend interface {
	Source
	SubmitMove(ctx context.Context, sessionID, cardID string, destination models.Coord, origin *models.Coord) (*rules.TurnResult, error)
	Forfeit(ctx context.Context, sessionID string) (*models.Session, error)
}

// Game is one player's view of one session at a time. It owns the
// synchronizer and the interaction controller and turns move proposals
// into submissions.
type Game struct {
	backend  Backend
	sync     *Synchronizer
	ctrl     *interaction.Controller
	playerID string
	logger   *zap.Logger

	mu       sync.Mutex
	pending  bool
	offline  bool
	lastErr  error
	notify   []func(string)
	changed  []func()
	cancelFn []func()
}

// NewGame wires a game for playerID
func NewGame(backend Backend, feed realtime.Subscriber, playerID string, logger *zap.Logger) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Game{
		backend:  backend,
		sync:     NewSynchronizer(backend, feed, logger),
		ctrl:     interaction.NewController(),
		playerID: playerID,
		logger:   logger,
	}
	g.sync.SetReconcile(g.reconcile)
	g.sync.SetConnectionHandler(g.connectionChanged)
	g.cancelFn = append(g.cancelFn,
		g.sync.Observe(g.stateInstalled),
		g.ctrl.OnEvent(g.controllerEvent),
	)
	return g
}

// Controller returns the interaction controller driven by the UI
func (g *Game) Controller() *interaction.Controller {
	return g.ctrl
}

// State returns the cached session state
func (g *Game) State() State {
	return g.sync.State()
}

// PlayerID returns the local player
func (g *Game) PlayerID() string {
	return g.playerID
}

// Seat returns the seat of the local player in the open session
func (g *Game) Seat() models.Seat {
	st := g.sync.State()
	if st.Session == nil {
		return models.SeatNone
	}
	return st.Session.SeatOf(g.playerID)
}

// Pending reports whether a submitted move is awaiting its answer
func (g *Game) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Offline reports whether live updates are down and being re-established
func (g *Game) Offline() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.offline
}

// LastError returns the error of the most recent failed submission
func (g *Game) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// OnNotify registers fn for player-facing messages
func (g *Game) OnNotify(fn func(string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notify = append(g.notify, fn)
}

// OnChange registers fn to run whenever state or pending status changes
func (g *Game) OnChange(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.changed = append(g.changed, fn)
}

// Open starts following session id
func (g *Game) Open(ctx context.Context, id string) error {
	if err := g.sync.Open(ctx, id); err != nil {
		return err
	}
	g.mu.Lock()
	g.offline = false
	g.mu.Unlock()
	return nil
}

// Forfeit concedes the open session
func (g *Game) Forfeit(ctx context.Context) error {
	st := g.sync.State()
	if st.Session == nil {
		return game.Invalid("session", "no session is open")
	}
	_, err := g.backend.Forfeit(ctx, st.Session.ID)
	return err
}

// Close stops following the session and releases the controller hooks
func (g *Game) Close() {
	g.mu.Lock()
	cancels := g.cancelFn
	g.cancelFn = nil
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	g.sync.Stop()
}

func (g *Game) reconcile(prev, next *models.Session) {
	if next == nil {
		return
	}
	g.ctrl.Reconcile(next.ID, next.Turn)
}

func (g *Game) connectionChanged(err error) {
	g.mu.Lock()
	g.offline = err != nil
	g.mu.Unlock()

	if err != nil {
		g.logger.Warn("live updates lost", zap.Error(err))
		g.say(game.Describe(err))
	} else {
		g.say("Live updates restored.")
	}
	g.fireChanged()
}

func (g *Game) stateInstalled(st State) {
	seat := models.SeatNone
	if st.Session != nil {
		seat = st.Session.SeatOf(g.playerID)
	}
	g.ctrl.SetPosition(st.Board, seat)
	g.fireChanged()
}

func (g *Game) controllerEvent(e interaction.Event) {
	if e.Type != interaction.EventMoveMade || e.Proposal == nil {
		return
	}
	if err := g.Submit(*e.Proposal); err != nil {
		g.say(game.Describe(err))
	}
}

// Submit sends a proposal to the server in the background. It fails at
// once when the proposal cannot be turned into a move or another move is
// still pending.
func (g *Game) Submit(p interaction.Proposal) error {
	st := g.sync.State()
	if st.Session == nil {
		return game.Invalid("session", "no session is open")
	}
	card, err := ResolveCard(st, st.Session.SeatOf(g.playerID), p)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.pending {
		g.mu.Unlock()
		return game.Invalid("move", "the previous move is still being checked")
	}
	g.pending = true
	g.lastErr = nil
	g.mu.Unlock()
	g.fireChanged()

	sessionID := st.Session.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()

		_, err := g.backend.SubmitMove(ctx, sessionID, card.ID, p.Destination, p.Origin)

		g.mu.Lock()
		g.pending = false
		g.lastErr = err
		g.mu.Unlock()

		if err != nil {
			g.logger.Info("move refused",
				zap.String("session_id", sessionID),
				zap.String("card_id", card.ID),
				zap.Error(err),
			)
			g.say(game.Describe(err))
		}
		g.fireChanged()
	}()
	return nil
}

// ResolveCard picks the card a proposal plays. A card proposal uses its
// card; a drag uses the first unused card of seat that reaches the
// destination from the origin, preferring a hero when the destination is
// held by the opponent.
func ResolveCard(st State, seat models.Seat, p interaction.Proposal) (models.Card, error) {
	if !seat.Valid() {
		return models.Card{}, game.Invalid("seat", "you are not seated in this session")
	}
	if p.Card != nil {
		return *p.Card, nil
	}
	if p.Origin == nil {
		return models.Card{}, game.Invalid("card", "choose a card or drag from the crown or one of your cells")
	}

	wantKind := models.CardInfluence
	if st.Board.Owner(p.Destination) == seat.Opponent() {
		wantKind = models.CardHero
	}

	var fallback *models.Card
	for _, c := range st.Deck.Hand(seat) {
		if c.Target(*p.Origin) != p.Destination {
			continue
		}
		if c.Kind == wantKind {
			return c, nil
		}
		if fallback == nil {
			card := c
			fallback = &card
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return models.Card{}, game.Invalid("card", "no card in your hand reaches that cell")
}

func (g *Game) say(msg string) {
	g.mu.Lock()
	fns := append(([]func(string))(nil), g.notify...)
	g.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (g *Game) fireChanged() {
	g.mu.Lock()
	fns := append(([]func())(nil), g.changed...)
	g.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
