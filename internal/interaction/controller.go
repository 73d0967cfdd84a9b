// Package interaction turns pointer and keyboard input on the board into
// move proposals. Everything it shows is provisional; the server decides
// whether a proposal is legal.
package interaction

import (
	"sync"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
)

// Mode is the controller state
type Mode int

const (
	ModeIdle Mode = iota
	ModeCardSelected
	ModeDragOrigin
	ModeDragHover
)

func (m Mode) String() string {
	switch m {
	case ModeCardSelected:
		return "card-selected"
	case ModeDragOrigin:
		return "drag-origin-set"
	case ModeDragHover:
		return "drag-target-hover"
	}
	return "idle"
}

// EventType names what a listener is told about
type EventType string

const (
	EventCellClick EventType = "cell-click"
	EventCellHover EventType = "cell-hover"
	EventCellLeave EventType = "cell-leave"
	EventMoveMade  EventType = "move-made"
)

// Proposal is a move the player asked for. Card is set when the move came
// from a selected card, Origin when it came from a drag.
type Proposal struct {
	Card        *models.Card
	Origin      *models.Coord
	Destination models.Coord
}

// Event is delivered to listeners after the controller state has changed
type Event struct {
	Type     EventType
	Cell     models.Coord
	Proposal *Proposal
}

// Key is a keyboard input the controller understands
type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
)

// View is a snapshot of the controller for rendering
type View struct {
	Mode       Mode
	Selected   *models.Card
	Origin     *models.Coord
	Hover      *models.Coord
	Highlights []models.Coord
	Cursor     models.Coord
}

// Highlighted reports whether c is one of the provisional targets
func (v View) Highlighted(c models.Coord) bool {
	for _, h := range v.Highlights {
		if h == c {
			return true
		}
	}
	return false
}

// Controller is the input state machine. It is safe for concurrent use;
// listeners run on the calling goroutine after the lock is released.
type Controller struct {
	mu         sync.Mutex
	mode       Mode
	board      game.Board
	seat       models.Seat
	sessionID  string
	turn       models.Seat
	selected   *models.Card
	origin     *models.Coord
	hover      *models.Coord
	highlights []models.Coord
	cursor     models.Coord

	listeners map[int]func(Event)
	nextID    int
}

// NewController returns an idle controller with the cursor on the centre
func NewController() *Controller {
	return &Controller{
		board:     game.NewBoard(),
		cursor:    models.Center,
		listeners: map[int]func(Event){},
	}
}

// OnEvent registers fn and returns a func that removes it
func (c *Controller) OnEvent(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// SetPosition updates the board and the seat the local player acts for
func (c *Controller) SetPosition(board game.Board, seat models.Seat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.board = board
	c.seat = seat
	if c.origin != nil {
		c.highlights = c.board.Candidates(*c.origin, c.seat)
	}
}

// Reconcile resets the controller when the session or the turn owner
// differs from the last call
func (c *Controller) Reconcile(sessionID string, turn models.Seat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sessionID == c.sessionID && turn == c.turn {
		return
	}
	c.sessionID = sessionID
	c.turn = turn
	c.resetLocked()
}

// SelectCard chooses a hand card. Any drag in progress is dropped.
func (c *Controller) SelectCard(card models.Card) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearDragLocked()
	selected := card
	c.selected = &selected
	c.mode = ModeCardSelected
}

// Cancel returns to idle from any state
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// CellClick handles a click or pointer release on cell
func (c *Controller) CellClick(cell models.Coord) {
	if !cell.InBounds() {
		return
	}

	c.mu.Lock()
	events := []Event{{Type: EventCellClick, Cell: cell}}

	switch c.mode {
	case ModeCardSelected:
		p := &Proposal{Card: c.selected, Destination: cell}
		events = append(events, Event{Type: EventMoveMade, Cell: cell, Proposal: p})
		c.resetLocked()

	case ModeDragOrigin, ModeDragHover:
		switch {
		case c.highlightedLocked(cell):
			origin := *c.origin
			p := &Proposal{Origin: &origin, Destination: cell}
			events = append(events, Event{Type: EventMoveMade, Cell: cell, Proposal: p})
			c.resetLocked()
		case *c.origin == cell:
			c.resetLocked()
		case c.draggableLocked(cell):
			c.startDragLocked(cell)
		}

	case ModeIdle:
		if c.draggableLocked(cell) {
			c.startDragLocked(cell)
		}
	}

	listeners := c.listenersLocked()
	c.mu.Unlock()
	dispatch(listeners, events)
}

// CellHover handles the pointer entering cell
func (c *Controller) CellHover(cell models.Coord) {
	if !cell.InBounds() {
		return
	}

	c.mu.Lock()
	hover := cell
	c.hover = &hover
	if c.mode == ModeDragOrigin && cell != *c.origin {
		c.mode = ModeDragHover
	}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	dispatch(listeners, []Event{{Type: EventCellHover, Cell: cell}})
}

// CellLeave handles the pointer leaving cell
func (c *Controller) CellLeave(cell models.Coord) {
	if !cell.InBounds() {
		return
	}

	c.mu.Lock()
	if c.hover != nil && *c.hover == cell {
		c.hover = nil
		if c.mode == ModeDragHover {
			c.mode = ModeDragOrigin
		}
	}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	dispatch(listeners, []Event{{Type: EventCellLeave, Cell: cell}})
}

// HandleKey applies keyboard input. Arrows move the cursor, which acts as
// the pointer; Enter clicks the cursor cell.
func (c *Controller) HandleKey(k Key) {
	switch k {
	case KeyEscape:
		c.Cancel()
		return
	case KeyEnter:
		c.CellClick(c.Cursor())
		return
	}

	dx, dy := 0, 0
	switch k {
	case KeyUp:
		dy = -1
	case KeyDown:
		dy = 1
	case KeyLeft:
		dx = -1
	case KeyRight:
		dx = 1
	default:
		return
	}

	c.mu.Lock()
	prev := c.cursor
	c.cursor = models.Coord{X: clamp(prev.X + dx), Y: clamp(prev.Y + dy)}
	next := c.cursor
	c.mu.Unlock()

	if next != prev {
		c.CellLeave(prev)
		c.CellHover(next)
	}
}

// Cursor returns the keyboard cursor
func (c *Controller) Cursor() models.Coord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// View returns a copy of the current state
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Mode:       c.mode,
		Highlights: append([]models.Coord(nil), c.highlights...),
		Cursor:     c.cursor,
	}
	if c.selected != nil {
		card := *c.selected
		v.Selected = &card
	}
	if c.origin != nil {
		o := *c.origin
		v.Origin = &o
	}
	if c.hover != nil {
		h := *c.hover
		v.Hover = &h
	}
	return v
}

func (c *Controller) ownsLocked(cell models.Coord) bool {
	return c.seat.Valid() && c.board.Owner(cell) == c.seat
}

// draggableLocked reports whether a drag may start at cell: the crown or
// a cell the local seat owns
func (c *Controller) draggableLocked(cell models.Coord) bool {
	return c.ownsLocked(cell) || (c.seat.Valid() && cell == c.board.Crown())
}

func (c *Controller) highlightedLocked(cell models.Coord) bool {
	for _, h := range c.highlights {
		if h == cell {
			return true
		}
	}
	return false
}

func (c *Controller) startDragLocked(origin models.Coord) {
	c.selected = nil
	o := origin
	c.origin = &o
	c.highlights = c.board.Candidates(origin, c.seat)
	c.mode = ModeDragOrigin
}

func (c *Controller) clearDragLocked() {
	c.origin = nil
	c.highlights = nil
}

func (c *Controller) resetLocked() {
	c.clearDragLocked()
	c.selected = nil
	c.mode = ModeIdle
}

func (c *Controller) listenersLocked() []func(Event) {
	out := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func dispatch(listeners []func(Event), events []Event) {
	for _, e := range events {
		for _, fn := range listeners {
			fn(e)
		}
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v >= models.BoardSize {
		return models.BoardSize - 1
	}
	return v
}
