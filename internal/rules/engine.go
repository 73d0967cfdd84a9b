package rules

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
)

//go:embed default_rules.lua
var defaultScript string

// Position is everything the rule script may look at when resolving a turn
type Position struct {
	Session *models.Session
	Board   game.Board
	Deck    game.Deck
	Seat    models.Seat
}

// Outcome is what a legal turn changes. It is not yet persisted.
type Outcome struct {
	Crown    models.Coord
	Changes  []models.Cell
	UsedCard string
	Flip     bool
	NextTurn models.Seat
	Finished bool
	Winner   models.Seat
	ScoreA   int
	ScoreB   int
}

// Engine resolves turns with a Lua rule script. The script is compiled
// once; every call runs in a fresh interpreter so an Engine is safe for
// concurrent use.
type Engine struct {
	name  string
	proto *lua.FunctionProto
}

// NewEngine compiles script. name is used in error messages.
func NewEngine(name, script string) (*Engine, error) {
	chunk, err := parse.Parse(strings.NewReader(script), name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules %s: %w", name, err)
	}
	return &Engine{name: name, proto: proto}, nil
}

// DefaultEngine returns an engine running the built-in reference rules
func DefaultEngine() *Engine {
	e, err := NewEngine("default_rules.lua", defaultScript)
	if err != nil {
		panic(err)
	}
	return e
}

// LoadEngine reads a rule script from path, or returns the default engine
// when path is empty.
func LoadEngine(path string) (*Engine, error) {
	if path == "" {
		return DefaultEngine(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules script: %w", err)
	}
	return NewEngine(path, string(data))
}

// Name identifies the loaded script
func (e *Engine) Name() string {
	return e.name
}

// Resolve runs the script's play_turn for req against pos. A move the
// script declines comes back as game.ErrRejected carrying its reason.
func (e *Engine) Resolve(ctx context.Context, pos Position, req TurnRequest) (*Outcome, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	if err := openLibs(L); err != nil {
		return nil, err
	}

	L.Push(L.NewFunctionFromProto(e.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("failed to load rules %s: %w", e.name, err)
	}

	fn, ok := L.GetGlobal("play_turn").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("rules %s do not define play_turn", e.name)
	}

	state := buildState(L, pos, req)
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, state); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rules %s failed: %w", e.name, err)
	}
	result, reason := L.Get(-2), L.Get(-1)
	L.Pop(2)

	table, ok := result.(*lua.LTable)
	if !ok {
		msg := lua.LVAsString(reason)
		if msg == "" {
			msg = "move not allowed"
		}
		return nil, fmt.Errorf("%w: %s", game.ErrRejected, msg)
	}

	out, err := readOutcome(table)
	if err != nil {
		return nil, fmt.Errorf("rules %s returned a bad outcome: %w", e.name, err)
	}
	if err := out.check(req); err != nil {
		return nil, fmt.Errorf("rules %s returned a bad outcome: %w", e.name, err)
	}
	return out, nil
}

// openLibs loads the standard libraries a rule script may use. io, os and
// debug stay closed.
func openLibs(L *lua.LState) error {
	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("failed to open lua library %s: %w", lib.name, err)
		}
	}
	return nil
}

func coordTable(L *lua.LState, c models.Coord) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("x", lua.LNumber(c.X))
	t.RawSetString("y", lua.LNumber(c.Y))
	return t
}

func handTable(L *lua.LState, cards []models.Card) *lua.LTable {
	t := L.NewTable()
	for i, c := range cards {
		ct := L.NewTable()
		ct.RawSetString("id", lua.LString(c.ID))
		ct.RawSetString("kind", lua.LString(c.Kind))
		ct.RawSetString("dx", lua.LNumber(c.DX))
		ct.RawSetString("dy", lua.LNumber(c.DY))
		ct.RawSetString("steps", lua.LNumber(c.Steps))
		ct.RawSetString("used", lua.LBool(c.Used))
		ct.RawSetString("position", lua.LNumber(c.Position))
		t.RawSetInt(i+1, ct)
	}
	return t
}

// buildState lays the board out as a flat array indexed x*9+y+1
func buildState(L *lua.LState, pos Position, req TurnRequest) *lua.LTable {
	board := L.NewTable()
	for _, c := range pos.Board.Cells(pos.Session.ID) {
		board.RawSetInt(c.X*models.BoardSize+c.Y+1, lua.LString(c.Owner))
	}

	state := L.NewTable()
	state.RawSetString("seat", lua.LString(pos.Seat))
	state.RawSetString("board", board)
	state.RawSetString("crown", coordTable(L, pos.Board.Crown()))
	state.RawSetString("hand", handTable(L, pos.Deck.Cards(pos.Seat)))
	state.RawSetString("opponent_hand", handTable(L, pos.Deck.Cards(pos.Seat.Opponent())))
	state.RawSetString("score_a", lua.LNumber(pos.Session.ScoreA))
	state.RawSetString("score_b", lua.LNumber(pos.Session.ScoreB))
	state.RawSetString("card_id", lua.LString(req.CardID))
	state.RawSetString("destination", coordTable(L, req.Destination))
	if req.Origin != nil {
		state.RawSetString("origin", coordTable(L, *req.Origin))
	}
	return state
}

func readCoord(v lua.LValue) (models.Coord, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return models.Coord{}, errors.New("coordinate is not a table")
	}
	return models.Coord{
		X: int(lua.LVAsNumber(t.RawGetString("x"))),
		Y: int(lua.LVAsNumber(t.RawGetString("y"))),
	}, nil
}

func readOutcome(t *lua.LTable) (*Outcome, error) {
	crown, err := readCoord(t.RawGetString("crown"))
	if err != nil {
		return nil, fmt.Errorf("crown: %w", err)
	}

	out := &Outcome{
		Crown:    crown,
		UsedCard: lua.LVAsString(t.RawGetString("used_card")),
		Flip:     lua.LVAsBool(t.RawGetString("flip")),
		NextTurn: models.Seat(lua.LVAsString(t.RawGetString("next_turn"))),
		Finished: lua.LVAsBool(t.RawGetString("finished")),
		Winner:   models.Seat(lua.LVAsString(t.RawGetString("winner"))),
		ScoreA:   int(lua.LVAsNumber(t.RawGetString("score_a"))),
		ScoreB:   int(lua.LVAsNumber(t.RawGetString("score_b"))),
	}

	changes, ok := t.RawGetString("changes").(*lua.LTable)
	if !ok {
		return out, nil
	}
	var convErr error
	changes.ForEach(func(_, v lua.LValue) {
		if convErr != nil {
			return
		}
		at, err := readCoord(v)
		if err != nil {
			convErr = fmt.Errorf("change: %w", err)
			return
		}
		owner := lua.LVAsString(v.(*lua.LTable).RawGetString("owner"))
		out.Changes = append(out.Changes, models.Cell{X: at.X, Y: at.Y, Owner: models.Seat(owner)})
	})
	return out, convErr
}

func (o *Outcome) check(req TurnRequest) error {
	if !o.Crown.InBounds() {
		return fmt.Errorf("crown (%d,%d) is off the board", o.Crown.X, o.Crown.Y)
	}
	for _, c := range o.Changes {
		if !c.Coord().InBounds() {
			return fmt.Errorf("change (%d,%d) is off the board", c.X, c.Y)
		}
		if c.Owner != models.SeatNone && !c.Owner.Valid() {
			return fmt.Errorf("change (%d,%d) has unknown owner %q", c.X, c.Y, c.Owner)
		}
	}
	if o.UsedCard != "" && o.UsedCard != req.CardID {
		return fmt.Errorf("used card %s was not the card played", o.UsedCard)
	}
	if o.Finished {
		if o.Winner != models.SeatNone && !o.Winner.Valid() {
			return fmt.Errorf("unknown winner %q", o.Winner)
		}
		return nil
	}
	if !o.NextTurn.Valid() {
		return fmt.Errorf("unknown next turn %q", o.NextTurn)
	}
	return nil
}
