package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("card-%d", n)
	}
}

// Starting deck order: eight influence directions clockwise from north at
// one, two and three steps, then hero N, E, S, W.
const (
	cardANorth1   = "card-1"
	cardAHeroN    = "card-25"
	cardBNorth1   = "card-29"
	cardANorth3   = "card-17"
	startingCards = 56
)

func startPosition(t *testing.T) Position {
	t.Helper()
	now := time.Now()
	s, err := game.NewSession("s1", "alice", now)
	require.NoError(t, err)
	_, err = game.Join(s, "bob", now)
	require.NoError(t, err)

	cards := game.StartingDeck(s.ID, sequentialIDs())
	require.Len(t, cards, startingCards)
	return Position{Session: s, Board: game.NewBoard(), Deck: game.NewDeck(cards), Seat: models.SeatA}
}

func request(card string, to models.Coord) TurnRequest {
	return TurnRequest{SessionID: "s1", PlayerID: "alice", CardID: card, Destination: to}
}

func TestTurnRequestValidate(t *testing.T) {
	ok := request(cardANorth1, models.Coord{X: 4, Y: 3})
	require.NoError(t, ok.Validate())

	tests := []struct {
		name   string
		mutate func(r *TurnRequest)
		field  string
	}{
		{"no session", func(r *TurnRequest) { r.SessionID = "" }, "session"},
		{"no player", func(r *TurnRequest) { r.PlayerID = "" }, "player"},
		{"no card", func(r *TurnRequest) { r.CardID = "" }, "card"},
		{"destination off board", func(r *TurnRequest) { r.Destination = models.Coord{X: 9, Y: 0} }, "destination"},
		{"origin off board", func(r *TurnRequest) { r.Origin = &models.Coord{X: -1, Y: 0} }, "origin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ok
			tt.mutate(&r)
			err := r.Validate()
			require.ErrorIs(t, err, game.ErrValidation)
			var verr game.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestDefaultEngineInfluence(t *testing.T) {
	engine := DefaultEngine()
	pos := startPosition(t)

	out, err := engine.Resolve(context.Background(), pos, request(cardANorth1, models.Coord{X: 4, Y: 3}))
	require.NoError(t, err)

	assert.Equal(t, models.Coord{X: 4, Y: 3}, out.Crown)
	assert.Equal(t, []models.Cell{{X: 4, Y: 3, Owner: models.SeatA}}, out.Changes)
	assert.Equal(t, cardANorth1, out.UsedCard)
	assert.False(t, out.Flip)
	assert.Equal(t, models.SeatB, out.NextTurn)
	assert.False(t, out.Finished)
	assert.Equal(t, 4, out.ScoreA, "one region of two cells")
	assert.Equal(t, 0, out.ScoreB)
}

func TestDefaultEngineRejections(t *testing.T) {
	engine := DefaultEngine()

	tests := []struct {
		name string
		req  TurnRequest
	}{
		{"wrong destination", request(cardANorth1, models.Coord{X: 4, Y: 2})},
		{"opponent card", request(cardBNorth1, models.Coord{X: 4, Y: 3})},
		{"unknown card", request("nope", models.Coord{X: 4, Y: 3})},
		{"hero on free cell", request(cardAHeroN, models.Coord{X: 4, Y: 3})},
		{"origin not owned", func() TurnRequest {
			r := request(cardANorth1, models.Coord{X: 0, Y: 0})
			r.Origin = &models.Coord{X: 0, Y: 1}
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Resolve(context.Background(), startPosition(t), tt.req)
			assert.ErrorIs(t, err, game.ErrRejected)
		})
	}
}

func TestDefaultEngineHeroFlips(t *testing.T) {
	engine := DefaultEngine()
	pos := startPosition(t)
	pos.Board = pos.Board.Set(models.Coord{X: 4, Y: 3}, models.SeatB)

	out, err := engine.Resolve(context.Background(), pos, request(cardAHeroN, models.Coord{X: 4, Y: 3}))
	require.NoError(t, err)
	assert.True(t, out.Flip)
	assert.Equal(t, models.SeatA, out.Changes[0].Owner)
	assert.Equal(t, cardAHeroN, out.UsedCard)
}

func TestDefaultEngineFromOrigin(t *testing.T) {
	engine := DefaultEngine()
	pos := startPosition(t)

	req := request(cardANorth3, models.Coord{X: 4, Y: 1})
	req.Origin = &models.Coord{X: 4, Y: 4}
	out, err := engine.Resolve(context.Background(), pos, req)
	require.NoError(t, err)
	assert.Equal(t, models.Coord{X: 4, Y: 1}, out.Crown)
	assert.Equal(t, 2, out.ScoreA, "two separate single cells")
}

func TestDefaultEngineFinishes(t *testing.T) {
	engine := DefaultEngine()
	pos := startPosition(t)
	pos.Deck = game.NewDeck([]models.Card{
		{ID: "only", SessionID: "s1", Owner: models.SeatA, Kind: models.CardInfluence, DX: 0, DY: -1, Steps: 1},
	})

	out, err := engine.Resolve(context.Background(), pos, request("only", models.Coord{X: 4, Y: 3}))
	require.NoError(t, err)
	assert.True(t, out.Finished)
	assert.Equal(t, models.SeatA, out.Winner)
	assert.Equal(t, models.SeatNone, out.NextTurn)
}

func TestEngineScriptErrors(t *testing.T) {
	pos := startPosition(t)
	req := request(cardANorth1, models.Coord{X: 4, Y: 3})

	t.Run("syntax error", func(t *testing.T) {
		_, err := NewEngine("broken.lua", "function play_turn(")
		assert.Error(t, err)
	})

	t.Run("missing play_turn", func(t *testing.T) {
		e, err := NewEngine("empty.lua", "local x = 1")
		require.NoError(t, err)
		_, err = e.Resolve(context.Background(), pos, req)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, game.ErrRejected)
	})

	t.Run("rejection reason", func(t *testing.T) {
		e, err := NewEngine("no.lua", `function play_turn(state) return nil, "closed for lunch" end`)
		require.NoError(t, err)
		_, err = e.Resolve(context.Background(), pos, req)
		require.ErrorIs(t, err, game.ErrRejected)
		assert.Contains(t, err.Error(), "closed for lunch")
	})

	t.Run("outcome off board", func(t *testing.T) {
		e, err := NewEngine("bad.lua", `function play_turn(state)
			return { crown = { x = 12, y = 0 }, next_turn = "B" }
		end`)
		require.NoError(t, err)
		_, err = e.Resolve(context.Background(), pos, req)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, game.ErrRejected)
	})

	t.Run("runtime error", func(t *testing.T) {
		e, err := NewEngine("boom.lua", `function play_turn(state) error("boom") end`)
		require.NoError(t, err)
		_, err = e.Resolve(context.Background(), pos, req)
		assert.Error(t, err)
	})

	t.Run("io is closed", func(t *testing.T) {
		e, err := NewEngine("io.lua", `function play_turn(state) io.write("x") end`)
		require.NoError(t, err)
		_, err = e.Resolve(context.Background(), pos, req)
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		e, err := NewEngine("loop.lua", `function play_turn(state) while true do end end`)
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = e.Resolve(ctx, pos, req)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestLoadEngine(t *testing.T) {
	e, err := LoadEngine("")
	require.NoError(t, err)
	assert.Equal(t, "default_rules.lua", e.Name())

	_, err = LoadEngine("does-not-exist.lua")
	assert.Error(t, err)
}

func TestRemotePlayTurn(t *testing.T) {
	var got TurnRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		switch got.CardID {
		case "good":
			json.NewEncoder(w).Encode(TurnResult{
				Session: &models.Session{ID: got.SessionID, Status: models.StatusPlaying, Turn: models.SeatB},
				Move:    &models.Move{ID: 7, SessionID: got.SessionID, To: got.Destination},
			})
		case "bad":
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(errorBody{Error: "rejected", Message: "cell is not free"})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("oops"))
		}
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, StaticToken("secret"), time.Second)
	ctx := context.Background()

	res, err := remote.PlayTurn(ctx, request("good", models.Coord{X: 1, Y: 2}))
	require.NoError(t, err)
	assert.Equal(t, models.SeatB, res.Session.Turn)
	assert.Equal(t, int64(7), res.Move.ID)
	assert.Equal(t, models.Coord{X: 1, Y: 2}, got.Destination)

	_, err = remote.PlayTurn(ctx, request("bad", models.Coord{X: 1, Y: 2}))
	assert.ErrorIs(t, err, game.ErrRejected)

	_, err = remote.PlayTurn(ctx, request("other", models.Coord{X: 1, Y: 2}))
	assert.ErrorIs(t, err, game.ErrTransport)

	_, err = remote.PlayTurn(ctx, request("", models.Coord{X: 1, Y: 2}))
	assert.ErrorIs(t, err, game.ErrValidation)

	srv.Close()
	_, err = remote.PlayTurn(ctx, request("good", models.Coord{X: 1, Y: 2}))
	assert.ErrorIs(t, err, game.ErrTransport)
}

func TestRemoteAsksForATokenPerCall(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TurnResult{Session: &models.Session{ID: "s1"}})
	}))
	defer srv.Close()

	n := 0
	remote := NewRemote(srv.URL, func() (string, error) {
		n++
		return fmt.Sprintf("t%d", n), nil
	}, time.Second)

	for i := 0; i < 2; i++ {
		_, err := remote.PlayTurn(context.Background(), request("good", models.Coord{X: 1, Y: 2}))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Bearer t1", "Bearer t2"}, seen)

	failing := NewRemote(srv.URL, func() (string, error) {
		return "", errors.New("no key")
	}, time.Second)
	_, err := failing.PlayTurn(context.Background(), request("good", models.Coord{X: 1, Y: 2}))
	assert.Error(t, err)
	assert.Len(t, seen, 2, "no request is sent without a credential")
}
