package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosenkoenig/internal/database"
	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.RunMigrations(context.Background(), "../../migrations")
	require.NoError(t, err)
	return NewStore(db)
}

func createSession(t *testing.T, store *Store, creator string) *models.Session {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	s, err := game.NewSession(uuid.NewString(), creator, now)
	require.NoError(t, err)

	cells := game.NewBoard().Cells(s.ID)
	cards := game.StartingDeck(s.ID, uuid.NewString)
	require.NoError(t, store.CreateSession(context.Background(), s, cells, cards))
	return s
}

func TestCreateSessionStoresBoardAndDecks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := createSession(t, store, "alice")

	got, err := store.FetchSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.Equal(t, "alice", got.PlayerA)
	assert.Empty(t, got.PlayerB)
	assert.Equal(t, models.SeatA, got.Turn)
	assert.Equal(t, models.Center, got.Crown)
	assert.Nil(t, got.FinishedAt)
	assert.True(t, got.CreatedAt.Equal(s.CreatedAt))

	cells, err := store.FetchCells(ctx, s.ID)
	require.NoError(t, err)
	board, err := game.BoardFromCells(cells, got.Crown)
	require.NoError(t, err)
	assert.True(t, board.Equal(game.NewBoard()))

	cards, err := store.FetchCards(ctx, s.ID)
	require.NoError(t, err)
	deck := game.NewDeck(cards)
	assert.Equal(t, 2*game.DeckSize, deck.Len())
	assert.Equal(t, labels(deck.Cards(models.SeatA)), labels(deck.Cards(models.SeatB)))
	for _, c := range cards {
		assert.False(t, c.Used)
	}
}

func TestCreateSessionIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s, err := game.NewSession(uuid.NewString(), "alice", time.Now())
	require.NoError(t, err)
	cells := game.NewBoard().Cells(s.ID)
	cells[80] = cells[0]

	err = store.CreateSession(ctx, s, cells, nil)
	require.Error(t, err)

	_, err = store.FetchSession(ctx, s.ID)
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestGetUnknownSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Sessions.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestClaimSeatBConcurrent(t *testing.T) {
	store := newTestStore(t)
	s := createSession(t, store, "alice")

	const joiners = 8
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won, err := store.Sessions.ClaimSeatB(context.Background(), s.ID, fmt.Sprintf("p%d", i), time.Now())
			if assert.NoError(t, err) && won {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)

	got, err := store.FetchSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, got.Status)
	assert.NotEmpty(t, got.PlayerB)
}

func TestFinishOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := createSession(t, store, "alice")

	won, err := store.Sessions.Finish(ctx, s.ID, models.SeatB, time.Now())
	require.NoError(t, err)
	assert.False(t, won, "waiting session cannot finish")

	_, err = store.Sessions.ClaimSeatB(ctx, s.ID, "bob", time.Now())
	require.NoError(t, err)

	first := time.Now().UTC().Truncate(time.Millisecond)
	won, err = store.Sessions.Finish(ctx, s.ID, models.SeatB, first)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.Sessions.Finish(ctx, s.ID, models.SeatA, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, won)

	got, err := store.FetchSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)
	assert.Equal(t, models.SeatB, got.Winner)
	assert.Equal(t, models.SeatNone, got.Turn)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(first))
}

func TestApplyTurnRequiresExpectedSeat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := createSession(t, store, "alice")
	_, err := store.Sessions.ClaimSeatB(ctx, s.ID, "bob", time.Now())
	require.NoError(t, err)

	next, err := store.FetchSession(ctx, s.ID)
	require.NoError(t, err)
	next.Turn = models.SeatB
	next.Crown = models.Coord{X: 5, Y: 4}
	next.ScoreA = 1
	next.UpdatedAt = time.Now()

	ok, err := store.Sessions.ApplyTurn(ctx, next, models.SeatB)
	require.NoError(t, err)
	assert.False(t, ok, "B does not hold the turn")

	ok, err = store.Sessions.ApplyTurn(ctx, next, models.SeatA)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.FetchSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SeatB, got.Turn)
	assert.Equal(t, models.Coord{X: 5, Y: 4}, got.Crown)
	assert.Equal(t, 1, got.ScoreA)
}

func TestCardsMarkUsedOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := createSession(t, store, "alice")

	cards, err := store.FetchCards(ctx, s.ID)
	require.NoError(t, err)
	id := cards[3].ID

	ok, err := store.Cards.MarkUsed(ctx, s.ID, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Cards.MarkUsed(ctx, s.ID, id)
	require.NoError(t, err)
	assert.False(t, ok)

	cards, err = store.FetchCards(ctx, s.ID)
	require.NoError(t, err)
	used := 0
	for _, c := range cards {
		if c.Used {
			used++
			assert.Equal(t, id, c.ID)
		}
	}
	assert.Equal(t, 1, used)

	ok, err = store.Cards.MarkUsed(ctx, s.ID, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMovesAppendInOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := createSession(t, store, "alice")

	cards, err := store.FetchCards(ctx, s.ID)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Millisecond)
	first := &models.Move{
		SessionID: s.ID,
		Actor:     models.SeatA,
		CardID:    cards[0].ID,
		To:        models.Coord{X: 4, Y: 3},
		Crown:     models.Coord{X: 4, Y: 3},
		CreatedAt: base,
	}
	second := &models.Move{
		SessionID: s.ID,
		Actor:     models.SeatB,
		From:      &models.Coord{X: 4, Y: 3},
		To:        models.Coord{X: 4, Y: 2},
		Flip:      true,
		Crown:     models.Coord{X: 4, Y: 2},
		CreatedAt: base.Add(time.Second),
	}
	require.NoError(t, store.Moves.Append(ctx, first))
	require.NoError(t, store.Moves.Append(ctx, second))
	assert.Greater(t, second.ID, first.ID)

	moves, err := store.FetchMoves(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, cards[0].ID, moves[0].CardID)
	assert.Nil(t, moves[0].From)
	assert.Empty(t, moves[1].CardID)
	require.NotNil(t, moves[1].From)
	assert.Equal(t, models.Coord{X: 4, Y: 3}, *moves[1].From)
	assert.True(t, moves[1].Flip)
	assert.Equal(t, []models.Coord{models.Center, {X: 4, Y: 3}, {X: 4, Y: 2}}, game.NewMoveLog(moves).CrownPath())
}

func TestCellsSetOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := createSession(t, store, "alice")

	require.NoError(t, store.Cells.SetOwner(ctx, s.ID, models.Coord{X: 0, Y: 8}, models.SeatB))

	cells, err := store.FetchCells(ctx, s.ID)
	require.NoError(t, err)
	board, err := game.BoardFromCells(cells, models.Center)
	require.NoError(t, err)
	assert.Equal(t, models.SeatB, board.Owner(models.Coord{X: 0, Y: 8}))
	assert.Equal(t, 1, board.Count(models.SeatB))
}

func TestListByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := createSession(t, store, "alice")
	b := createSession(t, store, "carol")
	_, err := store.Sessions.ClaimSeatB(ctx, b.ID, "dave", time.Now())
	require.NoError(t, err)

	waiting, err := store.Sessions.ListByStatus(ctx, models.StatusWaiting, 10)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, a.ID, waiting[0].ID)
}

// labels lists the faces of cards in deck order, ignoring ids and used flags
func labels(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = game.Label(c)
	}
	return out
}
