package game

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosenkoenig/internal/models"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("card-%d", n)
	}
}

func TestNewBoardOwnsOnlyCenter(t *testing.T) {
	b := NewBoard()
	cells := b.Cells("s1")

	require.Len(t, cells, 81)
	seen := map[models.Coord]bool{}
	owned := 0
	for _, c := range cells {
		assert.False(t, seen[c.Coord()], "duplicate %v", c.Coord())
		seen[c.Coord()] = true
		if c.Owner != models.SeatNone {
			owned++
			assert.Equal(t, models.Center, c.Coord())
			assert.Equal(t, models.SeatA, c.Owner)
		}
	}
	assert.Equal(t, 1, owned)
	assert.Equal(t, models.Center, b.Crown())
}

func TestBoardFromCellsRoundTrip(t *testing.T) {
	b := NewBoard().Set(models.Coord{X: 0, Y: 0}, models.SeatB).WithCrown(models.Coord{X: 2, Y: 3})

	got, err := BoardFromCells(b.Cells("s1"), models.Coord{X: 2, Y: 3})
	require.NoError(t, err)
	assert.True(t, got.Equal(b))
	assert.Equal(t, models.SeatB, got.Owner(models.Coord{X: 0, Y: 0}))
	assert.Equal(t, 1, got.Count(models.SeatB))
}

func TestBoardFromCellsRejectsBadGrids(t *testing.T) {
	cells := NewBoard().Cells("s1")

	t.Run("too few cells", func(t *testing.T) {
		_, err := BoardFromCells(cells[:80], models.Center)
		assert.Error(t, err)
	})

	t.Run("duplicate coordinate", func(t *testing.T) {
		dup := append([]models.Cell(nil), cells...)
		dup[1] = dup[0]
		_, err := BoardFromCells(dup, models.Center)
		assert.Error(t, err)
	})

	t.Run("out of bounds", func(t *testing.T) {
		bad := append([]models.Cell(nil), cells...)
		bad[5].X = 9
		_, err := BoardFromCells(bad, models.Center)
		assert.Error(t, err)
	})
}

func TestBoardCandidates(t *testing.T) {
	b := NewBoard().
		Set(models.Coord{X: 3, Y: 3}, models.SeatA).
		Set(models.Coord{X: 5, Y: 5}, models.SeatB)

	got := b.Candidates(models.Center, models.SeatA)
	assert.Len(t, got, 7)
	assert.NotContains(t, got, models.Coord{X: 3, Y: 3})
	assert.Contains(t, got, models.Coord{X: 5, Y: 5})

	corner := b.Candidates(models.Coord{X: 0, Y: 0}, models.SeatA)
	assert.Len(t, corner, 3)
}

func TestStartingDeckIsMirrored(t *testing.T) {
	cards := StartingDeck("s1", sequentialIDs())
	deck := NewDeck(cards)

	require.Equal(t, 2*DeckSize, deck.Len())
	assert.Len(t, deck.Cards(models.SeatA), DeckSize)
	assert.Equal(t, labels(deck.Cards(models.SeatA)), labels(deck.Cards(models.SeatB)))

	ids := map[string]bool{}
	for _, c := range cards {
		assert.False(t, c.Used, "card %s starts used", c.ID)
		assert.False(t, ids[c.ID], "duplicate id %s", c.ID)
		ids[c.ID] = true
	}

	heroes := 0
	for _, c := range deck.Cards(models.SeatA) {
		if c.Kind == models.CardHero {
			heroes++
		}
	}
	assert.Equal(t, 4, heroes)
}

func TestDeckHandSkipsUsedCards(t *testing.T) {
	cards := StartingDeck("s1", sequentialIDs())
	cards[0].Used = true
	cards[2].Used = true
	deck := NewDeck(cards)

	hand := deck.Hand(models.SeatA)
	assert.Len(t, hand, DeckSize-2)
	for i := 1; i < len(hand); i++ {
		assert.Less(t, hand[i-1].Position, hand[i].Position)
	}

	card, ok := deck.Find(cards[0].ID)
	require.True(t, ok)
	assert.True(t, card.Used)
}

func TestMoveLogOrdering(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	log := NewMoveLog([]models.Move{
		{ID: 3, CreatedAt: base.Add(2 * time.Second)},
		{ID: 1, CreatedAt: base},
		{ID: 2, CreatedAt: base.Add(time.Second), Flip: true, Actor: models.SeatB},
	})

	all := log.All()
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, 1, log.Flips(models.SeatB))
	assert.Equal(t, 0, log.Flips(models.SeatA))

	last, ok := log.Last()
	require.True(t, ok)
	assert.Equal(t, int64(3), last.ID)

	_, ok = NewMoveLog(nil).Last()
	assert.False(t, ok)
}

func TestMoveLogCrownPath(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, []models.Coord{models.Center}, NewMoveLog(nil).CrownPath())

	log := NewMoveLog([]models.Move{
		{ID: 2, CreatedAt: base.Add(time.Second), Actor: models.SeatB, Crown: models.Coord{X: 5, Y: 2}},
		{ID: 1, CreatedAt: base, Actor: models.SeatA, Crown: models.Coord{X: 4, Y: 3}},
		{ID: 3, CreatedAt: base.Add(2 * time.Second), Actor: models.SeatA, Crown: models.Coord{X: 5, Y: 2}},
	})
	assert.Equal(t, []models.Coord{
		models.Center,
		{X: 4, Y: 3},
		{X: 5, Y: 2},
		{X: 5, Y: 2},
	}, log.CrownPath())
}

func TestSessionLifecycle(t *testing.T) {
	now := time.Now()

	t.Run("create requires identity", func(t *testing.T) {
		_, err := NewSession("s1", "", now)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("create seats creator in A", func(t *testing.T) {
		s, err := NewSession("s1", "alice", now)
		require.NoError(t, err)
		assert.Equal(t, models.StatusWaiting, s.Status)
		assert.Equal(t, models.SeatA, s.Turn)
		assert.Equal(t, models.Center, s.Crown)
		assert.Empty(t, s.PlayerB)
	})

	t.Run("join starts play", func(t *testing.T) {
		s, _ := NewSession("s1", "alice", now)
		rejoin, err := Join(s, "bob", now)
		require.NoError(t, err)
		assert.False(t, rejoin)
		assert.Equal(t, models.StatusPlaying, s.Status)
		assert.Equal(t, "bob", s.PlayerB)
		assert.Equal(t, models.SeatA, s.Turn)
	})

	t.Run("join full session conflicts", func(t *testing.T) {
		s, _ := NewSession("s1", "alice", now)
		_, _ = Join(s, "bob", now)
		_, err := Join(s, "carol", now)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "bob", s.PlayerB)
	})

	t.Run("seated player rejoins", func(t *testing.T) {
		s, _ := NewSession("s1", "alice", now)
		rejoin, err := Join(s, "alice", now)
		require.NoError(t, err)
		assert.True(t, rejoin)
		assert.Equal(t, models.StatusWaiting, s.Status)
	})
}

func TestCheckTurn(t *testing.T) {
	now := time.Now()
	s, _ := NewSession("s1", "alice", now)

	_, err := CheckTurn(s, "alice")
	assert.ErrorIs(t, err, ErrTurn, "waiting session has no turn")

	_, _ = Join(s, "bob", now)

	seat, err := CheckTurn(s, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.SeatA, seat)

	_, err = CheckTurn(s, "bob")
	assert.ErrorIs(t, err, ErrTurn)

	_, err = CheckTurn(s, "mallory")
	assert.ErrorIs(t, err, ErrTurn)

	_, err = CheckTurn(s, "")
	assert.ErrorIs(t, err, ErrValidation)

	Finish(s, models.SeatA, now)
	_, err = CheckTurn(s, "alice")
	assert.ErrorIs(t, err, ErrAlreadyFinished)
}

func TestForfeit(t *testing.T) {
	now := time.Now()
	s, _ := NewSession("s1", "alice", now)

	assert.ErrorIs(t, Forfeit(s, "alice", now), ErrConflict)

	_, _ = Join(s, "bob", now)
	s.ScoreA, s.ScoreB = 4, 7

	assert.ErrorIs(t, Forfeit(s, "mallory", now), ErrValidation)

	later := now.Add(time.Minute)
	require.NoError(t, Forfeit(s, "bob", later))
	assert.Equal(t, models.StatusFinished, s.Status)
	assert.Equal(t, models.SeatA, s.Winner)
	assert.Equal(t, models.SeatNone, s.Turn)
	require.NotNil(t, s.FinishedAt)
	assert.True(t, s.FinishedAt.Equal(later))

	err := Forfeit(s, "alice", later.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyFinished)
	assert.Equal(t, models.SeatA, s.Winner)
	assert.True(t, s.FinishedAt.Equal(later))
	assert.Equal(t, 4, s.ScoreA)
	assert.Equal(t, 7, s.ScoreB)
}

func TestErrorCodesRoundTrip(t *testing.T) {
	errs := []error{
		Invalid("x", "bad"),
		fmt.Errorf("wrapped: %w", ErrConflict),
		ErrTurn,
		ErrNotFound,
		ErrAlreadyFinished,
		ErrTransport,
		ErrRejected,
	}

	for _, err := range errs {
		t.Run(Code(err), func(t *testing.T) {
			back := FromCode(Code(err), "detail")
			assert.Equal(t, Code(err), Code(back))
			assert.NotEmpty(t, Describe(back))
		})
	}

	assert.Equal(t, "internal", Code(errors.New("boom")))
	assert.Equal(t, "Something went wrong.", Describe(errors.New("boom")))
}

// labels lists the faces of cards in deck order, ignoring ids and used flags
func labels(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = Label(c)
	}
	return out
}
