package game

import (
	"sort"

	"rosenkoenig/internal/models"
)

// MoveLog is the append-only, ordered history of a session
type MoveLog struct {
	moves []models.Move
}

// NewMoveLog builds a log from moves in any order
func NewMoveLog(moves []models.Move) MoveLog {
	sorted := append([]models.Move(nil), moves...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return MoveLog{moves: sorted}
}

// All returns a copy of the moves, oldest first
func (l MoveLog) All() []models.Move {
	return append([]models.Move(nil), l.moves...)
}

// Len returns the number of moves
func (l MoveLog) Len() int {
	return len(l.moves)
}

// Last returns the most recent move
func (l MoveLog) Last() (models.Move, bool) {
	if len(l.moves) == 0 {
		return models.Move{}, false
	}
	return l.moves[len(l.moves)-1], true
}

// Flips counts the captures made by seat
func (l MoveLog) Flips(seat models.Seat) int {
	n := 0
	for _, m := range l.moves {
		if m.Actor == seat && m.Flip {
			n++
		}
	}
	return n
}

// CrownPath returns where the crown has stood, starting at the centre and
// followed by its position after each move
func (l MoveLog) CrownPath() []models.Coord {
	path := make([]models.Coord, 0, len(l.moves)+1)
	path = append(path, models.Center)
	for _, m := range l.moves {
		path = append(path, m.Crown)
	}
	return path
}
