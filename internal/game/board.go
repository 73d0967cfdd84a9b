package game

import (
	"fmt"
	"sort"

	"rosenkoenig/internal/models"
)

// Board is the normalized grid of cell ownership plus the crown position
type Board struct {
	cells [models.BoardSize][models.BoardSize]models.Seat
	crown models.Coord
}

// NewBoard returns the starting board: crown in the center, center owned by A
func NewBoard() Board {
	var b Board
	b.crown = models.Center
	b.cells[models.Center.X][models.Center.Y] = models.SeatA
	return b
}

// BoardFromCells normalizes a cell collection. Exactly one cell per
// coordinate is required.
func BoardFromCells(cells []models.Cell, crown models.Coord) (Board, error) {
	var b Board
	if len(cells) != models.BoardSize*models.BoardSize {
		return b, fmt.Errorf("board has %d cells, want %d", len(cells), models.BoardSize*models.BoardSize)
	}

	var seen [models.BoardSize][models.BoardSize]bool
	for _, c := range cells {
		if !c.Coord().InBounds() {
			return b, fmt.Errorf("cell (%d,%d) out of bounds", c.X, c.Y)
		}
		if seen[c.X][c.Y] {
			return b, fmt.Errorf("duplicate cell (%d,%d)", c.X, c.Y)
		}
		seen[c.X][c.Y] = true
		b.cells[c.X][c.Y] = c.Owner
	}
	b.crown = crown
	return b, nil
}

// Cells expands the board back into rows ordered by x then y
func (b Board) Cells(sessionID string) []models.Cell {
	cells := make([]models.Cell, 0, models.BoardSize*models.BoardSize)
	for x := 0; x < models.BoardSize; x++ {
		for y := 0; y < models.BoardSize; y++ {
			cells = append(cells, models.Cell{SessionID: sessionID, X: x, Y: y, Owner: b.cells[x][y]})
		}
	}
	return cells
}

// Owner returns who owns c; out-of-bounds coordinates are unowned
func (b Board) Owner(c models.Coord) models.Seat {
	if !c.InBounds() {
		return models.SeatNone
	}
	return b.cells[c.X][c.Y]
}

// Crown returns the crown position
func (b Board) Crown() models.Coord {
	return b.crown
}

// WithCrown returns a copy with the crown moved
func (b Board) WithCrown(c models.Coord) Board {
	b.crown = c
	return b
}

// Set returns a copy with c owned by seat
func (b Board) Set(c models.Coord, seat models.Seat) Board {
	if c.InBounds() {
		b.cells[c.X][c.Y] = seat
	}
	return b
}

// Count returns the number of cells owned by seat
func (b Board) Count(seat models.Seat) int {
	n := 0
	for x := range b.cells {
		for y := range b.cells[x] {
			if b.cells[x][y] == seat {
				n++
			}
		}
	}
	return n
}

var neighbourOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Neighbours returns the in-bounds cells adjacent to c, including diagonals
func (b Board) Neighbours(c models.Coord) []models.Coord {
	out := make([]models.Coord, 0, len(neighbourOffsets))
	for _, off := range neighbourOffsets {
		n := c.Add(off[0], off[1])
		if n.InBounds() {
			out = append(out, n)
		}
	}
	return out
}

// Candidates returns the provisional targets from origin for side: adjacent
// cells not already owned by side. This is a display hint only.
func (b Board) Candidates(origin models.Coord, side models.Seat) []models.Coord {
	var out []models.Coord
	for _, n := range b.Neighbours(origin) {
		if b.Owner(n) != side {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Equal reports whether two boards hold the same ownership and crown
func (b Board) Equal(other Board) bool {
	return b == other
}
