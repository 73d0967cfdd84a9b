package models

import "time"

// Cell is one grid position within a session
type Cell struct {
	SessionID string `json:"session_id"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Owner     Seat   `json:"owner,omitempty"`
}

// Coord returns the cell position
func (c Cell) Coord() Coord {
	return Coord{X: c.X, Y: c.Y}
}

// CardKind distinguishes plain influence cards from hero cards
type CardKind string

const (
	CardInfluence CardKind = "influence"
	CardHero      CardKind = "hero"
)

// Card is one move definition owned by a seat
type Card struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Owner     Seat     `json:"owner"`
	Kind      CardKind `json:"kind"`
	DX        int      `json:"dx"`
	DY        int      `json:"dy"`
	Steps     int      `json:"steps"`
	Used      bool     `json:"used"`
	Position  int      `json:"position"`
}

// Target returns the cell reached by playing the card from origin
func (c Card) Target(origin Coord) Coord {
	return origin.Add(c.DX*c.Steps, c.DY*c.Steps)
}

// Move is one executed turn in the session history
type Move struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Actor     Seat      `json:"actor"`
	CardID    string    `json:"card_id,omitempty"`
	From      *Coord    `json:"from,omitempty"`
	To        Coord     `json:"to"`
	Flip      bool      `json:"flip"`
	Crown     Coord     `json:"crown"`
	CreatedAt time.Time `json:"created_at"`
}
