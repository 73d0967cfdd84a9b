package models

import "time"

// BoardSize is the width and height of the playing grid
const BoardSize = 9

// Status is the lifecycle state of a game session
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusPlaying, StatusFinished:
		return true
	}
	return false
}

// Seat identifies one of the two player slots. SeatNone doubles as
// "no turn", "unowned cell" and "no winner" depending on context.
type Seat string

const (
	SeatNone Seat = ""
	SeatA    Seat = "A"
	SeatB    Seat = "B"
)

// Opponent returns the other seat, or SeatNone for SeatNone
func (s Seat) Opponent() Seat {
	switch s {
	case SeatA:
		return SeatB
	case SeatB:
		return SeatA
	}
	return SeatNone
}

// Valid reports whether s is one of the playable seats
func (s Seat) Valid() bool {
	return s == SeatA || s == SeatB
}

// Coord is a grid position
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds reports whether the coordinate lies on the board
func (c Coord) InBounds() bool {
	return c.X >= 0 && c.X < BoardSize && c.Y >= 0 && c.Y < BoardSize
}

// Add returns c shifted by dx, dy
func (c Coord) Add(dx, dy int) Coord {
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// Center is the middle cell of the board, where the crown starts
var Center = Coord{X: BoardSize / 2, Y: BoardSize / 2}

// Session represents one game instance between at most two players
type Session struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	PlayerA    string     `json:"player_a,omitempty"`
	PlayerB    string     `json:"player_b,omitempty"`
	Turn       Seat       `json:"turn"`
	Crown      Coord      `json:"crown"`
	ScoreA     int        `json:"score_a"`
	ScoreB     int        `json:"score_b"`
	Winner     Seat       `json:"winner,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SeatOf returns the seat the player occupies, or SeatNone
func (s *Session) SeatOf(playerID string) Seat {
	if playerID == "" {
		return SeatNone
	}
	switch playerID {
	case s.PlayerA:
		return SeatA
	case s.PlayerB:
		return SeatB
	}
	return SeatNone
}

// PlayerIn returns the identity seated at seat, or "" when empty
func (s *Session) PlayerIn(seat Seat) string {
	switch seat {
	case SeatA:
		return s.PlayerA
	case SeatB:
		return s.PlayerB
	}
	return ""
}

// IsFull reports whether both seats are occupied
func (s *Session) IsFull() bool {
	return s.PlayerA != "" && s.PlayerB != ""
}

// IsDraw reports whether a finished session ended without a winner
func (s *Session) IsDraw() bool {
	return s.Status == StatusFinished && s.Winner == SeatNone
}

// Score returns the running score for seat
func (s *Session) Score(seat Seat) int {
	switch seat {
	case SeatA:
		return s.ScoreA
	case SeatB:
		return s.ScoreB
	}
	return 0
}
