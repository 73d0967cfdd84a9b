// Package rules defines the turn function boundary and the implementations
// that decide whether a proposed move is legal and what it changes.
package rules

import (
	"context"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
)

// TurnRequest is one proposed move
type TurnRequest struct {
	SessionID   string        `json:"session_id"`
	PlayerID    string        `json:"player_id"`
	CardID      string        `json:"card_id"`
	Destination models.Coord  `json:"destination"`
	Origin      *models.Coord `json:"origin,omitempty"`
}

// Validate checks the request shape before it reaches any rules
func (r TurnRequest) Validate() error {
	switch {
	case r.SessionID == "":
		return game.Invalid("session", "session id is required")
	case r.PlayerID == "":
		return game.Invalid("player", "player identity is required")
	case r.CardID == "":
		return game.Invalid("card", "card id is required")
	case !r.Destination.InBounds():
		return game.Invalid("destination", "destination is off the board")
	case r.Origin != nil && !r.Origin.InBounds():
		return game.Invalid("origin", "origin is off the board")
	}
	return nil
}

// TurnResult is the persisted state after a turn was applied
type TurnResult struct {
	Session *models.Session `json:"session"`
	Move    *models.Move    `json:"move"`
}

// Function is the authoritative turn function. Implementations check
// legality, persist the outcome and return it; a declined move is reported
// as game.ErrRejected.
type Function interface {
	PlayTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
}
