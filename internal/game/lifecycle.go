package game

import (
	"fmt"
	"time"

	"rosenkoenig/internal/models"
)

// NewSession builds the initial state of a session created by creatorID
func NewSession(id, creatorID string, now time.Time) (*models.Session, error) {
	if creatorID == "" {
		return nil, Invalid("creator", "player identity is required")
	}
	return &models.Session{
		ID:        id,
		Status:    models.StatusWaiting,
		PlayerA:   creatorID,
		Turn:      models.SeatA,
		Crown:     models.Center,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Join seats joinerID in seat B and starts play. It reports rejoin=true
// without changing s when the joiner already holds a seat.
func Join(s *models.Session, joinerID string, now time.Time) (rejoin bool, err error) {
	if joinerID == "" {
		return false, Invalid("player", "player identity is required")
	}
	if s.SeatOf(joinerID) != models.SeatNone {
		return true, nil
	}
	if s.IsFull() || s.Status != models.StatusWaiting {
		return false, fmt.Errorf("session %s is full: %w", s.ID, ErrConflict)
	}

	s.PlayerB = joinerID
	s.Status = models.StatusPlaying
	s.UpdatedAt = now
	return false, nil
}

// CheckTurn verifies that actorID may move now and returns their seat
func CheckTurn(s *models.Session, actorID string) (models.Seat, error) {
	if actorID == "" {
		return models.SeatNone, Invalid("player", "player identity is required")
	}
	switch s.Status {
	case models.StatusFinished:
		return models.SeatNone, fmt.Errorf("session %s: %w", s.ID, ErrAlreadyFinished)
	case models.StatusWaiting:
		return models.SeatNone, fmt.Errorf("session %s is waiting for an opponent: %w", s.ID, ErrTurn)
	}

	seat := s.SeatOf(actorID)
	if seat == models.SeatNone {
		return models.SeatNone, fmt.Errorf("player is not seated in session %s: %w", s.ID, ErrTurn)
	}
	if s.Turn != seat {
		return seat, fmt.Errorf("seat %s to move: %w", s.Turn, ErrTurn)
	}
	return seat, nil
}

// Forfeit ends the session in favour of the seat opposing actorID
func Forfeit(s *models.Session, actorID string, now time.Time) error {
	if actorID == "" {
		return Invalid("player", "player identity is required")
	}
	switch s.Status {
	case models.StatusFinished:
		return fmt.Errorf("session %s: %w", s.ID, ErrAlreadyFinished)
	case models.StatusWaiting:
		return fmt.Errorf("session %s has not started: %w", s.ID, ErrConflict)
	}

	seat := s.SeatOf(actorID)
	if seat == models.SeatNone {
		return Invalid("player", "only seated players can forfeit")
	}
	Finish(s, seat.Opponent(), now)
	return nil
}

// Finish moves s to its terminal state. winner may be SeatNone for a draw.
func Finish(s *models.Session, winner models.Seat, now time.Time) {
	s.Status = models.StatusFinished
	s.Winner = winner
	s.Turn = models.SeatNone
	s.UpdatedAt = now
	finished := now
	s.FinishedAt = &finished
}
