package repository

import (
	"context"

	"rosenkoenig/internal/database"
	"rosenkoenig/internal/models"
)

// Store groups the game repositories over one connection or transaction
type Store struct {
	db       *database.DB
	Sessions *SessionRepository
	Cells    *CellRepository
	Cards    *CardRepository
	Moves    *MoveRepository
}

// NewStore creates repositories bound to db
func NewStore(db *database.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(q database.DBTX) *Store {
	return &Store{
		Sessions: NewSessionRepository(q),
		Cells:    NewCellRepository(q),
		Cards:    NewCardRepository(q),
		Moves:    NewMoveRepository(q),
	}
}

// InTx runs fn with repositories bound to a single transaction
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.InTx(ctx, func(tx *database.Tx) error {
		return fn(bind(tx))
	})
}

// CreateSession stores a session together with its board and both decks
func (s *Store) CreateSession(ctx context.Context, session *models.Session, cells []models.Cell, cards []models.Card) error {
	return s.InTx(ctx, func(tx *Store) error {
		if err := tx.Sessions.Insert(ctx, session); err != nil {
			return err
		}
		if err := tx.Cells.InsertAll(ctx, cells); err != nil {
			return err
		}
		return tx.Cards.InsertAll(ctx, cards)
	})
}

// FetchSession returns the current session row
func (s *Store) FetchSession(ctx context.Context, id string) (*models.Session, error) {
	return s.Sessions.Get(ctx, id)
}

// FetchCells returns the session's board cells
func (s *Store) FetchCells(ctx context.Context, id string) ([]models.Cell, error) {
	return s.Cells.ListBySession(ctx, id)
}

// FetchCards returns both decks
func (s *Store) FetchCards(ctx context.Context, id string) ([]models.Card, error) {
	return s.Cards.ListBySession(ctx, id)
}

// FetchMoves returns the ordered move log
func (s *Store) FetchMoves(ctx context.Context, id string) ([]models.Move, error) {
	return s.Moves.ListBySession(ctx, id)
}
