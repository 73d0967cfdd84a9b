package repository

import (
	"context"
	"fmt"

	"rosenkoenig/internal/database"
	"rosenkoenig/internal/models"
)

const cardColumns = "id, session_id, owner, kind, dx, dy, steps, used, position"

// CardRepository handles database operations for move cards
type CardRepository struct {
	db database.DBTX
}

// NewCardRepository creates a new card repository
func NewCardRepository(db database.DBTX) *CardRepository {
	return &CardRepository{db: db}
}

// InsertAll stores a dealt deck
func (r *CardRepository) InsertAll(ctx context.Context, cards []models.Card) error {
	query := `
		INSERT INTO cards (id, session_id, owner, kind, dx, dy, steps, used, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, c := range cards {
		_, err := r.db.ExecContext(ctx, query,
			c.ID, c.SessionID, string(c.Owner), string(c.Kind), c.DX, c.DY, c.Steps, c.Used, c.Position)
		if err != nil {
			return fmt.Errorf("failed to create card %s: %w", c.ID, err)
		}
	}
	return nil
}

// ListBySession returns both decks ordered by owner then position
func (r *CardRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE session_id = ?
		ORDER BY owner ASC, position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// MarkUsed flips a card to used. It reports false when the card was already
// used, so a card can only ever be spent once.
func (r *CardRepository) MarkUsed(ctx context.Context, sessionID, cardID string) (bool, error) {
	d := r.db.GetDialect()
	query := "UPDATE cards SET used = " + d.BoolValue(true) +
		" WHERE session_id = ? AND id = ? AND used = " + d.BoolValue(false)
	result, err := r.db.ExecContext(ctx, query, sessionID, cardID)
	if err != nil {
		return false, fmt.Errorf("failed to mark card used: %w", err)
	}
	return affectedOne(result)
}

func scanCard(row rowScanner) (*models.Card, error) {
	var c models.Card
	var owner, kind string
	if err := row.Scan(&c.ID, &c.SessionID, &owner, &kind, &c.DX, &c.DY, &c.Steps, &c.Used, &c.Position); err != nil {
		return nil, err
	}
	c.Owner = models.Seat(owner)
	c.Kind = models.CardKind(kind)
	return &c, nil
}
