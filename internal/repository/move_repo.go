package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rosenkoenig/internal/database"
	"rosenkoenig/internal/models"
)

// MoveRepository handles the append-only move log
type MoveRepository struct {
	db database.DBTX
}

// NewMoveRepository creates a new move repository
func NewMoveRepository(db database.DBTX) *MoveRepository {
	return &MoveRepository{db: db}
}

// Append inserts m and fills in its generated ID
func (r *MoveRepository) Append(ctx context.Context, m *models.Move) error {
	var fromX, fromY sql.NullInt64
	if m.From != nil {
		fromX = sql.NullInt64{Int64: int64(m.From.X), Valid: true}
		fromY = sql.NullInt64{Int64: int64(m.From.Y), Valid: true}
	}

	query := `
		INSERT INTO moves (session_id, actor, card_id, from_x, from_y, to_x, to_y, flip, crown_x, crown_y, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		m.SessionID, string(m.Actor), nullString(m.CardID), fromX, fromY, m.To.X, m.To.Y, m.Flip,
		m.Crown.X, m.Crown.Y, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record move: %w", err)
	}
	m.ID = id
	return nil
}

// ListBySession returns the move log oldest first
func (r *MoveRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Move, error) {
	query := `
		SELECT id, session_id, actor, card_id, from_x, from_y, to_x, to_y, flip, crown_x, crown_y, created_at
		FROM moves
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query moves: %w", err)
	}
	defer rows.Close()

	var moves []models.Move
	for rows.Next() {
		var (
			m            models.Move
			actor        string
			cardID       sql.NullString
			fromX, fromY sql.NullInt64
			createdAt    time.Time
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &actor, &cardID, &fromX, &fromY, &m.To.X, &m.To.Y, &m.Flip,
			&m.Crown.X, &m.Crown.Y, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		m.Actor = models.Seat(actor)
		m.CardID = cardID.String
		if fromX.Valid && fromY.Valid {
			m.From = &models.Coord{X: int(fromX.Int64), Y: int(fromY.Int64)}
		}
		m.CreatedAt = createdAt.UTC()
		moves = append(moves, m)
	}
	return moves, rows.Err()
}
