package repository

import (
	"context"
	"fmt"

	"rosenkoenig/internal/database"
	"rosenkoenig/internal/models"
)

// CellRepository handles database operations for board cells
type CellRepository struct {
	db database.DBTX
}

// NewCellRepository creates a new cell repository
func NewCellRepository(db database.DBTX) *CellRepository {
	return &CellRepository{db: db}
}

// InsertAll stores a full board. Callers run it inside the session's
// creation transaction.
func (r *CellRepository) InsertAll(ctx context.Context, cells []models.Cell) error {
	query := "INSERT INTO cells (session_id, x, y, owner) VALUES (?, ?, ?, ?)"
	for _, c := range cells {
		if _, err := r.db.ExecContext(ctx, query, c.SessionID, c.X, c.Y, string(c.Owner)); err != nil {
			return fmt.Errorf("failed to create cell (%d,%d): %w", c.X, c.Y, err)
		}
	}
	return nil
}

// ListBySession returns every cell of a session ordered by x then y
func (r *CellRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Cell, error) {
	query := `
		SELECT session_id, x, y, owner
		FROM cells
		WHERE session_id = ?
		ORDER BY x ASC, y ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	cells := make([]models.Cell, 0, models.BoardSize*models.BoardSize)
	for rows.Next() {
		var c models.Cell
		var owner string
		if err := rows.Scan(&c.SessionID, &c.X, &c.Y, &owner); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		c.Owner = models.Seat(owner)
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// SetOwner changes the owner of one cell
func (r *CellRepository) SetOwner(ctx context.Context, sessionID string, at models.Coord, owner models.Seat) error {
	query := "UPDATE cells SET owner = ? WHERE session_id = ? AND x = ? AND y = ?"
	result, err := r.db.ExecContext(ctx, query, string(owner), sessionID, at.X, at.Y)
	if err != nil {
		return fmt.Errorf("failed to update cell: %w", err)
	}
	if _, err := affectedOne(result); err != nil {
		return err
	}
	return nil
}
