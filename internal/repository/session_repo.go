package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rosenkoenig/internal/database"
	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
)

const sessionColumns = `id, status, player_a, player_b, turn, crown_x, crown_y,
	score_a, score_b, winner, created_at, updated_at, finished_at`

// SessionRepository handles database operations for game sessions
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert stores a new session row
func (r *SessionRepository) Insert(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, status, player_a, player_b, turn, crown_x, crown_y,
			score_a, score_b, winner, created_at, updated_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, string(s.Status), nullString(s.PlayerA), nullString(s.PlayerB), string(s.Turn),
		s.Crown.X, s.Crown.Y, s.ScoreA, s.ScoreB, string(s.Winner),
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(), nullTime(s.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE id = ?"
	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListByStatus returns the newest sessions in the given status
func (r *SessionRepository) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = ?
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ClaimSeatB seats playerID in seat B and starts play, but only while the
// seat is empty and the session is waiting. It reports whether this call won
// the seat.
func (r *SessionRepository) ClaimSeatB(ctx context.Context, id, playerID string, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET player_b = ?, status = 'playing', updated_at = ?
		WHERE id = ? AND player_b IS NULL AND status = 'waiting'
	`
	result, err := r.db.ExecContext(ctx, query, playerID, now.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to join session: %w", err)
	}
	return affectedOne(result)
}

// Finish ends a session that is still being played. It reports whether the
// row was changed; a false result means another writer finished it first.
func (r *SessionRepository) Finish(ctx context.Context, id string, winner models.Seat, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = 'finished', winner = ?, turn = '', finished_at = ?, updated_at = ?
		WHERE id = ? AND status = 'playing'
	`
	result, err := r.db.ExecContext(ctx, query, string(winner), now.UTC(), now.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to finish session: %w", err)
	}
	return affectedOne(result)
}

// ApplyTurn writes the state produced by a turn, provided the session is
// still playing with expected holding the turn.
func (r *SessionRepository) ApplyTurn(ctx context.Context, s *models.Session, expected models.Seat) (bool, error) {
	query := `
		UPDATE sessions
		SET status = ?, turn = ?, crown_x = ?, crown_y = ?, score_a = ?, score_b = ?,
			winner = ?, updated_at = ?, finished_at = ?
		WHERE id = ? AND status = 'playing' AND turn = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		string(s.Status), string(s.Turn), s.Crown.X, s.Crown.Y, s.ScoreA, s.ScoreB,
		string(s.Winner), s.UpdatedAt.UTC(), nullTime(s.FinishedAt),
		s.ID, string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("failed to apply turn: %w", err)
	}
	return affectedOne(result)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                    models.Session
		status, turn, winner string
		playerA, playerB     sql.NullString
		finishedAt           sql.NullTime
		createdAt, updatedAt time.Time
	)
	err := row.Scan(
		&s.ID,
		&status,
		&playerA,
		&playerB,
		&turn,
		&s.Crown.X,
		&s.Crown.Y,
		&s.ScoreA,
		&s.ScoreB,
		&winner,
		&createdAt,
		&updatedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = models.Status(status)
	s.Turn = models.Seat(turn)
	s.Winner = models.Seat(winner)
	s.PlayerA = playerA.String
	s.PlayerB = playerB.String
	s.CreatedAt = createdAt.UTC()
	s.UpdatedAt = updatedAt.UTC()
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		s.FinishedAt = &t
	}
	return &s, nil
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
