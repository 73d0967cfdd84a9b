package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
	"rosenkoenig/internal/realtime"
	"rosenkoenig/internal/repository"
	"rosenkoenig/internal/rules"
)

// LocalTurns is the in-process turn function. It resolves a move with the
// rule engine and applies the outcome in a single transaction guarded by a
// conditional update on the turn holder.
type LocalTurns struct {
	store  *repository.Store
	engine *rules.Engine
	feed   realtime.Publisher
	logger *zap.Logger
	now    func() time.Time
}

// NewLocalTurns creates the in-process turn function
func NewLocalTurns(store *repository.Store, engine *rules.Engine, feed realtime.Publisher, logger *zap.Logger) *LocalTurns {
	if logger == nil {
		logger = zap.NewNop()
	}
	if feed == nil {
		feed = nopPublisher{}
	}
	return &LocalTurns{
		store:  store,
		engine: engine,
		feed:   feed,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PlayTurn resolves and persists req
func (l *LocalTurns) PlayTurn(ctx context.Context, req rules.TurnRequest) (*rules.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result rules.TurnResult
	err := l.store.InTx(ctx, func(tx *repository.Store) error {
		session, err := tx.Sessions.Get(ctx, req.SessionID)
		if err != nil {
			return err
		}
		seat, err := game.CheckTurn(session, req.PlayerID)
		if err != nil {
			return err
		}

		cells, err := tx.Cells.ListBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		board, err := game.BoardFromCells(cells, session.Crown)
		if err != nil {
			return fmt.Errorf("session %s has a corrupt board: %w", session.ID, err)
		}
		cards, err := tx.Cards.ListBySession(ctx, session.ID)
		if err != nil {
			return err
		}

		out, err := l.engine.Resolve(ctx, rules.Position{
			Session: session,
			Board:   board,
			Deck:    game.NewDeck(cards),
			Seat:    seat,
		}, req)
		if err != nil {
			return err
		}

		next, move, err := l.apply(ctx, tx, session, seat, req, out)
		if err != nil {
			return err
		}
		result = rules.TurnResult{Session: next, Move: move}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("turn applied",
		zap.String("session_id", req.SessionID),
		zap.String("actor", string(result.Move.Actor)),
		zap.String("card_id", result.Move.CardID),
		zap.Int64("move_id", result.Move.ID),
		zap.String("status", string(result.Session.Status)),
	)

	publish(l.feed, l.logger, realtime.TableCells, realtime.OpUpdate, req.SessionID, nil)
	publish(l.feed, l.logger, realtime.TableCards, realtime.OpUpdate, req.SessionID, nil)
	publish(l.feed, l.logger, realtime.TableMoves, realtime.OpInsert, req.SessionID, result.Move)
	publish(l.feed, l.logger, realtime.TableSessions, realtime.OpUpdate, req.SessionID, result.Session)
	return &result, nil
}

func (l *LocalTurns) apply(ctx context.Context, tx *repository.Store, session *models.Session, seat models.Seat, req rules.TurnRequest, out *rules.Outcome) (*models.Session, *models.Move, error) {
	now := l.now()

	cardID := out.UsedCard
	if cardID == "" {
		cardID = req.CardID
	}
	used, err := tx.Cards.MarkUsed(ctx, session.ID, cardID)
	if err != nil {
		return nil, nil, err
	}
	if !used {
		return nil, nil, fmt.Errorf("card %s was already played: %w", cardID, game.ErrConflict)
	}

	for _, c := range out.Changes {
		if err := tx.Cells.SetOwner(ctx, session.ID, c.Coord(), c.Owner); err != nil {
			return nil, nil, err
		}
	}

	move := &models.Move{
		SessionID: session.ID,
		Actor:     seat,
		CardID:    cardID,
		From:      req.Origin,
		To:        req.Destination,
		Flip:      out.Flip,
		Crown:     out.Crown,
		CreatedAt: now,
	}
	if err := tx.Moves.Append(ctx, move); err != nil {
		return nil, nil, err
	}

	next := *session
	next.Crown = out.Crown
	next.ScoreA = out.ScoreA
	next.ScoreB = out.ScoreB
	next.UpdatedAt = now
	if out.Finished {
		game.Finish(&next, out.Winner, now)
	} else {
		next.Turn = out.NextTurn
	}

	ok, err := tx.Sessions.ApplyTurn(ctx, &next, seat)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("session %s moved on before this turn: %w", session.ID, game.ErrConflict)
	}
	return &next, move, nil
}
