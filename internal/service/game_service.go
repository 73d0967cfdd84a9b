package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
	"rosenkoenig/internal/realtime"
	"rosenkoenig/internal/repository"
	"rosenkoenig/internal/rules"
)

// GameService handles session lifecycle business logic
type GameService struct {
	store  *repository.Store
	turns  rules.Function
	feed   realtime.Publisher
	logger *zap.Logger
	now    func() time.Time
}

// NewGameService creates a new game service. turns resolves submitted moves;
// feed receives change events for lifecycle writes made here.
func NewGameService(store *repository.Store, turns rules.Function, feed realtime.Publisher, logger *zap.Logger) *GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if feed == nil {
		feed = nopPublisher{}
	}
	return &GameService{
		store:  store,
		turns:  turns,
		feed:   feed,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession starts a waiting session with creatorID in seat A. The
// session row, its 81 cells and both decks are written in one transaction.
func (s *GameService) CreateSession(ctx context.Context, creatorID string) (*models.Session, error) {
	session, err := game.NewSession(uuid.NewString(), creatorID, s.now())
	if err != nil {
		return nil, err
	}

	cells := game.NewBoard().Cells(session.ID)
	cards := game.StartingDeck(session.ID, uuid.NewString)
	if err := s.store.CreateSession(ctx, session, cells, cards); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("player_a", creatorID),
	)
	s.publishSession(realtime.OpInsert, session)
	return session, nil
}

// JoinSession seats joinerID in seat B. A player already seated gets the
// session back unchanged.
func (s *GameService) JoinSession(ctx context.Context, sessionID, joinerID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, game.Invalid("session", "session id is required")
	}

	current, err := s.store.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	proposed := *current
	rejoin, err := game.Join(&proposed, joinerID, now)
	if err != nil {
		return nil, err
	}
	if rejoin {
		return current, nil
	}

	won, err := s.store.Sessions.ClaimSeatB(ctx, sessionID, joinerID, now)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !won {
		if latest.SeatOf(joinerID) != models.SeatNone {
			return latest, nil
		}
		return nil, fmt.Errorf("session %s was joined by someone else: %w", sessionID, game.ErrConflict)
	}

	s.logger.Info("session joined",
		zap.String("session_id", sessionID),
		zap.String("player_b", joinerID),
	)
	s.publishSession(realtime.OpUpdate, latest)
	return latest, nil
}

// SubmitMove checks that the actor holds the turn and hands the move to the
// turn function, which decides legality and persists the result.
func (s *GameService) SubmitMove(ctx context.Context, req rules.TurnRequest) (*rules.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	session, err := s.store.Sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if _, err := game.CheckTurn(session, req.PlayerID); err != nil {
		return nil, err
	}

	result, err := s.turns.PlayTurn(ctx, req)
	if err != nil {
		s.logger.Info("move not applied",
			zap.String("session_id", req.SessionID),
			zap.String("card_id", req.CardID),
			zap.String("code", game.Code(err)),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

// Forfeit ends a playing session in favour of the actor's opponent
func (s *GameService) Forfeit(ctx context.Context, sessionID, actorID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, game.Invalid("session", "session id is required")
	}

	current, err := s.store.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	proposed := *current
	if err := game.Forfeit(&proposed, actorID, now); err != nil {
		return nil, err
	}

	won, err := s.store.Sessions.Finish(ctx, sessionID, proposed.Winner, now)
	if err != nil {
		return nil, err
	}
	if !won {
		latest, err := s.store.Sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if latest.Status == models.StatusFinished {
			return nil, fmt.Errorf("session %s: %w", sessionID, game.ErrAlreadyFinished)
		}
		return nil, fmt.Errorf("session %s changed during forfeit: %w", sessionID, game.ErrConflict)
	}

	latest, err := s.store.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session forfeited",
		zap.String("session_id", sessionID),
		zap.String("winner", string(latest.Winner)),
	)
	s.publishSession(realtime.OpUpdate, latest)
	return latest, nil
}

// GetSession returns the current session row
func (s *GameService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.store.FetchSession(ctx, sessionID)
}

// Cells returns the session board
func (s *GameService) Cells(ctx context.Context, sessionID string) ([]models.Cell, error) {
	if _, err := s.store.FetchSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.FetchCells(ctx, sessionID)
}

// Cards returns both decks of the session
func (s *GameService) Cards(ctx context.Context, sessionID string) ([]models.Card, error) {
	if _, err := s.store.FetchSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.FetchCards(ctx, sessionID)
}

// Moves returns the session move log oldest first
func (s *GameService) Moves(ctx context.Context, sessionID string) ([]models.Move, error) {
	if _, err := s.store.FetchSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.FetchMoves(ctx, sessionID)
}

// OpenSessions lists sessions still waiting for a second player
func (s *GameService) OpenSessions(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Sessions.ListByStatus(ctx, models.StatusWaiting, limit)
}

func (s *GameService) publishSession(op realtime.Op, session *models.Session) {
	publish(s.feed, s.logger, realtime.TableSessions, op, session.ID, session)
}

func publish(feed realtime.Publisher, logger *zap.Logger, table realtime.Table, op realtime.Op, sessionID string, row interface{}) {
	e, err := realtime.NewEvent(table, op, sessionID, row)
	if err != nil {
		logger.Error("failed to build change event", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	feed.Publish(e)
}

type nopPublisher struct{}

func (nopPublisher) Publish(realtime.Event) {}
