package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
	"rosenkoenig/internal/realtime"
	"rosenkoenig/internal/rules"
	"rosenkoenig/internal/service"
)

// SessionHandler serves the session lifecycle and its collections
type SessionHandler struct {
	games  *service.GameService
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(games *service.GameService, hub *realtime.Hub, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{games: games, hub: hub, logger: logger}
}

// moveRequest is the body of POST /api/sessions/{id}/moves
type moveRequest struct {
	CardID      string        `json:"card_id"`
	Destination *models.Coord `json:"destination"`
	Origin      *models.Coord `json:"origin,omitempty"`
}

// CreateSession opens a new session with the caller in seat A
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.games.CreateSession(r.Context(), GetPlayerFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// ListSessions lists sessions waiting for an opponent
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, h.logger, game.Invalid("limit", "limit must be a number"))
			return
		}
		limit = n
	}

	sessions, err := h.games.OpenSessions(r.Context(), limit)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

// GetSession returns one session row
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.games.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// JoinSession seats the caller in seat B
func (h *SessionHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.games.JoinSession(r.Context(), r.PathValue("id"), GetPlayerFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// SubmitMove plays a card for the caller
func (h *SessionHandler) SubmitMove(w http.ResponseWriter, r *http.Request) {
	var body moveRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if body.Destination == nil {
		respondWithError(w, h.logger, game.Invalid("destination", "destination is required"))
		return
	}

	result, err := h.games.SubmitMove(r.Context(), rules.TurnRequest{
		SessionID:   r.PathValue("id"),
		PlayerID:    GetPlayerFromContext(r.Context()),
		CardID:      body.CardID,
		Destination: *body.Destination,
		Origin:      body.Origin,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Forfeit concedes the session for the caller
func (h *SessionHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	session, err := h.games.Forfeit(r.Context(), r.PathValue("id"), GetPlayerFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// Cells returns the board of a session
func (h *SessionHandler) Cells(w http.ResponseWriter, r *http.Request) {
	cells, err := h.games.Cells(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cells)
}

// Cards returns both decks of a session
func (h *SessionHandler) Cards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.games.Cards(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cards)
}

// Moves returns the move log of a session
func (h *SessionHandler) Moves(w http.ResponseWriter, r *http.Request) {
	moves, err := h.games.Moves(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if moves == nil {
		moves = []models.Move{}
	}
	respondJSON(w, http.StatusOK, moves)
}

// Live upgrades to a websocket streaming change events for the session
func (h *SessionHandler) Live(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.games.GetSession(r.Context(), id); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	h.hub.Serve(w, r, id)
}
