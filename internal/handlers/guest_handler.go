package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/security"
)

const maxGuestName = 32

// GuestHandler issues guest identities
type GuestHandler struct {
	tokens *security.TokenIssuer
	logger *zap.Logger
}

// NewGuestHandler creates a new guest handler
func NewGuestHandler(tokens *security.TokenIssuer, logger *zap.Logger) *GuestHandler {
	return &GuestHandler{tokens: tokens, logger: logger}
}

type guestRequest struct {
	Name string `json:"name"`
}

// CreateGuest returns a new player id and its bearer token
func (h *GuestHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if len(name) > maxGuestName {
		respondWithError(w, h.logger, game.Invalid("name", "name is too long"))
		return
	}

	guest, err := h.tokens.IssueGuest(name)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	h.logger.Info("guest issued", zap.String("player_id", guest.PlayerID))
	respondJSON(w, http.StatusCreated, guest)
}
