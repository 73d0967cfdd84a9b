package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"rosenkoenig/internal/rules"
)

// TurnHandler exposes a turn function over HTTP so another deployment can
// use it through rules.Remote
type TurnHandler struct {
	turns  rules.Function
	logger *zap.Logger
}

// NewTurnHandler creates a new turn handler
func NewTurnHandler(turns rules.Function, logger *zap.Logger) *TurnHandler {
	return &TurnHandler{turns: turns, logger: logger}
}

// PlayTurn resolves and persists one turn
func (h *TurnHandler) PlayTurn(w http.ResponseWriter, r *http.Request) {
	var req rules.TurnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	result, err := h.turns.PlayTurn(r.Context(), req)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
