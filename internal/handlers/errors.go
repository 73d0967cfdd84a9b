package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"rosenkoenig/internal/game"
)

const maxBodyBytes = 64 << 10

// errorResponse is the JSON body of every failed request. Error carries the
// stable code from game.Code.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func statusFor(code string) int {
	switch code {
	case "validation":
		return http.StatusBadRequest
	case "turn":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "already_finished":
		return http.StatusGone
	case "rejected":
		return http.StatusUnprocessableEntity
	case "transport":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, err error) {
	code := game.Code(err)
	body := errorResponse{Error: code, Message: err.Error()}

	var verr game.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
		body.Message = verr.Message
	}

	status := statusFor(code)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		body.Message = "internal server error"
	}
	respondJSON(w, status, body)
}

// respondUnauthorized reports a missing identity. The code stays
// "validation" so clients map it to the same error as other bad input.
func respondUnauthorized(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusUnauthorized, errorResponse{
		Error:   "validation",
		Message: message,
		Field:   "identity",
	})
}

// decodeJSON reads an optional JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return game.Invalid("body", "malformed JSON: "+err.Error())
	}
	return nil
}
