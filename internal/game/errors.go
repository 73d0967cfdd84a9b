package game

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("invalid request")
	ErrConflict        = errors.New("conflicting state change")
	ErrTurn            = errors.New("not your turn")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyFinished = errors.New("session already finished")
	ErrTransport       = errors.New("transport failure")
	ErrRejected        = errors.New("move rejected")
)

// ValidationError represents a missing or malformed precondition
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError
func Invalid(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

// Code returns the stable machine-readable code for err. Unknown errors
// report "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTurn):
		return "turn"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyFinished):
		return "already_finished"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrRejected):
		return "rejected"
	}
	return "internal"
}

// FromCode maps a code produced by Code back to its sentinel, wrapping
// message so the remote detail is kept.
func FromCode(code, message string) error {
	var base error
	switch code {
	case "validation":
		return ValidationError{Field: "request", Message: message}
	case "conflict":
		base = ErrConflict
	case "turn":
		base = ErrTurn
	case "not_found":
		base = ErrNotFound
	case "already_finished":
		base = ErrAlreadyFinished
	case "transport":
		base = ErrTransport
	case "rejected":
		base = ErrRejected
	default:
		return errors.New(message)
	}
	if message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, message)
}

// Describe turns err into the notification text shown to a player
func Describe(err error) string {
	var verr ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Check your input: " + verr.Message
	case errors.Is(err, ErrConflict):
		return "Someone else got there first. The game has changed, please try again."
	case errors.Is(err, ErrTurn):
		return "Wait for your turn."
	case errors.Is(err, ErrNotFound):
		return "That game could not be found."
	case errors.Is(err, ErrAlreadyFinished):
		return "This game is already over."
	case errors.Is(err, ErrTransport):
		return "Connection problem. Showing the last known state."
	case errors.Is(err, ErrRejected):
		return "That move is not allowed."
	}
	return "Something went wrong."
}
