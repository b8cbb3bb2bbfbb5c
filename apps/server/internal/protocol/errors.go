package protocol

import (
	"errors"

	"otrio-lite/board"
	"otrio-lite/otrio"
)

// ErrorCode is the stable code carried by *-error messages.
type ErrorCode string

const (
	CodeInvalidInput ErrorCode = "InvalidInput"
	CodeNotFound     ErrorCode = "NotFound"
	CodeForbidden    ErrorCode = "Forbidden"
	CodeConflict     ErrorCode = "Conflict"
	CodeIllegalMove  ErrorCode = "IllegalMove"
	CodeExpired      ErrorCode = "Expired"
	CodeInvalidCode  ErrorCode = "InvalidCode"
	CodeUnavailable  ErrorCode = "Unavailable"
	CodeInternal     ErrorCode = "Internal"
)

// Error is a wire-mappable error. Room and lobby operations return
// these so the dispatcher can answer the originating connection with
// a stable code; they are never broadcast.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf maps any error raised inside a room handler to its wire code.
func CodeOf(err error) (ErrorCode, string) {
	var wire *Error
	if errors.As(err, &wire) {
		return wire.Code, wire.Message
	}
	switch {
	case errors.Is(err, board.ErrIllegalMove),
		errors.Is(err, otrio.ErrNoInventory):
		return CodeIllegalMove, err.Error()
	case errors.Is(err, otrio.ErrOutOfTurn),
		errors.Is(err, otrio.ErrEliminated):
		return CodeForbidden, err.Error()
	case errors.Is(err, otrio.ErrMatchOver):
		return CodeUnavailable, err.Error()
	case errors.Is(err, otrio.ErrUnknownSeat):
		return CodeNotFound, err.Error()
	default:
		return CodeInternal, err.Error()
	}
}
