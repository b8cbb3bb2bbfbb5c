package room

import (
	"errors"

	"otrio-lite/apps/server/internal/protocol"
)

var ErrRoomClosed = errors.New("room closed")

// Wire-mapped operation errors. Each carries the stable code the
// dispatcher puts on the *-error reply.
var (
	ErrRoomFull        = protocol.NewError(protocol.CodeConflict, "room is full")
	ErrRoomExpired     = protocol.NewError(protocol.CodeExpired, "room has expired")
	ErrMatchInProgress = protocol.NewError(protocol.CodeUnavailable, "match already in progress")
	ErrInvalidCode     = protocol.NewError(protocol.CodeInvalidCode, "access code mismatch")
	ErrNoColor         = protocol.NewError(protocol.CodeConflict, "no color left to assign")
	ErrInvalidNickname = protocol.NewError(protocol.CodeInvalidInput, "nickname must be 1..20 characters")
	ErrSeatNotFound    = protocol.NewError(protocol.CodeNotFound, "no such seat in this room")
	ErrMatchNotActive  = protocol.NewError(protocol.CodeUnavailable, "no match in progress")
	ErrTurnExpired     = protocol.NewError(protocol.CodeExpired, "turn timer expired")
	ErrVoteNotActive   = protocol.NewError(protocol.CodeUnavailable, "no replay vote in progress")
	ErrNotAVoter       = protocol.NewError(protocol.CodeForbidden, "seat is not in the voter set")
	ErrVoteClosed      = protocol.NewError(protocol.CodeExpired, "replay vote window closed")
	ErrGraceExpired    = protocol.NewError(protocol.CodeExpired, "reconnect grace period passed")
	ErrAlreadyIn       = protocol.NewError(protocol.CodeConflict, "already joined this room")
)
