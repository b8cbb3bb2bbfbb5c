package otrio

import "errors"

var (
	ErrMatchOver   = errors.New("match already finished")
	ErrOutOfTurn   = errors.New("move out of turn")
	ErrEliminated  = errors.New("seat is eliminated")
	ErrNoInventory = errors.New("no piece of that size left")
	ErrUnknownSeat = errors.New("unknown seat")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }
