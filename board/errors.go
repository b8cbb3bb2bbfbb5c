package board

import "errors"

var ErrIllegalMove = errors.New("illegal move: slot occupied or out of range")
