package otrio

import (
	"time"

	"otrio-lite/board"
)

// Seat is one player's slot within a room. Seats are owned by the
// room and mutated only under the room's serialization; the match
// engine holds references to them for the duration of one game.
type Seat struct {
	ID       string
	Nickname string
	Color    board.Color

	Inventory   board.Inventory
	SkipsInARow int
	Eliminated  bool

	Connected bool
	Host      bool

	JoinedAt       time.Time
	DisconnectedAt time.Time
}

// Active seats take turns: neither eliminated nor disconnected.
func (s *Seat) Active() bool { return !s.Eliminated && s.Connected }

// UsePiece consumes one piece of the given size.
func (s *Seat) UsePiece(size board.Size) error {
	if !s.Inventory.Use(size) {
		return ErrNoInventory
	}
	return nil
}

func (s *Seat) IncrementSkip() int {
	s.SkipsInARow++
	return s.SkipsInARow
}

func (s *Seat) ResetSkip() { s.SkipsInARow = 0 }

func (s *Seat) Eliminate() { s.Eliminated = true }

func (s *Seat) SetConnected(connected bool) {
	s.Connected = connected
	if connected {
		s.DisconnectedAt = time.Time{}
	} else {
		s.DisconnectedAt = time.Now()
	}
}

func (s *Seat) SetHost(host bool) { s.Host = host }

// ResetForMatch restores the per-match state: full inventory, skip
// counter cleared, elimination flag cleared. Identity, color and
// connection state carry over.
func (s *Seat) ResetForMatch() {
	s.Inventory = board.NewInventory()
	s.SkipsInARow = 0
	s.Eliminated = false
}
