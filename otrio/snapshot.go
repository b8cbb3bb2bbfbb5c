package otrio

import (
	"time"

	"otrio-lite/board"
)

type SeatSnapshot struct {
	ID          string
	Nickname    string
	Color       board.Color
	Inventory   board.Inventory
	Connected   bool
	Host        bool
	Eliminated  bool
	SkipsInARow int
}

type Snapshot struct {
	Board         board.Board
	Seats         []SeatSnapshot
	CurrentSeatID string
	Status        Status
	WinnerID      string
	IsDraw        bool
	TurnEpoch     uint64
	StartedAt     time.Time
	FinishedAt    time.Time
	TurnStartedAt time.Time
	TurnDeadline  time.Time
}

// Snapshot returns a copy of the observable match state.
func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Board:         m.board,
		CurrentSeatID: m.currentSeatIDLocked(),
		Status:        m.status,
		WinnerID:      m.winnerID,
		IsDraw:        m.isDraw,
		TurnEpoch:     m.turnEpoch,
		StartedAt:     m.startedAt,
		FinishedAt:    m.finishedAt,
		TurnStartedAt: m.turnStartedAt,
		TurnDeadline:  m.turnStartedAt.Add(m.cfg.TurnTimeout),
	}
	for _, seat := range m.seats {
		s.Seats = append(s.Seats, SeatSnapshot{
			ID:          seat.ID,
			Nickname:    seat.Nickname,
			Color:       seat.Color,
			Inventory:   seat.Inventory,
			Connected:   seat.Connected,
			Host:        seat.Host,
			Eliminated:  seat.Eliminated,
			SkipsInARow: seat.SkipsInARow,
		})
	}
	return s
}
