package otrio

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"otrio-lite/board"
)

type Status int

const (
	StatusPlaying Status = iota
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// SkipReason explains why a seat lost its turn.
type SkipReason string

const (
	SkipTimeout SkipReason = "timeout"
	SkipLeave   SkipReason = "leave"
	SkipNoMoves SkipReason = "no-moves"
)

// SkipInfo records one skip performed while the engine advanced the
// turn, in order.
type SkipInfo struct {
	SeatID     string
	Reason     SkipReason
	Skips      int
	Eliminated bool
}

// Result describes the state transitions caused by one operation.
type Result struct {
	Skips    []SkipInfo
	Ended    bool
	WinnerID string
	IsDraw   bool
}

const (
	MinSeats = 2
	MaxSeats = 4
)

// Match is the rule-enforcing state machine for one game. It holds
// references to the room's seat records; the seat order is frozen at
// start and never reordered by disconnects or eliminations.
type Match struct {
	cfg Config
	rng *rand.Rand

	mu sync.Mutex

	board      board.Board
	seats      []*Seat
	currentIdx int // -1 once finished
	status     Status
	winnerID   string
	isDraw     bool

	// turnEpoch increments on every current-seat change so stale
	// timeout events can be discarded.
	turnEpoch uint64

	startedAt     time.Time
	finishedAt    time.Time
	turnStartedAt time.Time
}

// NewMatch starts a game over the given seats (join order). Every
// seat is reset to a full inventory and the opening seat is chosen
// uniformly at random.
func NewMatch(cfg Config, seats []*Seat) (*Match, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(seats) < MinSeats || len(seats) > MaxSeats {
		return nil, InvalidStateError(fmt.Sprintf("need %d..%d seats, got %d", MinSeats, MaxSeats, len(seats)))
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	m := &Match{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		seats: make([]*Seat, len(seats)),
	}
	copy(m.seats, seats)
	for _, s := range m.seats {
		s.ResetForMatch()
	}

	now := time.Now()
	m.currentIdx = m.rng.Intn(len(m.seats))
	m.status = StatusPlaying
	m.turnEpoch = 1
	m.startedAt = now
	m.turnStartedAt = now
	return m, nil
}

func (m *Match) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CurrentSeatID returns the seat holding the turn, empty once finished.
func (m *Match) CurrentSeatID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentSeatIDLocked()
}

func (m *Match) currentSeatIDLocked() string {
	if m.status != StatusPlaying || m.currentIdx < 0 {
		return ""
	}
	return m.seats[m.currentIdx].ID
}

func (m *Match) TurnEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turnEpoch
}

// TurnDeadline is the instant the current turn times out.
func (m *Match) TurnDeadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turnStartedAt.Add(m.cfg.TurnTimeout)
}

// Remaining is the time left on the current turn, clamped at zero.
func (m *Match) Remaining(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusPlaying {
		return 0
	}
	left := m.turnStartedAt.Add(m.cfg.TurnTimeout).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func (m *Match) seatByID(id string) *Seat {
	for _, s := range m.seats {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// SubmitMove validates and applies one placement for the seat holding
// the turn. A rejected move leaves the match untouched.
func (m *Match) SubmitMove(seatID string, cell int, size board.Size) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusPlaying {
		return nil, ErrMatchOver
	}
	seat := m.seatByID(seatID)
	if seat == nil {
		return nil, ErrUnknownSeat
	}
	if seatID != m.currentSeatIDLocked() {
		return nil, ErrOutOfTurn
	}
	if seat.Eliminated {
		return nil, ErrEliminated
	}
	if seat.Inventory.Count(size) <= 0 {
		return nil, ErrNoInventory
	}
	if !board.IsLegal(m.board, cell, size) {
		return nil, board.ErrIllegalMove
	}

	next, err := board.Apply(m.board, cell, size, seat.Color)
	if err != nil {
		return nil, err
	}
	m.board = next
	if err := seat.UsePiece(size); err != nil {
		return nil, err
	}
	seat.ResetSkip()

	res := &Result{}
	if board.HasWin(m.board, seat.Color) {
		m.finishLocked(res, seat.ID, false)
		return res, nil
	}
	if m.noActiveSeatCanMoveLocked() {
		m.finishLocked(res, "", true)
		return res, nil
	}
	m.advanceLocked(res)
	return res, nil
}

// SkipCurrent force-skips the seat holding the turn (timeout or
// explicit leave). Reaching the skip limit eliminates the seat.
func (m *Match) SkipCurrent(reason SkipReason) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusPlaying {
		return nil, ErrMatchOver
	}
	seat := m.seats[m.currentIdx]

	res := &Result{}
	m.forceSkipLocked(res, seat, reason)
	if m.status == StatusFinished {
		return res, nil
	}
	m.advanceLocked(res)
	return res, nil
}

func (m *Match) forceSkipLocked(res *Result, seat *Seat, reason SkipReason) {
	skips := seat.IncrementSkip()
	eliminated := false
	if skips >= m.cfg.SkipLimit && !seat.Eliminated {
		seat.Eliminate()
		eliminated = true
	}
	res.Skips = append(res.Skips, SkipInfo{
		SeatID:     seat.ID,
		Reason:     reason,
		Skips:      skips,
		Eliminated: eliminated,
	})
	if eliminated {
		m.checkLastSeatStandingLocked(res)
	}
}

// EliminateSeat removes a seat from play after an explicit leave.
// Placed pieces stay on the board. If the seat held the turn it is
// skipped first so the turn advances cleanly before the forfeit check.
func (m *Match) EliminateSeat(seatID string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusPlaying {
		return nil, ErrMatchOver
	}
	seat := m.seatByID(seatID)
	if seat == nil {
		return nil, ErrUnknownSeat
	}
	if seat.Eliminated {
		return &Result{}, nil
	}

	res := &Result{}
	heldTurn := seatID == m.currentSeatIDLocked()
	if heldTurn {
		skips := seat.IncrementSkip()
		res.Skips = append(res.Skips, SkipInfo{
			SeatID:     seat.ID,
			Reason:     SkipLeave,
			Skips:      skips,
			Eliminated: true,
		})
	}
	seat.Eliminate()
	m.checkLastSeatStandingLocked(res)
	if m.status == StatusFinished {
		return res, nil
	}
	if heldTurn {
		m.advanceLocked(res)
	}
	return res, nil
}

// checkLastSeatStandingLocked ends the match by forfeit when exactly
// one uneliminated seat remains.
func (m *Match) checkLastSeatStandingLocked(res *Result) {
	if m.status != StatusPlaying {
		return
	}
	var survivor *Seat
	count := 0
	for _, s := range m.seats {
		if !s.Eliminated {
			survivor = s
			count++
		}
	}
	if count == 1 {
		m.finishLocked(res, survivor.ID, false)
	} else if count == 0 {
		m.finishLocked(res, "", true)
	}
}

// advanceLocked moves the turn to the next active seat. Active seats
// without a legal move are auto-skipped; before every such skip the
// global draw condition is re-evaluated so a fully stuck board ends
// as a draw without inflating skip counters.
func (m *Match) advanceLocked(res *Result) {
	for hop := 0; hop <= len(m.seats); hop++ {
		next := m.nextActiveIdxLocked()
		if next < 0 {
			m.checkLastSeatStandingLocked(res)
			if m.status == StatusPlaying {
				// No active seat and 2+ uneliminated: every
				// uneliminated seat is disconnected. Nobody can take
				// a turn again, so the match ends as a draw.
				m.finishLocked(res, "", true)
			}
			return
		}

		seat := m.seats[next]
		m.bumpTurnLocked(next)
		if board.AnyLegalMove(m.board, seat.Inventory) {
			return
		}

		if m.noActiveSeatCanMoveLocked() {
			m.finishLocked(res, "", true)
			return
		}
		m.forceSkipLocked(res, seat, SkipNoMoves)
		if m.status == StatusFinished {
			return
		}
	}
	// Unreachable: the scan above terminates on a movable seat or a
	// terminal transition within one full cycle.
}

func (m *Match) bumpTurnLocked(idx int) {
	m.currentIdx = idx
	m.turnEpoch++
	m.turnStartedAt = time.Now()
}

func (m *Match) nextActiveIdxLocked() int {
	n := len(m.seats)
	for i := 1; i <= n; i++ {
		idx := (m.currentIdx + i) % n
		if m.seats[idx].Active() {
			return idx
		}
	}
	return -1
}

func (m *Match) noActiveSeatCanMoveLocked() bool {
	for _, s := range m.seats {
		if s.Active() && board.AnyLegalMove(m.board, s.Inventory) {
			return false
		}
	}
	return true
}

func (m *Match) finishLocked(res *Result, winnerID string, isDraw bool) {
	m.status = StatusFinished
	m.winnerID = winnerID
	m.isDraw = isDraw
	m.finishedAt = time.Now()
	m.currentIdx = -1
	m.turnEpoch++

	res.Ended = true
	res.WinnerID = winnerID
	res.IsDraw = isDraw
}
