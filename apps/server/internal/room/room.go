// Package room implements the unit of serialization: every mutation
// of a room (join, leave, move, vote, timer fire) is an event on the
// room's mailbox, processed one at a time by the actor goroutine.
package room

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"otrio-lite/apps/server/internal/protocol"
	"otrio-lite/board"
	"otrio-lite/otrio"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Status is the room lifecycle phase.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// BroadcastFunc delivers an encoded event to one seat's connection.
// It must never block; the gateway enforces that.
type BroadcastFunc func(seatID string, data []byte)

// Options are the immutable construction parameters.
type Options struct {
	Name      string
	Capacity  int
	IsPrivate bool
	// bcrypt hash of the access code; set iff IsPrivate.
	CodeHash []byte
}

// Event types for the actor mailbox.
type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventReconnect
	EventMove
	EventCastVote
	EventRequestState
	EventTurnTimeout
	EventVoteExpired
	EventClose
)

type LeaveMode int

const (
	LeaveExplicit LeaveMode = iota
	LeaveDisconnect
)

// Event is one message to the room actor.
type Event struct {
	Type     EventType
	SeatID   string
	Nickname string
	Code     string
	Cell     int
	Size     board.Size
	Vote     bool
	Mode     LeaveMode
	// Turn or vote epoch carried by timer events; stale epochs are
	// discarded by the handler.
	Epoch    uint64
	Response chan error
	seatOut  chan string
}

// Room aggregates the match, the seats, the turn timer and the replay
// vote behind a single mailbox.
type Room struct {
	ID   string
	Opts Options
	cfg  Config

	mu         sync.RWMutex
	seats      []*otrio.Seat // join order
	match      *otrio.Match
	vote       *replayVote
	voteEpoch  uint64
	status     Status
	hostSeatID string
	createdAt  time.Time
	expiresAt  time.Time
	closed     bool
	stopOnce   sync.Once

	turnTimer turnTimer
	voteTimer turnTimer

	events chan Event
	done   chan struct{}

	broadcast BroadcastFunc
}

// New creates a room and starts its actor goroutine.
func New(id string, opts Options, cfg Config, broadcastFn BroadcastFunc) (*Room, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	r := &Room{
		ID:        id,
		Opts:      opts,
		cfg:       cfg,
		status:    StatusWaiting,
		createdAt: now,
		expiresAt: now.Add(cfg.RoomTTL),
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
		broadcast: broadcastFn,
	}

	go r.run()

	log.Printf("[Room %s] Created (name=%q, capacity=%d, private=%v)", id, opts.Name, opts.Capacity, opts.IsPrivate)
	return r, nil
}

// run is the actor loop. The ticker drives the 1 Hz timer broadcast
// and backstops turn/vote deadlines if a timer event was dropped.
func (r *Room) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case event := <-r.events:
			err := r.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			r.tick()
		}
		if r.IsClosed() {
			r.shutdown()
			return
		}
	}
}

// shutdown answers whatever is still queued, then releases done so
// pending submitters stop waiting. The event that closed the room had
// its verdict sent before this runs, so its caller always sees the
// real outcome rather than ErrRoomClosed.
func (r *Room) shutdown() {
	for {
		select {
		case event := <-r.events:
			if event.seatOut != nil {
				event.seatOut <- ""
			}
			if event.Response != nil {
				event.Response <- ErrRoomClosed
			}
		default:
			r.stopOnce.Do(func() { close(r.done) })
			log.Printf("[Room %s] Actor stopped", r.ID)
			return
		}
	}
}

func (r *Room) handleEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.Type != EventClose {
		return ErrRoomClosed
	}

	switch e.Type {
	case EventJoin:
		seatID, err := r.handleJoin(e.Nickname, e.Code)
		if e.seatOut != nil {
			e.seatOut <- seatID
		}
		return err
	case EventLeave:
		return r.handleLeave(e.SeatID, e.Mode)
	case EventReconnect:
		return r.handleReconnect(e.SeatID)
	case EventMove:
		return r.handleMove(e.SeatID, e.Cell, e.Size)
	case EventCastVote:
		return r.handleCastVote(e.SeatID, e.Vote)
	case EventRequestState:
		return r.handleRequestState(e.SeatID)
	case EventTurnTimeout:
		return r.handleTurnTimeout(e.SeatID, e.Epoch)
	case EventVoteExpired:
		return r.handleVoteExpired(e.Epoch)
	case EventClose:
		r.closeLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

// tick runs once a second inside the actor.
func (r *Room) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	now := time.Now()

	if r.status == StatusPlaying && r.match != nil {
		if !now.Before(r.match.TurnDeadline()) {
			if err := r.handleTurnTimeout(r.match.CurrentSeatID(), r.match.TurnEpoch()); err != nil {
				log.Printf("[Room %s] timeout handler failed: %v", r.ID, err)
			}
		}
		if r.status == StatusPlaying {
			r.broadcastTimerUpdate(now)
		}
	}

	if r.vote != nil && !now.Before(r.vote.deadline) {
		if err := r.handleVoteExpired(r.vote.epoch); err != nil {
			log.Printf("[Room %s] vote expiry handler failed: %v", r.ID, err)
		}
	}
}

// --- join / leave / reconnect ---

func (r *Room) handleJoin(nickname, code string) (string, error) {
	now := time.Now()
	if now.After(r.expiresAt) {
		return "", ErrRoomExpired
	}
	if r.status != StatusWaiting {
		return "", ErrMatchInProgress
	}
	nickname = strings.TrimSpace(nickname)
	if n := utf8.RuneCountInString(nickname); n < 1 || n > 20 {
		return "", ErrInvalidNickname
	}
	if r.Opts.IsPrivate {
		if bcrypt.CompareHashAndPassword(r.Opts.CodeHash, []byte(code)) != nil {
			return "", ErrInvalidCode
		}
	}
	if len(r.seats) >= r.Opts.Capacity {
		return "", ErrRoomFull
	}
	color, ok := r.unusedColorLocked()
	if !ok {
		return "", ErrNoColor
	}

	seat := &otrio.Seat{
		ID:        uuid.NewString(),
		Nickname:  nickname,
		Color:     color,
		Inventory: board.NewInventory(),
		Connected: true,
		JoinedAt:  now,
	}
	if len(r.seats) == 0 {
		seat.SetHost(true)
		r.hostSeatID = seat.ID
	}
	r.seats = append(r.seats, seat)
	log.Printf("[Room %s] Seat %s joined as %q (%s)", r.ID, seat.ID, nickname, color)

	r.broadcastEvent(protocol.PlayerJoined{
		Type: protocol.TypePlayerJoined,
		Player: protocol.PlayerState{
			ID:        seat.ID,
			Nickname:  seat.Nickname,
			Color:     string(seat.Color),
			Inventory: protocol.InventoryState{P: 3, M: 3, G: 3},
			Connected: true,
			IsHost:    seat.Host,
		},
		GameState: r.gameStateLocked(now),
	})

	if len(r.seats) == r.Opts.Capacity {
		if err := r.startMatchLocked(protocol.TypeGameStarted); err != nil {
			return seat.ID, err
		}
	}
	return seat.ID, nil
}

func (r *Room) unusedColorLocked() (board.Color, bool) {
	for _, c := range board.Palette {
		used := false
		for _, s := range r.seats {
			if s.Color == c {
				used = true
				break
			}
		}
		if !used {
			return c, true
		}
	}
	return "", false
}

func (r *Room) handleLeave(seatID string, mode LeaveMode) error {
	seat := r.seatByIDLocked(seatID)
	if seat == nil {
		return ErrSeatNotFound
	}

	switch r.status {
	case StatusWaiting:
		// No match state to preserve: any leave vacates the seat.
		return r.removeSeatLocked(seat)

	case StatusPlaying:
		seat.SetConnected(false)
		if mode == LeaveDisconnect {
			// Keep the seat, its inventory and its board pieces. The
			// turn timer keeps running; timeouts resolve a stalled
			// turn through the normal skip/elimination cascade.
			log.Printf("[Room %s] Seat %s disconnected mid-match", r.ID, seatID)
			r.broadcastEvent(protocol.PlayerDisconnected{Type: protocol.TypePlayerDisconnected, PlayerID: seatID})
			return nil
		}
		log.Printf("[Room %s] Seat %s left mid-match, eliminating", r.ID, seatID)
		res, err := r.match.EliminateSeat(seatID)
		if err != nil {
			return err
		}
		if !skippedSeat(res, seatID) {
			r.broadcastEvent(protocol.PlayerEliminated{Type: protocol.TypePlayerEliminated, PlayerID: seatID})
		}
		r.processResultLocked(res)
		return nil

	default: // StatusFinished
		seat.SetConnected(false)
		// The voter set was frozen when the vote opened; a missing
		// vote runs the window out.
		r.broadcastEvent(protocol.PlayerDisconnected{Type: protocol.TypePlayerDisconnected, PlayerID: seatID})
		return nil
	}
}

func (r *Room) removeSeatLocked(seat *otrio.Seat) error {
	for i, s := range r.seats {
		if s.ID == seat.ID {
			r.seats = append(r.seats[:i], r.seats[i+1:]...)
			break
		}
	}
	log.Printf("[Room %s] Seat %s removed while waiting", r.ID, seat.ID)
	r.broadcastEvent(protocol.PlayerDisconnected{Type: protocol.TypePlayerDisconnected, PlayerID: seat.ID})

	if len(r.seats) == 0 {
		r.closeLocked()
		return nil
	}
	if seat.Host {
		// Earliest-joined remaining seat inherits the room.
		next := r.seats[0]
		next.SetHost(true)
		r.hostSeatID = next.ID
		log.Printf("[Room %s] Host transferred to seat %s", r.ID, next.ID)
		r.broadcastEvent(protocol.HostTransferred{Type: protocol.TypeHostTransferred, NewHostID: next.ID})
	}
	r.broadcastEvent(protocol.GameEvent{Type: protocol.TypeGameState, GameState: r.gameStateLocked(time.Now())})
	return nil
}

func (r *Room) handleReconnect(seatID string) error {
	seat := r.seatByIDLocked(seatID)
	if seat == nil {
		return ErrSeatNotFound
	}
	if seat.Connected {
		return ErrAlreadyIn
	}
	if !seat.DisconnectedAt.IsZero() && time.Since(seat.DisconnectedAt) > r.cfg.ReconnectGrace {
		return ErrGraceExpired
	}
	seat.SetConnected(true)
	log.Printf("[Room %s] Seat %s reconnected", r.ID, seatID)
	// Full resync for everyone; the fresh endpoint is already bound.
	r.broadcastEvent(protocol.GameEvent{Type: protocol.TypeGameState, GameState: r.gameStateLocked(time.Now())})
	return nil
}

// --- match flow ---

func (r *Room) startMatchLocked(eventType string) error {
	match, err := otrio.NewMatch(otrio.Config{
		TurnTimeout: r.cfg.TurnTimeout,
		SkipLimit:   r.cfg.SkipLimit,
		Seed:        r.cfg.Seed,
	}, r.seats)
	if err != nil {
		log.Printf("[Room %s] Failed to start match: %v", r.ID, err)
		return protocol.NewError(protocol.CodeInternal, "failed to start match")
	}
	r.match = match
	r.vote = nil
	r.status = StatusPlaying
	r.expiresAt = time.Now().Add(r.cfg.RoomTTL)

	snap := match.Snapshot()
	log.Printf("[Room %s] Match started, first turn: %s", r.ID, snap.CurrentSeatID)
	r.broadcastEvent(protocol.GameEvent{Type: eventType, GameState: r.gameStateLocked(time.Now())})
	r.armTurnTimerLocked()
	return nil
}

func (r *Room) handleMove(seatID string, cell int, size board.Size) error {
	if r.status != StatusPlaying || r.match == nil {
		return ErrMatchNotActive
	}
	// A move racing the timeout event loses: nothing placed after the
	// deadline counts for this turn.
	if time.Now().After(r.match.TurnDeadline()) {
		return ErrTurnExpired
	}
	res, err := r.match.SubmitMove(seatID, cell, size)
	if err != nil {
		return err
	}
	r.processResultLocked(res)
	return nil
}

func (r *Room) handleTurnTimeout(seatID string, epoch uint64) error {
	if r.status != StatusPlaying || r.match == nil {
		return nil
	}
	// Stale timers: the turn moved on before the event was handled.
	if r.match.TurnEpoch() != epoch || r.match.CurrentSeatID() != seatID {
		return nil
	}
	log.Printf("[Room %s] Turn timeout for seat %s", r.ID, seatID)
	res, err := r.match.SkipCurrent(otrio.SkipTimeout)
	if err != nil {
		return err
	}
	r.processResultLocked(res)
	return nil
}

// processResultLocked turns an engine result into events: one
// turn-skipped (plus player-eliminated) per skip, then either the
// terminal transition or a fresh turn with a rearmed timer.
func (r *Room) processResultLocked(res *otrio.Result) {
	now := time.Now()
	for _, skip := range res.Skips {
		r.broadcastEvent(protocol.TurnSkipped{
			Type:            protocol.TypeTurnSkipped,
			SkippedPlayerID: skip.SeatID,
			Reason:          string(skip.Reason),
			GameState:       r.gameStateLocked(now),
		})
		if skip.Eliminated {
			log.Printf("[Room %s] Seat %s eliminated (%s, skips=%d)", r.ID, skip.SeatID, skip.Reason, skip.Skips)
			r.broadcastEvent(protocol.PlayerEliminated{Type: protocol.TypePlayerEliminated, PlayerID: skip.SeatID})
		}
	}

	if res.Ended {
		r.finishMatchLocked(res)
		return
	}
	r.broadcastEvent(protocol.GameEvent{Type: protocol.TypeGameUpdated, GameState: r.gameStateLocked(now)})
	r.armTurnTimerLocked()
}

func (r *Room) finishMatchLocked(res *otrio.Result) {
	r.turnTimer.cancel()
	r.status = StatusFinished
	log.Printf("[Room %s] Match ended (winner=%q, draw=%v)", r.ID, res.WinnerID, res.IsDraw)

	var winnerID *string
	if res.WinnerID != "" {
		id := res.WinnerID
		winnerID = &id
	}
	r.broadcastEvent(protocol.GameEnded{
		Type:      protocol.TypeGameEnded,
		WinnerID:  winnerID,
		IsDraw:    res.IsDraw,
		GameState: r.gameStateLocked(time.Now()),
	})
	r.openReplayVoteLocked()
}

// --- timers ---

func (r *Room) armTurnTimerLocked() {
	seatID := r.match.CurrentSeatID()
	epoch := r.match.TurnEpoch()
	remaining := time.Until(r.match.TurnDeadline())
	if remaining < 0 {
		remaining = 0
	}
	r.turnTimer.start(remaining, func() {
		r.enqueueAsync(Event{Type: EventTurnTimeout, SeatID: seatID, Epoch: epoch})
	})
}

func (r *Room) broadcastTimerUpdate(now time.Time) {
	left := r.match.Remaining(now)
	secs := int((left + time.Second - 1) / time.Second)
	var current *string
	if id := r.match.CurrentSeatID(); id != "" {
		current = &id
	}
	r.broadcastEvent(protocol.TimerUpdate{
		Type:            protocol.TypeTimerUpdate,
		TurnTimeLeft:    secs,
		CurrentPlayerID: current,
	})
}

// --- replay vote ---

func (r *Room) openReplayVoteLocked() {
	var voters []string
	for _, s := range r.seats {
		if s.Connected {
			voters = append(voters, s.ID)
		}
	}
	r.voteEpoch++
	if len(voters) == 0 {
		// Nobody left to ask.
		r.broadcastEvent(protocol.ReplayClosed{Type: protocol.TypeReplayTimeout})
		r.closeLocked()
		return
	}

	r.vote = newReplayVote(voters, r.cfg.ReplayVoteWindow, r.voteEpoch)
	log.Printf("[Room %s] Replay vote opened, voters=%d", r.ID, len(voters))
	r.broadcastEvent(protocol.ReplayVotingStarted{
		Type:           protocol.TypeReplayVotingStarted,
		ReplayDeadline: r.vote.deadline.UnixMilli(),
		ReplayVotes:    r.vote.snapshot(),
	})

	epoch := r.voteEpoch
	r.voteTimer.start(r.cfg.ReplayVoteWindow, func() {
		r.enqueueAsync(Event{Type: EventVoteExpired, Epoch: epoch})
	})
}

func (r *Room) handleCastVote(seatID string, vote bool) error {
	if r.vote == nil {
		return ErrVoteNotActive
	}
	if time.Now().After(r.vote.deadline) {
		return ErrVoteClosed
	}
	if err := r.vote.cast(seatID, vote); err != nil {
		return err
	}
	r.broadcastEvent(protocol.ReplayVoteUpdated{
		Type:        protocol.TypeReplayVoteUpdated,
		ReplayVotes: r.vote.snapshot(),
	})

	if !r.vote.complete() {
		return nil
	}
	r.voteTimer.cancel()
	accepted := r.vote.accepted()
	r.vote = nil
	if !accepted {
		log.Printf("[Room %s] Replay rejected", r.ID)
		r.broadcastEvent(protocol.ReplayClosed{Type: protocol.TypeReplayRejected})
		r.closeLocked()
		return nil
	}
	log.Printf("[Room %s] Replay accepted, restarting", r.ID)
	r.status = StatusWaiting
	return r.startMatchLocked(protocol.TypeGameRestarted)
}

func (r *Room) handleVoteExpired(epoch uint64) error {
	if r.vote == nil || r.vote.epoch != epoch {
		return nil
	}
	log.Printf("[Room %s] Replay vote expired", r.ID)
	r.vote = nil
	r.broadcastEvent(protocol.ReplayClosed{Type: protocol.TypeReplayTimeout})
	r.closeLocked()
	return nil
}

// --- state ---

func (r *Room) handleRequestState(seatID string) error {
	if r.seatByIDLocked(seatID) == nil {
		return ErrSeatNotFound
	}
	r.sendEvent(seatID, protocol.GameEvent{
		Type:      protocol.TypeGameState,
		GameState: r.gameStateLocked(time.Now()),
	})
	return nil
}

func (r *Room) seatByIDLocked(id string) *otrio.Seat {
	for _, s := range r.seats {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *Room) gameStateLocked(now time.Time) *protocol.GameState {
	var snap *otrio.Snapshot
	if r.match != nil {
		s := r.match.Snapshot()
		snap = &s
	}
	return protocol.BuildGameState(string(r.status), r.seats, snap, now)
}

// State returns the current game-state payload (thread-safe).
func (r *Room) State() *protocol.GameState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameStateLocked(time.Now())
}

// --- broadcast plumbing ---

func (r *Room) broadcastEvent(event any) {
	data := protocol.Encode(event)
	if data == nil {
		return
	}
	for _, s := range r.seats {
		r.broadcast(s.ID, data)
	}
}

func (r *Room) sendEvent(seatID string, event any) {
	data := protocol.Encode(event)
	if data == nil {
		return
	}
	r.broadcast(seatID, data)
}

// --- lifecycle ---

// closeLocked marks the room closed and cancels its timers. The actor
// notices the flag after finishing the current event and tears itself
// down; rooms that never started an actor just stay flagged.
func (r *Room) closeLocked() {
	r.closed = true
	r.turnTimer.cancel()
	r.voteTimer.cancel()
}

// Close shuts down the room actor.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Room) Expired(now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return now.After(r.expiresAt)
}

func (r *Room) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seats)
}

func (r *Room) CreatedAt() time.Time { return r.createdAt }

func (r *Room) ExpiresAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.expiresAt
}

// ActivityAt orders lobby listings: match start when one ran, else
// creation time.
func (r *Room) ActivityAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.match != nil {
		return r.match.Snapshot().StartedAt
	}
	return r.createdAt
}

// HostSeatID returns the current host seat, empty while unseated.
func (r *Room) HostSeatID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostSeatID
}

// --- mailbox ---

// SubmitEvent sends an event to the actor and waits for the result.
func (r *Room) SubmitEvent(e Event) error {
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return ErrRoomClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-r.done:
		// The actor answers every event it dequeues and shutdown
		// answers the rest, so a verdict may already be buffered.
		// Prefer it over the shutdown signal.
		select {
		case err := <-e.Response:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

// enqueueAsync delivers a timer event without blocking. A full
// mailbox drops the event; the actor tick re-checks deadlines.
func (r *Room) enqueueAsync(e Event) {
	select {
	case r.events <- e:
	case <-r.done:
	default:
	}
}

// --- synchronous wrappers used by the dispatcher ---

// Join seats a new player and returns the minted seat id.
func (r *Room) Join(nickname, code string) (string, error) {
	seatOut := make(chan string, 1)
	err := r.SubmitEvent(Event{Type: EventJoin, Nickname: nickname, Code: code, seatOut: seatOut})
	var seatID string
	select {
	case seatID = <-seatOut:
	default:
	}
	return seatID, err
}

func (r *Room) Leave(seatID string, mode LeaveMode) error {
	return r.SubmitEvent(Event{Type: EventLeave, SeatID: seatID, Mode: mode})
}

func (r *Room) Reconnect(seatID string) error {
	return r.SubmitEvent(Event{Type: EventReconnect, SeatID: seatID})
}

func (r *Room) Move(seatID string, cell int, size board.Size) error {
	return r.SubmitEvent(Event{Type: EventMove, SeatID: seatID, Cell: cell, Size: size})
}

func (r *Room) CastReplayVote(seatID string, vote bool) error {
	return r.SubmitEvent(Event{Type: EventCastVote, SeatID: seatID, Vote: vote})
}

func (r *Room) RequestState(seatID string) error {
	return r.SubmitEvent(Event{Type: EventRequestState, SeatID: seatID})
}

func skippedSeat(res *otrio.Result, seatID string) bool {
	for _, s := range res.Skips {
		if s.SeatID == seatID {
			return true
		}
	}
	return false
}
