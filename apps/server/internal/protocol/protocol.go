// Package protocol defines the JSON wire contract: inbound client
// messages, outbound server events and the game-state payload clients
// render from. The server is authoritative; clients are read-only
// observers of these payloads.
package protocol

import (
	"encoding/json"
	"log"
	"time"

	"otrio-lite/board"
	"otrio-lite/otrio"
)

// Inbound message types (client -> server).
const (
	TypePing           = "ping"
	TypeCreateRoom     = "create-room"
	TypeJoinRoom       = "join-room"
	TypeLeaveRoom      = "leave-room"
	TypeMakeMove       = "make-move"
	TypeGetGameState   = "get-game-state"
	TypeCastReplayVote = "cast-replay-vote"
)

// ClientMessage is the single decode target for every inbound frame.
// Unused fields stay at their zero value for a given type.
type ClientMessage struct {
	Type string `json:"type"`

	// create-room
	PlayerName string `json:"playerName,omitempty"`
	RoomName   string `json:"roomName,omitempty"`
	IsPrivate  bool   `json:"isPrivate,omitempty"`
	Capacity   int    `json:"capacity,omitempty"`
	Code       string `json:"code,omitempty"`

	// join-room / make-move / get-game-state / cast-replay-vote
	RoomID     string `json:"roomId,omitempty"`
	AccessCode string `json:"accessCode,omitempty"`
	// SeatID reclaims an existing seat over a fresh transport.
	SeatID string `json:"seatId,omitempty"`

	CellIndex *int   `json:"cellIndex,omitempty"`
	Size      string `json:"size,omitempty"`

	Vote *bool `json:"vote,omitempty"`
}

// Outbound event types (server -> client).
const (
	TypePong                = "pong"
	TypeRoomCreated         = "room-created"
	TypeRoomJoined          = "room-joined"
	TypePlayerJoined        = "player-joined"
	TypeRoomError           = "room-error"
	TypeJoinError           = "join-error"
	TypeMoveError           = "move-error"
	TypeGameStarted         = "game-started"
	TypeGameUpdated         = "game-updated"
	TypeGameEnded           = "game-ended"
	TypeTimerUpdate         = "timer-update"
	TypeTurnSkipped         = "turn-skipped"
	TypePlayerEliminated    = "player-eliminated"
	TypePlayerDisconnected  = "player-disconnected"
	TypeHostTransferred     = "host-transferred"
	TypeReplayVotingStarted = "replay-voting-started"
	TypeReplayVoteUpdated   = "replay-vote-updated"
	TypeReplayRejected      = "replay-rejected"
	TypeReplayTimeout       = "replay-timeout"
	TypeGameRestarted       = "game-restarted"
	TypeGameState           = "game-state"
)

type Pong struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

type RoomCreated struct {
	Type      string     `json:"type"`
	RoomID    string     `json:"roomId"`
	SeatID    string     `json:"seatId"`
	GameState *GameState `json:"gameState"`
}

type RoomJoined struct {
	Type      string     `json:"type"`
	RoomID    string     `json:"roomId"`
	SeatID    string     `json:"seatId"`
	GameState *GameState `json:"gameState"`
}

type PlayerJoined struct {
	Type      string      `json:"type"`
	Player    PlayerState `json:"player"`
	GameState *GameState  `json:"gameState"`
}

type ErrorEvent struct {
	Type    string    `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type GameEvent struct {
	Type      string     `json:"type"`
	GameState *GameState `json:"gameState"`
}

type GameEnded struct {
	Type      string     `json:"type"`
	WinnerID  *string    `json:"winnerId"`
	IsDraw    bool       `json:"isDraw"`
	GameState *GameState `json:"gameState"`
}

type TimerUpdate struct {
	Type            string  `json:"type"`
	TurnTimeLeft    int     `json:"turnTimeLeft"`
	CurrentPlayerID *string `json:"currentPlayerId"`
}

type TurnSkipped struct {
	Type            string     `json:"type"`
	SkippedPlayerID string     `json:"skippedPlayerId"`
	Reason          string     `json:"reason"`
	GameState       *GameState `json:"gameState"`
}

type PlayerEliminated struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

type PlayerDisconnected struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

type HostTransferred struct {
	Type      string `json:"type"`
	NewHostID string `json:"newHostId"`
}

type ReplayVotingStarted struct {
	Type           string           `json:"type"`
	ReplayDeadline int64            `json:"replayDeadline"`
	ReplayVotes    map[string]*bool `json:"replayVotes"`
}

type ReplayVoteUpdated struct {
	Type        string           `json:"type"`
	ReplayVotes map[string]*bool `json:"replayVotes"`
}

type ReplayClosed struct {
	Type string `json:"type"`
}

// RoomSummary is the lobby-listing view of one room.
type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	Capacity    int    `json:"capacity"`
	IsPrivate   bool   `json:"isPrivate"`
	Status      string `json:"status"`
}

// Encode marshals an outbound event. Events are plain structs, so a
// marshal failure is a programming error; it is logged and dropped
// rather than crashing the room actor.
func Encode(event any) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Protocol] Failed to marshal %T: %v", event, err)
		return nil
	}
	return data
}

// --- game-state payload ---

type CellState struct {
	P *string `json:"P"`
	M *string `json:"M"`
	G *string `json:"G"`
}

type InventoryState struct {
	P int `json:"P"`
	M int `json:"M"`
	G int `json:"G"`
}

type PlayerState struct {
	ID           string         `json:"id"`
	Nickname     string         `json:"nickname"`
	Color        string         `json:"color"`
	Inventory    InventoryState `json:"inventory"`
	Connected    bool           `json:"connected"`
	IsHost       bool           `json:"isHost"`
	IsEliminated bool           `json:"isEliminated"`
	SkipsInARow  int            `json:"skipsInARow"`
}

type GameState struct {
	Board           [board.NumCells]CellState `json:"board"`
	Players         []PlayerState             `json:"players"`
	CurrentPlayerID *string                   `json:"currentPlayerId"`
	Status          string                    `json:"status"`
	WinnerID        *string                   `json:"winnerId"`
	IsDraw          bool                      `json:"isDraw"`
	StartedAt       *int64                    `json:"startedAt"`
	FinishedAt      *int64                    `json:"finishedAt"`
	// Derived; clients should prefer timer-update.
	TurnTimeLeft int `json:"turnTimeLeft"`
}

// BuildGameState assembles the payload. snap is nil while the room is
// still waiting for players; seats then supplies the roster.
func BuildGameState(status string, seats []*otrio.Seat, snap *otrio.Snapshot, now time.Time) *GameState {
	gs := &GameState{Status: status}

	if snap == nil {
		for _, s := range seats {
			gs.Players = append(gs.Players, seatToPlayerState(otrio.SeatSnapshot{
				ID:          s.ID,
				Nickname:    s.Nickname,
				Color:       s.Color,
				Inventory:   s.Inventory,
				Connected:   s.Connected,
				Host:        s.Host,
				Eliminated:  s.Eliminated,
				SkipsInARow: s.SkipsInARow,
			}))
		}
		return gs
	}

	gs.Board = boardToState(snap.Board)
	for _, s := range snap.Seats {
		gs.Players = append(gs.Players, seatToPlayerState(s))
	}
	if snap.CurrentSeatID != "" {
		id := snap.CurrentSeatID
		gs.CurrentPlayerID = &id
	}
	if snap.WinnerID != "" {
		id := snap.WinnerID
		gs.WinnerID = &id
	}
	gs.IsDraw = snap.IsDraw
	if !snap.StartedAt.IsZero() {
		ms := snap.StartedAt.UnixMilli()
		gs.StartedAt = &ms
	}
	if !snap.FinishedAt.IsZero() {
		ms := snap.FinishedAt.UnixMilli()
		gs.FinishedAt = &ms
	}
	if snap.Status == otrio.StatusPlaying {
		left := snap.TurnDeadline.Sub(now)
		if left < 0 {
			left = 0
		}
		gs.TurnTimeLeft = int((left + time.Second - 1) / time.Second)
	}
	return gs
}

func seatToPlayerState(s otrio.SeatSnapshot) PlayerState {
	return PlayerState{
		ID:       s.ID,
		Nickname: s.Nickname,
		Color:    string(s.Color),
		Inventory: InventoryState{
			P: s.Inventory.Count(board.SizeP),
			M: s.Inventory.Count(board.SizeM),
			G: s.Inventory.Count(board.SizeG),
		},
		Connected:    s.Connected,
		IsHost:       s.Host,
		IsEliminated: s.Eliminated,
		SkipsInARow:  s.SkipsInARow,
	}
}

func boardToState(b board.Board) [board.NumCells]CellState {
	var out [board.NumCells]CellState
	for i := 0; i < board.NumCells; i++ {
		out[i] = CellState{
			P: colorPtr(b[i], board.SizeP),
			M: colorPtr(b[i], board.SizeM),
			G: colorPtr(b[i], board.SizeG),
		}
	}
	return out
}

func colorPtr(c board.Cell, s board.Size) *string {
	color, ok := c.Piece(s)
	if !ok {
		return nil
	}
	v := string(color)
	return &v
}
