// Package gateway owns the websocket endpoints: upgrade, the
// read/write pumps, seat binding and dispatch of inbound JSON
// messages to room actors.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"otrio-lite/apps/server/internal/lobby"
	"otrio-lite/apps/server/internal/protocol"
	"otrio-lite/apps/server/internal/room"
	"otrio-lite/board"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer     = 256
	readLimit      = 65536
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	maxBadMessages = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

// Connection is one websocket client. RoomID/SeatID are set while the
// connection is bound to a seat.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Gateway *Gateway

	RoomID string
	SeatID string
	Room   *room.Room

	badMessages int
}

// Gateway manages websocket connections and the seat -> connection
// routing the rooms broadcast through.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	seatConns   map[string]*Connection
	nextConnID  uint64
	lobby       *lobby.Lobby
}

func New(lby *lobby.Lobby) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		seatConns:   make(map[string]*Connection),
		lobby:       lby,
	}
}

// HandleWebSocket upgrades the request and starts the pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	connID := fmt.Sprintf("conn_%d", g.nextConnID)
	c := &Connection{
		ID:      connID,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Gateway: g,
	}
	g.connections[connID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s, total: %d", connID, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.dropConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}

		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			c.handleMessage(message)
			if c.badMessages >= maxBadMessages {
				log.Printf("[Gateway] Dropping %s after %d malformed messages", c.ID, c.badMessages)
				break
			}
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.badMessages++
		c.sendError(protocol.TypeRoomError, protocol.NewError(protocol.CodeInvalidInput, "invalid message format"))
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		c.enqueue(protocol.Pong{Type: protocol.TypePong, Ts: time.Now().UnixMilli()})
	case protocol.TypeCreateRoom:
		c.handleCreateRoom(&msg)
	case protocol.TypeJoinRoom:
		c.handleJoinRoom(&msg)
	case protocol.TypeLeaveRoom:
		c.handleLeaveRoom()
	case protocol.TypeMakeMove:
		c.handleMakeMove(&msg)
	case protocol.TypeGetGameState:
		c.handleGetGameState()
	case protocol.TypeCastReplayVote:
		c.handleCastReplayVote(&msg)
	default:
		c.badMessages++
		c.sendError(protocol.TypeRoomError, protocol.NewError(protocol.CodeInvalidInput, "unknown message type: "+msg.Type))
	}
}

func (c *Connection) handleCreateRoom(msg *protocol.ClientMessage) {
	if c.Room != nil {
		c.sendError(protocol.TypeRoomError, room.ErrAlreadyIn)
		return
	}
	name := strings.TrimSpace(msg.RoomName)
	if name == "" {
		name = strings.TrimSpace(msg.PlayerName) + "'s room"
	}

	r, err := c.Gateway.lobby.Create(c.ID, name, msg.Capacity, msg.IsPrivate, msg.Code, c.Gateway.sendToSeat)
	if err != nil {
		c.sendError(protocol.TypeRoomError, err)
		return
	}

	seatID, err := r.Join(msg.PlayerName, msg.Code)
	if err != nil {
		// Empty room with no host; no reason to keep it.
		c.Gateway.lobby.Remove(r.ID)
		c.sendError(protocol.TypeRoomError, err)
		return
	}
	c.bindSeat(r, seatID)

	log.Printf("[Gateway] %s created room %s as seat %s", c.ID, r.ID, seatID)
	c.enqueue(protocol.RoomCreated{
		Type:      protocol.TypeRoomCreated,
		RoomID:    r.ID,
		SeatID:    seatID,
		GameState: r.State(),
	})
}

func (c *Connection) handleJoinRoom(msg *protocol.ClientMessage) {
	if c.Room != nil {
		c.sendError(protocol.TypeJoinError, room.ErrAlreadyIn)
		return
	}
	r, err := c.Gateway.lobby.Get(msg.RoomID)
	if err != nil {
		c.sendError(protocol.TypeJoinError, err)
		return
	}

	if msg.SeatID != "" {
		// Reconnect: reclaim an existing seat on a fresh transport.
		// Bind first so the resync broadcast reaches this endpoint; a
		// rejected claim restores the routing entry it displaced, so a
		// stranger quoting someone else's seat id cannot unbind them.
		prev := c.bindSeat(r, msg.SeatID)
		if err := r.Reconnect(msg.SeatID); err != nil {
			c.rollbackSeat(msg.SeatID, prev)
			c.sendError(protocol.TypeJoinError, err)
			return
		}
		log.Printf("[Gateway] %s reclaimed seat %s in room %s", c.ID, msg.SeatID, r.ID)
		c.enqueue(protocol.RoomJoined{
			Type:      protocol.TypeRoomJoined,
			RoomID:    r.ID,
			SeatID:    msg.SeatID,
			GameState: r.State(),
		})
		return
	}

	seatID, err := r.Join(msg.PlayerName, msg.AccessCode)
	if err != nil {
		c.sendError(protocol.TypeJoinError, err)
		return
	}
	c.bindSeat(r, seatID)

	log.Printf("[Gateway] %s joined room %s as seat %s", c.ID, r.ID, seatID)
	c.enqueue(protocol.RoomJoined{
		Type:      protocol.TypeRoomJoined,
		RoomID:    r.ID,
		SeatID:    seatID,
		GameState: r.State(),
	})
}

func (c *Connection) handleLeaveRoom() {
	if c.Room == nil {
		c.sendError(protocol.TypeRoomError, protocol.NewError(protocol.CodeNotFound, "not in a room"))
		return
	}
	r, seatID := c.Room, c.SeatID
	c.unbindSeat()
	c.Gateway.lobby.ReleaseHost(c.ID)

	if err := r.Leave(seatID, room.LeaveExplicit); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		c.sendError(protocol.TypeRoomError, err)
	}
}

func (c *Connection) handleMakeMove(msg *protocol.ClientMessage) {
	if c.Room == nil {
		c.sendError(protocol.TypeMoveError, protocol.NewError(protocol.CodeNotFound, "not in a room"))
		return
	}
	if msg.CellIndex == nil {
		c.sendError(protocol.TypeMoveError, protocol.NewError(protocol.CodeInvalidInput, "missing cellIndex"))
		return
	}
	size, ok := board.ParseSize(msg.Size)
	if !ok {
		c.sendError(protocol.TypeMoveError, protocol.NewError(protocol.CodeInvalidInput, "unknown piece size: "+msg.Size))
		return
	}

	if err := c.Room.Move(c.SeatID, *msg.CellIndex, size); err != nil {
		c.sendError(protocol.TypeMoveError, err)
	}
}

func (c *Connection) handleGetGameState() {
	if c.Room == nil {
		c.sendError(protocol.TypeRoomError, protocol.NewError(protocol.CodeNotFound, "not in a room"))
		return
	}
	if err := c.Room.RequestState(c.SeatID); err != nil {
		c.sendError(protocol.TypeRoomError, err)
	}
}

func (c *Connection) handleCastReplayVote(msg *protocol.ClientMessage) {
	if c.Room == nil {
		c.sendError(protocol.TypeRoomError, protocol.NewError(protocol.CodeNotFound, "not in a room"))
		return
	}
	if msg.Vote == nil {
		c.sendError(protocol.TypeRoomError, protocol.NewError(protocol.CodeInvalidInput, "missing vote"))
		return
	}
	if err := c.Room.CastReplayVote(c.SeatID, *msg.Vote); err != nil {
		c.sendError(protocol.TypeRoomError, err)
	}
}

// --- binding / teardown ---

// bindSeat points the seat's routing entry at this connection and
// returns the connection it displaced, if any.
func (c *Connection) bindSeat(r *room.Room, seatID string) *Connection {
	c.Room = r
	c.RoomID = r.ID
	c.SeatID = seatID
	c.Gateway.mu.Lock()
	prev := c.Gateway.seatConns[seatID]
	c.Gateway.seatConns[seatID] = c
	c.Gateway.mu.Unlock()
	return prev
}

// rollbackSeat undoes a bindSeat whose room call was rejected,
// putting back the routing entry the bind displaced.
func (c *Connection) rollbackSeat(seatID string, prev *Connection) {
	c.Room = nil
	c.RoomID = ""
	c.SeatID = ""
	c.Gateway.mu.Lock()
	if c.Gateway.seatConns[seatID] == c {
		if prev != nil {
			c.Gateway.seatConns[seatID] = prev
		} else {
			delete(c.Gateway.seatConns, seatID)
		}
	}
	c.Gateway.mu.Unlock()
}

func (c *Connection) unbindSeat() {
	seatID := c.SeatID
	c.Room = nil
	c.RoomID = ""
	c.SeatID = ""
	if seatID == "" {
		return
	}
	c.Gateway.mu.Lock()
	if c.Gateway.seatConns[seatID] == c {
		delete(c.Gateway.seatConns, seatID)
	}
	c.Gateway.mu.Unlock()
}

// dropConnection handles the transport going away: the seat survives
// as disconnected and the grace window starts.
func (g *Gateway) dropConnection(c *Connection) {
	r, seatID := c.Room, c.SeatID
	c.unbindSeat()

	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()

	if r != nil && seatID != "" {
		if err := r.Leave(seatID, room.LeaveDisconnect); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			log.Printf("[Gateway] Disconnect handling for seat %s failed: %v", seatID, err)
		}
	}
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
}

// --- outbound ---

func (c *Connection) enqueue(event any) {
	data := protocol.Encode(event)
	if data == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] Send buffer full for %s, closing", c.ID)
		c.Conn.Close()
	}
}

func (c *Connection) sendError(eventType string, err error) {
	code, msg := protocol.CodeOf(err)
	c.enqueue(protocol.ErrorEvent{Type: eventType, Code: code, Message: msg})
}

// sendToSeat is the BroadcastFunc rooms deliver through. A slow
// consumer whose buffer overflows is disconnected rather than
// silently losing events.
func (g *Gateway) sendToSeat(seatID string, data []byte) {
	g.mu.RLock()
	c := g.seatConns[seatID]
	g.mu.RUnlock()
	if c == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] Send buffer full for seat %s, closing %s", seatID, c.ID)
		c.Conn.Close()
	}
}
