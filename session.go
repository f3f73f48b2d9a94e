package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	playerCookieName = "mindhall_id"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one WebSocket connection. It belongs to at most one room; the
// room only ever reaches it through the buffered send channel.
type client struct {
	token  string
	conn   *websocket.Conn
	send   chan any
	logger *zap.Logger

	mu     sync.Mutex
	room   *Room
	closed bool
}

func newClient(token string, conn *websocket.Conn, logger *zap.Logger) *client {
	return &client{
		token:  token,
		conn:   conn,
		send:   make(chan any, sendBuffer),
		logger: logger,
	}
}

func (c *client) setRoom(r *Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = r
}

func (c *client) currentRoom() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// trySend queues a message without blocking. A full buffer means the
// connection can't keep up; the caller decides what to do about it. The
// lock keeps a send from racing a close: a room can replace or drop this
// connection while its own read loop is still answering queries.
func (c *client) trySend(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once, which ends the write pump.
// Later trySend calls return false instead of hitting the closed channel.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) readPump(mgr *RoomManager) {
	defer func() {
		if room := c.currentRoom(); room != nil {
			room.Detach(c)
		}
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.trySend(errorMessage(&ValidationError{Message: "invalid message"}))
			continue
		}

		c.dispatch(mgr, msg)
	}
}

// dispatch routes one decoded client message. Errors go back to this
// connection only; accepted game actions broadcast from inside the room.
func (c *client) dispatch(mgr *RoomManager, msg ClientMessage) {
	switch msg.Type {
	case "create_room":
		room, err := mgr.CreateRoom(msg.Name, msg.Capacity)
		if err != nil {
			c.trySend(errorMessage(err))
			return
		}
		c.trySend(RoomCreatedMessage{Type: "room_created", RoomID: room.id})

	case "join_room":
		if c.currentRoom() != nil {
			c.trySend(errorMessage(ErrAlreadyInRoom))
			return
		}
		name := strings.TrimSpace(msg.PlayerName)
		if name == "" {
			c.trySend(errorMessage(&ValidationError{Message: "player name is required"}))
			return
		}
		room, err := mgr.Get(msg.RoomID)
		if err != nil {
			c.trySend(errorMessage(err))
			return
		}
		if err := room.Join(c, name); err != nil {
			c.trySend(errorMessage(err))
		}

	case "list_rooms":
		c.trySend(RoomListMessage{Type: "rooms", Rooms: mgr.List()})

	case "play_card":
		c.inRoom(func(room *Room) error { return room.PlayCard(c, msg.Card) })

	case "use_star":
		c.inRoom(func(room *Room) error { return room.UseStar(c) })

	case "advance_level":
		c.inRoom(func(room *Room) error { return room.Advance(c) })

	default:
		c.trySend(errorMessage(&ValidationError{Message: "unknown message type: " + msg.Type}))
	}
}

func (c *client) inRoom(fn func(room *Room) error) {
	room := c.currentRoom()
	if room == nil {
		c.trySend(errorMessage(ErrNotInRoom))
		return
	}
	if err := fn(room); err != nil {
		c.trySend(errorMessage(err))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// playerToken returns the identity cookie for this browser, minting one
// if needed. The token is what ties a reconnecting socket back to its
// seat.
func playerToken(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	id := uuid.NewString()
	return id, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// serveWS upgrades a connection and runs its pumps until it drops.
func serveWS(cfg *Config, mgr *RoomManager, logger *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		token, cookie := playerToken(r)

		var header http.Header
		if cookie != nil {
			header = http.Header{"Set-Cookie": {cookie.String()}}
		}

		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			logger.Debug("upgrade failed", zap.String("remote", realIP(r)), zap.Error(err))
			return
		}

		c := newClient(token, conn, logger)
		logger.Debug("connection opened", zap.String("remote", realIP(r)))

		go c.writePump()
		c.readPump(mgr)
	}
}
