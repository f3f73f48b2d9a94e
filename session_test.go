package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	cfg := &Config{}
	mgr := newRoomManager(cfg, zaptest.NewLogger(t), newMetrics(prometheus.NewRegistry()))

	mux := httprouter.New()
	mux.GET("/ws", serveWS(cfg, mgr, zaptest.NewLogger(t)))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialWS(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if token != "" {
		header.Set("Cookie", playerCookieName+"="+token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readWireType(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()

	for {
		msg := readWire(t, conn)
		if msg["type"] == msgType {
			return msg
		}
	}
}

func sendWire(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestFullGameFlowOverWebSocket(t *testing.T) {
	_, url := testServer(t)

	alice := dialWS(t, url, uuid.NewString())

	sendWire(t, alice, ClientMessage{Type: "create_room", Name: "friday", Capacity: 2})
	created := readWireType(t, alice, "room_created")
	roomID, _ := created["room_id"].(string)
	require.NotEmpty(t, roomID)

	sendWire(t, alice, ClientMessage{Type: "join_room", RoomID: roomID, PlayerName: "Alice"})
	joined := readWireType(t, alice, "joined")
	assert.Equal(t, float64(0), joined["player_slot"])

	bob := dialWS(t, url, uuid.NewString())
	sendWire(t, bob, ClientMessage{Type: "join_room", RoomID: roomID, PlayerName: "Bob"})
	joined = readWireType(t, bob, "joined")
	assert.Equal(t, float64(1), joined["player_slot"])

	// Roster full: level 1 is dealt and broadcast to both.
	stateA := readWireType(t, alice, "state_update")
	stateB := readWireType(t, bob, "state_update")
	assert.Equal(t, "in_progress", stateA["status"])
	assert.Equal(t, float64(1), stateA["level"])
	assert.Equal(t, float64(2), stateA["lives"])

	// Redaction over the wire: each player's own hand only.
	playersA := stateA["players"].([]any)
	ownA := playersA[0].(map[string]any)
	otherA := playersA[1].(map[string]any)
	assert.Len(t, ownA["hand"], 1)
	assert.Nil(t, otherA["hand"])
	assert.Equal(t, float64(1), otherA["hand_size"])

	playersB := stateB["players"].([]any)
	assert.Nil(t, playersB[0].(map[string]any)["hand"])
	assert.Len(t, playersB[1].(map[string]any)["hand"], 1)

	// A throwing star on level 1 clears the level deterministically.
	sendWire(t, alice, ClientMessage{Type: "use_star"})
	stateA = readWireType(t, alice, "state_update")
	for stateA["status"] != "level_clear" {
		stateA = readWireType(t, alice, "state_update")
	}
	assert.Equal(t, float64(0), stateA["stars"])
	assert.Len(t, stateA["pile"], 2)

	stateB = readWireType(t, bob, "state_update")
	for stateB["status"] != "level_clear" {
		stateB = readWireType(t, bob, "state_update")
	}

	// Any player may advance.
	sendWire(t, bob, ClientMessage{Type: "advance_level"})
	stateB = readWireType(t, bob, "state_update")
	for stateB["level"] != float64(2) {
		stateB = readWireType(t, bob, "state_update")
	}
	assert.Equal(t, "in_progress", stateB["status"])
	assert.Len(t, stateB["players"].([]any)[1].(map[string]any)["hand"], 2)
}

func TestJoinUnknownRoom(t *testing.T) {
	_, url := testServer(t)

	conn := dialWS(t, url, "")
	sendWire(t, conn, ClientMessage{Type: "join_room", RoomID: "NOSUCH", PlayerName: "Alice"})

	msg := readWireType(t, conn, "error")
	assert.Equal(t, "room_not_found", msg["code"])
}

func TestActionsOutsideRoomRejected(t *testing.T) {
	_, url := testServer(t)

	conn := dialWS(t, url, "")
	sendWire(t, conn, ClientMessage{Type: "play_card", Card: 42})

	msg := readWireType(t, conn, "error")
	assert.Equal(t, "not_in_room", msg["code"])
}

func TestUnknownMessageTypeRejected(t *testing.T) {
	_, url := testServer(t)

	conn := dialWS(t, url, "")
	sendWire(t, conn, map[string]any{"type": "dance"})

	msg := readWireType(t, conn, "error")
	assert.Equal(t, "validation", msg["code"])
}

func TestMalformedJSONRejected(t *testing.T) {
	_, url := testServer(t)

	conn := dialWS(t, url, "")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	msg := readWireType(t, conn, "error")
	assert.Equal(t, "validation", msg["code"])
}

func TestListRoomsOverWire(t *testing.T) {
	_, url := testServer(t)

	creator := dialWS(t, url, "")
	sendWire(t, creator, ClientMessage{Type: "create_room", Name: "open table", Capacity: 3})
	created := readWireType(t, creator, "room_created")

	observer := dialWS(t, url, "")
	sendWire(t, observer, ClientMessage{Type: "list_rooms"})
	listing := readWireType(t, observer, "rooms")

	rooms := listing["rooms"].([]any)
	require.Len(t, rooms, 1)
	room := rooms[0].(map[string]any)
	assert.Equal(t, created["room_id"], room["room_id"])
	assert.Equal(t, "open table", room["name"])
	assert.Equal(t, float64(0), room["occupancy"])
	assert.Equal(t, float64(3), room["capacity"])
	assert.Equal(t, false, room["in_progress"])
}

func TestReconnectOverWire(t *testing.T) {
	_, url := testServer(t)

	tokenA, tokenB := uuid.NewString(), uuid.NewString()

	alice := dialWS(t, url, tokenA)
	sendWire(t, alice, ClientMessage{Type: "create_room", Name: "table", Capacity: 2})
	created := readWireType(t, alice, "room_created")
	roomID := created["room_id"].(string)

	sendWire(t, alice, ClientMessage{Type: "join_room", RoomID: roomID, PlayerName: "Alice"})
	readWireType(t, alice, "joined")

	bob := dialWS(t, url, tokenB)
	sendWire(t, bob, ClientMessage{Type: "join_room", RoomID: roomID, PlayerName: "Bob"})
	readWireType(t, bob, "joined")

	stateB := readWireType(t, bob, "state_update")
	hand := stateB["players"].([]any)[1].(map[string]any)["hand"]

	// Drop Bob's connection and wait until the server has noticed.
	require.NoError(t, bob.Close())
	for {
		msg := readWire(t, alice)
		if msg["type"] == "player_left" {
			break
		}
	}

	bob2 := dialWS(t, url, tokenB)
	sendWire(t, bob2, ClientMessage{Type: "join_room", RoomID: roomID, PlayerName: "Bob"})

	joined := readWireType(t, bob2, "joined")
	assert.Equal(t, true, joined["reconnected"])
	assert.Equal(t, float64(1), joined["player_slot"])

	resent := readWireType(t, bob2, "state_update")
	assert.Equal(t, hand, resent["players"].([]any)[1].(map[string]any)["hand"])
	assert.Equal(t, float64(2), resent["lives"])
	assert.Equal(t, float64(1), resent["stars"])
}
