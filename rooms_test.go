package main

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/happyhourgames/mindhall/games/themind"
)

func TestCreateRoomValidation(t *testing.T) {
	mgr := testManager(t)

	_, err := mgr.CreateRoom("", 2)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = mgr.CreateRoom("   ", 2)
	assert.ErrorAs(t, err, &validation)

	var invalid *themind.InvalidMoveError
	_, err = mgr.CreateRoom("table", 1)
	assert.ErrorAs(t, err, &invalid)
	_, err = mgr.CreateRoom("table", 5)
	assert.ErrorAs(t, err, &invalid)
}

func TestCreateAndGetRoom(t *testing.T) {
	mgr := testManager(t)

	room, err := mgr.CreateRoom("friday night", 3)
	require.NoError(t, err)
	assert.Len(t, room.id, 6)

	got, err := mgr.Get(room.id)
	require.NoError(t, err)
	assert.Same(t, room, got)

	_, err = mgr.Get("NOSUCH")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomIDsAreUnique(t *testing.T) {
	mgr := testManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, err := mgr.CreateRoom("table", 2)
		require.NoError(t, err)
		require.False(t, seen[room.id])
		seen[room.id] = true
	}
}

func TestListRooms(t *testing.T) {
	mgr := testManager(t)

	r1, err := mgr.CreateRoom("one", 2)
	require.NoError(t, err)
	r2, err := mgr.CreateRoom("two", 4)
	require.NoError(t, err)

	infos := mgr.List()
	require.Len(t, infos, 2)
	assert.Less(t, infos[0].RoomID, infos[1].RoomID)

	byID := make(map[string]RoomInfo)
	for _, info := range infos {
		byID[info.RoomID] = info
	}
	assert.Equal(t, RoomInfo{RoomID: r1.id, Name: "one", Occupancy: 0, Capacity: 2}, byID[r1.id])
	assert.Equal(t, RoomInfo{RoomID: r2.id, Name: "two", Occupancy: 0, Capacity: 4}, byID[r2.id])
}

func TestListReflectsProgress(t *testing.T) {
	mgr := testManager(t)
	room, _, _ := startedRoom(t, mgr)

	infos := mgr.List()
	require.Len(t, infos, 1)
	assert.Equal(t, room.id, infos[0].RoomID)
	assert.Equal(t, 2, infos[0].Occupancy)
	assert.True(t, infos[0].InProgress)
}

func TestReaperRemovesAbandonedRooms(t *testing.T) {
	cfg := &Config{roomGrace: time.Minute}
	mgr := newRoomManager(cfg, zaptest.NewLogger(t), newMetrics(prometheus.NewRegistry()))

	// Never joined: the grace clock starts at creation.
	abandoned, err := mgr.CreateRoom("abandoned", 2)
	require.NoError(t, err)

	// Attached: immune to the grace clock.
	occupied, err := mgr.CreateRoom("occupied", 2)
	require.NoError(t, err)
	require.NoError(t, occupied.Join(testClient(), "Alice"))

	mgr.reapStale(time.Now().Add(2 * time.Minute))

	_, err = mgr.Get(abandoned.id)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = mgr.Get(occupied.id)
	assert.NoError(t, err)
}

func TestReaperHonorsGracePeriodAfterDisconnect(t *testing.T) {
	cfg := &Config{roomGrace: 10 * time.Minute}
	mgr := newRoomManager(cfg, zaptest.NewLogger(t), newMetrics(prometheus.NewRegistry()))

	room, err := mgr.CreateRoom("table", 2)
	require.NoError(t, err)

	c := testClient()
	require.NoError(t, room.Join(c, "Alice"))
	room.Detach(c)

	// A transient disconnect within the grace period keeps the room alive.
	mgr.reapStale(time.Now().Add(time.Minute))
	_, err = mgr.Get(room.id)
	assert.NoError(t, err)

	mgr.reapStale(time.Now().Add(time.Hour))
	_, err = mgr.Get(room.id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
