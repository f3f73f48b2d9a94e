package main

import (
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/happyhourgames/mindhall/games/themind"
)

const maxRoomNameLen = 64

// RoomManager owns the id to room mapping and is its only mutator.
// Connections hold a room id plus seat, never the map itself, so one
// room's trouble can never reach another room's state.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	grace   time.Duration // how long a fully detached room survives
	idle    time.Duration // how long an inactive room survives
	logger  *zap.Logger
	metrics *metrics
}

func newRoomManager(cfg *Config, logger *zap.Logger, m *metrics) *RoomManager {
	rm := &RoomManager{
		rooms:   make(map[string]*Room),
		grace:   cfg.roomGrace,
		idle:    cfg.sessionTimeout,
		logger:  logger,
		metrics: m,
	}

	if rm.grace > 0 || rm.idle > 0 {
		go rm.reaperLoop()
	}

	return rm
}

// CreateRoom opens a room for the given roster size and returns it.
func (rm *RoomManager) CreateRoom(name string, capacity int) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Message: "room name is required"}
	}
	if len(name) > maxRoomNameLen {
		return nil, &ValidationError{Message: "room name is too long"}
	}

	game, err := themind.New(capacity)
	if err != nil {
		return nil, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	id := rm.newRoomIDLocked()
	room := newRoom(id, name, capacity, game, rm.logger, rm.metrics)
	rm.rooms[id] = room
	rm.metrics.roomsOpen.Inc()

	rm.logger.Info("room created",
		zap.String("room", id),
		zap.String("name", name),
		zap.Int("capacity", capacity),
	)

	return room, nil
}

// Get looks a room up by id.
func (rm *RoomManager) Get(id string) (*Room, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, ok := rm.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// List snapshots every open room. It never enters a room's action path
// beyond a brief occupancy read.
func (rm *RoomManager) List() []RoomInfo {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].RoomID < infos[j].RoomID
	})

	return infos
}

// newRoomIDLocked generates a crypto-random room code and ensures it
// doesn't collide with an existing room.
func (rm *RoomManager) newRoomIDLocked() string {
	const letters = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 6)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := rm.rooms[id]; !exists {
			return id
		}
	}
}

// reaperLoop periodically removes rooms that have been fully detached
// past the grace period or idle past the session timeout. A transient
// disconnect never destroys a room; only the grace clock can.
func (rm *RoomManager) reaperLoop() {
	interval := rm.grace
	if interval == 0 || (rm.idle > 0 && rm.idle < interval) {
		interval = rm.idle
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for range ticker.C {
		rm.reapStale(time.Now())
	}
}

func (rm *RoomManager) reapStale(now time.Time) {
	rm.mu.Lock()
	var stale []*Room
	for id, room := range rm.rooms {
		if room.reapable(rm.grace, rm.idle, now) {
			delete(rm.rooms, id)
			rm.metrics.roomsOpen.Dec()
			stale = append(stale, room)
		}
	}
	rm.mu.Unlock()

	for _, room := range stale {
		rm.logger.Info("reaped stale room", zap.String("room", room.id))
		go room.closeAll()
	}
}
