package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/happyhourgames/mindhall/games/themind"
)

// slot is one seat at the table. The seat survives disconnects: name,
// identity token, and the player's hand (held by the engine) stay put
// until the room is reaped.
type slot struct {
	name   string
	token  string
	client *client // nil while detached
}

// Room owns one game instance and its roster. Every mutating operation
// runs under mu, so actions from different connections are applied in
// arrival order and each one sees the previous action's resulting state.
type Room struct {
	id       string
	name     string
	capacity int

	logger  *zap.Logger
	metrics *metrics

	mu         sync.Mutex
	slots      []*slot
	game       *themind.Game
	createdAt  time.Time
	lastActive time.Time
	emptySince time.Time // zero while any connection is attached
	finished   bool      // terminal state already counted
}

func newRoom(id, name string, capacity int, game *themind.Game, logger *zap.Logger, m *metrics) *Room {
	now := time.Now()
	return &Room{
		id:         id,
		name:       name,
		capacity:   capacity,
		game:       game,
		logger:     logger.With(zap.String("room", id)),
		metrics:    m,
		createdAt:  now,
		lastActive: now,
		emptySince: now,
	}
}

// Join seats a connection. A token matching an existing seat reattaches
// that seat and resends the full state to the returning connection only;
// otherwise a new seat is taken and, once the roster is full, level 1 is
// dealt and broadcast.
func (r *Room) Join(c *client, playerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	for i, s := range r.slots {
		if s.token != c.token {
			continue
		}

		// Returning player. Replace any ghost connection still attached.
		old := s.client
		s.client = c
		if old != nil {
			old.close()
		} else {
			r.metrics.connections.Inc()
		}
		r.emptySince = time.Time{}
		c.setRoom(r)

		c.trySend(JoinedMessage{
			Type:        "joined",
			RoomID:      r.id,
			PlayerSlot:  i,
			PlayerName:  s.name,
			Occupancy:   len(r.slots),
			Capacity:    r.capacity,
			Reconnected: true,
		})
		c.trySend(r.stateForLocked(i, ""))

		r.logger.Info("player reconnected", zap.Int("slot", i), zap.String("player", s.name))

		return nil
	}

	if len(r.slots) >= r.capacity {
		return ErrRoomFull
	}

	seat := len(r.slots)
	r.slots = append(r.slots, &slot{name: playerName, token: c.token, client: c})
	r.metrics.connections.Inc()
	r.emptySince = time.Time{}
	c.setRoom(r)

	c.trySend(JoinedMessage{
		Type:       "joined",
		RoomID:     r.id,
		PlayerSlot: seat,
		PlayerName: playerName,
		Occupancy:  len(r.slots),
		Capacity:   r.capacity,
	})

	r.broadcastLocked(PlayerEventMessage{
		Type:       "player_joined",
		PlayerSlot: seat,
		PlayerName: playerName,
		Occupancy:  len(r.slots),
		Capacity:   r.capacity,
	}, c)

	r.logger.Info("player joined", zap.Int("slot", seat), zap.String("player", playerName))

	// The deal happens the moment the last seat fills.
	if len(r.slots) == r.capacity {
		if err := r.game.Deal(); err != nil {
			return err
		}
		r.logger.Info("game started", zap.Int("players", r.capacity))
		r.broadcastStateLocked(fmt.Sprintf("All %d players seated, level %d dealt", r.capacity, r.game.Level()))
	}

	return nil
}

// Detach marks a connection's seat as disconnected without giving it up.
func (r *Room) Detach(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.slots {
		if s.client != c {
			continue
		}

		s.client = nil
		r.metrics.connections.Dec()
		r.lastActive = time.Now()
		if r.attachedLocked() == 0 {
			r.emptySince = time.Now()
		}

		r.broadcastLocked(PlayerEventMessage{
			Type:       "player_left",
			PlayerSlot: i,
			PlayerName: s.name,
			Occupancy:  len(r.slots),
			Capacity:   r.capacity,
		}, nil)

		r.logger.Info("player detached", zap.Int("slot", i), zap.String("player", s.name))

		return
	}
}

// PlayCard applies a play for the seated connection and broadcasts the
// resulting state. Rejected moves are reported to the caller only.
func (r *Room) PlayCard(c *client, card int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, err := r.seatForLocked(c)
	if err != nil {
		return err
	}

	res, err := r.game.PlayCard(seat, card)
	r.metrics.action("play_card", err)
	if err != nil {
		return err
	}

	r.lastActive = time.Now()
	r.logger.Info("card played",
		zap.Int("slot", seat),
		zap.Int("card", card),
		zap.Bool("in_order", res.InOrder),
		zap.Int("voided", len(res.Voided)),
	)

	r.noteFinishedLocked()
	r.broadcastStateLocked(res.Effect)

	return nil
}

// UseStar spends a throwing star on behalf of the seated connection.
func (r *Room) UseStar(c *client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, err := r.seatForLocked(c)
	if err != nil {
		return err
	}

	thrown, err := r.game.UseStar()
	r.metrics.action("use_star", err)
	if err != nil {
		return err
	}

	r.lastActive = time.Now()
	r.logger.Info("throwing star used", zap.Int("slot", seat), zap.Int("discarded", len(thrown)))

	r.noteFinishedLocked()
	r.broadcastStateLocked(r.starEffectLocked(seat, thrown))

	return nil
}

// Advance moves a cleared room to the next level. Any seated player may
// trigger it.
func (r *Room) Advance(c *client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, err := r.seatForLocked(c)
	if err != nil {
		return err
	}

	err = r.game.AdvanceLevel()
	r.metrics.action("advance_level", err)
	if err != nil {
		return err
	}

	r.lastActive = time.Now()

	var effect string
	if r.game.Status() == themind.StatusWon {
		effect = fmt.Sprintf("Level %d cleared. The Mind is won!", themind.MaxLevel)
	} else {
		effect = fmt.Sprintf("Level %d dealt", r.game.Level())
	}

	r.logger.Info("level advanced", zap.Int("slot", seat), zap.Int("level", r.game.Level()))

	r.noteFinishedLocked()
	r.broadcastStateLocked(effect)

	return nil
}

func (r *Room) starEffectLocked(seat int, thrown []themind.Discard) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s threw a star", r.slots[seat].name)
	for i, d := range thrown {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d (%s)", d.Card, r.slots[d.Player].name)
	}

	if r.game.Status() == themind.StatusLevelClear {
		fmt.Fprintf(&b, ". Level %d complete", r.game.Level())
	}

	return b.String()
}

func (r *Room) seatForLocked(c *client) (int, error) {
	for i, s := range r.slots {
		if s.client == c {
			return i, nil
		}
	}
	return 0, ErrNotInRoom
}

func (r *Room) attachedLocked() int {
	n := 0
	for _, s := range r.slots {
		if s.client != nil {
			n++
		}
	}
	return n
}

func (r *Room) noteFinishedLocked() {
	if r.finished || !r.game.Status().Terminal() {
		return
	}
	r.finished = true
	r.metrics.gamesFinished.WithLabelValues(string(r.game.Status())).Inc()
	r.logger.Info("game finished", zap.String("result", string(r.game.Status())))
}

// stateForLocked builds the state update one viewer is allowed to see:
// their own hand in full, everyone else's as a count.
func (r *Room) stateForLocked(viewer int, effect string) StateUpdateMessage {
	sizes := r.game.HandSizes()

	// An untouched pile still serializes as a list, not null.
	pile := r.game.Pile()
	if pile == nil {
		pile = []int{}
	}

	players := make([]PlayerState, 0, len(r.slots))
	for i, s := range r.slots {
		ps := PlayerState{
			Slot:      i,
			Name:      s.name,
			Connected: s.client != nil,
			HandSize:  sizes[i],
		}
		if i == viewer {
			ps.Hand = r.game.Hand(i)
		}
		players = append(players, ps)
	}

	return StateUpdateMessage{
		Type:       "state_update",
		RoomID:     r.id,
		Status:     r.game.Status(),
		Level:      r.game.Level(),
		Lives:      r.game.Lives(),
		MaxLives:   r.game.MaxLives(),
		Stars:      r.game.Stars(),
		MaxStars:   r.game.MaxStars(),
		Pile:       pile,
		Players:    players,
		YourSlot:   viewer,
		LastEffect: effect,
	}
}

func (r *Room) broadcastStateLocked(effect string) {
	for i, s := range r.slots {
		if s.client == nil {
			continue
		}
		if !s.client.trySend(r.stateForLocked(i, effect)) {
			r.dropLocked(i)
		}
	}
}

func (r *Room) broadcastLocked(msg any, except *client) {
	for i, s := range r.slots {
		if s.client == nil || s.client == except {
			continue
		}
		if !s.client.trySend(msg) {
			r.dropLocked(i)
		}
	}
}

// dropLocked detaches a seat whose connection can no longer keep up.
func (r *Room) dropLocked(seat int) {
	s := r.slots[seat]
	if s.client == nil {
		return
	}

	s.client.close()
	s.client = nil
	r.metrics.connections.Dec()
	if r.attachedLocked() == 0 {
		r.emptySince = time.Now()
	}

	r.logger.Warn("dropped slow connection", zap.Int("slot", seat), zap.String("player", s.name))
}

// Info returns a listing row. Callers outside the room's critical path
// only pay for a brief occupancy read.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RoomInfo{
		RoomID:     r.id,
		Name:       r.name,
		Occupancy:  len(r.slots),
		Capacity:   r.capacity,
		InProgress: r.game.Status() != themind.StatusSetup,
	}
}

// reapable reports whether the room has sat unattached past the grace
// period, or idle past the session timeout.
func (r *Room) reapable(grace, idle time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if grace > 0 && !r.emptySince.IsZero() && now.Sub(r.emptySince) > grace {
		return true
	}
	if idle > 0 && now.Sub(r.lastActive) > idle {
		return true
	}
	return false
}

// closeAll disconnects every attached client (used by the reaper).
func (r *Room) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s.client == nil {
			continue
		}
		s.client.close()
		s.client = nil
		r.metrics.connections.Dec()
	}
	r.emptySince = time.Now()
}
