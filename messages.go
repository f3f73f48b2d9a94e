package main

import (
	"github.com/happyhourgames/mindhall/games/themind"
)

// Messages coming from clients. The type field selects the variant; fields
// outside the variant are ignored, unknown types are rejected.
type ClientMessage struct {
	Type       string `json:"type"`                  // "create_room", "join_room", "list_rooms", "play_card", "use_star", "advance_level"
	Name       string `json:"name,omitempty"`        // create_room
	Capacity   int    `json:"capacity,omitempty"`    // create_room
	RoomID     string `json:"room_id,omitempty"`     // join_room
	PlayerName string `json:"player_name,omitempty"` // join_room
	Card       int    `json:"card,omitempty"`        // play_card
}

// ErrorMessage is sent to the originating connection only.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"` // see errorCode
	Message string `json:"message"`
}

// RoomCreatedMessage answers create_room. The creator joins separately.
type RoomCreatedMessage struct {
	Type   string `json:"type"` // "room_created"
	RoomID string `json:"room_id"`
}

// JoinedMessage answers join_room for the joining connection.
type JoinedMessage struct {
	Type        string `json:"type"` // "joined"
	RoomID      string `json:"room_id"`
	PlayerSlot  int    `json:"player_slot"`
	PlayerName  string `json:"player_name"`
	Occupancy   int    `json:"occupancy"`
	Capacity    int    `json:"capacity"`
	Reconnected bool   `json:"reconnected,omitempty"`
}

// PlayerEventMessage tells the rest of a room about arrivals and departures.
type PlayerEventMessage struct {
	Type       string `json:"type"` // "player_joined" or "player_left"
	PlayerSlot int    `json:"player_slot"`
	PlayerName string `json:"player_name"`
	Occupancy  int    `json:"occupancy"`
	Capacity   int    `json:"capacity"`
}

// RoomInfo is one row of the room listing.
type RoomInfo struct {
	RoomID     string `json:"room_id"`
	Name       string `json:"name"`
	Occupancy  int    `json:"occupancy"`
	Capacity   int    `json:"capacity"`
	InProgress bool   `json:"in_progress"`
}

// RoomListMessage answers list_rooms.
type RoomListMessage struct {
	Type  string     `json:"type"` // "rooms"
	Rooms []RoomInfo `json:"rooms"`
}

// PlayerState is one player's public view within a state update. Hand is
// populated only for the receiving connection's own slot; everyone else
// sees the count.
type PlayerState struct {
	Slot      int    `json:"slot"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	HandSize  int    `json:"hand_size"`
	Hand      []int  `json:"hand,omitempty"`
}

// StateUpdateMessage is broadcast to every connection in a room after any
// accepted action, and resent in full on reconnect. Hands are redacted
// per viewer.
type StateUpdateMessage struct {
	Type       string         `json:"type"` // "state_update"
	RoomID     string         `json:"room_id"`
	Status     themind.Status `json:"status"`
	Level      int            `json:"level"`
	Lives      int            `json:"lives"`
	MaxLives   int            `json:"max_lives"`
	Stars      int            `json:"stars"`
	MaxStars   int            `json:"max_stars"`
	Pile       []int          `json:"pile"`
	Players    []PlayerState  `json:"players"`
	YourSlot   int            `json:"your_slot"`
	LastEffect string         `json:"last_effect,omitempty"`
}
