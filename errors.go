/*
Copyright © 2025 Happy Hour Games
*/

package main

import (
	"errors"

	"github.com/happyhourgames/mindhall/games/themind"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrNotInRoom     = errors.New("not in a room")
	ErrAlreadyInRoom = errors.New("already in a room")
)

// ValidationError covers malformed or out-of-range client input. It is
// reported to the sender only and never mutates state.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// errorCode maps an error onto the closed set of wire error codes.
func errorCode(err error) string {
	var (
		invalidMove *themind.InvalidMoveError
		validation  *ValidationError
	)

	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrAlreadyInRoom):
		return "validation"
	case errors.Is(err, themind.ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, themind.ErrNoThrowingStars), errors.Is(err, themind.ErrLevelNotClear):
		return "invalid_move"
	case errors.As(err, &invalidMove):
		return "invalid_move"
	case errors.As(err, &validation):
		return "validation"
	default:
		return "error"
	}
}

func errorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    "error",
		Code:    errorCode(err),
		Message: err.Error(),
	}
}
