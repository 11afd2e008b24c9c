package room

import (
	"errors"
)

// Admission errors. Each maps to the code sent back to the requester.
var (
	ErrCannotCreate  = errors.New("cannot_create_room")
	ErrCannotJoin    = errors.New("cannot_join_room")
	ErrRoomNotFound  = errors.New("room_not_found")
	ErrRoomFull      = errors.New("room_full")
	ErrAlreadyInRoom = errors.New("already_in_room")

	// ErrNotInRoom is returned when routing an action for a participant the
	// registry has no room for.
	ErrNotInRoom = errors.New("not_in_room")
)

// ErrorCode returns the wire code for an admission error. Anything that is
// not one of the sentinels above reports as cannot_join_room.
func ErrorCode(err error) string {
	for _, known := range []error{ErrCannotCreate, ErrRoomFull, ErrRoomNotFound, ErrAlreadyInRoom, ErrNotInRoom, ErrCannotJoin} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrCannotJoin.Error()
}
