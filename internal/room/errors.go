package room

import "errors"

var (
	// ErrMalformedMessage is returned for payloads that cannot be parsed or
	// lack required fields. The session stays open.
	ErrMalformedMessage = errors.New("room: malformed message")

	// ErrSessionClosed is returned when a closed session tries to act on the room.
	ErrSessionClosed = errors.New("room: session closed")

	// ErrRoomClosed is returned by Connect once the room has been shut down.
	ErrRoomClosed = errors.New("room: closed")
)
