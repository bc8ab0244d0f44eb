package room

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Event types exchanged over the wire.
const (
	TypeInit       = "init"
	TypePosition   = "position"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
	TypeMove       = "move"
)

// Position is the shared 2D coordinate of the room.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultPosition is where a freshly created room starts.
var DefaultPosition = Position{X: 100, Y: 100}

// Valid reports whether both coordinates are finite.
func (p Position) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Event is a server to client message. The init snapshot carries its
// coordinates under "position", position updates carry them under "data".
type Event struct {
	Type     string    `json:"type"`
	Position *Position `json:"position,omitempty"`
	Data     *Position `json:"data,omitempty"`
	UserID   string    `json:"userId,omitempty"`
	Users    []string  `json:"users,omitempty"`
}

// inbound is a client to server message. Coordinates may arrive under either
// "data" or "position".
type inbound struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Position json.RawMessage `json:"position"`
}

type coords struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func decodeInbound(raw []byte) (inbound, error) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}

// movePosition extracts the requested position of a move message.
func (m inbound) movePosition() (Position, error) {
	body := m.Data
	if isAbsent(body) {
		body = m.Position
	}
	if isAbsent(body) {
		return Position{}, fmt.Errorf("%w: move without data", ErrMalformedMessage)
	}

	var c coords
	if err := json.Unmarshal(body, &c); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if c.X == nil || c.Y == nil {
		return Position{}, fmt.Errorf("%w: move requires x and y", ErrMalformedMessage)
	}

	pos := Position{X: *c.X, Y: *c.Y}
	if !pos.Valid() {
		return Position{}, fmt.Errorf("%w: non-finite coordinates", ErrMalformedMessage)
	}
	return pos, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
