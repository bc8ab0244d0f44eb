package room

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the lifecycle stage of a Session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one participant's membership in the room. UserID is opaque and
// need not be unique; ID tells sessions with the same UserID apart.
type Session struct {
	ID     uuid.UUID
	UserID string
	Email  string

	send  chan []byte
	state atomic.Int32
}

func newSession(userID, email string, buffer int) *Session {
	return &Session{
		ID:     uuid.New(),
		UserID: userID,
		Email:  email,
		send:   make(chan []byte, buffer),
	}
}

// Send returns the session's outbound queue of encoded events. The room
// closes it when the session leaves.
func (s *Session) Send() <-chan []byte {
	return s.send
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}
