package room

import (
	"encoding/json"
	"log"
	"slices"
	"sync"
)

// DefaultSendBuffer is the outbound queue capacity of each session.
const DefaultSendBuffer = 256

// Room holds the shared position and the roster of connected sessions. All
// reads and writes of either go through mu.
type Room struct {
	mu       sync.Mutex
	position Position
	sessions []*Session
	buffer   int
	closed   bool
}

// Option configures a Room.
type Option func(*Room)

// WithSendBuffer sets the outbound queue capacity of every new session.
// A session whose queue is full when an event is broadcast is dropped.
func WithSendBuffer(n int) Option {
	return func(r *Room) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithPosition sets the starting position.
func WithPosition(p Position) Option {
	return func(r *Room) {
		if p.Valid() {
			r.position = p
		}
	}
}

// New creates an empty room at DefaultPosition.
func New(opts ...Option) *Room {
	r := &Room{
		position: DefaultPosition,
		buffer:   DefaultSendBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect adds a participant to the room. The new session's queue starts with
// the init snapshot; the other sessions are told about the join afterwards.
func (r *Room) Connect(userID, email string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomClosed
	}

	s := newSession(userID, email, r.buffer)
	r.sessions = append(r.sessions, s)
	users := r.usersLocked()

	pos := r.position
	if payload, ok := encode(Event{Type: TypeInit, Position: &pos, Users: users}); ok {
		s.send <- payload
	}
	s.setState(StateOpen)

	log.Printf("Session %s joined as %q. Total sessions: %d", s.ID, userID, len(r.sessions))
	r.broadcastLocked(Event{Type: TypeUserJoined, UserID: userID, Users: users}, s)
	return s, nil
}

// HandleMessage applies a raw client message. Move messages replace the
// position; any other type is ignored. Malformed payloads leave the room
// unchanged and return ErrMalformedMessage.
func (r *Room) HandleMessage(s *Session, raw []byte) error {
	msg, err := decodeInbound(raw)
	if err != nil {
		return err
	}
	if msg.Type != TypeMove {
		return nil
	}

	pos, err := msg.movePosition()
	if err != nil {
		return err
	}
	return r.Move(s, pos)
}

// Move replaces the position and broadcasts it to every session, the mover
// included.
func (r *Room) Move(s *Session, pos Position) error {
	if !pos.Valid() {
		return ErrMalformedMessage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s.State() != StateOpen {
		return ErrSessionClosed
	}

	r.position = pos
	r.broadcastLocked(Event{Type: TypePosition, Data: &pos, UserID: s.UserID})
	return nil
}

// Disconnect removes the session and tells the remaining sessions. Calling it
// again for the same session does nothing.
func (r *Room) Disconnect(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disconnectLocked(s, "disconnected")
}

// Broadcast enqueues ev to every open session not listed in exclude.
func (r *Room) Broadcast(ev Event, exclude ...*Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcastLocked(ev, exclude...)
}

// Snapshot returns the current position and roster identifiers.
func (r *Room) Snapshot() (Position, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.position, r.usersLocked()
}

// Len returns the number of live sessions.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Close ends every session without leave notifications and refuses new
// connections. It is meant for process shutdown.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for _, s := range r.sessions {
		s.setState(StateClosed)
		close(s.send)
	}
	log.Printf("Room closed; ended %d sessions", len(r.sessions))
	r.sessions = nil
}

func (r *Room) disconnectLocked(s *Session, reason string) {
	idx := slices.Index(r.sessions, s)
	if idx < 0 {
		return
	}

	r.sessions = slices.Delete(r.sessions, idx, idx+1)
	s.setState(StateClosed)
	close(s.send)

	log.Printf("Session %s (%q) %s. Total sessions: %d", s.ID, s.UserID, reason, len(r.sessions))
	r.broadcastLocked(Event{Type: TypeUserLeft, UserID: s.UserID, Users: r.usersLocked()})
}

// broadcastLocked never blocks: a session whose queue is full is dropped, which
// in turn broadcasts its departure.
func (r *Room) broadcastLocked(ev Event, exclude ...*Session) {
	if len(r.sessions) == 0 {
		return
	}
	payload, ok := encode(ev)
	if !ok {
		return
	}

	var failed []*Session
	for _, s := range r.sessions {
		if s.State() != StateOpen || slices.Contains(exclude, s) {
			continue
		}
		select {
		case s.send <- payload:
		default:
			failed = append(failed, s)
		}
	}

	for _, s := range failed {
		r.disconnectLocked(s, "dropped: send buffer full")
	}
}

func (r *Room) usersLocked() []string {
	users := make([]string, len(r.sessions))
	for i, s := range r.sessions {
		users[i] = s.UserID
	}
	return users
}

func encode(ev Event) ([]byte, bool) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error encoding %s event: %v", ev.Type, err)
		return nil, false
	}
	return payload, true
}
