package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
)

// drain returns every event currently queued for s without blocking.
func drain(t *testing.T, s *Session) []Event {
	t.Helper()

	var events []Event
	for {
		select {
		case payload, ok := <-s.Send():
			if !ok {
				return events
			}
			var ev Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				t.Fatalf("Failed to decode queued event %q: %v", payload, err)
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func mustConnect(t *testing.T, r *Room, userID string) *Session {
	t.Helper()
	s, err := r.Connect(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("Connect(%q) failed: %v", userID, err)
	}
	return s
}

func assertUsers(t *testing.T, ev Event, want ...string) {
	t.Helper()
	if !slices.Equal(ev.Users, want) {
		t.Errorf("%s users = %v, want %v", ev.Type, ev.Users, want)
	}
}

func TestNewRoomStartsAtDefaultPosition(t *testing.T) {
	r := New()

	pos, users := r.Snapshot()
	if pos != DefaultPosition {
		t.Errorf("Expected default position %+v, got %+v", DefaultPosition, pos)
	}
	if len(users) != 0 {
		t.Errorf("Expected empty roster, got %v", users)
	}
}

func TestThreeSessionsJoinAndMove(t *testing.T) {
	r := New()

	a := mustConnect(t, r, "a")
	eventsA := drain(t, a)
	if len(eventsA) != 1 || eventsA[0].Type != TypeInit {
		t.Fatalf("Expected a single init for a, got %+v", eventsA)
	}
	assertUsers(t, eventsA[0], "a")
	if eventsA[0].Position == nil || *eventsA[0].Position != DefaultPosition {
		t.Errorf("Expected init position %+v, got %+v", DefaultPosition, eventsA[0].Position)
	}

	b := mustConnect(t, r, "b")
	eventsB := drain(t, b)
	if len(eventsB) != 1 || eventsB[0].Type != TypeInit {
		t.Fatalf("Expected a single init for b, got %+v", eventsB)
	}
	assertUsers(t, eventsB[0], "a", "b")

	eventsA = drain(t, a)
	if len(eventsA) != 1 || eventsA[0].Type != TypeUserJoined {
		t.Fatalf("Expected user-joined for a, got %+v", eventsA)
	}
	assertUsers(t, eventsA[0], "a", "b")

	c := mustConnect(t, r, "c")
	eventsC := drain(t, c)
	if len(eventsC) != 1 || eventsC[0].Type != TypeInit {
		t.Fatalf("Expected a single init for c, got %+v", eventsC)
	}
	assertUsers(t, eventsC[0], "a", "b", "c")

	for _, s := range []*Session{a, b} {
		events := drain(t, s)
		if len(events) != 1 || events[0].Type != TypeUserJoined {
			t.Fatalf("Expected user-joined for %s, got %+v", s.UserID, events)
		}
		assertUsers(t, events[0], "a", "b", "c")
		if events[0].UserID != "c" {
			t.Errorf("Expected user-joined userId c, got %q", events[0].UserID)
		}
	}

	if err := r.HandleMessage(a, []byte(`{"type":"move","data":{"x":5,"y":9}}`)); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	want := Position{X: 5, Y: 9}
	for _, s := range []*Session{a, b, c} {
		events := drain(t, s)
		if len(events) != 1 || events[0].Type != TypePosition {
			t.Fatalf("Expected one position event for %s, got %+v", s.UserID, events)
		}
		if events[0].Data == nil || *events[0].Data != want {
			t.Errorf("Expected position %+v for %s, got %+v", want, s.UserID, events[0].Data)
		}
		if events[0].UserID != "a" {
			t.Errorf("Expected position userId a, got %q", events[0].UserID)
		}
	}

	if pos, _ := r.Snapshot(); pos != want {
		t.Errorf("Expected room position %+v, got %+v", want, pos)
	}
}

func TestHandleMessageRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `move 5 9`},
		{name: "move without data", payload: `{"type":"move"}`},
		{name: "null data", payload: `{"type":"move","data":null}`},
		{name: "missing y", payload: `{"type":"move","data":{"x":5}}`},
		{name: "string coordinates", payload: `{"type":"move","data":{"x":"5","y":"9"}}`},
		{name: "data not an object", payload: `{"type":"move","data":[5,9]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			s := mustConnect(t, r, "a")
			drain(t, s)

			err := r.HandleMessage(s, []byte(tt.payload))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Expected ErrMalformedMessage, got %v", err)
			}
			if pos, _ := r.Snapshot(); pos != DefaultPosition {
				t.Errorf("Position changed to %+v", pos)
			}
			if events := drain(t, s); len(events) != 0 {
				t.Errorf("Expected no broadcast, got %+v", events)
			}
			if s.State() != StateOpen {
				t.Errorf("Expected session to stay open, got %s", s.State())
			}
		})
	}
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	r := New()
	s := mustConnect(t, r, "a")
	drain(t, s)

	for _, payload := range []string{
		`{"type":"chat","data":{"x":1,"y":2}}`,
		`{"type":"position","data":{"x":1,"y":2}}`,
		`{}`,
	} {
		if err := r.HandleMessage(s, []byte(payload)); err != nil {
			t.Errorf("HandleMessage(%s) returned %v, want nil", payload, err)
		}
	}

	if pos, _ := r.Snapshot(); pos != DefaultPosition {
		t.Errorf("Position changed to %+v", pos)
	}
	if events := drain(t, s); len(events) != 0 {
		t.Errorf("Expected no broadcast, got %+v", events)
	}
}

func TestHandleMessageAcceptsPositionKey(t *testing.T) {
	r := New()
	s := mustConnect(t, r, "a")
	drain(t, s)

	if err := r.HandleMessage(s, []byte(`{"type":"move","position":{"x":-3.5,"y":0}}`)); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	want := Position{X: -3.5, Y: 0}
	if pos, _ := r.Snapshot(); pos != want {
		t.Errorf("Expected position %+v, got %+v", want, pos)
	}
}

func TestDisconnectBroadcastsLeaveOnce(t *testing.T) {
	r := New()
	a := mustConnect(t, r, "a")
	b := mustConnect(t, r, "b")
	c := mustConnect(t, r, "c")
	drain(t, a)
	drain(t, b)
	drain(t, c)

	r.Disconnect(b)
	r.Disconnect(b)

	for _, s := range []*Session{a, c} {
		events := drain(t, s)
		if len(events) != 1 || events[0].Type != TypeUserLeft {
			t.Fatalf("Expected exactly one user-left for %s, got %+v", s.UserID, events)
		}
		if events[0].UserID != "b" {
			t.Errorf("Expected user-left userId b, got %q", events[0].UserID)
		}
		assertUsers(t, events[0], "a", "c")
	}

	if b.State() != StateClosed {
		t.Errorf("Expected b to be closed, got %s", b.State())
	}
	if _, ok := <-b.Send(); ok {
		t.Error("Expected b's queue to be closed")
	}
	if _, users := r.Snapshot(); !slices.Equal(users, []string{"a", "c"}) {
		t.Errorf("Expected roster [a c], got %v", users)
	}

	d := mustConnect(t, r, "d")
	assertUsers(t, drain(t, d)[0], "a", "c", "d")
}

func TestMoveFromClosedSession(t *testing.T) {
	r := New()
	a := mustConnect(t, r, "a")
	r.Disconnect(a)

	err := r.HandleMessage(a, []byte(`{"type":"move","data":{"x":1,"y":1}}`))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
	if pos, _ := r.Snapshot(); pos != DefaultPosition {
		t.Errorf("Position changed to %+v", pos)
	}
}

func TestDuplicateUserIDsAreIndependent(t *testing.T) {
	r := New()
	first := mustConnect(t, r, "same")
	second := mustConnect(t, r, "same")

	if first.ID == second.ID {
		t.Fatal("Expected distinct session IDs")
	}
	if _, users := r.Snapshot(); !slices.Equal(users, []string{"same", "same"}) {
		t.Errorf("Expected roster [same same], got %v", users)
	}

	drain(t, second)
	r.Disconnect(first)

	events := drain(t, second)
	if len(events) != 1 || events[0].Type != TypeUserLeft {
		t.Fatalf("Expected user-left, got %+v", events)
	}
	assertUsers(t, events[0], "same")
	if second.State() != StateOpen {
		t.Errorf("Expected second session to stay open, got %s", second.State())
	}
}

func TestSlowSessionIsDropped(t *testing.T) {
	r := New(WithSendBuffer(3))
	slow := mustConnect(t, r, "slow")
	fast := mustConnect(t, r, "fast")
	drain(t, fast)

	// slow holds init and user-joined and never reads; the first move fills
	// its queue and the second overflows it.
	if err := r.Move(fast, Position{X: 1, Y: 1}); err != nil {
		t.Fatalf("Move returned error: %v", err)
	}
	if err := r.Move(fast, Position{X: 2, Y: 2}); err != nil {
		t.Fatalf("Move returned error: %v", err)
	}

	if slow.State() != StateClosed {
		t.Fatalf("Expected slow session to be dropped, got %s", slow.State())
	}

	events := drain(t, fast)
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	want := []string{TypePosition, TypePosition, TypeUserLeft}
	if !slices.Equal(types, want) {
		t.Fatalf("Expected events %v, got %v", want, types)
	}
	if events[2].UserID != "slow" {
		t.Errorf("Expected user-left userId slow, got %q", events[2].UserID)
	}
	assertUsers(t, events[2], "fast")

	queued := 0
	for range slow.Send() {
		queued++
	}
	if queued != 3 {
		t.Errorf("Expected 3 frames left for slow session, got %d", queued)
	}
}

func TestBroadcastExcludesSessions(t *testing.T) {
	r := New()
	a := mustConnect(t, r, "a")
	b := mustConnect(t, r, "b")
	drain(t, a)
	drain(t, b)

	r.Broadcast(Event{Type: TypeUserJoined, UserID: "x"}, a)

	if events := drain(t, a); len(events) != 0 {
		t.Errorf("Expected excluded session to receive nothing, got %+v", events)
	}
	if events := drain(t, b); len(events) != 1 {
		t.Errorf("Expected one event for b, got %+v", events)
	}
}

func TestCloseEndsSessionsAndRejectsConnect(t *testing.T) {
	r := New()
	a := mustConnect(t, r, "a")
	b := mustConnect(t, r, "b")
	drain(t, a)

	r.Close()
	r.Close()

	for _, s := range []*Session{a, b} {
		if s.State() != StateClosed {
			t.Errorf("Expected %s closed, got %s", s.UserID, s.State())
		}
		for range s.Send() {
		}
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty roster after Close, got %d", r.Len())
	}
	if _, err := r.Connect("c", ""); !errors.Is(err, ErrRoomClosed) {
		t.Errorf("Expected ErrRoomClosed, got %v", err)
	}

	// Disconnect after Close must not double-close the queue.
	r.Disconnect(a)
}

func TestConcurrentMovesEndConsistent(t *testing.T) {
	const (
		movers = 8
		moves  = 50
	)

	r := New(WithSendBuffer(movers*moves + movers*2))
	observer := mustConnect(t, r, "observer")

	sessions := make([]*Session, movers)
	for i := range sessions {
		sessions[i] = mustConnect(t, r, fmt.Sprintf("mover-%d", i))
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(id int, s *Session) {
			defer wg.Done()
			for j := 0; j < moves; j++ {
				payload := fmt.Sprintf(`{"type":"move","data":{"x":%d,"y":%d}}`, id, j)
				if err := r.HandleMessage(s, []byte(payload)); err != nil {
					t.Errorf("HandleMessage returned error: %v", err)
				}
			}
		}(i, s)
	}
	wg.Wait()

	final, _ := r.Snapshot()
	for _, s := range append(sessions, observer) {
		var last *Position
		count := 0
		for _, ev := range drain(t, s) {
			if ev.Type == TypePosition {
				last = ev.Data
				count++
			}
		}
		if count != movers*moves {
			t.Errorf("%s saw %d position events, want %d", s.UserID, count, movers*moves)
		}
		if last == nil || *last != final {
			t.Errorf("%s last position %+v, room position %+v", s.UserID, last, final)
		}
	}
}
