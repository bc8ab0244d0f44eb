// Package testhelpers provides common utilities for testing the movebox server.
//
// It wraps the gorilla/websocket dialer and the room event format so tests
// can connect as a participant, send moves, and assert on the events they
// receive without repeating the plumbing.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/movebox/internal/room"
)

// DefaultOrigin is the Origin header sent by ConnectWebSocket.
const DefaultOrigin = "http://localhost:5173"

// WebSocketURL converts an httptest server URL into the /ws endpoint URL for
// userID. An empty userID omits the query parameter.
func WebSocketURL(t *testing.T, serverURL, userID string) string {
	t.Helper()

	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("Failed to parse server URL: %v", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	if userID != "" {
		u.RawQuery = url.Values{"userId": {userID}}.Encode()
	}
	return u.String()
}

// ConnectWebSocket dials wsURL with the given Origin header. The handshake
// response is returned so callers can inspect rejected upgrades.
func ConnectWebSocket(wsURL, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Connect joins the room as userID and returns the connection after reading
// its init event.
func Connect(t *testing.T, serverURL, userID string) (*websocket.Conn, room.Event) {
	t.Helper()

	conn, _, err := ConnectWebSocket(WebSocketURL(t, serverURL, userID), DefaultOrigin)
	if err != nil {
		t.Fatalf("Failed to connect as %q: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	initEvent := ExpectEvent(t, conn, room.TypeInit)
	return conn, initEvent
}

// SendMove sends a move message for (x, y).
func SendMove(conn *websocket.Conn, x, y float64) error {
	return conn.WriteJSON(map[string]interface{}{
		"type": room.TypeMove,
		"data": room.Position{X: x, Y: y},
	})
}

// SendRawMessage sends a raw text frame.
func SendRawMessage(conn *websocket.Conn, data []byte) error {
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ReadEvent reads one event, waiting at most timeout.
func ReadEvent(conn *websocket.Conn, timeout time.Duration) (room.Event, error) {
	var ev room.Event
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ev, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return ev, err
	}
	err = json.Unmarshal(data, &ev)
	return ev, err
}

// ExpectEvent reads the next event and fails the test unless it has the
// wanted type.
func ExpectEvent(t *testing.T, conn *websocket.Conn, eventType string) room.Event {
	t.Helper()

	ev, err := ReadEvent(conn, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to read %s event: %v", eventType, err)
	}
	if ev.Type != eventType {
		t.Fatalf("Expected %s event, got %+v", eventType, ev)
	}
	return ev
}

// ExpectNoEvent fails the test if any event arrives within timeout. A timed
// out gorilla connection cannot be read again, so this must be the last read.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	ev, err := ReadEvent(conn, timeout)
	if err == nil {
		t.Fatalf("Expected no event, got %+v", ev)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// AssertUsers checks an event's roster.
func AssertUsers(t *testing.T, ev room.Event, want ...string) {
	t.Helper()

	if len(ev.Users) != len(want) {
		t.Errorf("%s users = %v, want %v", ev.Type, ev.Users, want)
		return
	}
	for i := range want {
		if ev.Users[i] != want[i] {
			t.Errorf("%s users = %v, want %v", ev.Type, ev.Users, want)
			return
		}
	}
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, rawURL, body string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, rawURL, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}
