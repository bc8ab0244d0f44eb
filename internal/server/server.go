// Package server wires the room into an HTTP service: the WebSocket endpoint,
// the JSON edge routes, and CORS.
package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/movebox/internal/profile"
	"github.com/Tyrowin/movebox/internal/room"
)

// Server serves one room over HTTP and WebSocket.
type Server struct {
	cfg      Config
	room     *room.Room
	profiles profile.Store
	origins  *originPolicy
	upgrader websocket.Upgrader
	router   *mux.Router
	handler  http.Handler
	wg       sync.WaitGroup
}

// New creates a Server for rm. A nil profiles store falls back to an
// in-memory cache.
func New(cfg Config, rm *room.Room, profiles profile.Store) *Server {
	cfg = cfg.Sanitize()
	if profiles == nil {
		profiles = profile.NewMemoryStore(cfg.Profiles.TTL)
	}

	s := &Server{
		cfg:      cfg,
		room:     rm,
		profiles: profiles,
		origins:  newOriginPolicy(cfg.AllowedOrigins),
		router:   mux.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}

	s.setupRoutes()
	s.handler = s.withCORS(s.router)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Room returns the room this server serves.
func (s *Server) Room() *room.Room {
	return s.room
}

// startClient launches the pump goroutines for an accepted connection.
func (s *Server) startClient(client *Client) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// Shutdown closes the room, which ends every session, and waits for the
// client goroutines to finish or the timeout to pass.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Initiating room shutdown...")
	s.room.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Room shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Room shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
