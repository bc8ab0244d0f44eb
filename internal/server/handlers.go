// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, room state, and the profile cache.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/movebox/internal/profile"
	"github.com/Tyrowin/movebox/internal/room"
)

const maxProfileBodySize = 4096

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleWebSocket admits a caller into the room. Requests that are not
// WebSocket upgrades get 426, and requests without a userId get 401.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected WebSocket", http.StatusUpgradeRequired)
		return
	}

	query := r.URL.Query()
	userID := query.Get("userId")
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	session, err := s.room.Connect(userID, query.Get("email"))
	if err != nil {
		log.Printf("Rejecting %s (%s): %v", r.RemoteAddr, userID, err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "room closed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	log.Printf("Client %s connected as %q (session %s)", r.RemoteAddr, userID, session.ID)
	s.startClient(newClient(conn, s.room, session, r.RemoteAddr, s.cfg))
}

// handleRoot reports that the API is up.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Moving Box API is running!"})
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "movebox server is running!")
}

type stateResponse struct {
	Position room.Position `json:"position"`
	Users    []string      `json:"users"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	pos, users := s.room.Snapshot()
	respondJSON(w, http.StatusOK, stateResponse{Position: pos, Users: users})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	p, err := s.profiles.Get(r.Context(), userID)
	if errors.Is(err, profile.ErrNotFound) {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		log.Printf("Error loading profile %q: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

type putProfileRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	var req putProfileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProfileBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid profile body")
		return
	}

	p := profile.Profile{
		UserID:    userID,
		Email:     req.Email,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	}
	if err := s.profiles.Put(r.Context(), p); err != nil {
		log.Printf("Error caching profile %q: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "failed to cache profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
