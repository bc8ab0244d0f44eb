// Package server wires HTTP handlers into a gorilla/mux router for the
// movebox application.
package server

import "net/http"

// setupRoutes configures every application route on the server's router.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/health", HealthHandler).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{userId}", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{userId}", s.handlePutProfile).Methods(http.MethodPut)
}

// withCORS applies the configured origin policy to every response and answers
// preflight requests directly.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.origins.allows(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
