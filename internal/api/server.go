// Package api exposes the local control surface: stream start/stop, the
// momentary compare control, status and stats, plus the MJPEG viewer.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/enhancecam/enhancecam/internal/logger"
	"github.com/enhancecam/enhancecam/internal/pipeline"
)

// Server is the local HTTP control server
type Server struct {
	router   *mux.Router
	streamer *pipeline.Streamer
}

// NewServer creates the control server around a streamer
func NewServer(streamer *pipeline.Streamer) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		streamer: streamer,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/stream/start", s.handleStart).Methods("POST")
	api.HandleFunc("/stream/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/compare", s.handleCompare).Methods("POST")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/stream", s.streamer.Surface().StreamHandler()).Methods("GET")
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the root handler, exported for tests
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("api").Info().
		Str("addr", addr).
		Msg("Control server listening")
	return http.ListenAndServe(addr, s.Handler())
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.streamer.Status())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.streamer.Stats())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.streamer.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.streamer.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.streamer.Stop()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.streamer.Status())
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pressed bool `json:"pressed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.streamer.SetCompare(req.Pressed)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"compare": req.Pressed})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
