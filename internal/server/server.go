// Package server is the HTTP front of the retrieval side: POST /chat runs
// the retrieval agent for one user question, GET /folders lists what a user
// can read.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/docloom/docloom/internal/retrieve"
)

// Retrieval is the slice of the retrieval side the HTTP layer invokes.
type Retrieval interface {
	Answer(ctx context.Context, userID, question string, mode retrieve.Mode) (string, error)
	Folders(ctx context.Context, userID string) ([]string, error)
}

type Server struct {
	retrieval   Retrieval
	defaultMode retrieve.Mode
	server      *http.Server
}

func New(port int, retrieval Retrieval, defaultMode retrieve.Mode) *Server {
	s := &Server{
		retrieval:   retrieval,
		defaultMode: defaultMode,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /folders/{user_id}", s.handleFolders)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: corsMiddleware(mux),
	}
	return s
}

// Start serves until Shutdown. Fatal listener errors land on errChan.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("retrieval HTTP server: %w", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type chatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleChat answers one question. Malformed requests get a 400; failures
// while answering are reported in-band with status "error" so clients can
// always read one JSON shape.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusJSON(w, http.StatusBadRequest, chatResponse{
			Status: "error", Error: "request body is not valid JSON",
		})
		return
	}
	if req.Message == "" || req.UserID == "" {
		writeStatusJSON(w, http.StatusBadRequest, chatResponse{
			Status: "error", Error: "message and user_id are required",
		})
		return
	}

	mode := s.defaultMode
	if req.Mode != "" {
		var err error
		if mode, err = retrieve.ParseMode(req.Mode); err != nil {
			writeStatusJSON(w, http.StatusBadRequest, chatResponse{
				Status: "error", Error: err.Error(),
			})
			return
		}
	}

	answer, err := s.retrieval.Answer(r.Context(), req.UserID, req.Message, mode)
	if err != nil {
		slog.Error("answer question", "user", req.UserID, "mode", string(mode), "error", err)
		writeStatusJSON(w, http.StatusOK, chatResponse{Status: "error", Error: err.Error()})
		return
	}
	writeStatusJSON(w, http.StatusOK, chatResponse{
		Status:   "success",
		Response: answer,
		Mode:     string(mode),
	})
}

type foldersResponse struct {
	UserID  string   `json:"user_id"`
	Folders []string `json:"folders"`
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	folders, err := s.retrieval.Folders(r.Context(), userID)
	if err != nil {
		slog.Error("list folders", "user", userID, "error", err)
		http.Error(w, "folder lookup failed", http.StatusInternalServerError)
		return
	}
	if folders == nil {
		folders = []string{}
	}
	writeAPIJSON(w, foldersResponse{UserID: userID, Folders: folders})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, map[string]string{"status": "healthy"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeAPIJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func writeStatusJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
