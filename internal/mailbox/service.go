package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/docloom/docloom/types"
)

// Service exposes the store on two surfaces: a reply channel for posts
// from the postprocessor and an HTTP API for reading queues.
type Service struct {
	store  *Store
	server *http.Server
}

func NewService(store *Store, httpPort int) *Service {
	s := &Service{store: store}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /messages/{user_id}", s.handleMessages)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", httpPort),
		Handler: corsMiddleware(mux),
	}
	return s
}

// HandlePost implements bus.Handler for the notification post channel.
func (s *Service) HandlePost(req []byte) any {
	var post types.MailboxPost
	if err := json.Unmarshal(req, &post); err != nil || len(post.UserList) == 0 || len(post.Message) == 0 {
		return types.MailboxAck{Status: types.StatusError, Error: "user_list and message are required"}
	}

	n, err := s.store.Append(post.UserList, post.Message)
	if err != nil {
		slog.Error("store mailbox post", "users", len(post.UserList), "error", err)
		return types.MailboxAck{Status: types.StatusError, Error: fmt.Sprintf("store messages: %v", err)}
	}
	slog.Info("notification delivered", "users_notified", n)
	return types.MailboxAck{Status: types.StatusSuccess, UsersNotified: n}
}

// Start serves the HTTP API until Shutdown.
func (s *Service) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("mailbox HTTP server: %w", err)
		}
	}()
}

func (s *Service) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type inboxResponse struct {
	UserID       string    `json:"user_id"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

func (s *Service) handleMessages(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	msgs, err := s.store.Messages(userID)
	if err != nil {
		slog.Error("read mailbox", "user", userID, "error", err)
		http.Error(w, "mailbox read failed", http.StatusInternalServerError)
		return
	}
	writeAPIJSON(w, inboxResponse{
		UserID:       userID,
		MessageCount: len(msgs),
		Messages:     msgs,
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
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
