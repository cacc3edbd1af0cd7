package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/vignette/internal/interview"
)

// TurnService runs one participant turn.
type TurnService interface {
	Turn(ctx context.Context, req interview.Request) (*interview.Result, error)
}

// Status is reported by the status endpoint.
type Status struct {
	Script    string `json:"script"`
	Questions int    `json:"questions"`
	JudgeMode string `json:"judge_mode"`
	Provider  string `json:"provider"`
}

type Server struct {
	router *chi.Mux
	port   int
	turns  TurnService
	status Status
	logger *slog.Logger
	srv    *http.Server
}

func NewServer(port int, turns TurnService, status Status, allowedOrigins []string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors(allowedOrigins))

	s := &Server{
		router: router,
		port:   port,
		turns:  turns,
		status: status,
		logger: logger,
	}

	router.Get("/", s.home)
	router.Get("/health", s.health)
	router.Get("/api/v1/vignette/status", s.statusInfo)
	router.Post("/chat", s.chat)
	router.Options("/chat", s.preflight)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("vignette is running"))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) statusInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status)
}

func (s *Server) preflight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Preflight OK"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
