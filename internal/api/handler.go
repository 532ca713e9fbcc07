package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

// CallerHeader carries the user id on whose behalf a context is changed
const CallerHeader = "X-Caller-ID"

// ContextStore is the part of the context store exposed over HTTP
type ContextStore interface {
	List() []domain.ContextRecord
	Upsert(ctx context.Context, caller, name, value string) error
	Delete(ctx context.Context, caller, name string) error
}

// Estimator counts prompt tokens for a model
type Estimator interface {
	Estimate(entries []domain.Entry, model string) (int, error)
	Budget(model string) (int, error)
}

// Server provides the loopback HTTP API used by context-mcp
type Server struct {
	contexts     ContextStore
	estimator    Estimator
	defaultModel string
	logger       *slog.Logger

	server *http.Server
	port   int
}

// ContextItem is a context record on the wire
type ContextItem struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// EstimateRequest asks for the prompt size of entries under model
type EstimateRequest struct {
	Model    string         `json:"model"`
	Messages []domain.Entry `json:"messages"`
}

// EstimateResponse reports the prompt size and the budget of the model
type EstimateResponse struct {
	Model  string `json:"model"`
	Tokens int    `json:"tokens"`
	Budget int    `json:"budget"`
	Fits   bool   `json:"fits"`
}

// NewServer creates a new API server
func NewServer(contexts ContextStore, estimator Estimator, defaultModel string, port int, logger *slog.Logger) *Server {
	return &Server{
		contexts:     contexts,
		estimator:    estimator,
		defaultModel: defaultModel,
		port:         port,
		logger:       logger,
	}
}

// Handler returns the routes of the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Contexts
	mux.HandleFunc("GET /api/contexts", s.handleListContexts)
	mux.HandleFunc("PUT /api/contexts/{name}", s.handlePutContext)
	mux.HandleFunc("DELETE /api/contexts/{name}", s.handleDeleteContext)

	// Tokens
	mux.HandleFunc("POST /api/estimate", s.handleEstimate)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server on the loopback interface. It blocks until
// the server is stopped.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", fmt.Sprint(s.port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	records := s.contexts.List()
	items := make([]ContextItem, len(records))
	for i, rec := range records {
		items[i] = ContextItem{Name: rec.Name, Value: rec.Value, UpdatedAt: rec.UpdatedAt}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"contexts": items})
}

func (s *Server) handlePutContext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidArgument, err))
		return
	}

	name := domain.NormalizeContextName(r.PathValue("name"))
	if err := s.contexts.Upsert(r.Context(), r.Header.Get(CallerHeader), name, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ContextItem{Name: name, Value: req.Value})
}

func (s *Server) handleDeleteContext(w http.ResponseWriter, r *http.Request) {
	name := domain.NormalizeContextName(r.PathValue("name"))
	if err := s.contexts.Delete(r.Context(), r.Header.Get(CallerHeader), name); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidArgument, err))
		return
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}

	tokens, err := s.estimator.Estimate(req.Messages, req.Model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	budget, err := s.estimator.Budget(req.Model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, EstimateResponse{
		Model:  req.Model,
		Tokens: tokens,
		Budget: budget,
		Fits:   tokens <= budget,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrReservedName):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnsupportedModel):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
