package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/divyashie/openmeet/internal/errors"
	"github.com/divyashie/openmeet/internal/orchestrator"
	"github.com/divyashie/openmeet/internal/store"
)

// Pipeline is the session control surface the server exposes over HTTP.
// *orchestrator.Manager is the production implementation.
type Pipeline interface {
	StartSession(ctx context.Context) (string, error)
	StopSession(ctx context.Context) error
	DiscardSession(ctx context.Context) error
	PauseSession(ctx context.Context) error
	ResumeSession(ctx context.Context) error
	Status() orchestrator.Status
	Events() <-chan orchestrator.Event
	Health(ctx context.Context) map[string]bool
}

// History reads persisted sessions. *store.Store is the production
// implementation.
type History interface {
	List(ctx context.Context) ([]*store.Record, error)
	Get(ctx context.Context, id string) (*store.Record, error)
	Delete(ctx context.Context, id string) error
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	pipeline Pipeline
	history  History

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a server and starts broadcasting pipeline events.
func New(pipeline Pipeline, history History) *Server {
	s := &Server{
		pipeline: pipeline,
		history:  history,
		conns:    make(map[*websocket.Conn]struct{}),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/session/start", s.handleStart)
	mux.HandleFunc("POST /api/session/stop", s.handleStop)
	mux.HandleFunc("POST /api/session/discard", s.handleDiscard)
	mux.HandleFunc("POST /api/session/pause", s.handlePause)
	mux.HandleFunc("POST /api/session/resume", s.handleResume)
	mux.HandleFunc("GET /api/session", s.handleStatus)

	mux.HandleFunc("GET /api/sessions", s.handleList)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := s.pipeline.StartSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.StopSession(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "finalizing"})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.DiscardSession(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.PauseSession(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.ResumeSession(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recording"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.history.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.history.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	engines := s.pipeline.Health(r.Context())
	healthy := true
	for _, ok := range engines {
		healthy = healthy && ok
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"healthy": healthy, "engines": engines})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	// New clients get the current status immediately so menus render the
	// right state without waiting for the next transition.
	ctx := r.Context()
	st := s.pipeline.Status()
	_ = wsjson.Write(ctx, conn, orchestrator.Event{
		Type:      orchestrator.EventState,
		SessionID: st.SessionID,
		State:     st.State,
	})

	// The stream is push-only; reads only detect the client going away.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			slog.Debug("websocket closed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

func (s *Server) broadcastEvents() {
	for ev := range s.pipeline.Events() {
		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
				defer cancel()
				_ = wsjson.Write(ctx, c, ev)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.InvalidState:
		status = http.StatusConflict
	case apperrors.NotFound:
		status = http.StatusNotFound
	case apperrors.ConfigInvalid:
		status = http.StatusBadRequest
	case apperrors.DeviceUnavailable, apperrors.EngineUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.CodeOf(err)),
	})
}
