package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/anser-ai/anser/internal/session"
)

// MaxTitleLength bounds the session title accepted on create.
const MaxTitleLength = 100

// SessionService manages session lifecycle through the chat layer.
// Create seeds the grounding system prompt and delete releases the
// per-session serialization state; going to the store directly would
// skip both.
type SessionService interface {
	NewSession(ctx context.Context, title string) (session.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// SessionHandler handles session management endpoints.
type SessionHandler struct {
	store  session.Store
	svc    SessionService
	logger *slog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store session.Store, svc SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, svc: svc, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
	mux.HandleFunc("GET /api/sessions/{id}/turns", h.turns)
}

type sessionResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID.String(),
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: s.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to list sessions")
		return
	}

	out := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = toSessionResponse(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out, "total": len(out)})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "body must be JSON")
		return
	}
	if len(req.Title) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "invalid request", "title too long")
		return
	}

	sess, err := h.svc.NewSession(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found", "session does not exist")
		return
	}
	if err != nil {
		h.logger.Error("failed to get session", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	err := h.svc.DeleteSession(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found", "session does not exist")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete session", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type turnResponse struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (h *SessionHandler) turns(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	turns, err := h.store.Turns(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found", "session does not exist")
		return
	}
	if err != nil {
		h.logger.Error("failed to get turns", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to get turns")
		return
	}

	out := make([]turnResponse, len(turns))
	for i, t := range turns {
		out[i] = turnResponse{Role: string(t.Role), Text: t.Text}
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": out, "total": len(out)})
}

// parseSessionID extracts and validates the {id} path parameter,
// writing the error response itself on failure.
func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "session id must be a UUID")
		return uuid.UUID{}, false
	}
	return id, true
}
