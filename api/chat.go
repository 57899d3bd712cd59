package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/anser-ai/anser/internal/chat"
	"github.com/anser-ai/anser/internal/provider"
	"github.com/anser-ai/anser/internal/rag"
	"github.com/anser-ai/anser/internal/session"
)

// MaxQuestionLength bounds the question size accepted over HTTP.
const MaxQuestionLength = 8192

// ChatHandler serves question submission.
type ChatHandler struct {
	svc    *chat.Service
	logger *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc *chat.Service, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.submit)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type chatResponse struct {
	Answer  string                `json:"answer"`
	Sources []rag.SourceReference `json:"sources"`
}

// submit resolves one question against the session. Upstream failures
// map to 502, upstream timeouts to 504; the session history is
// unchanged in both cases, so the client can safely retry.
func (h *ChatHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "body must be JSON")
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "session_id must be a UUID")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "text must not be empty")
		return
	}
	if len(req.Text) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "invalid request", "text too long")
		return
	}

	answer, err := h.svc.Submit(r.Context(), sessionID, req.Text)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "session does not exist")
		return
	case errors.Is(err, provider.ErrTimeout):
		h.logger.Warn("upstream timeout", "session", sessionID, "error", err)
		writeError(w, http.StatusGatewayTimeout, "upstream timeout", "model service timed out; retry is safe")
		return
	case errors.Is(err, provider.ErrEmbedding), errors.Is(err, provider.ErrCompletion):
		h.logger.Error("upstream failure", "session", sessionID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream failure", "model service failed; retry is safe")
		return
	default:
		h.logger.Error("submit failed", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to process question")
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []rag.SourceReference{}
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer.Text, Sources: sources})
}
