package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/anser-ai/anser/internal/chat"
	"github.com/anser-ai/anser/internal/chunker"
	"github.com/anser-ai/anser/internal/knowledge"
	"github.com/anser-ai/anser/internal/log"
	"github.com/anser-ai/anser/internal/provider"
	"github.com/anser-ai/anser/internal/rag"
	"github.com/anser-ai/anser/internal/session"
	"github.com/anser-ai/anser/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubRetriever struct {
	matches []knowledge.Match
	err     error
}

func (s *stubRetriever) Retrieve(context.Context, string) ([]knowledge.Match, error) {
	return s.matches, s.err
}

// newTestServer wires a server around in-memory stores and scripted
// upstreams.
func newTestServer(t *testing.T, retriever *stubRetriever, completer *testutil.FakeClient) (http.Handler, *chat.Service, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	svc := chat.NewService(retriever, completer, rag.NewAssembler(0), store, log.NewNop())
	srv := NewServer(svc, store, log.NewNop())
	return srv.Handler(), svc, store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler, title string) string {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{"title": title})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func TestHealthEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t, &stubRetriever{}, &testutil.FakeClient{})

	w := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")

	w = doJSON(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}

func TestSessionEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t, &stubRetriever{}, &testutil.FakeClient{})

	t.Run("create and get", func(t *testing.T) {
		id := createSession(t, h, "my session")

		w := doJSON(t, h, http.MethodGet, "/api/sessions/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp sessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "my session", resp.Title)
	})

	t.Run("list", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/api/sessions", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "sessions")
	})

	t.Run("turns include the system prompt", func(t *testing.T) {
		id := createSession(t, h, "turns")

		w := doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/turns", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Turns []turnResponse `json:"turns"`
			Total int            `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, "system", resp.Turns[0].Role)
		assert.Equal(t, chat.SystemPrompt, resp.Turns[0].Text)
	})

	t.Run("delete", func(t *testing.T) {
		id := createSession(t, h, "doomed")

		w := doJSON(t, h, http.MethodDelete, "/api/sessions/"+id, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(t, h, http.MethodGet, "/api/sessions/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/api/sessions/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("title too long", func(t *testing.T) {
		long := make([]byte, MaxTitleLength+1)
		for i := range long {
			long[i] = 'a'
		}
		w := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{"title": string(long)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChatEndpoint(t *testing.T) {
	matches := []knowledge.Match{
		{Chunk: chunker.Chunk{SourceID: "guide.txt", ChunkIndex: 2, Text: "grounding text"}, Score: 0.8},
	}

	t.Run("grounded answer", func(t *testing.T) {
		h, _, _ := newTestServer(t, &stubRetriever{matches: matches}, &testutil.FakeClient{Reply: "the answer [1]"})
		id := createSession(t, h, "")

		w := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "text": "question"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp chatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "the answer [1]", resp.Answer)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, 1, resp.Sources[0].Ordinal)
		assert.Equal(t, "guide.txt", resp.Sources[0].SourceID)
	})

	t.Run("empty retrieval answers without sources", func(t *testing.T) {
		completer := &testutil.FakeClient{Reply: "unused"}
		h, _, _ := newTestServer(t, &stubRetriever{}, completer)
		id := createSession(t, h, "")

		w := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "text": "question"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp chatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, chat.DontKnowAnswer, resp.Answer)
		assert.NotNil(t, resp.Sources)
		assert.Empty(t, resp.Sources)
		assert.Zero(t, completer.CompleteCalls)
	})

	t.Run("unknown session", func(t *testing.T) {
		h, _, _ := newTestServer(t, &stubRetriever{matches: matches}, &testutil.FakeClient{})
		w := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"session_id": uuid.NewString(), "text": "q"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad request", func(t *testing.T) {
		h, _, _ := newTestServer(t, &stubRetriever{matches: matches}, &testutil.FakeClient{})
		id := createSession(t, h, "")

		w := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"session_id": "nope", "text": "q"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "text": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upstream timeout maps to 504", func(t *testing.T) {
		completer := &testutil.FakeClient{
			CompleteFunc: func(context.Context, []provider.Turn) (string, error) {
				return "", fmt.Errorf("%w: upstream stalled", provider.ErrTimeout)
			},
		}
		h, _, _ := newTestServer(t, &stubRetriever{matches: matches}, completer)
		id := createSession(t, h, "")

		w := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "text": "q"})
		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})

	t.Run("upstream failure maps to 502 and is retryable", func(t *testing.T) {
		completer := &testutil.FakeClient{
			CompleteFunc: func(context.Context, []provider.Turn) (string, error) {
				return "", fmt.Errorf("%w: boom", provider.ErrCompletion)
			},
		}
		h, _, store := newTestServer(t, &stubRetriever{matches: matches}, completer)
		id := createSession(t, h, "")

		w := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "text": "q"})
		require.Equal(t, http.StatusBadGateway, w.Code)

		// History unchanged after the failure.
		sid, err := uuid.Parse(id)
		require.NoError(t, err)
		turns, err := store.Turns(context.Background(), sid)
		require.NoError(t, err)
		assert.Len(t, turns, 1)

		// The retry succeeds.
		completer.CompleteFunc = nil
		completer.Reply = "recovered"
		w = doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "text": "q"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "recovered")
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	})
	h := chain(panicking, recoveryMiddleware(log.NewNop()), loggingMiddleware(log.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
