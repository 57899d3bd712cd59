// Package chat implements the conversation state machine: retrieve
// relevant chunks for a user question, build the contextualized turn,
// call the completion service with the full history, and record the
// exchange.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/anser-ai/anser/internal/knowledge"
	"github.com/anser-ai/anser/internal/provider"
	"github.com/anser-ai/anser/internal/rag"
	"github.com/anser-ai/anser/internal/session"
)

// SystemPrompt is the grounding instruction every session starts with.
// The completion service is expected, not guaranteed, to honor it;
// ungrounded answers are a quality issue, not a failure.
const SystemPrompt = "Answer ONLY using the provided context. " +
	"Cite sources like [1], [2]. " +
	"If the answer is not in the context, say you don't know."

// DontKnowAnswer is returned when retrieval finds nothing relevant.
// No completion call is made in that case.
const DontKnowAnswer = "I don't know."

// Answer is the result of one submitted question.
type Answer struct {
	Text    string                `json:"answer"`
	Sources []rag.SourceReference `json:"sources"`

	// Matches carries the raw retrieval results for debug display.
	// Empty unless the service was built with debug enabled.
	Matches []knowledge.Match `json:"-"`
}

// Retriever finds chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, queryText string) ([]knowledge.Match, error)
}

// Completer produces an assistant reply from the full turn sequence.
// It is stateless per call; all conversational memory comes from the
// caller.
type Completer interface {
	Complete(ctx context.Context, turns []provider.Turn) (string, error)
}

// Service resolves questions against ingested documents, one session
// at a time per session. It is safe for concurrent use across sessions;
// submits to the same session are serialized.
type Service struct {
	retriever Retriever
	completer Completer
	assembler *rag.Assembler
	store     session.Store
	logger    *slog.Logger
	debug     bool

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithDebug makes Submit carry raw retrieval matches in the Answer.
func WithDebug(debug bool) Option {
	return func(s *Service) { s.debug = debug }
}

// NewService wires the conversation service.
func NewService(retriever Retriever, completer Completer, assembler *rag.Assembler, store session.Store, logger *slog.Logger, opts ...Option) *Service {
	if assembler == nil {
		assembler = rag.NewAssembler(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		retriever: retriever,
		completer: completer,
		assembler: assembler,
		store:     store,
		logger:    logger,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession starts a conversation seeded with the grounding system
// prompt.
func (s *Service) NewSession(ctx context.Context, title string) (session.Session, error) {
	return s.store.Create(ctx, title, SystemPrompt)
}

// DeleteSession removes the session and its history, and drops the
// per-session serialization lock so long-running processes do not
// accumulate state for sessions that no longer exist.
func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

// Submit resolves one question for the given session.
//
// Empty or whitespace-only input is a no-op: the empty Answer is
// returned and no turn is appended. When retrieval finds nothing above
// the threshold, Submit returns DontKnowAnswer with no sources, makes
// no completion call, and appends nothing, so a dead-end question never
// pollutes later model context. On upstream failure the history is
// likewise unchanged, which makes retrying the same question safe.
func (s *Service) Submit(ctx context.Context, sessionID uuid.UUID, userText string) (Answer, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return Answer{}, nil
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.store.Turns(ctx, sessionID)
	if err != nil {
		return Answer{}, err
	}

	matches, err := s.retriever.Retrieve(ctx, userText)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	if len(matches) == 0 {
		s.logger.Debug("no relevant chunks", "session", sessionID)
		return Answer{Text: DontKnowAnswer, Sources: []rag.SourceReference{}}, nil
	}

	contextBlock, sources := s.assembler.Assemble(matches)
	userTurn := provider.Turn{
		Role: provider.RoleUser,
		Text: fmt.Sprintf("Context from document:\n%s\n\nQuestion: %s", contextBlock, userText),
	}

	reply, err := s.completer.Complete(ctx, append(history, userTurn))
	if err != nil {
		return Answer{}, fmt.Errorf("completing: %w", err)
	}

	assistantTurn := provider.Turn{Role: provider.RoleAssistant, Text: reply}
	if err := s.store.Append(ctx, sessionID, []provider.Turn{userTurn, assistantTurn}); err != nil {
		return Answer{}, fmt.Errorf("recording turns: %w", err)
	}

	answer := Answer{Text: reply, Sources: sources}
	if s.debug {
		answer.Matches = matches
	}
	return answer, nil
}

// sessionLock returns the mutex serializing submits for one session.
func (s *Service) sessionLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
