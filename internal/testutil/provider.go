package testutil

import (
	"context"
	"sync"

	"github.com/anser-ai/anser/internal/provider"
)

// FakeClient is a scripted provider.Client for tests. Embeddings come
// from the Vectors map, with EmbedFunc as an escape hatch; completions
// come from CompleteFunc or a fixed Reply. Call counts are recorded so
// tests can assert which upstream calls happened.
type FakeClient struct {
	mu sync.Mutex

	// Vectors maps exact input text to its embedding.
	Vectors map[string][]float32

	// EmbedFunc, when set, overrides Vectors.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// Reply is returned by Complete when CompleteFunc is nil.
	Reply string

	// CompleteFunc, when set, overrides Reply.
	CompleteFunc func(ctx context.Context, turns []provider.Turn) (string, error)

	EmbedCalls    int
	CompleteCalls int

	// LastTurns records the turn sequence of the latest Complete call.
	LastTurns []provider.Turn
}

var _ provider.Client = (*FakeClient)(nil)

// Embed returns the scripted embedding for text. Unknown text gets a
// zero vector of dimension 3, which scores 0 against everything.
func (f *FakeClient) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.EmbedCalls++
	f.mu.Unlock()

	if f.EmbedFunc != nil {
		return f.EmbedFunc(ctx, text)
	}
	if v, ok := f.Vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

// Complete returns the scripted reply.
func (f *FakeClient) Complete(ctx context.Context, turns []provider.Turn) (string, error) {
	f.mu.Lock()
	f.CompleteCalls++
	f.LastTurns = append([]provider.Turn(nil), turns...)
	f.mu.Unlock()

	if f.CompleteFunc != nil {
		return f.CompleteFunc(ctx, turns)
	}
	return f.Reply, nil
}
