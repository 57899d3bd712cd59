// Package provider abstracts the embedding and completion services behind
// a single capability interface selected once at construction.
//
// The index and query sides of retrieval must share one embedding space:
// an index built with one embedder is not meaningfully queryable with
// another. Callers therefore construct exactly one Client per deployment
// and use it for both ingestion and querying.
package provider

import (
	"context"
	"errors"
)

// Sentinel errors classifying upstream failures. Checked with errors.Is.
var (
	// ErrEmbedding indicates the embedding service failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrCompletion indicates the completion service failed.
	ErrCompletion = errors.New("completion failed")

	// ErrTimeout indicates an upstream call exceeded its deadline.
	// Retryable with backoff; see retry.go.
	ErrTimeout = errors.New("upstream timeout")
)

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role Role
	Text string
}

// Client is the capability interface for the model backend.
//
// Embed maps text to a fixed-dimension vector; Complete produces an
// assistant reply from the full ordered turn sequence. Complete is
// stateless per call: all conversational memory is supplied by the
// caller via turns.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Complete(ctx context.Context, turns []Turn) (string, error)
}
