// Package session persists conversation sessions and their ordered turn
// history. History is append-only: turns are never updated, reordered,
// or truncated, only added with strictly increasing sequence numbers.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/anser-ai/anser/internal/provider"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is the durable identity of one conversation.
type Session struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the persistence surface for sessions and turns.
type Store interface {
	// Create starts a new session whose history begins with the given
	// system turn.
	Create(ctx context.Context, title, systemPrompt string) (Session, error)

	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (Session, error)

	// List returns all sessions, most recently updated first.
	List(ctx context.Context) ([]Session, error)

	// Delete removes a session and its turns. Deleting a missing
	// session returns ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error

	// Turns returns the session's full history in append order, or
	// ErrNotFound if the session does not exist.
	Turns(ctx context.Context, id uuid.UUID) ([]provider.Turn, error)

	// Append adds turns to the end of the session's history
	// atomically: either all land, in order, or none do.
	Append(ctx context.Context, id uuid.UUID, turns []provider.Turn) error
}
