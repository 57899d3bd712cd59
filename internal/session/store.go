package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anser-ai/anser/internal/provider"
)

// SQL statements for session persistence.
const (
	createSessionSQL = `
		INSERT INTO sessions (id, title)
		VALUES ($1, $2)
		RETURNING id, title, created_at, updated_at`

	getSessionSQL = `
		SELECT id, title, created_at, updated_at
		FROM sessions
		WHERE id = $1`

	listSessionsSQL = `
		SELECT id, title, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC`

	deleteSessionSQL = `DELETE FROM sessions WHERE id = $1`

	// Serializes concurrent appends to the same session.
	lockSessionSQL = `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`

	getTurnsSQL = `
		SELECT role, content
		FROM turns
		WHERE session_id = $1
		ORDER BY sequence_number`

	maxSequenceSQL = `
		SELECT COALESCE(MAX(sequence_number), 0)
		FROM turns
		WHERE session_id = $1`

	addTurnSQL = `
		INSERT INTO turns (session_id, sequence_number, role, content)
		VALUES ($1, $2, $3, $4)`

	touchSessionSQL = `UPDATE sessions SET updated_at = NOW() WHERE id = $1`
)

// PostgresStore persists sessions and turns in PostgreSQL.
// It is safe for concurrent use by multiple goroutines.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a session store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Create starts a new session whose history begins with the system turn.
func (s *PostgresStore) Create(ctx context.Context, title, systemPrompt string) (Session, error) {
	id := uuid.New()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var sess Session
	err = tx.QueryRow(ctx, createSessionSQL, id, title).
		Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("creating session: %w", err)
	}

	if _, err := tx.Exec(ctx, addTurnSQL, id, 1, string(provider.RoleSystem), systemPrompt); err != nil {
		return Session{}, fmt.Errorf("adding system turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("committing session: %w", err)
	}

	s.logger.Debug("session created", "id", sess.ID, "title", sess.Title)
	return sess, nil
}

// Get returns the session or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, getSessionSQL, id).
		Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// List returns all sessions, most recently updated first.
func (s *PostgresStore) List(ctx context.Context) ([]Session, error) {
	rows, err := s.pool.Query(ctx, listSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Session, error) {
		var sess Session
		err := row.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
		return sess, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and, via cascade, its turns.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Turns returns the session's full history in append order.
func (s *PostgresStore) Turns(ctx context.Context, id uuid.UUID) ([]provider.Turn, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, getTurnsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting turns: %w", err)
	}
	defer rows.Close()

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (provider.Turn, error) {
		var role, content string
		if err := row.Scan(&role, &content); err != nil {
			return provider.Turn{}, err
		}
		return provider.Turn{Role: provider.Role(role), Text: content}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting turns: %w", err)
	}
	return turns, nil
}

// Append adds turns to the end of the session's history. The session
// row is locked for the duration so concurrent appends cannot produce
// duplicate sequence numbers.
func (s *PostgresStore) Append(ctx context.Context, id uuid.UUID, turns []provider.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, lockSessionSQL, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("locking session: %w", err)
	}

	var maxSeq int32
	if err := tx.QueryRow(ctx, maxSequenceSQL, id).Scan(&maxSeq); err != nil {
		return fmt.Errorf("getting max sequence: %w", err)
	}

	for i, t := range turns {
		seq := maxSeq + int32(i) + 1
		if _, err := tx.Exec(ctx, addTurnSQL, id, seq, string(t.Role), t.Text); err != nil {
			return fmt.Errorf("adding turn %d: %w", seq, err)
		}
	}

	if _, err := tx.Exec(ctx, touchSessionSQL, id); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing turns: %w", err)
	}

	s.logger.Debug("turns appended", "session", id, "count", len(turns))
	return nil
}
