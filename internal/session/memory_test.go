package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anser-ai/anser/internal/provider"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create seeds the system turn", func(t *testing.T) {
		store := NewMemoryStore()
		sess, err := store.Create(ctx, "test", "ground your answers")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.UUID{}, sess.ID)
		assert.Equal(t, "test", sess.Title)

		turns, err := store.Turns(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, provider.RoleSystem, turns[0].Role)
		assert.Equal(t, "ground your answers", turns[0].Text)
	})

	t.Run("append preserves order", func(t *testing.T) {
		store := NewMemoryStore()
		sess, err := store.Create(ctx, "", "system")
		require.NoError(t, err)

		require.NoError(t, store.Append(ctx, sess.ID, []provider.Turn{
			{Role: provider.RoleUser, Text: "first question"},
			{Role: provider.RoleAssistant, Text: "first answer"},
		}))
		require.NoError(t, store.Append(ctx, sess.ID, []provider.Turn{
			{Role: provider.RoleUser, Text: "second question"},
			{Role: provider.RoleAssistant, Text: "second answer"},
		}))

		turns, err := store.Turns(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, turns, 5)
		assert.Equal(t, "system", turns[0].Text)
		assert.Equal(t, "first question", turns[1].Text)
		assert.Equal(t, "first answer", turns[2].Text)
		assert.Equal(t, "second question", turns[3].Text)
		assert.Equal(t, "second answer", turns[4].Text)
	})

	t.Run("turns returns a copy", func(t *testing.T) {
		store := NewMemoryStore()
		sess, err := store.Create(ctx, "", "system")
		require.NoError(t, err)

		turns, err := store.Turns(ctx, sess.ID)
		require.NoError(t, err)
		turns[0].Text = "mutated"

		fresh, err := store.Turns(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "system", fresh[0].Text)
	})

	t.Run("missing session", func(t *testing.T) {
		store := NewMemoryStore()
		id := uuid.New()

		_, err := store.Get(ctx, id)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = store.Turns(ctx, id)
		assert.True(t, errors.Is(err, ErrNotFound))
		err = store.Append(ctx, id, []provider.Turn{{Role: provider.RoleUser, Text: "x"}})
		assert.True(t, errors.Is(err, ErrNotFound))
		err = store.Delete(ctx, id)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("list and delete", func(t *testing.T) {
		store := NewMemoryStore()
		first, err := store.Create(ctx, "first", "system")
		require.NoError(t, err)
		second, err := store.Create(ctx, "second", "system")
		require.NoError(t, err)

		// Appending touches the session, moving it to the front.
		require.NoError(t, store.Append(ctx, first.ID, []provider.Turn{
			{Role: provider.RoleUser, Text: "hello"},
		}))

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, first.ID, sessions[0].ID)

		require.NoError(t, store.Delete(ctx, second.ID))
		sessions, err = store.List(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, first.ID, sessions[0].ID)
	})
}
