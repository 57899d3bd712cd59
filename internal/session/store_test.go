package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anser-ai/anser/internal/log"
	"github.com/anser-ai/anser/internal/provider"
	"github.com/anser-ai/anser/internal/session"
	"github.com/anser-ai/anser/internal/testutil"
)

func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	testDB := testutil.SetupTestDB(t)
	store := session.NewPostgresStore(testDB.Pool, log.NewNop())

	t.Run("create and read back", func(t *testing.T) {
		sess, err := store.Create(ctx, "integration", "system prompt")
		require.NoError(t, err)

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, "integration", got.Title)

		turns, err := store.Turns(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, provider.RoleSystem, turns[0].Role)
		assert.Equal(t, "system prompt", turns[0].Text)
	})

	t.Run("append keeps order across calls", func(t *testing.T) {
		sess, err := store.Create(ctx, "", "system")
		require.NoError(t, err)

		require.NoError(t, store.Append(ctx, sess.ID, []provider.Turn{
			{Role: provider.RoleUser, Text: "q1"},
			{Role: provider.RoleAssistant, Text: "a1"},
		}))
		require.NoError(t, store.Append(ctx, sess.ID, []provider.Turn{
			{Role: provider.RoleUser, Text: "q2"},
			{Role: provider.RoleAssistant, Text: "a2"},
		}))

		turns, err := store.Turns(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, turns, 5)
		assert.Equal(t, []string{"system", "q1", "a1", "q2", "a2"},
			[]string{turns[0].Text, turns[1].Text, turns[2].Text, turns[3].Text, turns[4].Text})
	})

	t.Run("concurrent appends do not collide", func(t *testing.T) {
		sess, err := store.Create(ctx, "", "system")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = store.Append(ctx, sess.ID, []provider.Turn{
					{Role: provider.RoleUser, Text: "q"},
					{Role: provider.RoleAssistant, Text: "a"},
				})
			}()
		}
		wg.Wait()

		turns, err := store.Turns(ctx, sess.ID)
		require.NoError(t, err)
		assert.Len(t, turns, 17) // system + 8 pairs
	})

	t.Run("delete cascades to turns", func(t *testing.T) {
		sess, err := store.Create(ctx, "", "system")
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, sess.ID))

		_, err = store.Get(ctx, sess.ID)
		assert.True(t, errors.Is(err, session.ErrNotFound))
		_, err = store.Turns(ctx, sess.ID)
		assert.True(t, errors.Is(err, session.ErrNotFound))
	})

	t.Run("missing session", func(t *testing.T) {
		id := uuid.New()
		_, err := store.Get(ctx, id)
		assert.True(t, errors.Is(err, session.ErrNotFound))
		err = store.Append(ctx, id, []provider.Turn{{Role: provider.RoleUser, Text: "x"}})
		assert.True(t, errors.Is(err, session.ErrNotFound))
		err = store.Delete(ctx, id)
		assert.True(t, errors.Is(err, session.ErrNotFound))
	})
}
