package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/message-board/model"
)

const (
	sampleUserID    = "aaaaaaaaaaaa"
	sampleMessageID = "cccccccccccc"
)

// runStorageSuite exercises the behaviour every Storage backend must share.
// newStorage must return an empty storage.
func runStorageSuite(t *testing.T, newStorage func(t *testing.T) Storage) {
	seed := func(t *testing.T) Storage {
		t.Helper()
		s := newStorage(t)
		ctx := context.Background()
		_, err := s.CreateUser(ctx, model.User{ID: sampleUserID, Username: "myuser", Password: "hash"})
		require.NoError(t, err)
		_, err = s.CreateMessage(ctx, model.Message{ID: sampleMessageID, Title: "testTitle", Body: "testBody", Author: sampleUserID})
		require.NoError(t, err)
		return s
	}

	t.Run("list empty store returns empty slice", func(t *testing.T) {
		s := newStorage(t)
		messages, err := s.ListMessages(context.Background(), model.MessageFilter{})
		require.NoError(t, err)
		assert.NotNil(t, messages)
		assert.Empty(t, messages)
	})

	t.Run("create registers message with author", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()

		created, err := s.CreateMessage(ctx, model.Message{Title: "t2", Body: "b2", Author: sampleUserID})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "t2", created.Title)
		assert.Equal(t, "b2", created.Body)

		user, err := s.GetUser(ctx, sampleUserID)
		require.NoError(t, err)
		assert.Equal(t, []string{created.ID, sampleMessageID}, user.Messages)
		assert.Equal(t, "hash", user.Password)

		found, err := s.ListMessages(ctx, model.MessageFilter{Title: "t2"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, created.ID, found[0].ID)
	})

	t.Run("create with unknown author persists nothing", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()

		_, err := s.CreateMessage(ctx, model.Message{ID: "orphan", Title: "t", Body: "b", Author: "nobody"})
		assert.ErrorIs(t, err, ErrAuthorNotFound)

		_, err = s.GetMessage(ctx, "orphan")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create with taken id fails", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()

		_, err := s.CreateMessage(ctx, model.Message{ID: sampleMessageID, Title: "t", Body: "b", Author: sampleUserID})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		user, err := s.GetUser(ctx, sampleUserID)
		require.NoError(t, err)
		assert.Equal(t, []string{sampleMessageID}, user.Messages)
	})

	t.Run("get returns stored message", func(t *testing.T) {
		s := seed(t)
		m, err := s.GetMessage(context.Background(), sampleMessageID)
		require.NoError(t, err)
		assert.Equal(t, model.Message{ID: sampleMessageID, Title: "testTitle", Body: "testBody", Author: sampleUserID}, *m)

		_, err = s.GetMessage(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list keeps creation order and filters", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()
		_, err := s.CreateUser(ctx, model.User{ID: "u2", Username: "other"})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := s.CreateMessage(ctx, model.Message{ID: fmt.Sprintf("m%d", i), Title: "title", Body: "body", Author: "u2"})
			require.NoError(t, err)
		}

		all, err := s.ListMessages(ctx, model.MessageFilter{})
		require.NoError(t, err)
		ids := make([]string, 0, len(all))
		for _, m := range all {
			ids = append(ids, m.ID)
		}
		assert.Equal(t, []string{sampleMessageID, "m0", "m1", "m2"}, ids)

		byAuthor, err := s.ListMessages(ctx, model.MessageFilter{Author: "u2"})
		require.NoError(t, err)
		assert.Len(t, byAuthor, 3)
	})

	t.Run("update returns post-update document", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()
		title := "t1-updated"

		updated, err := s.UpdateMessage(ctx, sampleMessageID, model.MessagePatch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "t1-updated", updated.Title)
		assert.Equal(t, "testBody", updated.Body)

		found, err := s.ListMessages(ctx, model.MessageFilter{Title: "t1-updated"})
		require.NoError(t, err)
		assert.Len(t, found, 1)

		got, err := s.GetMessage(ctx, sampleMessageID)
		require.NoError(t, err)
		assert.Equal(t, "t1-updated", got.Title)
	})

	t.Run("update missing and author change", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()
		title, author, same := "x", "someone-else", sampleUserID

		_, err := s.UpdateMessage(ctx, "missing", model.MessagePatch{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.UpdateMessage(ctx, sampleMessageID, model.MessagePatch{Author: &author})
		assert.ErrorIs(t, err, ErrAuthorImmutable)

		m, err := s.UpdateMessage(ctx, sampleMessageID, model.MessagePatch{Author: &same})
		require.NoError(t, err)
		assert.Equal(t, "testTitle", m.Title)
	})

	t.Run("delete removes message from author", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()

		require.NoError(t, s.DeleteMessage(ctx, sampleMessageID))
		assert.ErrorIs(t, s.DeleteMessage(ctx, sampleMessageID), ErrNotFound)

		_, err := s.GetMessage(ctx, sampleMessageID)
		assert.ErrorIs(t, err, ErrNotFound)

		user, err := s.GetUser(ctx, sampleUserID)
		require.NoError(t, err)
		assert.Empty(t, user.Messages)

		found, err := s.ListMessages(ctx, model.MessageFilter{Title: "testTitle"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("users are unique by id and username", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()

		_, err := s.CreateUser(ctx, model.User{ID: sampleUserID, Username: "fresh"})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		_, err = s.CreateUser(ctx, model.User{Username: "myuser"})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		created, err := s.CreateUser(ctx, model.User{Username: "fresh"})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, []string{}, created.Messages)

		_, err = s.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent creates keep every id", func(t *testing.T) {
		s := seed(t)
		ctx := context.Background()
		const n = 8

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.CreateMessage(ctx, model.Message{ID: fmt.Sprintf("c%d", i), Title: "t", Body: "b", Author: sampleUserID})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		user, err := s.GetUser(ctx, sampleUserID)
		require.NoError(t, err)
		assert.Len(t, user.Messages, n+1)
		for i := 0; i < n; i++ {
			assert.Contains(t, user.Messages, fmt.Sprintf("c%d", i))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStorage(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.ListMessages(ctx, model.MessageFilter{})
		assert.ErrorIs(t, err, context.Canceled)
		_, err = s.CreateMessage(ctx, model.Message{Title: "t", Body: "b", Author: sampleUserID})
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, s.DeleteMessage(ctx, sampleMessageID), context.Canceled)
	})
}
