package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock выдает время, которое растет на секунду при каждом вызове.
func tickingClock() func() time.Time {
	base := time.Date(2022, 6, 6, 20, 57, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestMemoryStorage(t *testing.T) {
	t.Run("CreatePost and GetPost", func(t *testing.T) {
		store := New()
		ctx := context.Background()

		post := &models.Post{Text: "Тестовый пост", AuthorID: "user1"}
		err := store.CreatePost(ctx, post)
		assert.NoError(t, err, "Ошибка при создании поста")
		assert.NotZero(t, post.ID, "ID поста не назначен")
		assert.False(t, post.CreatedAt.IsZero(), "Дата публикации не назначена")

		retrieved, err := store.GetPost(ctx, post.ID)
		assert.NoError(t, err, "Ошибка при получении поста")
		assert.Equal(t, post, retrieved, "Полученный пост не совпадает с созданным")
	})

	t.Run("GetPost Not Found", func(t *testing.T) {
		store := New()

		_, err := store.GetPost(context.Background(), 42)
		assert.ErrorIs(t, err, storage.ErrNotFound, "Ожидалась ошибка для несуществующего поста")
	})

	t.Run("CreatePost ignores caller timestamp", func(t *testing.T) {
		store := NewWithClock(tickingClock())
		ctx := context.Background()

		post := &models.Post{Text: "пост", AuthorID: "user1", CreatedAt: time.Unix(0, 0)}
		require.NoError(t, store.CreatePost(ctx, post))
		assert.NotEqual(t, time.Unix(0, 0), post.CreatedAt)
	})

	t.Run("UpdatePost keeps author and creation time", func(t *testing.T) {
		store := NewWithClock(tickingClock())
		ctx := context.Background()

		post := &models.Post{Text: "старый текст", AuthorID: "user1"}
		require.NoError(t, store.CreatePost(ctx, post))
		created := post.CreatedAt

		update := &models.Post{ID: post.ID, Text: "новый текст", AuthorID: "intruder", CreatedAt: time.Now()}
		require.NoError(t, store.UpdatePost(ctx, update))

		retrieved, err := store.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "новый текст", retrieved.Text)
		assert.Equal(t, "user1", retrieved.AuthorID)
		assert.Equal(t, created, retrieved.CreatedAt)
	})

	t.Run("ListPosts orders by date then id", func(t *testing.T) {
		fixed := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
		store := NewWithClock(func() time.Time { return fixed })
		ctx := context.Background()

		var ids []int64
		for i := 0; i < 3; i++ {
			post := &models.Post{Text: "пост", AuthorID: "user1"}
			require.NoError(t, store.CreatePost(ctx, post))
			ids = append(ids, post.ID)
		}

		posts, err := store.ListPosts(ctx, storage.PostFilter{}, 0, 10)
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{posts[0].ID, posts[1].ID, posts[2].ID})
	})

	t.Run("ListPosts filters", func(t *testing.T) {
		store := NewWithClock(tickingClock())
		ctx := context.Background()

		group := &models.Group{Title: "Группа", Slug: "group"}
		require.NoError(t, store.CreateGroup(ctx, group))

		require.NoError(t, store.CreatePost(ctx, &models.Post{Text: "1", AuthorID: "a", GroupID: &group.ID}))
		require.NoError(t, store.CreatePost(ctx, &models.Post{Text: "2", AuthorID: "b"}))
		require.NoError(t, store.CreatePost(ctx, &models.Post{Text: "3", AuthorID: "c", GroupID: &group.ID}))

		count, err := store.CountPosts(ctx, storage.PostFilter{AuthorIDs: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = store.CountPosts(ctx, storage.PostFilter{AuthorIDs: []string{}})
		require.NoError(t, err)
		assert.Zero(t, count, "Пустой список авторов не должен ничего возвращать")

		posts, err := store.ListPosts(ctx, storage.PostFilter{GroupID: &group.ID}, 0, 10)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "3", posts[0].Text)
		assert.Equal(t, "1", posts[1].Text)

		posts, err = store.ListPosts(ctx, storage.PostFilter{}, 5, 10)
		require.NoError(t, err)
		assert.Empty(t, posts)
	})

	t.Run("DeletePost cascades comments", func(t *testing.T) {
		store := New()
		ctx := context.Background()

		post := &models.Post{Text: "пост", AuthorID: "user1"}
		require.NoError(t, store.CreatePost(ctx, post))
		require.NoError(t, store.CreateComment(ctx, &models.Comment{PostID: post.ID, AuthorID: "user2", Text: "коммент"}))

		require.NoError(t, store.DeletePost(ctx, post.ID))
		count, err := store.CountComments(ctx, post.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		assert.ErrorIs(t, store.DeletePost(ctx, post.ID), storage.ErrNotFound)
	})

	t.Run("DeleteGroup keeps posts", func(t *testing.T) {
		store := New()
		ctx := context.Background()

		group := &models.Group{Title: "Группа", Slug: "group"}
		require.NoError(t, store.CreateGroup(ctx, group))
		post := &models.Post{Text: "пост", AuthorID: "user1", GroupID: &group.ID}
		require.NoError(t, store.CreatePost(ctx, post))

		require.NoError(t, store.DeleteGroup(ctx, group.ID))

		retrieved, err := store.GetPost(ctx, post.ID)
		require.NoError(t, err, "Пост должен пережить удаление группы")
		assert.Nil(t, retrieved.GroupID)

		_, err = store.GetGroupBySlug(ctx, "group")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Group slug is unique", func(t *testing.T) {
		store := New()
		ctx := context.Background()

		require.NoError(t, store.CreateGroup(ctx, &models.Group{Title: "A", Slug: "slug"}))
		assert.ErrorIs(t, store.CreateGroup(ctx, &models.Group{Title: "B", Slug: "slug"}), storage.ErrDuplicateSlug)
	})

	t.Run("CreateComment and ListComments", func(t *testing.T) {
		store := NewWithClock(tickingClock())
		ctx := context.Background()

		post := &models.Post{Text: "пост", AuthorID: "user1"}
		require.NoError(t, store.CreatePost(ctx, post))

		first := &models.Comment{PostID: post.ID, AuthorID: "user1", Text: "первый"}
		second := &models.Comment{PostID: post.ID, AuthorID: "user2", Text: "второй"}
		require.NoError(t, store.CreateComment(ctx, first))
		require.NoError(t, store.CreateComment(ctx, second))

		comments, err := store.ListComments(ctx, post.ID, 0, 10)
		assert.NoError(t, err, "Ошибка при получении комментариев")
		require.Len(t, comments, 2)
		assert.Equal(t, second.ID, comments[0].ID, "Новый комментарий должен быть первым")

		err = store.CreateComment(ctx, &models.Comment{PostID: 999, AuthorID: "user1", Text: "в пустоту"})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Follow edges", func(t *testing.T) {
		store := New()
		ctx := context.Background()

		require.NoError(t, store.InsertFollow(ctx, "a", "b"))
		assert.ErrorIs(t, store.InsertFollow(ctx, "a", "b"), storage.ErrDuplicateFollow)
		require.NoError(t, store.InsertFollow(ctx, "a", "c"))

		authors, err := store.FollowedAuthors(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, authors)

		exists, err := store.FollowExists(ctx, "b", "a")
		require.NoError(t, err)
		assert.False(t, exists, "Подписка направленная")

		require.NoError(t, store.DeleteFollow(ctx, "a", "b"))
		assert.ErrorIs(t, store.DeleteFollow(ctx, "a", "b"), storage.ErrNotFound)

		count, err := store.CountFollows(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Close", func(t *testing.T) {
		store := New()
		ctx := context.Background()

		post := &models.Post{Text: "пост", AuthorID: "user1"}
		assert.NoError(t, store.CreatePost(ctx, post))

		err := store.Close()
		assert.NoError(t, err, "Ошибка при закрытии хранилища")

		_, err = store.GetPost(ctx, post.ID)
		assert.Error(t, err, "Ожидалась ошибка после очистки хранилища")
	})
}
