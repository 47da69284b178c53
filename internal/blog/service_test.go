package blog

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/pagecache"
	"github.com/ButyrinIA/yatube/internal/storage"
	"github.com/ButyrinIA/yatube/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service *Service
	store   *memory.MemoryStorage
	clock   *pagecache.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	postClock := time.Date(2022, 6, 6, 20, 0, 0, 0, time.UTC)
	store := memory.NewWithClock(func() time.Time {
		postClock = postClock.Add(time.Minute)
		return postClock
	})
	clock := pagecache.NewManualClock(time.Date(2022, 6, 6, 12, 0, 0, 0, time.UTC))
	cache, err := pagecache.New(pagecache.NewMemoryBackend(clock), 20*time.Second)
	require.NoError(t, err)

	service, err := New(store, cache, 10)
	require.NoError(t, err)
	return &fixture{service: service, store: store, clock: clock}
}

// globalPage читает общую ленту через кеш и разбирает ответ обратно
func (f *fixture) globalPage(ctx context.Context, pageNumber int) (models.Page[models.Post], error) {
	var page models.Page[models.Post]
	data, err := f.service.RenderGlobalFeedPage(ctx, pageNumber, nil)
	if err != nil {
		return page, err
	}
	err = json.Unmarshal(data, &page)
	return page, err
}

func (f *fixture) posts(t *testing.T, author string, n int) []*models.Post {
	t.Helper()
	var out []*models.Post
	for i := 0; i < n; i++ {
		post, err := f.service.CreatePost(context.Background(), author, PostInput{Text: fmt.Sprintf("пост %d", i)})
		require.NoError(t, err)
		out = append(out, post)
	}
	return out
}

func postIDs(posts []models.Post) []int64 {
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestNew(t *testing.T) {
	cache, err := pagecache.New(pagecache.NewMemoryBackend(pagecache.SystemClock{}), time.Second)
	require.NoError(t, err)

	_, err = New(memory.New(), cache, 0)
	assert.Error(t, err, "Размер страницы должен быть положительным")
}

func TestFollowUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.service.FollowUser(ctx, "leo", "leo")
	require.NoError(t, err)
	assert.Equal(t, models.FollowRejectedSelf, result)

	result, err = f.service.FollowUser(ctx, "leo", "tolstoy")
	require.NoError(t, err)
	assert.Equal(t, models.FollowCreated, result)

	result, err = f.service.FollowUser(ctx, "leo", "tolstoy")
	require.NoError(t, err)
	assert.Equal(t, models.FollowAlreadyFollowing, result)

	count, err := f.store.CountFollows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Две подписки подряд дают одно ребро")

	require.NoError(t, f.service.UnfollowUser(ctx, "leo", "tolstoy"))
	assert.ErrorIs(t, f.service.UnfollowUser(ctx, "leo", "tolstoy"), storage.ErrNotFound)
}

func TestGlobalFeedPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.posts(t, "leo", 15)

	page1, err := f.globalPage(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, page1.Items, 10)
	assert.Equal(t, created[14].ID, page1.Items[0].ID, "Новый пост должен быть первым")
	for i := 1; i < len(page1.Items); i++ {
		assert.True(t, page1.Items[i-1].CreatedAt.After(page1.Items[i].CreatedAt))
	}

	page2, err := f.globalPage(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 5)

	page3, err := f.globalPage(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, postIDs(page2.Items), postIDs(page3.Items), "Страница за пределами - это последняя страница")
	assert.Equal(t, 2, page3.Number)
}

func TestGlobalFeedCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Stale within ttl until invalidated", func(t *testing.T) {
		f := newFixture(t)
		created := f.posts(t, "leo", 3)

		before, err := f.service.RenderGlobalFeedPage(ctx, 1, nil)
		require.NoError(t, err)

		require.NoError(t, f.service.DeletePost(ctx, "leo", created[2].ID))
		f.clock.Advance(10 * time.Second)

		stale, err := f.service.RenderGlobalFeedPage(ctx, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, before, stale, "В пределах ttl ответ побайтно совпадает со старым")

		require.NoError(t, f.service.InvalidateGlobalFeedCache(ctx))

		fresh, err := f.globalPage(ctx, 1)
		require.NoError(t, err)
		assert.NotContains(t, postIDs(fresh.Items), created[2].ID, "После сброса удаленного поста нет")
		assert.Len(t, fresh.Items, 2)
	})

	t.Run("Expires after ttl", func(t *testing.T) {
		f := newFixture(t)
		created := f.posts(t, "leo", 3)

		_, err := f.service.RenderGlobalFeedPage(ctx, 1, nil)
		require.NoError(t, err)
		require.NoError(t, f.service.DeletePost(ctx, "leo", created[0].ID))

		f.clock.Advance(20 * time.Second)
		page, err := f.globalPage(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{created[2].ID, created[1].ID}, postIDs(page.Items))
	})

	t.Run("New posts are not visible until refresh", func(t *testing.T) {
		f := newFixture(t)
		f.posts(t, "leo", 1)

		page, err := f.globalPage(ctx, 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)

		f.posts(t, "gogol", 1)
		page, err = f.globalPage(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, page.Items, 1, "Создание поста не сбрасывает кеш")
	})

	t.Run("Rendered page decodes", func(t *testing.T) {
		f := newFixture(t)
		f.posts(t, "leo", 2)

		data, err := f.service.RenderGlobalFeedPage(ctx, 1, nil)
		require.NoError(t, err)

		var page models.Page[models.Post]
		require.NoError(t, json.Unmarshal(data, &page))
		assert.Equal(t, 2, page.Count)
		assert.Equal(t, 1, page.NumPages)
	})

	t.Run("Renderer output is cached verbatim", func(t *testing.T) {
		f := newFixture(t)
		f.posts(t, "leo", 3)

		calls := 0
		render := func(ctx context.Context, page models.Page[models.Post]) ([]byte, error) {
			calls++
			return []byte(fmt.Sprintf("page %d of %d, %d posts", page.Number, page.NumPages, len(page.Items))), nil
		}

		first, err := f.service.RenderGlobalFeedPage(ctx, 1, render)
		require.NoError(t, err)
		assert.Equal(t, "page 1 of 1, 3 posts", string(first))

		second, err := f.service.RenderGlobalFeedPage(ctx, 1, render)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, calls, "При попадании рендер не вызывается")
	})

	t.Run("Other feeds bypass cache", func(t *testing.T) {
		f := newFixture(t)
		created := f.posts(t, "leo", 2)

		page, err := f.service.GetAuthorFeedPage(ctx, "leo", 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 2)

		require.NoError(t, f.service.DeletePost(ctx, "leo", created[1].ID))
		page, err = f.service.GetAuthorFeedPage(ctx, "leo", 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{created[0].ID}, postIDs(page.Items))
	})
}

func TestSubscriptionFeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b := f.posts(t, "b", 1)[0]
	f.posts(t, "d", 1)
	c := f.posts(t, "c", 1)[0]

	for _, author := range []string{"b", "c"} {
		_, err := f.service.FollowUser(ctx, "a", author)
		require.NoError(t, err)
	}

	page, err := f.service.GetSubscriptionFeedPage(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID}, postIDs(page.Items))

	require.NoError(t, f.service.UnfollowUser(ctx, "a", "b"))
	page, err = f.service.GetSubscriptionFeedPage(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID}, postIDs(page.Items), "После отписки посты автора пропадают")

	page, err = f.service.GetSubscriptionFeedPage(ctx, "nobody", 1)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.NumPages)
}

func TestGroupFeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cats := &models.Group{Title: "Коты", Slug: "cats"}
	dogs := &models.Group{Title: "Собаки", Slug: "dogs"}
	require.NoError(t, f.service.CreateGroup(ctx, cats))
	require.NoError(t, f.service.CreateGroup(ctx, dogs))

	post, err := f.service.CreatePost(ctx, "leo", PostInput{Text: "мяу", GroupID: &cats.ID})
	require.NoError(t, err)

	group, page, err := f.service.GetGroupFeedPage(ctx, "cats", 1)
	require.NoError(t, err)
	assert.Equal(t, "Коты", group.Title)
	assert.Equal(t, []int64{post.ID}, postIDs(page.Items))

	_, page, err = f.service.GetGroupFeedPage(ctx, "dogs", 1)
	require.NoError(t, err)
	assert.Empty(t, page.Items, "Пост не должен попадать в ленту чужой группы")

	_, err = f.service.EditPost(ctx, "leo", post.ID, PostInput{Text: "гав", GroupID: &dogs.ID})
	require.NoError(t, err)

	_, page, err = f.service.GetGroupFeedPage(ctx, "cats", 1)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	_, page, err = f.service.GetGroupFeedPage(ctx, "dogs", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{post.ID}, postIDs(page.Items))

	_, _, err = f.service.GetGroupFeedPage(ctx, "missing", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, f.service.DeleteGroup(ctx, "dogs"))
	kept, err := f.service.GetPost(ctx, post.ID)
	require.NoError(t, err, "Удаление группы не удаляет посты")
	assert.Nil(t, kept.GroupID)
	assert.ErrorIs(t, f.service.DeleteGroup(ctx, "dogs"), storage.ErrNotFound)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post := f.posts(t, "leo", 1)[0]

	for i := 0; i < 12; i++ {
		_, err := f.service.AddComment(ctx, "gogol", post.ID, fmt.Sprintf("коммент %d", i))
		require.NoError(t, err)
	}

	page, err := f.service.GetCommentsPage(ctx, post.ID, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "коммент 1", page.Items[0].Text)

	page, err = f.service.GetCommentsPage(ctx, post.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)

	_, err = f.service.GetCommentsPage(ctx, 999, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.service.AddComment(ctx, "gogol", post.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.service.AddComment(ctx, "gogol", 999, "в пустоту")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostAuthorship(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post := f.posts(t, "leo", 1)[0]

	_, err := f.service.EditPost(ctx, "gogol", post.ID, PostInput{Text: "чужая правка"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.service.DeletePost(ctx, "gogol", post.ID), ErrForbidden)

	edited, err := f.service.EditPost(ctx, "leo", post.ID, PostInput{Text: "правка"})
	require.NoError(t, err)
	assert.Equal(t, "правка", edited.Text)
	assert.Equal(t, post.CreatedAt, edited.CreatedAt, "Дата публикации не меняется при правке")

	_, err = f.service.EditPost(ctx, "leo", post.ID, PostInput{Text: ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.service.CreatePost(ctx, "leo", PostInput{Text: " "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.service.EditPost(ctx, "leo", 999, PostInput{Text: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.posts(t, "tolstoy", 3)

	profile, err := f.service.GetProfile(ctx, "tolstoy", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Anonymous{}, profile.Following)
	assert.Equal(t, 3, profile.Posts.Count)

	viewer := "leo"
	profile, err = f.service.GetProfile(ctx, "tolstoy", &viewer, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Following{Value: false}, profile.Following)

	_, err = f.service.FollowUser(ctx, "leo", "tolstoy")
	require.NoError(t, err)
	profile, err = f.service.GetProfile(ctx, "tolstoy", &viewer, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Following{Value: true}, profile.Following)
}

func TestCreateGroupValidation(t *testing.T) {
	f := newFixture(t)
	err := f.service.CreateGroup(context.Background(), &models.Group{Title: "Без slug"})
	assert.ErrorIs(t, err, ErrValidation)
}
