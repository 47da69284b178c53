package feed

import (
	"context"

	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/pagination"
	"github.com/ButyrinIA/yatube/internal/storage"
)

// PostStore - чтение постов и групп для лент
type PostStore interface {
	CountPosts(ctx context.Context, filter storage.PostFilter) (int, error)
	ListPosts(ctx context.Context, filter storage.PostFilter, offset, limit int) ([]models.Post, error)
	GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error)
}

type FollowGraph interface {
	FollowedAuthors(ctx context.Context, followerID string) ([]string, error)
}

// Aggregator строит ленты постов. Все ленты упорядочены одинаково: по дате
// создания по убыванию, при равенстве по id по убыванию; порядок задает хранилище.
type Aggregator struct {
	store PostStore
	graph FollowGraph
}

func New(store PostStore, graph FollowGraph) *Aggregator {
	return &Aggregator{store: store, graph: graph}
}

func (a *Aggregator) GlobalFeed() pagination.Sequence[models.Post] {
	return &postSequence{store: a.store}
}

func (a *Aggregator) AuthorFeed(authorID string) pagination.Sequence[models.Post] {
	return &postSequence{
		store:  a.store,
		filter: storage.PostFilter{AuthorIDs: []string{authorID}},
	}
}

// GroupFeed возвращает storage.ErrNotFound для неизвестного slug
func (a *Aggregator) GroupFeed(ctx context.Context, slug string) (*models.Group, pagination.Sequence[models.Post], error) {
	group, err := a.store.GetGroupBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	seq := &postSequence{
		store:  a.store,
		filter: storage.PostFilter{GroupID: &group.ID},
	}
	return group, seq, nil
}

// SubscriptionFeed - посты всех авторов, на которых подписан зритель.
// Список авторов перечитывается при каждом запросе к последовательности.
func (a *Aggregator) SubscriptionFeed(viewerID string) pagination.Sequence[models.Post] {
	return &subscriptionSequence{store: a.store, graph: a.graph, viewerID: viewerID}
}

type postSequence struct {
	store  PostStore
	filter storage.PostFilter
}

func (s *postSequence) Count(ctx context.Context) (int, error) {
	return s.store.CountPosts(ctx, s.filter)
}

func (s *postSequence) Slice(ctx context.Context, offset, limit int) ([]models.Post, error) {
	return s.store.ListPosts(ctx, s.filter, offset, limit)
}

type subscriptionSequence struct {
	store    PostStore
	graph    FollowGraph
	viewerID string
}

func (s *subscriptionSequence) filter(ctx context.Context) (storage.PostFilter, error) {
	authors, err := s.graph.FollowedAuthors(ctx, s.viewerID)
	if err != nil {
		return storage.PostFilter{}, err
	}
	if authors == nil {
		// nil означал бы "все авторы"
		authors = []string{}
	}
	return storage.PostFilter{AuthorIDs: authors}, nil
}

func (s *subscriptionSequence) Count(ctx context.Context) (int, error) {
	filter, err := s.filter(ctx)
	if err != nil {
		return 0, err
	}
	return s.store.CountPosts(ctx, filter)
}

func (s *subscriptionSequence) Slice(ctx context.Context, offset, limit int) ([]models.Post, error) {
	filter, err := s.filter(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListPosts(ctx, filter, offset, limit)
}
