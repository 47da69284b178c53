package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/yatube/internal/feed"
	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/monitoring"
	"github.com/ButyrinIA/yatube/internal/pagecache"
	"github.com/ButyrinIA/yatube/internal/pagination"
	"github.com/ButyrinIA/yatube/internal/storage"
	"github.com/ButyrinIA/yatube/internal/subscription"
	log "github.com/sirupsen/logrus"
)

const globalFeedKeyPrefix = "index_page:"

var (
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
)

// PostInput - изменяемые автором поля поста
type PostInput struct {
	Text    string `json:"text"`
	GroupID *int64 `json:"groupId,omitempty"`
	Image   string `json:"image,omitempty"`
}

// Profile - страница автора: его посты и признак подписки зрителя
type Profile struct {
	AuthorID  string                   `json:"authorId"`
	Posts     models.Page[models.Post] `json:"posts"`
	Following models.FollowingStatus   `json:"-"`
}

type Service struct {
	store     storage.Store
	graph     *subscription.Graph
	feed      *feed.Aggregator
	cache     *pagecache.Cache
	paginator pagination.Paginator
}

func New(store storage.Store, cache *pagecache.Cache, pageSize int) (*Service, error) {
	paginator, err := pagination.New(pageSize)
	if err != nil {
		return nil, err
	}
	graph := subscription.New(store)
	return &Service{
		store:     store,
		graph:     graph,
		feed:      feed.New(store, graph),
		cache:     cache,
		paginator: paginator,
	}, nil
}

func (s *Service) FollowUser(ctx context.Context, followerID, authorID string) (models.FollowResult, error) {
	return s.graph.Follow(ctx, followerID, authorID)
}

func (s *Service) UnfollowUser(ctx context.Context, followerID, authorID string) error {
	return s.graph.Unfollow(ctx, followerID, authorID)
}

func (s *Service) IsFollowing(ctx context.Context, followerID, authorID string) (bool, error) {
	return s.graph.IsFollowing(ctx, followerID, authorID)
}

// PageRenderer превращает страницу ленты в готовый ответ
type PageRenderer func(ctx context.Context, page models.Page[models.Post]) ([]byte, error)

// RenderJSON - рендер страницы без оформления
func RenderJSON(_ context.Context, page models.Page[models.Post]) ([]byte, error) {
	return json.Marshal(page)
}

// RenderGlobalFeedPage отдает отрендеренную страницу общей ленты. В пределах ttl
// возвращаются те же байты, даже если посты или группы с тех пор менялись.
// render вызывается только при промахе; nil означает RenderJSON.
func (s *Service) RenderGlobalFeedPage(ctx context.Context, pageNumber int, render PageRenderer) ([]byte, error) {
	if render == nil {
		render = RenderJSON
	}
	key := globalFeedKeyPrefix + strconv.Itoa(pageNumber)
	return s.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		page, err := s.paginate(ctx, "global", s.feed.GlobalFeed(), pageNumber)
		if err != nil {
			return nil, err
		}
		return render(ctx, page)
	})
}

func (s *Service) GetAuthorFeedPage(ctx context.Context, authorID string, pageNumber int) (models.Page[models.Post], error) {
	return s.paginate(ctx, "author", s.feed.AuthorFeed(authorID), pageNumber)
}

func (s *Service) GetGroupFeedPage(ctx context.Context, slug string, pageNumber int) (*models.Group, models.Page[models.Post], error) {
	group, seq, err := s.feed.GroupFeed(ctx, slug)
	if err != nil {
		return nil, models.Page[models.Post]{}, err
	}
	page, err := s.paginate(ctx, "group", seq, pageNumber)
	if err != nil {
		return nil, models.Page[models.Post]{}, err
	}
	return group, page, nil
}

func (s *Service) GetSubscriptionFeedPage(ctx context.Context, viewerID string, pageNumber int) (models.Page[models.Post], error) {
	return s.paginate(ctx, "subscription", s.feed.SubscriptionFeed(viewerID), pageNumber)
}

func (s *Service) GetCommentsPage(ctx context.Context, postID int64, pageNumber int) (models.Page[models.Comment], error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return models.Page[models.Comment]{}, err
	}
	return pagination.Paginate[models.Comment](ctx, s.paginator, &commentSequence{store: s.store, postID: postID}, pageNumber)
}

func (s *Service) InvalidateGlobalFeedCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

// GetProfile - лента автора и признак подписки. viewerID == nil - анонимный зритель.
func (s *Service) GetProfile(ctx context.Context, authorID string, viewerID *string, pageNumber int) (*Profile, error) {
	page, err := s.GetAuthorFeedPage(ctx, authorID, pageNumber)
	if err != nil {
		return nil, err
	}
	status, err := s.graph.Status(ctx, viewerID, authorID)
	if err != nil {
		return nil, err
	}
	return &Profile{AuthorID: authorID, Posts: page, Following: status}, nil
}

func (s *Service) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	return s.store.GetPost(ctx, id)
}

func (s *Service) CreatePost(ctx context.Context, authorID string, input PostInput) (*models.Post, error) {
	if err := validateText(input.Text); err != nil {
		return nil, err
	}
	post := &models.Post{
		Text:     input.Text,
		AuthorID: authorID,
		GroupID:  input.GroupID,
		Image:    input.Image,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"post": post.ID, "author": authorID}).Debug("post created")
	return post, nil
}

// EditPost меняет текст, группу и картинку; автор и дата остаются прежними
func (s *Service) EditPost(ctx context.Context, editorID string, postID int64, input PostInput) (*models.Post, error) {
	if err := validateText(input.Text); err != nil {
		return nil, err
	}
	if _, err := s.ownPost(ctx, editorID, postID); err != nil {
		return nil, err
	}

	post := &models.Post{ID: postID, Text: input.Text, GroupID: input.GroupID, Image: input.Image}
	if err := s.store.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, userID string, postID int64) error {
	if _, err := s.ownPost(ctx, userID, postID); err != nil {
		return err
	}
	return s.store.DeletePost(ctx, postID)
}

func (s *Service) AddComment(ctx context.Context, authorID string, postID int64, text string) (*models.Comment, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	comment := &models.Comment{PostID: postID, AuthorID: authorID, Text: text}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Service) CreateGroup(ctx context.Context, group *models.Group) error {
	if strings.TrimSpace(group.Title) == "" || strings.TrimSpace(group.Slug) == "" {
		return fmt.Errorf("group title and slug are required: %w", ErrValidation)
	}
	return s.store.CreateGroup(ctx, group)
}

func (s *Service) DeleteGroup(ctx context.Context, slug string) error {
	group, err := s.store.GetGroupBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.store.DeleteGroup(ctx, group.ID)
}

func (s *Service) GroupsByIDs(ctx context.Context, ids []int64) ([]models.Group, error) {
	return s.store.GetGroupsByIDs(ctx, ids)
}

func (s *Service) ownPost(ctx context.Context, userID string, postID int64) (*models.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, fmt.Errorf("post %d belongs to another author: %w", postID, ErrForbidden)
	}
	return post, nil
}

func (s *Service) paginate(ctx context.Context, name string, seq pagination.Sequence[models.Post], pageNumber int) (models.Page[models.Post], error) {
	start := time.Now()
	defer func() {
		monitoring.FeedPageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	return pagination.Paginate[models.Post](ctx, s.paginator, seq, pageNumber)
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required: %w", ErrValidation)
	}
	return nil
}

type commentSequence struct {
	store  storage.Store
	postID int64
}

func (s *commentSequence) Count(ctx context.Context) (int, error) {
	return s.store.CountComments(ctx, s.postID)
}

func (s *commentSequence) Slice(ctx context.Context, offset, limit int) ([]models.Comment, error) {
	return s.store.ListComments(ctx, s.postID, offset, limit)
}
