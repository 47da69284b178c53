package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/storage"
)

var _ storage.Store = (*MemoryStorage)(nil)

type MemoryStorage struct {
	posts    map[int64]*models.Post
	groups   map[int64]*models.Group
	comments map[int64][]*models.Comment
	follows  map[models.Follow]struct{}

	lastPostID    int64
	lastGroupID   int64
	lastCommentID int64

	now func() time.Time
	mu  sync.RWMutex
}

func New() *MemoryStorage {
	return NewWithClock(time.Now)
}

// NewWithClock создает хранилище, которое проставляет дату новым постам и комментариям через now()
func NewWithClock(now func() time.Time) *MemoryStorage {
	return &MemoryStorage{
		posts:    make(map[int64]*models.Post),
		groups:   make(map[int64]*models.Group),
		comments: make(map[int64][]*models.Comment),
		follows:  make(map[models.Follow]struct{}),
		now:      now,
	}
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.GroupID != nil {
		if _, ok := s.groups[*post.GroupID]; !ok {
			return fmt.Errorf("group %d: %w", *post.GroupID, storage.ErrNotFound)
		}
	}

	s.lastPostID++
	post.ID = s.lastPostID
	post.CreatedAt = s.now()

	stored := *post
	stored.GroupID = cloneID(post.GroupID)
	s.posts[post.ID] = &stored
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists {
		return nil, fmt.Errorf("post %d: %w", id, storage.ErrNotFound)
	}

	result := *post
	result.GroupID = cloneID(post.GroupID)
	return &result, nil
}

func (s *MemoryStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.posts[post.ID]
	if !exists {
		return fmt.Errorf("post %d: %w", post.ID, storage.ErrNotFound)
	}
	if post.GroupID != nil {
		if _, ok := s.groups[*post.GroupID]; !ok {
			return fmt.Errorf("group %d: %w", *post.GroupID, storage.ErrNotFound)
		}
	}

	// Автор и дата публикации не меняются
	stored.Text = post.Text
	stored.GroupID = cloneID(post.GroupID)
	stored.Image = post.Image
	*post = *stored
	post.GroupID = cloneID(stored.GroupID)
	return nil
}

func (s *MemoryStorage) DeletePost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[id]; !exists {
		return fmt.Errorf("post %d: %w", id, storage.ErrNotFound)
	}
	delete(s.posts, id)
	delete(s.comments, id)
	return nil
}

func (s *MemoryStorage) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filterPosts(filter)), nil
}

func (s *MemoryStorage) ListPosts(ctx context.Context, filter storage.PostFilter, offset, limit int) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := s.filterPosts(filter)
	slices.SortFunc(posts, func(a, b models.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDsDesc(a.ID, b.ID)
	})

	return window(posts, offset, limit), nil
}

func (s *MemoryStorage) filterPosts(filter storage.PostFilter) []models.Post {
	var authors map[string]struct{}
	if filter.AuthorIDs != nil {
		authors = make(map[string]struct{}, len(filter.AuthorIDs))
		for _, id := range filter.AuthorIDs {
			authors[id] = struct{}{}
		}
	}

	var posts []models.Post
	for _, post := range s.posts {
		if authors != nil {
			if _, ok := authors[post.AuthorID]; !ok {
				continue
			}
		}
		if filter.GroupID != nil && (post.GroupID == nil || *post.GroupID != *filter.GroupID) {
			continue
		}
		p := *post
		p.GroupID = cloneID(post.GroupID)
		posts = append(posts, p)
	}
	return posts
}

func (s *MemoryStorage) CreateGroup(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if g.Slug == group.Slug {
			return fmt.Errorf("group %q: %w", group.Slug, storage.ErrDuplicateSlug)
		}
	}

	s.lastGroupID++
	group.ID = s.lastGroupID
	stored := *group
	s.groups[group.ID] = &stored
	return nil
}

func (s *MemoryStorage) GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.groups {
		if g.Slug == slug {
			result := *g
			return &result, nil
		}
	}
	return nil, fmt.Errorf("group %q: %w", slug, storage.ErrNotFound)
}

func (s *MemoryStorage) GetGroupsByIDs(ctx context.Context, ids []int64) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]models.Group, 0, len(ids))
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			groups = append(groups, *g)
		}
	}
	return groups, nil
}

func (s *MemoryStorage) DeleteGroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[id]; !exists {
		return fmt.Errorf("group %d: %w", id, storage.ErrNotFound)
	}
	delete(s.groups, id)

	// Посты остаются, у них только обнуляется группа
	for _, post := range s.posts {
		if post.GroupID != nil && *post.GroupID == id {
			post.GroupID = nil
		}
	}
	return nil
}

func (s *MemoryStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[comment.PostID]; !exists {
		return fmt.Errorf("post %d: %w", comment.PostID, storage.ErrNotFound)
	}

	s.lastCommentID++
	comment.ID = s.lastCommentID
	comment.CreatedAt = s.now()

	stored := *comment
	s.comments[comment.PostID] = append(s.comments[comment.PostID], &stored)
	return nil
}

func (s *MemoryStorage) CountComments(ctx context.Context, postID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.comments[postID]), nil
}

func (s *MemoryStorage) ListComments(ctx context.Context, postID int64, offset, limit int) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := make([]models.Comment, 0, len(s.comments[postID]))
	for _, c := range s.comments[postID] {
		comments = append(comments, *c)
	}
	slices.SortFunc(comments, func(a, b models.Comment) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDsDesc(a.ID, b.ID)
	})

	return window(comments, offset, limit), nil
}

// InsertFollow проверяет и вставляет под одной блокировкой записи,
// это аналог уникального ограничения (follower, author)
func (s *MemoryStorage) InsertFollow(ctx context.Context, followerID, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.Follow{FollowerID: followerID, AuthorID: authorID}
	if _, exists := s.follows[key]; exists {
		return storage.ErrDuplicateFollow
	}
	s.follows[key] = struct{}{}
	return nil
}

func (s *MemoryStorage) DeleteFollow(ctx context.Context, followerID, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.Follow{FollowerID: followerID, AuthorID: authorID}
	if _, exists := s.follows[key]; !exists {
		return fmt.Errorf("follow %s -> %s: %w", followerID, authorID, storage.ErrNotFound)
	}
	delete(s.follows, key)
	return nil
}

func (s *MemoryStorage) FollowExists(ctx context.Context, followerID, authorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.follows[models.Follow{FollowerID: followerID, AuthorID: authorID}]
	return exists, nil
}

func (s *MemoryStorage) FollowedAuthors(ctx context.Context, followerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authors := []string{}
	for f := range s.follows {
		if f.FollowerID == followerID {
			authors = append(authors, f.AuthorID)
		}
	}
	slices.Sort(authors)
	return authors, nil
}

func (s *MemoryStorage) CountFollows(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.follows), nil
}

// Close очищает хранилище
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.posts)
	clear(s.groups)
	clear(s.comments)
	clear(s.follows)
	return nil
}

func compareIDsDesc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
