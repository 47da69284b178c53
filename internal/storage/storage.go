package storage

import (
	"context"
	"errors"

	"github.com/ButyrinIA/yatube/internal/models"
)

var (
	// ErrNotFound - пост, группа или подписка не существует
	ErrNotFound = errors.New("not found")
	// ErrDuplicateFollow - пара (follower, author) уже есть
	ErrDuplicateFollow = errors.New("follow already exists")
	// ErrDuplicateSlug - группа с таким slug уже есть
	ErrDuplicateSlug = errors.New("group slug already exists")
)

// PostFilter сужает выборку постов. AuthorIDs == nil - любые авторы,
// пустой не-nil срез - ни одного.
type PostFilter struct {
	AuthorIDs []string
	GroupID   *int64
}

// Store - хранилище сущностей. Списки постов и комментариев всегда
// упорядочены по дате создания по убыванию, затем по id по убыванию.
type Store interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id int64) error
	CountPosts(ctx context.Context, filter PostFilter) (int, error)
	ListPosts(ctx context.Context, filter PostFilter, offset, limit int) ([]models.Post, error)

	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error)
	GetGroupsByIDs(ctx context.Context, ids []int64) ([]models.Group, error)
	DeleteGroup(ctx context.Context, id int64) error

	CreateComment(ctx context.Context, comment *models.Comment) error
	CountComments(ctx context.Context, postID int64) (int, error)
	ListComments(ctx context.Context, postID int64, offset, limit int) ([]models.Comment, error)

	InsertFollow(ctx context.Context, followerID, authorID string) error
	DeleteFollow(ctx context.Context, followerID, authorID string) error
	FollowExists(ctx context.Context, followerID, authorID string) (bool, error)
	FollowedAuthors(ctx context.Context, followerID string) ([]string, error)
	CountFollows(ctx context.Context) (int, error)

	Close() error
}
