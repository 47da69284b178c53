package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/monitoring"
	"github.com/ButyrinIA/yatube/internal/storage"
	log "github.com/sirupsen/logrus"
)

// FollowStore - та часть хранилища, что нужна графу подписок
type FollowStore interface {
	InsertFollow(ctx context.Context, followerID, authorID string) error
	DeleteFollow(ctx context.Context, followerID, authorID string) error
	FollowExists(ctx context.Context, followerID, authorID string) (bool, error)
	FollowedAuthors(ctx context.Context, followerID string) ([]string, error)
}

// Graph хранит направленные ребра подписок. Уникальность пары обеспечивает
// хранилище одной атомарной вставкой, без проверки перед созданием.
type Graph struct {
	store FollowStore
}

func New(store FollowStore) *Graph {
	return &Graph{store: store}
}

func (g *Graph) Follow(ctx context.Context, followerID, authorID string) (models.FollowResult, error) {
	logger := log.WithFields(log.Fields{"follower": followerID, "author": authorID})

	if followerID == authorID {
		monitoring.FollowOperations.WithLabelValues("follow", models.FollowRejectedSelf.String()).Inc()
		logger.Debug("self follow rejected")
		return models.FollowRejectedSelf, nil
	}

	err := g.store.InsertFollow(ctx, followerID, authorID)
	if errors.Is(err, storage.ErrDuplicateFollow) {
		monitoring.FollowOperations.WithLabelValues("follow", models.FollowAlreadyFollowing.String()).Inc()
		logger.Debug("already following")
		return models.FollowAlreadyFollowing, nil
	}
	if err != nil {
		monitoring.FollowOperations.WithLabelValues("follow", "error").Inc()
		return 0, fmt.Errorf("failed to follow: %w", err)
	}

	monitoring.FollowOperations.WithLabelValues("follow", models.FollowCreated.String()).Inc()
	logger.Debug("follow created")
	return models.FollowCreated, nil
}

// Unfollow удаляет ребро; отсутствующее ребро - storage.ErrNotFound
func (g *Graph) Unfollow(ctx context.Context, followerID, authorID string) error {
	if err := g.store.DeleteFollow(ctx, followerID, authorID); err != nil {
		monitoring.FollowOperations.WithLabelValues("unfollow", "error").Inc()
		return err
	}
	monitoring.FollowOperations.WithLabelValues("unfollow", "deleted").Inc()
	log.WithFields(log.Fields{"follower": followerID, "author": authorID}).Debug("follow deleted")
	return nil
}

func (g *Graph) IsFollowing(ctx context.Context, followerID, authorID string) (bool, error) {
	if followerID == authorID {
		return false, nil
	}
	return g.store.FollowExists(ctx, followerID, authorID)
}

func (g *Graph) FollowedAuthors(ctx context.Context, followerID string) ([]string, error) {
	return g.store.FollowedAuthors(ctx, followerID)
}

// Status - признак подписки для страницы профиля. Без зрителя - Anonymous.
func (g *Graph) Status(ctx context.Context, viewerID *string, authorID string) (models.FollowingStatus, error) {
	if viewerID == nil {
		return models.Anonymous{}, nil
	}
	following, err := g.IsFollowing(ctx, *viewerID, authorID)
	if err != nil {
		return nil, err
	}
	return models.Following{Value: following}, nil
}
