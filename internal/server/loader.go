package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/graph-gophers/dataloader/v7"
)

type groupLoaderKey struct{}

type GroupLoader = dataloader.Loader[int64, *models.Group]

// newGroupLoader собирает все группы страницы в один запрос к хранилищу
func newGroupLoader(service BlogService) *GroupLoader {
	return dataloader.NewBatchedLoader(
		func(ctx context.Context, keys []int64) []*dataloader.Result[*models.Group] {
			results := make([]*dataloader.Result[*models.Group], len(keys))

			groups, err := service.GroupsByIDs(ctx, keys)
			if err != nil {
				for i := range results {
					results[i] = &dataloader.Result[*models.Group]{Error: err}
				}
				return results
			}

			byID := make(map[int64]*models.Group, len(groups))
			for i := range groups {
				byID[groups[i].ID] = &groups[i]
			}
			for i, key := range keys {
				// удаленная группа - не ошибка, пост просто остается без группы
				results[i] = &dataloader.Result[*models.Group]{Data: byID[key]}
			}
			return results
		},
	)
}

// loaderMiddleware дает каждому запросу свой загрузчик
func (s *Server) loaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), groupLoaderKey{}, newGroupLoader(s.service))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func groupLoaderFromContext(ctx context.Context) (*GroupLoader, error) {
	loader, ok := ctx.Value(groupLoaderKey{}).(*GroupLoader)
	if !ok {
		return nil, errors.New("groupLoader not found in context")
	}
	return loader, nil
}

type postView struct {
	models.Post
	Group *models.Group `json:"group,omitempty"`
}

type pageView[T any] struct {
	Items       []T  `json:"items"`
	Number      int  `json:"number"`
	NumPages    int  `json:"numPages"`
	Count       int  `json:"count"`
	StartIndex  int  `json:"startIndex"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

func newPageView[T, V any](page models.Page[T], items []V) pageView[V] {
	return pageView[V]{
		Items:       items,
		Number:      page.Number,
		NumPages:    page.NumPages,
		Count:       page.Count,
		StartIndex:  page.StartIndex(),
		HasNext:     page.HasNext(),
		HasPrevious: page.HasPrevious(),
	}
}

// decoratePosts подставляет группы к постам страницы
func decoratePosts(ctx context.Context, posts []models.Post) ([]postView, error) {
	loader, err := groupLoaderFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var ids []int64
	seen := make(map[int64]bool)
	for _, p := range posts {
		if p.GroupID != nil && !seen[*p.GroupID] {
			seen[*p.GroupID] = true
			ids = append(ids, *p.GroupID)
		}
	}

	groups := make(map[int64]*models.Group, len(ids))
	if len(ids) > 0 {
		loaded, errs := loader.LoadMany(ctx, ids)()
		for i, id := range ids {
			if len(errs) > i && errs[i] != nil {
				return nil, fmt.Errorf("failed to load group %d: %w", id, errs[i])
			}
			groups[id] = loaded[i]
		}
	}

	views := make([]postView, len(posts))
	for i, p := range posts {
		views[i] = postView{Post: p}
		if p.GroupID != nil {
			views[i].Group = groups[*p.GroupID]
		}
	}
	return views, nil
}
