package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ButyrinIA/yatube/internal/blog"
	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/pagination"
	"github.com/ButyrinIA/yatube/internal/storage"
)

type profileView struct {
	AuthorID  string             `json:"authorId"`
	Following *bool              `json:"following"`
	Posts     pageView[postView] `json:"posts"`
}

type groupFeedView struct {
	Group *models.Group      `json:"group"`
	Posts pageView[postView] `json:"posts"`
}

// handleGlobalFeed отдает закешированный ответ как есть, вместе с группами
func (s *Server) handleGlobalFeed(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.RenderGlobalFeedPage(r.Context(), pageParam(r), renderPostsPage)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleSubscriptionFeed(w http.ResponseWriter, r *http.Request, viewerID string) {
	page, err := s.service.GetSubscriptionFeedPage(r.Context(), viewerID, pageParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writePostsPage(w, r, page)
}

func (s *Server) handleGroupFeed(w http.ResponseWriter, r *http.Request) {
	group, page, err := s.service.GetGroupFeedPage(r.Context(), r.PathValue("slug"), pageParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	posts, err := decoratePosts(r.Context(), page.Items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupFeedView{Group: group, Posts: newPageView(page, posts)})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var viewer *string
	if id, ok := viewerFromContext(r.Context()); ok {
		viewer = &id
	}

	profile, err := s.service.GetProfile(r.Context(), r.PathValue("id"), viewer, pageParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	posts, err := decoratePosts(r.Context(), profile.Posts.Items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	view := profileView{AuthorID: profile.AuthorID, Posts: newPageView(profile.Posts, posts)}
	switch status := profile.Following.(type) {
	case models.Following:
		view.Following = &status.Value
	case models.Anonymous:
		// анонимному зрителю признак не показываем
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request, viewerID string) {
	result, err := s.service.FollowUser(r.Context(), viewerID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.FollowResult{"result": result})
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request, viewerID string) {
	if err := s.service.UnfollowUser(r.Context(), viewerID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := postIDParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	post, err := s.service.GetPost(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views, err := decoratePosts(r.Context(), []models.Post{*post})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views[0])
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, viewerID string) {
	var input blog.PostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	post, err := s.service.CreatePost(r.Context(), viewerID, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request, viewerID string) {
	id, err := postIDParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	var input blog.PostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	post, err := s.service.EditPost(r.Context(), viewerID, id, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, viewerID string) {
	id, err := postIDParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.service.DeletePost(r.Context(), viewerID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	id, err := postIDParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	page, err := s.service.GetCommentsPage(r.Context(), id, pageParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageView(page, page.Items))
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, viewerID string) {
	id, err := postIDParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	comment, err := s.service.AddComment(r.Context(), viewerID, id, body.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, viewerID string) {
	var group models.Group
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	group.ID = 0
	if err := s.service.CreateGroup(r.Context(), &group); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request, viewerID string) {
	if err := s.service.DeleteGroup(r.Context(), r.PathValue("slug")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request, viewerID string) {
	if err := s.service.InvalidateGlobalFeedCache(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	requestLogger(r).WithField("viewer", viewerID).Info("global feed cache invalidated")
	w.WriteHeader(http.StatusNoContent)
}

// handleToken выдает токен для отладки; учетные записи живут вне сервиса
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}
	token, err := generateToken(s.jwtSecret, userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func renderPostsPage(ctx context.Context, page models.Page[models.Post]) ([]byte, error) {
	posts, err := decoratePosts(ctx, page.Items)
	if err != nil {
		return nil, err
	}
	return json.Marshal(newPageView(page, posts))
}

func (s *Server) writePostsPage(w http.ResponseWriter, r *http.Request, page models.Page[models.Post]) {
	posts, err := decoratePosts(r.Context(), page.Items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageView(page, posts))
}

func pageParam(r *http.Request) int {
	return pagination.ParsePageNumber(r.URL.Query().Get("page"))
}

func postIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid post id %q", r.PathValue("id"))
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, blog.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err)
	case errors.Is(err, blog.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrDuplicateSlug):
		writeError(w, r, http.StatusConflict, err)
	default:
		requestLogger(r).WithError(err).Error("request failed")
		writeError(w, r, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	requestLogger(r).WithField("status", status).Debug(err.Error())
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
