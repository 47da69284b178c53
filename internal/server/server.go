package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ButyrinIA/yatube/internal/blog"
	"github.com/ButyrinIA/yatube/internal/config"
	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/monitoring"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// BlogService - то, что HTTP-слой вызывает у ядра
type BlogService interface {
	FollowUser(ctx context.Context, followerID, authorID string) (models.FollowResult, error)
	UnfollowUser(ctx context.Context, followerID, authorID string) error
	RenderGlobalFeedPage(ctx context.Context, pageNumber int, render blog.PageRenderer) ([]byte, error)
	GetAuthorFeedPage(ctx context.Context, authorID string, pageNumber int) (models.Page[models.Post], error)
	GetGroupFeedPage(ctx context.Context, slug string, pageNumber int) (*models.Group, models.Page[models.Post], error)
	GetSubscriptionFeedPage(ctx context.Context, viewerID string, pageNumber int) (models.Page[models.Post], error)
	GetCommentsPage(ctx context.Context, postID int64, pageNumber int) (models.Page[models.Comment], error)
	InvalidateGlobalFeedCache(ctx context.Context) error

	GetProfile(ctx context.Context, authorID string, viewerID *string, pageNumber int) (*blog.Profile, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	CreatePost(ctx context.Context, authorID string, input blog.PostInput) (*models.Post, error)
	EditPost(ctx context.Context, editorID string, postID int64, input blog.PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, userID string, postID int64) error
	AddComment(ctx context.Context, authorID string, postID int64, text string) (*models.Comment, error)
	CreateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, slug string) error
	GroupsByIDs(ctx context.Context, ids []int64) ([]models.Group, error)
}

type Server struct {
	cfg       *config.Config
	service   BlogService
	jwtSecret []byte
	handler   http.Handler
}

func New(cfg *config.Config, service BlogService) *Server {
	s := &Server{
		cfg:       cfg,
		service:   service,
		jwtSecret: []byte(cfg.Server.JWTSecret),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /posts", s.handleGlobalFeed)
	mux.HandleFunc("POST /posts", requireViewer(s.handleCreatePost))
	mux.HandleFunc("GET /posts/{id}", s.handleGetPost)
	mux.HandleFunc("PUT /posts/{id}", requireViewer(s.handleEditPost))
	mux.HandleFunc("DELETE /posts/{id}", requireViewer(s.handleDeletePost))
	mux.HandleFunc("GET /posts/{id}/comments", s.handleComments)
	mux.HandleFunc("POST /posts/{id}/comments", requireViewer(s.handleAddComment))

	mux.HandleFunc("POST /groups", requireViewer(s.requireAdmin(s.handleCreateGroup)))
	mux.HandleFunc("GET /groups/{slug}/posts", s.handleGroupFeed)
	mux.HandleFunc("DELETE /groups/{slug}", requireViewer(s.requireAdmin(s.handleDeleteGroup)))

	mux.HandleFunc("GET /authors/{id}/posts", s.handleProfile)
	mux.HandleFunc("POST /authors/{id}/follow", requireViewer(s.handleFollow))
	mux.HandleFunc("POST /authors/{id}/unfollow", requireViewer(s.handleUnfollow))
	mux.HandleFunc("GET /follow", requireViewer(s.handleSubscriptionFeed))

	mux.HandleFunc("POST /cache/invalidate", requireViewer(s.requireAdmin(s.handleInvalidateCache)))
	if s.cfg.Server.DevTokens {
		mux.HandleFunc("GET /token", s.handleToken)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	// метрики сразу над mux: Pattern появляется только у запроса, который видит mux
	var handler http.Handler = monitoring.NewPrometheusMiddleware(mux)
	handler = s.loaderMiddleware(handler)
	handler = s.authMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run слушает порт до отмены ctx, затем дает запросам завершиться
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestLogger(r *http.Request) *log.Entry {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return log.WithFields(log.Fields{"request_id": id, "method": r.Method, "path": r.URL.Path})
}
