package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const schema = `
	CREATE TABLE IF NOT EXISTS post_groups (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		slug VARCHAR(20) NOT NULL UNIQUE,
		description TEXT
	);
	CREATE TABLE IF NOT EXISTS posts (
		id BIGSERIAL PRIMARY KEY,
		text TEXT NOT NULL,
		author_id TEXT NOT NULL,
		group_id BIGINT REFERENCES post_groups(id) ON DELETE SET NULL,
		image TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS comments (
		id BIGSERIAL PRIMARY KEY,
		post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		PRIMARY KEY (follower_id, author_id),
		CHECK (follower_id <> author_id)
	);
	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);
	CREATE INDEX IF NOT EXISTS idx_posts_group ON posts(group_id);
	CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
`

const postColumns = `id, text, author_id, group_id, image, created_at`

var _ storage.Store = (*PostgresStorage)(nil)

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(dsn string) (*PostgresStorage, error) {
	ctx := context.Background()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	log.WithField("max_conns", cfg.MaxConns).Info("postgres storage ready")

	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO posts (text, author_id, group_id, image)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		post.Text, post.AuthorID, post.GroupID, post.Image).Scan(&post.ID, &post.CreatedAt)
	if isCode(err, foreignKeyViolation) {
		return fmt.Errorf("group %d: %w", *post.GroupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &p, nil
}

func (s *PostgresStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE posts SET text = $2, group_id = $3, image = $4
		WHERE id = $1
		RETURNING `+postColumns,
		post.ID, post.Text, post.GroupID, post.Image)
	updated, err := scanPost(row)
	if isCode(err, foreignKeyViolation) {
		return fmt.Errorf("group %d: %w", *post.GroupID, storage.ErrNotFound)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("post %d: %w", post.ID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	*post = updated
	return nil
}

func (s *PostgresStorage) DeletePost(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	where, args := postWhere(filter)

	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) ListPosts(ctx context.Context, filter storage.PostFilter, offset, limit int) ([]models.Post, error) {
	where, args := postWhere(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s FROM posts%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, postColumns, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PostgresStorage) CreateGroup(ctx context.Context, group *models.Group) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO post_groups (title, slug, description)
		VALUES ($1, $2, $3)
		RETURNING id`,
		group.Title, group.Slug, group.Description).Scan(&group.ID)
	if isCode(err, uniqueViolation) {
		return fmt.Errorf("group %q: %w", group.Slug, storage.ErrDuplicateSlug)
	}
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var g models.Group
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, slug, description
		FROM post_groups
		WHERE slug = $1`, slug).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("group %q: %w", slug, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &g, nil
}

func (s *PostgresStorage) GetGroupsByIDs(ctx context.Context, ids []int64) ([]models.Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, slug, description
		FROM post_groups
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *PostgresStorage) DeleteGroup(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM post_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO comments (post_id, author_id, text)
		SELECT id, $2, $3 FROM posts WHERE id = $1
		RETURNING id, created_at`,
		comment.PostID, comment.AuthorID, comment.Text).Scan(&comment.ID, &comment.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("post %d: %w", comment.PostID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CountComments(ctx context.Context, postID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) ListComments(ctx context.Context, postID int64, offset, limit int) ([]models.Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, post_id, author_id, text, created_at
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, postID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *PostgresStorage) InsertFollow(ctx context.Context, followerID, authorID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO follows (follower_id, author_id)
		VALUES ($1, $2)`, followerID, authorID)
	if isCode(err, uniqueViolation) {
		return storage.ErrDuplicateFollow
	}
	if err != nil {
		return fmt.Errorf("failed to insert follow: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteFollow(ctx context.Context, followerID, authorID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM follows
		WHERE follower_id = $1 AND author_id = $2`, followerID, authorID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("follow %s -> %s: %w", followerID, authorID, storage.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) FollowExists(ctx context.Context, followerID, authorID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND author_id = $2)`,
		followerID, authorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return exists, nil
}

func (s *PostgresStorage) FollowedAuthors(ctx context.Context, followerID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT author_id FROM follows
		WHERE follower_id = $1
		ORDER BY author_id`, followerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followed authors: %w", err)
	}

	authors, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list followed authors: %w", err)
	}
	if authors == nil {
		authors = []string{}
	}
	return authors, nil
}

func (s *PostgresStorage) CountFollows(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM follows`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count follows: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// postWhere строит WHERE для фильтра; аргументы нумеруются с $1
func postWhere(filter storage.PostFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.AuthorIDs != nil {
		args = append(args, filter.AuthorIDs)
		conds = append(conds, fmt.Sprintf("author_id = ANY($%d)", len(args)))
	}
	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		conds = append(conds, fmt.Sprintf("group_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func scanPost(row pgx.Row) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.Text, &p.AuthorID, &p.GroupID, &p.Image, &p.CreatedAt)
	return p, err
}
