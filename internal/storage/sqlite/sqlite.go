package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ButyrinIA/yatube/internal/models"
	"github.com/ButyrinIA/yatube/internal/storage"
	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

const schema = `
	CREATE TABLE IF NOT EXISTS post_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT
	);
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		author_id TEXT NOT NULL,
		group_id INTEGER REFERENCES post_groups(id) ON DELETE SET NULL,
		image TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		PRIMARY KEY (follower_id, author_id),
		CHECK (follower_id <> author_id)
	);
	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
`

const postColumns = `id, text, author_id, group_id, image, created_at`

var _ storage.Store = (*SQLiteStorage)(nil)

// SQLiteStorage хранит даты как unix-наносекунды, чтобы сортировка была точной
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

func New(path string) (*SQLiteStorage, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Один писатель: SQLite не любит параллельные транзакции записи
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	log.WithField("path", path).Info("sqlite storage ready")

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

func (s *SQLiteStorage) CreatePost(ctx context.Context, post *models.Post) error {
	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (text, author_id, group_id, image, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		post.Text, post.AuthorID, post.GroupID, post.Image, createdAt.UnixNano())
	if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
		return fmt.Errorf("group %d: %w", *post.GroupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	post.ID = id
	post.CreatedAt = time.Unix(0, createdAt.UnixNano()).UTC()
	return nil
}

func (s *SQLiteStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET text = ?, group_id = ?, image = ?
		WHERE id = ?`,
		post.Text, post.GroupID, post.Image, post.ID)
	if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
		return fmt.Errorf("group %d: %w", *post.GroupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if err := requireAffected(res, fmt.Sprintf("post %d", post.ID)); err != nil {
		return err
	}

	updated, err := s.GetPost(ctx, post.ID)
	if err != nil {
		return err
	}
	*post = *updated
	return nil
}

func (s *SQLiteStorage) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("post %d", id))
}

func (s *SQLiteStorage) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	where, args := postWhere(filter)

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) ListPosts(ctx context.Context, filter storage.PostFilter, offset, limit int) ([]models.Post, error) {
	where, args := postWhere(filter)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, args...)
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

func (s *SQLiteStorage) CreateGroup(ctx context.Context, group *models.Group) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO post_groups (title, slug, description)
		VALUES (?, ?, ?)`,
		group.Title, group.Slug, group.Description)
	if isConstraint(err, sqlite3.ErrConstraintUnique) {
		return fmt.Errorf("group %q: %w", group.Slug, storage.ErrDuplicateSlug)
	}
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	group.ID = id
	return nil
}

func (s *SQLiteStorage) GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var g models.Group
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, slug, description
		FROM post_groups
		WHERE slug = ?`, slug).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %q: %w", slug, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &g, nil
}

func (s *SQLiteStorage) GetGroupsByIDs(ctx context.Context, ids []int64) ([]models.Group, error) {
	groups := []models.Group{}
	if len(ids) == 0 {
		return groups, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, slug, description
		FROM post_groups
		WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLiteStorage) DeleteGroup(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM post_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("group %d", id))
}

func (s *SQLiteStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (post_id, author_id, text, created_at)
		SELECT id, ?, ?, ? FROM posts WHERE id = ?`,
		comment.AuthorID, comment.Text, createdAt.UnixNano(), comment.PostID)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	if err := requireAffected(res, fmt.Sprintf("post %d", comment.PostID)); err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	comment.ID = id
	comment.CreatedAt = time.Unix(0, createdAt.UnixNano()).UTC()
	return nil
}

func (s *SQLiteStorage) CountComments(ctx context.Context, postID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE post_id = ?`, postID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) ListComments(ctx context.Context, postID int64, offset, limit int) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, author_id, text, created_at
		FROM comments
		WHERE post_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, postID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var (
			c         models.Comment
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(0, createdAt).UTC()
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *SQLiteStorage) InsertFollow(ctx context.Context, followerID, authorID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, author_id)
		VALUES (?, ?)`, followerID, authorID)
	if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) || isConstraint(err, sqlite3.ErrConstraintUnique) {
		return storage.ErrDuplicateFollow
	}
	if err != nil {
		return fmt.Errorf("failed to insert follow: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteFollow(ctx context.Context, followerID, authorID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM follows
		WHERE follower_id = ? AND author_id = ?`, followerID, authorID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("follow %s -> %s", followerID, authorID))
}

func (s *SQLiteStorage) FollowExists(ctx context.Context, followerID, authorID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = ? AND author_id = ?)`,
		followerID, authorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStorage) FollowedAuthors(ctx context.Context, followerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT author_id FROM follows
		WHERE follower_id = ?
		ORDER BY author_id`, followerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followed authors: %w", err)
	}
	defer rows.Close()

	authors := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		authors = append(authors, id)
	}
	return authors, rows.Err()
}

func (s *SQLiteStorage) CountFollows(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count follows: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func postWhere(filter storage.PostFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.AuthorIDs != nil {
		if len(filter.AuthorIDs) == 0 {
			conds = append(conds, "1 = 0")
		} else {
			conds = append(conds, "author_id IN ("+placeholders(len(filter.AuthorIDs))+")")
			for _, id := range filter.AuthorIDs {
				args = append(args, id)
			}
		}
	}
	if filter.GroupID != nil {
		conds = append(conds, "group_id = ?")
		args = append(args, *filter.GroupID)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return nil
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

func scanPost(row interface{ Scan(...any) error }) (models.Post, error) {
	var (
		p         models.Post
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Text, &p.AuthorID, &p.GroupID, &p.Image, &createdAt); err != nil {
		return p, err
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return p, nil
}
