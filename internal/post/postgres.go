package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgreSQL error codes mapped to domain errors.
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
	pqCheckViolation      = "23514"
)

// PostgresStore implements Store on PostgreSQL via database/sql and lib/pq.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// CreateUser inserts a user.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, username, display_name, registered)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		RETURNING created_at`
	err := s.db.QueryRowContext(ctx, query, u.ID, u.Username, u.DisplayName, u.Registered).Scan(&u.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation && strings.Contains(pqConstraint(err), "username") {
			return ErrUsernameTaken
		}
		s.logger.ErrorContext(ctx, "failed to insert user",
			slog.String("error", err.Error()),
			slog.String("user_id", u.ID))
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}

	query := `
		SELECT id, COALESCE(username, ''), display_name, registered, created_at
		FROM users
		WHERE id = $1`
	var u User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Registered, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// CreatePost inserts a post or reply.
func (s *PostgresStore) CreatePost(ctx context.Context, p *Post) error {
	if strings.TrimSpace(p.Content) == "" {
		return ErrEmptyContent
	}
	if _, err := uuid.Parse(p.AuthorID); err != nil {
		return ErrUserNotFound
	}
	if p.ParentID != nil {
		if _, err := uuid.Parse(*p.ParentID); err != nil {
			return ErrParentNotFound
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	var createdAt sql.NullTime
	if !p.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: p.CreatedAt, Valid: true}
	}

	query := `
		INSERT INTO posts (id, author_id, parent_id, content, views, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		p.ID, p.AuthorID, nullableString(p.ParentID), p.Content, p.Views, createdAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			if strings.Contains(pqConstraint(err), "parent") {
				return ErrParentNotFound
			}
			return ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "failed to insert post",
			slog.String("error", err.Error()),
			slog.String("post_id", p.ID))
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// GetPost retrieves a post by ID.
func (s *PostgresStore) GetPost(ctx context.Context, id string) (*Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPostNotFound
	}

	query := `
		SELECT id, author_id, parent_id, content, views, created_at, updated_at
		FROM posts
		WHERE id = $1`
	var (
		p      Post
		parent sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.AuthorID, &parent, &p.Content, &p.Views, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if parent.Valid {
		p.ParentID = &parent.String
	}
	return &p, nil
}

// UpdateContent replaces the content of a post owned by authorID.
func (s *PostgresStore) UpdateContent(ctx context.Context, id, authorID, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrPostNotFound
	}

	query := `UPDATE posts SET content = $3, updated_at = NOW() WHERE id = $1 AND author_id::text = $2`
	result, err := s.db.ExecContext(ctx, query, id, authorID, content)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return s.ownedRowAffected(ctx, result, id)
}

// DeletePost deletes a post owned by authorID. Replies and likes are removed
// by ON DELETE CASCADE.
func (s *PostgresStore) DeletePost(ctx context.Context, id, authorID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrPostNotFound
	}

	query := `DELETE FROM posts WHERE id = $1 AND author_id::text = $2`
	result, err := s.db.ExecContext(ctx, query, id, authorID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete post",
			slog.String("error", err.Error()),
			slog.String("post_id", id))
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return s.ownedRowAffected(ctx, result, id)
}

// ownedRowAffected distinguishes a missing post from a post owned by someone
// else when an author-scoped statement touched no rows.
func (s *PostgresStore) ownedRowAffected(ctx context.Context, result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check post existence: %w", err)
	}
	if exists {
		return ErrNotAuthor
	}
	return ErrPostNotFound
}

// IncrementViews adds one view to a post.
func (s *PostgresStore) IncrementViews(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrPostNotFound
	}

	result, err := s.db.ExecContext(ctx, `UPDATE posts SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Like records a like edge.
func (s *PostgresStore) Like(ctx context.Context, userID, postID string) error {
	if _, err := uuid.Parse(postID); err != nil {
		return ErrPostNotFound
	}
	if _, err := uuid.Parse(userID); err != nil {
		return ErrUserNotFound
	}

	query := `INSERT INTO likes (user_id, post_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, userID, postID); err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			if strings.Contains(pqConstraint(err), "post") {
				return ErrPostNotFound
			}
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to insert like: %w", err)
	}
	return nil
}

// Unlike removes a like edge.
func (s *PostgresStore) Unlike(ctx context.Context, userID, postID string) error {
	if _, err := uuid.Parse(postID); err != nil {
		return ErrPostNotFound
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check post existence: %w", err)
	}
	if !exists {
		return ErrPostNotFound
	}

	query := `DELETE FROM likes WHERE user_id::text = $1 AND post_id = $2`
	if _, err := s.db.ExecContext(ctx, query, userID, postID); err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}

// Follow records a follow edge.
func (s *PostgresStore) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	if _, err := uuid.Parse(followerID); err != nil {
		return ErrUserNotFound
	}
	if _, err := uuid.Parse(followeeID); err != nil {
		return ErrUserNotFound
	}

	query := `INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, followerID, followeeID); err != nil {
		switch pqCode(err) {
		case pqForeignKeyViolation:
			return ErrUserNotFound
		case pqCheckViolation:
			return ErrSelfFollow
		}
		return fmt.Errorf("failed to insert follow: %w", err)
	}
	return nil
}

// Unfollow removes a follow edge.
func (s *PostgresStore) Unfollow(ctx context.Context, followerID, followeeID string) error {
	query := `DELETE FROM follows WHERE follower_id::text = $1 AND followee_id::text = $2`
	if _, err := s.db.ExecContext(ctx, query, followerID, followeeID); err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func pqConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
