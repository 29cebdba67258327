package engagement

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/patrickariel/semicolon-web-sub000/internal/tracing"
)

// PostgresAggregator computes engagement with one statement per batch.
type PostgresAggregator struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAggregator creates a new PostgresAggregator.
func NewPostgresAggregator(db *sql.DB, logger *slog.Logger) *PostgresAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAggregator{db: db, logger: logger}
}

const postEngagementQuery = `
	SELECT p.id,
		(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
		(SELECT COUNT(*) FROM posts r WHERE r.parent_id = p.id),
		COALESCE($2::uuid IS NOT NULL AND EXISTS(
			SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = $2::uuid), FALSE),
		COALESCE($2::uuid IS NOT NULL AND EXISTS(
			SELECT 1 FROM follows f WHERE f.followee_id = p.author_id AND f.follower_id = $2::uuid), FALSE)
	FROM posts p
	WHERE p.id = ANY($1::uuid[])`

const userEngagementQuery = `
	SELECT u.id,
		(SELECT COUNT(*) FROM follows f WHERE f.followee_id = u.id),
		(SELECT COUNT(*) FROM follows f WHERE f.follower_id = u.id),
		COALESCE($2::uuid IS NOT NULL AND EXISTS(
			SELECT 1 FROM follows f WHERE f.followee_id = u.id AND f.follower_id = $2::uuid), FALSE)
	FROM users u
	WHERE u.id = ANY($1::uuid[])`

// Posts returns engagement for each existing post in postIDs.
func (a *PostgresAggregator) Posts(ctx context.Context, viewerID string, postIDs []string) (_ map[string]PostEngagement, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "likes", tracing.DBOperationQuery)
	defer func() { end(err) }()

	ids := validIDs(postIDs)
	out := make(map[string]PostEngagement, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := a.db.QueryContext(ctx, postEngagementQuery, pq.Array(ids), viewer(viewerID))
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to aggregate post engagement",
			slog.String("error", err.Error()),
			slog.Int("batch_size", len(ids)))
		return nil, fmt.Errorf("failed to aggregate post engagement: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			e  PostEngagement
		)
		if err := rows.Scan(&id, &e.LikeCount, &e.ReplyCount, &e.Liked, &e.AuthorFollowed); err != nil {
			return nil, fmt.Errorf("failed to scan post engagement: %w", err)
		}
		out[id] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post engagement: %w", err)
	}
	return out, nil
}

// Users returns engagement for each existing user in userIDs.
func (a *PostgresAggregator) Users(ctx context.Context, viewerID string, userIDs []string) (_ map[string]UserEngagement, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)
	defer func() { end(err) }()

	ids := validIDs(userIDs)
	out := make(map[string]UserEngagement, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := a.db.QueryContext(ctx, userEngagementQuery, pq.Array(ids), viewer(viewerID))
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to aggregate user engagement",
			slog.String("error", err.Error()),
			slog.Int("batch_size", len(ids)))
		return nil, fmt.Errorf("failed to aggregate user engagement: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			e  UserEngagement
		)
		if err := rows.Scan(&id, &e.FollowerCount, &e.FollowingCount, &e.Followed); err != nil {
			return nil, fmt.Errorf("failed to scan user engagement: %w", err)
		}
		out[id] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user engagement: %w", err)
	}
	return out, nil
}

// validIDs drops ids that cannot be UUIDs; they cannot exist in storage.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// viewer maps an anonymous or malformed viewer id to SQL NULL.
func viewer(id string) sql.NullString {
	if _, err := uuid.Parse(id); err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id, Valid: true}
}
