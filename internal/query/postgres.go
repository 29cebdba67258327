package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/patrickariel/semicolon-web-sub000/internal/post"
	"github.com/patrickariel/semicolon-web-sub000/internal/tracing"
)

// Lateral joins shared by every post query; like and reply counts are
// always derived from the edge tables.
const (
	likeCountJoin  = "LATERAL (SELECT COUNT(*) AS n FROM likes l WHERE l.post_id = p.id) lc"
	replyCountJoin = "LATERAL (SELECT COUNT(*) AS n FROM posts r WHERE r.parent_id = p.id) rc"
	followersJoin  = "LATERAL (SELECT COUNT(*) AS n FROM follows f WHERE f.followee_id = u.id) fc"

	tsConfig = "'simple'"
)

var postColumns = []string{"id", "author_id", "parent_id", "content", "views", "created_at", "updated_at"}

var userColumns = []string{"id", "username", "display_name", "registered", "created_at"}

// PostgresExecutor evaluates plans as single SQL statements built with
// go-sqlbuilder. The candidate set is an inner SELECT exposing sort_key;
// the boundary, ordering and limit are applied by the outer SELECT.
type PostgresExecutor struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresExecutor creates a new PostgresExecutor.
func NewPostgresExecutor(db *sql.DB, logger *slog.Logger) *PostgresExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresExecutor{db: db, logger: logger}
}

// ResolvePost computes the boundary for post id under plan.
func (e *PostgresExecutor) ResolvePost(ctx context.Context, plan Plan, id string) (b Boundary, err error) {
	if _, perr := uuid.Parse(id); perr != nil {
		return Boundary{}, ErrBoundaryNotFound
	}

	inner, ok := postCandidates(plan)
	if !ok {
		return Boundary{}, ErrBoundaryNotFound
	}
	inner.Where(inner.Equal("p.id", id))
	inner.Limit(1)
	query, args := inner.Build()

	ctx, end := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { end(err) }()

	key, err := e.scanKey(e.db.QueryRowContext(ctx, query, args...), plan.Sort, len(postColumns))
	if errors.Is(err, sql.ErrNoRows) {
		return Boundary{}, ErrBoundaryNotFound
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to resolve post cursor",
			slog.String("error", err.Error()),
			slog.String("mode", string(plan.Mode)))
		return Boundary{}, fmt.Errorf("failed to resolve post cursor: %w", err)
	}
	return Boundary{Key: key, ID: id}, nil
}

// Posts returns up to plan.Limit matching posts from the boundary on.
func (e *PostgresExecutor) Posts(ctx context.Context, plan Plan) (out []PostRow, err error) {
	inner, ok := postCandidates(plan)
	if !ok {
		return nil, nil
	}
	query, args := page(inner, plan, postColumns)

	ctx, end := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { end(err) }()

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to query posts",
			slog.String("error", err.Error()),
			slog.String("mode", string(plan.Mode)))
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	out = make([]PostRow, 0, plan.Limit)
	for rows.Next() {
		var (
			p      post.Post
			parent sql.NullString
		)
		key, err := scanSortKey(rows, plan.Sort,
			&p.ID, &p.AuthorID, &parent, &p.Content, &p.Views, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		if parent.Valid {
			p.ParentID = &parent.String
		}
		out = append(out, PostRow{Post: &p, Key: key})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return out, nil
}

// ResolveUser computes the boundary for user id under plan.
func (e *PostgresExecutor) ResolveUser(ctx context.Context, plan Plan, id string) (b Boundary, err error) {
	if _, perr := uuid.Parse(id); perr != nil {
		return Boundary{}, ErrBoundaryNotFound
	}

	inner := userCandidates(plan)
	inner.Where(inner.Equal("u.id", id))
	inner.Limit(1)
	query, args := inner.Build()

	ctx, end := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { end(err) }()

	key, err := e.scanKey(e.db.QueryRowContext(ctx, query, args...), plan.Sort, len(userColumns))
	if errors.Is(err, sql.ErrNoRows) {
		return Boundary{}, ErrBoundaryNotFound
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to resolve user cursor",
			slog.String("error", err.Error()))
		return Boundary{}, fmt.Errorf("failed to resolve user cursor: %w", err)
	}
	return Boundary{Key: key, ID: id}, nil
}

// Users returns up to plan.Limit matching users from the boundary on.
func (e *PostgresExecutor) Users(ctx context.Context, plan Plan) (out []UserRow, err error) {
	query, args := page(userCandidates(plan), plan, userColumns)

	ctx, end := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { end(err) }()

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to query users",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	out = make([]UserRow, 0, plan.Limit)
	for rows.Next() {
		var u post.User
		key, err := scanSortKey(rows, plan.Sort,
			&u.ID, &u.Username, &u.DisplayName, &u.Registered, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, UserRow{User: &u, Key: key})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return out, nil
}

// scanKey reads only the sort_key of a candidate row, discarding the
// leading entity columns.
func (e *PostgresExecutor) scanKey(row *sql.Row, sortKey SortKey, skip int) (Key, error) {
	discard := make([]any, skip)
	for i := range discard {
		discard[i] = new(any)
	}
	return scanSortKey(row, sortKey, discard...)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSortKey scans dest followed by sort_key, typed according to sortKey.
func scanSortKey(s scanner, sortKey SortKey, dest ...any) (Key, error) {
	if sortKey == SortCreatedAt {
		var t time.Time
		if err := s.Scan(append(dest, &t)...); err != nil {
			return Key{}, err
		}
		return TimeKey(t), nil
	}
	var f float64
	if err := s.Scan(append(dest, &f)...); err != nil {
		return Key{}, err
	}
	return NumberKey(f), nil
}

// page wraps inner as the candidates relation and applies the keyset
// boundary, total order and limit.
func page(inner *sqlbuilder.SelectBuilder, plan Plan, columns []string) (string, []any) {
	outer := sqlbuilder.PostgreSQL.NewSelectBuilder()
	outer.Select(slices.Concat(columns, []string{"sort_key"})...)
	outer.From(outer.BuilderAs(inner, "candidates"))

	if b := plan.Boundary; b != nil {
		outer.Where(outer.Or(
			outer.LessThan("sort_key", b.Key.Value()),
			outer.And(
				outer.Equal("sort_key", b.Key.Value()),
				outer.GreaterEqualThan("id", b.ID),
			),
		))
	}

	outer.OrderBy("sort_key DESC", "id ASC")
	outer.Limit(plan.Limit)
	return outer.Build()
}

// postCandidates builds the filtered candidate SELECT for a post plan.
// It returns false when a filter can never match (for example an author
// filter that is not a valid id), so no statement needs to be issued.
func postCandidates(plan Plan) (*sqlbuilder.SelectBuilder, bool) {
	f := plan.Filters
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()

	cols := make([]string, 0, len(postColumns)+1)
	for _, c := range postColumns {
		cols = append(cols, "p."+c)
	}
	cols = append(cols, postSortKey(sb, plan)+" AS sort_key")
	sb.Select(cols...)

	sb.From("posts p")
	sb.JoinWithOption(sqlbuilder.LeftJoin, likeCountJoin, "TRUE")
	sb.JoinWithOption(sqlbuilder.LeftJoin, replyCountJoin, "TRUE")

	if f.TopLevelOnly {
		sb.Where(sb.IsNull("p.parent_id"))
	}
	if f.ExcludeAuthorID != "" && isUUID(f.ExcludeAuthorID) {
		sb.Where(sb.NotEqual("p.author_id", f.ExcludeAuthorID))
	}
	if f.AuthorID != "" {
		if !isUUID(f.AuthorID) {
			return nil, false
		}
		sb.Where(sb.Equal("p.author_id", f.AuthorID))
	}
	if f.ReplyToAuthorID != "" {
		if !isUUID(f.ReplyToAuthorID) {
			return nil, false
		}
		sb.Where(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM posts pp WHERE pp.id = p.parent_id AND pp.author_id = %s)",
			sb.Var(f.ReplyToAuthorID)))
	}
	if f.Since != nil {
		sb.Where(sb.GreaterEqualThan("p.created_at", *f.Since))
	}
	if f.Until != nil {
		sb.Where(sb.LessThan("p.created_at", *f.Until))
	}
	if f.MinLikes > 0 {
		sb.Where(sb.GreaterEqualThan("lc.n", f.MinLikes))
	}
	if f.MinReplies > 0 {
		sb.Where(sb.GreaterEqualThan("rc.n", f.MinReplies))
	}
	if f.FollowedBy != "" {
		if !isUUID(f.FollowedBy) {
			return nil, false
		}
		sb.Where(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM follows fw WHERE fw.follower_id = %s AND fw.followee_id = p.author_id)",
			sb.Var(f.FollowedBy)))
	}
	if len(f.Keywords) > 0 {
		sb.Where(fmt.Sprintf("to_tsvector(%s, p.content) @@ plainto_tsquery(%s, %s)",
			tsConfig, tsConfig, sb.Var(strings.Join(f.Keywords, " "))))
	}
	return sb, true
}

// postSortKey returns the SQL expression for K under plan. Every time
// dependency goes through plan.Now so that Resolve and Posts agree.
func postSortKey(sb *sqlbuilder.SelectBuilder, plan Plan) string {
	switch plan.Sort {
	case SortScore:
		return fmt.Sprintf(
			"((lc.n::float8 * p.views::float8) / power("+
				"greatest(extract(epoch FROM (%s::timestamptz - p.created_at))::float8 / 3600.0, 0::float8)"+
				" + %s::float8, %s::float8))",
			sb.Var(plan.Now), sb.Var(plan.Decay.HourOffset), sb.Var(plan.Decay.Gravity))
	case SortRelevance:
		if len(plan.Filters.Keywords) == 0 {
			return "0::float8"
		}
		return fmt.Sprintf("ts_rank(to_tsvector(%s, p.content), plainto_tsquery(%s, %s))::float8",
			tsConfig, tsConfig, sb.Var(strings.Join(plan.Filters.Keywords, " ")))
	default:
		return "p.created_at"
	}
}

// userCandidates builds the filtered candidate SELECT for a user plan.
func userCandidates(plan Plan) *sqlbuilder.SelectBuilder {
	f := plan.UserFilters
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("u.id", "COALESCE(u.username, '') AS username", "u.display_name", "u.registered", "u.created_at",
		"fc.n::float8 AS sort_key")
	sb.From("users u")
	sb.JoinWithOption(sqlbuilder.LeftJoin, followersJoin, "TRUE")

	if f.RegisteredOnly {
		sb.Where("u.registered")
	}
	if f.ExcludeUserID != "" && isUUID(f.ExcludeUserID) {
		sb.Where(sb.NotEqual("u.id", f.ExcludeUserID))
	}
	if f.ExcludeFollowedBy != "" && isUUID(f.ExcludeFollowedBy) {
		sb.Where(fmt.Sprintf(
			"NOT EXISTS (SELECT 1 FROM follows fw WHERE fw.follower_id = %s AND fw.followee_id = u.id)",
			sb.Var(f.ExcludeFollowedBy)))
	}
	return sb
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
