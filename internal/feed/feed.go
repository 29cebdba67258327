// Package feed serves the recommended, following and recommended-users feeds
// and post search as cursor-paginated pages.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/patrickariel/semicolon-web-sub000/internal/cursor"
	"github.com/patrickariel/semicolon-web-sub000/internal/engagement"
	"github.com/patrickariel/semicolon-web-sub000/internal/query"
	"github.com/patrickariel/semicolon-web-sub000/internal/tracing"
)

// ErrNotFound is returned by Search when no post matches.
// Feeds never return it: an empty feed is a valid page.
var ErrNotFound = errors.New("no posts match the search")

// PostItem is a post as returned in a page.
type PostItem struct {
	ID         string
	CreatedAt  time.Time
	AuthorID   string
	Content    string
	ParentID   *string
	LikeCount  int64
	ReplyCount int64

	// Viewer-relative flags.
	Liked    bool
	Followed bool // viewer follows the author
}

// PostPage is one page of posts. NextCursor is empty on the last page.
type PostPage struct {
	Items      []PostItem
	NextCursor string
}

// UserItem is a user as returned in a page.
type UserItem struct {
	ID             string
	Username       string
	DisplayName    string
	FollowerCount  int64
	FollowingCount int64
	Followed       bool
}

// UserPage is one page of users. NextCursor is empty on the last page.
type UserPage struct {
	Items      []UserItem
	NextCursor string
}

// Deps are the collaborators shared by Service and SearchService.
type Deps struct {
	Planner    *query.Planner
	Executor   query.Executor
	Aggregator engagement.Aggregator
	Codec      *cursor.Codec
	Metrics    *Metrics
	Logger     *slog.Logger
}

// pager runs the plan, resolve, execute, trim, aggregate, encode pipeline.
type pager struct {
	Deps
}

func newPager(d Deps) *pager {
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &pager{Deps: d}
}

func (p *pager) posts(ctx context.Context, kind cursor.Kind, req query.PostRequest, token string) (_ PostPage, err error) {
	start := time.Now()
	ctx, end := tracing.StartSpan(ctx, "feed."+string(kind))
	defer func() { end(err) }()

	plan, err := p.Planner.PostPlan(req)
	if err != nil {
		return PostPage{}, err
	}
	if token != "" {
		id, err := p.Codec.Decode(kind, token)
		if err != nil {
			p.Metrics.IncInvalidCursor(string(kind))
			return PostPage{}, err
		}
		b, err := p.Executor.ResolvePost(ctx, plan, id)
		if errors.Is(err, query.ErrBoundaryNotFound) {
			p.Metrics.IncInvalidCursor(string(kind))
			return PostPage{}, fmt.Errorf("%w: %v", cursor.ErrInvalidCursor, err)
		}
		if err != nil {
			return PostPage{}, err
		}
		plan.CursorID = id
		plan = plan.WithBoundary(b)
	}

	rows, err := p.Executor.Posts(ctx, plan)
	if err != nil {
		p.Logger.ErrorContext(ctx, "failed to fetch posts",
			slog.String("mode", string(kind)),
			slog.String("error", err.Error()))
		return PostPage{}, err
	}
	rows, nextID := query.Trim(rows, plan.PageSize, func(r query.PostRow) string { return r.Post.ID })

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.Post.ID
	}
	eng, err := p.Aggregator.Posts(ctx, req.ViewerID, ids)
	if err != nil {
		p.Logger.ErrorContext(ctx, "failed to aggregate post engagement",
			slog.String("mode", string(kind)),
			slog.String("error", err.Error()))
		return PostPage{}, err
	}

	page := PostPage{Items: make([]PostItem, 0, len(rows))}
	for _, r := range rows {
		e := eng[r.Post.ID]
		page.Items = append(page.Items, PostItem{
			ID:         r.Post.ID,
			CreatedAt:  r.Post.CreatedAt,
			AuthorID:   r.Post.AuthorID,
			Content:    r.Post.Content,
			ParentID:   r.Post.ParentID,
			LikeCount:  e.LikeCount,
			ReplyCount: e.ReplyCount,
			Liked:      e.Liked,
			Followed:   e.AuthorFollowed,
		})
	}
	if nextID != "" {
		if page.NextCursor, err = p.Codec.Encode(kind, nextID); err != nil {
			return PostPage{}, fmt.Errorf("failed to encode cursor: %w", err)
		}
	}

	tracing.SetAttributes(ctx,
		attribute.Int("feed.items", len(page.Items)),
		attribute.Bool("feed.has_next", page.NextCursor != ""))
	p.Metrics.ObservePage(string(kind), len(page.Items), time.Since(start).Seconds())
	return page, nil
}

func (p *pager) users(ctx context.Context, req query.UserRequest, token string) (_ UserPage, err error) {
	const kind = cursor.KindUsers
	start := time.Now()
	ctx, end := tracing.StartSpan(ctx, "feed."+string(kind))
	defer func() { end(err) }()

	plan, err := p.Planner.UserPlan(req)
	if err != nil {
		return UserPage{}, err
	}
	if token != "" {
		id, err := p.Codec.Decode(kind, token)
		if err != nil {
			p.Metrics.IncInvalidCursor(string(kind))
			return UserPage{}, err
		}
		b, err := p.Executor.ResolveUser(ctx, plan, id)
		if errors.Is(err, query.ErrBoundaryNotFound) {
			p.Metrics.IncInvalidCursor(string(kind))
			return UserPage{}, fmt.Errorf("%w: %v", cursor.ErrInvalidCursor, err)
		}
		if err != nil {
			return UserPage{}, err
		}
		plan.CursorID = id
		plan = plan.WithBoundary(b)
	}

	rows, err := p.Executor.Users(ctx, plan)
	if err != nil {
		p.Logger.ErrorContext(ctx, "failed to fetch users",
			slog.String("error", err.Error()))
		return UserPage{}, err
	}
	rows, nextID := query.Trim(rows, plan.PageSize, func(r query.UserRow) string { return r.User.ID })

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.User.ID
	}
	eng, err := p.Aggregator.Users(ctx, req.ViewerID, ids)
	if err != nil {
		p.Logger.ErrorContext(ctx, "failed to aggregate user engagement",
			slog.String("error", err.Error()))
		return UserPage{}, err
	}

	page := UserPage{Items: make([]UserItem, 0, len(rows))}
	for _, r := range rows {
		e := eng[r.User.ID]
		page.Items = append(page.Items, UserItem{
			ID:             r.User.ID,
			Username:       r.User.Username,
			DisplayName:    r.User.DisplayName,
			FollowerCount:  e.FollowerCount,
			FollowingCount: e.FollowingCount,
			Followed:       e.Followed,
		})
	}
	if nextID != "" {
		if page.NextCursor, err = p.Codec.Encode(kind, nextID); err != nil {
			return UserPage{}, fmt.Errorf("failed to encode cursor: %w", err)
		}
	}

	p.Metrics.ObservePage(string(kind), len(page.Items), time.Since(start).Seconds())
	return page, nil
}
