package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickariel/semicolon-web-sub000/internal/cursor"
	"github.com/patrickariel/semicolon-web-sub000/internal/query"
	"github.com/patrickariel/semicolon-web-sub000/internal/search"
)

// SortBy selects the search ordering.
type SortBy string

const (
	SortRecency   SortBy = "recency"
	SortRelevancy SortBy = "relevancy"
)

// ErrInvalidSort is returned for an unknown SortBy value.
var ErrInvalidSort = fmt.Errorf("%w: sortBy must be %q or %q", query.ErrInvalidFilter, SortRecency, SortRelevancy)

// SearchRequest holds post search parameters. Zero values disable a filter.
type SearchRequest struct {
	Query      string
	Since      *time.Time // inclusive
	Until      *time.Time // exclusive
	From       string     // author user id
	To         string     // author id of the replied-to post
	MinLikes   int64
	MinReplies int64
	SortBy     SortBy
	Cursor     string
	MaxResults int
}

// SearchService serves post search. Unlike the feeds, a search that matches
// nothing returns ErrNotFound.
type SearchService struct {
	p *pager
}

// NewSearchService creates a search service.
func NewSearchService(d Deps) *SearchService {
	return &SearchService{p: newPager(d)}
}

// Search returns one page of posts matching req. viewerID may be empty.
func (s *SearchService) Search(ctx context.Context, viewerID string, req SearchRequest) (PostPage, error) {
	var (
		kind    cursor.Kind
		sortKey query.SortKey
	)
	switch req.SortBy {
	case "", SortRecency:
		kind, sortKey = cursor.KindSearchRecency, query.SortCreatedAt
	case SortRelevancy:
		kind, sortKey = cursor.KindSearchRelevancy, query.SortRelevance
	default:
		return PostPage{}, ErrInvalidSort
	}

	page, err := s.p.posts(ctx, kind, query.PostRequest{
		Mode:     query.ModeSearch,
		ViewerID: viewerID,
		Sort:     sortKey,
		Filters: query.Filters{
			Keywords:        search.QueryTokens(req.Query),
			AuthorID:        req.From,
			ReplyToAuthorID: req.To,
			Since:           req.Since,
			Until:           req.Until,
			MinLikes:        req.MinLikes,
			MinReplies:      req.MinReplies,
		},
		PageSize: req.MaxResults,
	}, req.Cursor)
	if err != nil {
		return PostPage{}, err
	}
	if len(page.Items) == 0 {
		s.p.Metrics.IncSearchMiss()
		return PostPage{}, ErrNotFound
	}
	return page, nil
}
