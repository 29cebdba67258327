package feed

import (
	"context"

	"github.com/patrickariel/semicolon-web-sub000/internal/cursor"
	"github.com/patrickariel/semicolon-web-sub000/internal/query"
)

// Service serves the viewer feeds. Empty feeds are returned as an empty
// page without a next cursor, never as an error.
type Service struct {
	p *pager
}

// NewService creates a feed service.
func NewService(d Deps) *Service {
	return &Service{p: newPager(d)}
}

// Recommended returns the viewer's recommended feed: top-level posts by other
// users ordered by score.
func (s *Service) Recommended(ctx context.Context, viewerID, token string, maxResults int) (PostPage, error) {
	return s.p.posts(ctx, cursor.KindRecommended, query.PostRequest{
		Mode:     query.ModeRecommended,
		ViewerID: viewerID,
		PageSize: maxResults,
	}, token)
}

// Following returns posts by users the viewer follows, newest first.
func (s *Service) Following(ctx context.Context, viewerID, token string, maxResults int) (PostPage, error) {
	return s.p.posts(ctx, cursor.KindFollowing, query.PostRequest{
		Mode:     query.ModeFollowing,
		ViewerID: viewerID,
		PageSize: maxResults,
	}, token)
}

// Users returns registered users the viewer does not follow yet, ordered by
// follower count.
func (s *Service) Users(ctx context.Context, viewerID, token string, maxResults int) (UserPage, error) {
	return s.p.users(ctx, query.UserRequest{
		ViewerID: viewerID,
		PageSize: maxResults,
	}, token)
}
