package engagement

import (
	"context"

	"github.com/patrickariel/semicolon-web-sub000/internal/post"
)

// MemoryAggregator computes engagement from a post.MemoryStore.
type MemoryAggregator struct {
	store *post.MemoryStore
}

// NewMemoryAggregator creates an aggregator over store.
func NewMemoryAggregator(store *post.MemoryStore) *MemoryAggregator {
	return &MemoryAggregator{store: store}
}

// Posts returns engagement for each existing post in postIDs.
func (a *MemoryAggregator) Posts(_ context.Context, viewerID string, postIDs []string) (map[string]PostEngagement, error) {
	out := make(map[string]PostEngagement, len(postIDs))
	a.store.Read(func(v *post.View) {
		for _, id := range postIDs {
			p, ok := v.Post(id)
			if !ok {
				continue
			}
			out[id] = ForPost(v, viewerID, p)
		}
	})
	return out, nil
}

// Users returns engagement for each existing user in userIDs.
func (a *MemoryAggregator) Users(_ context.Context, viewerID string, userIDs []string) (map[string]UserEngagement, error) {
	out := make(map[string]UserEngagement, len(userIDs))
	a.store.Read(func(v *post.View) {
		for _, id := range userIDs {
			if _, ok := v.User(id); !ok {
				continue
			}
			out[id] = ForUser(v, viewerID, id)
		}
	})
	return out, nil
}

// ForPost computes engagement for p from an already-held view.
func ForPost(v *post.View, viewerID string, p *post.Post) PostEngagement {
	e := PostEngagement{
		LikeCount:  v.LikeCount(p.ID),
		ReplyCount: v.ReplyCount(p.ID),
	}
	if viewerID != "" {
		e.Liked = v.Liked(viewerID, p.ID)
		e.AuthorFollowed = v.Follows(viewerID, p.AuthorID)
	}
	return e
}

// ForUser computes engagement for userID from an already-held view.
func ForUser(v *post.View, viewerID, userID string) UserEngagement {
	e := UserEngagement{
		FollowerCount:  v.FollowerCount(userID),
		FollowingCount: v.FollowingCount(userID),
	}
	if viewerID != "" {
		e.Followed = v.Follows(viewerID, userID)
	}
	return e
}
