// Package engagement derives per-item engagement counts and viewer-relative
// flags for a batch of posts or users.
package engagement

import "context"

// PostEngagement holds derived counts and viewer flags for a post.
type PostEngagement struct {
	LikeCount  int64
	ReplyCount int64

	// Viewer-relative; always false for anonymous viewers.
	Liked          bool
	AuthorFollowed bool
}

// UserEngagement holds derived counts and viewer flags for a user.
type UserEngagement struct {
	FollowerCount  int64
	FollowingCount int64

	// Followed reports whether the viewer follows this user.
	Followed bool
}

// Aggregator computes engagement for a batch of ids in a single pass.
// An empty viewerID means the request is anonymous. Ids that do not exist
// are absent from the result map.
type Aggregator interface {
	Posts(ctx context.Context, viewerID string, postIDs []string) (map[string]PostEngagement, error)
	Users(ctx context.Context, viewerID string, userIDs []string) (map[string]UserEngagement, error)
}
