// Package post provides the social data model (posts, users, like and follow
// edges) and the stores that hold it.
//
// Counters are never stored: like, reply, follower and following counts are
// always derived from the edge sets when read.
package post

import (
	"errors"
	"time"
)

// Common errors for store operations.
var (
	ErrPostNotFound   = errors.New("post not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrParentNotFound = errors.New("parent post not found")
	ErrNotAuthor      = errors.New("only the author may modify a post")
	ErrSelfFollow     = errors.New("users cannot follow themselves")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrEmptyContent   = errors.New("post content is required")
)

// Post is a top-level post or a reply.
type Post struct {
	ID       string  `json:"id"`
	AuthorID string  `json:"author_id"`
	ParentID *string `json:"parent_id,omitempty"` // nil for top-level posts
	Content  string  `json:"content"`

	// Views is incremented by the single-post read path and never decreases.
	Views int64 `json:"views"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsReply reports whether the post replies to another post.
func (p *Post) IsReply() bool {
	return p.ParentID != nil
}

// User is an account that can author posts and follow other users.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`

	// Registered is false until the account finished onboarding.
	Registered bool `json:"registered"`

	CreatedAt time.Time `json:"created_at"`
}

// Like is the edge "UserID likes PostID".
type Like struct {
	UserID string
	PostID string
}

// Follow is the edge "FollowerID follows FolloweeID".
type Follow struct {
	FollowerID string
	FolloweeID string
}
