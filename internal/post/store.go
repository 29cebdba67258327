package post

import "context"

// Store is the write path and single-entity lookup surface of the data model.
// Feed and search reads go through the query and engagement packages instead.
type Store interface {
	// CreateUser inserts a user, generating an ID when empty.
	CreateUser(ctx context.Context, u *User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*User, error)

	// CreatePost inserts a post, generating an ID when empty and setting
	// CreatedAt to now when zero. Replies require an existing parent.
	CreatePost(ctx context.Context, p *Post) error

	// GetPost retrieves a post by ID.
	GetPost(ctx context.Context, id string) (*Post, error)

	// UpdateContent replaces a post's content. Only the author may edit.
	UpdateContent(ctx context.Context, id, authorID, content string) error

	// DeletePost deletes a post and its replies. Only the author may delete.
	DeletePost(ctx context.Context, id, authorID string) error

	// IncrementViews adds one view to a post.
	IncrementViews(ctx context.Context, id string) error

	// Like records that userID likes postID. Liking twice is a no-op.
	Like(ctx context.Context, userID, postID string) error

	// Unlike removes the like edge. Unliking a post that isn't liked is a no-op.
	Unlike(ctx context.Context, userID, postID string) error

	// Follow records that followerID follows followeeID. Following twice is a no-op.
	Follow(ctx context.Context, followerID, followeeID string) error

	// Unfollow removes the follow edge if present.
	Unfollow(ctx context.Context, followerID, followeeID string) error
}
