package query

import (
	"context"
	"errors"

	"github.com/patrickariel/semicolon-web-sub000/internal/post"
)

// ErrBoundaryNotFound is returned by Resolve when the cursor entity does not
// exist or no longer satisfies the plan's filters.
var ErrBoundaryNotFound = errors.New("cursor entity does not satisfy the current filters")

// PostRow is a post with its computed sort key.
type PostRow struct {
	Post *post.Post
	Key  Key
}

// UserRow is a user with its computed sort key.
type UserRow struct {
	User *post.User
	Key  Key
}

// Executor evaluates plans against storage.
//
// Posts and Users return at most plan.Limit rows ordered by (K DESC, id ASC),
// restricted to rows admitted by plan.Boundary when set. Resolve computes
// the boundary for an entity id under the same plan, so both calls must use
// identical key expressions and plan.Now.
type Executor interface {
	ResolvePost(ctx context.Context, plan Plan, id string) (Boundary, error)
	Posts(ctx context.Context, plan Plan) ([]PostRow, error)
	ResolveUser(ctx context.Context, plan Plan, id string) (Boundary, error)
	Users(ctx context.Context, plan Plan) ([]UserRow, error)
}
