package query

import (
	"context"
	"sort"

	"github.com/patrickariel/semicolon-web-sub000/internal/post"
	"github.com/patrickariel/semicolon-web-sub000/internal/ranking"
	"github.com/patrickariel/semicolon-web-sub000/internal/search"
)

// MemoryExecutor evaluates plans over a post.MemoryStore by scanning every
// candidate under a single read lock.
type MemoryExecutor struct {
	store *post.MemoryStore
}

// NewMemoryExecutor creates an executor over store.
func NewMemoryExecutor(store *post.MemoryStore) *MemoryExecutor {
	return &MemoryExecutor{store: store}
}

// ResolvePost computes the boundary for post id under plan.
func (e *MemoryExecutor) ResolvePost(_ context.Context, plan Plan, id string) (Boundary, error) {
	var (
		b  Boundary
		ok bool
	)
	e.store.Read(func(v *post.View) {
		p, found := v.Post(id)
		if !found {
			return
		}
		var k Key
		if k, ok = postKey(v, plan, p); ok {
			b = Boundary{Key: k, ID: p.ID}
		}
	})
	if !ok {
		return Boundary{}, ErrBoundaryNotFound
	}
	return b, nil
}

// Posts returns up to plan.Limit matching posts from the boundary on.
func (e *MemoryExecutor) Posts(_ context.Context, plan Plan) ([]PostRow, error) {
	var rows []PostRow
	e.store.Read(func(v *post.View) {
		for _, p := range v.Posts() {
			k, ok := postKey(v, plan, p)
			if !ok {
				continue
			}
			if plan.Boundary != nil && !plan.Boundary.Admits(k, p.ID) {
				continue
			}
			rows = append(rows, PostRow{Post: p, Key: k})
		}
	})

	sort.Slice(rows, func(i, j int) bool {
		return Less(rows[i].Key, rows[i].Post.ID, rows[j].Key, rows[j].Post.ID)
	})
	if len(rows) > plan.Limit {
		rows = rows[:plan.Limit]
	}
	return rows, nil
}

// ResolveUser computes the boundary for user id under plan.
func (e *MemoryExecutor) ResolveUser(_ context.Context, plan Plan, id string) (Boundary, error) {
	var (
		b  Boundary
		ok bool
	)
	e.store.Read(func(v *post.View) {
		u, found := v.User(id)
		if !found {
			return
		}
		var k Key
		if k, ok = userKey(v, plan, u); ok {
			b = Boundary{Key: k, ID: u.ID}
		}
	})
	if !ok {
		return Boundary{}, ErrBoundaryNotFound
	}
	return b, nil
}

// Users returns up to plan.Limit matching users from the boundary on.
func (e *MemoryExecutor) Users(_ context.Context, plan Plan) ([]UserRow, error) {
	var rows []UserRow
	e.store.Read(func(v *post.View) {
		for _, u := range v.Users() {
			k, ok := userKey(v, plan, u)
			if !ok {
				continue
			}
			if plan.Boundary != nil && !plan.Boundary.Admits(k, u.ID) {
				continue
			}
			rows = append(rows, UserRow{User: u, Key: k})
		}
	})

	sort.Slice(rows, func(i, j int) bool {
		return Less(rows[i].Key, rows[i].User.ID, rows[j].Key, rows[j].User.ID)
	})
	if len(rows) > plan.Limit {
		rows = rows[:plan.Limit]
	}
	return rows, nil
}

// postKey evaluates plan's filters against p and, if p matches, its sort key.
func postKey(v *post.View, plan Plan, p *post.Post) (Key, bool) {
	f := plan.Filters

	if f.TopLevelOnly && p.IsReply() {
		return Key{}, false
	}
	if f.ExcludeAuthorID != "" && p.AuthorID == f.ExcludeAuthorID {
		return Key{}, false
	}
	if f.AuthorID != "" && p.AuthorID != f.AuthorID {
		return Key{}, false
	}
	if f.ReplyToAuthorID != "" {
		if !p.IsReply() {
			return Key{}, false
		}
		parent, ok := v.Post(*p.ParentID)
		if !ok || parent.AuthorID != f.ReplyToAuthorID {
			return Key{}, false
		}
	}
	if f.Since != nil && p.CreatedAt.Before(*f.Since) {
		return Key{}, false
	}
	if f.Until != nil && !p.CreatedAt.Before(*f.Until) {
		return Key{}, false
	}
	if f.FollowedBy != "" && !v.Follows(f.FollowedBy, p.AuthorID) {
		return Key{}, false
	}

	likes := v.LikeCount(p.ID)
	if likes < f.MinLikes {
		return Key{}, false
	}
	if f.MinReplies > 0 && v.ReplyCount(p.ID) < f.MinReplies {
		return Key{}, false
	}

	var doc search.Document
	if len(f.Keywords) > 0 || plan.Sort == SortRelevance {
		doc = search.NewDocument(p.Content)
		if !doc.Matches(f.Keywords) {
			return Key{}, false
		}
	}

	switch plan.Sort {
	case SortScore:
		return NumberKey(ranking.Score(likes, p.Views, p.CreatedAt, plan.Now, plan.Decay)), true
	case SortRelevance:
		return NumberKey(doc.Relevance(f.Keywords)), true
	default:
		return TimeKey(p.CreatedAt), true
	}
}

// userKey evaluates plan's user filters against u and, if u matches, its
// sort key.
func userKey(v *post.View, plan Plan, u *post.User) (Key, bool) {
	f := plan.UserFilters

	if f.RegisteredOnly && !u.Registered {
		return Key{}, false
	}
	if f.ExcludeUserID != "" && u.ID == f.ExcludeUserID {
		return Key{}, false
	}
	if f.ExcludeFollowedBy != "" && v.Follows(f.ExcludeFollowedBy, u.ID) {
		return Key{}, false
	}
	return NumberKey(float64(v.FollowerCount(u.ID))), true
}
