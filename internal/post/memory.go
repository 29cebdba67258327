package post

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type set map[string]struct{}

func (s set) add(k string) bool {
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

// MemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex. Edge sets are indexed in both directions so
// that every derived count is a map length.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*User
	usernames map[string]string // lower(username) -> user ID
	posts     map[string]*Post
	likes     map[string]set // post ID -> user IDs
	replies   map[string]set // parent post ID -> reply IDs
	following map[string]set // follower ID -> followee IDs
	followers map[string]set // followee ID -> follower IDs

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		usernames: make(map[string]string),
		posts:     make(map[string]*Post),
		likes:     make(map[string]set),
		replies:   make(map[string]set),
		following: make(map[string]set),
		followers: make(map[string]set),
		now:       time.Now,
	}
}

// SetClock overrides the clock used for CreatedAt/UpdatedAt. Used by tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CreateUser inserts a user.
func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	if u.Username != "" {
		key := strings.ToLower(u.Username)
		if _, taken := s.usernames[key]; taken {
			return ErrUsernameTaken
		}
		s.usernames[key] = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}

	stored := *u
	s.users[u.ID] = &stored
	return nil
}

// GetUser retrieves a user by ID.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

// CreatePost inserts a post or reply.
func (s *MemoryStore) CreatePost(_ context.Context, p *Post) error {
	if strings.TrimSpace(p.Content) == "" {
		return ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.AuthorID]; !ok {
		return ErrUserNotFound
	}
	if p.ParentID != nil {
		if _, ok := s.posts[*p.ParentID]; !ok {
			return ErrParentNotFound
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, exists := s.posts[p.ID]; exists {
		return fmt.Errorf("post %s already exists", p.ID)
	}

	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	stored := *p
	if p.ParentID != nil {
		parent := *p.ParentID
		stored.ParentID = &parent
		if s.replies[parent] == nil {
			s.replies[parent] = make(set)
		}
		s.replies[parent].add(p.ID)
	}
	s.posts[p.ID] = &stored
	return nil
}

// GetPost retrieves a post by ID.
func (s *MemoryStore) GetPost(_ context.Context, id string) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return copyPost(p), nil
}

// UpdateContent replaces the content of a post owned by authorID.
func (s *MemoryStore) UpdateContent(_ context.Context, id, authorID, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	if p.AuthorID != authorID {
		return ErrNotAuthor
	}
	p.Content = content
	p.UpdatedAt = s.now().UTC()
	return nil
}

// DeletePost removes a post owned by authorID together with its reply tree
// and every like edge pointing at a removed post.
func (s *MemoryStore) DeletePost(_ context.Context, id, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	if p.AuthorID != authorID {
		return ErrNotAuthor
	}

	if p.ParentID != nil {
		delete(s.replies[*p.ParentID], id)
	}

	pending := []string{id}
	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		for child := range s.replies[cur] {
			pending = append(pending, child)
		}
		delete(s.replies, cur)
		delete(s.likes, cur)
		delete(s.posts, cur)
	}
	return nil
}

// IncrementViews adds one view to a post.
func (s *MemoryStore) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	p.Views++
	return nil
}

// Like records a like edge.
func (s *MemoryStore) Like(_ context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	if _, ok := s.posts[postID]; !ok {
		return ErrPostNotFound
	}
	if s.likes[postID] == nil {
		s.likes[postID] = make(set)
	}
	s.likes[postID].add(userID)
	return nil
}

// Unlike removes a like edge.
func (s *MemoryStore) Unlike(_ context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return ErrPostNotFound
	}
	delete(s.likes[postID], userID)
	return nil
}

// Follow records a follow edge.
func (s *MemoryStore) Follow(_ context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[followerID]; !ok {
		return ErrUserNotFound
	}
	if _, ok := s.users[followeeID]; !ok {
		return ErrUserNotFound
	}
	if s.following[followerID] == nil {
		s.following[followerID] = make(set)
	}
	if s.followers[followeeID] == nil {
		s.followers[followeeID] = make(set)
	}
	s.following[followerID].add(followeeID)
	s.followers[followeeID].add(followerID)
	return nil
}

// Unfollow removes a follow edge.
func (s *MemoryStore) Unfollow(_ context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.following[followerID], followeeID)
	delete(s.followers[followeeID], followerID)
	return nil
}

// Read runs fn with a consistent read-only view of the store.
// The view must not be retained after fn returns.
func (s *MemoryStore) Read(fn func(v *View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&View{s: s})
}

// View is a read-only view of a MemoryStore held under its read lock.
type View struct {
	s *MemoryStore
}

// Posts returns copies of every post sorted by ID.
func (v *View) Posts() []*Post {
	out := make([]*Post, 0, len(v.s.posts))
	for _, p := range v.s.posts {
		out = append(out, copyPost(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Users returns copies of every user sorted by ID.
func (v *View) Users() []*User {
	out := make([]*User, 0, len(v.s.users))
	for _, u := range v.s.users {
		copied := *u
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Post returns a copy of the post with the given ID.
func (v *View) Post(id string) (*Post, bool) {
	p, ok := v.s.posts[id]
	if !ok {
		return nil, false
	}
	return copyPost(p), true
}

// User returns a copy of the user with the given ID.
func (v *View) User(id string) (*User, bool) {
	u, ok := v.s.users[id]
	if !ok {
		return nil, false
	}
	copied := *u
	return &copied, true
}

// LikeCount returns the number of users who like the post.
func (v *View) LikeCount(postID string) int64 {
	return int64(len(v.s.likes[postID]))
}

// Liked reports whether userID likes postID.
func (v *View) Liked(userID, postID string) bool {
	_, ok := v.s.likes[postID][userID]
	return ok
}

// ReplyCount returns the number of direct replies to the post.
func (v *View) ReplyCount(postID string) int64 {
	return int64(len(v.s.replies[postID]))
}

// Follows reports whether followerID follows followeeID.
func (v *View) Follows(followerID, followeeID string) bool {
	_, ok := v.s.following[followerID][followeeID]
	return ok
}

// FollowerCount returns the number of users following userID.
func (v *View) FollowerCount(userID string) int64 {
	return int64(len(v.s.followers[userID]))
}

// FollowingCount returns the number of users userID follows.
func (v *View) FollowingCount(userID string) int64 {
	return int64(len(v.s.following[userID]))
}

func copyPost(p *Post) *Post {
	copied := *p
	if p.ParentID != nil {
		parent := *p.ParentID
		copied.ParentID = &parent
	}
	return &copied
}
