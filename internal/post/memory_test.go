package post

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })
	return s
}

func mustUser(t *testing.T, s *MemoryStore, id string) {
	t.Helper()
	if err := s.CreateUser(context.Background(), &User{ID: id, Username: id, Registered: true}); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", id, err)
	}
}

func mustPost(t *testing.T, s *MemoryStore, id, author string, parent *string) {
	t.Helper()
	p := &Post{ID: id, AuthorID: author, ParentID: parent, Content: "content of " + id}
	if err := s.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("CreatePost(%s) error = %v", id, err)
	}
}

func strPtr(s string) *string { return &s }

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := &User{Username: "alice", DisplayName: "Alice"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated user ID")
	}

	p := &Post{AuthorID: u.ID, Content: "hello"}
	if err := s.CreatePost(ctx, p); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("expected generated ID and CreatedAt, got %+v", p)
	}

	got, err := s.GetPost(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if got.Content != "hello" || got.AuthorID != u.ID {
		t.Errorf("GetPost() = %+v", got)
	}
	if got.IsReply() {
		t.Error("top-level post reported as reply")
	}

	// Returned values are copies.
	got.Content = "mutated"
	again, _ := s.GetPost(ctx, p.ID)
	if again.Content != "hello" {
		t.Error("GetPost returned shared state")
	}
}

func TestMemoryStore_CreateErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustUser(t, s, "alice")

	tests := []struct {
		name    string
		post    *Post
		wantErr error
	}{
		{"empty content", &Post{AuthorID: "alice", Content: "   "}, ErrEmptyContent},
		{"unknown author", &Post{AuthorID: "ghost", Content: "x"}, ErrUserNotFound},
		{"unknown parent", &Post{AuthorID: "alice", Content: "x", ParentID: strPtr("missing")}, ErrParentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.CreatePost(ctx, tt.post); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreatePost() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := s.CreateUser(ctx, &User{Username: "ALICE"}); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username error = %v, want %v", err, ErrUsernameTaken)
	}
	if _, err := s.GetUser(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUser() error = %v, want %v", err, ErrUserNotFound)
	}
	if _, err := s.GetPost(ctx, "ghost"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("GetPost() error = %v, want %v", err, ErrPostNotFound)
	}
}

func TestMemoryStore_EdgesAreSets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustUser(t, s, "alice")
	mustUser(t, s, "bob")
	mustPost(t, s, "p1", "alice", nil)
	mustPost(t, s, "r1", "bob", strPtr("p1"))
	mustPost(t, s, "r2", "bob", strPtr("p1"))

	for i := 0; i < 3; i++ {
		if err := s.Like(ctx, "bob", "p1"); err != nil {
			t.Fatalf("Like() error = %v", err)
		}
		if err := s.Follow(ctx, "bob", "alice"); err != nil {
			t.Fatalf("Follow() error = %v", err)
		}
	}

	s.Read(func(v *View) {
		if got := v.LikeCount("p1"); got != 1 {
			t.Errorf("LikeCount = %d, want 1", got)
		}
		if !v.Liked("bob", "p1") || v.Liked("alice", "p1") {
			t.Error("Liked flags wrong")
		}
		if got := v.ReplyCount("p1"); got != 2 {
			t.Errorf("ReplyCount = %d, want 2", got)
		}
		if !v.Follows("bob", "alice") || v.Follows("alice", "bob") {
			t.Error("Follows flags wrong")
		}
		if v.FollowerCount("alice") != 1 || v.FollowingCount("bob") != 1 {
			t.Error("follow counts wrong")
		}
	})

	if err := s.Unlike(ctx, "bob", "p1"); err != nil {
		t.Fatalf("Unlike() error = %v", err)
	}
	if err := s.Unlike(ctx, "bob", "p1"); err != nil {
		t.Fatalf("second Unlike() error = %v", err)
	}
	if err := s.Unfollow(ctx, "bob", "alice"); err != nil {
		t.Fatalf("Unfollow() error = %v", err)
	}
	s.Read(func(v *View) {
		if v.LikeCount("p1") != 0 || v.FollowerCount("alice") != 0 {
			t.Error("edges not removed")
		}
	})

	if err := s.Follow(ctx, "alice", "alice"); !errors.Is(err, ErrSelfFollow) {
		t.Errorf("self follow error = %v, want %v", err, ErrSelfFollow)
	}
	if err := s.Like(ctx, "bob", "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("Like(missing) error = %v, want %v", err, ErrPostNotFound)
	}
}

func TestMemoryStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustUser(t, s, "alice")
	mustUser(t, s, "bob")
	mustPost(t, s, "p1", "alice", nil)
	mustPost(t, s, "r1", "bob", strPtr("p1"))
	mustPost(t, s, "rr1", "alice", strPtr("r1"))
	mustPost(t, s, "p2", "alice", nil)
	_ = s.Like(ctx, "bob", "rr1")

	if err := s.DeletePost(ctx, "p1", "bob"); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("DeletePost() by non-author error = %v, want %v", err, ErrNotAuthor)
	}
	if err := s.DeletePost(ctx, "p1", "alice"); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}

	for _, id := range []string{"p1", "r1", "rr1"} {
		if _, err := s.GetPost(ctx, id); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("GetPost(%s) after cascade error = %v", id, err)
		}
	}
	s.Read(func(v *View) {
		if v.LikeCount("rr1") != 0 {
			t.Error("likes of deleted reply survived")
		}
		if len(v.Posts()) != 1 {
			t.Errorf("remaining posts = %d, want 1", len(v.Posts()))
		}
	})
}

func TestMemoryStore_UpdateAndViews(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustUser(t, s, "alice")
	mustPost(t, s, "p1", "alice", nil)

	if err := s.UpdateContent(ctx, "p1", "bob", "nope"); !errors.Is(err, ErrNotAuthor) {
		t.Errorf("UpdateContent() by non-author error = %v", err)
	}
	if err := s.UpdateContent(ctx, "p1", "alice", "edited"); err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.IncrementViews(ctx, "p1"); err != nil {
			t.Fatalf("IncrementViews() error = %v", err)
		}
	}

	got, _ := s.GetPost(ctx, "p1")
	if got.Content != "edited" || got.Views != 3 {
		t.Errorf("post = %+v, want edited content and 3 views", got)
	}
	if err := s.IncrementViews(ctx, "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("IncrementViews(missing) error = %v", err)
	}
}
