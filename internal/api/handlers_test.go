package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/patrickariel/semicolon-web-sub000/internal/auth"
	"github.com/patrickariel/semicolon-web-sub000/internal/cursor"
	"github.com/patrickariel/semicolon-web-sub000/internal/engagement"
	"github.com/patrickariel/semicolon-web-sub000/internal/feed"
	"github.com/patrickariel/semicolon-web-sub000/internal/middleware"
	"github.com/patrickariel/semicolon-web-sub000/internal/post"
	"github.com/patrickariel/semicolon-web-sub000/internal/query"
	"github.com/patrickariel/semicolon-web-sub000/internal/ranking"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	store  *post.MemoryStore
	jwt    *auth.JWTService
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := post.NewMemoryStore()
	codec, err := cursor.NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	agg := engagement.NewMemoryAggregator(store)
	deps := feed.Deps{
		Planner:    query.NewPlanner(ranking.DefaultDecay()).WithClock(func() time.Time { return fixedNow }),
		Executor:   query.NewMemoryExecutor(store),
		Aggregator: agg,
		Codec:      codec,
	}
	h := NewHandlers(Config{
		Feeds:      feed.NewService(deps),
		Search:     feed.NewSearchService(deps),
		Store:      store,
		Engagement: agg,
	})
	jwtSvc := auth.NewJWTService(auth.Options{Secret: "test-secret-at-least-32-bytes-long!!"})

	mux := http.NewServeMux()
	h.Register(mux)
	NewHealthHandlers(nil).Register(mux)
	srv := httptest.NewServer(middleware.Authenticate(jwtSvc)(mux))
	t.Cleanup(srv.Close)

	return &testServer{t: t, store: store, jwt: jwtSvc, server: srv}
}

func (s *testServer) user(id string, registered bool) {
	s.t.Helper()
	err := s.store.CreateUser(context.Background(), &post.User{ID: id, Username: id, DisplayName: strings.ToUpper(id), Registered: registered})
	if err != nil {
		s.t.Fatalf("CreateUser(%s) error = %v", id, err)
	}
}

func (s *testServer) post(id, author, content string, createdAt time.Time) {
	s.t.Helper()
	err := s.store.CreatePost(context.Background(), &post.Post{ID: id, AuthorID: author, Content: content, CreatedAt: createdAt})
	if err != nil {
		s.t.Fatalf("CreatePost(%s) error = %v", id, err)
	}
}

func (s *testServer) follow(a, b string) {
	s.t.Helper()
	if err := s.store.Follow(context.Background(), a, b); err != nil {
		s.t.Fatalf("Follow(%s, %s) error = %v", a, b, err)
	}
}

func (s *testServer) token(userID string, registered bool) string {
	s.t.Helper()
	tok, err := s.jwt.GenerateAccessToken(userID, registered)
	if err != nil {
		s.t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return tok
}

// do sends a request as viewer (empty for anonymous) and decodes a JSON body into out.
func (s *testServer) do(method, path, token string, body string, out any) int {
	s.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, rd)
	if err != nil {
		s.t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	if err != nil {
		s.t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			s.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func ids(posts []PostJSON) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestFollowingFeedPagination(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	s.user("author", true)
	s.follow("viewer", "author")
	for i := 0; i < 10; i++ {
		s.post(fmt.Sprintf("p%02d", i), "author", "post", fixedNow.Add(-time.Duration(i)*time.Hour))
	}
	tok := s.token("viewer", true)

	var first ResultsResponse
	if code := s.do(http.MethodGet, "/feed/following?maxResults=5", tok, "", &first); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got := strings.Join(ids(first.Results), ","); got != "p00,p01,p02,p03,p04" {
		t.Errorf("first page = %s", got)
	}
	if first.NextCursor == "" {
		t.Fatal("first page should have nextCursor")
	}
	if !first.Results[0].Followed {
		t.Error("followed flag should be set for a followed author")
	}

	var second ResultsResponse
	path := "/feed/following?maxResults=5&cursor=" + url.QueryEscape(first.NextCursor)
	if code := s.do(http.MethodGet, path, tok, "", &second); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got := strings.Join(ids(second.Results), ","); got != "p05,p06,p07,p08,p09" {
		t.Errorf("second page = %s", got)
	}
	if second.NextCursor != "" {
		t.Errorf("last page nextCursor = %q, want empty", second.NextCursor)
	}
}

func TestRecommendedFeed(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	s.user("alice", true)
	s.post("own", "viewer", "mine", fixedNow)
	s.post("a1", "alice", "top", fixedNow.Add(-time.Hour))
	if err := s.store.CreatePost(context.Background(), &post.Post{ID: "r1", AuthorID: "alice", Content: "reply", ParentID: ptr("a1"), CreatedAt: fixedNow}); err != nil {
		t.Fatal(err)
	}
	if err := s.store.Like(context.Background(), "viewer", "a1"); err != nil {
		t.Fatal(err)
	}

	var resp RecommendedResponse
	if code := s.do(http.MethodGet, "/feed/recommended", s.token("viewer", true), "", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got := strings.Join(ids(resp.Posts), ","); got != "a1" {
		t.Fatalf("posts = %s, want a1 only", got)
	}
	p := resp.Posts[0]
	if !p.Liked || p.LikeCount != 1 || p.ReplyCount != 1 || p.Followed {
		t.Errorf("item = %+v", p)
	}
}

func ptr(s string) *string { return &s }

func TestFeedAuthErrors(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	s.user("pending", false)

	tests := []struct {
		name     string
		token    string
		wantCode int
		wantErr  string
	}{
		{"anonymous", "", http.StatusUnauthorized, ErrCodeAuthFailed},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized, ErrCodeAuthFailed},
		{"registration incomplete", s.token("pending", false), http.StatusPreconditionFailed, ErrCodePreconditionFailed},
	}
	for _, tt := range tests {
		for _, path := range []string{"/feed/recommended", "/feed/following"} {
			t.Run(tt.name+" "+path, func(t *testing.T) {
				var resp ErrorResponse
				if code := s.do(http.MethodGet, path, tt.token, "", &resp); code != tt.wantCode {
					t.Errorf("status = %d, want %d", code, tt.wantCode)
				}
				if resp.Error.Code != tt.wantErr {
					t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantErr)
				}
			})
		}
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	tok := s.token("viewer", true)

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"zero page size", "/feed/following?maxResults=0", ErrCodeValidation},
		{"page size too large", "/feed/recommended?maxResults=101", ErrCodeValidation},
		{"non-numeric page size", "/feed/users?maxResults=ten", ErrCodeValidation},
		{"garbage cursor", "/feed/following?cursor=%21%21%21", ErrCodeInvalidCursor},
		{"bad since", "/posts/search?query=go&since=yesterday", ErrCodeValidation},
		{"negative minLikes", "/posts/search?query=go&minLikes=-1", ErrCodeValidation},
		{"unknown sort", "/posts/search?query=go&sortBy=popularity", ErrCodeValidation},
		{"since after until", "/posts/search?since=2024-03-02T00:00:00Z&until=2024-03-01T00:00:00Z", ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			if code := s.do(http.MethodGet, tt.path, tok, "", &resp); code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
			if resp.Error.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantErr)
			}
		})
	}
}

func TestCursorFromAnotherFeedIsRejected(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	s.user("author", true)
	s.follow("viewer", "author")
	for i := 0; i < 3; i++ {
		s.post(fmt.Sprintf("p%d", i), "author", "go post", fixedNow.Add(-time.Duration(i)*time.Minute))
	}
	tok := s.token("viewer", true)

	var page ResultsResponse
	s.do(http.MethodGet, "/feed/following?maxResults=1", tok, "", &page)
	if page.NextCursor == "" {
		t.Fatal("expected nextCursor")
	}

	var resp ErrorResponse
	code := s.do(http.MethodGet, "/posts/search?query=go&cursor="+url.QueryEscape(page.NextCursor), tok, "", &resp)
	if code != http.StatusBadRequest || resp.Error.Code != ErrCodeInvalidCursor {
		t.Errorf("got %d %q, want 400 invalid_cursor", code, resp.Error.Code)
	}
}

func TestSearchPosts(t *testing.T) {
	s := newTestServer(t)
	s.user("alice", true)
	s.user("bob", true)
	s.post("a1", "alice", "Learning Go generics", fixedNow.Add(-2*time.Hour))
	s.post("b1", "bob", "go channels are neat", fixedNow.Add(-time.Hour))
	s.post("b2", "bob", "rust traits", fixedNow)

	t.Run("matches newest first", func(t *testing.T) {
		var resp ResultsResponse
		if code := s.do(http.MethodGet, "/posts/search?query=go", "", "", &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if got := strings.Join(ids(resp.Results), ","); got != "b1,a1" {
			t.Errorf("results = %s, want b1,a1", got)
		}
	})

	t.Run("author filter", func(t *testing.T) {
		var resp ResultsResponse
		s.do(http.MethodGet, "/posts/search?query=go&from=alice", "", "", &resp)
		if got := strings.Join(ids(resp.Results), ","); got != "a1" {
			t.Errorf("results = %s, want a1", got)
		}
	})

	t.Run("no match is not found", func(t *testing.T) {
		var resp ErrorResponse
		if code := s.do(http.MethodGet, "/posts/search?query=haskell", "", "", &resp); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
		if resp.Error.Code != ErrCodeNotFound {
			t.Errorf("code = %q", resp.Error.Code)
		}
	})
}

func TestEmptyFeedsAreOK(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	tok := s.token("viewer", true)

	var rec RecommendedResponse
	if code := s.do(http.MethodGet, "/feed/recommended", tok, "", &rec); code != http.StatusOK {
		t.Errorf("recommended status = %d", code)
	}
	if rec.Posts == nil || len(rec.Posts) != 0 || rec.NextCursor != "" {
		t.Errorf("recommended = %+v, want empty list", rec)
	}

	var fol ResultsResponse
	if code := s.do(http.MethodGet, "/feed/following", tok, "", &fol); code != http.StatusOK {
		t.Errorf("following status = %d", code)
	}
}

func TestUsersFeed(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	s.user("alice", true)
	s.user("bob", true)
	s.user("pending", false)
	s.follow("alice", "bob")
	s.follow("viewer", "alice")

	t.Run("viewer", func(t *testing.T) {
		var resp UsersResponse
		if code := s.do(http.MethodGet, "/feed/users", s.token("viewer", true), "", &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if len(resp.Users) != 1 || resp.Users[0].ID != "bob" {
			t.Fatalf("users = %+v, want bob only", resp.Users)
		}
		if resp.Users[0].FollowerCount != 1 || resp.Users[0].Username != "bob" {
			t.Errorf("user = %+v", resp.Users[0])
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		var resp UsersResponse
		s.do(http.MethodGet, "/feed/users", "", "", &resp)
		if len(resp.Users) != 3 {
			t.Fatalf("users = %+v, want the 3 registered users", resp.Users)
		}
		if resp.Users[0].FollowerCount < resp.Users[2].FollowerCount {
			t.Errorf("users not ordered by follower count: %+v", resp.Users)
		}
	})
}

func TestGetPostCountsViews(t *testing.T) {
	s := newTestServer(t)
	s.user("alice", true)
	s.post("a1", "alice", "hello", fixedNow)

	var p PostJSON
	if code := s.do(http.MethodGet, "/posts/a1", "", "", &p); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if p.ID != "a1" || p.AuthorID != "alice" || p.Content != "hello" || p.ParentID != nil {
		t.Errorf("post = %+v", p)
	}
	s.do(http.MethodGet, "/posts/a1", "", "", nil)

	got, err := s.store.GetPost(context.Background(), "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Views != 2 {
		t.Errorf("views = %d, want 2", got.Views)
	}

	var resp ErrorResponse
	if code := s.do(http.MethodGet, "/posts/missing", "", "", &resp); code != http.StatusNotFound {
		t.Errorf("missing post status = %d, want 404", code)
	}
}

func TestLikeToggle(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	s.user("alice", true)
	s.post("a1", "alice", "hello", fixedNow)
	tok := s.token("viewer", true)

	for i := 0; i < 2; i++ {
		if code := s.do(http.MethodPut, "/posts/a1/like", tok, "", nil); code != http.StatusNoContent {
			t.Fatalf("like status = %d", code)
		}
	}
	var p PostJSON
	s.do(http.MethodGet, "/posts/a1", tok, "", &p)
	if p.LikeCount != 1 || !p.Liked {
		t.Errorf("after double like: %+v", p)
	}

	if code := s.do(http.MethodDelete, "/posts/a1/like", tok, "", nil); code != http.StatusNoContent {
		t.Fatalf("unlike status = %d", code)
	}
	s.do(http.MethodGet, "/posts/a1", tok, "", &p)
	if p.LikeCount != 0 || p.Liked {
		t.Errorf("after unlike: %+v", p)
	}

	if code := s.do(http.MethodPut, "/posts/a1/like", "", "", nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous like status = %d, want 401", code)
	}
	if code := s.do(http.MethodPut, "/posts/missing/like", tok, "", nil); code != http.StatusNotFound {
		t.Errorf("like missing post status = %d, want 404", code)
	}
}

func TestPostLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.user("alice", true)
	s.user("bob", true)
	alice := s.token("alice", true)
	bob := s.token("bob", true)

	var created PostJSON
	if code := s.do(http.MethodPost, "/posts", alice, `{"content":"  first post  "}`, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if created.ID == "" || created.Content != "first post" || created.AuthorID != "alice" {
		t.Errorf("created = %+v", created)
	}

	var reply PostJSON
	body := fmt.Sprintf(`{"content":"a reply","parentId":%q}`, created.ID)
	if code := s.do(http.MethodPost, "/posts", bob, body, &reply); code != http.StatusCreated {
		t.Fatalf("reply status = %d", code)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"empty content", http.MethodPost, "/posts", alice, `{"content":"   "}`, http.StatusBadRequest},
		{"too long", http.MethodPost, "/posts", alice, `{"content":"` + strings.Repeat("x", MaxContentLength+1) + `"}`, http.StatusBadRequest},
		{"unknown parent", http.MethodPost, "/posts", alice, `{"content":"x","parentId":"nope"}`, http.StatusNotFound},
		{"edit by non-author", http.MethodPatch, "/posts/" + created.ID, bob, `{"content":"hijack"}`, http.StatusForbidden},
		{"edit by author", http.MethodPatch, "/posts/" + created.ID, alice, `{"content":"edited"}`, http.StatusOK},
		{"delete by non-author", http.MethodDelete, "/posts/" + created.ID, bob, "", http.StatusForbidden},
		{"delete by author", http.MethodDelete, "/posts/" + created.ID, alice, "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out json.RawMessage
			if code := s.do(tt.method, tt.path, tt.token, tt.body, &out); code != tt.want {
				t.Errorf("status = %d, want %d (%s)", code, tt.want, out)
			}
		})
	}

	if _, err := s.store.GetPost(context.Background(), reply.ID); err == nil {
		t.Error("reply should be deleted with its parent")
	}
}

func TestFollowEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.user("viewer", true)
	s.user("alice", true)
	tok := s.token("viewer", true)

	if code := s.do(http.MethodPut, "/users/alice/follow", tok, "", nil); code != http.StatusNoContent {
		t.Fatalf("follow status = %d", code)
	}
	var u UserJSON
	if code := s.do(http.MethodGet, "/users/alice", tok, "", &u); code != http.StatusOK {
		t.Fatalf("get user status = %d", code)
	}
	if !u.Followed || u.FollowerCount != 1 || u.DisplayName != "ALICE" {
		t.Errorf("user = %+v", u)
	}

	var resp ErrorResponse
	if code := s.do(http.MethodPut, "/users/viewer/follow", tok, "", &resp); code != http.StatusBadRequest {
		t.Errorf("self follow status = %d, want 400", code)
	}
	if code := s.do(http.MethodGet, "/users/nobody", "", "", &resp); code != http.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", code)
	}
	if code := s.do(http.MethodDelete, "/users/alice/follow", tok, "", nil); code != http.StatusNoContent {
		t.Errorf("unfollow status = %d", code)
	}
}
