package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickariel/semicolon-web-sub000/internal/engagement"
	"github.com/patrickariel/semicolon-web-sub000/internal/feed"
	"github.com/patrickariel/semicolon-web-sub000/internal/post"
)

// Handlers serves the feed, search, post and user endpoints.
type Handlers struct {
	feeds      *feed.Service
	search     *feed.SearchService
	store      post.Store
	engagement engagement.Aggregator
	logger     *slog.Logger
}

// Config holds the collaborators for NewHandlers.
type Config struct {
	Feeds      *feed.Service
	Search     *feed.SearchService
	Store      post.Store
	Engagement engagement.Aggregator
	Logger     *slog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		feeds:      cfg.Feeds,
		search:     cfg.Search,
		store:      cfg.Store,
		engagement: cfg.Engagement,
		logger:     logger,
	}
}

// Register adds the API routes to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /feed/recommended", h.Recommended)
	mux.HandleFunc("GET /feed/following", h.Following)
	mux.HandleFunc("GET /feed/users", h.UsersFeed)
	mux.HandleFunc("GET /posts/search", h.SearchPosts)

	mux.HandleFunc("POST /posts", h.CreatePost)
	mux.HandleFunc("GET /posts/{id}", h.GetPost)
	mux.HandleFunc("PATCH /posts/{id}", h.UpdatePost)
	mux.HandleFunc("DELETE /posts/{id}", h.DeletePost)
	mux.HandleFunc("PUT /posts/{id}/like", h.LikePost)
	mux.HandleFunc("DELETE /posts/{id}/like", h.UnlikePost)

	mux.HandleFunc("GET /users/{id}", h.GetUser)
	mux.HandleFunc("PUT /users/{id}/follow", h.FollowUser)
	mux.HandleFunc("DELETE /users/{id}/follow", h.UnfollowUser)
}

// PostJSON is the wire form of a post item.
type PostJSON struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	AuthorID   string    `json:"authorId"`
	Content    string    `json:"content"`
	ParentID   *string   `json:"parentId"`
	LikeCount  int64     `json:"likeCount"`
	ReplyCount int64     `json:"replyCount"`
	Liked      bool      `json:"liked"`
	Followed   bool      `json:"followed"`
}

// UserJSON is the wire form of a user item.
type UserJSON struct {
	ID             string `json:"id"`
	Username       string `json:"username,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	FollowerCount  int64  `json:"followerCount"`
	FollowingCount int64  `json:"followingCount"`
	Followed       bool   `json:"followed"`
}

// RecommendedResponse is the body of GET /feed/recommended.
type RecommendedResponse struct {
	Posts      []PostJSON `json:"posts"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ResultsResponse is the body of GET /feed/following and GET /posts/search.
type ResultsResponse struct {
	Results    []PostJSON `json:"results"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// UsersResponse is the body of GET /feed/users.
type UsersResponse struct {
	Users      []UserJSON `json:"users"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

func postsJSON(items []feed.PostItem) []PostJSON {
	out := make([]PostJSON, len(items))
	for i, it := range items {
		out[i] = PostJSON{
			ID:         it.ID,
			CreatedAt:  it.CreatedAt.UTC(),
			AuthorID:   it.AuthorID,
			Content:    it.Content,
			ParentID:   it.ParentID,
			LikeCount:  it.LikeCount,
			ReplyCount: it.ReplyCount,
			Liked:      it.Liked,
			Followed:   it.Followed,
		}
	}
	return out
}

func usersJSON(items []feed.UserItem) []UserJSON {
	out := make([]UserJSON, len(items))
	for i, it := range items {
		out[i] = UserJSON{
			ID:             it.ID,
			Username:       it.Username,
			DisplayName:    it.DisplayName,
			FollowerCount:  it.FollowerCount,
			FollowingCount: it.FollowingCount,
			Followed:       it.Followed,
		}
	}
	return out
}
