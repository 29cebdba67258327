package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/patrickariel/semicolon-web-sub000/internal/post"
	"github.com/patrickariel/semicolon-web-sub000/internal/query"
	"github.com/patrickariel/semicolon-web-sub000/internal/validate"
)

// MaxContentLength is the longest post content accepted, in characters.
const MaxContentLength = 5000

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId,omitempty"`
}

// UpdatePostRequest is the body of PATCH /posts/{id}.
type UpdatePostRequest struct {
	Content string `json:"content"`
}

func validateContent(content string) (string, error) {
	trimmed, err := validate.PostContent(content, MaxContentLength)
	switch {
	case errors.Is(err, validate.ErrEmpty):
		return "", post.ErrEmptyContent
	case err != nil:
		return "", fmt.Errorf("%w: content: %v", query.ErrInvalidFilter, err)
	}
	return trimmed, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", query.ErrInvalidFilter, err)
	}
	return nil
}

// postJSON loads engagement for a single post.
func (h *Handlers) postJSON(r *http.Request, viewerID string, p *post.Post) (PostJSON, error) {
	eng, err := h.engagement.Posts(r.Context(), viewerID, []string{p.ID})
	if err != nil {
		return PostJSON{}, fmt.Errorf("post engagement: %w", err)
	}
	e := eng[p.ID]
	return PostJSON{
		ID:         p.ID,
		CreatedAt:  p.CreatedAt.UTC(),
		AuthorID:   p.AuthorID,
		Content:    p.Content,
		ParentID:   p.ParentID,
		LikeCount:  e.LikeCount,
		ReplyCount: e.ReplyCount,
		Liked:      e.Liked,
		Followed:   e.AuthorFollowed,
	}, nil
}

// GetPost handles GET /posts/{id}. Each successful read counts one view.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.optionalViewer(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	p, err := h.store.GetPost(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.store.IncrementViews(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	out, err := h.postJSON(r, viewerID, p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, out)
}

// CreatePost handles POST /posts.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var req CreatePostRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	content, err := validateContent(req.Content)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	p := &post.Post{AuthorID: viewerID, ParentID: req.ParentID, Content: content}
	if err := h.store.CreatePost(r.Context(), p); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	out, err := h.postJSON(r, viewerID, p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/posts/"+p.ID)
	WriteJSON(w, r.Context(), http.StatusCreated, out)
}

// UpdatePost handles PATCH /posts/{id}. Only the author may edit.
func (h *Handlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var req UpdatePostRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	content, err := validateContent(req.Content)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	id := r.PathValue("id")
	if err := h.store.UpdateContent(r.Context(), id, viewerID, content); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	p, err := h.store.GetPost(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out, err := h.postJSON(r, viewerID, p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, out)
}

// DeletePost handles DELETE /posts/{id}. Replies are deleted with the post.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.store.DeletePost(r.Context(), r.PathValue("id"), viewerID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LikePost handles PUT /posts/{id}/like.
func (h *Handlers) LikePost(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, true)
}

// UnlikePost handles DELETE /posts/{id}/like.
func (h *Handlers) UnlikePost(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, false)
}

func (h *Handlers) toggleLike(w http.ResponseWriter, r *http.Request, like bool) {
	viewerID, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var err error
	if like {
		err = h.store.Like(r.Context(), viewerID, id)
	} else {
		err = h.store.Unlike(r.Context(), viewerID, id)
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
