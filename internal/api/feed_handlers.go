package api

import (
	"net/http"
)

// Recommended handles GET /feed/recommended.
func (h *Handlers) Recommended(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	n, err := pageSize(q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	page, err := h.feeds.Recommended(r.Context(), viewerID, q.Get("cursor"), n)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, RecommendedResponse{
		Posts:      postsJSON(page.Items),
		NextCursor: page.NextCursor,
	})
}

// Following handles GET /feed/following.
func (h *Handlers) Following(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	n, err := pageSize(q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	page, err := h.feeds.Following(r.Context(), viewerID, q.Get("cursor"), n)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, ResultsResponse{
		Results:    postsJSON(page.Items),
		NextCursor: page.NextCursor,
	})
}

// UsersFeed handles GET /feed/users. Anonymous viewers get every registered user.
func (h *Handlers) UsersFeed(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.optionalViewer(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	n, err := pageSize(q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	page, err := h.feeds.Users(r.Context(), viewerID, q.Get("cursor"), n)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, UsersResponse{
		Users:      usersJSON(page.Items),
		NextCursor: page.NextCursor,
	})
}
