package api

import (
	"fmt"
	"net/http"
)

// GetUser handles GET /users/{id}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.optionalViewer(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	u, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	eng, err := h.engagement.Users(r.Context(), viewerID, []string{u.ID})
	if err != nil {
		writeServiceError(w, r, h.logger, fmt.Errorf("user engagement: %w", err))
		return
	}
	e := eng[u.ID]
	WriteJSON(w, r.Context(), http.StatusOK, UserJSON{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		FollowerCount:  e.FollowerCount,
		FollowingCount: e.FollowingCount,
		Followed:       e.Followed,
	})
}

// FollowUser handles PUT /users/{id}/follow.
func (h *Handlers) FollowUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.store.Follow(r.Context(), viewerID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnfollowUser handles DELETE /users/{id}/follow.
func (h *Handlers) UnfollowUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.store.Unfollow(r.Context(), viewerID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
