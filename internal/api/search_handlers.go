package api

import (
	"net/http"
	"net/url"

	"github.com/patrickariel/semicolon-web-sub000/internal/feed"
)

// SearchPosts handles GET /posts/search. A search with no matches is 404.
func (h *Handlers) SearchPosts(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := h.optionalViewer(w, r)
	if !ok {
		return
	}
	req, err := searchRequest(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	page, err := h.search.Search(r.Context(), viewerID, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, ResultsResponse{
		Results:    postsJSON(page.Items),
		NextCursor: page.NextCursor,
	})
}

func searchRequest(q url.Values) (feed.SearchRequest, error) {
	var (
		req feed.SearchRequest
		err error
	)
	req.Query = q.Get("query")
	req.From = q.Get("from")
	req.To = q.Get("to")
	req.SortBy = feed.SortBy(q.Get("sortBy"))
	req.Cursor = q.Get("cursor")

	if req.MaxResults, err = pageSize(q); err != nil {
		return req, err
	}
	if req.Since, err = optionalTime(q, "since"); err != nil {
		return req, err
	}
	if req.Until, err = optionalTime(q, "until"); err != nil {
		return req, err
	}
	if req.MinLikes, err = optionalCount(q, "minLikes"); err != nil {
		return req, err
	}
	if req.MinReplies, err = optionalCount(q, "minReplies"); err != nil {
		return req, err
	}
	return req, nil
}
