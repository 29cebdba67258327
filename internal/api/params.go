package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickariel/semicolon-web-sub000/internal/auth"
	"github.com/patrickariel/semicolon-web-sub000/internal/middleware"
	"github.com/patrickariel/semicolon-web-sub000/internal/query"
)

var errAuthRequired = fmt.Errorf("%w: authentication required", query.ErrViewerRequired)

// pageSize parses maxResults. Absent means the default page size.
func pageSize(q url.Values) (int, error) {
	raw := strings.TrimSpace(q.Get("maxResults"))
	if raw == "" {
		return query.DefaultPageSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > query.MaxPageSize {
		return 0, fmt.Errorf("%w: maxResults must be an integer between 1 and %d", query.ErrInvalidPageSize, query.MaxPageSize)
	}
	return n, nil
}

// optionalTime parses an RFC 3339 timestamp parameter.
func optionalTime(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", query.ErrInvalidFilter, name)
	}
	return &t, nil
}

// optionalCount parses a non-negative integer parameter. Absent means zero.
func optionalCount(q url.Values, name string) (int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", query.ErrInvalidFilter, name)
	}
	return n, nil
}

// viewer returns the request's viewer id. Anonymous requests yield "" unless
// required is set. Bad credentials are always rejected, and so is a viewer
// whose registration is incomplete.
func viewer(ctx context.Context, required bool) (string, error) {
	res := middleware.Viewer(ctx)
	if !res.Present {
		if required {
			return "", errAuthRequired
		}
		return "", nil
	}
	if res.Err != nil {
		if errors.Is(res.Err, auth.ErrRegistrationIncomplete) {
			return "", res.Err
		}
		return "", fmt.Errorf("%w: %v", auth.ErrInvalidToken, res.Err)
	}
	return res.Viewer.UserID, nil
}

// requireViewer writes the auth error and returns false when no usable viewer is present.
func (h *Handlers) requireViewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := viewer(r.Context(), true)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return "", false
	}
	return id, true
}

// optionalViewer is requireViewer for endpoints that also serve anonymous requests.
func (h *Handlers) optionalViewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := viewer(r.Context(), false)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return "", false
	}
	return id, true
}
