package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/patrickariel/semicolon-web-sub000/internal/auth"
)

type viewerSlotKey struct{}

// AuthResult is the outcome of authenticating a request.
// Err is nil for anonymous requests and for registered viewers.
type AuthResult struct {
	Viewer auth.Viewer
	Err    error

	// Present reports whether the request carried credentials.
	Present bool
}

// Authenticator validates bearer tokens.
type Authenticator interface {
	Authenticate(token string) (auth.Viewer, error)
}

// Authenticate resolves the bearer token, if any, into an AuthResult stored
// in the request context. It never rejects a request itself: endpoints that
// require a viewer check the result with Viewer.
func Authenticate(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var res AuthResult
			if token, ok := bearerToken(r); ok {
				res.Present = true
				res.Viewer, res.Err = a.Authenticate(token)
			}

			ctx := r.Context()
			if slot, ok := ctx.Value(viewerSlotKey{}).(*AuthResult); ok {
				*slot = res
			} else {
				ctx = context.WithValue(ctx, viewerSlotKey{}, &res)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Viewer returns the authentication outcome for the request.
func Viewer(ctx context.Context) AuthResult {
	if res, ok := ctx.Value(viewerSlotKey{}).(*AuthResult); ok {
		return *res
	}
	return AuthResult{}
}

// ViewerID returns the authenticated viewer's ID, or empty string.
func ViewerID(ctx context.Context) string {
	return Viewer(ctx).Viewer.UserID
}

// WithViewer returns a context carrying an already authenticated viewer.
// Used by tests and internal callers.
func WithViewer(ctx context.Context, v auth.Viewer) context.Context {
	return context.WithValue(ctx, viewerSlotKey{}, &AuthResult{Viewer: v, Present: true})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		// Credentials in an unsupported scheme still count as present so
		// that they are rejected rather than silently ignored.
		return h, true
	}
	return strings.TrimSpace(token), true
}
