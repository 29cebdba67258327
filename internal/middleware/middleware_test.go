package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/patrickariel/semicolon-web-sub000/internal/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"generated when absent", "", false},
		{"reused when valid", "abc-123", true},
		{"replaced when it has spaces", "abc 123", false},
		{"replaced when too long", strings.Repeat("a", maxRequestIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/feed/users", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("request id missing from context")
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("header = %q, context = %q", got, seen)
			}
			if tt.reuse && seen != tt.incoming {
				t.Errorf("request id = %q, want %q", seen, tt.incoming)
			}
			if !tt.reuse && seen == tt.incoming {
				t.Errorf("request id %q should have been replaced", seen)
			}
		})
	}
}

type fakeAuthenticator map[string]struct {
	viewer auth.Viewer
	err    error
}

func (f fakeAuthenticator) Authenticate(token string) (auth.Viewer, error) {
	if r, ok := f[token]; ok {
		return r.viewer, r.err
	}
	return auth.Viewer{}, auth.ErrInvalidToken
}

func TestAuthenticate(t *testing.T) {
	a := fakeAuthenticator{
		"good":    {viewer: auth.Viewer{UserID: "u1", Registered: true}},
		"pending": {viewer: auth.Viewer{UserID: "u2"}, err: auth.ErrRegistrationIncomplete},
	}

	tests := []struct {
		name    string
		header  string
		present bool
		userID  string
		wantErr error
	}{
		{"anonymous", "", false, "", nil},
		{"registered viewer", "Bearer good", true, "u1", nil},
		{"lowercase scheme", "bearer good", true, "u1", nil},
		{"unregistered viewer", "Bearer pending", true, "u2", auth.ErrRegistrationIncomplete},
		{"bad token", "Bearer nope", true, "", auth.ErrInvalidToken},
		{"unsupported scheme", "Basic Zm9vOmJhcg==", true, "", auth.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got AuthResult
			h := Authenticate(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = Viewer(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/feed/recommended", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got.Present != tt.present {
				t.Errorf("Present = %v, want %v", got.Present, tt.present)
			}
			if got.Viewer.UserID != tt.userID {
				t.Errorf("UserID = %q, want %q", got.Viewer.UserID, tt.userID)
			}
			if !errors.Is(got.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", got.Err, tt.wantErr)
			}
		})
	}
}

func TestWithViewer(t *testing.T) {
	ctx := WithViewer(context.Background(), auth.Viewer{UserID: "u9", Registered: true})
	if got := ViewerID(ctx); got != "u9" {
		t.Errorf("ViewerID = %q, want u9", got)
	}
	if got := ViewerID(context.Background()); got != "" {
		t.Errorf("ViewerID on empty context = %q", got)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	a := fakeAuthenticator{"good": {viewer: auth.Viewer{UserID: "viewer-1", Registered: true}}}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetErrorCode(r.Context(), "not_found")
		w.WriteHeader(http.StatusNotFound)
	})
	h := RequestID(Logging(logger)(Authenticate(a)(inner)))

	req := httptest.NewRequest(http.MethodGet, "/posts/abc", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{
		`"level":"WARN"`,
		`"status":404`,
		`"path":"/posts/abc"`,
		`"request_id":"req-42"`,
		`"viewer_id":"viewer-1"`,
		`"error_code":"not_found"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %s: %s", want, line)
		}
	}
}

func TestCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	h := CORS(cfg)(okHandler())

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{"same origin", http.MethodGet, "", false, http.StatusOK, ""},
		{"allowed origin", http.MethodGet, "https://app.example.com", false, http.StatusOK, "https://app.example.com"},
		{"rejected origin", http.MethodGet, "https://evil.example.com", false, http.StatusForbidden, ""},
		{"preflight", http.MethodOptions, "https://app.example.com", true, http.StatusNoContent, "https://app.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/feed/following", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.preflight && !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut) {
				t.Errorf("preflight methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	h := CORS(DefaultCORSConfig())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/feed/users", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
}
