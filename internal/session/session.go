package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
)

type contextKey string

const sessionContextKey contextKey = "session.id"

// DefaultHeader names the header each terminal sends its session identifier in.
const DefaultHeader = "X-Session-ID"

const maxIDLength = 128

// Resolver resolves POS session identifiers from a header, falling back to a cookie.
type Resolver struct {
	HeaderName string
	CookieName string
}

// NewResolver returns a resolver reading the given header. If headerName is empty,
// "X-Session-ID" is used.
func NewResolver(headerName string) *Resolver {
	headerName = strings.TrimSpace(headerName)
	if headerName == "" {
		headerName = DefaultHeader
	}
	return &Resolver{HeaderName: headerName, CookieName: "pos_session"}
}

// Resolve extracts a well formed session identifier or returns "".
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.HeaderName)); id != "" {
		if Valid(id) {
			return id
		}
		return ""
	}
	if r.CookieName != "" {
		if c, err := req.Cookie(r.CookieName); err == nil && Valid(strings.TrimSpace(c.Value)) {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}

// Middleware injects the resolved session into the request context when present.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if id := r.Resolve(req); id != "" {
			req = req.WithContext(WithSession(req.Context(), id))
		}
		next.ServeHTTP(w, req)
	})
}

// RequireSession rejects requests that reached it without a session in context.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, ok := FromContext(req.Context()); !ok {
			common.JSONError(w, http.StatusBadRequest, "SESSION_REQUIRED", "a session identifier is required", nil)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// Valid reports whether id is usable as a session identifier and storage key part.
func Valid(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// WithSession stores the session identifier inside the context.
func WithSession(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionContextKey, id)
}

// FromContext extracts the session identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionContextKey).(string)
	if !ok {
		return "", false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return id, true
}

// PrefixKey creates a namespaced cache key per session.
func PrefixKey(id, key string) string {
	if id == "" {
		return key
	}
	return "session:" + id + ":" + key
}
