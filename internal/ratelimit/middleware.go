package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/session"
)

// Allower decides whether one more event fits in the window for key.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config describes how to derive a rate limit key and thresholds. An empty
// key skips limiting for that request.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces rate limits before delegating to the next handler. Limiter
// failures fail open.
type Handler struct {
	Limiter Allower
	Config  Config
	OnError func(error)
}

// SessionKey limits per POS session, falling back to the client IP.
func SessionKey(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		if id, ok := session.FromContext(r.Context()); ok {
			return scope + ":session:" + id
		}
		return scope + ":ip:" + common.ClientIP(r)
	}
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil || h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Config.Key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		limitValue := h.Config.Max
		if limitValue < 0 {
			limitValue = 0
		}
		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(limitValue))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
