package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// routeSlot is shared by every middleware of one request; chi only knows the
// full pattern after the innermost router has matched.
type routeSlot struct {
	pattern string
}

// WithRoutePattern records the matched router pattern. A slot installed by
// RoutePatternMiddleware is updated in place.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if slot, ok := ctx.Value(routeKey{}).(*routeSlot); ok {
		slot.pattern = pattern
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, &routeSlot{pattern: pattern})
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if slot, ok := ctx.Value(routeKey{}).(*routeSlot); ok {
		return slot.pattern
	}
	return ""
}

// routeLabel returns the matched pattern for r, resolving it from chi once
// routing has happened and caching it in the request's slot.
func routeLabel(r *http.Request, fallback string) string {
	ctx := r.Context()
	if pattern := RoutePatternFromContext(ctx); pattern != "" {
		return pattern
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			if slot, ok := ctx.Value(routeKey{}).(*routeSlot); ok {
				slot.pattern = pattern
			}
			return pattern
		}
	}
	return fallback
}
