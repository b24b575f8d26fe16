package ratelimit

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
)

// NewStore returns a Redis-backed limiter store, or an in-process one when
// rdb is nil.
func NewStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: prefix}
	if opts.Prefix == "" {
		opts.Prefix = "limiter"
	}
	if rdb == nil {
		return memory.NewStoreWithOptions(opts), nil
	}
	return limiterredis.NewStoreWithOptions(rdb, opts)
}

// NewIPLimiter builds a fixed-window per-IP limiter from a rate such as "300-M".
func NewIPLimiter(store limiter.Store, formatted string) (*limiter.Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", formatted, err)
	}
	return limiter.New(store, rate, limiter.WithTrustForwardHeader(true)), nil
}

// IPMiddleware enforces lim per client IP. Store errors answer 503.
func IPMiddleware(lim *limiter.Limiter, onError func(error)) func(http.Handler) http.Handler {
	mw := stdlib.NewMiddleware(lim,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			if onError != nil {
				onError(err)
			}
			common.JSONError(w, http.StatusServiceUnavailable, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable", nil)
		}),
	)
	return mw.Handler
}
