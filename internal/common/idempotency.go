package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader carries the client supplied replay key.
const IdempotencyHeader = "Idempotency-Key"

// Idem provides an Idempotency-Key middleware backed by Redis. Scope, when set,
// namespaces keys (for example by session) so two terminals cannot collide.
type Idem struct {
	R     *redis.Client
	TTL   time.Duration
	Scope func(*http.Request) string
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 10 * time.Minute
	}
	return i.TTL
}

func (i Idem) key(r *http.Request, header string) string {
	parts := []string{r.Method, r.URL.Path, header}
	if i.Scope != nil {
		parts = append([]string{i.Scope(r)}, parts...)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := i.key(r, header)
		ok, err := i.R.SetNX(ctx, key, "locked", i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		defer func() {
			// the key must expire even if the handler panics
			_ = i.R.Expire(context.Background(), key, i.ttl()).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
