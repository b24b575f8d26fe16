package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshotter persists whole-cart snapshots keyed by session.
type Snapshotter interface {
	Load(ctx context.Context, sessionID string) (Cart, bool, error)
	Save(ctx context.Context, sessionID string, c Cart) error
	Delete(ctx context.Context, sessionID string) error
}

const snapshotVersion = 1

type snapshot struct {
	Version int  `json:"v"`
	Cart    Cart `json:"cart"`
}

// RedisSnapshots stores snapshots as JSON strings with a sliding TTL.
type RedisSnapshots struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

func (s RedisSnapshots) key(sessionID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "cart:"
	}
	return prefix + sessionID
}

func (s RedisSnapshots) ttl() time.Duration {
	if s.TTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.TTL
}

// Load reads the session's snapshot. A missing key reports false.
func (s RedisSnapshots) Load(ctx context.Context, sessionID string) (Cart, bool, error) {
	if s.R == nil {
		return Cart{}, false, errors.New("cart: redis client not configured")
	}
	data, err := s.R.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, false, nil
		}
		return Cart{}, false, fmt.Errorf("load cart snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Cart{}, false, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return snap.Cart, true, nil
}

// Save overwrites the session's snapshot and refreshes its TTL.
func (s RedisSnapshots) Save(ctx context.Context, sessionID string, c Cart) error {
	if s.R == nil {
		return errors.New("cart: redis client not configured")
	}
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Cart: c})
	if err != nil {
		return fmt.Errorf("encode cart snapshot: %w", err)
	}
	if err := s.R.Set(ctx, s.key(sessionID), data, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

// Delete removes the session's snapshot.
func (s RedisSnapshots) Delete(ctx context.Context, sessionID string) error {
	if s.R == nil {
		return errors.New("cart: redis client not configured")
	}
	if err := s.R.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}

// MemorySnapshots keeps snapshots in process memory. It suits single-process
// tools and tests.
type MemorySnapshots struct {
	mu    sync.Mutex
	carts map[string]Cart
}

// NewMemorySnapshots constructs an empty MemorySnapshots.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{carts: make(map[string]Cart)}
}

// Load returns a copy of the stored cart.
func (m *MemorySnapshots) Load(_ context.Context, sessionID string) (Cart, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[sessionID]
	if !ok {
		return Cart{}, false, nil
	}
	return c.Clone(), true, nil
}

// Save stores a copy of c.
func (m *MemorySnapshots) Save(_ context.Context, sessionID string, c Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sessionID] = c.Clone()
	return nil
}

// Delete forgets the session's cart.
func (m *MemorySnapshots) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}
