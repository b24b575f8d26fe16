package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
)

// Service serves catalog read models through a read-through cache. Live stock
// always goes to the source.
type Service struct {
	source Source
	cache  *Cache
	logger zerolog.Logger
	// misses collapses concurrent source loads of the same key.
	misses singleflight.Group
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source Source
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("catalog: source is required")
	}
	return &Service{source: cfg.Source, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// Product returns a regular product by id.
func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, ErrNotFound
	}
	var p Product
	if s.cached(ctx, productKey(id), &p) {
		return p, nil
	}
	return load(ctx, s, productKey(id), func(ctx context.Context) (Product, error) {
		return s.source.Product(ctx, id)
	})
}

// Composite returns a composite product with its combinations.
func (s *Service) Composite(ctx context.Context, id string) (CompositeProduct, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CompositeProduct{}, ErrNotFound
	}
	var c CompositeProduct
	if s.cached(ctx, compositeKey(id), &c) {
		return c, nil
	}
	return load(ctx, s, compositeKey(id), func(ctx context.Context) (CompositeProduct, error) {
		return s.source.Composite(ctx, id)
	})
}

// ListProducts returns all regular products.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	var items []Product
	if s.cached(ctx, productListKey, &items) {
		return items, nil
	}
	return load(ctx, s, productListKey, func(ctx context.Context) ([]Product, error) {
		items, err := s.source.ListProducts(ctx)
		if items == nil && err == nil {
			items = []Product{}
		}
		return items, err
	})
}

// ListComposites returns composite product headers.
func (s *Service) ListComposites(ctx context.Context) ([]CompositeProduct, error) {
	var items []CompositeProduct
	if s.cached(ctx, compositeListKey, &items) {
		return items, nil
	}
	return load(ctx, s, compositeListKey, func(ctx context.Context) ([]CompositeProduct, error) {
		items, err := s.source.ListComposites(ctx)
		if items == nil && err == nil {
			items = []CompositeProduct{}
		}
		return items, err
	})
}

// LiveStock returns current stock for the referenced bucket, bypassing the cache.
func (s *Service) LiveStock(ctx context.Context, ref StockRef) (int, error) {
	return s.source.LiveStock(ctx, ref)
}

// Invalidate drops cached entries for the id and the list views.
func (s *Service) Invalidate(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, productKey(id), compositeKey(id), productListKey, compositeListKey)
}

// load fetches key from the source on a cache miss, sharing one source call
// between concurrent callers, and caches the result.
func load[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err, _ := s.misses.Do(key, func() (any, error) {
		loaded, err := fetch(ctx)
		if err != nil {
			return loaded, err
		}
		s.store(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, unavailable(err)
	}
	return v.(T), nil
}

// unavailable tags source failures so handlers answer 503 instead of 500.
// ErrNotFound and cancellations pass through untouched.
func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return err
	}
	return common.NewAppError("CATALOG_UNAVAILABLE", "catalog is temporarily unavailable", http.StatusServiceUnavailable, err)
}

func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.GetJSON(ctx, key, dst)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		return false
	}
	return ok
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if err := s.cache.SetJSON(ctx, key, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}
