package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/configurator"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/lock"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/obs"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
)

// CatalogReader loads the products a cart line can be built from.
type CatalogReader interface {
	Product(ctx context.Context, id string) (catalog.Product, error)
	Composite(ctx context.Context, id string) (catalog.CompositeProduct, error)
}

// Locker serializes work on one key across replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// AddRequest selects what to add: a regular product (optionally one of its
// variants) or a composite product through its option pair.
type AddRequest struct {
	ProductID    string
	ProductType  catalog.ProductType
	VariantValue string
	OptionA      string
	OptionB      string
	Qty          int
}

// Service applies cart mutations to persisted per-session snapshots. Every
// mutation loads the snapshot, applies the change and saves it while holding
// the session's lock, so the snapshot has a single writer.
type Service struct {
	Snapshots Snapshotter
	Catalog   CatalogReader
	Locker    Locker
	LockTTL   time.Duration
	Now       func() time.Time
	NewID     func() string
	Logger    zerolog.Logger

	local sync.Mutex
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

// Get returns the session's cart, empty if none was persisted.
func (s *Service) Get(ctx context.Context, sessionID string) (Cart, error) {
	return s.load(ctx, sessionID)
}

func (s *Service) load(ctx context.Context, sessionID string) (Cart, error) {
	if s.Snapshots == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	c, ok, err := s.Snapshots.Load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	if !ok {
		return Cart{Lines: []Line{}}, nil
	}
	c.Normalize(s.newID)
	return c, nil
}

// Mutate runs fn against the session's cart under the session lock and
// persists the result. When fn fails nothing is saved.
func (s *Service) Mutate(ctx context.Context, sessionID string, fn func(*Cart) error) (Cart, error) {
	var out Cart
	err := s.withLock(ctx, sessionID, func(ctx context.Context) error {
		c, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		working := c.Clone()
		if err := fn(&working); err != nil {
			return err
		}
		working.UpdatedAt = s.now()
		if err := s.Snapshots.Save(ctx, sessionID, working); err != nil {
			return err
		}
		out = working
		return nil
	})
	return out, err
}

func (s *Service) withLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if s.Locker != nil {
		return s.Locker.WithLock(ctx, lock.SessionKey(sessionID, "cart"), s.lockTTL(), fn)
	}
	s.local.Lock()
	defer s.local.Unlock()
	return fn(ctx)
}

// Candidate resolves an add request against the catalog.
func (s *Service) Candidate(ctx context.Context, req AddRequest) (Candidate, error) {
	if s.Catalog == nil {
		return Candidate{}, errors.New("cart catalog not configured")
	}
	switch req.ProductType {
	case catalog.ProductSpecial:
		p, err := s.Catalog.Composite(ctx, req.ProductID)
		if err != nil {
			return Candidate{}, err
		}
		combo, err := configurator.Resolve(&p, strings.TrimSpace(req.OptionA), strings.TrimSpace(req.OptionB))
		if err != nil {
			obs.RecordResolve("not_found")
			return Candidate{}, err
		}
		obs.RecordResolve("resolved")
		return Candidate{
			ProductID:   p.ID,
			ProductType: catalog.ProductSpecial,
			Name:        fmt.Sprintf("%s (%s / %s)", p.Name, combo.OptionA.Value, combo.OptionB.Value),
			Image:       combo.FinalImage,
			UnitPrice:   configurator.UnitPrice(&p, combo),
			Combination: combo,
		}, nil
	case catalog.ProductRegular:
		p, err := s.Catalog.Product(ctx, req.ProductID)
		if err != nil {
			return Candidate{}, err
		}
		cand := Candidate{
			ProductID:    p.ID,
			ProductType:  catalog.ProductRegular,
			Name:         p.Name,
			Image:        p.Image,
			UnitPrice:    p.Price,
			ProductStock: p.Stock,
		}
		value := strings.TrimSpace(req.VariantValue)
		if value == "" {
			if len(p.Variants) > 0 {
				return Candidate{}, ErrVariantRequired
			}
			return cand, nil
		}
		v, ok := p.Variant(value)
		if !ok {
			return Candidate{}, ErrVariantNotFound
		}
		cand.Variant = &v
		cand.UnitPrice = configurator.VariantUnitPrice(p, &v)
		if v.Image != nil {
			cand.Image = v.Image
		}
		return cand, nil
	default:
		return Candidate{}, fmt.Errorf("cart: unknown product type %q", req.ProductType)
	}
}

// Add resolves the request and adds it to the session's cart.
func (s *Service) Add(ctx context.Context, sessionID string, req AddRequest) (AddResult, Cart, error) {
	if req.Qty <= 0 {
		return AddResult{}, Cart{}, ErrInvalidQuantity
	}
	cand, err := s.Candidate(ctx, req)
	if err != nil {
		obs.RecordCartMutation("add", "rejected")
		return AddResult{}, Cart{}, err
	}
	return s.AddCandidate(ctx, sessionID, cand, req.Qty)
}

// AddCandidate adds an already resolved candidate.
func (s *Service) AddCandidate(ctx context.Context, sessionID string, cand Candidate, qty int) (AddResult, Cart, error) {
	var res AddResult
	c, err := s.Mutate(ctx, sessionID, func(c *Cart) error {
		var err error
		res, err = c.AddLine(cand, qty, s.newID)
		return err
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrOutOfStock) {
			outcome = "OUT_OF_STOCK"
		}
		obs.RecordCartMutation("add", outcome)
		return AddResult{}, Cart{}, err
	}
	obs.RecordCartMutation("add", string(res.Outcome))
	s.Logger.Debug().Str("session_id", sessionID).Str("line_id", res.Line.ID).
		Str("outcome", string(res.Outcome)).Int("requested", res.Requested).Int("applied", res.Applied).
		Msg("cart_mutation")
	return res, c, nil
}

// UpdateQuantity changes a line's quantity.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, lineID string, qty int) (UpdateResult, Cart, error) {
	var res UpdateResult
	c, err := s.Mutate(ctx, sessionID, func(c *Cart) error {
		var err error
		res, err = c.UpdateQuantity(lineID, qty)
		return err
	})
	if err != nil {
		obs.RecordCartMutation("update", "error")
		return UpdateResult{}, Cart{}, err
	}
	obs.RecordCartMutation("update", string(res.Outcome))
	return res, c, nil
}

// RemoveLine drops one line.
func (s *Service) RemoveLine(ctx context.Context, sessionID, lineID string) (Cart, error) {
	c, err := s.Mutate(ctx, sessionID, func(c *Cart) error {
		return c.RemoveLine(lineID)
	})
	obs.RecordCartMutation("remove", outcomeOf(err))
	return c, err
}

// SetDiscount updates the cart-level discount.
func (s *Service) SetDiscount(ctx context.Context, sessionID string, amount pricing.Money) (Cart, error) {
	c, err := s.Mutate(ctx, sessionID, func(c *Cart) error {
		return c.SetDiscount(amount)
	})
	obs.RecordCartMutation("discount", outcomeOf(err))
	return c, err
}

// SetNotes updates the cart notes.
func (s *Service) SetNotes(ctx context.Context, sessionID, notes string) (Cart, error) {
	c, err := s.Mutate(ctx, sessionID, func(c *Cart) error {
		c.SetNotes(notes)
		return nil
	})
	obs.RecordCartMutation("notes", outcomeOf(err))
	return c, err
}

// Clear empties the session's cart and deletes its snapshot.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if s.Snapshots == nil {
		return errors.New("cart service not configured")
	}
	err := s.withLock(ctx, sessionID, func(ctx context.Context) error {
		return s.Snapshots.Delete(ctx, sessionID)
	})
	obs.RecordCartMutation("clear", outcomeOf(err))
	return err
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
