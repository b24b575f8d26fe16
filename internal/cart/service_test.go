package cart_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/cart"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/configurator"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/lock"
)

type stubCatalog struct {
	products   map[string]catalog.Product
	composites map[string]catalog.CompositeProduct
}

func (s stubCatalog) Product(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (s stubCatalog) Composite(_ context.Context, id string) (catalog.CompositeProduct, error) {
	p, ok := s.composites[id]
	if !ok {
		return catalog.CompositeProduct{}, catalog.ErrNotFound
	}
	return p, nil
}

func demoCatalog() stubCatalog {
	return stubCatalog{
		products: map[string]catalog.Product{
			"chair": {ID: "chair", Name: "Dining chair", Price: 120_000, Stock: 10,
				Variants: []catalog.VariantOption{{Name: "Finish", Value: "oak", ExtraPrice: 10_000, Stock: 3}}},
			"stool": {ID: "stool", Name: "Bar stool", Price: 80_000, Stock: 0},
		},
		composites: map[string]catalog.CompositeProduct{
			"sofa": {ID: "sofa", Name: "Modular sofa", BasePrice: 900_000, Combinations: []catalog.Combination{
				{ID: "k1", OptionA: catalog.VariantOption{Value: "oak"}, OptionB: catalog.VariantOption{Value: "linen"}, ExtraPrice: 50_000, Stock: 2},
			}},
		},
	}
}

func newCartService(locker cart.Locker) (*cart.Service, *cart.MemorySnapshots) {
	snaps := cart.NewMemorySnapshots()
	n := 0
	var mu sync.Mutex
	return &cart.Service{
		Snapshots: snaps,
		Catalog:   demoCatalog(),
		Locker:    locker,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("line-%d", n)
		},
	}, snaps
}

func TestServiceAddResolvesCatalog(t *testing.T) {
	svc, snaps := newCartService(nil)
	ctx := context.Background()

	res, c, err := svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "chair", ProductType: catalog.ProductRegular, VariantValue: "oak", Qty: 5})
	require.NoError(t, err)
	require.Equal(t, cart.OutcomePartiallyFulfilled, res.Outcome)
	require.Equal(t, 3, res.Applied)
	require.Equal(t, int64(130_000), c.Lines[0].UnitPrice)

	res, c, err = svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "sofa", ProductType: catalog.ProductSpecial, OptionA: "oak", OptionB: "linen", Qty: 1})
	require.NoError(t, err)
	require.Equal(t, cart.OutcomeAdded, res.Outcome)
	require.Equal(t, int64(950_000), c.Lines[1].UnitPrice)
	require.Equal(t, "k1", *c.Lines[1].CombinationID)

	stored, ok, err := snaps.Load(ctx, "till-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stored.Lines, 2)
	require.False(t, stored.UpdatedAt.IsZero())
}

func TestServiceAddErrorsLeaveCartUnchanged(t *testing.T) {
	svc, snaps := newCartService(nil)
	ctx := context.Background()

	_, _, err := svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "sofa", ProductType: catalog.ProductSpecial, OptionA: "oak", OptionB: "velvet", Qty: 1})
	require.ErrorIs(t, err, configurator.ErrNotFound)

	_, _, err = svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "stool", ProductType: catalog.ProductRegular, Qty: 1})
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	_, _, err = svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "chair", ProductType: catalog.ProductRegular, Qty: 1})
	require.ErrorIs(t, err, cart.ErrVariantRequired)

	_, _, err = svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "chair", ProductType: catalog.ProductRegular, VariantValue: "pine", Qty: 1})
	require.ErrorIs(t, err, cart.ErrVariantNotFound)

	_, _, err = svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "ghost", ProductType: catalog.ProductRegular, Qty: 1})
	require.ErrorIs(t, err, catalog.ErrNotFound)

	_, ok, err := snaps.Load(ctx, "till-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc, _ := newCartService(nil)
	ctx := context.Background()
	_, _, err := svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "chair", ProductType: catalog.ProductRegular, VariantValue: "oak", Qty: 1})
	require.NoError(t, err)

	other, err := svc.Get(ctx, "till-2")
	require.NoError(t, err)
	require.Empty(t, other.Lines)
}

func TestServiceUpdateRemoveDiscountNotesClear(t *testing.T) {
	svc, snaps := newCartService(nil)
	ctx := context.Background()
	res, _, err := svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "chair", ProductType: catalog.ProductRegular, VariantValue: "oak", Qty: 1})
	require.NoError(t, err)
	lineID := res.Line.ID

	upd, c, err := svc.UpdateQuantity(ctx, "till-1", lineID, 9)
	require.NoError(t, err)
	require.Equal(t, cart.OutcomeClamped, upd.Outcome)
	require.Equal(t, 3, c.Lines[0].Quantity)

	c, err = svc.SetDiscount(ctx, "till-1", 20_000)
	require.NoError(t, err)
	require.Equal(t, int64(370_000), c.Totals().Total)

	_, err = svc.SetDiscount(ctx, "till-1", -1)
	require.ErrorIs(t, err, cart.ErrInvalidDiscount)

	c, err = svc.SetNotes(ctx, "till-1", "call before delivery")
	require.NoError(t, err)
	require.Equal(t, "call before delivery", c.Notes)

	c, err = svc.RemoveLine(ctx, "till-1", lineID)
	require.NoError(t, err)
	require.Empty(t, c.Lines)
	_, err = svc.RemoveLine(ctx, "till-1", lineID)
	require.ErrorIs(t, err, cart.ErrLineNotFound)

	require.NoError(t, svc.Clear(ctx, "till-1"))
	_, ok, _ := snaps.Load(ctx, "till-1")
	require.False(t, ok)
}

func TestServiceConcurrentAddsMergeUnderRedisLock(t *testing.T) {
	client, _ := newRedis(t)
	svc, _ := newCartService(lock.Locker{R: client, RetryBackoff: time.Millisecond})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Add(ctx, "till-1", cart.AddRequest{ProductID: "sofa", ProductType: catalog.ProductSpecial, OptionA: "oak", OptionB: "linen", Qty: 1})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := svc.Get(ctx, "till-1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	require.Equal(t, 2, c.Lines[0].Quantity)
}

type failingSnapshots struct{ *cart.MemorySnapshots }

func (failingSnapshots) Save(context.Context, string, cart.Cart) error {
	return errors.New("disk full")
}

func TestServiceSaveFailureReturnsError(t *testing.T) {
	svc, _ := newCartService(nil)
	svc.Snapshots = failingSnapshots{cart.NewMemorySnapshots()}
	_, _, err := svc.Add(context.Background(), "till-1", cart.AddRequest{ProductID: "chair", ProductType: catalog.ProductRegular, VariantValue: "oak", Qty: 1})
	require.ErrorContains(t, err, "disk full")
}
