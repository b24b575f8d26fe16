package cart_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/cart"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisSnapshotsRoundTripAndTTL(t *testing.T) {
	client, mr := newRedis(t)
	store := cart.RedisSnapshots{R: client, TTL: time.Hour}
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "till-1")
	require.NoError(t, err)
	require.False(t, ok)

	in := cart.Cart{
		Lines:    []cart.Line{{ID: "l1", ProductID: "chair", ProductType: catalog.ProductRegular, UnitPrice: 10, Quantity: 2, Stock: 4}},
		Discount: 3,
		Notes:    "gift wrap",
	}
	require.NoError(t, store.Save(ctx, "till-1", in))
	require.True(t, mr.Exists("cart:till-1"))
	require.Equal(t, time.Hour, mr.TTL("cart:till-1"))

	out, ok, err := store.Load(ctx, "till-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in.Lines, out.Lines)
	require.Equal(t, "gift wrap", out.Notes)

	_, ok, err = store.Load(ctx, "till-2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Delete(ctx, "till-1"))
	require.False(t, mr.Exists("cart:till-1"))
}

func TestRedisSnapshotsRejectsCorruptPayload(t *testing.T) {
	client, mr := newRedis(t)
	require.NoError(t, mr.Set("cart:till-1", "{not json"))
	_, _, err := cart.RedisSnapshots{R: client}.Load(context.Background(), "till-1")
	require.Error(t, err)
}
