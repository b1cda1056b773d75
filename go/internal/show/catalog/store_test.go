package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveshow/go/internal/models"
)

func sampleProducts() []*models.Product {
	return []*models.Product{
		{ID: "p1", Price: 10, SaleType: models.SaleTypeAuction, Auction: &models.Auction{ID: "a1", BasePrice: 10}},
		{ID: "p2", Price: 12, SaleType: models.SaleTypeAuction, Auction: &models.Auction{ID: "a2", BasePrice: 12}},
	}
}

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, store Store, roomID string) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, roomID)
	require.ErrorIs(t, err, ErrCacheMiss)

	ok, err := store.UpdateBids(ctx, roomID, "a1", []models.Bid{{BidderID: "u1", Amount: 15}}, 15)
	require.NoError(t, err)
	assert.False(t, ok, "update on a cold room must report a miss")

	require.NoError(t, store.Save(ctx, roomID, sampleProducts()))

	ok, err = store.UpdateBids(ctx, roomID, "a1", []models.Bid{{BidderID: "u1", Amount: 15}}, 15)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateBids(ctx, roomID, "zz", nil, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	products, err := store.Load(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, products, 2)
	p := findAuction(products, "a1")
	require.NotNil(t, p)
	assert.Equal(t, 15.0, p.Auction.HighestBid)
	assert.Equal(t, []models.Bid{{BidderID: "u1", Amount: 15}}, p.Auction.Bids)

	require.NoError(t, store.Invalidate(ctx, roomID))
	_, err = store.Load(ctx, roomID)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(clockwork.NewFakeClock(), time.Minute), "r1")
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "r1", sampleProducts()))
	clock.Advance(2 * time.Minute)

	_, err := store.Load(ctx, "r1")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore_LoadReturnsCopies(t *testing.T) {
	store := NewMemoryStore(nil, 0)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "r1", sampleProducts()))

	products, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	products[0].Auction.BasePrice = 999

	again, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again[0].Auction.BasePrice)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	store, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, KeyPrefix: "liveshow-test", TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store, "room-"+uuid.NewString())
}
