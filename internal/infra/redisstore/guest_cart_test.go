package redisstore

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*GuestCartStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewGuestCartStore(client, time.Hour), mr
}

func TestAdd_IncrementsSameProduct(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "g1", "ring-1", 1))
	require.NoError(t, store.Add(ctx, "g1", "ring-1", 2))
	require.NoError(t, store.Add(ctx, "g1", "necklace-1", 1))

	lines, err := store.List(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []model.GuestCartLine{
		{ProductID: "necklace-1", Quantity: 1},
		{ProductID: "ring-1", Quantity: 3},
	}, lines)

	assert.Equal(t, time.Hour, mr.TTL("guest_cart:g1"))
}

func TestAdd_RejectsNonPositive(t *testing.T) {
	store, _ := setupStore(t)
	assert.ErrorIs(t, store.Add(context.Background(), "g1", "ring-1", 0), ErrInvalidQuantity)
}

func TestSetQuantity_BelowOneRemoves(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "g1", "ring-1", 2))

	for _, q := range []int64{0, -5} {
		require.NoError(t, store.Add(ctx, "g1", "ring-1", 1))
		require.NoError(t, store.SetQuantity(ctx, "g1", "ring-1", q))

		lines, err := store.List(ctx, "g1")
		require.NoError(t, err)
		assert.Empty(t, lines)
	}
}

func TestSetQuantity_StoresValue(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "g1", "ring-1", 1))
	require.NoError(t, store.SetQuantity(ctx, "g1", "ring-1", 7))
	//無い商品は作らない
	assert.ErrorIs(t, store.SetQuantity(ctx, "g1", "ghost", 3), repo.ErrNotFound)

	lines, err := store.List(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []model.GuestCartLine{{ProductID: "ring-1", Quantity: 7}}, lines)
}

// 消された行は数量変更で復活しない
func TestSetQuantity_AfterRemoveDoesNotRecreate(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "g1", "ring-1", 1))
	require.NoError(t, store.Add(ctx, "g1", "necklace-1", 1))
	mr.HDel("guest_cart:g1", "ring-1")

	assert.ErrorIs(t, store.SetQuantity(ctx, "g1", "ring-1", 4), repo.ErrNotFound)
	assert.Empty(t, mr.HGet("guest_cart:g1", "ring-1"))
}

func TestSetQuantity_RefreshesTTL(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "g1", "ring-1", 1))
	mr.SetTTL("guest_cart:g1", time.Minute)

	require.NoError(t, store.SetQuantity(ctx, "g1", "ring-1", 2))
	assert.Equal(t, time.Hour, mr.TTL("guest_cart:g1"))
	assert.Equal(t, "2", mr.HGet("guest_cart:g1", "ring-1"))
}

func TestList_RefreshesTTL(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "g1", "ring-1", 1))
	mr.SetTTL("guest_cart:g1", time.Minute)

	_, err := store.List(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("guest_cart:g1"))
}

func TestRemove_MissingIsNoop(t *testing.T) {
	store, _ := setupStore(t)
	assert.NoError(t, store.Remove(context.Background(), "nobody", "ring-1"))
}

func TestTake_ReadsAndDeletes(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "g1", "ring-1", 2))

	lines, err := store.Take(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []model.GuestCartLine{{ProductID: "ring-1", Quantity: 2}}, lines)
	assert.False(t, mr.Exists("guest_cart:g1"))

	again, err := store.Take(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestClear(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "g1", "ring-1", 2))
	require.NoError(t, store.Clear(ctx, "g1"))
	assert.False(t, mr.Exists("guest_cart:g1"))
}

func TestList_RedisDown(t *testing.T) {
	store, mr := setupStore(t)
	mr.Close()

	_, err := store.List(context.Background(), "g1")
	assert.ErrorContains(t, err, "redis list failed")
}
