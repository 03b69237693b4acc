package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, "careplanner-test:", time.Minute), mr
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var dest map[string]string
	found, err := c.Get(ctx, PlanKey("p1"), &dest)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Set(ctx, PlanKey("p1"), map[string]string{"a": "b"}))
	assert.NoError(t, c.Delete(ctx, PlanKey("p1")))
	assert.NoError(t, c.Ping(ctx))
	assert.Equal(t, Stats{}, c.Stats())
}

func TestConnect_EmptyAddrDisablesCache(t *testing.T) {
	c, client, err := Connect(context.Background(), "", "", 0, time.Second)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, client)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	c, client, err := Connect(context.Background(), mr.Addr(), "", 0, time.Second)
	require.NoError(t, err)
	require.NotNil(t, c)
	t.Cleanup(func() { client.Close() })
	assert.NoError(t, c.Ping(context.Background()))

	require.NoError(t, c.Set(context.Background(), PlanKey("p1"), "x"))
	assert.True(t, mr.Exists("careplanner:plan:p1"))

	addr := mr.Addr()
	mr.Close()
	_, _, err = Connect(context.Background(), addr, "", 0, time.Second)
	assert.Error(t, err)
}

func TestCache_SetGetDelete(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()
	type plan struct {
		ID    string   `json:"id"`
		Tasks []string `json:"tasks"`
	}

	var got plan
	found, err := c.Get(ctx, PlanKey("p1"), &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, PlanKey("p1"), plan{ID: "p1", Tasks: []string{"walk"}}))
	found, err = c.Get(ctx, PlanKey("p1"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, plan{ID: "p1", Tasks: []string{"walk"}}, got)

	assert.Equal(t, time.Minute, mr.TTL("careplanner-test:plan:p1"))

	require.NoError(t, c.Delete(ctx, PlanKey("p1")))
	assert.False(t, mr.Exists("careplanner-test:plan:p1"))
	found, err = c.Get(ctx, PlanKey("p1"), &got)
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, Stats{Hits: 1, Misses: 2}, c.Stats())
}

func TestCache_Expiry(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, PlanKey("p1"), []string{"walk"}))
	mr.FastForward(2 * time.Minute)

	var got []string
	found, err := c.Get(ctx, PlanKey("p1"), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_ErrorsAreCounted(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("careplanner-test:plan:bad", "{not json"))
	var got map[string]any
	_, err := c.Get(ctx, PlanKey("bad"), &got)
	assert.Error(t, err)

	mr.SetError("ERR server unavailable")
	_, err = c.Get(ctx, PlanKey("p1"), &got)
	assert.Error(t, err)
	mr.SetError("")

	assert.Equal(t, uint64(2), c.Stats().Errors)
}
