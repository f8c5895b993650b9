package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := newRedisCache([]string{fmt.Sprintf("redis://%s", mr.Addr())}, false)
	require.NoError(t, err)
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "interactions:usr_1:50:0", []string{"funnel_start"}, time.Minute))

	var got []string
	require.NoError(t, c.Get(ctx, "interactions:usr_1:50:0", &got))
	assert.Equal(t, []string{"funnel_start"}, got)
}

func TestCacheGet_MissIsNotAnError(t *testing.T) {
	c := newTestCache(t)

	var got []string
	assert.NoError(t, c.Get(context.Background(), "interactions:unknown:50:0", &got))
	assert.Empty(t, got)
}

func TestCacheDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	var got string
	assert.NoError(t, c.Get(ctx, "k", &got))
	assert.Empty(t, got)
}
