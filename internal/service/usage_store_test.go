package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUsageStoreAccumulates(t *testing.T) {
	store := NewMemoryUsageStore()
	ctx := context.Background()

	require.NoError(t, store.AddModelUsage(ctx, "gpt-4o", 1, 1200))
	require.NoError(t, store.AddModelUsage(ctx, "gpt-4o", 2, 800))
	require.NoError(t, store.AddModelUsage(ctx, "deepseek-chat", 1, 400))

	usage, err := store.GetModelUsage(ctx, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 3, usage.Requests)
	assert.Equal(t, int64(2000), usage.Tokens)

	all, err := store.ListModelUsage(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all["deepseek-chat"].Requests)
}

func TestMemoryUsageStoreUnknownModel(t *testing.T) {
	store := NewMemoryUsageStore()

	usage, err := store.GetModelUsage(context.Background(), "never-used")
	require.NoError(t, err)
	assert.Zero(t, usage.Requests)
	assert.Zero(t, usage.Tokens)
}

func TestMemoryUsageStoreConcurrentAdds(t *testing.T) {
	store := NewMemoryUsageStore()
	ctx := context.Background()

	const writers = 16
	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				_ = store.AddModelUsage(ctx, "gpt-4o", 1, 10)
			}
		}()
	}
	wg.Wait()

	usage, err := store.GetModelUsage(ctx, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, writers*rounds, usage.Requests)
	assert.Equal(t, int64(writers*rounds*10), usage.Tokens)
}
