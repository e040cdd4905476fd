// internal/checkpoint/cache_test.go
package checkpoint

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestCache(t *testing.T) (*StateCache, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return NewStateCache(client), srv
}

// ==========================
// Cache Tests
// ==========================

func TestStateCache_PutAndGet(t *testing.T) {
	cache, _ := newTestCache(t)
	state := createTestState("run-1", models.StageEligibility)

	err := cache.Put(context.Background(), state)
	assert.NoError(t, err)

	got, err := cache.Get(context.Background(), "run-1")
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, models.StageEligibility, got.Stage)
	assert.Equal(t, "app-1", got.Profile.ApplicantID)
}

func TestStateCache_GetMissing(t *testing.T) {
	cache, _ := newTestCache(t)

	// A cache miss is not an error.
	got, err := cache.Get(context.Background(), "missing-run")

	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStateCache_PutOverwrites(t *testing.T) {
	cache, _ := newTestCache(t)

	first := createTestState("run-1", models.StageExtracting)
	assert.NoError(t, cache.Put(context.Background(), first))

	second := createTestState("run-1", models.StageFinalized)
	second.Terminal = true
	assert.NoError(t, cache.Put(context.Background(), second))

	got, err := cache.Get(context.Background(), "run-1")
	assert.NoError(t, err)
	assert.Equal(t, models.StageFinalized, got.Stage)
	assert.True(t, got.Terminal)
}

func TestStateCache_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t)

	assert.NoError(t, cache.Put(context.Background(), createTestState("run-1", models.StagePending)))
	assert.NoError(t, cache.Invalidate(context.Background(), "run-1"))

	got, err := cache.Get(context.Background(), "run-1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStateCache_ServerDown(t *testing.T) {
	cache, srv := newTestCache(t)
	srv.Close()

	err := cache.Put(context.Background(), createTestState("run-1", models.StagePending))
	assert.Error(t, err)

	_, err = cache.Get(context.Background(), "run-1")
	assert.Error(t, err)
}
