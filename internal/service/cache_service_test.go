package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/repository"
)

type failingCacheRepo struct{}

func (failingCacheRepo) Get(context.Context, string, interface{}) error { return errors.New("boom") }
func (failingCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("boom")
}
func (failingCacheRepo) DeleteByPattern(context.Context, string) error { return errors.New("boom") }

func TestCacheServiceHitAndMiss(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(repository.NewMemoryCacheRepository(time.Minute, time.Minute), metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, "catalog:classes:CS", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "catalog:classes:CS", []string{"CS101"}, 0))
	hit, err = svc.Get(ctx, "catalog:classes:CS", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"CS101"}, out)

	require.NoError(t, svc.Invalidate(ctx, "catalog:*"))
	hit, err = svc.Get(ctx, "catalog:classes:CS", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
}

func TestCacheServiceDisabled(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{}, nil, 0, nil, false)

	var out string
	hit, err := svc.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, svc.Set(context.Background(), "k", "v", 0))
	assert.NoError(t, svc.Invalidate(context.Background(), "*"))
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{}, nil, 0, nil, true)

	var out string
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.Error(t, err)
	assert.False(t, hit)
	assert.Error(t, svc.Invalidate(context.Background(), "*"))
}
