package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

type memoryCacheRepo struct {
	items map[string][]byte
	ttls  map[string]time.Duration
	err   error

	// deleteErr fails DeleteByPattern only.
	deleteErr error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if r.err != nil {
		return r.err
	}
	raw, ok := r.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.items[key] = raw
	r.ttls[key] = ttl
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for key := range r.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(r.items, key)
		}
	}
	return nil
}

func TestCacheServiceNamespacesKeys(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)

	require.NoError(t, svc.Set(context.Background(), "timetable:2024FA", []string{"CS101"}, 0))
	assert.Contains(t, repo.items, "course-intake:timetable:2024FA")
	assert.Equal(t, time.Minute, repo.ttls["course-intake:timetable:2024FA"])

	var out []string
	hit, err := svc.Get(context.Background(), "timetable:2024FA", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"CS101"}, out)

	hit, err = svc.Get(context.Background(), "timetable:2025SP", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestCacheServiceInvalidate(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "timetable:2024FA", 1, 0))
	require.NoError(t, svc.Set(ctx, "processing:report:latest", 2, 0))

	require.NoError(t, svc.Invalidate(ctx, "timetable:*"))
	assert.NotContains(t, repo.items, "course-intake:timetable:2024FA")
	assert.Contains(t, repo.items, "course-intake:processing:report:latest")
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.items)
	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.NoError(t, err)
	assert.False(t, hit)

	var nilSvc *CacheService
	hit, err = nilSvc.Get(context.Background(), "k", &out)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.err = errors.New("redis down")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.Error(t, err)
	assert.False(t, hit)
}
