package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/jobs"
)

type stubCatalogStore struct {
	mu      sync.Mutex
	calls   int
	classes []models.AvailableClass
	err     error
	during  func()
}

func (s *stubCatalogStore) ListAvailable(ctx context.Context, department string) ([]models.AvailableClass, error) {
	if s.during != nil {
		s.during()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.classes, nil
}

func (s *stubCatalogStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubEnqueuer struct {
	jobs []jobs.Job
	err  error
}

func (s *stubEnqueuer) TryEnqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func newCatalogFixture() (*CatalogService, *stubCatalogStore) {
	store := &stubCatalogStore{classes: []models.AvailableClass{{CourseCode: "CS101", CourseName: "Intro to CS", Department: "CS", SectionNumber: 1, MaxEnrollment: 30}}}
	cache := NewCacheService(repository.NewMemoryCacheRepository(time.Minute, time.Minute), nil, time.Minute, nil, true)
	return NewCatalogService(store, cache, time.Minute, nil), store
}

func TestCatalogListUsesCache(t *testing.T) {
	svc, store := newCatalogFixture()
	ctx := context.Background()

	first, hit, err := svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := svc.ListAvailable(ctx, " CS ")
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.callCount())
}

func TestCatalogListValidation(t *testing.T) {
	svc, _ := newCatalogFixture()

	_, _, err := svc.ListAvailable(context.Background(), "  ")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCatalogListStoreError(t *testing.T) {
	svc, store := newCatalogFixture()
	store.err = errors.New("db down")

	_, _, err := svc.ListAvailable(context.Background(), "CS")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestCatalogInvalidateInlineWithoutQueue(t *testing.T) {
	svc, store := newCatalogFixture()
	ctx := context.Background()

	_, _, err := svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	svc.InvalidateAsync("enroll")
	_, _, err = svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)

	assert.Equal(t, 2, store.callCount())
}

func TestCatalogSkipsCachingListingLoadedDuringInvalidation(t *testing.T) {
	svc, store := newCatalogFixture()
	ctx := context.Background()
	store.during = func() {
		store.during = nil
		svc.InvalidateAsync("enroll")
	}

	_, hit, err := svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, store.callCount())

	_, hit, err = svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCatalogInvalidateThroughQueue(t *testing.T) {
	svc, store := newCatalogFixture()
	queue := &stubEnqueuer{}
	svc.AttachQueue(queue)
	ctx := context.Background()

	_, _, err := svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	svc.InvalidateAsync("drop")
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobCatalogInvalidate, queue.jobs[0].Type)

	_, _, err = svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	assert.Equal(t, 1, store.callCount())

	require.NoError(t, svc.HandleJob(ctx, queue.jobs[0]))
	_, _, err = svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount())
}

func TestCatalogInvalidateFallsBackWhenQueueFull(t *testing.T) {
	svc, store := newCatalogFixture()
	svc.AttachQueue(&stubEnqueuer{err: jobs.ErrQueueFull})
	ctx := context.Background()

	_, _, err := svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	svc.InvalidateAsync("registrar")
	_, _, err = svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount())
}

func TestCatalogWithRealQueue(t *testing.T) {
	svc, store := newCatalogFixture()
	queue := jobs.NewQueue("catalog", svc.HandleJob, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()
	svc.AttachQueue(queue)
	ctx := context.Background()

	_, _, err := svc.ListAvailable(ctx, "CS")
	require.NoError(t, err)
	svc.InvalidateAsync("enroll")

	require.Eventually(t, func() bool {
		_, _, err := svc.ListAvailable(ctx, "CS")
		return err == nil && store.callCount() == 2
	}, time.Second, 5*time.Millisecond)
}
