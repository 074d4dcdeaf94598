package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/jobs"
)

const (
	catalogCachePrefix = "catalog:classes:"
	// JobCatalogInvalidate is the job type handled by CatalogService.HandleJob.
	JobCatalogInvalidate = "catalog.invalidate"
)

type catalogStore interface {
	ListAvailable(ctx context.Context, department string) ([]models.AvailableClass, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// CatalogService serves the department class listing through the cache and
// drops cached listings whenever section counters or offerings change.
//
// generation is bumped by every invalidation request. A listing loaded while
// the generation moved is returned but not cached, so a slow reader cannot
// store pre-commit counters after the invalidation for that commit ran.
// Writes made through another process are bounded by the cache TTL only.
type CatalogService struct {
	store      catalogStore
	cache      *CacheService
	queue      jobEnqueuer
	ttl        time.Duration
	logger     *zap.Logger
	generation atomic.Uint64
}

// NewCatalogService constructs a CatalogService. cache may be nil.
func NewCatalogService(store catalogStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{store: store, cache: cache, ttl: ttl, logger: logger}
}

// AttachQueue routes invalidations through a background queue.
func (s *CatalogService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// ListAvailable returns every section offered by the department and whether
// the listing was served from cache.
func (s *CatalogService) ListAvailable(ctx context.Context, department string) ([]models.AvailableClass, bool, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "department is required")
	}

	key := catalogCachePrefix + department
	var cached []models.AvailableClass
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}

	gen := s.generation.Load()
	classes, err := s.store.ListAvailable(ctx, department)
	if err != nil {
		return nil, false, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list available classes")
	}
	if s.generation.Load() == gen {
		_ = s.cache.Set(ctx, key, classes, s.ttl)
	}
	return classes, false, nil
}

// InvalidateAsync schedules removal of every cached listing. It falls back to an
// inline invalidation when no queue is attached or the queue is saturated.
func (s *CatalogService) InvalidateAsync(reason string) {
	if !s.cache.Enabled() {
		return
	}
	s.generation.Add(1)
	if s.queue != nil {
		err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: JobCatalogInvalidate, Payload: reason})
		if err == nil {
			return
		}
		if !errors.Is(err, jobs.ErrQueueFull) {
			s.logger.Warn("catalog invalidation not queued", zap.String("reason", reason), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.cache.Invalidate(ctx, catalogCachePrefix+"*")
}

// HandleJob is the queue handler for catalog invalidation jobs.
func (s *CatalogService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobCatalogInvalidate {
		s.logger.Warn("ignoring unknown job type", zap.String("type", job.Type))
		return nil
	}
	if err := s.cache.Invalidate(ctx, catalogCachePrefix+"*"); err != nil {
		return err
	}
	s.logger.Debug("catalog cache invalidated", zap.Any("reason", job.Payload))
	return nil
}
