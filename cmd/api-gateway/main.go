package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
	"github.com/noah-isme/course-registration-api/internal/service"
	"github.com/noah-isme/course-registration-api/pkg/cache"
	"github.com/noah-isme/course-registration-api/pkg/config"
	"github.com/noah-isme/course-registration-api/pkg/database"
	"github.com/noah-isme/course-registration-api/pkg/jobs"
	"github.com/noah-isme/course-registration-api/pkg/logger"
)

// @title Course Registration API
// @version 1.0.0
// @description Enrollment, waitlist and section administration for a course catalog.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.MigrateUp(cfg.Database.URL(), logr); err != nil {
			return err
		}
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	cacheRepo, closeCache := newCacheRepository(ctx, cfg, logr)
	defer closeCache()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr.Named("cache"), cfg.Catalog.CacheEnabled)

	sections := repository.NewSectionRepository(db)
	ledger := repository.NewRegistrationRepository(db)
	users := repository.NewUserRepository(db)
	txm := database.NewTxManager(db, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	validate := validator.New()

	catalog := service.NewCatalogService(sections, cacheSvc, cfg.Catalog.CacheTTL, logr.Named("catalog"))
	queue := jobs.NewQueue("catalog-invalidation", catalog.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Catalog.InvalidationWorker,
		BufferSize: 64,
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	catalog.AttachQueue(queue)

	registrationLog := logr.Named("registration")
	registrations := service.NewRegistrationService(txm, users, sections, ledger, validate, registrationLog, cfg.Registration.WaitlistCap,
		service.WithRegistrationMetrics(metrics),
		service.WithCatalogInvalidator(catalog),
		service.WithDropHook(seatReleasedHook(registrationLog)),
	)

	auth := service.NewAuthService(users, validate, logr.Named("auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		Audience:          splitAudience(cfg.JWT.Audience),
	})

	app := &application{
		cfg:           cfg,
		logger:        logr,
		db:            db,
		metrics:       metrics,
		auth:          auth,
		registrations: registrations,
		waitlists:     service.NewWaitlistService(sections, ledger, logr.Named("waitlist")),
		catalog:       catalog,
		registrar:     service.NewRegistrarService(txm, sections, users, ledger, catalog, validate, logr.Named("registrar")),
		rosters:       service.NewRosterService(users, ledger, logr.Named("roster")),
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("api_prefix", cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCacheRepository prefers Redis and falls back to the in-process cache.
func newCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func()) {
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err == nil {
		repo := repository.NewCacheRepository(client, logr.Named("redis"))
		return repo, func() { _ = repo.Close() }
	}
	if !errors.Is(err, cache.ErrDisabled) {
		logr.Warn("redis unavailable, using in-memory catalog cache", zap.Error(err))
	}
	return repository.NewMemoryCacheRepository(cfg.Catalog.CacheTTL, 2*cfg.Catalog.CacheTTL), func() {}
}

// seatReleasedHook logs the seat or waitlist slot freed by a drop. Waitlisted
// students are not promoted automatically.
func seatReleasedHook(logr *zap.Logger) service.DropHook {
	return func(_ context.Context, section *models.Section, dropped *models.Registration, prior models.RegistrationStatus) error {
		if prior != models.RegistrationEnrolled || section.Waitlist == 0 {
			return nil
		}
		logr.Info("seat released with students waiting",
			zap.String("course_code", section.CourseCode),
			zap.Int("section_number", section.SectionNumber),
			zap.Int("waitlist", section.Waitlist),
			zap.Int64("dropped_student_id", dropped.StudentID),
		)
		return nil
	}
}

func splitAudience(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
