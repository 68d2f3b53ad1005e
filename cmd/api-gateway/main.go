package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-intake-api/api/swagger"
	"github.com/noah-isme/course-intake-api/internal/handler"
	internalmiddleware "github.com/noah-isme/course-intake-api/internal/middleware"
	"github.com/noah-isme/course-intake-api/internal/models"
	"github.com/noah-isme/course-intake-api/internal/repository"
	"github.com/noah-isme/course-intake-api/internal/service"
	"github.com/noah-isme/course-intake-api/pkg/cache"
	"github.com/noah-isme/course-intake-api/pkg/config"
	"github.com/noah-isme/course-intake-api/pkg/database"
	"github.com/noah-isme/course-intake-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-intake-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-intake-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-intake-api/pkg/storage"
)

// @title Course Intake API
// @version 1.0.0
// @description Collects course intentions and schedules them into sections and enrollments.
// @BasePath /
// @schemes http https
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable; caching disabled and run lock is process-local", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()

	gateway := repository.NewGateway(db)
	runRepo := repository.NewProcessingRunRepository(db)
	lockRepo := repository.NewRunLockRepository(redisClient, logr)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Processing.ReportCacheTTL, logr, redisClient != nil)
	processingSvc := service.NewIntentionProcessingService(gateway, runRepo, lockRepo, cacheSvc, metricsSvc, logr, service.IntentionProcessingConfig{
		SeatsPerSection: cfg.Processing.SeatsPerSection,
		LockTTL:         cfg.Processing.RunLockTTL,
		ReportCacheTTL:  cfg.Processing.ReportCacheTTL,
	})
	intentionSvc := service.NewIntentionService(
		repository.NewIntentionRepository(db),
		repository.NewStudentRepository(db),
		repository.NewCourseRepository(db),
		validator.New(),
		logr,
	)
	timetableSvc := service.NewTimetableService(gateway, cacheSvc, cfg.Processing.ReportCacheTTL, logr)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(timetableSvc, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	scheduler := service.NewProcessingScheduler(processingSvc, service.ProcessingSchedulerConfig{
		CronEnabled:  cfg.Processing.CronEnabled,
		CronSchedule: cfg.Processing.CronSchedule,
		RunTimeout:   cfg.Processing.RunLockTTL,
	}, logr)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	cleanup := startExportCleanup(exportSvc, cfg.Exports.CleanupInterval, logr)
	defer func() { <-cleanup.Stop().Done() }()

	router := newRouter(cfg, logr, routerDeps{
		auth:       authSvc,
		metrics:    metricsSvc,
		intentions: handler.NewIntentionHandler(intentionSvc),
		processing: handler.NewProcessingHandler(processingSvc, scheduler),
		timetable:  handler.NewTimetableHandler(timetableSvc, exportSvc),
		observe: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"postgres": db,
			"redis":    redisPinger(redisClient),
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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

type routerDeps struct {
	auth       *service.AuthService
	metrics    *service.MetricsService
	intentions *handler.IntentionHandler
	processing *handler.ProcessingHandler
	timetable  *handler.TimetableHandler
	observe    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.metrics))

	r.GET("/health", deps.observe.Health)
	r.GET("/ready", deps.observe.Ready)
	r.GET("/metrics", deps.observe.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := []string{string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleRegistrar)}
	staffOrSelf := append(append([]string{}, staff...), internalmiddleware.RoleSelf)

	api := r.Group(cfg.APIPrefix)
	api.GET("/export/:token", deps.timetable.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(deps.auth))

	secured.POST("/intentions", internalmiddleware.RBAC(staffOrSelf...), deps.intentions.Submit)
	secured.GET("/intentions", internalmiddleware.RBAC(staffOrSelf...), deps.intentions.List)
	secured.POST("/intentions/process", internalmiddleware.RBAC(staff...), deps.processing.Process)

	runs := secured.Group("/processing-runs", internalmiddleware.RBAC(staff...))
	runs.GET("", deps.processing.ListRuns)
	runs.GET("/latest/report", deps.processing.LatestReport)
	runs.GET("/:id", deps.processing.GetRun)

	secured.GET("/timetable", deps.timetable.List)
	secured.POST("/timetable/export", internalmiddleware.RBAC(staff...), deps.timetable.Export)
	secured.GET("/metrics/summary", internalmiddleware.RBAC(staff...), deps.observe.Summary)

	return r
}

func startExportCleanup(exports *service.ExportService, interval time.Duration, logr *zap.Logger) *cron.Cron {
	if interval <= 0 {
		interval = time.Hour
	}
	c := cron.New()
	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		if _, err := exports.Cleanup(0); err != nil {
			logr.Warn("export cleanup failed", zap.Error(err))
		}
	}))
	c.Start()
	return c
}

func redisPinger(client *redis.Client) handler.Pinger {
	if client == nil {
		return nil
	}
	return handler.PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}
