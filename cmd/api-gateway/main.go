package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/duotopia/duotopia-api/api/swagger"
	"github.com/duotopia/duotopia-api/internal/authz"
	"github.com/duotopia/duotopia-api/internal/handler"
	"github.com/duotopia/duotopia-api/internal/middleware"
	"github.com/duotopia/duotopia-api/internal/repository"
	"github.com/duotopia/duotopia-api/internal/service"
	"github.com/duotopia/duotopia-api/internal/speech"
	"github.com/duotopia/duotopia-api/pkg/cache"
	"github.com/duotopia/duotopia-api/pkg/config"
	"github.com/duotopia/duotopia-api/pkg/database"
	"github.com/duotopia/duotopia-api/pkg/jobs"
	"github.com/duotopia/duotopia-api/pkg/logger"
	corsmiddleware "github.com/duotopia/duotopia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/duotopia/duotopia-api/pkg/middleware/requestid"
	"github.com/duotopia/duotopia-api/pkg/storage"
)

// @title Duotopia API
// @version 0.1.0
// @description Language-learning backend: organizations, speech assessment, batch grading
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, quotas and token cache disabled", "error", err)
		redisClient = nil
	}

	recordings, err := storage.NewLocalStorage(cfg.Recordings.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init recordings storage", "error", err)
	}
	exports, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init exports storage", "error", err)
	}
	recordingSigner := storage.NewSignedURLSigner(cfg.Recordings.SignedURLSecret, cfg.Recordings.SignedURLTTL)

	validate := validator.New()
	engine := authz.NewEngine(authz.DefaultPolicy())

	// Repositories
	identityRepo := repository.NewIdentityRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	quotaRepo := repository.NewQuotaRepository(redisClient)

	// Provider client owns the process-wide HTTP pool.
	provider := speech.NewAzureClient(cfg.Speech, logr)
	defer provider.Close()

	// Background writer for audio blobs.
	writerQueue := jobs.NewQueue("recording-writer", func(_ context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(service.RecordingWritePayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		_, err := recordings.Save(payload.Filename, payload.Data)
		return err
	}, jobs.QueueConfig{
		Workers:    cfg.Recordings.WriterWorkers,
		MaxRetries: cfg.Recordings.WriterRetries,
		Logger:     logr,
	})
	writerQueue.Start(ctx)
	defer writerQueue.Stop()

	// Services
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(identityRepo, validate, logr, service.AuthConfig(cfg.JWT))
	orgSvc := service.NewOrganizationService(orgRepo, engine, validate, logr)
	speechSvc := service.NewSpeechService(provider, cacheRepo, quotaRepo, assessmentRepo,
		writerQueue, recordings, recordingSigner, validate, logr, cfg.Speech, cfg.Recordings.MaxFileBytes)
	gradingSvc := service.NewGradingService(assignmentRepo, provider, recordings, engine, logr, cfg.Grading)
	exportSvc := service.NewExportService(assignmentRepo, engine, exports, recordingSigner,
		service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr, nil, nil)

	if err := orgSvc.Rehydrate(ctx); err != nil {
		logr.Sugar().Fatalw("failed to build authz index", "error", err)
	}

	// Rendered grade sheets are throwaway files; sweep expired ones hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := exportSvc.Cleanup(0)
				if err != nil {
					logr.Sugar().Warnw("export cleanup failed", "error", err)
				} else if len(removed) > 0 {
					logr.Sugar().Infow("expired exports removed", "count", len(removed))
				}
			}
		}
	}()

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	orgHandler := handler.NewOrganizationHandler(orgSvc)
	schoolHandler := handler.NewSchoolHandler(orgSvc)
	classroomHandler := handler.NewClassroomHandler(orgSvc)
	speechHandler := handler.NewSpeechHandler(speechSvc, metricsSvc)
	gradingHandler := handler.NewGradingHandler(gradingSvc, metricsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/student-login", authHandler.StudentLogin)
	api.GET("/auth/me", middleware.JWT(authSvc), authHandler.Me)

	// Token issuance allows anonymous demo callers under a per-IP quota.
	api.POST("/azure-speech/token", middleware.OptionalJWT(authSvc), speechHandler.Token)
	api.POST("/speech/upload-analysis", middleware.JWT(authSvc), speechHandler.Upload)
	api.GET("/recordings/download/:token", speechHandler.DownloadRecording)
	api.GET("/exports/:token", exportHandler.Download)

	authed := api.Group("", middleware.JWT(authSvc))
	teachers := authed.Group("", middleware.RequireTeacher())

	teachers.POST("/organizations", orgHandler.Create)
	teachers.GET("/organizations", orgHandler.List)
	teachers.GET("/organizations/:id",
		middleware.Permission(engine, authz.ResourceOrganization, authz.ActionRead, middleware.FromOrgParam("id")), orgHandler.Get)
	teachers.PATCH("/organizations/:id",
		middleware.Permission(engine, authz.ResourceOrganization, authz.ActionUpdate, middleware.FromOrgParam("id")), orgHandler.Update)
	teachers.DELETE("/organizations/:id",
		middleware.Permission(engine, authz.ResourceOrganization, authz.ActionDelete, middleware.FromOrgParam("id")), orgHandler.Delete)
	// No Permission gate: a deleted organization has no grants left, so
	// the service checks the stored owner membership instead.
	teachers.POST("/organizations/:id/restore", orgHandler.Restore)
	teachers.GET("/organizations/:id/teachers",
		middleware.Permission(engine, authz.ResourceTeacher, authz.ActionRead, middleware.FromOrgParam("id")), orgHandler.ListTeachers)
	teachers.POST("/organizations/:id/teachers",
		middleware.Permission(engine, authz.ResourceTeacher, authz.ActionCreate, middleware.FromOrgParam("id")), orgHandler.AddTeacher)
	teachers.DELETE("/organizations/:id/teachers/:teacherId",
		middleware.Permission(engine, authz.ResourceTeacher, authz.ActionDelete, middleware.FromOrgParam("id")), orgHandler.RemoveTeacher)

	teachers.POST("/schools", schoolHandler.Create)
	teachers.GET("/schools", schoolHandler.List)
	teachers.GET("/schools/:id",
		middleware.Permission(engine, authz.ResourceSchool, authz.ActionRead, middleware.FromSchoolParam("id")), schoolHandler.Get)
	teachers.PATCH("/schools/:id",
		middleware.Permission(engine, authz.ResourceSchool, authz.ActionUpdate, middleware.FromSchoolParam("id")), schoolHandler.Update)
	teachers.DELETE("/schools/:id",
		middleware.Permission(engine, authz.ResourceSchool, authz.ActionDelete, middleware.FromSchoolParam("id")), schoolHandler.Delete)
	teachers.GET("/schools/:id/teachers",
		middleware.Permission(engine, authz.ResourceTeacher, authz.ActionRead, middleware.FromSchoolParam("id")), schoolHandler.ListTeachers)
	teachers.POST("/schools/:id/teachers",
		middleware.Permission(engine, authz.ResourceTeacher, authz.ActionCreate, middleware.FromSchoolParam("id")), schoolHandler.AddTeacher)
	teachers.PATCH("/schools/:id/teachers/:teacherId",
		middleware.Permission(engine, authz.ResourceTeacher, authz.ActionUpdate, middleware.FromSchoolParam("id")), schoolHandler.UpdateTeacher)
	teachers.DELETE("/schools/:id/teachers/:teacherId",
		middleware.Permission(engine, authz.ResourceTeacher, authz.ActionDelete, middleware.FromSchoolParam("id")), schoolHandler.RemoveTeacher)
	teachers.GET("/schools/:id/classrooms",
		middleware.Permission(engine, authz.ResourceClassroom, authz.ActionRead, middleware.FromSchoolParam("id")), schoolHandler.ListClassrooms)

	teachers.POST("/classrooms/:id/school", classroomHandler.Link)
	teachers.GET("/classrooms/:id/school", classroomHandler.GetLink)
	teachers.DELETE("/classrooms/:id/school", classroomHandler.Unlink)

	teachers.POST("/assignments/:id/batch-grade", gradingHandler.BatchGrade)
	teachers.GET("/assignments/:id/grades/export", exportHandler.Generate)
	teachers.GET("/recordings/:progressId/url", speechHandler.RecordingURL)
	teachers.GET("/ops/metrics", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
