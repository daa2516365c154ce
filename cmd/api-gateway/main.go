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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/univsource/urp-portal-api/api/swagger"
	"github.com/univsource/urp-portal-api/internal/handler"
	"github.com/univsource/urp-portal-api/internal/middleware"
	"github.com/univsource/urp-portal-api/internal/models"
	"github.com/univsource/urp-portal-api/internal/repository"
	"github.com/univsource/urp-portal-api/internal/scheduler"
	"github.com/univsource/urp-portal-api/internal/service"
	"github.com/univsource/urp-portal-api/pkg/cache"
	"github.com/univsource/urp-portal-api/pkg/config"
	"github.com/univsource/urp-portal-api/pkg/database"
	"github.com/univsource/urp-portal-api/pkg/jobs"
	"github.com/univsource/urp-portal-api/pkg/logger"
	corsmiddleware "github.com/univsource/urp-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/univsource/urp-portal-api/pkg/middleware/requestid"
)

// @title University Research Portal API
// @version 1.0.0
// @description Approval and milestone workflow engine for university research projects
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, project cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	termRepo := repository.NewTermRepository(db)
	refRepo := repository.NewReferenceRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	councilRepo := repository.NewCouncilRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	notifier := service.NewNotifier(notificationRepo, logr, metricsSvc)
	queue := jobs.NewQueue("notifications", notifier.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notifier.BindQueue(queue)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	queue.Start(queueCtx)
	defer queue.Stop()

	authSvc := service.NewAuthService(cfg.JWT.Secret)
	projectSvc := service.NewProjectService(projectRepo, termRepo, userRepo, refRepo, cacheRepo, notifier, validate, logr, cfg.Projects.CacheTTL)
	bookingSvc := service.NewBookingService(bookingRepo, projectRepo, termRepo, notifier, validate, logr)
	councilSvc := service.NewCouncilService(councilRepo, projectRepo, notifier, validate, logr)
	milestoneSvc := service.NewMilestoneService(milestoneRepo, projectRepo, notifier, validate, logr, nil)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)

	schedulerSvc := service.NewSchedulerService(projectRepo, milestoneRepo, notifier, metricsSvc, logr,
		cfg.Scheduler.PromotionDwell, cfg.Scheduler.ReminderWindowDays)
	sched := scheduler.New(schedulerSvc, cfg.Scheduler, logr)
	sched.Start()
	defer sched.Stop()

	projectHandler := handler.NewProjectHandler(projectSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	councilHandler := handler.NewCouncilHandler(councilSvc)
	milestoneHandler := handler.NewMilestoneHandler(milestoneSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)

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
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	staff := middleware.RBAC(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDepartmentHead, models.RoleLecturer)

	projects := api.Group("/projects")
	{
		projects.POST("", staff, projectHandler.Create)
		projects.GET("", projectHandler.List)
		projects.GET("/:id", projectHandler.Get)
		projects.PUT("/:id", staff, projectHandler.Update)
		projects.DELETE("/:id", middleware.RBAC(models.RoleSuperAdmin, models.RoleAdmin), projectHandler.Delete)
	}

	bookings := api.Group("/bookings")
	{
		bookings.POST("", middleware.RBAC(models.RoleStudent), bookingHandler.Create)
		bookings.GET("", bookingHandler.List)
		bookings.GET("/:id", bookingHandler.Get)
		bookings.PUT("/:id", middleware.RBAC(models.RoleStudent, models.RoleAdmin), bookingHandler.Update)
		bookings.DELETE("/:id", middleware.RBAC(models.RoleStudent, models.RoleAdmin), bookingHandler.Delete)
		bookings.POST("/:id/approve/lecturer", middleware.RBAC(models.RoleLecturer), bookingHandler.ApproveLecturer)
		bookings.POST("/:id/approve/faculty-dean", middleware.RBAC(models.RoleFacultyDean), bookingHandler.ApproveFacultyDean)
		bookings.POST("/:id/approve/rector", middleware.RBAC(models.RoleRector), bookingHandler.ApproveRector)
	}

	councils := api.Group("/councils")
	{
		councils.POST("/grades", middleware.RBAC(models.RoleLecturer), councilHandler.SubmitGrade)
		councils.GET("/:id/grades", councilHandler.ListGrades)
		councils.GET("/:id/grades/export", councilHandler.ExportGradeSheet)
	}

	milestones := api.Group("/milestones")
	{
		milestones.POST("/:id/submissions", middleware.RBAC(models.RoleStudent), milestoneHandler.Submit)
		milestones.GET("/:id/submissions", milestoneHandler.ListSubmissions)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/seen", notificationHandler.MarkSeen)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
