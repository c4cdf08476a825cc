package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/atalarczyk/PPLAN/internal/config"
	"github.com/atalarczyk/PPLAN/internal/handler"
	"github.com/atalarczyk/PPLAN/internal/middleware"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Local development convenience; absent files are fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting pplan service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	rdb := initRedis(cfg.Redis)

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/sync", h.Auth.Sync)
			auth.GET("/me", h.Auth.Me)
		}

		v1.GET("/business-units", h.Admin.ListBusinessUnits)
		v1.POST("/business-units", h.Admin.CreateBusinessUnit)
		v1.GET("/business-units/:id/dashboard", h.Report.UnitDashboard)
		v1.GET("/business-units/:id/role-assignments", h.Admin.ListRoleAssignments)
		v1.GET("/business-units/:id/audit-events", h.Admin.ListAuditEvents)

		v1.GET("/users", h.Admin.ListUsers)
		v1.POST("/role-assignments", h.Admin.AssignRole)
		v1.DELETE("/role-assignments/:id", h.Admin.RevokeRole)

		v1.GET("/projects", h.Project.List)
		v1.POST("/projects", h.Project.Create)
		v1.GET("/projects/:id", h.Project.Get)
		v1.PATCH("/projects/:id", h.Project.Update)

		v1.POST("/projects/:id/stages", h.Project.CreateStage)
		v1.DELETE("/projects/:id/stages/:stageId", h.Project.DeleteStage)

		v1.POST("/projects/:id/tasks", h.Project.CreateTask)
		v1.PATCH("/projects/:id/tasks/:taskId", h.Project.UpdateTask)
		v1.DELETE("/projects/:id/tasks/:taskId", h.Project.DeleteTask)
		v1.POST("/projects/:id/tasks/:taskId/performers/:performerId", h.Project.AssignPerformer)
		v1.DELETE("/projects/:id/tasks/:taskId/performers/:performerId", h.Project.UnassignPerformer)

		v1.GET("/performers", h.Project.ListPerformers)
		v1.POST("/performers", h.Project.CreatePerformer)
		v1.PATCH("/performers/:id", h.Project.UpdatePerformer)

		v1.GET("/projects/:id/matrix", h.Matrix.Read)
		v1.PUT("/projects/:id/matrix/entries", h.Matrix.BulkUpsert)
		v1.GET("/projects/:id/snapshots", h.Matrix.Snapshots)
		v1.POST("/projects/:id/snapshots/recompute", h.Matrix.Recompute)

		v1.GET("/rates", h.Finance.ListRates)
		v1.POST("/rates", h.Finance.UpsertRates)
		v1.DELETE("/rates/:id", h.Finance.DeleteRate)

		v1.GET("/projects/:id/financial-requests", h.Finance.ListFinancialRequests)
		v1.POST("/projects/:id/financial-requests", h.Finance.CreateFinancialRequest)
		v1.DELETE("/projects/:id/financial-requests/:rowId", h.Finance.DeleteFinancialRequest)
		v1.GET("/projects/:id/invoices", h.Finance.ListInvoices)
		v1.POST("/projects/:id/invoices", h.Finance.CreateInvoice)
		v1.DELETE("/projects/:id/invoices/:rowId", h.Finance.DeleteInvoice)
		v1.GET("/projects/:id/revenues", h.Finance.ListRevenues)
		v1.POST("/projects/:id/revenues", h.Finance.CreateRevenue)
		v1.DELETE("/projects/:id/revenues/:rowId", h.Finance.DeleteRevenue)

		v1.GET("/projects/:id/reports", h.Report.Build)
		v1.GET("/projects/:id/reports/export", h.Report.Export)
		v1.GET("/projects/:id/dashboard", h.Report.ProjectDashboard)
	}
}
