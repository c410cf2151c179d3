package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoAITrader/tradegate/internal/config"
	"github.com/GoAITrader/tradegate/internal/events"
	"github.com/GoAITrader/tradegate/internal/handler"
	"github.com/GoAITrader/tradegate/internal/middleware"
	"github.com/GoAITrader/tradegate/internal/pkg/logger"
	"github.com/GoAITrader/tradegate/internal/registry"
	"github.com/GoAITrader/tradegate/internal/repository"
	"github.com/GoAITrader/tradegate/internal/selector"
	"github.com/GoAITrader/tradegate/internal/service"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// 3. Initialize Persistence
	// Market document store (file-backed, seeds defaults on first run)
	store, err := repository.NewFileStore(cfg.Store.Dir)
	if err != nil {
		log.Fatalf("Failed to open config store: %v", err)
	}
	logger.Info("✅ Config store ready", "dir", store.Dir())

	// Usage counters (Redis > Memory)
	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		rc, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			redisClient = rc
		} else {
			logger.Error("⚠️ Failed to connect to Redis, usage counters fall back to memory", "error", err)
		}
	}
	var usageStore service.UsageStore
	if redisClient != nil {
		usageStore = repository.NewRedisUsageRepo(redisClient)
	} else {
		usageStore = service.NewMemoryUsageStore()
	}

	// Audit trail (Postgres > Redis > file-only)
	var auditRepo service.AuditRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			pgRepo := repository.NewPostgresAuditRepo(db)
			auditRepo = pgRepo
			if days := cfg.Database.AuditRetentionDays; days > 0 {
				go runAuditRetention(pgRepo, days)
			}
		} else {
			logger.Error("⚠️ Failed to connect to DB, audit falls back", "error", err)
		}
	}
	if auditRepo == nil && redisClient != nil {
		auditRepo = repository.NewRedisAuditRepo(redisClient, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax)
	}

	var auditSvc *service.AuditService
	if cfg.Audit.Enabled {
		auditSvc, err = service.NewAuditService(cfg.Audit.Dir, cfg.Audit.RingMax, auditRepo)
		if err != nil {
			log.Fatalf("Failed to initialize audit service: %v", err)
		}
	}

	// 4. Initialize Core Services
	var hub *events.Hub
	var publisher service.EventPublisher
	if cfg.Events.Enabled {
		hub = events.NewHub()
		publisher = hub
	}

	switcherSvc := service.NewSwitcher(store, publisher)
	reg := registry.New(store)
	selectorSvc := selector.New(reg,
		selector.WithStatsWindow(cfg.Selection.StatsWindow),
		selector.WithReferenceTokens(int(cfg.Selection.ReferenceTokens)),
		selector.WithUsageSink(usageStore),
	)

	// 5. Initialize Handlers
	marketHandler := handler.NewMarketHandler(switcherSvc)
	modelsHandler := handler.NewModelsHandler(reg, selectorSvc)
	costHandler := handler.NewCostHandler()
	usageHandler := handler.NewUsageHandler(usageStore)

	// 6. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	if auditSvc != nil {
		r.Use(middleware.AuditMiddleware(auditSvc))
	}

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "tradegate",
			"store":   store.Dir(),
			"active":  switcherSvc.Active(),
		})
	})

	// Metrics Endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Event Stream
	if hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			hub.Serve(c.Writer, c.Request)
		})
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(cfg.RateLimit))
	v1.Use(middleware.ReadOnlyMiddleware(cfg.ReadOnly))
	{
		v1.GET("/markets", marketHandler.List)
		v1.GET("/markets/:id", marketHandler.Get)
		v1.PUT("/markets/:id", marketHandler.Save)
		v1.GET("/markets/:id/validate", marketHandler.Validate)
		v1.POST("/markets/:id/activate", marketHandler.Activate)
		v1.GET("/markets/:id/summary", marketHandler.Summary)
		v1.GET("/markets/:id/keys", marketHandler.Keys)
		v1.POST("/markets/:id/orders/check", marketHandler.CheckOrder)
		v1.GET("/active", marketHandler.Active)
		v1.GET("/common-settings", marketHandler.CommonSettings)
		v1.PUT("/common-settings", marketHandler.UpdateCommonSettings)
		v1.GET("/export", marketHandler.Export)
		v1.POST("/import", marketHandler.Import)

		v1.GET("/models", modelsHandler.List)
		v1.GET("/model-config/:key", modelsHandler.GetConfig)
		v1.PUT("/model-config/:key", modelsHandler.UpdateConfig)
		v1.GET("/model-config/:key/validate", modelsHandler.ValidateConfig)
		v1.POST("/model-config/:key/select", modelsHandler.Select)
		v1.POST("/model-config/:key/outcome", modelsHandler.Outcome)

		v1.POST("/cost/estimate", costHandler.Estimate)
		v1.GET("/cost/prices", costHandler.PriceTable)
		v1.GET("/usage/models", usageHandler.List)

		if auditSvc != nil {
			auditHandler := handler.NewAuditHandler(auditSvc)
			v1.GET("/audit", auditHandler.List)
		}
	}

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 TradeGate started", "port", cfg.Server.Port, "read_only", cfg.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if hub != nil {
		hub.Close()
	}
	if auditSvc != nil {
		auditSvc.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

// runAuditRetention prunes Postgres audit records past the retention window
// once a day.
func runAuditRetention(repo *repository.PostgresAuditRepo, days int) {
	olderThan := time.Duration(days) * 24 * time.Hour
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if err := repo.Cleanup(context.Background(), olderThan); err != nil {
			logger.Warn("Audit retention sweep failed", "error", err)
		}
	}
}
