package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	analysisHandler "cosmetic-analyzer/internal/api/handlers/analysis"
	"cosmetic-analyzer/internal/api/handlers/health"
	"cosmetic-analyzer/internal/api/middleware"
	"cosmetic-analyzer/internal/core/ai/cache"
	aiservice "cosmetic-analyzer/internal/core/ai/service"
	"cosmetic-analyzer/internal/core/extract"
	"cosmetic-analyzer/internal/core/memory"
	"cosmetic-analyzer/internal/core/search"
	"cosmetic-analyzer/internal/core/workflow"
	"cosmetic-analyzer/internal/infrastructure/config"
	"cosmetic-analyzer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 超時設置
	timeoutDuration = 120 * time.Second
	// 請求體大小限制 (10MB)
	maxBodySize = 10 << 20
)

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, cacheManager *cache.CacheManager, store *memory.Store) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 創建路由引擎
	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New()) // 自動生成請求 ID

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 速率限制與請求去重
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	router.Use(middleware.Deduplication(cfg))

	common.LogInfo("Initializing services",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Int("lookup_workers", cfg.Workflow.Workers),
		zap.String("model", cfg.OpenRouter.Model),
		zap.Duration("timeout", timeoutDuration),
	)

	// 初始化 AI 服務
	aiService, err := aiservice.NewService(cfg, cacheManager)
	if err != nil || aiService == nil {
		common.LogError("Failed to initialize AI service", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize AI service: %w", err)
	}

	// 初始化查詢協作者
	qdrantClient := search.NewQdrantClient(&cfg.Qdrant)
	tavilyClient := search.NewTavilyClient(&cfg.Tavily)

	// 初始化工作流程引擎
	researcher := workflow.NewResearcher(qdrantClient, tavilyClient, &cfg.Workflow, cacheManager)
	reporter := workflow.NewReporter(aiService)

	var history workflow.HistoryStore
	if store != nil {
		history = store
	}
	engine := workflow.NewEngine(researcher, reporter, &cfg.Workflow, history)

	// 初始化標籤辨識服務
	extractService := extract.NewService(aiService)

	common.LogInfo("Analysis services initialized successfully",
		zap.Bool("ai_service_initialized", aiService != nil),
		zap.Bool("cache_manager_initialized", cacheManager != nil),
		zap.Bool("store_initialized", store != nil),
		zap.String("environment", cfg.App.Env),
	)

	// 全局中間件：設置超時和服務
	router.Use(func(c *gin.Context) {
		// 設置請求超時
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		// 設置配置與共用服務
		c.Set("config", cfg)
		c.Set("cache_manager", cacheManager)
		c.Set("store_enabled", store != nil)

		// 處理請求
		c.Next()

		// 檢查是否超時
		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  common.ErrCodeRequestTimeout,
				"details": gin.H{
					"timeout": timeoutDuration.String(),
				},
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		handler := analysisHandler.NewHandler(engine, extractService, store)

		// 成分分析
		analysisGroup := api.Group("/analysis")
		{
			// 依成分名稱清單分析
			analysisGroup.POST("/ingredients", handler.HandleAnalyze)

			// 依標籤照片分析
			analysisGroup.POST("/label", handler.HandleLabel)
		}

		// 使用者檔案與歷史
		usersGroup := api.Group("/users")
		{
			usersGroup.GET("/:user_key/profile", handler.HandleGetProfile)
			usersGroup.PUT("/:user_key/profile", handler.HandleSaveProfile)
			usersGroup.GET("/:user_key/history", handler.HandleListHistory)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}
