package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Qdrant      QdrantConfig     `mapstructure:"qdrant"`
	Tavily      TavilyConfig     `mapstructure:"tavily"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Workflow    WorkflowConfig   `mapstructure:"workflow"`
	Cache       CacheConfig      `mapstructure:"cache"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// OpenRouterConfig 生成服務配置（OpenRouter）
type OpenRouterConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// QdrantConfig 相似度搜尋服務配置（Qdrant + 向量服務）
type QdrantConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	EmbedURL   string        `mapstructure:"embed_url"`
	EmbedModel string        `mapstructure:"embed_model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TavilyConfig 網路搜尋備援服務配置
type TavilyConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RedisConfig 長期記憶（檔案與歷史）存儲配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkflowConfig 分析工作流程配置
type WorkflowConfig struct {
	MaxRetries          int           `mapstructure:"max_retries"`          // 報告重試上限
	FallbackThreshold   float64       `mapstructure:"fallback_threshold"`   // 低於此信心值觸發網路搜尋備援
	CompletionThreshold float64       `mapstructure:"completion_threshold"` // 批次平均信心值的可靠性門檻
	Workers             int           `mapstructure:"workers"`              // 成分查詢併發數
	LookupTimeout       time.Duration `mapstructure:"lookup_timeout"`       // 單一成分查詢的超時
	HistoryLimit        int           `mapstructure:"history_limit"`        // 歷史記錄保留筆數
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	viper.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	viper.BindEnv("qdrant.url", "QDRANT_URL")
	viper.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	viper.BindEnv("qdrant.embed_url", "EMBEDDING_URL")
	viper.BindEnv("tavily.api_key", "TAVILY_API_KEY")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "cosmetic-analyzer")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// OpenRouter 設定
	viper.SetDefault("openrouter.enabled", true)
	viper.SetDefault("openrouter.model", "google/gemini-2.0-flash-001")
	viper.SetDefault("openrouter.max_tokens", 2048)
	viper.SetDefault("openrouter.timeout", "60s")

	// Qdrant 設定
	viper.SetDefault("qdrant.enabled", true)
	viper.SetDefault("qdrant.url", "http://localhost:6333")
	viper.SetDefault("qdrant.collection", "cosmetic_ingredients")
	viper.SetDefault("qdrant.embed_url", "http://localhost:8000")
	viper.SetDefault("qdrant.embed_model", "all-MiniLM-L6-v2")
	viper.SetDefault("qdrant.timeout", "5s")

	// Tavily 設定
	viper.SetDefault("tavily.enabled", true)
	viper.SetDefault("tavily.base_url", "https://api.tavily.com")
	viper.SetDefault("tavily.max_results", 3)
	viper.SetDefault("tavily.timeout", "10s")

	// Redis 設定
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	// 工作流程設定
	viper.SetDefault("workflow.max_retries", 2)
	viper.SetDefault("workflow.fallback_threshold", 0.70)
	viper.SetDefault("workflow.completion_threshold", 0.50)
	viper.SetDefault("workflow.workers", 4)
	viper.SetDefault("workflow.lookup_timeout", "15s")
	viper.SetDefault("workflow.history_limit", 50)

	// 快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.cleanup_interval", "10m")

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	// 去重設定
	viper.SetDefault("dedup_window", "1s")
}

// validateConfig 驗證設定。啟用中的協作者缺少憑證屬於設定錯誤，啟動時直接失敗
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證生成服務設定
	if config.OpenRouter.Enabled && config.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter api key is required when openrouter is enabled")
	}

	// 驗證相似度搜尋設定
	if config.Qdrant.Enabled {
		if config.Qdrant.URL == "" {
			return fmt.Errorf("qdrant url is required when qdrant is enabled")
		}
		if config.Qdrant.Collection == "" {
			return fmt.Errorf("qdrant collection is required when qdrant is enabled")
		}
	}

	// 驗證網路搜尋備援設定
	if config.Tavily.Enabled && config.Tavily.APIKey == "" {
		return fmt.Errorf("tavily api key is required when tavily is enabled")
	}

	// 驗證工作流程設定
	if config.Workflow.MaxRetries < 0 {
		return fmt.Errorf("invalid workflow max retries")
	}
	if config.Workflow.FallbackThreshold < 0 || config.Workflow.FallbackThreshold > 1 {
		return fmt.Errorf("invalid workflow fallback threshold")
	}
	if config.Workflow.CompletionThreshold < 0 || config.Workflow.CompletionThreshold > 1 {
		return fmt.Errorf("invalid workflow completion threshold")
	}
	if config.Workflow.Workers <= 0 {
		return fmt.Errorf("invalid workflow workers")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	return nil
}
