package service

import (
	"context"
	"fmt"
	"time"

	"cosmetic-analyzer/internal/core/ai/cache"
	openrouter "cosmetic-analyzer/internal/core/service"
	"cosmetic-analyzer/internal/infrastructure/config"
	"cosmetic-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// Response AI 回應結構
type Response struct {
	Content string
}

// Service AI 服務：緩存 + OpenRouter + 一次內部重試
type Service struct {
	config       *config.Config
	openRouter   *openrouter.OpenRouterService
	cacheManager *cache.CacheManager
}

// NewService 創建 AI 服務
func NewService(cfg *config.Config, cacheManager *cache.CacheManager) (*Service, error) {
	// 創建 OpenRouter 服務
	openRouter := openrouter.NewOpenRouterService(cfg)

	return &Service{
		config:       cfg,
		openRouter:   openRouter,
		cacheManager: cacheManager,
	}, nil
}

// Generate 純文字生成捷徑
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.ProcessRequest(ctx, prompt, "")
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ProcessRequest 統一對外方法。生成失敗時內部重試一次，仍失敗才回傳錯誤
func (s *Service) ProcessRequest(ctx context.Context, prompt string, imageData string) (*Response, error) {
	cacheKey := cache.Key("generate", prompt, imageData)

	// 檢查緩存
	if s.config.Cache.Enabled && s.cacheManager != nil {
		if val, err := s.cacheManager.Get(ctx, cacheKey); err == nil && val != "" {
			return &Response{Content: val}, nil
		}
	}

	start := time.Now()
	content, err := s.openRouter.GenerateResponse(ctx, prompt, imageData)
	if err != nil {
		// 內部重試一次；敘述報告沒有安全的降級值，重試後仍失敗就往上拋
		common.LogWarn("AI 生成失敗，重試一次",
			zap.Error(err),
		)
		content, err = s.openRouter.GenerateResponse(ctx, prompt, imageData)
	}
	common.LogAICall(prompt, time.Since(start), err, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAIServiceError, err)
	}

	response := &Response{Content: content}

	if s.config.Cache.Enabled && s.cacheManager != nil {
		_ = s.cacheManager.Set(ctx, cacheKey, content)
	}

	return response, nil
}
