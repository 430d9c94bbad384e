package extract

import (
	"context"
	"fmt"
	"strings"

	aiservice "cosmetic-analyzer/internal/core/ai/service"
	"cosmetic-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// labelPrompt 標籤辨識提示詞，要求模型只回傳 JSON
const labelPrompt = `You are reading the ingredient label of a cosmetic product from a photo.
Extract the full ingredient list (INCI names) in the order printed.

Return ONLY a JSON object in exactly this shape, with no extra text:
{
  "product_name": "product name if visible, otherwise empty string",
  "ingredients": ["Ingredient 1", "Ingredient 2"]
}

Rules:
- Keep the original INCI spelling, do not translate names.
- Skip marketing text, percentages, and warnings.
- If no ingredient list is visible, return {"product_name": "", "ingredients": []}.`

// LabelResult 標籤辨識結果
type LabelResult struct {
	ProductName string   `json:"product_name"`
	Ingredients []string `json:"ingredients"`
}

// Service 標籤照片辨識服務：以多模態模型從照片讀出成分清單
type Service struct {
	ai *aiservice.Service
}

// NewService 創建標籤辨識服務
func NewService(ai *aiservice.Service) *Service {
	return &Service{ai: ai}
}

// ExtractIngredients 從標籤照片擷取成分名稱清單。imageData 為 data URL 或可存取的圖片網址
func (s *Service) ExtractIngredients(ctx context.Context, imageData string) (*LabelResult, error) {
	if strings.TrimSpace(imageData) == "" {
		return nil, common.NewValidationError("image data is required")
	}

	resp, err := s.ai.ProcessRequest(ctx, labelPrompt, imageData)
	if err != nil {
		return nil, fmt.Errorf("failed to extract label: %w", err)
	}

	// 模型偶爾會在 JSON 前後夾雜說明文字，先切出大括號區段
	jsonText := common.ExtractJSONObject(resp.Content)

	var result LabelResult
	if err := common.ParseJSON(jsonText, &result); err != nil {
		common.LogError("標籤辨識回應解析失敗",
			zap.String("content", resp.Content),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", common.ErrAIServiceError, err)
	}

	result.Ingredients = common.DedupeNames(result.Ingredients)
	return &result, nil
}
