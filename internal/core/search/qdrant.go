package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"cosmetic-analyzer/internal/infrastructure/config"
	"cosmetic-analyzer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// QdrantClient 相似度搜尋客戶端：先向向量服務取得 embedding，再查詢 Qdrant
type QdrantClient struct {
	config *config.QdrantConfig
	embed  *resty.Client
	qdrant *resty.Client
}

// NewQdrantClient 創建相似度搜尋客戶端
func NewQdrantClient(cfg *config.QdrantConfig) *QdrantClient {
	embed := resty.New().
		SetBaseURL(cfg.EmbedURL).
		SetTimeout(cfg.Timeout)

	qdrant := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		qdrant.SetHeader("api-key", cfg.APIKey)
	}

	return &QdrantClient{
		config: cfg,
		embed:  embed,
		qdrant: qdrant,
	}
}

// embedRequest 向量服務請求
type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

// embedResponse 向量服務回應
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
}

// qdrantQueryRequest Qdrant 查詢請求
type qdrantQueryRequest struct {
	Query       []float64 `json:"query"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

// qdrantPayload 成分資料 payload
type qdrantPayload struct {
	Name        string   `json:"name"`
	Purpose     string   `json:"purpose"`
	SafetyScore int      `json:"safety_score"`
	Concerns    []string `json:"concerns"`
	Description string   `json:"description"`
}

// qdrantPoint 查詢命中的點
type qdrantPoint struct {
	Score   float64       `json:"score"`
	Payload qdrantPayload `json:"payload"`
}

// qdrantQueryResponse /points/query 的巢狀回應結構
type qdrantQueryResponse struct {
	Result struct {
		Points []qdrantPoint `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

// Lookup 以標準化名稱查詢相似度索引。查無資料時回傳 (nil, nil)
func (c *QdrantClient) Lookup(ctx context.Context, name string) (*Result, error) {
	if !c.config.Enabled {
		return nil, nil
	}

	// 取得查詢向量
	vec, err := c.embedText(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// 查詢 Qdrant
	reqBody := qdrantQueryRequest{
		Query:       vec,
		Limit:       1,
		WithPayload: true,
	}

	resp, err := c.qdrant.R().
		SetContext(ctx).
		SetBody(reqBody).
		Post(fmt.Sprintf("/collections/%s/points/query", c.config.Collection))
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("qdrant returned error: %s", resp.String())
	}

	var result qdrantQueryResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse qdrant response: %w", err)
	}

	if len(result.Result.Points) == 0 {
		common.LogDebug("相似度搜尋無結果",
			zap.String("name", name),
		)
		return nil, nil
	}

	point := result.Result.Points[0]
	confidence := point.Score
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	out := &Result{
		Name:        point.Payload.Name,
		Purpose:     point.Payload.Purpose,
		SafetyScore: point.Payload.SafetyScore,
		Concerns:    point.Payload.Concerns,
		Description: point.Payload.Description,
		Confidence:  confidence,
	}
	if out.Name == "" {
		out.Name = name
	}

	return out, nil
}

// embedText 取得文字的向量表示
func (c *QdrantClient) embedText(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.embed.R().
		SetContext(ctx).
		SetBody(embedRequest{Texts: []string{text}, Model: c.config.EmbedModel}).
		Post("/embeddings")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned error: %s", resp.String())
	}

	var result embedResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embeddings in response")
	}

	return result.Embeddings[0], nil
}
