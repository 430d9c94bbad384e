package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"cosmetic-analyzer/internal/infrastructure/config"
	"cosmetic-analyzer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// TavilyClient 網路搜尋客戶端，作為相似度搜尋信心不足時的備援
type TavilyClient struct {
	config *config.TavilyConfig
	client *resty.Client
}

// NewTavilyClient 創建網路搜尋客戶端
func NewTavilyClient(cfg *config.TavilyConfig) *TavilyClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &TavilyClient{
		config: cfg,
		client: client,
	}
}

// tavilySearchRequest Tavily 搜尋請求
type tavilySearchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

// tavilySearchResponse Tavily 搜尋回應
type tavilySearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// purposeRules 關鍵字對應成分用途，依序比對取第一個命中
var purposeRules = []struct {
	keywords []string
	purpose  string
}{
	{[]string{"moisturizer", "hydrat"}, "Moisturizing agent"},
	{[]string{"preservative", "antimicrobial"}, "Preservative"},
	{[]string{"antioxidant", "vitamin"}, "Antioxidant"},
	{[]string{"surfactant", "cleanser"}, "Cleansing agent"},
	{[]string{"emulsifier", "stabilizer"}, "Emulsifier"},
	{[]string{"fragrance", "scent", "perfume"}, "Fragrance"},
}

// Search 以關鍵字啟發式從網頁結果推估成分資料。查無結果時回傳 (nil, nil)
func (c *TavilyClient) Search(ctx context.Context, name string) (*Result, error) {
	if !c.config.Enabled {
		return nil, nil
	}

	query := fmt.Sprintf("%s cosmetic skincare ingredient safety concerns benefits", name)
	common.LogDebug("網路備援搜尋",
		zap.String("query", query),
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(tavilySearchRequest{
			APIKey:      c.config.APIKey,
			Query:       query,
			MaxResults:  c.config.MaxResults,
			SearchDepth: "advanced",
		}).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Tavily: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Tavily API returned error: %s", resp.String())
	}

	var result tavilySearchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse Tavily response: %w", err)
	}

	if len(result.Results) == 0 {
		return nil, nil
	}

	// 合併前三筆結果內容做關鍵字分析
	var parts []string
	for i, r := range result.Results {
		if i >= 3 {
			break
		}
		parts = append(parts, r.Content)
	}
	combined := strings.Join(parts, " ")
	lower := strings.ToLower(combined)

	purpose := "Unknown purpose"
	for _, rule := range purposeRules {
		if containsAny(lower, rule.keywords) {
			purpose = rule.purpose
			break
		}
	}

	var concerns []string
	score := 5
	if containsAny(lower, []string{"irritat", "sensitiz", "allergic"}) {
		concerns = append(concerns, "potential irritation")
		score = maxInt(6, score)
	}
	if containsAny(lower, []string{"toxic", "harmful", "danger"}) {
		concerns = append(concerns, "toxicity concerns")
		score = maxInt(7, score)
	}
	if containsAny(lower, []string{"comedogenic", "acne", "clog"}) {
		concerns = append(concerns, "may clog pores")
		score = maxInt(6, score)
	}
	if containsAny(lower, []string{"safe", "gentle", "mild"}) {
		score = minInt(3, score)
		if len(concerns) == 0 {
			concerns = append(concerns, "generally safe")
		}
	}
	if len(concerns) == 0 {
		concerns = []string{"insufficient data"}
	}

	// 結果數量越多信心越高
	confidence := 0.4
	if len(result.Results) >= 2 {
		confidence = 0.6
	}

	description := combined
	if len(description) > 300 {
		description = description[:300] + "..."
	}

	return &Result{
		Name:        name,
		Purpose:     purpose,
		SafetyScore: score,
		Concerns:    concerns,
		Description: description,
		Confidence:  confidence,
	}, nil
}

// containsAny 檢查字串是否包含任一關鍵字
func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
