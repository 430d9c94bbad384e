package analysis

import (
	"errors"
	"net/http"

	"cosmetic-analyzer/internal/core/extract"
	"cosmetic-analyzer/internal/core/memory"
	"cosmetic-analyzer/internal/core/workflow"
	"cosmetic-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnalyzeRequest 成分安全分析請求
type AnalyzeRequest struct {
	UserKey     string   `json:"user_key,omitempty"`    // 有值時可從記憶存儲帶入使用者檔案
	SkinType    string   `json:"skin_type,omitempty"`   // normal/sensitive/oily/dry/combination
	Allergies   []string `json:"allergies,omitempty"`   // 過敏或想避開的成分
	Expertise   string   `json:"expertise,omitempty"`   // beginner/intermediate/expert
	Ingredients []string `json:"ingredients" binding:"required,min=1"`
}

// LabelRequest 標籤照片分析請求
type LabelRequest struct {
	Image     string   `json:"image" binding:"required"` // data URL 或圖片網址
	UserKey   string   `json:"user_key,omitempty"`
	SkinType  string   `json:"skin_type,omitempty"`
	Allergies []string `json:"allergies,omitempty"`
	Expertise string   `json:"expertise,omitempty"`
}

// LabelResponse 標籤照片分析響應：辨識結果加完整分析
type LabelResponse struct {
	ProductName string           `json:"product_name"`
	Ingredients []string         `json:"ingredients"`
	Analysis    *workflow.Result `json:"analysis"`
}

// Handler 分析處理程序
type Handler struct {
	engine         *workflow.Engine
	extractService *extract.Service
	store          *memory.Store
}

// NewHandler 創建分析處理程序
func NewHandler(engine *workflow.Engine, extractService *extract.Service, store *memory.Store) *Handler {
	return &Handler{
		engine:         engine,
		extractService: extractService,
		store:          store,
	}
}

// requestID 取得或生成請求 ID
func requestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.New().String()
		c.Header("X-Request-ID", id)
	}
	return id
}

// buildProfile 組合使用者檔案：請求內容優先，缺漏時用存儲的檔案補，最後補預設值
func (h *Handler) buildProfile(c *gin.Context, userKey, skinType, expertise string, allergies []string) (common.UserProfile, error) {
	profile := common.UserProfile{
		UserKey:   userKey,
		SkinType:  common.SkinType(skinType),
		Allergies: allergies,
		Expertise: common.ExpertiseLevel(expertise),
	}

	if userKey != "" && h.store != nil {
		stored, err := h.store.GetProfile(c.Request.Context(), userKey)
		if err != nil {
			common.LogWarn("讀取使用者檔案失敗，改用請求內容",
				zap.String("user_key", userKey),
				zap.Error(err),
			)
		} else if stored != nil {
			if profile.SkinType == "" {
				profile.SkinType = stored.SkinType
			}
			if profile.Expertise == "" {
				profile.Expertise = stored.Expertise
			}
			if len(profile.Allergies) == 0 {
				profile.Allergies = stored.Allergies
			}
		}
	}

	if profile.SkinType == "" {
		profile.SkinType = common.SkinNormal
	}
	if profile.Expertise == "" {
		profile.Expertise = common.ExpertiseBeginner
	}

	if !profile.SkinType.Valid() {
		return profile, common.NewValidationError("unknown skin type: " + string(profile.SkinType))
	}
	if !profile.Expertise.Valid() {
		return profile, common.NewValidationError("unknown expertise level: " + string(profile.Expertise))
	}
	return profile, nil
}

// runAnalysis 執行工作流程並轉換錯誤為 HTTP 響應；成功時回傳結果
func (h *Handler) runAnalysis(c *gin.Context, reqID string, profile common.UserProfile, ingredients []string) *workflow.Result {
	state := h.engine.NewState(profile, ingredients)

	common.LogInfo("開始成分安全分析",
		zap.String("request_id", reqID),
		zap.String("run_id", state.RunID),
		zap.Int("ingredients", len(state.Ingredients)),
		zap.String("skin_type", string(profile.SkinType)),
	)

	result, err := h.engine.Run(c.Request.Context(), state)
	if err != nil {
		common.LogError("分析流程失敗",
			zap.String("request_id", reqID),
			zap.String("run_id", state.RunID),
			zap.Error(err),
		)
		if errors.Is(err, common.ErrReportGeneration) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Report generation failed",
				"code":  common.ErrCodeReportGeneration,
			})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Analysis failed",
				"code":  common.ErrCodeInternalError,
			})
		}
		return nil
	}
	return result
}

// HandleAnalyze 依成分名稱清單執行個人化安全分析
func (h *Handler) HandleAnalyze(c *gin.Context) {
	reqID := requestID(c)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogError("請求格式無效",
			zap.Error(err),
			zap.String("request_id", reqID),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	profile, err := h.buildProfile(c, req.UserKey, req.SkinType, req.Expertise, req.Allergies)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.runAnalysis(c, reqID, profile, req.Ingredients)
	if result == nil {
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleLabel 從標籤照片辨識成分後執行個人化安全分析
func (h *Handler) HandleLabel(c *gin.Context) {
	reqID := requestID(c)

	var req LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogError("請求格式無效",
			zap.Error(err),
			zap.String("request_id", reqID),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	label, err := h.extractService.ExtractIngredients(c.Request.Context(), req.Image)
	if err != nil {
		common.LogError("標籤辨識失敗",
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		if common.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Label extraction failed",
			"code":  common.ErrCodeServiceUnavailable,
		})
		return
	}

	if len(label.Ingredients) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "No ingredient list found in the image",
		})
		return
	}

	profile, err := h.buildProfile(c, req.UserKey, req.SkinType, req.Expertise, req.Allergies)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.runAnalysis(c, reqID, profile, label.Ingredients)
	if result == nil {
		return
	}
	c.JSON(http.StatusOK, LabelResponse{
		ProductName: label.ProductName,
		Ingredients: label.Ingredients,
		Analysis:    result,
	})
}
