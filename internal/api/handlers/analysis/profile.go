package analysis

import (
	"net/http"

	"cosmetic-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProfileRequest 使用者檔案保存請求
type ProfileRequest struct {
	SkinType  string   `json:"skin_type" binding:"required"`
	Allergies []string `json:"allergies,omitempty"`
	Expertise string   `json:"expertise" binding:"required"`
}

// HandleGetProfile 讀取使用者檔案
func (h *Handler) HandleGetProfile(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Profile store is not available",
			"code":  common.ErrCodeServiceUnavailable,
		})
		return
	}

	userKey := c.Param("user_key")
	profile, err := h.store.GetProfile(c.Request.Context(), userKey)
	if err != nil {
		common.LogError("讀取使用者檔案失敗",
			zap.String("user_key", userKey),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to load profile",
			"code":  common.ErrCodeServiceUnavailable,
		})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Profile not found",
			"code":  common.ErrCodeNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// HandleSaveProfile 保存使用者檔案
func (h *Handler) HandleSaveProfile(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Profile store is not available",
			"code":  common.ErrCodeServiceUnavailable,
		})
		return
	}

	userKey := c.Param("user_key")

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	profile := common.UserProfile{
		UserKey:   userKey,
		SkinType:  common.SkinType(req.SkinType),
		Allergies: common.DedupeNames(req.Allergies),
		Expertise: common.ExpertiseLevel(req.Expertise),
	}
	if !profile.SkinType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown skin type: " + req.SkinType})
		return
	}
	if !profile.Expertise.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown expertise level: " + req.Expertise})
		return
	}

	if err := h.store.SaveProfile(c.Request.Context(), userKey, &profile); err != nil {
		common.LogError("保存使用者檔案失敗",
			zap.String("user_key", userKey),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to save profile",
			"code":  common.ErrCodeServiceUnavailable,
		})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// HandleListHistory 列出使用者的分析歷史，最新在前
func (h *Handler) HandleListHistory(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "History store is not available",
			"code":  common.ErrCodeServiceUnavailable,
		})
		return
	}

	userKey := c.Param("user_key")
	history, err := h.store.ListHistory(c.Request.Context(), userKey)
	if err != nil {
		common.LogError("讀取分析歷史失敗",
			zap.String("user_key", userKey),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to load history",
			"code":  common.ErrCodeServiceUnavailable,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_key": userKey,
		"count":    len(history),
		"history":  history,
	})
}
