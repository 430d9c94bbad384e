package workflow

import (
	"strings"

	"cosmetic-analyzer/internal/pkg/common"
)

// irritationVocab 刺激類疑慮詞彙，敏感肌加權用
var irritationVocab = []string{"irritat", "allergic", "sensitiz"}

// comedogenicVocab 致粉刺類疑慮詞彙，油性肌加權用
var comedogenicVocab = []string{"comedogenic", "clog", "acne"}

// ScoreItem 計算個人化安全分數與建議等級。
// 基礎分數出發，敏感肌遇刺激疑慮 +2，油性肌遇致粉刺疑慮 +1，
// 過敏原命中直接覆寫為 10，最終夾在 1-10 之間
func ScoreItem(record *ItemRecord, profile common.UserProfile) {
	score := record.BaseScore
	if score == 0 {
		// 資料來源未提供基礎分數時採中性值
		score = 5
	}

	var adjustments []string
	concernsText := strings.ToLower(strings.Join(record.Concerns, " "))

	if profile.SkinType == common.SkinSensitive && containsAny(concernsText, irritationVocab) {
		score += 2
		adjustments = append(adjustments, "sensitive skin: +2 for irritation concerns")
	}

	if profile.SkinType == common.SkinOily && containsAny(concernsText, comedogenicVocab) {
		score += 1
		adjustments = append(adjustments, "oily skin: +1 for comedogenic risk")
	}

	if record.Allergen != nil {
		score = 10
		adjustments = append(adjustments, "allergen match: score forced to 10")
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	record.PersonalizedScore = score
	record.Adjustments = adjustments
	record.Tier = tierFor(score)
}

// tierFor 分數對應建議等級：8 以上 AVOID，5-7 CAUTION，其餘 SAFE
func tierFor(score int) Tier {
	switch {
	case score >= 8:
		return TierAvoid
	case score >= 5:
		return TierCaution
	default:
		return TierSafe
	}
}

// containsAny 檢查字串是否包含任一詞彙
func containsAny(s string, vocab []string) bool {
	for _, v := range vocab {
		if strings.Contains(s, v) {
			return true
		}
	}
	return false
}
