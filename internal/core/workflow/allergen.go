package workflow

import (
	"strings"

	"cosmetic-analyzer/internal/pkg/common"
)

// synonymGroups 常見過敏原的別名群組，群組內任意兩名稱互為同義詞
var synonymGroups = [][]string{
	{"fragrance", "parfum", "perfume"},
	{"vitamin e", "tocopherol", "tocopheryl acetate"},
	{"alcohol", "alcohol denat", "ethanol", "ethyl alcohol"},
	{"retinol", "retinyl palmitate", "retinoic acid", "tretinoin"},
}

// matchRank 比對強度排序，取最強的命中
func matchRank(t MatchType) int {
	switch t {
	case MatchExact:
		return 3
	case MatchPartial:
		return 2
	case MatchSynonym:
		return 1
	default:
		return 0
	}
}

// ResolveAllergen 比對成分名稱與使用者過敏原清單。
// 依序嘗試完全相符、部分包含、別名群組，回傳最強的命中；無命中時回傳 nil
func ResolveAllergen(ingredient string, allergies []string) *AllergenMatch {
	name := common.NormalizeName(ingredient)
	if name == "" {
		return nil
	}

	var best *AllergenMatch
	for _, allergen := range allergies {
		normalized := common.NormalizeName(allergen)
		if normalized == "" {
			continue
		}

		var matchType MatchType
		switch {
		case normalized == name:
			matchType = MatchExact
		case strings.Contains(name, normalized) || strings.Contains(normalized, name):
			matchType = MatchPartial
		case synonymHit(name, normalized):
			matchType = MatchSynonym
		default:
			continue
		}

		if best == nil || matchRank(matchType) > matchRank(best.MatchType) {
			best = &AllergenMatch{Allergen: allergen, MatchType: matchType}
		}
	}

	return best
}

// synonymHit 檢查過敏原所屬別名群組中是否有任一別名出現在成分名稱裡
func synonymHit(ingredient, allergen string) bool {
	for _, group := range synonymGroups {
		inGroup := false
		for _, term := range group {
			if term == allergen {
				inGroup = true
				break
			}
		}
		if !inGroup {
			continue
		}
		for _, term := range group {
			if strings.Contains(ingredient, term) {
				return true
			}
		}
	}
	return false
}
