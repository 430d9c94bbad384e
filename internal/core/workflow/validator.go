package workflow

import (
	"fmt"
	"strings"

	"cosmetic-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// 驗證閘門名稱
const (
	GateCompleteness = "completeness"
	GateAllergen     = "allergen_coverage"
	GateConsistency  = "consistency"
	GateTone         = "tone"
)

// beginnerJargon 初學者敘述中不該出現的術語
var beginnerJargon = []string{
	"comedogenic",
	"keratinocyte",
	"transepidermal",
	"percutaneous",
	"cytotoxic",
	"vasoconstriction",
}

// expertTerms 專家敘述中至少要出現一個的技術詞彙
var expertTerms = []string{
	"mechanism",
	"molecular",
	"concentration",
	"formulation",
	"comedogenic",
	"barrier function",
	"keratinocyte",
	"transepidermal",
}

// Validate 對敘述與成分紀錄執行四道獨立閘門，全數通過才核准。
// 驗證本身永遠完成，只有敘述會被退回；相同輸入重複驗證結果相同
func Validate(s *State) *ValidationResult {
	checks := []struct {
		name string
		run  func(s *State) (bool, string)
	}{
		{GateCompleteness, checkCompleteness},
		{GateAllergen, checkAllergenCoverage},
		{GateConsistency, checkConsistency},
		{GateTone, checkTone},
	}

	var failed []string
	var feedback []string
	for _, check := range checks {
		ok, instruction := check.run(s)
		if !ok {
			failed = append(failed, check.name)
			feedback = append(feedback, fmt.Sprintf("%s: %s", check.name, instruction))
		}
	}

	result := &ValidationResult{
		Approved:    len(failed) == 0,
		FailedGates: failed,
	}
	if !result.Approved {
		result.Feedback = strings.Join(feedback, "\n")
	}

	s.Validated = true
	s.Validation = result

	common.LogWorkflowStage(s.RunID, "validate",
		zap.Bool("approved", result.Approved),
		zap.Strings("failed_gates", failed),
	)
	return result
}

// checkCompleteness 每個成分名稱都必須出現在敘述中（不分大小寫）
func checkCompleteness(s *State) (bool, string) {
	narrative := strings.ToLower(s.Narrative)

	var missing []string
	for _, name := range s.Ingredients {
		if !strings.Contains(narrative, common.NormalizeName(name)) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return false, fmt.Sprintf("the narrative does not mention: %s. Address every ingredient by name.",
			strings.Join(missing, ", "))
	}
	return true, ""
}

// checkAllergenCoverage 每個過敏原命中的成分，其所在敘述行必須帶有警示標記
func checkAllergenCoverage(s *State) (bool, string) {
	lines := strings.Split(strings.ToLower(s.Narrative), "\n")

	var unmarked []string
	for _, item := range s.Items {
		if item.Allergen == nil {
			continue
		}
		name := common.NormalizeName(item.Name)
		marked := false
		for _, line := range lines {
			if strings.Contains(line, name) && (strings.Contains(line, "⚠️") || strings.Contains(line, "allergen")) {
				marked = true
				break
			}
		}
		if !marked {
			unmarked = append(unmarked, item.Name)
		}
	}
	if len(unmarked) > 0 {
		return false, fmt.Sprintf("mark these allergen matches with \"⚠️ ALLERGEN\" on their lines: %s.",
			strings.Join(unmarked, ", "))
	}
	return true, ""
}

// checkConsistency 敘述中宣稱的等級不得與個人化分數矛盾：
// 分數 8 以上不得說安全，4 以下不得叫人避開。行內關鍵字以 avoid > caution > safe 優先判定
func checkConsistency(s *State) (bool, string) {
	lines := strings.Split(strings.ToLower(s.Narrative), "\n")

	var contradictions []string
	for _, item := range s.Items {
		name := common.NormalizeName(item.Name)
		for _, line := range lines {
			if !strings.Contains(line, name) {
				continue
			}

			var claimed Tier
			switch {
			case strings.Contains(line, "avoid"):
				claimed = TierAvoid
			case strings.Contains(line, "caution"):
				claimed = TierCaution
			case strings.Contains(line, "safe"):
				claimed = TierSafe
			default:
				continue
			}

			if claimed == TierSafe && item.PersonalizedScore >= 8 {
				contradictions = append(contradictions,
					fmt.Sprintf("%s (score %d) is described as safe", item.Name, item.PersonalizedScore))
			}
			if claimed == TierAvoid && item.PersonalizedScore <= 4 {
				contradictions = append(contradictions,
					fmt.Sprintf("%s (score %d) is described as avoid", item.Name, item.PersonalizedScore))
			}
		}
	}
	if len(contradictions) > 0 {
		return false, fmt.Sprintf("fix tier claims that contradict personalized scores: %s.",
			strings.Join(contradictions, "; "))
	}
	return true, ""
}

// checkTone 詞彙必須符合專業程度：初學者不得出現術語，專家至少出現一個技術詞彙
func checkTone(s *State) (bool, string) {
	narrative := strings.ToLower(s.Narrative)

	switch s.Profile.Expertise {
	case common.ExpertiseBeginner:
		var found []string
		for _, term := range beginnerJargon {
			if strings.Contains(narrative, term) {
				found = append(found, term)
			}
		}
		if len(found) > 0 {
			return false, fmt.Sprintf("the narrative uses jargon unsuitable for a beginner (%s). Rephrase in plain language.",
				strings.Join(found, ", "))
		}
	case common.ExpertiseExpert:
		if !containsAny(narrative, expertTerms) {
			return false, "the narrative lacks technical depth for an expert reader. Include mechanism-level detail."
		}
	}
	return true, ""
}
