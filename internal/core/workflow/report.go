package workflow

import (
	"context"
	"fmt"
	"strings"

	"cosmetic-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// TextGenerator 敘述生成協作者
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// toneInstructions 依專業程度調整敘述口吻
var toneInstructions = map[common.ExpertiseLevel]string{
	common.ExpertiseBeginner:     "Use simple, clear language. Avoid jargon. Focus on practical implications.",
	common.ExpertiseIntermediate: "Use moderate technical detail. Explain key concepts briefly.",
	common.ExpertiseExpert:       "Use technical terminology. Include chemical mechanisms and concentration considerations.",
}

// Reporter 報告生成器
type Reporter struct {
	generator TextGenerator
}

// NewReporter 創建報告生成器
func NewReporter(generator TextGenerator) *Reporter {
	return &Reporter{generator: generator}
}

// Run 組裝結構化提示詞並呼叫生成協作者。
// 生成失敗沒有安全的降級值，直接以流程層級錯誤回報
func (r *Reporter) Run(ctx context.Context, s *State) error {
	prompt := buildReportPrompt(s)

	text, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrReportGeneration, err)
	}

	s.Narrative = text
	s.ReportDone = true
	s.Validated = false
	// 回饋已併入提示詞，用過即清
	s.Feedback = ""

	common.LogWorkflowStage(s.RunID, "report",
		zap.Int("attempt", s.ReportAttempts+1),
		zap.Int("narrative_length", len(text)),
	)
	return nil
}

// overallVerdict 整體結論推導：任一 AVOID 即 AVOID，否則任一 CAUTION 即 CAUTION，否則 SAFE
func overallVerdict(items []ItemRecord) Tier {
	verdict := TierSafe
	for _, item := range items {
		switch item.Tier {
		case TierAvoid:
			return TierAvoid
		case TierCaution:
			verdict = TierCaution
		}
	}
	return verdict
}

// buildReportPrompt 組裝生成提示詞：使用者輪廓、逐項成分摘要、輸出要求，重試時附上退回回饋
func buildReportPrompt(s *State) string {
	var b strings.Builder

	b.WriteString("You are a cosmetic ingredient safety analyst. Generate a personalized safety analysis report.\n\n")

	allergenList := "None"
	if len(s.Profile.Allergies) > 0 {
		allergenList = strings.Join(s.Profile.Allergies, ", ")
	}
	b.WriteString("USER PROFILE:\n")
	fmt.Fprintf(&b, "- Skin Type: %s\n", s.Profile.SkinType)
	fmt.Fprintf(&b, "- Expertise Level: %s\n", s.Profile.Expertise)
	fmt.Fprintf(&b, "- Allergens/Ingredients to Avoid: %s\n\n", allergenList)

	b.WriteString("INGREDIENTS TO ANALYZE:\n")
	for _, item := range s.Items {
		fmt.Fprintf(&b, "- %s: %s (personalized score %d/10, recommendation %s",
			item.Name, item.Purpose, item.PersonalizedScore, item.Tier)
		if len(item.Concerns) > 0 {
			fmt.Fprintf(&b, ", concerns: %s", strings.Join(item.Concerns, ", "))
		}
		if item.Allergen != nil {
			fmt.Fprintf(&b, ", ⚠️ matches user allergen %q (%s match)", item.Allergen.Allergen, item.Allergen.MatchType)
		}
		b.WriteString(")\n")
	}
	b.WriteString("\n")

	tone, ok := toneInstructions[s.Profile.Expertise]
	if !ok {
		tone = "Use clear, accessible language."
	}

	b.WriteString("INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "1. %s\n", tone)
	b.WriteString("2. Address EVERY ingredient listed above by name, with its purpose, personalized score, and recommendation.\n")
	b.WriteString("3. Mark every ingredient that matches the user's allergen list with \"⚠️ ALLERGEN\" on its line and recommend AVOID for it.\n")
	fmt.Fprintf(&b, "4. State the overall verdict exactly as: %s.\n", overallVerdict(s.Items))
	b.WriteString("5. Do not claim an ingredient is safe when its personalized score is 8 or higher, and do not tell the user to avoid an ingredient scored 4 or lower.\n")
	fmt.Fprintf(&b, "6. Close with practical guidance for %s skin.\n", s.Profile.SkinType)

	if s.LowConfidence {
		b.WriteString("7. Data confidence for this batch is low; hedge conclusions accordingly and say the data is limited.\n")
	}

	if s.Feedback != "" {
		b.WriteString("\nPREVIOUS ATTEMPT WAS REJECTED BY THE QUALITY REVIEWER:\n")
		b.WriteString(s.Feedback)
		b.WriteString("\nRegenerate the report and fix exactly the issues listed above. Keep everything that was already correct.\n")
	}

	return b.String()
}
