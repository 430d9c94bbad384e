package workflow

import (
	"cosmetic-analyzer/internal/pkg/common"
)

// Decision 路由決策
type Decision string

const (
	DecisionResearch Decision = "research"
	DecisionReport   Decision = "report"
	DecisionValidate Decision = "validate"
	DecisionDone     Decision = "done"
)

// Provenance 成分資料來源
type Provenance string

const (
	ProvenanceSearchIndex Provenance = "search_index"
	ProvenanceWebFallback Provenance = "web_fallback"
	ProvenanceUnavailable Provenance = "unavailable"
)

// Tier 個人化建議等級
type Tier string

const (
	TierSafe    Tier = "SAFE"
	TierCaution Tier = "CAUTION"
	TierAvoid   Tier = "AVOID"
)

// MatchType 過敏原比對方式
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
	MatchSynonym MatchType = "synonym"
)

// AllergenMatch 過敏原命中結果
type AllergenMatch struct {
	Allergen  string    `json:"allergen"`
	MatchType MatchType `json:"match_type"`
}

// ItemRecord 單一成分的完整分析紀錄
type ItemRecord struct {
	Name              string         `json:"name"`
	Purpose           string         `json:"purpose"`
	BaseScore         int            `json:"base_score"`
	Concerns          []string       `json:"concerns"`
	Description       string         `json:"description"`
	Confidence        float64        `json:"confidence"`
	Provenance        Provenance     `json:"provenance"`
	PersonalizedScore int            `json:"personalized_score"`
	Tier              Tier           `json:"tier"`
	Adjustments       []string       `json:"adjustments,omitempty"`
	Allergen          *AllergenMatch `json:"allergen,omitempty"`
}

// ValidationResult 品質驗證結果
type ValidationResult struct {
	Approved    bool     `json:"approved"`
	FailedGates []string `json:"failed_gates,omitempty"`
	Feedback    string   `json:"feedback,omitempty"`
}

// State 單次分析流程的完整狀態，由單一流程獨佔，不跨流程共享
type State struct {
	RunID       string
	Profile     common.UserProfile
	Ingredients []string

	ResearchDone bool
	ReportDone   bool
	Validated    bool

	ResearchAttempts int
	ReportAttempts   int
	MaxRetries       int

	Items      []ItemRecord
	Narrative  string
	Validation *ValidationResult

	// Feedback 上一輪驗證被退回的回饋，重試時帶入提示詞
	Feedback string

	MeanConfidence float64
	LowConfidence  bool
	Partial        bool
}

// NewState 創建新的流程狀態。成分名稱做不分大小寫去重，過敏原做標準化
func NewState(profile common.UserProfile, ingredients []string, maxRetries int) *State {
	normalizedAllergies := make([]string, 0, len(profile.Allergies))
	for _, a := range profile.Allergies {
		if n := common.NormalizeName(a); n != "" {
			normalizedAllergies = append(normalizedAllergies, n)
		}
	}
	profile.Allergies = normalizedAllergies

	return &State{
		RunID:       common.GenerateUUID(),
		Profile:     profile,
		Ingredients: common.DedupeNames(ingredients),
		MaxRetries:  maxRetries,
	}
}
