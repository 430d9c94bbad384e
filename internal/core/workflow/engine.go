package workflow

import (
	"context"
	"time"

	"cosmetic-analyzer/internal/infrastructure/config"
	"cosmetic-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// Result 工作流程對呼叫端公開的最終結果
type Result struct {
	RunID            string            `json:"run_id"`
	Ingredients      []string          `json:"ingredients"`
	Items            []ItemRecord      `json:"items"`
	Narrative        string            `json:"narrative"`
	Verdict          Tier              `json:"verdict"`
	Validation       *ValidationResult `json:"validation"`
	ResearchAttempts int               `json:"research_attempts"`
	ReportAttempts   int               `json:"report_attempts"`
	MeanConfidence   float64           `json:"mean_confidence"`
	LowConfidence    bool              `json:"low_confidence"`
	Partial          bool              `json:"partial"`
	CreatedAt        time.Time         `json:"created_at"`
}

// HistoryStore 歷史紀錄協作者，可為 nil，寫入失敗只記警告不影響結果
type HistoryStore interface {
	AppendHistory(ctx context.Context, userKey string, result *Result) error
}

// Engine 工作流程引擎：依路由決策依序驅動各階段直到終態
type Engine struct {
	researcher *Researcher
	reporter   *Reporter
	config     *config.WorkflowConfig
	history    HistoryStore
}

// NewEngine 創建工作流程引擎。history 可為 nil 表示不持久化
func NewEngine(researcher *Researcher, reporter *Reporter, cfg *config.WorkflowConfig, history HistoryStore) *Engine {
	return &Engine{
		researcher: researcher,
		reporter:   reporter,
		config:     cfg,
		history:    history,
	}
}

// NewState 以引擎設定創建流程狀態
func (e *Engine) NewState(profile common.UserProfile, ingredients []string) *State {
	return NewState(profile, ingredients, e.config.MaxRetries)
}

// Run 執行完整分析流程。回傳錯誤僅發生在報告生成失敗；
// 驗證未通過且重試用盡時仍回傳帶 partial 旗標的結果
func (e *Engine) Run(ctx context.Context, s *State) (*Result, error) {
	for {
		decision := Route(s)
		common.LogWorkflowStage(s.RunID, string(decision))

		switch decision {
		case DecisionResearch:
			e.researcher.Run(ctx, s)

		case DecisionReport:
			if err := e.reporter.Run(ctx, s); err != nil {
				common.LogError("報告生成失敗，流程中止",
					zap.String("run_id", s.RunID),
					zap.Error(err),
				)
				return nil, err
			}

		case DecisionValidate:
			Validate(s)

		case DecisionDone:
			result := &Result{
				RunID:            s.RunID,
				Ingredients:      s.Ingredients,
				Items:            s.Items,
				Narrative:        s.Narrative,
				Verdict:          overallVerdict(s.Items),
				Validation:       s.Validation,
				ResearchAttempts: s.ResearchAttempts,
				ReportAttempts:   s.ReportAttempts,
				MeanConfidence:   s.MeanConfidence,
				LowConfidence:    s.LowConfidence,
				Partial:          s.Partial,
				CreatedAt:        time.Now(),
			}

			if e.history != nil && s.Profile.UserKey != "" {
				if err := e.history.AppendHistory(ctx, s.Profile.UserKey, result); err != nil {
					common.LogWarn("歷史紀錄寫入失敗",
						zap.String("run_id", s.RunID),
						zap.Error(err),
					)
				}
			}

			common.LogWorkflowStage(s.RunID, "done",
				zap.Bool("partial", result.Partial),
				zap.Int("report_attempts", result.ReportAttempts),
			)
			return result, nil
		}
	}
}
