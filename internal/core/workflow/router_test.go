package workflow

import (
	"testing"

	"cosmetic-analyzer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
)

func newTestState() *State {
	return NewState(common.UserProfile{SkinType: common.SkinNormal, Expertise: common.ExpertiseIntermediate},
		[]string{"Water", "Niacinamide"}, 2)
}

func TestRoutePriorityOrder(t *testing.T) {
	s := newTestState()
	assert.Equal(t, DecisionResearch, Route(s))

	s.ResearchDone = true
	assert.Equal(t, DecisionReport, Route(s))

	s.ReportDone = true
	assert.Equal(t, DecisionValidate, Route(s))

	s.Validated = true
	s.Validation = &ValidationResult{Approved: true}
	assert.Equal(t, DecisionDone, Route(s))
	assert.False(t, s.Partial)
}

func TestRouteRetryOnRejection(t *testing.T) {
	s := newTestState()
	s.ResearchDone = true
	s.ReportDone = true
	s.Validated = true
	s.Validation = &ValidationResult{Approved: false, Feedback: "missing Water"}

	assert.Equal(t, DecisionReport, Route(s))
	assert.Equal(t, 1, s.ReportAttempts)
	assert.False(t, s.Validated)
	assert.Equal(t, "missing Water", s.Feedback)
}

func TestRouteExhaustedRetriesEndsPartial(t *testing.T) {
	s := newTestState()
	s.ResearchDone = true
	s.ReportDone = true
	s.Validated = true
	s.ReportAttempts = s.MaxRetries
	s.Validation = &ValidationResult{Approved: false, Feedback: "still wrong"}

	assert.Equal(t, DecisionDone, Route(s))
	assert.True(t, s.Partial)
	assert.Equal(t, s.MaxRetries, s.ReportAttempts)
}

func TestRouteNeverExceedsRetryCeiling(t *testing.T) {
	// 模擬驗證永遠退回：Report 決策最多出現 max_retries+1 次，且一定終止
	s := newTestState()
	reports := 0
	for i := 0; i < 20; i++ {
		switch Route(s) {
		case DecisionResearch:
			s.ResearchDone = true
		case DecisionReport:
			reports++
			s.ReportDone = true
			s.Validated = false
		case DecisionValidate:
			s.Validated = true
			s.Validation = &ValidationResult{Approved: false, Feedback: "rejected"}
		case DecisionDone:
			assert.Equal(t, s.MaxRetries+1, reports)
			assert.True(t, s.Partial)
			return
		}
	}
	t.Fatal("router did not reach a terminal state")
}
