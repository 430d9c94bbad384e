package workflow

import (
	"context"
	"sync"
	"testing"

	"cosmetic-analyzer/internal/core/search"
	"cosmetic-analyzer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu        sync.Mutex
	narrative string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.narrative, nil
}

type fakeHistory struct {
	userKey string
	result  *Result
}

func (f *fakeHistory) AppendHistory(ctx context.Context, userKey string, result *Result) error {
	f.userKey = userKey
	f.result = result
	return nil
}

func testEngine(generator TextGenerator, history HistoryStore) *Engine {
	searcher := &fakeSearcher{results: map[string]*search.Result{
		"water":       {Name: "Water", SafetyScore: 1, Confidence: 0.95},
		"niacinamide": {Name: "Niacinamide", SafetyScore: 2, Confidence: 0.9},
		"parfum": {Name: "Parfum", SafetyScore: 7, Confidence: 0.85,
			Concerns: []string{"potential irritation"}},
	}}
	cfg := testWorkflowConfig()
	researcher := NewResearcher(searcher, &fakeFallback{}, cfg, nil)
	reporter := NewReporter(generator)
	return NewEngine(researcher, reporter, cfg, history)
}

func TestEngineEndToEndApproved(t *testing.T) {
	generator := &fakeGenerator{
		narrative: "Water keeps the formula gentle and is safe.\n" +
			"Niacinamide brightens skin and is safe for sensitive skin.\n" +
			"Parfum ⚠️ ALLERGEN matches your fragrance allergy, avoid this product.\n" +
			"Overall verdict: AVOID.",
	}
	history := &fakeHistory{}
	engine := testEngine(generator, history)

	profile := common.UserProfile{
		UserKey:   "user-1",
		SkinType:  common.SkinSensitive,
		Allergies: []string{"Fragrance"},
		Expertise: common.ExpertiseIntermediate,
	}
	state := engine.NewState(profile, []string{"Water", "Niacinamide", "Parfum"})

	result, err := engine.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Validation.Approved)
	assert.False(t, result.Partial)
	assert.Equal(t, 1, generator.calls)

	// Parfum 必須以同義詞命中過敏原並強制滿分
	require.Len(t, result.Items, 3)
	parfum := result.Items[2]
	require.NotNil(t, parfum.Allergen)
	assert.Equal(t, "fragrance", parfum.Allergen.Allergen)
	assert.Equal(t, MatchSynonym, parfum.Allergen.MatchType)
	assert.Equal(t, 10, parfum.PersonalizedScore)

	assert.Contains(t, result.Narrative, "⚠️")
	assert.Contains(t, []Tier{TierCaution, TierAvoid}, result.Verdict)

	// 歷史紀錄被寫入
	assert.Equal(t, "user-1", history.userKey)
	require.NotNil(t, history.result)
	assert.Equal(t, result.RunID, history.result.RunID)
}

func TestEngineRetryCarriesFeedback(t *testing.T) {
	// 第一版漏掉 Parfum，第二版補上
	generator := &fakeGenerator{narrative: "Water is safe. Niacinamide is safe."}
	engine := testEngine(generator, nil)

	profile := common.UserProfile{
		SkinType:  common.SkinSensitive,
		Allergies: []string{"Fragrance"},
		Expertise: common.ExpertiseIntermediate,
	}
	state := engine.NewState(profile, []string{"Water", "Niacinamide", "Parfum"})

	_, err := engine.Run(context.Background(), state)
	require.NoError(t, err)

	require.GreaterOrEqual(t, generator.calls, 2)
	// 重試的提示詞必須帶上退回回饋
	assert.Contains(t, generator.prompts[1], "PREVIOUS ATTEMPT WAS REJECTED")
	assert.Contains(t, generator.prompts[1], "Parfum")
}

func TestEngineRetryExhaustionYieldsPartial(t *testing.T) {
	generator := &fakeGenerator{narrative: "This product looks fine."}
	engine := testEngine(generator, nil)

	profile := common.UserProfile{
		SkinType:  common.SkinNormal,
		Expertise: common.ExpertiseIntermediate,
	}
	state := engine.NewState(profile, []string{"Water", "Niacinamide"})

	result, err := engine.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Partial)
	require.NotNil(t, result.Validation)
	assert.False(t, result.Validation.Approved)
	assert.Equal(t, state.MaxRetries, result.ReportAttempts)
	// 首次生成加上重試，不超過 max_retries+1 次
	assert.Equal(t, state.MaxRetries+1, generator.calls)
}

func TestEngineReportFailureSurfacesError(t *testing.T) {
	generator := &fakeGenerator{err: assert.AnError}
	engine := testEngine(generator, nil)

	profile := common.UserProfile{SkinType: common.SkinNormal, Expertise: common.ExpertiseBeginner}
	state := engine.NewState(profile, []string{"Water"})

	result, err := engine.Run(context.Background(), state)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrReportGeneration)
}
