package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cosmetic-analyzer/internal/core/search"
	"cosmetic-analyzer/internal/infrastructure/config"
	"cosmetic-analyzer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string]*search.Result
	err     error
	calls   []string
}

func (f *fakeSearcher) Lookup(ctx context.Context, name string) (*search.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results[name], nil
}

type fakeFallback struct {
	mu      sync.Mutex
	results map[string]*search.Result
	err     error
	calls   []string
}

func (f *fakeFallback) Search(ctx context.Context, name string) (*search.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results[name], nil
}

func testWorkflowConfig() *config.WorkflowConfig {
	return &config.WorkflowConfig{
		MaxRetries:          2,
		FallbackThreshold:   0.70,
		CompletionThreshold: 0.50,
		Workers:             2,
		LookupTimeout:       time.Second,
	}
}

func researchState(ingredients []string, profile common.UserProfile) *State {
	return NewState(profile, ingredients, 2)
}

func TestResearchComputesMeanConfidence(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]*search.Result{
		"water":       {Name: "Water", SafetyScore: 1, Confidence: 0.9},
		"niacinamide": {Name: "Niacinamide", SafetyScore: 2, Confidence: 0.8},
		"glycerin":    {Name: "Glycerin", SafetyScore: 1, Confidence: 1.0},
	}}
	r := NewResearcher(searcher, &fakeFallback{}, testWorkflowConfig(), nil)

	s := researchState([]string{"Water", "Niacinamide", "Glycerin"},
		common.UserProfile{SkinType: common.SkinNormal})
	r.Run(context.Background(), s)

	require.True(t, s.ResearchDone)
	require.Len(t, s.Items, 3)
	assert.InDelta(t, 0.9, s.MeanConfidence, 1e-9)
	assert.False(t, s.LowConfidence)
	assert.Equal(t, 1, s.ResearchAttempts)

	// 紀錄順序跟請求順序一致，與工作池的完成順序無關
	assert.Equal(t, "Water", s.Items[0].Name)
	assert.Equal(t, "Niacinamide", s.Items[1].Name)
	assert.Equal(t, "Glycerin", s.Items[2].Name)
	for _, item := range s.Items {
		assert.Equal(t, ProvenanceSearchIndex, item.Provenance)
	}
}

func TestResearchFallbackOnLowConfidence(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]*search.Result{
		"obscurin": {Name: "Obscurin", SafetyScore: 5, Confidence: 0.4},
	}}
	fallback := &fakeFallback{results: map[string]*search.Result{
		"obscurin": {Name: "Obscurin", SafetyScore: 6, Confidence: 0.6},
	}}
	r := NewResearcher(searcher, fallback, testWorkflowConfig(), nil)

	s := researchState([]string{"Obscurin"}, common.UserProfile{SkinType: common.SkinNormal})
	r.Run(context.Background(), s)

	require.Len(t, s.Items, 1)
	assert.Equal(t, ProvenanceWebFallback, s.Items[0].Provenance)
	assert.InDelta(t, 0.6, s.Items[0].Confidence, 1e-9)
	assert.Equal(t, 6, s.Items[0].BaseScore)
}

func TestResearchKeepsPrimaryWhenFallbackWeaker(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]*search.Result{
		"obscurin": {Name: "Obscurin", SafetyScore: 5, Confidence: 0.65},
	}}
	fallback := &fakeFallback{results: map[string]*search.Result{
		"obscurin": {Name: "Obscurin", SafetyScore: 7, Confidence: 0.4},
	}}
	r := NewResearcher(searcher, fallback, testWorkflowConfig(), nil)

	s := researchState([]string{"Obscurin"}, common.UserProfile{SkinType: common.SkinNormal})
	r.Run(context.Background(), s)

	require.Len(t, s.Items, 1)
	assert.Equal(t, ProvenanceSearchIndex, s.Items[0].Provenance)
	assert.InDelta(t, 0.65, s.Items[0].Confidence, 1e-9)
	// 信心低於門檻所以備援有被嘗試
	assert.Contains(t, fallback.calls, "obscurin")
}

func TestResearchSkipsFallbackOnHighConfidence(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]*search.Result{
		"water": {Name: "Water", SafetyScore: 1, Confidence: 0.95},
	}}
	fallback := &fakeFallback{}
	r := NewResearcher(searcher, fallback, testWorkflowConfig(), nil)

	s := researchState([]string{"Water"}, common.UserProfile{SkinType: common.SkinNormal})
	r.Run(context.Background(), s)

	assert.Empty(t, fallback.calls)
}

func TestResearchPlaceholderOnDoubleFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index unreachable")}
	fallback := &fakeFallback{err: errors.New("web search down")}
	r := NewResearcher(searcher, fallback, testWorkflowConfig(), nil)

	s := researchState([]string{"Mysterium"}, common.UserProfile{SkinType: common.SkinNormal})
	r.Run(context.Background(), s)

	require.True(t, s.ResearchDone)
	require.Len(t, s.Items, 1)
	item := s.Items[0]
	assert.Equal(t, ProvenanceUnavailable, item.Provenance)
	assert.LessOrEqual(t, item.Confidence, 0.1)
	assert.Contains(t, item.Concerns, "insufficient data")
	// 未知成分回退到中性分數
	assert.Equal(t, 5, item.PersonalizedScore)
	assert.True(t, s.LowConfidence)
}

func TestResearchFailureIsolatedPerItem(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]*search.Result{
		"water": {Name: "Water", SafetyScore: 1, Confidence: 0.9},
		// mysterium 缺資料
	}}
	fallback := &fakeFallback{err: errors.New("web search down")}
	r := NewResearcher(searcher, fallback, testWorkflowConfig(), nil)

	s := researchState([]string{"Water", "Mysterium"}, common.UserProfile{SkinType: common.SkinNormal})
	r.Run(context.Background(), s)

	require.Len(t, s.Items, 2)
	assert.Equal(t, ProvenanceSearchIndex, s.Items[0].Provenance)
	assert.Equal(t, ProvenanceUnavailable, s.Items[1].Provenance)
	assert.InDelta(t, 0.45, s.MeanConfidence, 1e-9)
}

func TestResearchResolvesAllergenAndScores(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]*search.Result{
		"parfum": {Name: "Parfum", SafetyScore: 7, Confidence: 0.85,
			Concerns: []string{"potential irritation"}},
	}}
	r := NewResearcher(searcher, &fakeFallback{}, testWorkflowConfig(), nil)

	s := researchState([]string{"Parfum"},
		common.UserProfile{SkinType: common.SkinSensitive, Allergies: []string{"Fragrance"}})
	r.Run(context.Background(), s)

	require.Len(t, s.Items, 1)
	item := s.Items[0]
	require.NotNil(t, item.Allergen)
	assert.Equal(t, MatchSynonym, item.Allergen.MatchType)
	assert.Equal(t, 10, item.PersonalizedScore)
	assert.Equal(t, TierAvoid, item.Tier)
}

func TestResearchDeduplicatesRequestedNames(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]*search.Result{
		"water": {Name: "Water", SafetyScore: 1, Confidence: 0.9},
	}}
	r := NewResearcher(searcher, &fakeFallback{}, testWorkflowConfig(), nil)

	s := researchState([]string{"Water", "water", " WATER "}, common.UserProfile{SkinType: common.SkinNormal})
	r.Run(context.Background(), s)

	assert.Len(t, s.Items, 1)
}
