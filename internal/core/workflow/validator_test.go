package workflow

import (
	"testing"

	"cosmetic-analyzer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationState(expertise common.ExpertiseLevel, items []ItemRecord, narrative string) *State {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return &State{
		RunID:        "test-run",
		Profile:      common.UserProfile{SkinType: common.SkinNormal, Expertise: expertise},
		Ingredients:  names,
		Items:        items,
		Narrative:    narrative,
		ResearchDone: true,
		ReportDone:   true,
		MaxRetries:   2,
	}
}

func TestValidateApprovesCleanNarrative(t *testing.T) {
	items := []ItemRecord{
		{Name: "Water", PersonalizedScore: 1, Tier: TierSafe},
		{Name: "Parfum", PersonalizedScore: 10, Tier: TierAvoid,
			Allergen: &AllergenMatch{Allergen: "fragrance", MatchType: MatchSynonym}},
	}
	narrative := "Water is a gentle base and safe for everyone.\n" +
		"Parfum ⚠️ ALLERGEN matches your fragrance allergy, avoid this product.\n" +
		"Overall verdict: AVOID."

	result := Validate(validationState(common.ExpertiseIntermediate, items, narrative))

	assert.True(t, result.Approved)
	assert.Empty(t, result.FailedGates)
	assert.Empty(t, result.Feedback)
}

func TestValidateCompletenessGate(t *testing.T) {
	items := []ItemRecord{
		{Name: "Water", PersonalizedScore: 1, Tier: TierSafe},
		{Name: "Niacinamide", PersonalizedScore: 2, Tier: TierSafe},
	}
	narrative := "Water is safe to use."

	result := Validate(validationState(common.ExpertiseIntermediate, items, narrative))

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedGates, GateCompleteness)
	assert.Contains(t, result.Feedback, "Niacinamide")
}

func TestValidateAllergenCoverageGate(t *testing.T) {
	items := []ItemRecord{
		{Name: "Parfum", PersonalizedScore: 10, Tier: TierAvoid,
			Allergen: &AllergenMatch{Allergen: "fragrance", MatchType: MatchSynonym}},
	}
	// 提到成分但沒有警示標記
	narrative := "Parfum adds scent, you should avoid it."

	result := Validate(validationState(common.ExpertiseIntermediate, items, narrative))

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedGates, GateAllergen)
}

func TestValidateConsistencyGateRejectsSafeClaimForHighScore(t *testing.T) {
	items := []ItemRecord{
		{Name: "Parfum", PersonalizedScore: 9, Tier: TierAvoid},
	}
	narrative := "Parfum is safe for daily use."

	result := Validate(validationState(common.ExpertiseIntermediate, items, narrative))

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedGates, GateConsistency)
}

func TestValidateConsistencyGateRejectsAvoidClaimForLowScore(t *testing.T) {
	items := []ItemRecord{
		{Name: "Water", PersonalizedScore: 1, Tier: TierSafe},
	}
	narrative := "Water should be avoided at all costs."

	result := Validate(validationState(common.ExpertiseIntermediate, items, narrative))

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedGates, GateConsistency)
}

func TestValidateToneGateBeginnerJargon(t *testing.T) {
	items := []ItemRecord{
		{Name: "Coconut Oil", PersonalizedScore: 5, Tier: TierCaution},
	}
	narrative := "Coconut Oil is comedogenic, use with caution."

	result := Validate(validationState(common.ExpertiseBeginner, items, narrative))

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedGates, GateTone)
}

func TestValidateToneGateExpertRequiresTechnicalTerm(t *testing.T) {
	items := []ItemRecord{
		{Name: "Niacinamide", PersonalizedScore: 2, Tier: TierSafe},
	}
	plain := "Niacinamide is nice and safe."
	technical := "Niacinamide supports barrier function and is safe at typical concentration levels."

	rejected := Validate(validationState(common.ExpertiseExpert, items, plain))
	require.False(t, rejected.Approved)
	assert.Contains(t, rejected.FailedGates, GateTone)

	approved := Validate(validationState(common.ExpertiseExpert, items, technical))
	assert.True(t, approved.Approved)
}

func TestValidateIdempotent(t *testing.T) {
	items := []ItemRecord{
		{Name: "Water", PersonalizedScore: 1, Tier: TierSafe},
		{Name: "Niacinamide", PersonalizedScore: 2, Tier: TierSafe},
	}
	s := validationState(common.ExpertiseIntermediate, items, "Water is safe.")

	first := Validate(s)
	second := Validate(s)

	assert.Equal(t, first.Approved, second.Approved)
	assert.Equal(t, first.FailedGates, second.FailedGates)
	assert.Equal(t, first.Feedback, second.Feedback)
	assert.True(t, s.Validated)
}

func TestValidateFeedbackNamesEveryFailedGate(t *testing.T) {
	items := []ItemRecord{
		{Name: "Parfum", PersonalizedScore: 10, Tier: TierAvoid,
			Allergen: &AllergenMatch{Allergen: "fragrance", MatchType: MatchSynonym}},
		{Name: "Niacinamide", PersonalizedScore: 2, Tier: TierSafe},
	}
	narrative := "Parfum is safe to use."

	result := Validate(validationState(common.ExpertiseIntermediate, items, narrative))

	require.False(t, result.Approved)
	assert.Contains(t, result.FailedGates, GateCompleteness)
	assert.Contains(t, result.FailedGates, GateAllergen)
	assert.Contains(t, result.FailedGates, GateConsistency)
	for _, gate := range result.FailedGates {
		assert.Contains(t, result.Feedback, gate)
	}
}
