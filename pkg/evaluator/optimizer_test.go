package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitive-bandwidth/router/pkg/policy"
)

func basePolicyParams() policy.Params {
	return policy.Params{
		SLOWeight: 0.4, UncertaintyWeight: 0.25, SeverityWeight: 0.25, AttentionWeight: 0.1,
		SLOHorizonMinutes: 60, ImmediateThreshold: 0.75, BatchThreshold: 0.45,
		MinConfidenceForAuto: 0.85, MaxSeverityForAuto: 2, ParkLoadThreshold: 0.7,
		AutoMinSLOMinutes: 15,
	}
}

func TestOptimize_EnumeratesCartesianProductInOrder(t *testing.T) {
	grid := []GridAxis{
		{Name: "min_confidence_for_auto", Values: []float64{0.7, 0.85, 0.99}},
		{Name: "max_severity_for_auto", Values: []float64{1, 2}},
	}

	_, candidates, err := Optimize(sampleRecords(), basePolicyParams(), grid, ObjectiveHumanRate)
	require.NoError(t, err)
	assert.Len(t, candidates, 6)

	assert.Equal(t, 0.7, candidates[0].Params.MinConfidenceForAuto)
	assert.Equal(t, 1, candidates[0].Params.MaxSeverityForAuto)
	assert.Equal(t, 0.7, candidates[1].Params.MinConfidenceForAuto)
	assert.Equal(t, 2, candidates[1].Params.MaxSeverityForAuto)
	assert.Equal(t, 0.99, candidates[5].Params.MinConfidenceForAuto)
	assert.Equal(t, 2, candidates[5].Params.MaxSeverityForAuto)
}

func TestOptimize_ReturnsLowestScoringCandidate(t *testing.T) {
	grid := []GridAxis{
		{Name: "min_confidence_for_auto", Values: []float64{0.5, 0.99}},
	}

	best, candidates, err := Optimize(sampleRecords(), basePolicyParams(), grid, ObjectiveHumanRate)
	require.NoError(t, err)

	minScore := candidates[0].Score
	for _, c := range candidates {
		if c.Score < minScore {
			minScore = c.Score
		}
	}
	assert.Equal(t, minScore, best.Score)
}

func TestOptimize_TieBreaksToFirstEncountered(t *testing.T) {
	grid := []GridAxis{
		{Name: "slo_horizon_minutes", Values: []float64{60, 60, 60}},
	}

	best, candidates, err := Optimize(sampleRecords(), basePolicyParams(), grid, ObjectiveHumanRate)
	require.NoError(t, err)
	assert.Equal(t, candidates[0].Label, best.Label)
}

func TestOptimize_RejectsEmptyRecords(t *testing.T) {
	_, _, err := Optimize(nil, basePolicyParams(), nil, ObjectiveHumanRate)
	require.Error(t, err)
}

func TestOptimize_DefaultsToHumanRateObjectiveWhenNil(t *testing.T) {
	best, _, err := Optimize(sampleRecords(), basePolicyParams(), nil, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, best.Score, 0.0)
}
