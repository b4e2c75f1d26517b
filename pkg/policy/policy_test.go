package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitive-bandwidth/router/pkg/errs"
	"github.com/cognitive-bandwidth/router/pkg/models"
)

func mustTask(severity int, confidence, sloRisk float64, tag models.SensitivityTag) models.TaskIntent {
	if tag == "" {
		tag = models.SensitivityStandard
	}
	return models.TaskIntent{
		TaskID:          "t1",
		Severity:        severity,
		ModelConfidence: confidence,
		SLORiskMinutes:  sloRisk,
		SensitivityTag:  tag,
		SubmittedAt:     time.Now(),
	}
}

func TestNew_RejectsNegativeWeights(t *testing.T) {
	_, err := New(Params{SLOWeight: -0.1, UncertaintyWeight: 0.5, SeverityWeight: 0.3, AttentionWeight: 0.3,
		SLOHorizonMinutes: 60, ImmediateThreshold: 0.75, BatchThreshold: 0.45, MinConfidenceForAuto: 0.85,
		MaxSeverityForAuto: 2, ParkLoadThreshold: 0.7})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.ConfigError, e.Kind)
}

func TestNew_NormalizesWeightsToSumOne(t *testing.T) {
	p, err := New(Params{SLOWeight: 2, UncertaintyWeight: 1, SeverityWeight: 1, AttentionWeight: 0,
		SLOHorizonMinutes: 60, ImmediateThreshold: 0.75, BatchThreshold: 0.45, MinConfidenceForAuto: 0.85,
		MaxSeverityForAuto: 2, ParkLoadThreshold: 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.SLOWeight+p.UncertaintyWeight+p.SeverityWeight+p.AttentionWeight, 1e-9)
	assert.InDelta(t, 0.5, p.SLOWeight, 1e-9)
}

func TestNew_RejectsBadThresholdOrdering(t *testing.T) {
	_, err := New(Params{SLOWeight: 0.4, UncertaintyWeight: 0.25, SeverityWeight: 0.25, AttentionWeight: 0.1,
		SLOHorizonMinutes: 60, ImmediateThreshold: 0.4, BatchThreshold: 0.45, MinConfidenceForAuto: 0.85,
		MaxSeverityForAuto: 2, ParkLoadThreshold: 0.7})
	require.Error(t, err)
}

func TestDecide_Scenario1_AutoSafePath(t *testing.T) {
	p := Default()
	task := mustTask(2, 0.92, 30, "")
	item, err := p.Decide(task, 0, 0.8, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StrategyAuto, item.Strategy)
}

func TestDecide_Scenario2_ImmediateCritical(t *testing.T) {
	p := Default()
	task := mustTask(5, 0.40, 5, "")
	item, err := p.Decide(task, 0, 0.2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StrategyImmediate, item.Strategy)
	assert.GreaterOrEqual(t, item.Priority, 0.75)
}

func TestDecide_Scenario3_BatchMedium(t *testing.T) {
	p := Default()
	task := mustTask(3, 0.65, 25, "")
	item, err := p.Decide(task, 2, 0.4, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StrategyBatch, item.Strategy)
	assert.GreaterOrEqual(t, item.Priority, 0.45)
	assert.Less(t, item.Priority, 0.75)
}

func TestDecide_Scenario4_ParkUnderOverload(t *testing.T) {
	p := Default()
	task := mustTask(2, 0.5, 40, "")
	item, err := p.Decide(task, 0, 0.85, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StrategyPark, item.Strategy)
	assert.Contains(t, item.Rationale.RuleFired, "overloaded")
}

func TestDecide_Scenario5_RegulatedNeverParked(t *testing.T) {
	p := Default()
	task := mustTask(2, 0.5, 40, models.SensitivityRegulated)
	item, err := p.Decide(task, 0, 0.85, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, models.StrategyPark, item.Strategy)
	assert.Equal(t, models.StrategyBatch, item.Strategy)
}

func TestDecide_RegulatedNeverParksAtFinalFallback(t *testing.T) {
	p := Default()
	// Below batch_threshold too, so the non-regulated version of this
	// task falls through every rule to the final park fallback.
	task := mustTask(1, 0.3, 90, models.SensitivityStandard)
	item, err := p.Decide(task, 0, 0.2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StrategyPark, item.Strategy)

	regulated := mustTask(1, 0.3, 90, models.SensitivityRegulated)
	regulatedItem, err := p.Decide(regulated, 0, 0.2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StrategyBatch, regulatedItem.Strategy)
}

func TestDecide_AutoFiresRegardlessOfLoad(t *testing.T) {
	p := Default()
	task := mustTask(1, 0.99, 100, "")
	for _, load := range []float64{0, 0.5, 0.99} {
		item, err := p.Decide(task, 0, load, time.Now())
		require.NoError(t, err)
		assert.Equal(t, models.StrategyAuto, item.Strategy)
	}
}

func TestDecide_InvalidTaskReturnsInvalidArgument(t *testing.T) {
	p := Default()
	task := mustTask(9, 0.5, 10, "")
	_, err := p.Decide(task, 0, 0.1, time.Now())
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.InvalidArgument, e.Kind)
}

func TestDecide_PriorityMonotoneInSeverity(t *testing.T) {
	p := Default()
	low := mustTask(1, 0.5, 30, "")
	high := mustTask(5, 0.5, 30, "")

	lowItem, err := p.Decide(low, 0, 0.3, time.Now())
	require.NoError(t, err)
	highItem, err := p.Decide(high, 0, 0.3, time.Now())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, highItem.Priority, lowItem.Priority)
}

func TestDecide_PriorityMonotoneInUncertainty(t *testing.T) {
	p := Default()
	confident := mustTask(3, 0.9, 30, "")
	unsure := mustTask(3, 0.1, 30, "")

	confidentItem, err := p.Decide(confident, 0, 0.3, time.Now())
	require.NoError(t, err)
	unsureItem, err := p.Decide(unsure, 0, 0.3, time.Now())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, unsureItem.Priority, confidentItem.Priority)
}

func TestDecide_PriorityMonotoneInFreeAttention(t *testing.T) {
	p := Default()
	task := mustTask(3, 0.5, 30, "")

	free, err := p.Decide(task, 0, 0.0, time.Now())
	require.NoError(t, err)
	saturated, err := p.Decide(task, 0, 1.0, time.Now())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, free.Priority, saturated.Priority)
}

func TestDecide_PriorityInRange(t *testing.T) {
	p := Default()
	task := mustTask(5, 0.0, 0, "")
	item, err := p.Decide(task, 0, 1.0, time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, item.Priority, 0.0)
	assert.LessOrEqual(t, item.Priority, 1.0)
}

func TestDecide_ExactlyOneStrategyDeterministic(t *testing.T) {
	p := Default()
	task := mustTask(3, 0.6, 20, "")
	first, err := p.Decide(task, 1, 0.5, time.Now())
	require.NoError(t, err)
	second, err := p.Decide(task, 1, 0.5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, first.Strategy, second.Strategy)
	assert.Equal(t, first.Priority, second.Priority)
}
