package attention

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cognitive-bandwidth/router/pkg/models"
)

func TestModel_ZeroInputsProduceZeroLoad(t *testing.T) {
	m := NewDefault()
	load := m.Score(models.TelemetrySummary{}, models.AttentionContext{})
	assert.Equal(t, 0.0, load)
}

func TestModel_LoadInRange(t *testing.T) {
	m := NewDefault()
	load := m.Score(
		models.TelemetrySummary{KeystrokeRate: 500, PagerRate: 40},
		models.AttentionContext{QueueDepth: 100, CalendarLoad: 5, ContextSwitchRate: 40},
	)
	assert.GreaterOrEqual(t, load, 0.0)
	assert.LessOrEqual(t, load, 1.0)
	assert.Equal(t, 1.0, load, "every axis is saturated so the weighted sum should clamp to 1")
}

func TestModel_Monotonicity(t *testing.T) {
	m := NewDefault()
	base := models.AttentionContext{QueueDepth: 1, CalendarLoad: 0.1, ContextSwitchRate: 1}
	baseSummary := models.TelemetrySummary{KeystrokeRate: 10, PagerRate: 1}

	baseline := m.Score(baseSummary, base)

	raised := baseSummary
	raised.KeystrokeRate += 20
	assert.GreaterOrEqual(t, m.Score(raised, base), baseline)

	raised2 := baseSummary
	raised2.PagerRate += 2
	assert.GreaterOrEqual(t, m.Score(raised2, base), baseline)

	raisedCtx := base
	raisedCtx.QueueDepth += 3
	assert.GreaterOrEqual(t, m.Score(baseSummary, raisedCtx), baseline)

	raisedCtx2 := base
	raisedCtx2.CalendarLoad += 0.3
	assert.GreaterOrEqual(t, m.Score(baseSummary, raisedCtx2), baseline)

	raisedCtx3 := base
	raisedCtx3.ContextSwitchRate += 2
	assert.GreaterOrEqual(t, m.Score(baseSummary, raisedCtx3), baseline)
}

func TestModel_EqualWeightsDefault(t *testing.T) {
	m := NewDefault()
	assert.InDelta(t, 0.2, m.weights.Keystroke, 1e-9)
	assert.InDelta(t, 0.2, m.weights.ContextSwitch, 1e-9)
}
