// Package attention implements the pure function mapping a telemetry
// summary and an attention context into a single load scalar in [0,1].
package attention

import (
	"github.com/cognitive-bandwidth/router/pkg/config"
	"github.com/cognitive-bandwidth/router/pkg/models"
)

// Model scores operator load from telemetry and context. It holds only
// configuration (weights, soft caps); Score never mutates and never
// performs I/O.
type Model struct {
	weights config.AttentionWeights
	caps    config.AttentionCaps
}

// New builds a Model from the given weights and soft caps. Weights are
// normalized to sum to 1, matching the policy weight normalization
// convention elsewhere in this codebase.
func New(weights config.AttentionWeights, caps config.AttentionCaps) *Model {
	sum := weights.Keystroke + weights.Pager + weights.QueueDepth + weights.CalendarLoad + weights.ContextSwitch
	if sum > 0 {
		weights.Keystroke /= sum
		weights.Pager /= sum
		weights.QueueDepth /= sum
		weights.CalendarLoad /= sum
		weights.ContextSwitch /= sum
	}
	return &Model{weights: weights, caps: caps}
}

// NewDefault builds a Model with the documented default weights and caps.
func NewDefault() *Model {
	return New(config.DefaultAttentionWeights(), config.DefaultAttentionCaps())
}

func saturate(raw, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	return clamp(raw/cap, 0, 1)
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// Score maps (TelemetrySummary, AttentionContext) to a load scalar in
// [0,1]. Each raw signal is saturated independently and combined by a
// weighted sum, then clamped. Increasing any raw signal while holding the
// others fixed never decreases the result.
func (m *Model) Score(summary models.TelemetrySummary, ctx models.AttentionContext) float64 {
	keystrokeComponent := saturate(summary.KeystrokeRate, m.caps.KeystrokesPerMinute)
	pagerComponent := saturate(summary.PagerRate, m.caps.PagerEventsPerMin)
	queueComponent := saturate(float64(ctx.QueueDepth), m.caps.QueueDepth)
	calendarComponent := saturate(ctx.CalendarLoad, m.caps.CalendarLoad)
	contextSwitchComponent := saturate(ctx.ContextSwitchRate, m.caps.ContextSwitchesMin)

	score := m.weights.Keystroke*keystrokeComponent +
		m.weights.Pager*pagerComponent +
		m.weights.QueueDepth*queueComponent +
		m.weights.CalendarLoad*calendarComponent +
		m.weights.ContextSwitch*contextSwitchComponent

	return clamp(score, 0, 1)
}
