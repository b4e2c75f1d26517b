package config

// AttentionWeights are the five per-axis weights the attention model
// combines into a load scalar; they must sum to 1 (enforced by
// attention.New).
type AttentionWeights struct {
	Keystroke     float64
	Pager         float64
	QueueDepth    float64
	CalendarLoad  float64
	ContextSwitch float64
}

// AttentionCaps are the soft caps used to saturate each raw telemetry/
// context signal into a partial load in [0,1] before weighting.
type AttentionCaps struct {
	KeystrokesPerMinute float64
	PagerEventsPerMin   float64
	QueueDepth          float64
	CalendarLoad        float64
	ContextSwitchesMin  float64
}

// DefaultAttentionWeights returns the five axes weighted equally, per
// spec.md §4.3.
func DefaultAttentionWeights() AttentionWeights {
	return AttentionWeights{
		Keystroke:     0.2,
		Pager:         0.2,
		QueueDepth:    0.2,
		CalendarLoad:  0.2,
		ContextSwitch: 0.2,
	}
}

// DefaultAttentionCaps returns the soft caps documented in spec.md §4.3.
func DefaultAttentionCaps() AttentionCaps {
	return AttentionCaps{
		KeystrokesPerMinute: 120,
		PagerEventsPerMin:   4,
		QueueDepth:          10,
		CalendarLoad:        1.0,
		ContextSwitchesMin:  6,
	}
}
