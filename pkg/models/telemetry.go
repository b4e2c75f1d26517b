package models

import (
	"time"

	"github.com/cognitive-bandwidth/router/pkg/errs"
)

// TelemetrySample is one observation of operator interaction over the
// last tick.
type TelemetrySample struct {
	Timestamp            time.Time `json:"timestamp"`
	Keystrokes           int64     `json:"keystrokes"`
	PagerEvents          int64     `json:"pager_events"`
	QueueDepthObserved   int64     `json:"queue_depth_observed"`
	CalendarBlockMinutes float64   `json:"calendar_block_minutes"`
}

// Validate rejects negative counts; out-of-order timestamps are accepted
// by the collector and are not a validation error.
func (s TelemetrySample) Validate() error {
	switch {
	case s.Keystrokes < 0:
		return errs.New(errs.InvalidArgument, "keystrokes must be non-negative")
	case s.PagerEvents < 0:
		return errs.New(errs.InvalidArgument, "pager_events must be non-negative")
	case s.QueueDepthObserved < 0:
		return errs.New(errs.InvalidArgument, "queue_depth_observed must be non-negative")
	case s.CalendarBlockMinutes < 0:
		return errs.New(errs.InvalidArgument, "calendar_block_minutes must be non-negative")
	}
	return nil
}

// TelemetrySummary is the derived aggregate emitted by the collector.
type TelemetrySummary struct {
	KeystrokeRate     float64 `json:"keystroke_rate"`
	PagerRate         float64 `json:"pager_rate"`
	QueueDepth        float64 `json:"queue_depth"`
	CalendarLoadRatio float64 `json:"calendar_load_ratio"`
	SampleCount       int     `json:"sample_count"`
}

// AttentionContext carries inputs to the attention model beyond raw
// telemetry.
type AttentionContext struct {
	QueueDepth        int     `json:"queue_depth"`
	CalendarLoad      float64 `json:"calendar_load"`
	ContextSwitchRate float64 `json:"context_switch_rate"`
}
