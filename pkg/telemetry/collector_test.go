package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitive-bandwidth/router/pkg/errs"
	"github.com/cognitive-bandwidth/router/pkg/models"
)

func TestCollector_EmptySummaryIsZeroed(t *testing.T) {
	c := New(10 * time.Minute)
	summary := c.Summary(time.Now())
	assert.Equal(t, models.TelemetrySummary{}, summary)
	assert.Equal(t, 0, summary.SampleCount)
}

func TestCollector_NormalizesRatesOverWindow(t *testing.T) {
	c := New(2 * time.Minute)
	now := time.Now()

	require.NoError(t, c.Record(models.TelemetrySample{
		Timestamp:            now.Add(-90 * time.Second),
		Keystrokes:           120,
		PagerEvents:          2,
		QueueDepthObserved:   4,
		CalendarBlockMinutes: 30,
	}, now))
	require.NoError(t, c.Record(models.TelemetrySample{
		Timestamp:            now.Add(-30 * time.Second),
		Keystrokes:           120,
		PagerEvents:          2,
		QueueDepthObserved:   6,
		CalendarBlockMinutes: 30,
	}, now))

	summary := c.Summary(now)
	assert.Equal(t, 2, summary.SampleCount)
	assert.InDelta(t, 120.0, summary.KeystrokeRate, 1e-9) // 240 keystrokes / 2 minutes
	assert.InDelta(t, 2.0, summary.PagerRate, 1e-9)
	assert.InDelta(t, 5.0, summary.QueueDepth, 1e-9)
	assert.InDelta(t, 1.0, summary.CalendarLoadRatio, 1e-9) // 30/2 per sample, clamped to 1
}

func TestCollector_EvictsStaleSamples(t *testing.T) {
	c := New(1 * time.Minute)
	now := time.Now()

	require.NoError(t, c.Record(models.TelemetrySample{Timestamp: now.Add(-5 * time.Minute), Keystrokes: 1000}, now.Add(-5*time.Minute)))
	assert.Equal(t, 0, c.SampleCount(now))
}

func TestCollector_AcceptsOutOfOrderSamples(t *testing.T) {
	c := New(10 * time.Minute)
	now := time.Now()

	require.NoError(t, c.Record(models.TelemetrySample{Timestamp: now.Add(-1 * time.Minute), Keystrokes: 10}, now))
	require.NoError(t, c.Record(models.TelemetrySample{Timestamp: now.Add(-5 * time.Minute), Keystrokes: 5}, now))

	summary := c.Summary(now)
	assert.Equal(t, 2, summary.SampleCount)
}

func TestCollector_RejectsNegativeCounts(t *testing.T) {
	c := New(10 * time.Minute)
	now := time.Now()

	err := c.Record(models.TelemetrySample{Timestamp: now, Keystrokes: -1}, now)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.InvalidArgument, e.Kind)
}

func TestCollector_CalendarLoadRatioClampedToOne(t *testing.T) {
	c := New(10 * time.Minute)
	now := time.Now()

	require.NoError(t, c.Record(models.TelemetrySample{
		Timestamp:            now,
		CalendarBlockMinutes: 600,
	}, now))

	summary := c.Summary(now)
	assert.LessOrEqual(t, summary.CalendarLoadRatio, 1.0)
}
