// Package telemetry implements the rolling time-window aggregator over
// operator interaction samples. The collector has no durable store: it
// is an in-process, mutex-guarded sequence, evicted lazily on access,
// translating the teacher's Redis sorted-set windowing
// (ZAdd/ZRangeByScoreWithScores/ZRemRangeByScore in
// pkg/phase1/timeout_manager.go and pkg/phase1/leader.go) into an
// in-memory structure since the router core carries no persistence.
package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/cognitive-bandwidth/router/pkg/models"
)

// Collector maintains a time-bounded, timestamp-ordered sequence of
// TelemetrySample and computes TelemetrySummary on demand.
type Collector struct {
	mu      sync.Mutex
	window  time.Duration
	samples []models.TelemetrySample
}

// New builds a Collector retaining samples for the given window.
func New(window time.Duration) *Collector {
	return &Collector{window: window}
}

// Record appends a sample, inserting it in timestamp order if it arrives
// out of order, then evicts anything older than now - window. Negative
// counts are rejected with errs.InvalidArgument.
func (c *Collector) Record(sample models.TelemetrySample, now time.Time) error {
	if err := sample.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.insertLocked(sample)
	c.evictLocked(now)
	return nil
}

func (c *Collector) insertLocked(sample models.TelemetrySample) {
	n := len(c.samples)
	if n == 0 || !sample.Timestamp.Before(c.samples[n-1].Timestamp) {
		c.samples = append(c.samples, sample)
		return
	}
	idx := sort.Search(n, func(i int) bool {
		return c.samples[i].Timestamp.After(sample.Timestamp)
	})
	c.samples = append(c.samples, models.TelemetrySample{})
	copy(c.samples[idx+1:], c.samples[idx:])
	c.samples[idx] = sample
}

func (c *Collector) evictLocked(now time.Time) {
	cutoff := now.Add(-c.window)
	idx := 0
	for idx < len(c.samples) && c.samples[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		c.samples = append([]models.TelemetrySample(nil), c.samples[idx:]...)
	}
}

// Summary evicts stale samples as of now, then computes the normalized
// rates and averages documented in spec.md §4.1. With no samples, it
// returns a zeroed summary with SampleCount 0.
func (c *Collector) Summary(now time.Time) models.TelemetrySummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictLocked(now)

	n := len(c.samples)
	if n == 0 {
		return models.TelemetrySummary{}
	}

	windowMinutes := c.window.Minutes()
	if windowMinutes <= 0 {
		windowMinutes = 1
	}

	var keystrokes, pagerEvents int64
	var queueDepthSum, calendarRatioSum float64

	for _, s := range c.samples {
		keystrokes += s.Keystrokes
		pagerEvents += s.PagerEvents
		queueDepthSum += float64(s.QueueDepthObserved)
		calendarRatioSum += clamp01(s.CalendarBlockMinutes / windowMinutes)
	}

	return models.TelemetrySummary{
		KeystrokeRate:     float64(keystrokes) / windowMinutes,
		PagerRate:         float64(pagerEvents) / windowMinutes,
		QueueDepth:        queueDepthSum / float64(n),
		CalendarLoadRatio: clamp01(calendarRatioSum / float64(n)),
		SampleCount:       n,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SampleCount reports how many samples are currently retained, evicting
// stale ones first. Exposed mainly for tests.
func (c *Collector) SampleCount(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(now)
	return len(c.samples)
}

// Evict drops every sample older than now - window without computing a
// summary. Record and Summary already evict lazily on access; this
// exists so a caller with a periodic cleanup interval (cfg.CleanupInterval
// in cmd/router serve) can bound memory during a quiet period with no
// incoming samples and no one reading /telemetry.
func (c *Collector) Evict(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(now)
}
