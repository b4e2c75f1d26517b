// Package contextproviders implements the pluggable sources of
// operator-availability signals feeding the attention model, translating
// original_source/context.py's ContextProvider protocol into a single-
// method Go capability interface with tagged concrete variants, per
// spec.md §9's re-architecture guidance.
package contextproviders

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cognitive-bandwidth/router/pkg/models"
)

// Provider is the single capability every context source implements.
// Implementations that fail MUST NOT return an error to callers other
// than the Router wrapper below — see Safe.
type Provider interface {
	Snapshot(now time.Time) (models.AttentionContext, error)
}

// Static always returns a fixed context.
type Static struct {
	Context models.AttentionContext
}

func (s Static) Snapshot(time.Time) (models.AttentionContext, error) {
	return s.Context, nil
}

// Callable delegates to a supplied function.
type Callable struct {
	Fn func(now time.Time) (models.AttentionContext, error)
}

func (c Callable) Snapshot(now time.Time) (models.AttentionContext, error) {
	return c.Fn(now)
}

// QueueDepthSource is the narrow capability a Workflow Engine exposes to
// a QueueAware provider; pkg/workflow.Engine implements it directly.
type QueueDepthSource interface {
	Depth(strategy *models.Strategy) int
}

// QueueAware reports the current depth from a Workflow Engine handle as
// the context's queue_depth signal.
type QueueAware struct {
	Source QueueDepthSource
}

func (q QueueAware) Snapshot(time.Time) (models.AttentionContext, error) {
	return models.AttentionContext{QueueDepth: q.Source.Depth(nil)}, nil
}

// CalendarAdapter is the narrow external-calendar capability a
// CalendarAware provider depends on. Concrete vendor clients (Google
// Calendar, Outlook, ...) are out of scope for this repo (spec.md §1);
// callers supply their own implementation.
type CalendarAdapter interface {
	BusyMinutesNextHour(now time.Time) (float64, error)
}

// CalendarAware queries an external calendar adapter for minutes blocked
// within the next hour and reports it as calendar_load, normalized to a
// 60-minute window.
type CalendarAware struct {
	Adapter CalendarAdapter
}

func (c CalendarAware) Snapshot(now time.Time) (models.AttentionContext, error) {
	minutes, err := c.Adapter.BusyMinutesNextHour(now)
	if err != nil {
		return models.AttentionContext{}, err
	}
	if minutes < 0 {
		minutes = 0
	}
	return models.AttentionContext{CalendarLoad: clamp01(minutes / 60.0)}, nil
}

// Composite aggregates N providers by combining queue_depth and
// calendar_load via max, and context_switch_rate via sum. These
// combination rules are contractual: adding a provider never lowers
// queue_depth or calendar_load.
type Composite struct {
	Providers []Provider
}

func (c Composite) Snapshot(now time.Time) (models.AttentionContext, error) {
	var combined models.AttentionContext
	for _, p := range c.Providers {
		ctx, err := p.Snapshot(now)
		if err != nil {
			continue
		}
		if ctx.QueueDepth > combined.QueueDepth {
			combined.QueueDepth = ctx.QueueDepth
		}
		if ctx.CalendarLoad > combined.CalendarLoad {
			combined.CalendarLoad = ctx.CalendarLoad
		}
		combined.ContextSwitchRate += ctx.ContextSwitchRate
	}
	return combined, nil
}

// Safe wraps a Provider so that any error it returns is absorbed and
// logged, and a zero AttentionContext is returned instead — providers
// never propagate failures to the Router, per spec.md §6/§7.
func Safe(p Provider, logger *logrus.Logger) Provider {
	return safeProvider{inner: p, logger: logger}
}

type safeProvider struct {
	inner  Provider
	logger *logrus.Logger
}

func (s safeProvider) Snapshot(now time.Time) (models.AttentionContext, error) {
	ctx, err := s.inner.Snapshot(now)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("context provider failed, falling back to zero context")
		}
		return models.AttentionContext{}, nil
	}
	return ctx, nil
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
