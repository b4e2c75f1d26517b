// Package router implements the Router Service: the component that
// ties telemetry, context providers, the attention model, and the
// routing policy together into a single HandleTask entry point, then
// fans the resulting WorkItem out to registered sinks. Instrumentation
// follows the teacher's pkg/phase1.TimeoutManager shape: a struct
// holding its collaborators plus *metrics.Metrics and *logrus.Logger,
// timing every operation with a deferred Observe call.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cognitive-bandwidth/router/pkg/attention"
	"github.com/cognitive-bandwidth/router/pkg/contextproviders"
	"github.com/cognitive-bandwidth/router/pkg/errs"
	"github.com/cognitive-bandwidth/router/pkg/metrics"
	"github.com/cognitive-bandwidth/router/pkg/models"
	"github.com/cognitive-bandwidth/router/pkg/policy"
	"github.com/cognitive-bandwidth/router/pkg/telemetry"
)

// Sink receives every WorkItem dispatched to the strategy (or strategies)
// it is registered under. A Sink must not block the router indefinitely;
// the service does not impose a timeout itself, but callers should wrap
// slow sinks (see pkg/workflow for the queueing sinks this repo ships).
type Sink interface {
	Dispatch(ctx context.Context, item models.WorkItem) error
}

// QueueDepthLookup reports the current queue depth the router should
// factor into the next decision. pkg/workflow.Engine implements this
// directly; a Service with no queue source behind it always sees 0.
type QueueDepthLookup interface {
	Depth(strategy *models.Strategy) int
}

type noQueue struct{}

func (noQueue) Depth(*models.Strategy) int { return 0 }

// Service is the Router Service. Construct with New; it is safe for
// concurrent use by many goroutines calling HandleTask, RegisterSink, and
// UpdatePolicy simultaneously.
type Service struct {
	mu     sync.RWMutex
	policy *policy.Policy

	collector *telemetry.Collector
	providers []contextproviders.Provider
	attention *attention.Model
	queue     QueueDepthLookup

	sinksMu  sync.Mutex
	sinks    map[models.Strategy][]Sink
	wildcard []Sink

	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// Options configures a new Service. Collector, Attention, and Logger
// fall back to sensible defaults when left zero.
type Options struct {
	Policy    *policy.Policy
	Collector *telemetry.Collector
	Providers []contextproviders.Provider
	Attention *attention.Model
	Queue     QueueDepthLookup
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
}

// New constructs a Service from Options, filling in documented defaults
// for anything left unset.
func New(opts Options) *Service {
	p := opts.Policy
	if p == nil {
		p = policy.Default()
	}
	collector := opts.Collector
	if collector == nil {
		collector = telemetry.New(15 * time.Minute)
	}
	model := opts.Attention
	if model == nil {
		model = attention.NewDefault()
	}
	q := opts.Queue
	if q == nil {
		q = noQueue{}
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Service{
		policy:    p,
		collector: collector,
		providers: opts.Providers,
		attention: model,
		queue:     q,
		sinks:     make(map[models.Strategy][]Sink),
		metrics:   m,
		logger:    logger,
	}
}

// Collector exposes the service's telemetry collector so callers (e.g.
// pkg/server) can record samples and read summaries.
func (s *Service) Collector() *telemetry.Collector { return s.collector }

// Policy returns the currently active policy. The returned pointer is
// never mutated in place; callers may retain it safely.
func (s *Service) Policy() *policy.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// UpdatePolicy atomically replaces the active policy. In-flight
// HandleTask calls finish against whichever policy they already read.
func (s *Service) UpdatePolicy(p *policy.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
	s.logger.Info("policy updated")
}

// RegisterSink adds sink to the set invoked for strategy. Passing
// models.StrategyWildcard registers sink against every strategy.
// Registering the same sink under the same key twice is a no-op.
func (s *Service) RegisterSink(strategy models.Strategy, sink Sink) {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()

	if strategy == models.StrategyWildcard {
		for _, existing := range s.wildcard {
			if existing == sink {
				return
			}
		}
		s.wildcard = append(s.wildcard, sink)
		return
	}

	for _, existing := range s.sinks[strategy] {
		if existing == sink {
			return
		}
	}
	s.sinks[strategy] = append(s.sinks[strategy], sink)
}

// HandleTask scores task against current telemetry, context, and policy,
// dispatches the resulting WorkItem to every sink registered under its
// strategy (and every wildcard sink), and returns the WorkItem. Sink
// failures are logged and counted but never fail the call: only a
// malformed task (errs.InvalidArgument) or a policy failure does.
func (s *Service) HandleTask(ctx context.Context, task models.TaskIntent) (models.WorkItem, error) {
	start := time.Now()
	defer func() {
		s.metrics.HandleTaskDuration.Observe(time.Since(start).Seconds())
	}()

	now := time.Now()
	summary := s.collector.Summary(now)
	attnCtx := s.gatherContext(ctx, now)
	load := s.attention.Score(summary, attnCtx)
	s.metrics.AttentionLoad.Set(load)

	depth := s.queue.Depth(nil)

	activePolicy := s.Policy()
	item, err := activePolicy.Decide(task, depth, load, now)
	if err != nil {
		s.logger.WithError(err).WithField("task_id", task.TaskID).Warn("rejected malformed task")
		return models.WorkItem{}, err
	}

	s.metrics.DecisionsTotal.WithLabelValues(string(item.Strategy)).Inc()
	s.logger.WithFields(logrus.Fields{
		"task_id":  item.Task.TaskID,
		"strategy": item.Strategy,
		"priority": item.Priority,
		"load":     item.AttentionLoad,
		"rule":     item.Rationale.RuleFired,
	}).Info("routed task")

	s.dispatch(ctx, item)
	return item, nil
}

func (s *Service) gatherContext(ctx context.Context, now time.Time) models.AttentionContext {
	if len(s.providers) == 0 {
		return models.AttentionContext{}
	}
	wrapped := make([]contextproviders.Provider, len(s.providers))
	for i, p := range s.providers {
		wrapped[i] = contextproviders.Safe(p, s.logger)
	}
	combined := contextproviders.Composite{Providers: wrapped}
	snapshot, err := combined.Snapshot(now)
	if err != nil {
		// Each provider is wrapped in Safe, which logs and absorbs its
		// errors; this branch only guards against a future provider that
		// violates that contract.
		s.metrics.ProviderFailures.WithLabelValues("composite").Inc()
		s.logger.WithError(err).Warn("context snapshot failed, using zero context")
		return models.AttentionContext{}
	}
	return snapshot
}

func (s *Service) dispatch(ctx context.Context, item models.WorkItem) {
	s.sinksMu.Lock()
	targets := append([]Sink{}, s.sinks[item.Strategy]...)
	targets = append(targets, s.wildcard...)
	s.sinksMu.Unlock()

	for _, sink := range targets {
		if err := sink.Dispatch(ctx, item); err != nil {
			s.metrics.SinkFailures.WithLabelValues(string(item.Strategy)).Inc()
			s.logger.WithError(errs.Wrap(errs.SinkFailure, "sink dispatch failed", err)).
				WithField("task_id", item.Task.TaskID).
				Error("sink failed, continuing with remaining sinks")
		}
	}
}
