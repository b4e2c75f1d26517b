package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitive-bandwidth/router/pkg/contextproviders"
	"github.com/cognitive-bandwidth/router/pkg/errs"
	"github.com/cognitive-bandwidth/router/pkg/models"
	"github.com/cognitive-bandwidth/router/pkg/policy"
	"github.com/cognitive-bandwidth/router/pkg/workflow"
)

type recordingSink struct {
	mu    sync.Mutex
	items []models.WorkItem
	err   error
}

func (r *recordingSink) Dispatch(_ context.Context, item models.WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func mustTask(id string, severity int, confidence, sloRisk float64) models.TaskIntent {
	return models.TaskIntent{
		TaskID:          id,
		Severity:        severity,
		ModelConfidence: confidence,
		SLORiskMinutes:  sloRisk,
		SensitivityTag:  models.SensitivityStandard,
		SubmittedAt:     time.Now(),
	}
}

func TestHandleTask_RoutesAndReturnsWorkItem(t *testing.T) {
	svc := New(Options{})
	item, err := svc.HandleTask(context.Background(), mustTask("t1", 2, 0.92, 30))
	require.NoError(t, err)
	assert.Equal(t, models.StrategyAuto, item.Strategy)
}

func TestHandleTask_RejectsMalformedTask(t *testing.T) {
	svc := New(Options{})
	_, err := svc.HandleTask(context.Background(), mustTask("t1", 9, 0.5, 10))
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.InvalidArgument, e.Kind)
}

func TestHandleTask_DispatchesToMatchingAndWildcardSinks(t *testing.T) {
	svc := New(Options{})
	immediateSink := &recordingSink{}
	wildcardSink := &recordingSink{}
	svc.RegisterSink(models.StrategyImmediate, immediateSink)
	svc.RegisterSink(models.StrategyWildcard, wildcardSink)

	_, err := svc.HandleTask(context.Background(), mustTask("t1", 5, 0.4, 5))
	require.NoError(t, err)

	assert.Equal(t, 1, immediateSink.count())
	assert.Equal(t, 1, wildcardSink.count())
}

func TestHandleTask_SinkFailureDoesNotFailCallOrBlockOtherSinks(t *testing.T) {
	svc := New(Options{})
	failing := &recordingSink{err: assert.AnError}
	healthy := &recordingSink{}
	svc.RegisterSink(models.StrategyWildcard, failing)
	svc.RegisterSink(models.StrategyWildcard, healthy)

	_, err := svc.HandleTask(context.Background(), mustTask("t1", 2, 0.92, 30))
	require.NoError(t, err)
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, healthy.count())
}

func TestRegisterSink_SameSinkTwiceIsIdempotent(t *testing.T) {
	svc := New(Options{})
	sink := &recordingSink{}
	svc.RegisterSink(models.StrategyBatch, sink)
	svc.RegisterSink(models.StrategyBatch, sink)

	_, err := svc.HandleTask(context.Background(), mustTask("t1", 3, 0.65, 25))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.count())
}

func TestUpdatePolicy_SwapsAtomically(t *testing.T) {
	svc := New(Options{})
	original := svc.Policy()

	stricter, err := policy.New(policy.Params{
		SLOWeight: 0.4, UncertaintyWeight: 0.25, SeverityWeight: 0.25, AttentionWeight: 0.1,
		SLOHorizonMinutes: 60, ImmediateThreshold: 0.9, BatchThreshold: 0.8,
		MinConfidenceForAuto: 0.85, MaxSeverityForAuto: 2, ParkLoadThreshold: 0.7,
	})
	require.NoError(t, err)
	svc.UpdatePolicy(stricter)

	assert.Same(t, stricter, svc.Policy())
	assert.NotSame(t, original, svc.Policy())
}

func TestHandleTask_HigherQueueDepthObservedOnSecondCall(t *testing.T) {
	var depth int
	svc := New(Options{Queue: depthFunc(func() int { return depth })})

	task := mustTask("t1", 3, 0.5, 20)
	first, err := svc.HandleTask(context.Background(), task)
	require.NoError(t, err)

	depth = first.QueueDepth + 1
	second, err := svc.HandleTask(context.Background(), mustTask("t2", 3, 0.5, 20))
	require.NoError(t, err)

	assert.Greater(t, second.QueueDepth, first.QueueDepth)
}

type depthFunc func() int

func (f depthFunc) Depth(*models.Strategy) int { return f() }

// This wires the same Queue: orchestrator pattern cmd/router/serve.go
// uses in production, rather than the depthFunc mock above, so a
// regression in how Options.Queue and the real Engine interact would
// be caught here.
func TestHandleTask_QueueDepthReflectsRealEngineBacklog(t *testing.T) {
	engine := workflow.NewEngine()
	svc := New(Options{Queue: engine})
	svc.RegisterSink(models.StrategyWildcard, engine.AsSink())

	first, err := svc.HandleTask(context.Background(), mustTask("t1", 5, 0.4, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, first.QueueDepth)

	second, err := svc.HandleTask(context.Background(), mustTask("t2", 5, 0.4, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, second.QueueDepth)
}

// TestHandleTask_RisingQueueDepthProducesStrictlyIncreasingLoad composes
// contextproviders.QueueAware, the default attention.Model, and a real
// workflow.Engine behind Service, matching how cmd/router/serve.go wires
// them. Each submitted task that isn't drained off the queue raises the
// depth QueueAware reports on the next call, which the attention model
// folds into AttentionLoad — so the third task's load must strictly
// exceed the first's, per spec.md §8's rising-queue-depth scenario.
func TestHandleTask_RisingQueueDepthProducesStrictlyIncreasingLoad(t *testing.T) {
	engine := workflow.NewEngine()
	svc := New(Options{
		Providers: []contextproviders.Provider{contextproviders.QueueAware{Source: engine}},
		Queue:     engine,
	})
	svc.RegisterSink(models.StrategyWildcard, engine.AsSink())

	first, err := svc.HandleTask(context.Background(), mustTask("t1", 5, 0.4, 5))
	require.NoError(t, err)

	second, err := svc.HandleTask(context.Background(), mustTask("t2", 5, 0.4, 5))
	require.NoError(t, err)

	third, err := svc.HandleTask(context.Background(), mustTask("t3", 5, 0.4, 5))
	require.NoError(t, err)

	assert.Less(t, first.AttentionLoad, second.AttentionLoad)
	assert.Less(t, second.AttentionLoad, third.AttentionLoad)
	assert.Greater(t, third.AttentionLoad, first.AttentionLoad)
}
