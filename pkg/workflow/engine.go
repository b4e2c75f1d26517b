// Package workflow implements the Workflow Engine: per-strategy queues
// that a Router Service sink enqueues WorkItems into, and a bounded
// ledger for the two strategies that are never queued (auto, park).
// The in-memory Engine is the default; RedisQueue and SQLiteAuditSink
// in this package are optional external-backing adapters for the same
// Orchestrator/Sink seams.
package workflow

import (
	"container/list"
	"context"
	"sync"

	"github.com/cognitive-bandwidth/router/pkg/models"
)

// Orchestrator is the seam both the in-memory Engine and the Redis-backed
// adapter in this package implement: accept a decided WorkItem, report
// queue depth, and hand back the next item to work on.
type Orchestrator interface {
	Accept(ctx context.Context, item models.WorkItem) error
	Depth(strategy *models.Strategy) int
	Next(ctx context.Context, strategy models.Strategy) (models.WorkItem, bool, error)
	Complete(ctx context.Context, strategy models.Strategy, taskID string) error
}

const ledgerCapacity = 50

// Engine is the in-memory Orchestrator. immediate and batch are each a
// FIFO container/list.List of WorkItem; auto and park are not queued —
// they are recorded into a bounded ledger for introspection, since
// nothing ever "works" an auto or park item off a queue. Engine
// implements contextproviders.QueueDepthSource directly (its Depth
// method), so wrapping one in contextproviders.QueueAware{Source: e}
// closes the queue-depth feedback loop described in spec.md §4.2.
type Engine struct {
	mu sync.Mutex

	immediate *list.List
	batch     *list.List

	autoLedger []models.WorkItem
	parkLedger []models.WorkItem
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		immediate: list.New(),
		batch:     list.New(),
	}
}

// Accept enqueues item under its strategy, or records it in the
// appropriate ledger for auto/park. It is idempotent on
// item.Task.TaskID, mirroring the identity-check idempotency of
// pkg/router.Service.RegisterSink: a repeated Accept for a task_id
// already present in the target list or ledger is a no-op rather than
// a second entry. It never fails for a well-formed WorkItem; the only
// error return is part of the Orchestrator interface so RedisQueue can
// share it.
func (e *Engine) Accept(_ context.Context, item models.WorkItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch item.Strategy {
	case models.StrategyImmediate:
		if !listHasTaskID(e.immediate, item.Task.TaskID) {
			e.immediate.PushBack(item)
		}
	case models.StrategyBatch:
		if !listHasTaskID(e.batch, item.Task.TaskID) {
			e.batch.PushBack(item)
		}
	case models.StrategyAuto:
		if !ledgerHasTaskID(e.autoLedger, item.Task.TaskID) {
			e.autoLedger = appendBounded(e.autoLedger, item)
		}
	default:
		if !ledgerHasTaskID(e.parkLedger, item.Task.TaskID) {
			e.parkLedger = appendBounded(e.parkLedger, item)
		}
	}
	return nil
}

func listHasTaskID(l *list.List, taskID string) bool {
	for el := l.Front(); el != nil; el = el.Next() {
		if el.Value.(models.WorkItem).Task.TaskID == taskID {
			return true
		}
	}
	return false
}

func ledgerHasTaskID(ledger []models.WorkItem, taskID string) bool {
	for _, it := range ledger {
		if it.Task.TaskID == taskID {
			return true
		}
	}
	return false
}

func appendBounded(ledger []models.WorkItem, item models.WorkItem) []models.WorkItem {
	ledger = append(ledger, item)
	if len(ledger) > ledgerCapacity {
		ledger = ledger[len(ledger)-ledgerCapacity:]
	}
	return ledger
}

// Depth reports the current queue length for strategy. A nil strategy
// reports the combined depth of every queued strategy (immediate +
// batch); auto/park depth is always reported as their ledger size, which
// never grows once nothing more is dispatched to them, satisfying the
// "adding a provider never lowers queue_depth" contract in
// pkg/contextproviders only when Engine feeds a QueueAware provider for
// the human-attended strategies.
func (e *Engine) Depth(strategy *models.Strategy) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strategy == nil {
		return e.immediate.Len() + e.batch.Len()
	}
	switch *strategy {
	case models.StrategyImmediate:
		return e.immediate.Len()
	case models.StrategyBatch:
		return e.batch.Len()
	case models.StrategyAuto:
		return len(e.autoLedger)
	default:
		return len(e.parkLedger)
	}
}

// Next pops the next item for strategy (immediate and batch only —
// auto/park are never queued). immediate reorders by priority, ties
// resolving to the item that arrived first; batch is strict FIFO, per
// spec.md §4.7 — only immediate is urgency-reordered.
func (e *Engine) Next(_ context.Context, strategy models.Strategy) (models.WorkItem, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch strategy {
	case models.StrategyImmediate:
		return e.nextImmediate()
	case models.StrategyBatch:
		return e.nextBatch()
	default:
		return models.WorkItem{}, false, nil
	}
}

func (e *Engine) nextImmediate() (models.WorkItem, bool, error) {
	if e.immediate.Len() == 0 {
		return models.WorkItem{}, false, nil
	}

	best := e.immediate.Front()
	for el := best.Next(); el != nil; el = el.Next() {
		if el.Value.(models.WorkItem).Priority > best.Value.(models.WorkItem).Priority {
			best = el
		}
	}
	item := best.Value.(models.WorkItem)
	e.immediate.Remove(best)
	return item, true, nil
}

func (e *Engine) nextBatch() (models.WorkItem, bool, error) {
	front := e.batch.Front()
	if front == nil {
		return models.WorkItem{}, false, nil
	}
	item := front.Value.(models.WorkItem)
	e.batch.Remove(front)
	return item, true, nil
}

// Complete is a no-op for the in-memory Engine: Next already removed the
// item from its queue. It exists so RedisQueue, where "next" and
// "acknowledge" are separate steps, can share the Orchestrator
// interface.
func (e *Engine) Complete(context.Context, models.Strategy, string) error {
	return nil
}

// Snapshot returns a defensive copy of the items currently recorded for
// strategy — queued items for immediate/batch, ledger entries for
// auto/park. Used by pkg/server's /queue endpoint.
func (e *Engine) Snapshot(strategy models.Strategy) []models.WorkItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch strategy {
	case models.StrategyImmediate:
		return listToSlice(e.immediate)
	case models.StrategyBatch:
		return listToSlice(e.batch)
	case models.StrategyAuto:
		return append([]models.WorkItem(nil), e.autoLedger...)
	default:
		return append([]models.WorkItem(nil), e.parkLedger...)
	}
}

func listToSlice(l *list.List) []models.WorkItem {
	out := make([]models.WorkItem, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(models.WorkItem))
	}
	return out
}

// AsSink adapts Engine to the pkg/router.Sink interface so it can be
// registered directly against the router service with
// models.StrategyWildcard.
func (e *Engine) AsSink() EngineSink {
	return EngineSink{engine: e}
}

// EngineSink wraps an Engine so it satisfies pkg/router.Sink (Dispatch)
// without importing pkg/router here, avoiding an import cycle — pkg/router's
// tests import workflow, so workflow must not import pkg/router.
type EngineSink struct {
	engine *Engine
}

func (s EngineSink) Dispatch(ctx context.Context, item models.WorkItem) error {
	return s.engine.Accept(ctx, item)
}
