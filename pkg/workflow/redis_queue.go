package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/cognitive-bandwidth/router/pkg/metrics"
	"github.com/cognitive-bandwidth/router/pkg/models"
)

// RedisQueue is the durable Orchestrator adapter: queued WorkItems for
// immediate/batch live in a Redis sorted set per strategy, scored by
// priority, mirroring the teacher's WaitingConversationsKey sorted-set
// pattern in pkg/phase1/timeout_manager.go. auto/park items are
// recorded into a capped Redis list instead of a queue, the same
// distinction the in-memory Engine makes.
type RedisQueue struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewRedisQueue builds a RedisQueue over an already-connected client.
func NewRedisQueue(rdb *redis.Client, logger *logrus.Logger, m *metrics.Metrics) *RedisQueue {
	return &RedisQueue{rdb: rdb, logger: logger, metrics: m}
}

// AsSink adapts RedisQueue to the pkg/router.Sink interface, the same
// way EngineSink adapts Engine: RedisQueue's queueing method is named
// Accept (matching the Orchestrator interface), not Dispatch, so it
// needs a thin wrapper rather than satisfying Sink directly.
func (q *RedisQueue) AsSink() RedisQueueSink {
	return RedisQueueSink{queue: q}
}

// RedisQueueSink wraps a RedisQueue so it satisfies pkg/router.Sink.
type RedisQueueSink struct {
	queue *RedisQueue
}

func (s RedisQueueSink) Dispatch(ctx context.Context, item models.WorkItem) error {
	return s.queue.Accept(ctx, item)
}

func queueKey(strategy models.Strategy) string {
	return fmt.Sprintf("router:queue:%s", strategy)
}

func ledgerKey(strategy models.Strategy) string {
	return fmt.Sprintf("router:ledger:%s", strategy)
}

// Accept pushes item onto its strategy's sorted set (priority as score)
// for immediate/batch, or LPUSHes onto a capped ledger list for
// auto/park. It is idempotent on item.Task.TaskID: a repeated Accept for
// a task_id already present in the target set or list is a no-op,
// mirroring the identity-check idempotency of
// pkg/router.Service.RegisterSink and the in-memory Engine's own
// task_id check.
func (q *RedisQueue) Accept(ctx context.Context, item models.WorkItem) error {
	start := time.Now()
	defer func() {
		q.metrics.RedisOperationDuration.WithLabelValues("workflow_accept").Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal work item: %w", err)
	}

	switch item.Strategy {
	case models.StrategyImmediate, models.StrategyBatch:
		exists, err := q.zsetHasTaskID(ctx, queueKey(item.Strategy), item.Task.TaskID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		return q.rdb.ZAdd(ctx, queueKey(item.Strategy), &redis.Z{
			Score:  item.Priority,
			Member: payload,
		}).Err()
	default:
		exists, err := q.listHasTaskID(ctx, ledgerKey(item.Strategy), item.Task.TaskID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		pipe := q.rdb.Pipeline()
		pipe.LPush(ctx, ledgerKey(item.Strategy), payload)
		pipe.LTrim(ctx, ledgerKey(item.Strategy), 0, ledgerCapacity-1)
		_, err = pipe.Exec(ctx)
		return err
	}
}

// zsetHasTaskID and listHasTaskID scan a strategy's collection for an
// already-present task_id, the same linear scan Complete uses to find a
// member by task_id rather than by score or position — queues are
// expected to stay small (§5 resource model), so the scan cost is
// acceptable.
func (q *RedisQueue) zsetHasTaskID(ctx context.Context, key, taskID string) (bool, error) {
	members, err := q.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("scan for existing task_id: %w", err)
	}
	return membersContainTaskID(members, taskID), nil
}

func (q *RedisQueue) listHasTaskID(ctx context.Context, key, taskID string) (bool, error) {
	members, err := q.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("scan for existing task_id: %w", err)
	}
	return membersContainTaskID(members, taskID), nil
}

func membersContainTaskID(members []string, taskID string) bool {
	for _, member := range members {
		var item models.WorkItem
		if err := json.Unmarshal([]byte(member), &item); err != nil {
			continue
		}
		if item.Task.TaskID == taskID {
			return true
		}
	}
	return false
}

// Depth reports ZCard for immediate/batch, LLen for auto/park, or the
// sum of the two queued strategies when strategy is nil.
func (q *RedisQueue) Depth(strategy *models.Strategy) int {
	ctx := context.Background()
	if strategy == nil {
		immediate, _ := q.rdb.ZCard(ctx, queueKey(models.StrategyImmediate)).Result()
		batch, _ := q.rdb.ZCard(ctx, queueKey(models.StrategyBatch)).Result()
		return int(immediate + batch)
	}
	switch *strategy {
	case models.StrategyImmediate, models.StrategyBatch:
		n, _ := q.rdb.ZCard(ctx, queueKey(*strategy)).Result()
		return int(n)
	default:
		n, _ := q.rdb.LLen(ctx, ledgerKey(*strategy)).Result()
		return int(n)
	}
}

// Next returns the highest-priority (highest score) member for strategy,
// decoding it back into a WorkItem. Unlike the in-memory Engine, the
// item is not removed until Complete is called — ZRevRangeWithScores
// peeks, it does not pop, so a crashed worker does not lose work.
func (q *RedisQueue) Next(ctx context.Context, strategy models.Strategy) (models.WorkItem, bool, error) {
	start := time.Now()
	defer func() {
		q.metrics.RedisOperationDuration.WithLabelValues("workflow_next").Observe(time.Since(start).Seconds())
	}()

	results, err := q.rdb.ZRevRangeWithScores(ctx, queueKey(strategy), 0, 0).Result()
	if err != nil {
		return models.WorkItem{}, false, fmt.Errorf("peek next work item: %w", err)
	}
	if len(results) == 0 {
		return models.WorkItem{}, false, nil
	}

	var item models.WorkItem
	if err := json.Unmarshal([]byte(results[0].Member.(string)), &item); err != nil {
		return models.WorkItem{}, false, fmt.Errorf("decode work item: %w", err)
	}
	return item, true, nil
}

// Complete removes the member for taskID from strategy's sorted set.
// It scans the set member-by-member since task_id is not the sort key;
// queues are expected to stay small (§5 resource model), so this is
// acceptable and mirrors the teacher's own small-collection ZRem calls.
func (q *RedisQueue) Complete(ctx context.Context, strategy models.Strategy, taskID string) error {
	start := time.Now()
	defer func() {
		q.metrics.RedisOperationDuration.WithLabelValues("workflow_complete").Observe(time.Since(start).Seconds())
	}()

	members, err := q.rdb.ZRange(ctx, queueKey(strategy), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list work items: %w", err)
	}
	for _, member := range members {
		var item models.WorkItem
		if err := json.Unmarshal([]byte(member), &item); err != nil {
			continue
		}
		if item.Task.TaskID == taskID {
			return q.rdb.ZRem(ctx, queueKey(strategy), member).Err()
		}
	}
	q.logger.WithField("task_id", taskID).Warn("complete called for unknown work item")
	return nil
}
