package workflow

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitive-bandwidth/router/pkg/metrics"
	"github.com/cognitive-bandwidth/router/pkg/models"
)

// item() is defined in engine_test.go and reused here.

func setupTestRedis(t *testing.T) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   3,
	})

	ctx := context.Background()
	err := rdb.Ping(ctx).Err()
	require.NoError(t, err, "Redis should be available for testing")

	rdb.FlushDB(ctx)
	return rdb
}

func TestRedisQueue_AcceptAndNextOrdersByPriority(t *testing.T) {
	rdb := setupTestRedis(t)
	defer rdb.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	q := NewRedisQueue(rdb, logger, metrics.NewMetrics())
	ctx := context.Background()

	require.NoError(t, q.Accept(ctx, item("low", models.StrategyImmediate, 0.3)))
	require.NoError(t, q.Accept(ctx, item("high", models.StrategyImmediate, 0.9)))

	assert.Equal(t, 2, q.Depth(&[]models.Strategy{models.StrategyImmediate}[0]))

	next, ok, err := q.Next(ctx, models.StrategyImmediate)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "high", next.Task.TaskID)
}

func TestRedisQueue_CompleteRemovesItem(t *testing.T) {
	rdb := setupTestRedis(t)
	defer rdb.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	q := NewRedisQueue(rdb, logger, metrics.NewMetrics())
	ctx := context.Background()

	require.NoError(t, q.Accept(ctx, item("t1", models.StrategyBatch, 0.5)))
	require.NoError(t, q.Complete(ctx, models.StrategyBatch, "t1"))

	assert.Equal(t, 0, q.Depth(&[]models.Strategy{models.StrategyBatch}[0]))
}

func TestRedisQueue_AcceptIsIdempotentOnTaskID(t *testing.T) {
	rdb := setupTestRedis(t)
	defer rdb.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	q := NewRedisQueue(rdb, logger, metrics.NewMetrics())
	ctx := context.Background()

	require.NoError(t, q.Accept(ctx, item("t1", models.StrategyBatch, 0.3)))
	require.NoError(t, q.Accept(ctx, item("t1", models.StrategyBatch, 0.9)))
	assert.Equal(t, 1, q.Depth(&[]models.Strategy{models.StrategyBatch}[0]))

	require.NoError(t, q.Accept(ctx, item("t2", models.StrategyPark, 0.1)))
	require.NoError(t, q.Accept(ctx, item("t2", models.StrategyPark, 0.1)))
	assert.Equal(t, 1, q.Depth(&[]models.Strategy{models.StrategyPark}[0]))
}

func TestRedisQueue_AutoAndParkUseLedgerList(t *testing.T) {
	rdb := setupTestRedis(t)
	defer rdb.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	q := NewRedisQueue(rdb, logger, metrics.NewMetrics())
	ctx := context.Background()

	require.NoError(t, q.Accept(ctx, item("t1", models.StrategyAuto, 0.1)))

	assert.Equal(t, 1, q.Depth(&[]models.Strategy{models.StrategyAuto}[0]))
	assert.Equal(t, 0, q.Depth(&[]models.Strategy{models.StrategyImmediate}[0]))
}

