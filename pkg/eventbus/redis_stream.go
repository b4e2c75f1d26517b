package eventbus

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

// RedisStreamBus is the external-broker Event Bus adapter: topics map
// one-to-one onto Redis streams, publish is XAdd, and consumption runs
// through a consumer group exactly as the teacher's stream_producer.go
// / stream_consumer.go do — XReadGroup to claim new messages, XAck on
// success, and XAutoClaim to recover messages abandoned by a crashed
// consumer.
type RedisStreamBus struct {
	rdb           *redis.Client
	logger        *logrus.Logger
	metrics       *metrics.Metrics
	consumerGroup string
	consumerName  string
}

// NewRedisStreamBus builds a bus bound to consumerGroup, identifying
// itself to Redis as consumerName (typically an instance ID).
func NewRedisStreamBus(rdb *redis.Client, consumerGroup, consumerName string, logger *logrus.Logger, m *metrics.Metrics) *RedisStreamBus {
	return &RedisStreamBus{
		rdb:           rdb,
		logger:        logger,
		metrics:       m,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
	}
}

func streamName(topic string) string {
	return "router:events:" + topic
}

// EnsureGroup creates the consumer group for topic if it does not
// already exist, matching the teacher's createConsumerGroup's tolerance
// for the BUSYGROUP error on repeat calls.
func (b *RedisStreamBus) EnsureGroup(ctx context.Context, topic string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, streamName(topic), b.consumerGroup, "$").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("create consumer group for topic %q: %w", topic, err)
	}
	return nil
}

// Publish XAdds item's JSON encoding to topic's stream.
func (b *RedisStreamBus) Publish(ctx context.Context, topic string, item models.WorkItem) error {
	start := time.Now()
	defer func() {
		b.metrics.RedisOperationDuration.WithLabelValues("eventbus_publish").Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal work item: %w", err)
	}

	_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName(topic),
		Values: map[string]interface{}{
			"task_id":  item.Task.TaskID,
			"strategy": string(item.Strategy),
			"payload":  string(payload),
		},
	}).Result()
	if err != nil {
		b.metrics.EventBusMessages.WithLabelValues(topic, "publish_error").Inc()
		return fmt.Errorf("publish to stream %q: %w", topic, err)
	}
	b.metrics.EventBusMessages.WithLabelValues(topic, "published").Inc()
	return nil
}

// PollOnce reads up to count pending messages for topic, invokes
// handler for each, and acknowledges the ones handler processed
// successfully. It also reclaims messages idle for longer than
// minIdle via XAutoClaim before reading new ones, the same pending-
// message recovery the teacher runs on a timer in
// pendingMessagesRecovery. Callers drive the polling loop themselves;
// PollOnce does one pass and returns. cmd/router's serve command only
// publishes to the streams and does not call PollOnce.
func (b *RedisStreamBus) PollOnce(ctx context.Context, topic string, count int64, minIdle time.Duration, handler Handler) error {
	if err := b.reclaimIdle(ctx, topic, minIdle, handler); err != nil {
		return err
	}

	streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.consumerGroup,
		Consumer: b.consumerName,
		Streams:  []string{streamName(topic), ">"},
		Count:    count,
		Block:    100 * time.Millisecond,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("read from stream %q: %w", topic, err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			b.process(ctx, topic, message, handler)
		}
	}
	return nil
}

func (b *RedisStreamBus) reclaimIdle(ctx context.Context, topic string, minIdle time.Duration, handler Handler) error {
	messages, _, err := b.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamName(topic),
		Group:    b.consumerGroup,
		Consumer: b.consumerName,
		MinIdle:  minIdle,
		Count:    10,
		Start:    "0-0",
	}).Result()
	if err != nil {
		return fmt.Errorf("reclaim idle messages on stream %q: %w", topic, err)
	}
	for _, message := range messages {
		b.process(ctx, topic, message, handler)
	}
	return nil
}

func (b *RedisStreamBus) process(ctx context.Context, topic string, message redis.XMessage, handler Handler) {
	start := time.Now()
	defer func() {
		b.metrics.RedisOperationDuration.WithLabelValues("eventbus_process").Observe(time.Since(start).Seconds())
	}()

	raw, ok := message.Values["payload"].(string)
	if !ok {
		b.logger.WithField("message_id", message.ID).Error("event bus message missing payload field")
		b.ack(ctx, topic, message.ID)
		b.metrics.StreamMessagesProcessed.WithLabelValues("parse_error").Inc()
		return
	}

	var item models.WorkItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		b.logger.WithError(err).WithField("message_id", message.ID).Error("failed to decode event bus message")
		b.ack(ctx, topic, message.ID)
		b.metrics.StreamMessagesProcessed.WithLabelValues("parse_error").Inc()
		return
	}

	if err := handler(ctx, item); err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"message_id": message.ID,
			"task_id":    item.Task.TaskID,
		}).Error("event bus handler failed, leaving message unacknowledged for retry")
		b.metrics.StreamMessagesProcessed.WithLabelValues("handler_error").Inc()
		return
	}

	b.ack(ctx, topic, message.ID)
	b.metrics.StreamMessagesProcessed.WithLabelValues("success").Inc()
}

func (b *RedisStreamBus) ack(ctx context.Context, topic, messageID string) {
	if err := b.rdb.XAck(ctx, streamName(topic), b.consumerGroup, messageID).Err(); err != nil {
		b.logger.WithError(err).WithField("message_id", messageID).Error("failed to acknowledge event bus message")
	}
}
