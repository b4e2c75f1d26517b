package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cognitive-bandwidth/router/pkg/models"
)

func testItem(id string) models.WorkItem {
	return models.WorkItem{
		Task:      models.TaskIntent{TaskID: id, SubmittedAt: time.Now()},
		Strategy:  models.StrategyAuto,
		DecidedAt: time.Now(),
	}
}

func TestInMemoryBus_PublishInvokesAllSubscribersInOrder(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var order []string

	bus.Subscribe("decisions", func(_ context.Context, item models.WorkItem) error {
		order = append(order, "first:"+item.Task.TaskID)
		return nil
	})
	bus.Subscribe("decisions", func(_ context.Context, item models.WorkItem) error {
		order = append(order, "second:"+item.Task.TaskID)
		return nil
	})

	bus.Publish(context.Background(), "decisions", testItem("t1"))
	assert.Equal(t, []string{"first:t1", "second:t1"}, order)
}

func TestInMemoryBus_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewInMemoryBus(nil)
	called := false

	bus.Subscribe("decisions", func(context.Context, models.WorkItem) error {
		return errors.New("boom")
	})
	bus.Subscribe("decisions", func(context.Context, models.WorkItem) error {
		called = true
		return nil
	})

	bus.Publish(context.Background(), "decisions", testItem("t1"))
	assert.True(t, called)
}

func TestInMemoryBus_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewInMemoryBus(nil)
	called := false

	bus.Subscribe("decisions", func(context.Context, models.WorkItem) error {
		panic("boom")
	})
	bus.Subscribe("decisions", func(context.Context, models.WorkItem) error {
		called = true
		return nil
	})

	bus.Publish(context.Background(), "decisions", testItem("t1"))
	assert.True(t, called)
}

func TestInMemoryBus_UnsubscribedTopicIsANoOp(t *testing.T) {
	bus := NewInMemoryBus(nil)
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), "nothing-subscribed", testItem("t1"))
	})
}

func TestInMemoryBus_UnsubscribeStopsFurtherDelivery(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var calls int

	sub := bus.Subscribe("decisions", func(context.Context, models.WorkItem) error {
		calls++
		return nil
	})
	bus.Publish(context.Background(), "decisions", testItem("t1"))
	assert.Equal(t, 1, calls)

	bus.Unsubscribe(sub)
	bus.Publish(context.Background(), "decisions", testItem("t2"))
	assert.Equal(t, 1, calls)
}

func TestInMemoryBus_UnsubscribeOnlyRemovesMatchingSubscription(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var firstCalls, secondCalls int

	first := bus.Subscribe("decisions", func(context.Context, models.WorkItem) error {
		firstCalls++
		return nil
	})
	bus.Subscribe("decisions", func(context.Context, models.WorkItem) error {
		secondCalls++
		return nil
	})

	bus.Unsubscribe(first)
	bus.Publish(context.Background(), "decisions", testItem("t1"))
	assert.Equal(t, 0, firstCalls)
	assert.Equal(t, 1, secondCalls)
}
