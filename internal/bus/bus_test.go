package bus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSync_DeliversToSubscribers(t *testing.T) {
	b := NewEventBus()

	var started, finished atomic.Int32
	b.Subscribe(EventTypeUtteranceStarted, func(e Event) {
		started.Add(1)
		assert.Equal(t, 3, e.Data["segments"])
	})
	b.Subscribe(EventTypeUtteranceFinished, func(Event) { finished.Add(1) })

	b.PublishSync(Event{Type: EventTypeUtteranceStarted, Data: map[string]any{"segments": 3}})

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(0), finished.Load())
}

func TestPublish_IsAsync(t *testing.T) {
	b := NewEventBus()

	got := make(chan Event, 1)
	b.Subscribe(EventTypeTableReloaded, func(e Event) { got <- e })
	b.Publish(Event{Type: EventTypeTableReloaded})

	select {
	case e := <-got:
		assert.Equal(t, EventTypeTableReloaded, e.Type)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestSubscribeMultipleAndClear(t *testing.T) {
	b := NewEventBus()

	var calls atomic.Int32
	b.SubscribeMultiple([]EventType{EventTypeUtteranceStarted, EventTypeUtteranceRejected}, func(Event) {
		calls.Add(1)
	})

	b.PublishSync(Event{Type: EventTypeUtteranceStarted})
	b.PublishSync(Event{Type: EventTypeUtteranceRejected})
	require.Equal(t, int32(2), calls.Load())

	b.Clear()
	b.PublishSync(Event{Type: EventTypeUtteranceStarted})
	assert.Equal(t, int32(2), calls.Load())
}
