package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/redis"
)

func newTestBus(t *testing.T) (*miniredis.Miniredis, providers.EventBus) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.NewClientFromAddr(mr.Addr())
	bus := NewRedisEventBus(client)
	t.Cleanup(func() {
		bus.Close()
		client.Close()
	})
	return mr, bus
}

func receive(t *testing.T, ch <-chan *entities.QueueEvent) *entities.QueueEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRedisEventBus_FanOut(t *testing.T) {
	_, bus := newTestBus(t)
	ctx := context.Background()
	channel := providers.GetDepartmentChannel("Cardiology")

	first, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	ev := entities.NewQueueEvent(entities.QueueEventCheckIn, "cardiology")
	ev.EntryID = "e-1"
	ev.QueueSize = 4
	require.NoError(t, bus.Publish(ctx, channel, ev))

	for _, ch := range []<-chan *entities.QueueEvent{first, second} {
		got := receive(t, ch)
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, entities.QueueEventCheckIn, got.Type)
		assert.Equal(t, "e-1", got.EntryID)
		assert.Equal(t, 4, got.QueueSize)
	}
}

func TestRedisEventBus_ContextCancelClosesSubscriber(t *testing.T) {
	_, bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, providers.EventChannelQueueUpdates)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}
}

func TestRedisEventBus_UnsubscribeAndClose(t *testing.T) {
	_, bus := newTestBus(t)
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx, "smartcare:queue:general")
	require.NoError(t, err)
	require.NoError(t, bus.Unsubscribe(ctx, "smartcare:queue:general"))
	_, ok := <-ch
	assert.False(t, ok)

	require.NoError(t, bus.Close())
	_, err = bus.Subscribe(ctx, "smartcare:queue:general")
	assert.Error(t, err)
}

func TestRedisEventBus_PublishFailsWhenServerDown(t *testing.T) {
	mr, bus := newTestBus(t)
	mr.Close()
	err := bus.Publish(context.Background(), providers.EventChannelQueueUpdates, entities.NewQueueEvent(entities.QueueEventReset, ""))
	assert.Error(t, err)
}
