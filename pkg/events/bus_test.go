package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certdirectory/crawlcore/pkg/ids"
)

func TestBusPublishAndRecv(t *testing.T) {
	bus := NewBus(8, 0)
	sub := bus.Subscribe(Filter{}, nil)
	defer sub.Close()

	sessionID := ids.NewSessionID()
	pub := NewPublisher(bus, sessionID, nil)
	pub.Publish(SessionStartedPayload{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, KindSessionStarted, ev.Payload.Kind())
	assert.Equal(t, sessionID, ev.SessionID)
}

func TestBusFilterBySessionID(t *testing.T) {
	bus := NewBus(8, 0)
	targetSession := ids.NewSessionID()
	sub := bus.Subscribe(Filter{SessionID: targetSession}, nil)
	defer sub.Close()

	NewPublisher(bus, ids.NewSessionID(), nil).Publish(SessionStartedPayload{})
	NewPublisher(bus, targetSession, nil).Publish(SessionCompletedPayload{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, KindSessionCompleted, ev.Payload.Kind())
}

func TestBusFilterByKind(t *testing.T) {
	bus := NewBus(8, 0)
	sub := bus.Subscribe(Filter{Kinds: []Kind{KindTaskFailed}}, nil)
	defer sub.Close()

	pub := NewPublisher(bus, ids.NewSessionID(), nil)
	pub.Publish(TaskStartedPayload{})
	pub.Publish(TaskFailedPayload{Error: "boom"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, KindTaskFailed, ev.Payload.Kind())
}

func TestBusDropsOldestWhenSubscriberFull(t *testing.T) {
	bus := NewBus(2, 0)
	sub := bus.Subscribe(Filter{}, nil)
	defer sub.Close()

	pub := NewPublisher(bus, ids.NewSessionID(), nil)
	pub.Publish(TaskStartedPayload{})
	pub.Publish(TaskCompletedPayload{})
	pub.Publish(TaskFailedPayload{Error: "third"})

	// Give push() time to land before asserting drop count and draining.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(1), sub.Dropped())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	first, ok := sub.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, KindTaskCompleted, first.Payload.Kind())

	second, ok := sub.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, KindTaskFailed, second.Payload.Kind())
}

func TestBusRecvUnblocksOnContextCancel(t *testing.T) {
	bus := NewBus(8, 0)
	sub := bus.Subscribe(Filter{}, nil)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := sub.Recv(ctx)
	assert.False(t, ok)
}

func TestBusReplayOnLateSubscribe(t *testing.T) {
	bus := NewBus(8, 0)
	sessionID := ids.NewSessionID()
	pub := NewPublisher(bus, sessionID, nil)
	since := time.Now().Add(-time.Minute)
	pub.Publish(SessionStartedPayload{})

	sub := bus.Subscribe(Filter{SessionID: sessionID}, &since)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, KindSessionStarted, ev.Payload.Kind())
}

func TestBusActiveSubscribers(t *testing.T) {
	bus := NewBus(8, 0)
	assert.Equal(t, 0, bus.ActiveSubscribers())

	sub1 := bus.Subscribe(Filter{}, nil)
	sub2 := bus.Subscribe(Filter{}, nil)
	assert.Equal(t, 2, bus.ActiveSubscribers())

	sub1.Close()
	assert.Equal(t, 1, bus.ActiveSubscribers())
	sub2.Close()
	assert.Equal(t, 0, bus.ActiveSubscribers())
}
