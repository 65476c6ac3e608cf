package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/ids"
)

func TestAggregatorEmitsAggregatedStateOnInterval(t *testing.T) {
	bus := events.NewBus(64, 0)
	sessionID := ids.NewSessionID()
	pub := events.NewPublisher(bus, sessionID, nil)

	agg := New(bus, pub, 20*time.Millisecond, 10, 0.5)
	sub := bus.Subscribe(events.Filter{SessionID: sessionID, Kinds: []events.Kind{events.KindAggregatedState}}, nil)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	go agg.Run(ctx, sessionID)

	pub.WithTask(ids.NewTaskID()).Publish(events.TaskCompletedPayload{})
	pub.WithTask(ids.NewTaskID()).Publish(events.TaskCompletedPayload{})

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer recvCancel()
	ev, ok := sub.Recv(recvCtx)
	require.True(t, ok)

	payload, ok := ev.Payload.(events.AggregatedStatePayload)
	require.True(t, ok)
	assert.GreaterOrEqual(t, payload.Counters["items_processed"], 1)
}

func TestAggregatorEmitsOptimizationSuggestedOnHighErrorRate(t *testing.T) {
	bus := events.NewBus(64, 0)
	sessionID := ids.NewSessionID()
	pub := events.NewPublisher(bus, sessionID, nil)

	agg := New(bus, pub, 20*time.Millisecond, 10, 0.1)
	sub := bus.Subscribe(events.Filter{SessionID: sessionID, Kinds: []events.Kind{events.KindOptimizationSuggested}}, nil)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	go agg.Run(ctx, sessionID)

	pub.WithTask(ids.NewTaskID()).Publish(events.TaskFailedPayload{Error: "boom"})

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer recvCancel()
	_, ok := sub.Recv(recvCtx)
	assert.True(t, ok)
}

func TestAggregatorUpdatesPrometheusCounters(t *testing.T) {
	bus := events.NewBus(64, 0)
	sessionID := ids.NewSessionID()
	pub := events.NewPublisher(bus, sessionID, nil)

	agg := New(bus, pub, 20*time.Millisecond, 10, 0.5)
	sub := bus.Subscribe(events.Filter{SessionID: sessionID, Kinds: []events.Kind{events.KindAggregatedState}}, nil)
	defer sub.Close()

	before := testutil.ToFloat64(ItemsProcessedTotal)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go agg.Run(ctx, sessionID)

	pub.WithTask(ids.NewTaskID()).Publish(events.TaskCompletedPayload{})

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer recvCancel()
	_, ok := sub.Recv(recvCtx)
	require.True(t, ok)

	after := testutil.ToFloat64(ItemsProcessedTotal)
	assert.Equal(t, before+1.0, after)
}

func TestAggregatorComputeLockedEmptyWindow(t *testing.T) {
	bus := events.NewBus(8, 0)
	pub := events.NewPublisher(bus, ids.NewSessionID(), nil)
	agg := New(bus, pub, time.Second, 10, 0.5)

	rate, throughput, eta := agg.computeLocked()
	assert.Zero(t, rate)
	assert.Zero(t, throughput)
	assert.Zero(t, eta)
}
