// Package metrics implements MetricsAggregator: a read-only subscriber to
// the event bus that maintains rolling counters and a sliding window of
// timing samples, and periodically emits AggregatedState and
// OptimizationSuggested events.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/ids"
)

// windowSample is one timing observation in the sliding window: whether the
// corresponding task succeeded, and when it completed.
type windowSample struct {
	success bool
	at      time.Time
}

// Aggregator subscribes to an events.Bus and rolls up per-session counters.
type Aggregator struct {
	bus            *events.Bus
	publisher      *events.Publisher
	interval       time.Duration
	windowSize     int
	errorThreshold float64

	mu            sync.Mutex
	counters      map[string]int
	window        []windowSample
	totalTarget   int
}

// New builds an Aggregator that emits AggregatedState every interval, over
// a sliding window of windowSize samples, flagging OptimizationSuggested
// when the windowed error rate exceeds errorThreshold.
func New(bus *events.Bus, publisher *events.Publisher, interval time.Duration, windowSize int, errorThreshold float64) *Aggregator {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Aggregator{
		bus:            bus,
		publisher:      publisher,
		interval:       interval,
		windowSize:     windowSize,
		errorThreshold: errorThreshold,
		counters:       make(map[string]int),
	}
}

// SetTarget records the total item count the session expects to process,
// used to compute ETA. Zero means unknown, and ETA is reported as zero.
func (a *Aggregator) SetTarget(total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalTarget = total
}

// Run subscribes to sessionID's events and emits AggregatedState on
// interval until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, sessionID ids.SessionID) {
	sub := a.bus.Subscribe(events.Filter{SessionID: sessionID}, nil)
	defer sub.Close()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	go a.consume(ctx, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.emit()
		}
	}
}

func (a *Aggregator) consume(ctx context.Context, sub *events.Subscription) {
	for {
		ev, ok := sub.Recv(ctx)
		if !ok {
			return
		}
		a.observe(ev)
	}
}

func (a *Aggregator) observe(ev events.AppEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch payload := ev.Payload.(type) {
	case events.TaskCompletedPayload:
		a.counters["items_processed"]++
		a.pushWindow(true, ev.Timestamp)
		ItemsProcessedTotal.Inc()
	case events.TaskFailedPayload:
		_ = payload
		a.counters["items_processed"]++
		a.counters["items_failed"]++
		a.pushWindow(false, ev.Timestamp)
		ItemsProcessedTotal.Inc()
		ItemsFailedTotal.Inc()
	case events.StageCompletedPayload:
		a.counters["stages_completed"]++
	case events.StageFailedPayload:
		a.counters["stages_failed"]++
	case events.BatchCompletedPayload:
		a.counters["batches_completed"]++
	case events.BatchFailedPayload:
		a.counters["batches_failed"]++
	}
}

func (a *Aggregator) pushWindow(success bool, at time.Time) {
	a.window = append(a.window, windowSample{success: success, at: at})
	if len(a.window) > a.windowSize {
		a.window = a.window[len(a.window)-a.windowSize:]
	}
}

func (a *Aggregator) emit() {
	a.mu.Lock()
	errorRate, throughput, eta := a.computeLocked()
	countersCopy := make(map[string]int, len(a.counters))
	for k, v := range a.counters {
		countersCopy[k] = v
	}
	a.mu.Unlock()

	a.publisher.Publish(events.AggregatedStatePayload{
		Throughput: throughput,
		ErrorRate:  errorRate,
		ETA:        eta,
		Counters:   countersCopy,
	})
	ThroughputGauge.Set(throughput)
	ErrorRateGauge.Set(errorRate)

	if errorRate > a.errorThreshold {
		a.publisher.Publish(events.OptimizationSuggestedPayload{
			Category:       "error_rate",
			Recommendation: "error rate exceeds auto_adjust_threshold, consider reducing batch size",
		})
		OptimizationSuggestionsTotal.Inc()
	}
}

// computeLocked must be called with a.mu held. It derives error_rate and
// throughput from the sliding window, and ETA from throughput and the
// remaining items toward totalTarget.
func (a *Aggregator) computeLocked() (errorRate, throughput float64, eta time.Duration) {
	if len(a.window) == 0 {
		return 0, 0, 0
	}

	failures := 0
	for _, s := range a.window {
		if !s.success {
			failures++
		}
	}
	errorRate = float64(failures) / float64(len(a.window))

	span := a.window[len(a.window)-1].at.Sub(a.window[0].at)
	if span <= 0 {
		span = time.Second
	}
	throughput = float64(len(a.window)) / span.Seconds()

	if a.totalTarget > 0 && throughput > 0 {
		remaining := a.totalTarget - a.counters["items_processed"]
		if remaining > 0 {
			eta = time.Duration(float64(remaining)/throughput) * time.Second
		}
	}
	return errorRate, throughput, eta
}
