// Package stage implements StageActor: runs one pipeline stage over a set
// of items with bounded concurrency, applies per-task retry, and
// aggregates the outcome into a model.StageResult. Bounded concurrency
// uses golang.org/x/sync/semaphore the way kubernaut bounds its worker
// pools, rather than a hand-rolled channel-based limiter.
package stage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/certdirectory/crawlcore/pkg/config"
	"github.com/certdirectory/crawlcore/pkg/crawlcontext"
	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/ids"
	"github.com/certdirectory/crawlcore/pkg/model"
	"github.com/certdirectory/crawlcore/pkg/retry"
	"github.com/certdirectory/crawlcore/pkg/task"
	"github.com/certdirectory/crawlcore/pkg/telemetry"
)

// Input describes one stage execution request, the StageActor equivalent
// of ExecuteStage{items, concurrency_limit, timeout}.
type Input struct {
	StageID          ids.StageID
	Stage            model.StageName
	Items            []model.StageItem
	ConcurrencyLimit int
	Timeout          time.Duration
	Policy           config.RetryPolicyConfig // per-task retry budget within this stage execution
	AbortOnDatabaseError   bool
	AbortOnValidationError bool
}

// Actor runs stage executions against a task.Executor.
type Actor struct {
	executor  *task.Executor
	calc      *retry.Calculator
	publisher *events.Publisher
	tracer    *telemetry.Provider
}

// New builds a stage Actor. It traces with a no-op provider until
// SetTracer installs a real one.
func New(executor *task.Executor, calc *retry.Calculator, publisher *events.Publisher) *Actor {
	return &Actor{executor: executor, calc: calc, publisher: publisher, tracer: telemetry.Noop()}
}

// SetTracer installs the Provider used to trace stage and task spans.
func (a *Actor) SetTracer(tracer *telemetry.Provider) {
	if tracer != nil {
		a.tracer = tracer
	}
}

// ExecuteStage runs input.Items through the stage with bounded
// concurrency, honoring cancel and the stage timeout, and returns the
// aggregated StageResult.
func (a *Actor) ExecuteStage(ctx context.Context, cancel <-chan struct{}, input Input) model.StageResult {
	pub := a.publisher.WithStage(input.StageID)
	pub.Publish(events.StageStartedPayload{})

	ctx, span := a.tracer.StartStageSpan(ctx, string(pub.SessionID()), string(pub.BatchID()), string(input.StageID), string(input.Stage))
	defer span.End()

	cc := crawlcontext.Context{
		SessionID: pub.SessionID(),
		BatchID:   pub.BatchID(),
		StageID:   input.StageID,
		Stage:     input.Stage,
		Publisher: pub,
		Cancel:    cancel,
	}

	if cc.Cancelled() {
		return model.NewFatalErrorResult(input.StageID, input.Stage, model.NewStageError(model.ErrorCancelled, "cancelled before stage start"), "cancelled")
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(ctx, input.Timeout)
	defer timeoutCancel()

	stageCtx, stop := cc.WithTimeout(timeoutCtx)
	defer stop()

	sem := semaphore.NewWeighted(int64(max(1, input.ConcurrencyLimit)))

	var (
		mu       sync.Mutex
		results  = make([]task.Result, 0, len(input.Items))
		done     int
	)

	var wg sync.WaitGroup
	for i, item := range input.Items {
		if err := sem.Acquire(stageCtx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int, item model.StageItem) {
			defer wg.Done()
			defer sem.Release(1)

			taskID := ids.NewTaskID()
			r := a.runTaskWithRetry(stageCtx, cancel, pub, taskID, input, item)

			mu.Lock()
			results = append(results, r)
			done++
			pub.Publish(events.StageProgressPayload{Done: done, Total: len(input.Items)})
			mu.Unlock()
		}(i, item)
	}
	wg.Wait()

	if cc.Cancelled() {
		return model.NewFatalErrorResult(input.StageID, input.Stage, model.NewStageError(model.ErrorCancelled, "cancelled during stage execution"), "cancelled")
	}

	// A stage deadline either stops items from being started or cuts
	// running tasks short, which then report ErrorCancelled.
	timedOut := len(results) < len(input.Items)
	for _, r := range results {
		if !r.Success() && r.Err.Kind == model.ErrorCancelled {
			timedOut = true
		}
	}
	if stageCtx.Err() != nil && timedOut {
		pub.Publish(events.StageFailedPayload{Error: "stage timeout"})
		return model.NewRecoverableErrorResult(input.StageID, input.Stage,
			model.NewStageError(model.ErrorNetworkTimeout, "stage timeout elapsed"),
			0, input.Policy.BaseDelay().Milliseconds())
	}

	outcome := aggregate(input.Stage, input.StageID, results, input.AbortOnDatabaseError, input.AbortOnValidationError)
	switch outcome.Kind {
	case model.StageResultFatalError:
		pub.Publish(events.StageFailedPayload{Error: outcome.Error.Error()})
	default:
		pub.Publish(events.StageCompletedPayload{})
	}
	return outcome
}



// runTaskWithRetry executes one item, making up to input.Policy.MaxAttempts
// attempts in total on a recoverable per-task error. This retry is independent of the
// stage-level retry BatchActor drives across whole stage invocations.
func (a *Actor) runTaskWithRetry(ctx context.Context, cancel <-chan struct{}, pub *events.Publisher, taskID ids.TaskID, input Input, item model.StageItem) task.Result {
	taskPub := pub.WithTask(taskID)
	taskPub.Publish(events.TaskStartedPayload{})

	maxAttempts := input.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var result task.Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-cancel:
			result = task.Result{Item: item, Err: model.NewStageError(model.ErrorCancelled, "cancelled")}
			taskPub.Publish(events.TaskCancelledPayload{})
			return result
		case <-ctx.Done():
			result = task.Result{Item: item, Err: model.NewStageError(model.ErrorCancelled, ctx.Err().Error())}
			taskPub.Publish(events.TaskCancelledPayload{})
			return result
		default:
		}

		taskCtx, taskSpan := a.tracer.StartTaskSpan(ctx, string(taskPub.StageID()), string(taskID))
		result = a.executor.Execute(taskCtx, input.Stage, item)
		taskSpan.End()
		if result.Success() {
			taskPub.Publish(events.TaskCompletedPayload{})
			return result
		}
		if result.Err.Kind == model.ErrorCancelled {
			taskPub.Publish(events.TaskCancelledPayload{})
			return result
		}
		if !input.Policy.RetryOn(result.Err.Kind) || attempt >= maxAttempts {
			taskPub.Publish(events.TaskFailedPayload{Error: result.Err.Error()})
			return result
		}

		delay := a.calc.Delay(toRetryPolicy(input.Policy), attempt)
		taskPub.Publish(events.TaskRetryingPayload{Attempt: attempt + 1, DelayMs: delay.Milliseconds(), Error: result.Err.Error()})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-cancel:
			timer.Stop()
			result = task.Result{Item: item, Err: model.NewStageError(model.ErrorCancelled, "cancelled during retry backoff")}
			taskPub.Publish(events.TaskCancelledPayload{})
			return result
		case <-ctx.Done():
			timer.Stop()
			result = task.Result{Item: item, Err: model.NewStageError(model.ErrorCancelled, ctx.Err().Error())}
			taskPub.Publish(events.TaskCancelledPayload{})
			return result
		}
	}
	taskPub.Publish(events.TaskFailedPayload{Error: result.Err.Error()})
	return result
}

func toRetryPolicy(p config.RetryPolicyConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:       p.MaxAttempts,
		BaseDelay:         p.BaseDelay(),
		MaxDelay:          time.Duration(p.MaxDelayMs) * time.Millisecond,
		BackoffMultiplier: p.BackoffMultiplier,
		JitterRange:       time.Duration(p.JitterRangeMs) * time.Millisecond,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
