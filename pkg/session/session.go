// Package session implements SessionActor: sequential execution of a
// plan's batches, global failure policy, session timeout, and pause/resume
// between batches.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/certdirectory/crawlcore/pkg/batch"
	"github.com/certdirectory/crawlcore/pkg/config"
	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/ids"
	"github.com/certdirectory/crawlcore/pkg/model"
	"github.com/certdirectory/crawlcore/pkg/retry"
)

// Status mirrors the Facade's session_status enum.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Summary is the aggregate count carried by SessionCompleted.
type Summary struct {
	ItemsSaved       int
	ItemsFailed      int
	BatchesSucceeded int
	BatchesFailed    int
	Duration         time.Duration
}

// State is the Facade-visible snapshot of one running session.
type State struct {
	mu       sync.Mutex
	status   Status
	summary  Summary
	failErr  error
}

// NewState builds a fresh State in the Running status.
func NewState() *State {
	return &State{status: StatusRunning}
}

// Snapshot returns the current status and summary under lock.
func (s *State) Snapshot() (Status, Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.summary, s.failErr
}

func (s *State) set(status Status, summary Summary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.summary = summary
	s.failErr = err
}

func (s *State) setPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning && paused {
		s.status = StatusPaused
	} else if s.status == StatusPaused && !paused {
		s.status = StatusRunning
	}
}

// Control is the command sink a Facade uses to steer a running session.
type Control struct {
	cancel chan struct{}
	pause  chan bool
	once   sync.Once
}

// NewControl builds a fresh Control for steering one session run.
func NewControl() *Control {
	return &Control{cancel: make(chan struct{}), pause: make(chan bool, 4)}
}

// Cancel signals cooperative cancellation exactly once.
func (c *Control) Cancel() {
	c.once.Do(func() { close(c.cancel) })
}

// Pause requests the session suspend iteration between batches.
func (c *Control) Pause() { c.pause <- true }

// Resume requests the session continue iteration.
func (c *Control) Resume() { c.pause <- false }

// Actor runs one session's plan to completion.
type Actor struct {
	batchActor *batch.Actor
	calc       *retry.Calculator
	publisher  *events.Publisher
	cfg        *config.Config
}

// New builds a session Actor.
func New(batchActor *batch.Actor, calc *retry.Calculator, publisher *events.Publisher, cfg *config.Config) *Actor {
	return &Actor{batchActor: batchActor, calc: calc, publisher: publisher, cfg: cfg}
}

// Run executes plan to completion, reporting live status through state and
// honoring control's cancel/pause commands, until the session finishes or
// the session timeout elapses.
func (a *Actor) Run(ctx context.Context, sessionID ids.SessionID, plan model.ExecutionPlan, control *Control, state *State) {
	start := time.Now()
	pub := a.publisher

	if len(plan.Batches) == 0 {
		pub.Publish(events.SessionCompletedPayload{Summary: events.SessionSummary{DurationMs: 0}})
		state.set(StatusCompleted, Summary{}, nil)
		return
	}

	sessionCtx, sessionCancel := context.WithTimeout(ctx, a.cfg.System.SessionTimeout())
	defer sessionCancel()

	pub.Publish(events.SessionStartedPayload{})

	var summary Summary
	paused := false

	for _, batchPlan := range plan.Batches {
		for {
			select {
			case <-control.cancel:
				pub.Publish(events.SessionCancelledPayload{Reason: "cancelled by caller"})
				summary.Duration = time.Since(start)
				state.set(StatusCancelled, summary, nil)
				return
			case requestPause := <-control.pause:
				paused = requestPause
				state.setPaused(paused)
				continue
			case <-sessionCtx.Done():
				pub.Publish(events.SessionTimeoutPayload{})
				summary.Duration = time.Since(start)
				state.set(StatusFailed, summary, sessionCtx.Err())
				return
			default:
			}
			if !paused {
				break
			}
			select {
			case requestPause := <-control.pause:
				paused = requestPause
				state.setPaused(paused)
			case <-control.cancel:
				pub.Publish(events.SessionCancelledPayload{Reason: "cancelled while paused"})
				summary.Duration = time.Since(start)
				state.set(StatusCancelled, summary, nil)
				return
			case <-sessionCtx.Done():
				pub.Publish(events.SessionTimeoutPayload{})
				summary.Duration = time.Since(start)
				state.set(StatusFailed, summary, sessionCtx.Err())
				return
			}
		}

		outcome, stop := a.runBatchWithRetry(sessionCtx, control.cancel, batchPlan)
		summary.ItemsSaved += outcome.ItemsSaved
		summary.ItemsFailed += outcome.ItemsFailed

		switch outcome.Result.Kind {
		case model.StageResultSuccess, model.StageResultPartialSuccess:
			summary.BatchesSucceeded++
			pub.WithBatch(batchPlan.BatchID).Publish(events.BatchCompletedPayload{Result: events.BatchResultSummary{
				ItemsSaved:  outcome.ItemsSaved,
				ItemsFailed: outcome.ItemsFailed,
			}})

		case model.StageResultRecoverableError:
			summary.BatchesFailed++
			pub.WithBatch(batchPlan.BatchID).Publish(events.BatchFailedPayload{Error: outcome.Result.Error.Error(), Final: true})

		case model.StageResultFatalError:
			summary.BatchesFailed++
			if outcome.Result.Error.Kind == model.ErrorCancelled {
				pub.WithBatch(batchPlan.BatchID).Publish(events.BatchFailedPayload{Error: outcome.Result.Error.Error(), Final: true})
				pub.Publish(events.SessionCancelledPayload{Reason: "cancelled mid-batch"})
				summary.Duration = time.Since(start)
				state.set(StatusCancelled, summary, nil)
				return
			}
			if outcome.Result.Error.IsFatal(a.cfg.System.AbortOnDatabaseError, a.cfg.System.AbortOnValidationError) {
				pub.WithBatch(batchPlan.BatchID).Publish(events.BatchFailedPayload{Error: outcome.Result.Error.Error(), Final: true})
				summary.Duration = time.Since(start)
				state.set(StatusFailed, summary, outcome.Result.Error)
				pub.Publish(events.SessionCompletedPayload{Summary: toEventSummary(summary)})
				return
			}
			pub.WithBatch(batchPlan.BatchID).Publish(events.BatchFailedPayload{Error: outcome.Result.Error.Error(), Final: true})
		}

		if stop {
			summary.Duration = time.Since(start)
			state.set(StatusFailed, summary, outcome.Result.Error)
			return
		}
	}

	summary.Duration = time.Since(start)
	pub.Publish(events.SessionCompletedPayload{Summary: toEventSummary(summary)})
	state.set(StatusCompleted, summary, nil)
}

// runBatchWithRetry runs one batch, retrying the whole batch at the session
// level on RecoverableError up to retry_policies.batch.max_attempts. stop
// reports whether the session-level timeout fired mid-retry.
func (a *Actor) runBatchWithRetry(ctx context.Context, cancel <-chan struct{}, plan model.BatchPlan) (batch.Outcome, bool) {
	policy := a.cfg.RetryPolicies["batch"]
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	input := a.buildBatchInput(plan)

	var outcome batch.Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome = a.batchActor.RunBatch(ctx, cancel, input)
		if outcome.Result.Kind != model.StageResultRecoverableError {
			return outcome, false
		}
		if attempt >= maxAttempts {
			return outcome, false
		}

		delay := a.calc.Delay(toRetryPolicy(policy), attempt)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-cancel:
			timer.Stop()
			return outcome, false
		case <-ctx.Done():
			timer.Stop()
			return outcome, true
		}
		input.CurrentBatchSize = outcome.SuggestedSize
	}
	return outcome, false
}

func (a *Actor) buildBatchInput(plan model.BatchPlan) batch.Input {
	timeouts := make(map[model.StageName]time.Duration, len(model.Stages))
	concurrency := make(map[model.StageName]int, len(model.Stages))
	policies := make(map[string]config.RetryPolicyConfig, len(model.Stages))

	for _, s := range model.Stages {
		timeouts[s] = a.cfg.System.CancellationTimeout() + time.Minute
		concurrency[s] = a.cfg.Performance.Concurrency.StageLimit(s)
		policies[string(s)] = a.cfg.RetryPolicies[string(s)]
	}
	concurrency[model.StageListCollection] = plan.InitialConcurrency

	return batch.Input{
		BatchID:                plan.BatchID,
		Pages:                  plan.Pages,
		Concurrency:            concurrency,
		Timeouts:               timeouts,
		Policies:               policies,
		AbortOnDatabaseError:   a.cfg.System.AbortOnDatabaseError,
		AbortOnValidationError: a.cfg.System.AbortOnValidationError,
		AutoAdjustThreshold:    a.cfg.Performance.BatchSizes.AutoAdjustThreshold,
		AdjustMultiplier:       a.cfg.Performance.BatchSizes.AdjustMultiplier,
		MinBatchSize:           a.cfg.Performance.BatchSizes.MinSize,
		MaxBatchSize:           a.cfg.Performance.BatchSizes.MaxSize,
		CurrentBatchSize:       plan.InitialBatchSize,
	}
}

func toEventSummary(s Summary) events.SessionSummary {
	return events.SessionSummary{
		ItemsSaved:       s.ItemsSaved,
		ItemsFailed:      s.ItemsFailed,
		BatchesSucceeded: s.BatchesSucceeded,
		BatchesFailed:    s.BatchesFailed,
		DurationMs:       s.Duration.Milliseconds(),
	}
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
