// Package batch implements BatchActor: runs the fixed four-stage pipeline
// over one batch's pages, retries a stage with its unprocessed items on a
// recoverable failure, and proposes the next batch's size from this
// batch's observed error rate (throughput is not measured).
package batch

import (
	"context"
	"time"

	"github.com/certdirectory/crawlcore/pkg/config"
	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/ids"
	"github.com/certdirectory/crawlcore/pkg/model"
	"github.com/certdirectory/crawlcore/pkg/retry"
	"github.com/certdirectory/crawlcore/pkg/stage"
)

// Input describes one batch execution request.
type Input struct {
	BatchID     ids.BatchID
	Pages       []uint32
	Concurrency map[model.StageName]int
	Timeouts    map[model.StageName]time.Duration
	Policies    map[string]config.RetryPolicyConfig // keyed by stage name, plus "batch"
	AbortOnDatabaseError   bool
	AbortOnValidationError bool
	TargetThroughput       float64
	AutoAdjustThreshold    float64
	AdjustMultiplier       float64
	MinBatchSize           int
	MaxBatchSize           int
	CurrentBatchSize       int
}

// Outcome is what a BatchActor reports to the owning SessionActor: the
// final StageResult of the pipeline (whichever stage it stopped at) plus
// the suggested next batch size.
type Outcome struct {
	Result          model.StageResult
	SuggestedSize   int
	SizeChangeReason string
	ItemsSaved      int
	ItemsFailed     int
}

// Actor runs the stage pipeline for one batch.
type Actor struct {
	stageActor *stage.Actor
	calc       *retry.Calculator
	publisher  *events.Publisher
}

// New builds a batch Actor.
func New(stageActor *stage.Actor, calc *retry.Calculator, publisher *events.Publisher) *Actor {
	return &Actor{stageActor: stageActor, calc: calc, publisher: publisher}
}

// RunBatch executes list_collection -> detail_collection -> data_validation
// -> database_save in order, retrying each stage per policy with its
// unprocessed items, and short-circuits on the first FatalError.
func (a *Actor) RunBatch(ctx context.Context, cancel <-chan struct{}, input Input) Outcome {
	pub := a.publisher.WithBatch(input.BatchID)
	pub.Publish(events.BatchStartedPayload{PageCount: len(input.Pages)})

	items := make([]model.StageItem, len(input.Pages))
	for i, p := range input.Pages {
		items[i] = model.PageItem(p)
	}

	var lastResult model.StageResult
	var itemsSaved, itemsFailed int

	for _, stageName := range model.Stages {
		result := a.runStageWithRetry(ctx, cancel, stageName, items, input)
		lastResult = result

		// items_saved is database_save's successful count — the terminal
		// stage that actually persists items. items_failed adds
		// database_save's failures to the items earlier stages already
		// dropped as PartialSuccess failures below.
		if stageName == model.StageDatabaseSave {
			metrics := result.Metrics()
			itemsSaved = metrics.Successful
			itemsFailed += metrics.Failed
		}

		switch result.Kind {
		case model.StageResultFatalError:
			pub.Publish(events.BatchFailedPayload{Error: result.Error.Error(), Final: true})
			return a.finish(pub, input, lastResult, itemsSaved, itemsFailed)

		case model.StageResultRecoverableError:
			pub.Publish(events.BatchFailedPayload{Error: result.Error.Error(), Final: true})
			return a.finish(pub, input, lastResult, itemsSaved, itemsFailed)

		case model.StageResultSuccess:
			items = nextItems(stageName, result.Success)

		case model.StageResultPartialSuccess:
			items = nextItemsFromPartial(stageName, result.SuccessItems)
			if stageName != model.StageDatabaseSave {
				itemsFailed += len(result.FailedItems)
			}
		}

		if len(items) == 0 {
			break
		}
	}

	pub.Publish(events.BatchCompletedPayload{Result: events.BatchResultSummary{
		ItemsSaved:  itemsSaved,
		ItemsFailed: itemsFailed,
	}})
	return a.finish(pub, input, lastResult, itemsSaved, itemsFailed)
}

func (a *Actor) finish(pub *events.Publisher, input Input, result model.StageResult, saved, failed int) Outcome {
	suggested, reason := adjustBatchSize(input, saved+failed, failed)
	if suggested != input.CurrentBatchSize {
		pub.Publish(events.BatchConfigChangedPayload{NewSize: suggested, Reason: reason})
	}
	return Outcome{
		Result:           result,
		SuggestedSize:    suggested,
		SizeChangeReason: reason,
		ItemsSaved:       saved,
		ItemsFailed:      failed,
	}
}

// runStageWithRetry drives one stage's ExecuteStage calls, retrying with
// the unprocessed (failed) items on RecoverableError, and retrying only
// the failed subset again on PartialSuccess, up to the stage's
// max_attempts total attempts.
func (a *Actor) runStageWithRetry(ctx context.Context, cancel <-chan struct{}, stageName model.StageName, items []model.StageItem, input Input) model.StageResult {
	policy := input.Policies[string(stageName)]
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	remaining := items
	var lastResult model.StageResult
	var accumulatedSuccess []model.StageItem
	var accumulatedFailed []model.FailedItem

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result := a.stageActor.ExecuteStage(ctx, cancel, stage.Input{
			StageID:          ids.NewStageID(),
			Stage:            stageName,
			Items:            remaining,
			ConcurrencyLimit: input.Concurrency[stageName],
			Timeout:          input.Timeouts[stageName],
			Policy:           policy,
			AbortOnDatabaseError:   input.AbortOnDatabaseError,
			AbortOnValidationError: input.AbortOnValidationError,
		})
		lastResult = result

		switch result.Kind {
		case model.StageResultSuccess, model.StageResultFatalError:
			if len(accumulatedSuccess) > 0 || len(accumulatedFailed) > 0 {
				return mergeWithAccumulated(result, accumulatedSuccess, accumulatedFailed)
			}
			return result

		case model.StageResultPartialSuccess:
			accumulatedSuccess = append(accumulatedSuccess, result.SuccessItems...)
			if attempt >= maxAttempts {
				accumulatedFailed = append(accumulatedFailed, result.FailedItems...)
				return model.NewPartialSuccessResult(result.StageID, stageName, accumulatedSuccess, accumulatedFailed)
			}
			remaining = failedToItems(result.FailedItems)
			if len(remaining) == 0 {
				return model.NewSuccessResult(result.StageID, stageName, model.StageSuccessResult{})
			}

			delay := a.calc.Delay(toRetryPolicy(policy), attempt)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-cancel:
				timer.Stop()
				return model.NewFatalErrorResult(result.StageID, stageName, model.NewStageError(model.ErrorCancelled, "cancelled during stage retry backoff"), "cancelled")
			case <-ctx.Done():
				timer.Stop()
				return model.NewFatalErrorResult(result.StageID, stageName, model.NewStageError(model.ErrorCancelled, ctx.Err().Error()), "cancelled")
			}

		case model.StageResultRecoverableError:
			if attempt >= maxAttempts {
				return result
			}
			delay := a.calc.Delay(toRetryPolicy(policy), attempt)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-cancel:
				timer.Stop()
				return model.NewFatalErrorResult(result.StageID, stageName, model.NewStageError(model.ErrorCancelled, "cancelled during stage retry backoff"), "cancelled")
			case <-ctx.Done():
				timer.Stop()
				return model.NewFatalErrorResult(result.StageID, stageName, model.NewStageError(model.ErrorCancelled, ctx.Err().Error()), "cancelled")
			}
		}
	}
	return lastResult
}

func mergeWithAccumulated(result model.StageResult, accSuccess []model.StageItem, accFailed []model.FailedItem) model.StageResult {
	if result.Kind == model.StageResultFatalError {
		return result
	}
	switch result.Kind {
	case model.StageResultSuccess:
		// all previously-failed items now succeeded; nothing failed this round.
		if len(accFailed) == 0 {
			return model.NewSuccessResult(result.StageID, result.Stage, result.Success)
		}
		return model.NewPartialSuccessResult(result.StageID, result.Stage, accSuccess, accFailed)
	default:
		return result
	}
}

func failedToItems(failed []model.FailedItem) []model.StageItem {
	items := make([]model.StageItem, len(failed))
	for i, f := range failed {
		items[i] = f.Item
	}
	return items
}

// nextItems converts one stage's successful output into the next stage's
// input items.
func nextItems(stageName model.StageName, success model.StageSuccessResult) []model.StageItem {
	switch stageName {
	case model.StageListCollection:
		if success.ListCollection == nil {
			return nil
		}
		items := make([]model.StageItem, len(success.ListCollection.CollectedURLs))
		for i, u := range success.ListCollection.CollectedURLs {
			items[i] = model.URLItem(u)
		}
		return items
	case model.StageDetailCollection:
		if success.DetailCollection == nil {
			return nil
		}
		items := make([]model.StageItem, len(success.DetailCollection.ProcessedRecords))
		for i, r := range success.DetailCollection.ProcessedRecords {
			items[i] = model.RecordItem(r)
		}
		return items
	case model.StageDataValidation:
		if success.DataValidation == nil {
			return nil
		}
		items := make([]model.StageItem, len(success.DataValidation.ValidatedRecords))
		for i, r := range success.DataValidation.ValidatedRecords {
			items[i] = model.RecordItem(r)
		}
		return items
	default:
		return nil
	}
}

// nextItemsFromPartial converts the surviving success items of a
// PartialSuccess stage result into the next stage's input. stage.aggregate
// already expands list_collection's per-page successes into the URL items
// they produced, so every stage's SuccessItems is already shaped for the
// next stage and passes through unchanged; no page that succeeded is lost
// just because a sibling page in the same stage invocation failed.
func nextItemsFromPartial(stageName model.StageName, successItems []model.StageItem) []model.StageItem {
	return successItems
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

// adjustBatchSize computes the next batch's advisory size from this
// batch's observed error rate: shrink (divide by AdjustMultiplier) when the
// error rate exceeds AutoAdjustThreshold, grow (multiply by
// AdjustMultiplier) when the batch had no failures at all, clamp to
// [min_size, max_size]. Throughput is not measured and TargetThroughput is
// not read.
func adjustBatchSize(input Input, attempted, failed int) (int, string) {
	size := input.CurrentBatchSize
	if size <= 0 {
		size = len(input.Pages)
	}

	if attempted == 0 {
		return size, ""
	}
	errorRate := float64(failed) / float64(attempted)

	if errorRate > input.AutoAdjustThreshold {
		next := int(float64(size) / input.AdjustMultiplier)
		return clamp(next, input.MinBatchSize, input.MaxBatchSize), "error_rate_high"
	}

	if errorRate == 0 && input.AdjustMultiplier > 1 {
		next := int(float64(size) * input.AdjustMultiplier)
		clamped := clamp(next, input.MinBatchSize, input.MaxBatchSize)
		if clamped != size {
			return clamped, "throughput_headroom"
		}
	}

	return size, ""
}

func clamp(v, min, max int) int {
	if min > 0 && v < min {
		return min
	}
	if max > 0 && v > max {
		return max
	}
	if v < 1 {
		return 1
	}
	return v
}
