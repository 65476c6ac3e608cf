package model

import "github.com/certdirectory/crawlcore/pkg/ids"

// StageMetrics is the success/failure tally every StageSuccessResult
// variant carries, independent of what it collected.
type StageMetrics struct {
	Successful int
	Failed     int
}

// StageSuccessResult is the per-stage payload of a fully successful stage
// run. Each stage produces a different concrete shape, selected by which
// field is populated — Go has no sum types, so TaskExecutor callers type
// switch on the StageName that produced the result rather than on the
// result's own type.
type StageSuccessResult struct {
	ListCollection   *ListCollectionResult
	DetailCollection *DetailCollectionResult
	DataValidation   *DataValidationResult
	DatabaseSave     *DatabaseSaveResult
}

// ListCollectionResult is the outcome of a fully successful list_collection
// stage run.
type ListCollectionResult struct {
	CollectedURLs  []ProductURL
	TotalPages     int
	SuccessfulPages int
	FailedPages    int
	Metrics        StageMetrics
}

// DetailCollectionResult is the outcome of a fully successful
// detail_collection stage run.
type DetailCollectionResult struct {
	ProcessedRecords []ProductRecord
	SuccessfulURLs   []ProductURL
	FailedURLs       []ProductURL
	Metrics          StageMetrics
}

// DataValidationResult is the outcome of a fully successful data_validation
// stage run.
type DataValidationResult struct {
	ValidatedRecords []ProductRecord
	Metrics          StageMetrics
}

// DatabaseSaveResult is the outcome of a fully successful database_save
// stage run.
type DatabaseSaveResult struct {
	Outcomes map[UpsertOutcome]int
	Metrics  StageMetrics
}

// StageResultKind discriminates which fields of a StageResult are set.
type StageResultKind string

const (
	StageResultSuccess          StageResultKind = "success"
	StageResultRecoverableError StageResultKind = "recoverable_error"
	StageResultFatalError       StageResultKind = "fatal_error"
	StageResultPartialSuccess   StageResultKind = "partial_success"
)

// FailedItem pairs an item the stage could not process with the error that
// caused the failure, after retries for that item were exhausted.
type FailedItem struct {
	Item StageItem
	Err  *StageError
}

// StageResult is the outcome a StageActor reports to its owning BatchActor.
// Exactly one family of fields is meaningful, selected by Kind — this
// mirrors the Kind-tagged-struct pattern of StageError rather than an
// interface hierarchy, since every consumer needs to branch on Kind before
// touching any payload field anyway.
type StageResult struct {
	Kind    StageResultKind
	StageID ids.StageID
	Stage   StageName

	// Success
	Success StageSuccessResult

	// RecoverableError
	Error              *StageError
	Attempts           int
	NextRetryDelay     int64 // milliseconds, 0 if not retrying further

	// FatalError
	FatalContext string

	// PartialSuccess
	SuccessItems []StageItem
	FailedItems  []FailedItem
}

// NewSuccessResult builds a Success StageResult.
func NewSuccessResult(stageID ids.StageID, stage StageName, success StageSuccessResult) StageResult {
	return StageResult{Kind: StageResultSuccess, StageID: stageID, Stage: stage, Success: success}
}

// NewRecoverableErrorResult builds a RecoverableError StageResult.
func NewRecoverableErrorResult(stageID ids.StageID, stage StageName, err *StageError, attempts int, nextRetryDelayMs int64) StageResult {
	return StageResult{
		Kind:           StageResultRecoverableError,
		StageID:        stageID,
		Stage:          stage,
		Error:          err,
		Attempts:       attempts,
		NextRetryDelay: nextRetryDelayMs,
	}
}

// NewFatalErrorResult builds a FatalError StageResult.
func NewFatalErrorResult(stageID ids.StageID, stage StageName, err *StageError, context string) StageResult {
	return StageResult{Kind: StageResultFatalError, StageID: stageID, Stage: stage, Error: err, FatalContext: context}
}

// NewPartialSuccessResult builds a PartialSuccess StageResult.
func NewPartialSuccessResult(stageID ids.StageID, stage StageName, succeeded []StageItem, failed []FailedItem) StageResult {
	return StageResult{Kind: StageResultPartialSuccess, StageID: stageID, Stage: stage, SuccessItems: succeeded, FailedItems: failed}
}

// Metrics returns the successful/failed tally of the result regardless of
// which Kind produced it, for uniform aggregation by BatchActor.
func (r StageResult) Metrics() StageMetrics {
	switch r.Kind {
	case StageResultSuccess:
		switch {
		case r.Success.ListCollection != nil:
			return r.Success.ListCollection.Metrics
		case r.Success.DetailCollection != nil:
			return r.Success.DetailCollection.Metrics
		case r.Success.DataValidation != nil:
			return r.Success.DataValidation.Metrics
		case r.Success.DatabaseSave != nil:
			return r.Success.DatabaseSave.Metrics
		}
		return StageMetrics{}
	case StageResultPartialSuccess:
		return StageMetrics{Successful: len(r.SuccessItems), Failed: len(r.FailedItems)}
	default:
		return StageMetrics{}
	}
}
