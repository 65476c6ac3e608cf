package stage

import (
	"github.com/certdirectory/crawlcore/pkg/ids"
	"github.com/certdirectory/crawlcore/pkg/model"
	"github.com/certdirectory/crawlcore/pkg/task"
)

// aggregate folds per-item task.Results into the StageResult a BatchActor
// consumes: all-success collapses to Success, any failure collapses to
// PartialSuccess unless a Cancelled failure is present, or a config-gated
// fatal kind is present with its abort flag set, in which case the whole
// stage promotes to FatalError.
func aggregate(stageName model.StageName, stageID ids.StageID, results []task.Result, abortOnDatabaseError, abortOnValidationError bool) model.StageResult {
	var (
		successItems []model.StageItem
		failedItems  []model.FailedItem
	)

	var fatal *model.StageError
	for _, r := range results {
		if r.Success() {
			successItems = append(successItems, producedItems(stageName, r)...)
			continue
		}
		failedItems = append(failedItems, model.FailedItem{Item: r.Item, Err: r.Err})
		if r.Err.IsFatal(abortOnDatabaseError, abortOnValidationError) && fatal == nil {
			fatal = r.Err
		}
	}

	if fatal != nil {
		return model.NewFatalErrorResult(stageID, stageName, fatal, "fatal error during "+string(stageName))
	}

	if len(failedItems) == 0 {
		return model.NewSuccessResult(stageID, stageName, buildSuccess(stageName, results))
	}

	return model.NewPartialSuccessResult(stageID, stageName, successItems, failedItems)
}

// producedItems returns the next-stage item(s) one successful task.Result
// yields. list_collection is one-to-many: a single fetched page can
// produce any number of URLs, and every one of them must survive into
// detail_collection's input even when a sibling page in the same stage
// invocation failed and the overall result is a PartialSuccess.
func producedItems(stageName model.StageName, r task.Result) []model.StageItem {
	switch stageName {
	case model.StageListCollection:
		items := make([]model.StageItem, len(r.URLs))
		for i, u := range r.URLs {
			items[i] = model.URLItem(u)
		}
		return items
	case model.StageDetailCollection, model.StageDataValidation:
		return []model.StageItem{model.RecordItem(r.Record)}
	default:
		return []model.StageItem{r.Item}
	}
}

// buildSuccess assembles the stage-specific StageSuccessResult variant
// from an all-successful result set.
func buildSuccess(stageName model.StageName, results []task.Result) model.StageSuccessResult {
	metrics := model.StageMetrics{Successful: len(results)}

	switch stageName {
	case model.StageListCollection:
		var urls []model.ProductURL
		for _, r := range results {
			urls = append(urls, r.URLs...)
		}
		return model.StageSuccessResult{ListCollection: &model.ListCollectionResult{
			CollectedURLs:   urls,
			TotalPages:      len(results),
			SuccessfulPages: len(results),
			Metrics:         metrics,
		}}

	case model.StageDetailCollection:
		var records []model.ProductRecord
		var urls []model.ProductURL
		for _, r := range results {
			records = append(records, r.Record)
			urls = append(urls, r.Item.URL)
		}
		return model.StageSuccessResult{DetailCollection: &model.DetailCollectionResult{
			ProcessedRecords: records,
			SuccessfulURLs:   urls,
			Metrics:          metrics,
		}}

	case model.StageDataValidation:
		var records []model.ProductRecord
		for _, r := range results {
			records = append(records, r.Record)
		}
		return model.StageSuccessResult{DataValidation: &model.DataValidationResult{
			ValidatedRecords: records,
			Metrics:          metrics,
		}}

	case model.StageDatabaseSave:
		outcomes := make(map[model.UpsertOutcome]int)
		for _, r := range results {
			outcomes[r.Upsert]++
		}
		return model.StageSuccessResult{DatabaseSave: &model.DatabaseSaveResult{
			Outcomes: outcomes,
			Metrics:  metrics,
		}}
	}
	return model.StageSuccessResult{}
}
