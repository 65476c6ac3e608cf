// Package task implements TaskExecutor: the leaf that performs one
// indivisible unit of crawl work (fetch one page, parse one listing,
// fetch one detail, validate or persist one record) and classifies any
// failure into a model.StageError. The caller's context is passed to the
// fetch and upsert collaborators, and a failure they return after ctx is
// done is classified as ErrorCancelled; how promptly they return depends
// on them honoring ctx. Parsing takes no context and runs to completion.
package task

import (
	"context"
	"errors"

	"github.com/certdirectory/crawlcore/pkg/collaborator"
	"github.com/certdirectory/crawlcore/pkg/model"
)

// Result is the outcome of executing one StageItem. Exactly the fields
// relevant to the stage that produced it are populated; Err is nil on
// success.
type Result struct {
	Item   model.StageItem
	URLs   []model.ProductURL  // list_collection: URLs parsed from the fetched page
	Record model.ProductRecord // detail_collection / data_validation / database_save
	Upsert model.UpsertOutcome // database_save only
	Err    *model.StageError
}

func (r Result) Success() bool { return r.Err == nil }

// Executor runs TaskExecutor operations against a collaborator.Set.
type Executor struct {
	collaborators collaborator.Set
}

// New builds an Executor bound to collaborators.
func New(collaborators collaborator.Set) *Executor {
	return &Executor{collaborators: collaborators}
}

// Execute runs the operation appropriate to stage over item, passing ctx
// to the fetch and upsert collaborators it calls.
func (e *Executor) Execute(ctx context.Context, stage model.StageName, item model.StageItem) Result {
	switch stage {
	case model.StageListCollection:
		return e.executeListCollection(ctx, item)
	case model.StageDetailCollection:
		return e.executeDetailCollection(ctx, item)
	case model.StageDataValidation:
		return e.executeDataValidation(ctx, item)
	case model.StageDatabaseSave:
		return e.executeDatabaseSave(ctx, item)
	default:
		return Result{Item: item, Err: model.NewStageError(model.ErrorValidation, "unknown stage "+string(stage))}
	}
}

func (e *Executor) executeListCollection(ctx context.Context, item model.StageItem) Result {
	body, err := e.collaborators.Pages.FetchPage(ctx, item.Page)
	if err != nil {
		return Result{Item: item, Err: classifyFetchErr(ctx, err)}
	}
	urls, err := e.collaborators.Lists.ParseList(body)
	if err != nil {
		return Result{Item: item, Err: classifyParseErr(ctx, err)}
	}
	return Result{Item: item, URLs: urls}
}

func (e *Executor) executeDetailCollection(ctx context.Context, item model.StageItem) Result {
	body, err := e.collaborators.Pages.FetchDetailPage(ctx, item.URL)
	if err != nil {
		return Result{Item: item, Err: classifyFetchErr(ctx, err)}
	}
	record, err := e.collaborators.Details.ParseDetail(body)
	if err != nil {
		return Result{Item: item, Err: classifyParseErr(ctx, err)}
	}
	return Result{Item: item, Record: record}
}

func (e *Executor) executeDataValidation(ctx context.Context, item model.StageItem) Result {
	if ctx.Err() != nil {
		return Result{Item: item, Err: model.NewStageError(model.ErrorCancelled, ctx.Err().Error())}
	}
	missing := item.Record.MissingRequiredFields()
	if len(missing) > 0 {
		return Result{Item: item, Err: model.NewStageError(model.ErrorValidation, "missing required fields: "+joinStrings(missing))}
	}
	return Result{Item: item, Record: item.Record}
}

func (e *Executor) executeDatabaseSave(ctx context.Context, item model.StageItem) Result {
	outcome, err := e.collaborators.Upserter.UpsertProduct(ctx, item.Record)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Item: item, Err: model.NewStageError(model.ErrorCancelled, ctx.Err().Error())}
		}
		return Result{Item: item, Err: model.NewStageError(model.ErrorDatabase, err.Error())}
	}
	return Result{Item: item, Record: item.Record, Upsert: outcome}
}

func classifyFetchErr(ctx context.Context, err error) *model.StageError {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return model.NewStageError(model.ErrorCancelled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewStageError(model.ErrorNetworkTimeout, err.Error())
	}

	var rateLimit *collaborator.RateLimitError
	if errors.As(err, &rateLimit) {
		se := model.NewStageError(model.ErrorRateLimit, err.Error())
		se.RetryAfter = rateLimit.RetryAfter
		return se
	}

	var statusErr *collaborator.HTTPStatusError
	if errors.As(err, &statusErr) {
		se := model.NewStageError(model.ErrorServerError, err.Error())
		se.StatusCode = statusErr.StatusCode
		return se
	}

	return model.NewStageError(model.ErrorNetworkTimeout, err.Error())
}

func classifyParseErr(ctx context.Context, err error) *model.StageError {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return model.NewStageError(model.ErrorCancelled, err.Error())
	}
	return model.NewStageError(model.ErrorParse, err.Error())
}

func joinStrings(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
