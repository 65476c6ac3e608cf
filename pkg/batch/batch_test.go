package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certdirectory/crawlcore/pkg/collaborator"
	"github.com/certdirectory/crawlcore/pkg/collaborator/fakes"
	"github.com/certdirectory/crawlcore/pkg/config"
	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/ids"
	"github.com/certdirectory/crawlcore/pkg/model"
	"github.com/certdirectory/crawlcore/pkg/retry"
	"github.com/certdirectory/crawlcore/pkg/stage"
	"github.com/certdirectory/crawlcore/pkg/task"
)

func newTestBatchActor(site *fakes.FakeSite, db *fakes.FakeDatabase, bus *events.Bus) *Actor {
	exec := task.New(collaborator.Set{
		Pages: site, Lists: site, Details: site, Upserter: db, Sites: site, Databases: db, Clock: collaborator.SystemClock{},
	})
	calc := retry.NewCalculator(1)
	pub := events.NewPublisher(bus, ids.NewSessionID(), nil)
	stageActor := stage.New(exec, calc, pub)
	return New(stageActor, calc, pub)
}

func allPolicies(maxAttempts int) map[string]config.RetryPolicyConfig {
	p := config.RetryPolicyConfig{MaxAttempts: maxAttempts, BaseDelayMs: 1, MaxDelayMs: 5, BackoffMultiplier: 2}
	return map[string]config.RetryPolicyConfig{
		string(model.StageListCollection):   p,
		string(model.StageDetailCollection): p,
		string(model.StageDataValidation):   p,
		string(model.StageDatabaseSave):     p,
	}
}

func baseInput(pages []uint32) Input {
	return Input{
		BatchID:          ids.NewBatchID(),
		Pages:            pages,
		Concurrency:      map[model.StageName]int{},
		Timeouts:         map[model.StageName]time.Duration{},
		Policies:         allPolicies(1),
		MinBatchSize:     1,
		MaxBatchSize:     100,
		CurrentBatchSize: len(pages),
		AutoAdjustThreshold: 0.5,
		AdjustMultiplier:    2,
	}
}

func withTimeouts(input Input, d time.Duration) Input {
	for _, s := range model.Stages {
		input.Timeouts[s] = d
	}
	return input
}

func TestRunBatchFullPipelineSuccess(t *testing.T) {
	site := fakes.NewFakeSite()
	url := model.ProductURL("https://example.com/a")
	site.Pages[1] = fakes.PageScript{
		URLs:   []model.ProductURL{url},
		Detail: map[model.ProductURL]model.ProductRecord{url: {URL: url, Name: "Widget", CertificationID: "CERT-1"}},
	}
	bus := events.NewBus(64, 0)
	actor := newTestBatchActor(site, fakes.NewFakeDatabase(), bus)

	input := withTimeouts(baseInput([]uint32{1}), time.Second)
	outcome := actor.RunBatch(context.Background(), make(chan struct{}), input)

	require.Equal(t, model.StageResultSuccess, outcome.Result.Kind)
	assert.Equal(t, model.StageDatabaseSave, outcome.Result.Stage)
	assert.Equal(t, 1, outcome.ItemsSaved)
	assert.Equal(t, 0, outcome.ItemsFailed)
}

func TestRunBatchStageRetrySucceedsOnSecondAttempt(t *testing.T) {
	site := fakes.NewFakeSite()
	site.Pages[1] = fakes.PageScript{FetchErr: &collaborator.HTTPStatusError{StatusCode: 500}}
	bus := events.NewBus(64, 0)
	actor := newTestBatchActor(site, fakes.NewFakeDatabase(), bus)

	go func() {
		time.Sleep(5 * time.Millisecond)
		site.Pages[1] = fakes.PageScript{URLs: []model.ProductURL{"https://example.com/a"}}
	}()

	input := withTimeouts(baseInput([]uint32{1}), time.Second)
	input.Policies = allPolicies(3)
	for k, p := range input.Policies {
		p.BaseDelayMs = 10
		p.MaxDelayMs = 50
		input.Policies[k] = p
	}

	outcome := actor.RunBatch(context.Background(), make(chan struct{}), input)
	assert.NotEqual(t, model.StageResultFatalError, outcome.Result.Kind)
}

func TestRunBatchPartialSuccessRetriesOnlyFailedItems(t *testing.T) {
	site := fakes.NewFakeSite()
	url := model.ProductURL("https://example.com/a")
	site.Pages[1] = fakes.PageScript{
		URLs:   []model.ProductURL{url},
		Detail: map[model.ProductURL]model.ProductRecord{url: {URL: url, Name: "Widget", CertificationID: "CERT-1"}},
	}
	site.Pages[2] = fakes.PageScript{FetchErr: &collaborator.HTTPStatusError{StatusCode: 500}}
	bus := events.NewBus(64, 0)
	db := fakes.NewFakeDatabase()
	actor := newTestBatchActor(site, db, bus)

	input := withTimeouts(baseInput([]uint32{1, 2}), time.Second)
	input.Policies = allPolicies(2)

	outcome := actor.RunBatch(context.Background(), make(chan struct{}), input)

	// page 2 keeps failing list_collection after exhausting its retries,
	// but page 1's URL must still survive into detail_collection and all
	// the way to database_save rather than being dropped with it.
	require.Equal(t, model.StageResultSuccess, outcome.Result.Kind)
	assert.Equal(t, model.StageDatabaseSave, outcome.Result.Stage)
	assert.Equal(t, 1, outcome.ItemsSaved)
	assert.Equal(t, 1, db.Count())
}

func TestRunBatchFatalErrorShortCircuits(t *testing.T) {
	db := fakes.NewFakeDatabase()
	db.ForceErr["CERT-1"] = assert.AnError
	site := fakes.NewFakeSite()
	url := model.ProductURL("https://example.com/a")
	site.Pages[1] = fakes.PageScript{
		URLs:   []model.ProductURL{url},
		Detail: map[model.ProductURL]model.ProductRecord{url: {URL: url, Name: "Widget", CertificationID: "CERT-1"}},
	}
	bus := events.NewBus(64, 0)
	actor := newTestBatchActor(site, db, bus)

	input := withTimeouts(baseInput([]uint32{1}), time.Second)
	input.AbortOnDatabaseError = true

	outcome := actor.RunBatch(context.Background(), make(chan struct{}), input)

	require.Equal(t, model.StageResultFatalError, outcome.Result.Kind)
	assert.Equal(t, model.StageDatabaseSave, outcome.Result.Stage)
	assert.Equal(t, model.ErrorDatabase, outcome.Result.Error.Kind)
}

func TestAdjustBatchSizeShrinksOnHighErrorRate(t *testing.T) {
	input := baseInput([]uint32{1, 2, 3, 4})
	input.AutoAdjustThreshold = 0.2
	input.AdjustMultiplier = 2
	input.MinBatchSize = 1
	input.MaxBatchSize = 10

	size, reason := adjustBatchSize(input, 4, 3)
	assert.Equal(t, 2, size)
	assert.Equal(t, "error_rate_high", reason)
}

func TestAdjustBatchSizeStaysWithinBoundsWhenErrorRateLow(t *testing.T) {
	input := baseInput([]uint32{1, 2, 3, 4})
	input.AutoAdjustThreshold = 0.5

	size, reason := adjustBatchSize(input, 4, 1)
	assert.Equal(t, input.CurrentBatchSize, size)
	assert.Empty(t, reason)
}

func TestAdjustBatchSizeClampedToMin(t *testing.T) {
	input := baseInput([]uint32{1, 2})
	input.CurrentBatchSize = 2
	input.MinBatchSize = 2
	input.AutoAdjustThreshold = 0.1
	input.AdjustMultiplier = 10

	size, _ := adjustBatchSize(input, 2, 2)
	assert.Equal(t, 2, size)
}
