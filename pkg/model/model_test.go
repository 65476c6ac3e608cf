package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/certdirectory/crawlcore/pkg/ids"
)

func TestStageErrorIsFatal(t *testing.T) {
	cancelled := NewStageError(ErrorCancelled, "context done")
	assert.True(t, cancelled.IsFatal(false, false))
	assert.True(t, cancelled.IsFatal(true, true))

	dbErr := NewStageError(ErrorDatabase, "connection refused")
	assert.False(t, dbErr.IsFatal(false, false))
	assert.True(t, dbErr.IsFatal(true, false))

	validationErr := NewStageError(ErrorValidation, "missing field")
	assert.False(t, validationErr.IsFatal(false, false))
	assert.True(t, validationErr.IsFatal(false, true))

	netErr := NewStageError(ErrorNetworkTimeout, "dial timeout")
	assert.False(t, netErr.IsFatal(true, true))
}

func TestErrorKindClassification(t *testing.T) {
	assert.False(t, ErrorCancelled.BaseRecoverable())
	assert.True(t, ErrorDatabase.BaseRecoverable())
	assert.True(t, ErrorDatabase.ConfigGated())
	assert.True(t, ErrorValidation.ConfigGated())
	assert.False(t, ErrorNetworkTimeout.ConfigGated())
}

func TestStageResultMetrics(t *testing.T) {
	success := NewSuccessResult(ids.NewStageID(), StageListCollection, StageSuccessResult{
		ListCollection: &ListCollectionResult{
			CollectedURLs: []ProductURL{"https://example.com/a"},
			Metrics:       StageMetrics{Successful: 1, Failed: 0},
		},
	})
	assert.Equal(t, StageMetrics{Successful: 1, Failed: 0}, success.Metrics())

	partial := NewPartialSuccessResult(ids.NewStageID(), StageDetailCollection,
		[]StageItem{URLItem("https://example.com/a")},
		[]FailedItem{{Item: URLItem("https://example.com/b"), Err: NewStageError(ErrorServerError, "500")}},
	)
	assert.Equal(t, StageMetrics{Successful: 1, Failed: 1}, partial.Metrics())
}

func TestProductRecordMissingRequiredFields(t *testing.T) {
	r := ProductRecord{URL: "https://example.com/a"}
	assert.ElementsMatch(t, []string{"Name", "CertificationID"}, r.MissingRequiredFields())

	complete := ProductRecord{URL: "https://example.com/a", Name: "Widget", CertificationID: "CERT-1"}
	assert.Empty(t, complete.MissingRequiredFields())
}

func TestStageNameIsValid(t *testing.T) {
	assert.True(t, StageDatabaseSave.IsValid())
	assert.False(t, StageName("unknown_stage").IsValid())
}
