package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certdirectory/crawlcore/pkg/config"
	"github.com/certdirectory/crawlcore/pkg/model"
)

func plannerConfig() config.PlannerConfig {
	return config.PlannerConfig{ProductsPerPage: 12, PageRangeLimit: 4, DurationSafetyFactor: 1.5}
}

func TestPlanColdStartBatchCount(t *testing.T) {
	p := New(plannerConfig())
	site := model.SiteAnalysis{TotalPages: 4, ProductsOnLastPage: 5, AvgResponseTime: 100 * time.Millisecond}
	db := model.DbAnalysis{}

	plan := p.Plan(site, db, config.BatchSizeConfig{InitialSize: 2, MinSize: 1, MaxSize: 10}, 2)

	require.Len(t, plan.Batches, 2)
	assert.Equal(t, []uint32{4, 3}, plan.Batches[0].Pages)
	assert.Equal(t, []uint32{2, 1}, plan.Batches[1].Pages)
}

func TestPlanIncrementalResumeStartsAfterPersistedPages(t *testing.T) {
	cfg := config.PlannerConfig{ProductsPerPage: 12, PageRangeLimit: 10, DurationSafetyFactor: 1}
	p := New(cfg)
	site := model.SiteAnalysis{TotalPages: 100, ProductsOnLastPage: 4, AvgResponseTime: 50 * time.Millisecond}
	db := model.DbAnalysis{PersistedItemCount: 24}

	plan := p.Plan(site, db, config.BatchSizeConfig{InitialSize: 10, MinSize: 1, MaxSize: 20}, 4)

	require.Len(t, plan.Batches, 1)
	assert.Equal(t, uint32(98), plan.Batches[0].Pages[0])
	assert.Equal(t, uint32(89), plan.Batches[0].Pages[len(plan.Batches[0].Pages)-1])
	assert.Len(t, plan.Batches[0].Pages, 10)
}

func TestPlanNoWorkToDoWhenFullyCovered(t *testing.T) {
	p := New(plannerConfig())
	site := model.SiteAnalysis{TotalPages: 4, ProductsOnLastPage: 12}
	db := model.DbAnalysis{PersistedItemCount: 48}

	plan := p.Plan(site, db, config.BatchSizeConfig{InitialSize: 2}, 2)

	assert.Empty(t, plan.Batches)
}

func TestPlanTreatsZeroProductsOnLastPageAsFull(t *testing.T) {
	p := New(plannerConfig())
	total := p.TotalProducts(model.SiteAnalysis{TotalPages: 3, ProductsOnLastPage: 0})
	assert.Equal(t, 36, total)
}

func TestPlanEstimatedDurationAppliesSafetyFactor(t *testing.T) {
	p := New(config.PlannerConfig{ProductsPerPage: 12, PageRangeLimit: 4, DurationSafetyFactor: 2})
	site := model.SiteAnalysis{TotalPages: 4, ProductsOnLastPage: 5, AvgResponseTime: 100 * time.Millisecond}
	plan := p.Plan(site, model.DbAnalysis{}, config.BatchSizeConfig{InitialSize: 4}, 2)

	expected := 100 * time.Millisecond * 4 / 2 * 2
	assert.Equal(t, expected, plan.EstimatedDuration)
}

func TestPlanMergesMissingPageRanges(t *testing.T) {
	p := New(plannerConfig())
	site := model.SiteAnalysis{TotalPages: 4, ProductsOnLastPage: 5}
	db := model.DbAnalysis{PersistedItemCount: 48, MissingPageRanges: []model.PageRange{{From: 1, To: 1}}}

	plan := p.Plan(site, db, config.BatchSizeConfig{InitialSize: 4}, 2)

	require.Len(t, plan.Batches, 1)
	assert.Contains(t, plan.Batches[0].Pages, uint32(1))
}
