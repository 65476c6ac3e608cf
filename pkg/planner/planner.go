// Package planner implements CrawlingPlanner: given a remote site analysis
// and a local database analysis, it produces an ExecutionPlan following a
// newest-first reverse-crawl policy. It performs no I/O of its own; the
// analyses are handed to it already fetched by the collaborator layer.
package planner

import (
	"time"

	"github.com/certdirectory/crawlcore/pkg/config"
	"github.com/certdirectory/crawlcore/pkg/ids"
	"github.com/certdirectory/crawlcore/pkg/model"
)

// Planner turns a pair of analyses into an ExecutionPlan.
type Planner struct {
	cfg config.PlannerConfig
}

// New builds a Planner bound to the planner section of the config snapshot.
func New(cfg config.PlannerConfig) *Planner {
	return &Planner{cfg: cfg}
}

// Plan computes the ExecutionPlan for one session given the current site and
// database state, and the batch-size/concurrency settings that seed the
// first batch.
func (p *Planner) Plan(site model.SiteAnalysis, db model.DbAnalysis, batchSizes config.BatchSizeConfig, initialConcurrency int) model.ExecutionPlan {
	pages := p.pageSequence(site.TotalPages, db.PersistedItemCount)
	pages = mergeMissingRanges(pages, db.MissingPageRanges, site.TotalPages)

	if len(pages) == 0 {
		return model.ExecutionPlan{Batches: nil, EstimatedDuration: 0}
	}

	batchSize := batchSizes.InitialSize
	if batchSize <= 0 {
		batchSize = len(pages)
	}

	batches := partition(pages, batchSize, initialConcurrency)
	duration := p.estimateDuration(site.AvgResponseTime, len(pages), initialConcurrency)

	return model.ExecutionPlan{Batches: batches, EstimatedDuration: duration}
}

// pageSequence computes the descending page list to harvest: starting from
// the page immediately newer than what's already persisted, down to the
// page_range_limit boundary (or page 1, whichever is higher).
func (p *Planner) pageSequence(totalPages uint32, persistedItemCount int) []uint32 {
	if totalPages == 0 {
		return nil
	}

	productsPerPage := p.cfg.ProductsPerPage
	if productsPerPage <= 0 {
		productsPerPage = 1
	}

	alreadyCoveredPages := uint32(persistedItemCount / productsPerPage)
	if alreadyCoveredPages >= totalPages {
		// Remote total unchanged relative to what's stored: nothing new to
		// harvest.
		return nil
	}

	startPage := totalPages - alreadyCoveredPages

	limit := p.cfg.PageRangeLimit
	if limit <= 0 || uint32(limit) > startPage {
		limit = int(startPage)
	}

	pages := make([]uint32, 0, limit)
	for page := startPage; page > 0 && len(pages) < limit; page-- {
		pages = append(pages, page)
	}
	return pages
}

// mergeMissingRanges folds any previously-recorded gaps into the harvest
// list, newest first, without duplicating pages already scheduled.
func mergeMissingRanges(pages []uint32, missing []model.PageRange, totalPages uint32) []uint32 {
	if len(missing) == 0 {
		return pages
	}
	seen := make(map[uint32]bool, len(pages))
	for _, pg := range pages {
		seen[pg] = true
	}
	for _, r := range missing {
		from, to := r.From, r.To
		if from > to {
			from, to = to, from
		}
		if to > totalPages {
			to = totalPages
		}
		for page := to; page >= from && page > 0; page-- {
			if !seen[page] {
				pages = append(pages, page)
				seen[page] = true
			}
		}
	}
	return pages
}

// partition splits a descending page sequence into ordered BatchPlans of at
// most batchSize pages each.
func partition(pages []uint32, batchSize, concurrency int) []model.BatchPlan {
	if batchSize <= 0 {
		batchSize = len(pages)
	}
	var batches []model.BatchPlan
	for i := 0; i < len(pages); i += batchSize {
		end := i + batchSize
		if end > len(pages) {
			end = len(pages)
		}
		batches = append(batches, model.BatchPlan{
			BatchID:            ids.NewBatchID(),
			Pages:              append([]uint32(nil), pages[i:end]...),
			InitialBatchSize:   batchSize,
			InitialConcurrency: concurrency,
		})
	}
	return batches
}

// estimateDuration applies the policy-defined safety factor to the naive
// avg-response-time projection.
func (p *Planner) estimateDuration(avgResponseTime time.Duration, pageCount, concurrency int) time.Duration {
	if concurrency <= 0 {
		concurrency = 1
	}
	safety := p.cfg.DurationSafetyFactor
	if safety <= 0 {
		safety = 1
	}
	naive := avgResponseTime * time.Duration(pageCount) / time.Duration(concurrency)
	return time.Duration(float64(naive) * safety)
}

// TotalProducts computes the total_products figure from a site analysis,
// per the spec's total_pages/products_on_last_page formula.
func (p *Planner) TotalProducts(site model.SiteAnalysis) int {
	productsOnLastPage := int(site.ProductsOnLastPage)
	if productsOnLastPage == 0 {
		productsOnLastPage = p.cfg.ProductsPerPage
	}
	if site.TotalPages == 0 {
		return 0
	}
	return int(site.TotalPages-1)*p.cfg.ProductsPerPage + productsOnLastPage
}
