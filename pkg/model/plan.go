package model

import (
	"time"

	"github.com/certdirectory/crawlcore/pkg/ids"
)

// SiteAnalysis is what a SiteAnalyzer collaborator reports about the
// target's current shape, used to plan a reverse (newest-first) crawl.
type SiteAnalysis struct {
	TotalPages        uint32
	ProductsOnLastPage uint32
	AvgResponseTime   time.Duration
}

// PageRange is an inclusive range of missing page numbers the planner
// should re-crawl to fill a gap left by a previous incomplete run.
type PageRange struct {
	From uint32
	To   uint32
}

// DbAnalysis is what a DbAnalyzer collaborator reports about previously
// persisted records, used to decide incremental-resume boundaries.
type DbAnalysis struct {
	PersistedItemCount int
	LastCrawledPage    uint32 // 0 if this is a first crawl
	MissingPageRanges  []PageRange
}

// BatchPlan is one contiguous page range the CrawlingPlanner assigns to a
// BatchActor.
type BatchPlan struct {
	BatchID            ids.BatchID
	Pages              []uint32 // newest-first order
	InitialBatchSize   int
	InitialConcurrency int
}

// ExecutionPlan is the CrawlingPlanner's full output for a session: an
// ordered list of batches plus a rough duration estimate surfaced in the
// PlanCreated event.
type ExecutionPlan struct {
	Batches           []BatchPlan
	EstimatedDuration time.Duration
}
