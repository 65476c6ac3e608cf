// Package collaborator defines the narrow boundary the crawl actor tree
// consumes: page fetching, parsing, persistence, and site/db analysis.
// Concrete implementations (HTTP client, HTML selector library, SQLite
// store) live outside this module; the actor tree depends only on these
// interfaces, the way ExecutionContext depends on LLMClient/ToolExecutor
// rather than concrete clients.
package collaborator

import (
	"context"
	"time"

	"github.com/certdirectory/crawlcore/pkg/model"
)

// PageFetcher retrieves the raw bytes of a listing page or a product
// detail page. Implementations must honor ctx cancellation and return
// promptly on cancel.
type PageFetcher interface {
	FetchPage(ctx context.Context, page uint32) ([]byte, error)
	FetchDetailPage(ctx context.Context, url model.ProductURL) ([]byte, error)
}

// ListParser extracts product detail URLs from a listing page's raw bytes.
type ListParser interface {
	ParseList(body []byte) ([]model.ProductURL, error)
}

// DetailParser extracts a single ProductRecord from a detail page's raw
// bytes.
type DetailParser interface {
	ParseDetail(body []byte) (model.ProductRecord, error)
}

// ProductUpserter persists one validated ProductRecord, idempotently.
type ProductUpserter interface {
	UpsertProduct(ctx context.Context, record model.ProductRecord) (model.UpsertOutcome, error)
}

// SiteAnalyzer reports the current shape of the remote target, used by the
// CrawlingPlanner to build an ExecutionPlan.
type SiteAnalyzer interface {
	AnalyzeSite(ctx context.Context) (model.SiteAnalysis, error)
}

// DbAnalyzer reports what has already been persisted, used by the
// CrawlingPlanner for incremental-resume decisions.
type DbAnalyzer interface {
	AnalyzeDb(ctx context.Context) (model.DbAnalysis, error)
}

// Clock abstracts wall-clock access so retry delays and timeouts are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// Set bundles every collaborator the core depends on. Facade and
// SessionActor construction take a Set rather than five separate
// constructor parameters.
type Set struct {
	Pages     PageFetcher
	Lists     ListParser
	Details   DetailParser
	Upserter  ProductUpserter
	Sites     SiteAnalyzer
	Databases DbAnalyzer
	Clock     Clock
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// HTTPStatusError lets a PageFetcher report a non-2xx response so
// TaskExecutor can classify it as a ServerError without the executor
// depending on net/http directly.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unexpected status code"
}

func (e *HTTPStatusError) Unwrap() error { return e.Err }

// RateLimitError lets a PageFetcher report a 429 with an optional
// Retry-After hint so TaskExecutor can classify it as RateLimit.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Err }
