// Package fakes provides in-memory collaborator.Set implementations for
// tests: a scripted fake site (pages, parse failures, latency) and a
// scripted fake database (upsert outcomes, forced errors).
package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/certdirectory/crawlcore/pkg/model"
)

// PageScript describes one page's fetch/parse outcome for FakeSite.
type PageScript struct {
	URLs      []model.ProductURL          // list_collection result for this page
	FetchErr  error                       // returned instead of bytes when set
	ParseErr  error                       // returned instead of URLs when set
	Detail    map[model.ProductURL]model.ProductRecord
	DetailErr map[model.ProductURL]error
}

// FakeSite is a scripted PageFetcher + ListParser + DetailParser +
// SiteAnalyzer driven entirely by an in-memory script, used by actor-tree
// tests to exercise retry, cancellation, and error-classification paths
// without a network.
type FakeSite struct {
	mu       sync.Mutex
	Pages    map[uint32]PageScript
	Analysis model.SiteAnalysis
	Delay    time.Duration // artificial per-call latency, for timeout tests

	fetchCalls map[uint32]int
}

func NewFakeSite() *FakeSite {
	return &FakeSite{Pages: make(map[uint32]PageScript), fetchCalls: make(map[uint32]int)}
}

func (s *FakeSite) FetchCalls(page uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls[page]
}

func (s *FakeSite) FetchPage(ctx context.Context, page uint32) ([]byte, error) {
	s.mu.Lock()
	s.fetchCalls[page]++
	script, ok := s.Pages[page]
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("fake site: no script for page %d", page)
	}
	if script.FetchErr != nil {
		return nil, script.FetchErr
	}
	return []byte(fmt.Sprintf("page-%d", page)), nil
}

// encodePage is a marker the fake ListParser decodes back into the page
// number so ParseList can look up the matching script.
func encodePage(body []byte) uint32 {
	var page uint32
	fmt.Sscanf(string(body), "page-%d", &page)
	return page
}

func (s *FakeSite) ParseList(body []byte) ([]model.ProductURL, error) {
	page := encodePage(body)
	s.mu.Lock()
	script := s.Pages[page]
	s.mu.Unlock()
	if script.ParseErr != nil {
		return nil, script.ParseErr
	}
	return script.URLs, nil
}

func (s *FakeSite) ParseDetail(body []byte) (model.ProductRecord, error) {
	url := model.ProductURL(body)
	for _, script := range s.Pages {
		if err, ok := script.DetailErr[url]; ok && err != nil {
			return model.ProductRecord{}, err
		}
		if rec, ok := script.Detail[url]; ok {
			return rec, nil
		}
	}
	return model.ProductRecord{}, fmt.Errorf("fake site: no detail script for %s", url)
}

func (s *FakeSite) AnalyzeSite(ctx context.Context) (model.SiteAnalysis, error) {
	return s.Analysis, nil
}

// FetchDetailPage returns the URL itself as the page body, which
// ParseDetail decodes back into a record. DetailCollection tasks call
// this instead of FetchPage; it shares FetchPage's Delay but is a
// separate path.
func (s *FakeSite) FetchDetailPage(ctx context.Context, url model.ProductURL) ([]byte, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(url), nil
}

// FakeDatabase is a scripted ProductUpserter + DbAnalyzer.
type FakeDatabase struct {
	mu       sync.Mutex
	Records  map[string]model.ProductRecord // by CertificationID
	ForceErr map[string]error                // CertificationID -> forced error on next upsert

	Analysis model.DbAnalysis
}

func NewFakeDatabase() *FakeDatabase {
	return &FakeDatabase{Records: make(map[string]model.ProductRecord), ForceErr: make(map[string]error)}
}

func (d *FakeDatabase) UpsertProduct(ctx context.Context, record model.ProductRecord) (model.UpsertOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.ForceErr[record.CertificationID]; ok && err != nil {
		delete(d.ForceErr, record.CertificationID)
		return "", err
	}

	existing, existed := d.Records[record.CertificationID]
	d.Records[record.CertificationID] = record
	switch {
	case !existed:
		return model.UpsertNew, nil
	case existing == record:
		return model.UpsertUnchanged, nil
	default:
		return model.UpsertUpdated, nil
	}
}

func (d *FakeDatabase) AnalyzeDb(ctx context.Context) (model.DbAnalysis, error) {
	return d.Analysis, nil
}

func (d *FakeDatabase) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Records)
}

// FixedClock implements collaborator.Clock with a settable, advanceable
// time, for deterministic timeout and retry-delay tests.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(start time.Time) *FixedClock {
	return &FixedClock{now: start}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
