// crawlcore-demo wires the crawling execution core end to end against an
// in-memory fake site and database, so the actor tree can be exercised
// without the excluded TOML loader, SQLite store, or HTML selector
// collaborators. Mirrors cmd/tarsy/main.go's flag/env/bootstrap shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/certdirectory/crawlcore/pkg/collaborator"
	"github.com/certdirectory/crawlcore/pkg/collaborator/fakes"
	"github.com/certdirectory/crawlcore/pkg/config"
	"github.com/certdirectory/crawlcore/pkg/events"
	"github.com/certdirectory/crawlcore/pkg/facade"
	"github.com/certdirectory/crawlcore/pkg/metrics"
	"github.com/certdirectory/crawlcore/pkg/model"
	"github.com/certdirectory/crawlcore/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("CRAWLCORE_CONFIG", ""),
		"Path to a YAML config snapshot (defaults to the built-in snapshot)")
	pages := flag.Int("pages", 4, "Number of pages the fake site reports")
	productsPerPage := flag.Int("products-per-page", 12, "Products per page the fake site reports")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	logLevel := slog.LevelInfo
	if getEnv("LOG_LEVEL", "") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info(version.Banner())

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	site, db := buildFakeWorld(*pages, *productsPerPage)
	collaborators := collaborator.Set{
		Pages:     site,
		Lists:     site,
		Details:   site,
		Upserter:  db,
		Sites:     site,
		Databases: db,
		Clock:     collaborator.SystemClock{},
	}

	bus := events.NewBus(cfg.Channels.EventBufferSize, cfg.Monitoring.EventRetention())
	sweeper := events.NewRetentionSweeper(bus, time.Hour, cfg.Monitoring.EventRetention(), logger)
	sweeper.Start()
	defer sweeper.Stop()

	f := facade.New(cfg, collaborators, bus)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.System.SessionTimeout()+10*time.Second)
	defer cancel()

	siteAnalysis, err := site.AnalyzeSite(ctx)
	if err != nil {
		log.Fatalf("failed to analyze site: %v", err)
	}
	dbAnalysis, err := db.AnalyzeDb(ctx)
	if err != nil {
		log.Fatalf("failed to analyze database: %v", err)
	}

	sessionID, err := f.StartSession(ctx, siteAnalysis, dbAnalysis)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	logger.Info("session started", "session_id", sessionID)

	sub := f.SubscribeEvents(events.Filter{SessionID: sessionID})
	defer sub.Close()

	aggregator := metrics.New(bus, events.NewPublisher(bus, sessionID, nil), cfg.Monitoring.MetricsInterval(), 100, cfg.Performance.BatchSizes.AutoAdjustThreshold)
	aggregator.SetTarget(int(siteAnalysis.TotalPages) * *productsPerPage)
	aggCtx, aggCancel := context.WithCancel(ctx)
	defer aggCancel()
	go aggregator.Run(aggCtx, sessionID)

	for {
		ev, ok := sub.Recv(ctx)
		if !ok {
			break
		}
		logger.Debug("event", "kind", ev.Payload.Kind(), "batch_id", ev.BatchID, "stage_id", ev.StageID)

		switch payload := ev.Payload.(type) {
		case events.SessionCompletedPayload:
			fmt.Printf("session %s completed: saved=%d failed=%d batches_ok=%d batches_failed=%d duration=%dms\n",
				sessionID, payload.Summary.ItemsSaved, payload.Summary.ItemsFailed,
				payload.Summary.BatchesSucceeded, payload.Summary.BatchesFailed, payload.Summary.DurationMs)
			return
		case events.SessionCancelledPayload:
			fmt.Printf("session %s cancelled: %s\n", sessionID, payload.Reason)
			return
		case events.SessionTimeoutPayload:
			fmt.Printf("session %s timed out\n", sessionID)
			return
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return config.FromYAML(data)
}

// buildFakeWorld scripts a FakeSite/FakeDatabase pair large enough to run
// a full crawl end to end: every page but the last is full, the last page
// carries a remainder, and every product parses and upserts cleanly.
func buildFakeWorld(pageCount, productsPerPage int) (*fakes.FakeSite, *fakes.FakeDatabase) {
	site := fakes.NewFakeSite()
	db := fakes.NewFakeDatabase()

	lastPageCount := productsPerPage / 2
	if lastPageCount == 0 {
		lastPageCount = productsPerPage
	}

	for page := 1; page <= pageCount; page++ {
		count := productsPerPage
		if page == pageCount {
			count = lastPageCount
		}

		var urls []model.ProductURL
		detail := make(map[model.ProductURL]model.ProductRecord, count)
		for i := 0; i < count; i++ {
			url := model.ProductURL(fmt.Sprintf("https://directory.example/product/p%d-%d", page, i))
			urls = append(urls, url)
			detail[url] = model.ProductRecord{
				URL:             url,
				Name:            fmt.Sprintf("Certification %d-%d", page, i),
				CertificationID: fmt.Sprintf("CERT-%d-%d", page, i),
				Vendor:          "Example Vendor",
				Category:        "Cloud",
			}
		}
		site.Pages[uint32(page)] = fakes.PageScript{URLs: urls, Detail: detail}
	}

	site.Analysis = model.SiteAnalysis{
		TotalPages:         uint32(pageCount),
		ProductsOnLastPage: uint32(lastPageCount),
		AvgResponseTime:    50 * time.Millisecond,
	}
	db.Analysis = model.DbAnalysis{}

	return site, db
}
