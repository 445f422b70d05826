// Package pipeline runs the catalog stages in order: listing, dedupe, enrichment,
// brochure downloads, sanitizing, locator attachment, publish, notify and load.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/program-catalog/internal/assets"
	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/metrics"
	"github.com/JakeFAU/program-catalog/internal/scraper"
)

// ErrPublishFailed wraps a failed catalog write.
var ErrPublishFailed = errors.New("catalog publish failed")

// Config controls a pipeline run.
type Config struct {
	ListingURLs []string
	// Concurrency caps in-flight enrichment and download tasks; 0 means one task per program.
	Concurrency int
	// NotifyTopic enables the completion notification when non-empty.
	NotifyTopic string
}

// Deps holds the stage components.
type Deps struct {
	Listing   *scraper.ListingScraper
	Enricher  *scraper.DetailEnricher
	PDFs      *assets.Downloader
	Locators  *assets.LocatorAttacher
	Publisher *Publisher
	Loader    *Loader
	Notifier  catalog.Notifier
	IDs       catalog.IDGenerator
	Clock     catalog.Clock
}

// Report summarizes a pipeline run.
type Report struct {
	RunID          string                  `json:"run_id"`
	ListingErrors  int                     `json:"listing_errors"`
	Programs       int                     `json:"programs"`
	TabModes       map[catalog.TabMode]int `json:"tab_modes"`
	PDFOutcomes    map[assets.Outcome]int  `json:"pdf_outcomes"`
	Locators       int                     `json:"locators"`
	Publish        PublishResult           `json:"publish"`
	NotificationID string                  `json:"notification_id,omitempty"`
	Load           catalog.LoadResult      `json:"load"`
}

// Pipeline orchestrates one catalog run.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New validates deps and returns a Pipeline.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	switch {
	case deps.Listing == nil:
		return nil, fmt.Errorf("listing scraper is required")
	case deps.Enricher == nil:
		return nil, fmt.Errorf("detail enricher is required")
	case deps.PDFs == nil:
		return nil, fmt.Errorf("pdf downloader is required")
	case deps.Locators == nil:
		return nil, fmt.Errorf("locator attacher is required")
	case deps.Publisher == nil:
		return nil, fmt.Errorf("publisher is required")
	case deps.Loader == nil:
		return nil, fmt.Errorf("loader is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps, logger: logger.Named("pipeline")}, nil
}

// Run executes every stage. Only a failed publish or an unreadable published
// catalog (ErrCatalogUnavailable) stop the run with an error.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	runID, err := p.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("new run id: %w", err)
	}
	report := Report{
		RunID:       runID,
		TabModes:    map[catalog.TabMode]int{},
		PDFOutcomes: map[assets.Outcome]int{},
	}
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("pipeline started", zap.Int("listing_sources", len(p.cfg.ListingURLs)))

	programs := p.scrapeListings(ctx, logger, &report)
	report.Programs = len(programs)

	p.stage("enrich", func() {
		for _, result := range p.enrichAll(ctx, programs) {
			report.TabModes[result.Mode]++
		}
	})
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("pipeline canceled: %w", err)
	}

	p.stage("download", func() {
		for _, outcome := range p.downloadAll(ctx, programs) {
			report.PDFOutcomes[outcome]++
		}
	})
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("pipeline canceled: %w", err)
	}

	catalog.Sanitize(programs)
	p.stage("locate", func() {
		report.Locators = p.deps.Locators.Attach(ctx, programs)
	})

	var publishErr error
	p.stage("publish", func() {
		report.Publish, publishErr = p.deps.Publisher.Publish(ctx, programs)
	})
	if publishErr != nil {
		logger.Error("catalog publish failed", zap.Error(publishErr))
		return report, fmt.Errorf("%w: %w", ErrPublishFailed, publishErr)
	}

	report.NotificationID = p.notify(ctx, logger, runID, report.Publish, len(programs))

	var loadErr error
	p.stage("load", func() {
		report.Load, loadErr = p.deps.Loader.Load(ctx)
	})
	if loadErr != nil {
		logger.Error("catalog load failed", zap.Error(loadErr))
		return report, loadErr
	}

	logger.Info("pipeline finished",
		zap.Int("programs", report.Programs),
		zap.Int("locators", report.Locators),
		zap.Int("loaded", report.Load.Succeeded),
		zap.Int("load_failed", report.Load.Failed),
	)
	return report, nil
}

// Load runs only the store loader against the published catalog.
func (p *Pipeline) Load(ctx context.Context) (catalog.LoadResult, error) {
	var (
		result catalog.LoadResult
		err    error
	)
	p.stage("load", func() {
		result, err = p.deps.Loader.Load(ctx)
	})
	return result, err
}

// scrapeListings fetches sources in order and dedupes them. A failed source is skipped.
func (p *Pipeline) scrapeListings(ctx context.Context, logger *zap.Logger, report *Report) []*catalog.ProgramRecord {
	var sources [][]*catalog.ProgramRecord
	p.stage("listing", func() {
		for _, listingURL := range p.cfg.ListingURLs {
			programs, err := p.deps.Listing.Scrape(ctx, listingURL)
			if err != nil {
				report.ListingErrors++
				logger.Warn("listing source failed", zap.String("listing_url", listingURL), zap.Error(err))
				continue
			}
			sources = append(sources, programs)
		}
	})
	return catalog.Dedupe(sources...)
}

func (p *Pipeline) enrichAll(ctx context.Context, programs []*catalog.ProgramRecord) []scraper.Enrichment {
	results := make([]scraper.Enrichment, len(programs))
	g := p.group()
	for i, rec := range programs {
		g.Go(func() error {
			results[i] = p.deps.Enricher.Enrich(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) downloadAll(ctx context.Context, programs []*catalog.ProgramRecord) []assets.Outcome {
	outcomes := make([]assets.Outcome, len(programs))
	g := p.group()
	for i, rec := range programs {
		g.Go(func() error {
			outcomes[i] = p.deps.PDFs.Download(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// group returns a fan-out group; tasks report through their result slots, never through errors.
func (p *Pipeline) group() *errgroup.Group {
	g := &errgroup.Group{}
	if p.cfg.Concurrency > 0 {
		g.SetLimit(p.cfg.Concurrency)
	}
	return g
}

func (p *Pipeline) notify(ctx context.Context, logger *zap.Logger, runID string, published PublishResult, count int) string {
	if p.cfg.NotifyTopic == "" || p.deps.Notifier == nil {
		return ""
	}
	event := catalog.CatalogPublished{
		RunID:        runID,
		Locator:      published.Locator,
		ProgramCount: count,
		SHA256:       published.SHA256,
		PublishedAt:  p.deps.Clock.Now(),
	}
	id, err := p.deps.Notifier.Publish(ctx, p.cfg.NotifyTopic, event)
	if err != nil {
		logger.Warn("publish notification failed", zap.String("topic", p.cfg.NotifyTopic), zap.Error(err))
		return ""
	}
	logger.Info("publish notification sent", zap.String("topic", p.cfg.NotifyTopic), zap.String("message_id", id))
	return id
}

func (p *Pipeline) stage(name string, fn func()) {
	start := time.Now()
	fn()
	metrics.ObserveStage(name, time.Since(start))
}
