// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/program-catalog/internal/assets"
	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/clock/system"
	"github.com/JakeFAU/program-catalog/internal/config"
	collyfetcher "github.com/JakeFAU/program-catalog/internal/fetcher/colly"
	"github.com/JakeFAU/program-catalog/internal/fetcher/headless"
	"github.com/JakeFAU/program-catalog/internal/hash/sha256"
	"github.com/JakeFAU/program-catalog/internal/id/uuid"
	"github.com/JakeFAU/program-catalog/internal/invoke"
	"github.com/JakeFAU/program-catalog/internal/logging"
	memorynotify "github.com/JakeFAU/program-catalog/internal/notify/memory"
	pubsubnotify "github.com/JakeFAU/program-catalog/internal/notify/pubsub"
	"github.com/JakeFAU/program-catalog/internal/pipeline"
	"github.com/JakeFAU/program-catalog/internal/policy/ratelimit"
	"github.com/JakeFAU/program-catalog/internal/scraper"
	"github.com/JakeFAU/program-catalog/internal/storage/dynamo"
	"github.com/JakeFAU/program-catalog/internal/storage/gcs"
	"github.com/JakeFAU/program-catalog/internal/storage/local"
	"github.com/JakeFAU/program-catalog/internal/storage/memory"
	"github.com/JakeFAU/program-catalog/internal/storage/postgres"
	"github.com/JakeFAU/program-catalog/internal/storage/s3"
)

// App holds the shared, long-lived services for the application.
// It is initialized once at startup and passed to the command that needs it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	blobs    catalog.BlobStore
	items    catalog.ItemStore
	notifier catalog.Notifier
	pipeline *pipeline.Pipeline
	handler  *invoke.Handler
	closers  []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// GetConfig returns the configuration the App was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetBlobStore exposes the configured blob store.
func (a *App) GetBlobStore() catalog.BlobStore {
	return a.blobs
}

// GetItemStore exposes the configured item store.
func (a *App) GetItemStore() catalog.ItemStore {
	return a.items
}

// GetNotifier returns the completion notifier, or nil when notifications are disabled.
func (a *App) GetNotifier() catalog.Notifier {
	return a.notifier
}

// GetPipeline returns the wired pipeline.
func (a *App) GetPipeline() *pipeline.Pipeline {
	return a.pipeline
}

// GetHandler returns the invocation handler shared by the CLI and the HTTP server.
func (a *App) GetHandler() *invoke.Handler {
	return a.handler
}

// New builds every service named by cfg. A nil logger builds one from cfg.Logging.
// It fails fast; anything opened before the failure is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		l, err := logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		logger = l
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("items", cfg.Items.Provider),
		zap.String("notify", cfg.Notify.Provider),
		zap.String("listing_mode", cfg.Fetch.ListingMode),
	)
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var err error
	if a.blobs, err = a.newBlobStore(ctx); err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}
	if a.items, err = a.newItemStore(ctx); err != nil {
		return fmt.Errorf("init item store: %w", err)
	}
	if a.notifier, err = a.newNotifier(ctx); err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	if a.pipeline, err = a.newPipeline(); err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	if a.handler, err = invoke.NewHandler(a.pipeline, a.logger); err != nil {
		return fmt.Errorf("init handler: %w", err)
	}
	return nil
}

func (a *App) newBlobStore(ctx context.Context) (catalog.BlobStore, error) {
	sc := a.cfg.Storage
	switch sc.Provider {
	case config.ProviderMemory:
		a.logger.Info("using in-memory blob store; artifacts are discarded on exit")
		return memory.NewBlobStore(), nil
	case config.ProviderLocal:
		a.logger.Info("using local blob store", zap.String("base_dir", sc.Local.BaseDir))
		return local.New(local.Config{BaseDir: sc.Local.BaseDir})
	case config.ProviderGCS:
		a.logger.Info("using GCS blob store", zap.String("bucket", sc.GCS.Bucket))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose("gcs client", client.Close)
		return gcs.New(client, gcs.Config{Bucket: sc.GCS.Bucket})
	case config.ProviderS3:
		a.logger.Info("using S3 blob store", zap.String("bucket", sc.S3.Bucket))
		return s3.NewFromConfig(ctx, s3.Config{
			Bucket:       sc.S3.Bucket,
			Region:       sc.S3.Region,
			Endpoint:     sc.S3.Endpoint,
			UsePathStyle: sc.S3.UsePathStyle,
			AccessKeyID:  sc.S3.AccessKeyID,
			SecretKey:    sc.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider %q", sc.Provider)
	}
}

func (a *App) newItemStore(ctx context.Context) (catalog.ItemStore, error) {
	ic := a.cfg.Items
	switch ic.Provider {
	case config.ProviderMemory:
		a.logger.Info("using in-memory item store")
		return memory.NewProgramStore(), nil
	case config.ProviderPostgres:
		a.logger.Info("connecting to PostgreSQL item store", zap.String("table", ic.DB.Table))
		store, err := postgres.NewProgramStore(ctx, postgres.ProgramStoreConfig{
			DSN:      ic.DB.DSN,
			Table:    ic.DB.Table,
			MaxConns: ic.DB.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		a.onClose("postgres pool", func() error {
			store.Close()
			return nil
		})
		if ic.DB.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil
	case config.ProviderDynamoDB:
		a.logger.Info("using DynamoDB item store", zap.String("table", ic.DynamoDB.Table))
		return dynamo.NewFromConfig(ctx, dynamo.Config{
			Table:    ic.DynamoDB.Table,
			Region:   ic.DynamoDB.Region,
			Endpoint: ic.DynamoDB.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown items provider %q", ic.Provider)
	}
}

func (a *App) newNotifier(ctx context.Context) (catalog.Notifier, error) {
	nc := a.cfg.Notify
	switch nc.Provider {
	case config.ProviderNone, "":
		a.logger.Info("completion notifications disabled")
		return nil, nil
	case config.ProviderMemory:
		return memorynotify.New(), nil
	case config.ProviderPubSub:
		a.logger.Info("connecting to Pub/Sub", zap.String("project", nc.ProjectID), zap.String("topic", nc.Topic))
		var opts []option.ClientOption
		if nc.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(nc.Endpoint), option.WithoutAuthentication())
		}
		notifier, err := pubsubnotify.Dial(ctx, nc.ProjectID, opts...)
		if err != nil {
			return nil, err
		}
		a.onClose("pubsub client", notifier.Close)
		return notifier, nil
	default:
		return nil, fmt.Errorf("unknown notify provider %q", nc.Provider)
	}
}

func (a *App) newPipeline() (*pipeline.Pipeline, error) {
	cfg := a.cfg
	layout := cfg.Layout()

	httpFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		RespectRobots: cfg.Fetch.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
		MaxBodySize:   cfg.Fetch.MaxBodyBytes,
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			Burst:             cfg.Fetch.Burst,
		}),
	})

	var listingFetcher catalog.Fetcher = httpFetcher
	if cfg.Fetch.ListingMode == config.ListingModeHeadless {
		renderer, err := headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			WaitSelector:      cfg.Headless.WaitSelector,
			Settle:            time.Duration(cfg.Headless.SettleMillis) * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless renderer: %w", err)
		}
		a.onClose("headless renderer", func() error {
			renderer.Close()
			return nil
		})
		listingFetcher = renderer
	}

	listing, err := scraper.NewListingScraper(listingFetcher, scraper.ListingConfig{
		Origin:        cfg.Listing.Origin,
		DefaultFilter: cfg.Listing.DefaultFilter,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	enricher, err := scraper.NewDetailEnricher(httpFetcher, a.blobs, layout, a.logger)
	if err != nil {
		return nil, err
	}
	pdfs, err := assets.NewDownloader(httpFetcher, a.blobs, layout, a.logger)
	if err != nil {
		return nil, err
	}
	locators, err := assets.NewLocatorAttacher(a.blobs, layout, a.logger)
	if err != nil {
		return nil, err
	}
	publisher, err := pipeline.NewPublisher(a.blobs, layout, sha256.New(), a.logger)
	if err != nil {
		return nil, err
	}
	loader, err := pipeline.NewLoader(a.blobs, a.items, layout, a.logger)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Config{
		ListingURLs: cfg.Listing.URLs,
		Concurrency: cfg.Pipeline.Concurrency,
		NotifyTopic: cfg.NotifyTopic(),
	}, pipeline.Deps{
		Listing:   listing,
		Enricher:  enricher,
		PDFs:      pdfs,
		Locators:  locators,
		Publisher: publisher,
		Loader:    loader,
		Notifier:  a.notifier,
		IDs:       uuid.New(),
		Clock:     system.New(),
	}, a.logger)
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

// Close releases every client in reverse order of creation and flushes the logger.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	a.closeAll()
	// Sync fails on stderr/stdout for some platforms; nothing useful can be done about it.
	_ = a.logger.Sync()
}
