// Package app initializes and holds the long-lived services of the
// extraction pipeline, acting as a dependency injection container. It
// is built once at startup from the loaded configuration and handed to
// the HTTP server and the CLI commands.
package app

import (
	"context"
	"fmt"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/leadfinch/contact-crawler/internal/clock/system"
	"github.com/leadfinch/contact-crawler/internal/config"
	"github.com/leadfinch/contact-crawler/internal/contact"
	"github.com/leadfinch/contact-crawler/internal/fetcher"
	collyfetcher "github.com/leadfinch/contact-crawler/internal/fetcher/colly"
	"github.com/leadfinch/contact-crawler/internal/fetcher/detector"
	"github.com/leadfinch/contact-crawler/internal/fetcher/headless"
	uuidgen "github.com/leadfinch/contact-crawler/internal/id/uuid"
	"github.com/leadfinch/contact-crawler/internal/jobs"
	jobsMemory "github.com/leadfinch/contact-crawler/internal/jobs/memory"
	jobsPostgres "github.com/leadfinch/contact-crawler/internal/jobs/postgres"
	"github.com/leadfinch/contact-crawler/internal/orchestrator"
	"github.com/leadfinch/contact-crawler/internal/publisher"
	publisherMemory "github.com/leadfinch/contact-crawler/internal/publisher/memory"
	publisherPubsub "github.com/leadfinch/contact-crawler/internal/publisher/pubsub"
	"github.com/leadfinch/contact-crawler/internal/storage"
	storageGCS "github.com/leadfinch/contact-crawler/internal/storage/gcs"
	storageLocal "github.com/leadfinch/contact-crawler/internal/storage/local"
	storageMemory "github.com/leadfinch/contact-crawler/internal/storage/memory"
)

// renderedFetcher is a page renderer the app can shut down.
type renderedFetcher interface {
	contact.Fetcher
	Close()
}

// App holds the shared, long-lived services of the application. The
// exported fields are the surface the HTTP server and CLI wire against.
type App struct {
	Logger       *zap.Logger
	Storage      storage.Provider
	Jobs         jobs.Store
	Publisher    publisher.Publisher
	Fetcher      contact.Fetcher
	Scraper      *contact.SiteScraper
	Orchestrator *orchestrator.Orchestrator
	IDs          contact.IDGenerator
	Clock        contact.Clock

	headless   renderedFetcher
	gcsClient  *gstorage.Client
	jobsCloser interface{ Close() }
}

// New builds the service graph from configuration. It fails fast on an
// unknown provider name or an unreachable backend so a bad deploy dies
// at startup instead of at the first request.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Logger: logger}

	if err := a.buildStorage(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.buildJobs(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPublisher(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPipeline(cfg); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("jobs", cfg.Jobs.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
		zap.Bool("headless", cfg.Headless.Enabled))
	return a, nil
}

func (a *App) buildStorage(ctx context.Context, cfg config.Config) error {
	switch cfg.Storage.Provider {
	case "local":
		store, err := storageLocal.New(storageLocal.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
		a.Storage = store
	case "memory":
		a.Storage = storageMemory.NewBlobStore()
	case "gcs":
		if cfg.Storage.GCSBucket == "" {
			return fmt.Errorf("storage provider is gcs but storage.gcs_bucket is not set")
		}
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		if _, err := client.Bucket(cfg.Storage.GCSBucket).Attrs(ctx); err != nil {
			if closeErr := client.Close(); closeErr != nil {
				a.Logger.Warn("closing gcs client after bucket check failure", zap.Error(closeErr))
			}
			return fmt.Errorf("verify gcs bucket %q: %w", cfg.Storage.GCSBucket, err)
		}
		store, err := storageGCS.New(client, storageGCS.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			if closeErr := client.Close(); closeErr != nil {
				a.Logger.Warn("closing gcs client after init failure", zap.Error(closeErr))
			}
			return fmt.Errorf("init gcs storage: %w", err)
		}
		a.gcsClient = client
		a.Storage = store
	default:
		return fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
	return nil
}

func (a *App) buildJobs(ctx context.Context, cfg config.Config) error {
	switch cfg.Jobs.Provider {
	case "memory":
		a.Jobs = jobsMemory.NewStore()
	case "postgres":
		store, err := jobsPostgres.New(ctx, jobsPostgres.Config{
			DSN:   cfg.Jobs.DSN,
			Table: cfg.Jobs.Table,
		})
		if err != nil {
			return fmt.Errorf("init postgres jobs store: %w", err)
		}
		a.Jobs = store
		a.jobsCloser = store
	default:
		return fmt.Errorf("unknown jobs provider: %s", cfg.Jobs.Provider)
	}
	return nil
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) error {
	switch cfg.Publisher.Provider {
	case "noop", "":
		a.Publisher = publisher.NoOp{}
	case "memory":
		a.Publisher = publisherMemory.New()
	case "pubsub":
		pub, err := publisherPubsub.New(ctx, publisherPubsub.Config{
			ProjectID: cfg.Publisher.ProjectID,
			TopicID:   cfg.Publisher.Topic,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.Publisher = pub
	default:
		return fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}
	return nil
}

func (a *App) buildPipeline(cfg config.Config) error {
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		RespectRobots:  cfg.HTTP.RespectRobots,
		Timeout:        cfg.HTTP.Timeout(),
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		MaxRetries:     uint64(cfg.HTTP.MaxRetries),
		BackoffInitial: cfg.HTTP.BackoffInitial(),
		BackoffMax:     cfg.HTTP.BackoffMax(),
	})

	var rendered contact.Fetcher
	var det fetcher.Detector
	if cfg.Headless.Enabled {
		hf, err := headless.New(headless.Config{
			UserAgent:   cfg.HTTP.UserAgent,
			MaxParallel: cfg.Headless.MaxParallel,
			NavTimeout:  cfg.Headless.NavTimeout(),
			DomainQPS:   cfg.Headless.DomainQPS,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("init headless browser: %w", err)
		}
		a.headless = hf
		rendered = hf
		det = detector.New(cfg.Detector.MinHTMLBytes, cfg.Detector.SelectorMust, cfg.Detector.Keywords)
	} else {
		a.headless = headless.NewDisabled()
	}
	a.Fetcher = fetcher.NewChain(plain, rendered, det, a.Logger)

	extractor, err := contact.NewExtractor(contact.ExtractorConfig{
		JunkEmailDomains: cfg.Extractor.JunkEmailDomains,
		PhoneRegion:      cfg.Extractor.PhoneRegion,
		PhoneMinDigits:   cfg.Extractor.PhoneMinDigits,
		PhonePattern:     cfg.Extractor.PhonePattern,
	})
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}

	a.IDs = uuidgen.New()
	a.Clock = system.New()
	a.Scraper = contact.NewSiteScraper(
		a.Fetcher,
		contact.NewLocator(cfg.Scraper.ContactKeywords),
		extractor,
		a.Clock,
		a.Logger,
	)
	a.Orchestrator = orchestrator.New(
		a.Scraper,
		a.Storage,
		a.Publisher,
		a.IDs,
		a.Clock,
		orchestrator.Config{
			Concurrency: cfg.Scraper.Concurrency,
			RetryFailed: cfg.Scraper.RetryFailed,
			Backend:     cfg.Storage.Provider,
			Prefix:      cfg.Storage.Prefix,
		},
		a.Logger,
	)
	return nil
}

// Close shuts down every service the App owns. It is safe to call on a
// partially built App.
func (a *App) Close() {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("closing publisher", zap.Error(err))
		}
	}
	if a.jobsCloser != nil {
		a.jobsCloser.Close()
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("closing gcs client", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
