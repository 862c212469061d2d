// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/boardindex"
	"github.com/JakeFAU/nga-crawler/internal/clock/system"
	"github.com/JakeFAU/nga-crawler/internal/config"
	"github.com/JakeFAU/nga-crawler/internal/cookies"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/nga-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/nga-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/nga-crawler/internal/hash/sha256"
	"github.com/JakeFAU/nga-crawler/internal/headless/detector"
	"github.com/JakeFAU/nga-crawler/internal/index"
	"github.com/JakeFAU/nga-crawler/internal/page"
	"github.com/JakeFAU/nga-crawler/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/nga-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/nga-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/nga-crawler/internal/progress"
	"github.com/JakeFAU/nga-crawler/internal/query"
	"github.com/JakeFAU/nga-crawler/internal/storage/gcs"
	"github.com/JakeFAU/nga-crawler/internal/storage/local"
	"github.com/JakeFAU/nga-crawler/internal/storage/memory"
	"github.com/JakeFAU/nga-crawler/internal/worker"
)

// App holds the shared, long-lived services: the browser stack, the crawl
// orchestrators, the index store and the archive/notification backends.
// Commands and the HTTP server both draw from it.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	browser   *page.Browser
	threads   *crawler.ThreadCrawler
	topics    *crawler.TopicLister
	builder   *index.Builder
	store     *boardindex.Store
	engine    *query.Engine
	blobs     crawler.BlobStore
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock

	closers []func() error
}

// New creates and initializes an App. It fails fast when a configured
// backend cannot be reached; a browser that cannot start only disables
// headless promotion.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		hasher: sha256.NewTruncated(cfg.Storage.HashLength),
	}
	logger.Info("initializing application services")

	browser, err := a.setupBrowser()
	if err != nil {
		return nil, err
	}
	a.browser = browser
	a.threads = crawler.NewThreadCrawler(browser, cfg.CrawlerOptions(), logger.Named("thread"))
	a.topics = crawler.NewTopicLister(browser, logger.Named("topics"))
	a.builder = index.NewBuilder(browser, page.Parse, a.clock, cfg.IndexOptions(), logger.Named("index"))
	a.store = boardindex.New(cfg.Index.Path, logger.Named("boardindex"))
	a.engine = query.NewEngine(a.store, logger.Named("query"))

	if a.blobs, err = a.setupStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.publisher, err = a.setupPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) setupBrowser() (*page.Browser, error) {
	bc := a.cfg.Browser
	jar, err := cookies.Load(cookies.Resolve(bc.CookiesPath))
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	if len(jar) > 0 {
		a.logger.Info("loaded session cookies", zap.Int("count", len(jar)))
	}

	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: bc.UserAgent,
		Timeout:   time.Duration(bc.TimeoutSeconds) * time.Second,
		Cookies:   jar,
	})

	opts := []page.BrowserOption{
		page.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   bc.RateLimitRPS,
			DefaultBurst: bc.RateLimitBurst,
		})),
		page.WithRetry(crawler.NewExponentialRetryPolicy(
			bc.MaxRetries+1,
			time.Duration(bc.BackoffInitialMs)*time.Millisecond,
			time.Duration(bc.BackoffMaxMs)*time.Millisecond,
		)),
	}

	if bc.HeadlessEnabled {
		chrome, err := headless.NewChromedp(headless.Config{
			MaxParallel:       bc.MaxParallel,
			UserAgent:         bc.UserAgent,
			NavigationTimeout: time.Duration(bc.NavTimeoutSeconds) * time.Second,
			Headless:          !bc.HeadlessVisible,
			Cookies:           jar,
		})
		if err != nil {
			a.logger.Warn("headless fetcher unavailable, continuing with static probe only", zap.Error(err))
			opts = append(opts, page.WithHeadless(headless.NewNoop(), detector.NewHeuristic(bc.PromotionThreshold)))
		} else {
			a.closers = append(a.closers, func() error { chrome.Close(); return nil })
			opts = append(opts, page.WithHeadless(chrome, detector.NewHeuristic(bc.PromotionThreshold)))
		}
	}
	return page.NewBrowser(probe, a.logger.Named("browser"), opts...), nil
}

func (a *App) setupStorage(ctx context.Context) (crawler.BlobStore, error) {
	sc := a.cfg.Storage
	switch sc.Backend {
	case config.BackendGCS:
		a.logger.Info("using GCS archive backend", zap.String("bucket", sc.GCSBucket))
		store, err := gcs.Open(ctx, gcs.Config{Bucket: sc.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.BackendLocal:
		a.logger.Info("using local archive backend", zap.String("path", sc.BaseDir))
		store, err := local.New(local.Config{BaseDir: sc.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return store, nil
	case config.BackendMem:
		a.logger.Info("using in-memory archive backend")
		return memory.NewBlobStore(), nil
	default:
		a.logger.Debug("index archiving disabled")
		return nil, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	pc := a.cfg.PubSub
	if pc.TopicName == "" {
		a.logger.Debug("no Pub/Sub topic configured, build notifications stay in memory")
		return memorypublisher.New(), nil
	}
	pub, err := pubsubpublisher.Open(ctx, pc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", pc.ProjectID),
		zap.String("topic", pc.TopicName),
	)
	return pub, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Threads returns the thread crawler.
func (a *App) Threads() *crawler.ThreadCrawler { return a.threads }

// Topics returns the topic lister.
func (a *App) Topics() *crawler.TopicLister { return a.topics }

// Builder returns the board index builder.
func (a *App) Builder() *index.Builder { return a.builder }

// Store returns the persisted board index.
func (a *App) Store() *boardindex.Store { return a.store }

// Engine returns the index query engine.
func (a *App) Engine() *query.Engine { return a.engine }

// Clock returns the shared clock.
func (a *App) Clock() crawler.Clock { return a.clock }

// NewWorker builds an index worker over the shared services. queue and jobs
// may be nil when the worker is only used for direct builds.
func (a *App) NewWorker(queue crawler.Queue, jobs crawler.JobStore, events progress.Emitter, logger *zap.Logger) *worker.Worker {
	return worker.New(
		queue,
		jobs,
		a.builder,
		a.store,
		a.blobs,
		a.publisher,
		a.hasher,
		a.clock,
		events,
		worker.Config{
			ContentType: a.cfg.Storage.ContentType,
			BlobPrefix:  a.cfg.Storage.Prefix,
			Topic:       a.cfg.PubSub.TopicName,
		},
		logger,
	)
}

// Close releases every backend in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("service close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
