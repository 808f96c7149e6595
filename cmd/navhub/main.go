// Package main wires together the directory service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcspubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/navhub/navhub/internal/api"
	"github.com/navhub/navhub/internal/archive"
	"github.com/navhub/navhub/internal/clock/system"
	"github.com/navhub/navhub/internal/config"
	"github.com/navhub/navhub/internal/crawlclient"
	"github.com/navhub/navhub/internal/directory"
	"github.com/navhub/navhub/internal/logging"
	"github.com/navhub/navhub/internal/payments"
	"github.com/navhub/navhub/internal/pipeline"
	memoryPublisher "github.com/navhub/navhub/internal/publisher/memory"
	pubsubPublisher "github.com/navhub/navhub/internal/publisher/pubsub"
	"github.com/navhub/navhub/internal/scheduler"
	memoryStorage "github.com/navhub/navhub/internal/storage/memory"
	postgresStorage "github.com/navhub/navhub/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Optional; environment variables override file config either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer cleanup()

	crawler, err := crawlclient.New(crawlclient.Config{
		Endpoint: cfg.Crawl.Endpoint,
		Key:      cfg.CrawlKey(),
		Timeout:  cfg.CrawlTimeout(),
	}, logger.Named("crawl"))
	if err != nil {
		logger.Fatal("crawl client init failed", zap.Error(err))
	}

	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	archiver, err := buildArchive(ctx, cfg)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}

	clock := system.New()
	ingest := pipeline.New(
		stores.submissions,
		stores.catalog,
		stores.categories,
		crawler,
		publisher,
		archiver,
		clock,
		pipeline.Config{CallbackURL: cfg.CallbackURL()},
		logger.Named("pipeline"),
	)

	var verifier *payments.WebhookVerifier
	var checkout *payments.CheckoutClient
	if cfg.Payments.Enabled {
		verifier, err = payments.NewWebhookVerifier(cfg.Payments.WebhookSecret, payments.DefaultTolerance, clock)
		if err != nil {
			logger.Fatal("webhook verifier init failed", zap.Error(err))
		}
		checkout, err = payments.NewCheckoutClient(payments.CheckoutConfig{
			SecretKey: cfg.Payments.SecretKey,
			APIBase:   cfg.Payments.APIBase,
			SiteURL:   cfg.Site.URL,
		}, logger.Named("payments"))
		if err != nil {
			logger.Fatal("checkout client init failed", zap.Error(err))
		}
	}

	apiServer := api.NewServer(ingest, stores.submissions, stores.catalog, verifier, checkout, cfg, logger.Named("api"))

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.Spec, ingest, logger.Named("scheduler"))
		if err != nil {
			logger.Fatal("scheduler init failed", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
		logger.Info("scheduler started", zap.String("spec", cfg.Scheduler.Spec))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

type storeSet struct {
	submissions directory.SubmissionStore
	catalog     directory.CatalogStore
	categories  directory.CategoryStore
}

func buildStores(ctx context.Context, cfg config.Config) (storeSet, func(), error) {
	if cfg.Storage.Backend == config.BackendMemory {
		return storeSet{
			submissions: memoryStorage.NewSubmissionStore(),
			catalog:     memoryStorage.NewCatalogStore(),
			categories:  memoryStorage.NewCategoryStore(cfg.Taxonomy.Categories),
		}, func() {}, nil
	}

	pool, err := postgresStorage.NewPool(ctx, postgresStorage.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetime) * time.Second,
	})
	if err != nil {
		return storeSet{}, nil, err
	}
	submissions, err := postgresStorage.NewSubmissionStore(pool)
	if err != nil {
		pool.Close()
		return storeSet{}, nil, err
	}
	catalog, err := postgresStorage.NewCatalogStore(pool)
	if err != nil {
		pool.Close()
		return storeSet{}, nil, err
	}
	categories, err := postgresStorage.NewCategoryStore(pool)
	if err != nil {
		pool.Close()
		return storeSet{}, nil, err
	}
	return storeSet{
		submissions: submissions,
		catalog:     catalog,
		categories:  categories,
	}, pool.Close, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (directory.Publisher, error) {
	if !cfg.PubSub.Enabled {
		return memoryPublisher.New(), nil
	}
	client, err := gcspubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return pubsubPublisher.New(client.Topic(cfg.PubSub.TopicName)), nil
}

func buildArchive(ctx context.Context, cfg config.Config) (directory.Archive, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return archive.NewGCS(client, archive.GCSConfig{
		Bucket: cfg.Archive.GCSBucket,
		Prefix: cfg.Archive.Prefix,
	})
}
