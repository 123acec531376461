// Package main wires together the gazette ingestion service.
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

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/alnheet/SaGovLaws/internal/api"
	gcsblob "github.com/alnheet/SaGovLaws/internal/blob/gcs"
	"github.com/alnheet/SaGovLaws/internal/config"
	"github.com/alnheet/SaGovLaws/internal/extract"
	"github.com/alnheet/SaGovLaws/internal/gazette"
	"github.com/alnheet/SaGovLaws/internal/logging"
	"github.com/alnheet/SaGovLaws/internal/orchestrate"
	"github.com/alnheet/SaGovLaws/internal/paginate"
	memorypublisher "github.com/alnheet/SaGovLaws/internal/publisher/memory"
	pubsubpublisher "github.com/alnheet/SaGovLaws/internal/publisher/pubsub"
	"github.com/alnheet/SaGovLaws/internal/reconcile"
	"github.com/alnheet/SaGovLaws/internal/session"
	memorystore "github.com/alnheet/SaGovLaws/internal/store/memory"
	postgresstore "github.com/alnheet/SaGovLaws/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

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
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sourceStore, articleStore, closeStore, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("publisher close failed", zap.Error(err))
		}
	}()

	snapshots, err := buildSnapshots(ctx, cfg)
	if err != nil {
		logger.Fatal("snapshot store init failed", zap.Error(err))
	}

	extractor := extract.New(cfg.Crawl.MinTitleLength)
	fetcher := paginate.NewCollyFetcher(paginate.CollyConfig{
		UserAgent:      cfg.Crawl.UserAgent,
		AcceptLanguage: cfg.Crawl.AcceptLanguage,
		Timeout:        cfg.Crawl.HTTPTimeout(),
	})
	liveCfg := paginate.Config{
		MaxPages:       cfg.Crawl.MaxPages,
		Delay:          cfg.Crawl.Delay(),
		SnapshotPrefix: cfg.Snapshots.Prefix,
	}
	archiveCfg := liveCfg
	archiveCfg.MaxPages = cfg.Crawl.ArchiveMaxPages

	interactive := paginate.NewInteractive(extractor, snapshots, liveCfg, logger.Named("interactive"))
	archive := paginate.NewArchive(fetcher, extractor, snapshots, archiveCfg, logger.Named("archive"))

	clock := gazette.SystemClock{}
	engine := reconcile.New(articleStore, publisher, clock, logger.Named("reconcile"))

	sessCfg := session.Config{
		UserAgent:      cfg.Crawl.UserAgent,
		AcceptLanguage: cfg.Crawl.AcceptLanguage,
		NavTimeout:     cfg.Browser.NavTimeout(),
		ScrollSettle:   cfg.Browser.ScrollSettle(),
	}
	browserLogger := logger.Named("browser")
	browsers := func(_ context.Context) (orchestrate.Browser, error) {
		b, err := session.NewBrowser(sessCfg, browserLogger)
		if err != nil {
			return nil, err
		}
		return chromeBrowser{b}, nil
	}

	orch := orchestrate.New(sourceStore, articleStore, engine, interactive, archive, browsers, clock, logger.Named("orchestrate"))
	if err := orch.Bootstrap(ctx, cfg.SeedSources()); err != nil {
		logger.Fatal("source bootstrap failed", zap.Error(err))
	}

	apiServer := api.NewServer(orch, sourceStore, cfg, logger.Named("api"))
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

// chromeBrowser adapts the session package to the orchestrator's browser
// seam.
type chromeBrowser struct {
	*session.Browser
}

func (c chromeBrowser) NewSession() (gazette.BrowserSession, error) {
	return c.Browser.NewSession(), nil
}

func buildStores(ctx context.Context, cfg config.Config) (gazette.SourceStore, gazette.ArticleStore, func(), error) {
	if cfg.Database.Driver == "postgres" {
		store, err := postgresstore.New(ctx, postgresstore.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, store.Close, nil
	}
	store := memorystore.New()
	return store, store, func() {}, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (gazette.Publisher, error) {
	if !cfg.PubSub.Enabled {
		return memorypublisher.New(), nil
	}
	return pubsubpublisher.New(ctx, pubsubpublisher.Config{
		ProjectID: cfg.PubSub.ProjectID,
		TopicID:   cfg.PubSub.TopicID,
	})
}

func buildSnapshots(ctx context.Context, cfg config.Config) (gazette.SnapshotStore, error) {
	if !cfg.Snapshots.Enabled {
		return nil, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return gcsblob.New(client, gcsblob.Config{Bucket: cfg.Snapshots.GCSBucket})
}
