// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/capturelabs/capturesink/internal/api"
	"github.com/capturelabs/capturesink/internal/archive"
	archivegcs "github.com/capturelabs/capturesink/internal/archive/gcs"
	archivelocal "github.com/capturelabs/capturesink/internal/archive/local"
	archivememory "github.com/capturelabs/capturesink/internal/archive/memory"
	"github.com/capturelabs/capturesink/internal/capture"
	"github.com/capturelabs/capturesink/internal/clock/system"
	"github.com/capturelabs/capturesink/internal/config"
	"github.com/capturelabs/capturesink/internal/docstore"
	docfirestore "github.com/capturelabs/capturesink/internal/docstore/firestore"
	docmemory "github.com/capturelabs/capturesink/internal/docstore/memory"
	docpostgres "github.com/capturelabs/capturesink/internal/docstore/postgres"
	"github.com/capturelabs/capturesink/internal/hash/sha256"
	"github.com/capturelabs/capturesink/internal/hooks"
	hooksmemory "github.com/capturelabs/capturesink/internal/hooks/memory"
	"github.com/capturelabs/capturesink/internal/id/uuid"
	"github.com/capturelabs/capturesink/internal/ingest"
	"github.com/capturelabs/capturesink/internal/logging"
	"github.com/capturelabs/capturesink/internal/notify"
	"github.com/capturelabs/capturesink/internal/notify/sinks"
	"github.com/capturelabs/capturesink/internal/telemetry"
	"go.uber.org/zap"
)

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	hub             *notify.Hub
	docs            docstore.Store
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	storageClient   *storage.Client
	tracerShutdown  func(context.Context) error
	metricShutdown  func(context.Context) error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Define a struct for logging only non-sensitive config fields
	type SanitizedConfig struct {
		ServerPort      int    `json:"server_port"`
		DocstoreBackend string `json:"docstore_backend"`
		ArchiveBackend  string `json:"archive_backend"`
		AuthEnabled     bool   `json:"auth_enabled"`
		PubSubEnabled   bool   `json:"pubsub_enabled"`
	}
	safeCfg := SanitizedConfig{
		ServerPort:      cfg.Server.Port,
		DocstoreBackend: cfg.Docstore.Backend,
		ArchiveBackend:  cfg.Archive.Backend,
		AuthEnabled:     cfg.Auth.Enabled,
		PubSubEnabled:   cfg.PubSub.Enabled,
	}
	logger.Info("Creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	// The hub drains before the Pub/Sub publisher stops so pending events
	// still reach the topic sink.
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("notify hub close failed", zap.Error(err))
		}
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	switch store := a.docs.(type) {
	case *docpostgres.Store:
		store.Close()
	case *docfirestore.Store:
		if err := store.Close(); err != nil {
			a.logger.Warn("firestore close failed", zap.Error(err))
		}
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if a.metricShutdown != nil {
		if err := a.metricShutdown(ctx); err != nil {
			a.logger.Warn("metric shutdown failed", zap.Error(err))
		}
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	// Initialize tracing
	tp, mp, err := telemetry.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown
	app.metricShutdown = mp.Shutdown

	app.logger.Info("building application dependencies")

	if err = setupDocstore(ctx, app); err != nil {
		return nil, err
	}

	blobs, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}

	hookStore, hookDispatcher := setupHooks(app)

	emitter, err := setupNotify(ctx, app, hookDispatcher)
	if err != nil {
		return nil, err
	}

	clk := system.New()
	idGen := uuid.New()
	normalizer := capture.NewNormalizer(idGen, clk, cfg.Ingest.EventSites, logger.Named("normalize"))

	ingestSvc := ingest.New(
		app.docs,
		blobs,
		normalizer,
		sha256.New(),
		clk,
		emitter,
		ingest.Config{
			MaxMergeAttempts: cfg.Ingest.MaxMergeAttempts,
			ArchivePrefix:    cfg.Archive.Prefix,
		},
		logger.Named("ingest"),
	)

	app.apiServer = api.NewServer(
		ingestSvc,
		app.docs,
		hookStore,
		hookDispatcher,
		idGen,
		clk,
		*cfg,
		logger.Named("api"),
	)

	return app, nil
}

func setupDocstore(ctx context.Context, app *App) error {
	switch app.cfg.Docstore.Backend {
	case "postgres":
		app.logger.Info("using postgres document store")
		store, err := docpostgres.New(ctx, docpostgres.Config{
			DSN:             app.cfg.Database.DSN,
			Table:           app.cfg.Database.Table,
			MaxConns:        int32(app.cfg.Database.MaxConns),
			MinConns:        int32(app.cfg.Database.MinConns),
			MaxConnLifetime: app.cfg.DatabaseConnLifetime(),
		})
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		if app.cfg.Database.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("postgres schema init failed: %w", err)
			}
		}
		app.docs = store
		app.logger.Debug("postgres document store", zap.String("table", app.cfg.Database.Table))
	case "firestore":
		app.logger.Info("using firestore document store")
		store, err := docfirestore.New(ctx, docfirestore.Config{
			ProjectID: app.cfg.Firestore.ProjectID,
			Database:  app.cfg.Firestore.Database,
		})
		if err != nil {
			return fmt.Errorf("firestore store init failed: %w", err)
		}
		app.docs = store
		app.logger.Debug("firestore document store", zap.String("project", app.cfg.Firestore.ProjectID))
	default:
		app.logger.Info("using in-memory document store")
		app.docs = docmemory.New()
	}
	return nil
}

func setupArchive(ctx context.Context, app *App) (archive.Store, error) {
	switch app.cfg.Archive.Backend {
	case "gcs":
		app.logger.Info("using GCS archive backend")
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storageClient = client
		blobs, err := archivegcs.New(client, archivegcs.Config{
			Bucket: app.cfg.Archive.GCSBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		app.logger.Debug("GCS archive backend", zap.String("bucket", app.cfg.Archive.GCSBucket))
		return blobs, nil
	case "local":
		app.logger.Info("using local archive backend")
		blobs, err := archivelocal.New(archivelocal.Config{BaseDir: app.cfg.Archive.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		app.logger.Debug("local archive backend", zap.String("path", app.cfg.Archive.LocalDir))
		return blobs, nil
	case "memory":
		app.logger.Info("using in-memory archive backend")
		return archivememory.New(), nil
	default:
		app.logger.Info("payload archiving disabled")
		return archive.NoOp{}, nil
	}
}

func setupHooks(app *App) (hooks.Store, *hooks.Dispatcher) {
	store := hooksmemory.New()
	dispatcher := hooks.NewDispatcher(store, hooks.DispatcherConfig{
		Timeout:     app.cfg.HookDeliveryTimeout(),
		MaxAttempts: app.cfg.Hooks.MaxAttempts,
		RatePerHost: app.cfg.Hooks.RatePerHost,
		RateBurst:   app.cfg.Hooks.RateBurst,
		Logger:      app.logger.Named("hooks"),
	})
	app.logger.Info("hook dispatcher initialized",
		zap.Duration("delivery_timeout", app.cfg.HookDeliveryTimeout()),
		zap.Int("max_attempts", app.cfg.Hooks.MaxAttempts),
	)
	return store, dispatcher
}

func setupNotify(ctx context.Context, app *App, deliverer sinks.Deliverer) (notify.Emitter, error) {
	var sinkList []notify.Sink

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)
	sinkList = append(sinkList, sinks.NewLogSink(app.logger.Named("notify_log")))

	if app.cfg.PubSub.Enabled {
		if app.cfg.PubSub.ProjectID == "" || app.cfg.PubSub.TopicName == "" {
			app.logger.Warn("No Pub/Sub topic configured, skipping topic sink")
		} else {
			app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("pubsub client init failed: %w", err)
			}
			app.pubsubPublisher = app.pubsubClient.Publisher(app.cfg.PubSub.TopicName)
			sinkList = append(sinkList, sinks.NewTopicSink(app.pubsubPublisher))
			app.logger.Info(
				"Pub/Sub topic sink initialized",
				zap.String("project", app.cfg.PubSub.ProjectID),
				zap.String("topic", app.cfg.PubSub.TopicName),
			)
		}
	}

	sinkList = append(sinkList, sinks.NewHookSink(deliverer))

	hubCfg := notify.Config{
		BufferSize:    app.cfg.Notify.BufferSize,
		MaxBatch:      app.cfg.Notify.BatchSize,
		FlushInterval: app.cfg.NotifyFlushInterval(),
		Logger:        app.logger.Named("notify_hub"),
	}
	app.hub = notify.NewHub(hubCfg, sinkList...)
	app.logger.Info("notify hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch", hubCfg.MaxBatch),
		zap.Duration("flush_interval", hubCfg.FlushInterval),
		zap.Int("sinks", len(sinkList)),
	)
	return app.hub, nil
}
