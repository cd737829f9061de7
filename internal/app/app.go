// Package app provides the unified application lifecycle management
// for Sift.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/siftlog/sift/internal/api/http"
	"github.com/siftlog/sift/internal/auth"
	"github.com/siftlog/sift/internal/config"
	"github.com/siftlog/sift/internal/detail"
	"github.com/siftlog/sift/internal/index"
	"github.com/siftlog/sift/internal/observability"
	"github.com/siftlog/sift/internal/project"
	"github.com/siftlog/sift/internal/router"
	"github.com/siftlog/sift/internal/search"
	"github.com/siftlog/sift/internal/server"
	"github.com/siftlog/sift/internal/storage"
	"github.com/siftlog/sift/internal/store"
)

// App manages the Sift service lifecycle: database, index, API server,
// metrics server, and the optional retention daemon.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db        *store.DB
	ix        *index.Index
	archive   storage.ObjectStorage
	retention *index.Retention
	notifier  *router.Notifier
	metrics   *observability.Metrics
	shutdown  *server.ShutdownManager

	apiServer     *http.Server
	metricsServer *http.Server

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errCh   chan error
}

// New creates an App with the given configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger, errCh: make(chan error, 2)}, nil
}

// Start initializes shared resources and brings up the servers.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{})
	a.metrics = observability.NewMetrics()

	if err := a.initStore(ctx); err != nil {
		a.cleanup()
		return err
	}
	if err := a.initRetention(ctx); err != nil {
		a.cleanup()
		return err
	}
	a.startAPIServer()
	a.startMetricsServer()

	a.logger.Info("sift started",
		zap.String("addr", a.cfg.HTTP.Addr),
		zap.String("metrics_addr", a.cfg.HTTP.MetricsAddr),
		zap.Bool("retention", a.cfg.Retention.Enabled))
	return nil
}

// Stop shuts the app down gracefully.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx)
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.logger.Info("sift stopped")
	return err
}

// Run blocks until SIGTERM/SIGINT or a server failure, then stops the
// app.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.errCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	if err := a.shutdown.ListenForSignals(runCtx); err != nil {
		a.Stop(context.Background())
		return err
	}
	return a.Stop(context.Background())
}

func (a *App) initStore(ctx context.Context) error {
	opts := store.DefaultOptions()
	if a.cfg.Index.StorageTimeout > 0 {
		opts.Timeout = a.cfg.Index.StorageTimeout
	}
	if a.cfg.Index.ReadPoolSize > 0 {
		opts.ReadPoolSize = a.cfg.Index.ReadPoolSize
	}
	if a.cfg.Index.RetryAttempts > 0 {
		opts.Retry.MaxAttempts = a.cfg.Index.RetryAttempts
	}
	if a.cfg.Index.RetryInitialDelay > 0 {
		opts.Retry.InitialDelay = a.cfg.Index.RetryInitialDelay
	}

	db, err := store.Open(a.cfg.DatabasePath(), opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.shutdown.RegisterCloser(db)

	ix, err := index.Open(ctx, db, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	a.ix = ix

	a.notifier = router.NewNotifier(256)
	ix.SetNotifier(a.notifier)
	a.watchLifecycle(ctx)

	a.logger.Info("index recovered", zap.String("path", a.cfg.DatabasePath()))
	return nil
}

// watchLifecycle consumes index lifecycle notifications for metrics
// and operator logs.
func (a *App) watchLifecycle(ctx context.Context) {
	ch := a.notifier.SubscribeAutoID()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case notif, ok := <-ch:
				if !ok {
					return
				}
				if notif.Type == router.SegmentArchived {
					a.metrics.SegmentsArchived.Inc()
					a.logger.Info("segment archived",
						zap.String("project", notif.ProjectID),
						zap.String("segment", notif.SegmentID),
						zap.Int64("records", notif.RecordCount))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (a *App) initRetention(ctx context.Context) error {
	if !a.cfg.Retention.Enabled {
		return nil
	}

	archive, err := a.openArchiveStorage(ctx)
	if err != nil {
		return err
	}
	a.archive = archive

	a.retention = index.NewRetention(index.RetentionConfig{
		TTL:           a.cfg.Retention.TTL,
		CheckInterval: a.cfg.Retention.CheckInterval,
		BatchSize:     a.cfg.Retention.BatchSize,
		WorkDir:       a.cfg.Retention.WorkDir,
	}, a.ix, archive, a.logger)

	if err := a.retention.Start(ctx); err != nil {
		return fmt.Errorf("failed to start retention daemon: %w", err)
	}
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.retention.Stop()
		return nil
	}))
	a.logger.Info("retention daemon started",
		zap.Duration("ttl", a.cfg.Retention.TTL),
		zap.Duration("check_interval", a.cfg.Retention.CheckInterval),
		zap.String("storage", a.cfg.Storage.Type))
	return nil
}

func (a *App) openArchiveStorage(ctx context.Context) (storage.ObjectStorage, error) {
	switch a.cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		return storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:   a.cfg.Storage.S3.Region,
			Endpoint: a.cfg.Storage.S3.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
}

func (a *App) startAPIServer() {
	secret := []byte(a.cfg.Auth.TokenSecret)

	authSvc := auth.NewService(auth.NewStore(a.db), auth.Config{
		Secret:   secret,
		TokenTTL: a.cfg.Auth.TokenTTL,
		Issuer:   a.cfg.Auth.Issuer,
	}, a.logger)
	registry := project.NewRegistry(a.db)
	stats := observability.NewSearchStats(time.Hour)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Sessions: authSvc,
		Authn:    authSvc,
		Registry: registry,
		Engine:   search.NewEngine(a.ix, stats, a.logger),
		Detail:   detail.NewService(a.db, secret, a.cfg.Detail.PageSize, a.logger),
		Index:    a.ix,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})

	a.apiServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      server.ShutdownMiddleware(a.shutdown)(router),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	graceful := server.NewGracefulHTTPServer(a.apiServer, a.shutdown)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("api server listening", zap.String("addr", a.cfg.HTTP.Addr))
		if err := graceful.ListenAndServe(); err != nil {
			a.logger.Error("api server error", zap.Error(err))
			a.errCh <- err
		}
	}()
}

func (a *App) startMetricsServer() {
	if a.cfg.HTTP.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	a.metricsServer = &http.Server{
		Addr:        a.cfg.HTTP.MetricsAddr,
		Handler:     mux,
		ReadTimeout: a.cfg.HTTP.ReadTimeout,
	}

	graceful := server.NewGracefulHTTPServer(a.metricsServer, a.shutdown)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("metrics server listening", zap.String("addr", a.cfg.HTTP.MetricsAddr))
		if err := graceful.ListenAndServe(); err != nil {
			a.logger.Error("metrics server error", zap.Error(err))
			a.errCh <- err
		}
	}()
}

// cleanup tears down whatever Start managed to bring up.
func (a *App) cleanup() {
	if a.retention != nil {
		a.retention.Stop()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}
