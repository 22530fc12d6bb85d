// Package bootstrap assembles the print dispatch pipeline and its supporting
// infrastructure from configuration. Both printd and printctl start here.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	printingapp "github.com/erp/printdispatch/internal/application/printing"
	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/erp/printdispatch/internal/infrastructure/cache"
	"github.com/erp/printdispatch/internal/infrastructure/config"
	"github.com/erp/printdispatch/internal/infrastructure/logger"
	"github.com/erp/printdispatch/internal/infrastructure/persistence"
	infraprinting "github.com/erp/printdispatch/internal/infrastructure/printing"
	"github.com/erp/printdispatch/internal/infrastructure/scheduler"
	"github.com/erp/printdispatch/internal/infrastructure/storage"
	"github.com/erp/printdispatch/internal/infrastructure/telemetry"
)

const instrumentationName = "github.com/erp/printdispatch"

// Adapters are the boundary implementations the pipeline talks to. Nil fields
// are built from configuration.
type Adapters struct {
	Devices    printing.DeviceLister
	Spooler    printing.Spooler
	Rasterizer printing.PageRasterizer
	Office     printing.OfficeBridge
}

// App is a fully wired print dispatch pipeline
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Orchestrator *printingapp.Orchestrator
	Devices      *printingapp.DeviceRegistry
	Scratch      *infraprinting.ScratchManager
	Pool         *scheduler.RunPool

	// Database and History are nil when run history is disabled
	Database *persistence.Database
	History  printing.RunHistory

	metrics *telemetry.PipelineMetrics
	tracer  *telemetry.TracerProvider
	closers []func(context.Context) error
}

// New builds the App. On error everything built so far is torn down.
func New(ctx context.Context, cfg *config.Config, adapters Adapters) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			err = multierr.Append(err, app.Close(context.WithoutCancel(ctx)))
		}
	}()

	if err := app.setupTelemetryAndLogger(ctx); err != nil {
		return nil, err
	}
	log := app.Logger

	scratch, err := infraprinting.NewScratchManager(&infraprinting.ScratchConfig{
		Root:               cfg.Scratch.Root,
		ColocateWithSource: cfg.Scratch.ColocateWithSource,
		Logger:             log.Named("scratch"),
	})
	if err != nil {
		return nil, err
	}
	app.Scratch = scratch

	if err := app.buildAdapters(&adapters); err != nil {
		return nil, err
	}

	app.Devices = printingapp.NewDeviceRegistry(adapters.Devices, log.Named("devices"))
	paginated := printingapp.NewPaginatedDocumentStrategy(adapters.Rasterizer, cfg.Rasterizer.DPI, log.Named("paginated"))
	strategies := printingapp.NewStrategySet(printingapp.NewRasterImageStrategy(), paginated)
	strategies.Register(printingapp.NewOfficeDocumentStrategy(adapters.Office, paginated, log.Named("office")))

	opts := []printingapp.OrchestratorOption{
		printingapp.WithLogger(log.Named("pipeline")),
		printingapp.WithObserver(app.metrics),
		printingapp.WithTracer(app.tracer.Tracer(instrumentationName)),
	}

	pool, err := scheduler.NewRunPool(scheduler.PoolConfig{
		Workers:   cfg.Dispatch.MaxConcurrentRuns,
		QueueSize: cfg.Dispatch.QueueSize,
	}, log.Named("pool"))
	if err != nil {
		return nil, fmt.Errorf("run pool: %w", err)
	}
	if err := pool.Start(); err != nil {
		return nil, err
	}
	app.Pool = pool
	app.closers = append(app.closers, pool.Stop)
	opts = append(opts, printingapp.WithExecutor(pool))

	histOpts, err := app.setupHistory()
	if err != nil {
		return nil, err
	}
	opts = append(opts, histOpts...)

	guardOpts, err := app.setupIdempotency(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, guardOpts...)

	if cfg.Storage.Enabled {
		fetcher, err := storage.NewS3SourceFetcherFromConfig(ctx, &cfg.Storage, storage.WithLogger(log.Named("s3")))
		if err != nil {
			return nil, fmt.Errorf("s3 source fetcher: %w", err)
		}
		opts = append(opts, printingapp.WithSourceFetchers(fetcher))
	}

	app.Orchestrator = printingapp.NewOrchestrator(
		app.Devices,
		strategies,
		printingapp.NewJobSubmitter(adapters.Spooler, log.Named("submitter")),
		scratch,
		opts...,
	)
	return app, nil
}

func (a *App) setupTelemetryAndLogger(ctx context.Context) error {
	cfg := a.Config
	tc := cfg.Telemetry

	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, zap.NewNop())
	if err != nil {
		return fmt.Errorf("log provider: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, logsProvider.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		_ = logsProvider.Shutdown(ctx)
		return fmt.Errorf("logger: %w", err)
	}
	a.Logger = log
	a.closers = append(a.closers, logsProvider.Shutdown, func(context.Context) error {
		return logger.Sync(log)
	})

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("tracer provider: %w", err)
	}
	a.closers = append(a.closers, tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled && tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("meter provider: %w", err)
	}
	a.closers = append(a.closers, meterProvider.Shutdown)

	metrics, err := telemetry.NewPipelineMetrics(meterProvider.Meter(instrumentationName), log)
	if err != nil {
		return fmt.Errorf("pipeline metrics: %w", err)
	}
	a.metrics = metrics
	a.tracer = tracerProvider
	return nil
}

func (a *App) buildAdapters(adapters *Adapters) error {
	cfg := a.Config
	cupsCfg := &infraprinting.CUPSConfig{
		LpPath:     cfg.CUPS.LpPath,
		LpstatPath: cfg.CUPS.LpstatPath,
		Timeout:    cfg.CUPS.Timeout,
		Logger:     a.Logger.Named("cups"),
	}

	if adapters.Devices == nil {
		lister, err := infraprinting.NewCUPSDeviceLister(cupsCfg, nil)
		if err != nil {
			return fmt.Errorf("device lister: %w", err)
		}
		adapters.Devices = lister
	}
	if adapters.Spooler == nil {
		spooler, err := infraprinting.NewCUPSSpooler(cupsCfg, nil)
		if err != nil {
			return fmt.Errorf("spooler: %w", err)
		}
		adapters.Spooler = spooler
	}
	if adapters.Rasterizer == nil {
		adapters.Rasterizer = infraprinting.NewFitzRasterizer()
	}
	if adapters.Office == nil {
		bridge, err := infraprinting.NewLibreOfficeBridge(&infraprinting.LibreOfficeConfig{
			BinaryPath:  cfg.Office.BinaryPath,
			ProfileRoot: cfg.Office.ProfileRoot,
			Timeout:     cfg.Office.Timeout,
			Logger:      a.Logger.Named("office"),
		}, nil)
		if err != nil {
			a.Logger.Warn("office automation unavailable, office documents will fail to convert",
				zap.String("binary", cfg.Office.BinaryPath), zap.Error(err))
			adapters.Office = infraprinting.NewUnavailableOfficeBridge(err)
			return nil
		}
		adapters.Office = bridge
	}
	return nil
}

func (a *App) setupHistory() ([]printingapp.OrchestratorOption, error) {
	cfg := a.Config
	if !cfg.Database.Enabled {
		return nil, nil
	}

	db, err := persistence.NewDatabase(&cfg.Database, a.Logger.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		return nil, fmt.Errorf("run history: %w", err)
	}
	a.Database = db
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	dbSystem := "sqlite"
	if cfg.Database.Driver == "postgres" {
		dbSystem = "postgresql"
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:  cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBSystem: dbSystem,
	}, a.Logger); err != nil {
		return nil, fmt.Errorf("database tracing: %w", err)
	}

	repo := persistence.NewGormPrintRunRepository(db.DB)
	a.History = repo
	return []printingapp.OrchestratorOption{printingapp.WithRecorder(repo)}, nil
}

func (a *App) setupIdempotency(ctx context.Context) ([]printingapp.OrchestratorOption, error) {
	cfg := a.Config
	if !cfg.Idempotency.Enabled {
		return nil, nil
	}
	store, err := cache.NewIdempotencyStore(ctx, cfg.Idempotency.Backend, cache.RedisConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("idempotency store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	return []printingapp.OrchestratorOption{printingapp.WithIdempotency(store, cfg.Idempotency.TTL)}, nil
}

// Close stops the run pool, letting queued runs finish, then releases every
// resource in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i](ctx))
	}
	a.closers = nil
	return err
}
