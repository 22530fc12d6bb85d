// Command printd serves the print dispatch HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/printdispatch/internal/bootstrap"
	"github.com/erp/printdispatch/internal/infrastructure/auth"
	"github.com/erp/printdispatch/internal/infrastructure/config"
	"github.com/erp/printdispatch/internal/infrastructure/scheduler"
	"github.com/erp/printdispatch/internal/interfaces/http/handler"
	"github.com/erp/printdispatch/internal/interfaces/http/middleware"
	"github.com/erp/printdispatch/internal/interfaces/http/router"
)

func main() {
	// PRINTD_CONFIG names an explicit config file; otherwise config.toml is searched
	cfg, err := config.Load(os.Getenv("PRINTD_CONFIG"))
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Adapters{})
	if err != nil {
		panic("Failed to initialize print pipeline: " + err.Error())
	}
	log := app.Logger

	log.Info("Starting print dispatch server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("scratch_root", app.Scratch.Root()),
		zap.Bool("history", app.History != nil),
	)

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	sweeper := scheduler.NewSweepTrigger(scheduler.SweepTriggerConfig{
		MaxAge: cfg.Scratch.SweepAge,
	}, app.Scratch, log.Named("sweep"))
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start scratch sweeper", zap.Error(err))
	}

	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}
	engine := router.NewEngine(router.EngineConfig{
		Mode: mode,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
	}, log)

	checks := map[string]handler.HealthCheck{}
	if app.Database != nil {
		checks["database"] = func(context.Context) error { return app.Database.Ping() }
	}
	engine.GET("/health", handler.NewHealthHandler(checks).Health)

	printHandler := handler.NewPrintHandler(app.Orchestrator, app.History, handler.PrintConfig{
		UploadDir:      cfg.HTTP.UploadDir,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		WaitTimeout:    cfg.Dispatch.WaitTimeout,
		AllowedRoots:   cfg.Dispatch.AllowedRoots,
	})
	deviceHandler := handler.NewDeviceHandler(app.Devices)

	var apiMiddleware []gin.HandlerFunc
	if cfg.JWT.Enabled {
		apiMiddleware = append(apiMiddleware, middleware.JWTAuth(auth.NewJWTService(cfg.JWT)))
	} else {
		log.Warn("JWT authentication is disabled, the print API is open to every client that can reach it")
	}
	if len(cfg.Dispatch.AllowedRoots) == 0 {
		log.Info("no dispatch.allowed_roots configured, local path sources will be rejected")
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(
		handler.PrintRoutes(printHandler, apiMiddleware...),
		handler.DeviceRoutes(deviceHandler, apiMiddleware...),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error("Scratch sweeper did not stop cleanly", zap.Error(err))
	}
	// Queued runs finish before their resources are released
	if err := app.Close(shutdownCtx); err != nil {
		log.Error("Error releasing resources", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
