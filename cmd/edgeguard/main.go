// Package main is the entry point for the edgeguard daemon. It assembles
// the request signer, hierarchical rate limiter, and certificate pinner,
// and serves the loopback admin API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgeguard/edgeguard/internal/admin"
	"github.com/edgeguard/edgeguard/internal/audit"
	"github.com/edgeguard/edgeguard/internal/config"
	"github.com/edgeguard/edgeguard/internal/observability"
	"github.com/edgeguard/edgeguard/internal/pinner"
	"github.com/edgeguard/edgeguard/internal/ratelimit"
	"github.com/edgeguard/edgeguard/internal/signer"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("EDGEGUARD_CONFIG_PATH", "configs/edgeguard.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("EDGEGUARD_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("EDGEGUARD_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("edgeguard version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting edgeguard",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Bool("pinning_enabled", cfg.Pinning.Enabled),
		observability.Bool("pinning_strict", cfg.Pinning.StrictMode),
		observability.Int("pinned_hosts", len(cfg.Pinning.Pins)),
		observability.Int("provider_limits", len(cfg.RateLimit.Providers)),
	)

	return cfg
}

// application holds all application components.
type application struct {
	signer      *signer.Signer
	limiter     *ratelimit.Limiter
	pinner      *pinner.Pinner
	auditLogger audit.Logger
	adminServer *admin.Server
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	config      *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	metrics := observability.NewMetrics("edgeguard")
	metrics.SetBuildInfo(version, gitCommit, float64(time.Now().Unix()))
	tracer := initTracer(cfg, logger)

	auditLogger, err := audit.NewLogger(cfg.Audit,
		audit.WithLoggerLogger(logger),
		audit.WithLoggerMetrics(audit.NewMetricsWithRegisterer(metrics.Namespace(), metrics.Registry())),
	)
	if err != nil {
		logger.Fatal("failed to initialize audit logger", observability.Error(err))
	}

	signerMetrics := signer.NewMetricsWithRegisterer(metrics.Namespace(), metrics.Registry())
	signerMetrics.Init()
	sgn := signer.New(
		signer.WithReplayWindow(cfg.Signer.ReplayWindow.Duration()),
		signer.WithLogger(logger),
		signer.WithMetrics(signerMetrics),
		signer.WithAuditLogger(auditLogger),
	)

	limiterMetrics := ratelimit.NewMetricsWithRegisterer(metrics.Namespace(), metrics.Registry())
	limiterMetrics.Init()
	limiter, err := ratelimit.New(cfg.RateLimiterConfig(),
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(limiterMetrics),
		ratelimit.WithAuditLogger(auditLogger),
	)
	if err != nil {
		logger.Fatal("failed to initialize rate limiter", observability.Error(err))
	}

	pinnerMetrics := pinner.NewMetricsWithRegisterer(metrics.Namespace(), metrics.Registry())
	pinnerMetrics.Init()
	pin, err := pinner.New(cfg.PinnerConfig(),
		pinner.WithLogger(logger),
		pinner.WithMetrics(pinnerMetrics),
		pinner.WithAuditLogger(auditLogger),
	)
	if err != nil {
		logger.Fatal("failed to initialize certificate pinner", observability.Error(err))
	}

	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminServer = admin.NewServer(admin.Config{
			Address:        cfg.Admin.Address,
			Port:           cfg.Admin.Port,
			MetricsEnabled: cfg.Observability.Metrics.Enabled,
		}, limiter, pin,
			admin.WithLogger(logger),
			admin.WithMetrics(metrics),
		)
	}

	return &application{
		signer:      sgn,
		limiter:     limiter,
		pinner:      pin,
		auditLogger: auditLogger,
		adminServer: adminServer,
		metrics:     metrics,
		tracer:      tracer,
		config:      cfg,
	}
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracerCfg := observability.TracerConfig{
		ServiceName:  "edgeguard",
		Enabled:      cfg.Observability.Tracing.Enabled,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
	}
	if cfg.Observability.Tracing.ServiceName != "" {
		tracerCfg.ServiceName = cfg.Observability.Tracing.ServiceName
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// run starts the admin server and config watcher, then blocks until a
// shutdown signal arrives.
func run(app *application, configPath string, logger observability.Logger) {
	if app.adminServer != nil {
		go func() {
			if err := app.adminServer.Start(); err != nil {
				logger.Error("admin server failed", observability.Error(err))
			}
		}()
	}

	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startConfigWatcher starts the configuration watcher. Pin tables and
// provider quotas are applied live; signer and admin settings need a
// restart.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading")

		if reloadErr := app.pinner.ApplyConfig(newCfg.PinnerConfig()); reloadErr != nil {
			logger.Error("failed to apply pin configuration", observability.Error(reloadErr))
		}

		for provider, limit := range newCfg.RateLimit.Providers {
			window := limit.Window.Duration()
			if window <= 0 {
				window = time.Minute
			}
			if updateErr := app.limiter.UpdateProviderLimit(provider, limit.MaxRequests, window); updateErr != nil {
				logger.Error("failed to update provider limit",
					observability.String("provider", provider),
					observability.Error(updateErr),
				)
			}
		}
	}, config.WithWatcherLogger(logger))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if app.adminServer != nil {
		if err := app.adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop admin server gracefully", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	if err := app.auditLogger.Close(); err != nil {
		logger.Error("failed to close audit logger", observability.Error(err))
	}

	logger.Info("edgeguard stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
