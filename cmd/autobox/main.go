// Package main implements the entry point for the autobox service.
// Autobox consumes an encrypted record stream from a message broker and
// fans it out to an adaptive pool of workers that parse the records and
// persist them to Elasticsearch or InfluxDB.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/willnx/autobox/broker"
	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/health"
	"github.com/willnx/autobox/metric"
	"github.com/willnx/autobox/pool"
	"github.com/willnx/autobox/processor"
	"github.com/willnx/autobox/processor/categories"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "autobox"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	// Observability backbone shared by every component
	registry := metric.NewMetricsRegistry()
	core := registry.CoreMetrics()
	monitor := health.NewMonitor()

	// Connect the broker consumer
	ctx := context.Background()
	source, err := broker.NewSource(ctx, broker.Deps{
		Config:  cfg.Broker,
		Logger:  logger,
		Metrics: core,
	})
	if err != nil {
		return fmt.Errorf("connect record source: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			slog.Warn("closing record source", "error", err)
		}
	}()

	// Resolve the processor factory for the configured category
	factory, err := buildFactory(cfg, logger, core)
	if err != nil {
		return err
	}

	manager, err := pool.NewManager(pool.Deps{
		Config:     cfg.Pool,
		Source:     source,
		SourceName: cfg.Broker.Kind,
		Factory:    factory,
		Category:   cfg.Pipeline.Category,
		Logger:     logger,
		Registrar:  registry,
		Core:       core,
		Monitor:    monitor,
	})
	if err != nil {
		return fmt.Errorf("build worker pool: %w", err)
	}

	stopMetrics := startMetricsServer(cfg, registry, monitor)
	if stopMetrics != nil {
		defer stopMetrics()
	}

	core.RecordServiceStatus(appName, 1)
	defer core.RecordServiceStatus(appName, 0)

	// Run the pipeline with signal handling
	return runWithSignalHandling(ctx, manager)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting autobox (adaptive record pipeline)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// buildFactory registers the category processors and returns the factory
// for the configured category. One instance is built and flushed up front
// so an unknown category or unreadable cipher keys fail the start instead
// of the first worker spawn.
func buildFactory(cfg *config.Config, logger *slog.Logger, core *metric.Metrics) (processor.Factory, error) {
	reg := processor.NewRegistry()
	deps := processor.Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: core,
	}
	if err := categories.Register(reg, deps); err != nil {
		return nil, fmt.Errorf("register categories: %w", err)
	}
	slog.Info("category processors registered",
		"categories", reg.Names(),
		"selected", cfg.Pipeline.Category)

	probe, err := reg.New(cfg.Pipeline.Category)
	if err != nil {
		return nil, fmt.Errorf("build %s processor: %w", cfg.Pipeline.Category, err)
	}
	if err := probe.Flush(); err != nil {
		slog.Warn("releasing probe processor", "error", err)
	}

	return func() (processor.Processor, error) {
		return reg.New(cfg.Pipeline.Category)
	}, nil
}

// startMetricsServer starts the operational HTTP endpoint when enabled and
// returns its stop function, or nil when disabled.
func startMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry, monitor *health.Monitor) func() {
	if !cfg.Metrics.Enabled {
		slog.Info("metrics server disabled")
		return nil
	}

	srv := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry,
		metric.WithHealthMonitor(monitor, appName))
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	slog.Info("metrics server listening", "address", srv.Address())

	return func() {
		if err := srv.Stop(); err != nil {
			slog.Warn("stopping metrics server", "error", err)
		}
	}
}

// runWithSignalHandling drives the pool until a shutdown signal arrives or
// the pipeline fails.
func runWithSignalHandling(ctx context.Context, manager *pool.Manager) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := manager.Run(signalCtx); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	slog.Info("autobox shutdown complete")
	return nil
}

// printHelp prints help information
func printHelp() {
	printDetailedHelp()
}
