// Promptpressd is the adaptive prompt-compression daemon.
//
// It exposes an HTTP API for compressing behavioral profiles into
// token-budgeted prompt fragments, recording outcomes, running strategy
// experiments, and inspecting rolling analytics. A background scheduler
// recomputes metrics and nudges the adaptive thresholds.
//
// Configuration comes from an optional YAML file plus PROMPTPRESS_-prefixed
// environment variables. See internal/config for the key layout.
//
// Usage:
//
//	# Start with defaults
//	promptpressd
//
//	# Configure via file and environment
//	PROMPTPRESS_SERVER_PORT=8080 promptpressd --config /etc/promptpress.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/analytics"
	"github.com/fyrsmithlabs/promptpress/internal/config"
	"github.com/fyrsmithlabs/promptpress/internal/httpapi"
	"github.com/fyrsmithlabs/promptpress/internal/logging"
	"github.com/fyrsmithlabs/promptpress/internal/pipeline"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  promptpressd           Start the promptpress daemon\n")
			fmt.Fprintf(os.Stderr, "  promptpressd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("promptpressd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting promptpressd",
		zap.String("version", version),
		zap.String("commit", gitCommit),
	)

	p, err := pipeline.New(pipeline.Config{
		RecordCapacity: cfg.Pipeline.RecordCapacity,
		Logger:         logger.Named("pipeline"),
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	tuner := analytics.NewTuner(
		p.ThresholdState(),
		analytics.Benchmarks{
			MinQuality:    cfg.Analytics.MinQuality,
			MinEfficiency: cfg.Analytics.MinEfficiency,
		},
		cfg.Analytics.LearningRate,
		cfg.Analytics.MinTuningInterval,
		logger.Named("tuner"),
	)
	scheduler := analytics.NewScheduler(
		p.Recorder(),
		tuner,
		cfg.Analytics.Window,
		cfg.Analytics.RecomputeInterval,
		logger.Named("scheduler"),
	)
	scheduler.Start()
	defer scheduler.Stop()

	server, err := httpapi.NewServer(p, logger.Named("http"), &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
