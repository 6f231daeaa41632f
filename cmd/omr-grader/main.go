package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ironsheep/omr-grader/internal/config"
	"github.com/ironsheep/omr-grader/internal/logger"
	"github.com/ironsheep/omr-grader/internal/metrics"
	"github.com/ironsheep/omr-grader/internal/registration"
	"github.com/ironsheep/omr-grader/internal/server"
	"github.com/ironsheep/omr-grader/internal/sheet"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "omr-grader - MCP server for grading optical answer sheets")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: omr-grader [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Environment variables:")
	fmt.Fprintf(out, "  %s=<path>    Config file used when --config is not given\n", config.EnvConfigPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This server communicates via MCP protocol over stdin/stdout.")
	fmt.Fprintln(out, "Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the YAML config file")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&showVersion, "v", false, "print version information (shorthand)")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("omr-grader %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "omr-grader: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol, so logs go to stderr
	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting omr-grader",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", GitCommit),
		zap.Int("workers", cfg.Grading.Workers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := registration.New(cfg.Registration, log)
	recorder := metrics.New()
	grader := sheet.NewGrader(engine, cfg.Scoring,
		sheet.WithWorkers(cfg.Grading.Workers),
		sheet.WithRecorder(recorder),
	)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := recorder.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.Error("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	srv := server.New(server.Options{
		Registrar: engine,
		Scorer:    cfg.Scoring,
		Grader:    grader,
		Logger:    log,
		Version:   Version,
	})
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("omr-grader stopped")
	return nil
}
