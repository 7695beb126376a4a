package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/webriots/cotask/internal/config"
	"github.com/webriots/cotask/internal/demo"
)

//go:embed .version
var version string

// setupLogger configures the global slog logger based on debug setting
func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "Config file path")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		scenario   = flag.String("scenario", "all", "Scenario to run: all, "+strings.Join(demo.Names(), ", "))
		showVer    = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(strings.TrimSpace(version))
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override debug if specified via CLI flag
	if *debug {
		cfg.Debug = true
	}

	setupLogger(cfg.Debug)
	slog.Info("starting cotask", "version", strings.TrimSpace(version), "scenario", *scenario)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return demo.Run(ctx, *scenario, cfg, slog.Default())
}
