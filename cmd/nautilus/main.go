// Command nautilus is the entry point for the cross-exchange price-gap
// scanner. It loads configuration, validates it, wires dependencies, and
// runs the configured mode until shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/app"
	"github.com/ppedziwiatr/nautilus/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override configured mode (scan, stats, recent, export, cleanup, monitor)")
	recentLimit := flag.Int("limit", 0, "record limit for recent/export modes, 0 = default")
	exportSymbol := flag.String("symbol", "", "restrict export mode to one symbol")
	cleanupOlderThan := flag.Duration("older-than", 30*24*time.Hour, "retention window for cleanup mode")
	cleanupForce := flag.Bool("force", false, "allow cleanup retention windows below the safety floor")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Mode = *mode
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("nautilus starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	application.RecentLimit = *recentLimit
	application.ExportLimit = *recentLimit
	application.ExportSymbol = *exportSymbol
	application.CleanupOlderThan = *cleanupOlderThan
	application.CleanupForce = *cleanupForce
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("nautilus stopped")
}
