package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tendant/simple-presign/pkg/presign/config"
)

func main() {
	// .env first so its values are visible to the file and environment readers
	cfg, err := config.Load(
		config.WithDotEnv(),
		config.WithFile(os.Getenv("CONFIG_FILE")),
		config.WithEnv(),
	)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		if usage, uerr := config.Usage(); uerr == nil {
			os.Stderr.WriteString(usage + "\n")
		}
		os.Exit(1)
	}

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// newLogger writes JSON in production and text elsewhere
func newLogger(cfg *config.ServerConfig, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
