// Command servicemirror consumes service snapshots from the configured bus and
// keeps them queryable through the admin API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/drblury/servicemirror"
)

func main() {
	configPath := flag.String("config", os.Getenv("SERVICEMIRROR_CONFIG"), "path to a YAML config file")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := servicemirror.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	cfg, err := servicemirror.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", err, servicemirror.LogFields{"path": *configPath})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := servicemirror.NewService(&cfg, logger, ctx, servicemirror.ServiceDependencies{})
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close service mirror", err, nil)
		}
	}()

	if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Router stopped", err, nil)
		return
	}
	logger.Info("Service mirror stopped", servicemirror.LogFields{"services": svc.ServiceCount()})
}
