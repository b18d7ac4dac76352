package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/OpenMTS/internal/config"
	"github.com/KevinKickass/OpenMTS/internal/system"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	flags := pflag.NewFlagSet("mtsd", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "configs/config.yaml", "path to the config file")
	flags.StringP("port", "p", "", "serial port of the MTS controller")
	flags.Uint("baud", 0, "serial baud rate")
	flags.Bool("simulate", false, "run against the built-in controller emulator")
	flags.Int("http-port", 0, "REST API port")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("params", "", "hardware parameter file")
	flags.Parse(os.Args[1:])

	// Config laden
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Logger initialisieren
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Config loaded successfully", zap.String("path", *configPath))

	lifecycle := system.NewLifecycleManager(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := lifecycle.Start(ctx); err != nil {
		lifecycle.Shutdown(context.Background())
		logger.Fatal("Failed to start system", zap.Error(err))
	}

	logger.Info("OpenMTS started successfully")

	// Graceful Shutdown auf Signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	if err := lifecycle.Shutdown(context.Background()); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("OpenMTS stopped successfully")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
