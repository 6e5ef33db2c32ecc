package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-metrics/internal/api"
	appcfg "github.com/park285/chess-metrics/internal/config"
	"github.com/park285/chess-metrics/internal/metricsbuilder"
	"github.com/park285/chess-metrics/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	deps, err := metricsbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("metrics init error", zap.Error(err))
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("close dependencies", zap.Error(err))
		}
	}()

	srv, err := api.NewServer(deps.Service, deps.Messages, logger)
	if err != nil {
		logger.Fatal("http server init error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- srv.ListenAndServe(ctx, cfg.HTTPAddr) }()

	if cfg.LiveAddr != "" {
		live, err := api.NewLiveServer(deps.Service, deps.Messages, logger)
		if err != nil {
			logger.Fatal("live server init error", zap.Error(err))
		}
		running++
		go func() { errCh <- live.ListenAndServe(ctx, cfg.LiveAddr) }()
	}

	logger.Info("chess-metrics started",
		zap.String("http", cfg.HTTPAddr),
		zap.String("live", cfg.LiveAddr),
		zap.String("engine", deps.Engine.Name()),
		zap.Bool("cache", deps.Cache != nil),
	)

	exitCode := 0
	select {
	case err := <-errCh:
		running--
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
			exitCode = 1
		}
		stop()
	case <-ctx.Done():
	}

	// 남은 리스너 종료 대기
	deadline := time.After(cfg.ShutdownTimeout())
	for running > 0 {
		select {
		case err := <-errCh:
			running--
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("server shutdown", zap.Error(err))
			}
		case <-deadline:
			logger.Warn("shutdown timed out", zap.Duration("timeout", cfg.ShutdownTimeout()))
			running = 0
			exitCode = 1
		}
	}
	logger.Info("chess-metrics stopped")
	if exitCode != 0 {
		_ = deps.Close()
		os.Exit(exitCode)
	}
}
