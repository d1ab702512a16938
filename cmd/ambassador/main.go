// Package main запускает HTTP-сервер реферального реестра амбассадоров.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ambassador-ledger/internal/config"
	"github.com/mmeshcher/ambassador-ledger/internal/handler"
	"github.com/mmeshcher/ambassador-ledger/internal/middleware"
	"github.com/mmeshcher/ambassador-ledger/internal/repository"
	"github.com/mmeshcher/ambassador-ledger/internal/service"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func newRepository(cfg *config.Config, sugar *zap.SugaredLogger) (service.Repository, error) {
	if cfg.DatabaseURI == "" {
		sugar.Warn("DATABASE_URI is empty, using in-memory storage")
		return repository.NewMemoryRepository(), nil
	}
	return repository.NewPostgresRepository(cfg.DatabaseURI)
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	if cfg.PartnerAPIKey == "" {
		sugar.Warn("partner API key is not configured, referral events will be refused")
	}
	if cfg.AdminAPIKey == "" {
		sugar.Warn("admin API key is not configured, admin API will be refused")
	}

	repo, err := newRepository(cfg, sugar)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	svc := service.NewService(repo, service.Config{
		ReferralBaseURL: cfg.ReferralBaseURL,
		MinPayout:       cfg.MinPayout,
	}, logger)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret).WithSecureCookie(cfg.SecureCookie)
	h := handler.NewHandler(svc, logger, authMiddleware, handler.Keys{
		Partner: cfg.PartnerAPIKey,
		Admin:   cfg.AdminAPIKey,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting ambassador ledger", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Завершение по сигналу или по ошибке сервера.
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
