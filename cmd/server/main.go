// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"page-drm-service/config"
	"page-drm-service/internal/envelope"
	"page-drm-service/internal/handler"
	"page-drm-service/internal/infra"
	"page-drm-service/internal/repository"
	"page-drm-service/internal/usecase"
	"page-drm-service/migrations"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	infra.SetupLogger(cfg, infra.ParseLevel(cfg.LogLevel))

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, decoded pages are kept in memory only")
	}
	db, err := infra.NewDB(cfg.DatabaseDSN(), cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	if cfg.AutoMigrate || cfg.DatabaseURL == "" {
		migrationService := usecase.NewMigrationService(repository.NewMigrationRepository(db), db, migrations.FS)
		applied, err := migrationService.ApplyMigrations(ctx)
		if err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations checked", "applied", applied)
	}

	// DI
	repo := repository.NewPageRepository(db)
	service := usecase.NewPageService(repo, envelope.NewDefaultDecryptor(), cfg.ImageBaseURL, cfg.DecodeWorkers)
	h := handler.NewPageHandler(service, cfg.MaxManifestBytes)
	router := handler.NewRouter(h, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"version", infra.Version,
		"decode_workers", cfg.DecodeWorkers,
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
