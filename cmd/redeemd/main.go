// Package main запускает HTTP-сервер сервиса выкупа кодов.
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

	"github.com/mmeshcher/redeem-system/internal/bot"
	"github.com/mmeshcher/redeem-system/internal/config"
	"github.com/mmeshcher/redeem-system/internal/dispatch"
	"github.com/mmeshcher/redeem-system/internal/handler"
	"github.com/mmeshcher/redeem-system/internal/ledger"
	"github.com/mmeshcher/redeem-system/internal/middleware"
	"github.com/mmeshcher/redeem-system/internal/oracle"
	"github.com/mmeshcher/redeem-system/internal/seed"
	"github.com/mmeshcher/redeem-system/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var st store.Store
	if cfg.DatabaseURI != "" {
		st, err = store.NewPostgres(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Info("no database uri configured, using in-memory store")
		st = store.NewMemory()
	}
	defer st.Close()

	if err := seed.Apply(context.Background(), st, cfg.SeedFile, logger); err != nil {
		sugar.Fatalw("seed error", "error", err.Error())
	}

	ldg := ledger.New(st)

	// Нулевой клиент допустим: без адреса оракула работают локальные фолбэки.
	var oracleClient *oracle.Client
	if cfg.OracleAddress != "" {
		oracleClient = oracle.NewClient(cfg.OracleAddress)
	}

	pipeline := dispatch.NewPipeline(ldg, bot.NewExecutor(), oracleClient, logger)
	dispatcher := dispatch.NewDispatcher(ldg, pipeline, cfg.DispatchInterval, logger)

	adminMiddleware := middleware.NewAdminMiddleware(cfg.AdminKey)
	h := handler.NewHandler(ldg, oracleClient, logger, adminMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск планировщика очереди заказов
	g.Go(func() error {
		dispatcher.Run(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting redeem server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
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
