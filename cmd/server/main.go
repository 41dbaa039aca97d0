package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mwhited/typerace-backend/internal/config"
	"github.com/mwhited/typerace-backend/internal/coordinator"
	"github.com/mwhited/typerace-backend/internal/httpapi"
	"github.com/mwhited/typerace-backend/internal/registry"
	"github.com/mwhited/typerace-backend/internal/store"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st coordinator.Storage
	if cfg.DatabaseURL != "" {
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open store", zap.Error(err))
		}
		if err := db.SeedSentences(ctx); err != nil {
			logger.Error("seed sentences", zap.Error(err))
		}
		st = db
	} else {
		logger.Info("no DATABASE_URL set, using in-memory store")
		st = store.NewMemory()
	}

	reg := registry.New(ctx)
	coord := coordinator.New(reg, st, logger, cfg.RaceRetention)
	handler := httpapi.SetupRoutes(coord, logger)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
