package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gclef-cmu/music-arena/internal/config"
	"github.com/gclef-cmu/music-arena/internal/systemserver"
	"github.com/gclef-cmu/music-arena/internal/systemserver/refmodel"
)

func main() {
	cfg, err := config.LoadSystemServer()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	model := refmodel.NewSineGenerator()
	srv := systemserver.NewServer(model, systemserver.Config{
		MaxBatchSize:    cfg.MaxBatchSize,
		MaxDelay:        time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		QueueCapacity:   cfg.QueueCapacity,
		GPUTotalGB:      cfg.GPUTotalGB,
		GPUMemGBPerItem: cfg.GPUMemGBPerItem,
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		slog.Info("system server listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("system server exited", "err", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("system server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("model release failed", "err", err)
	}
}
