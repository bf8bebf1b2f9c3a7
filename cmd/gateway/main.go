package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gclef-cmu/music-arena/internal/config"
	"github.com/gclef-cmu/music-arena/internal/gateway"
	"github.com/gclef-cmu/music-arena/internal/promptpipeline"
	"github.com/gclef-cmu/music-arena/internal/registry"
	"github.com/gclef-cmu/music-arena/internal/store"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	reg, err := registry.Load(cfg.RegistryPath, nil)
	if err != nil {
		slog.Error("registry load failed", "err", err)
		os.Exit(1)
	}

	weights, err := gateway.ParseWeights(cfg.Weights)
	if err != nil {
		slog.Error("weights parse failed", "err", err)
		os.Exit(1)
	}

	prebaked, err := gateway.LoadPrebaked(cfg.PrebakedPath)
	if err != nil {
		slog.Error("prebaked load failed", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var docs store.DocStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connect failed", "err", err)
			os.Exit(1)
		}
		if err := store.AutoMigrate(ctx, pool); err != nil {
			slog.Error("database migrate failed", "err", err)
			os.Exit(1)
		}
		docs = store.NewPostgresDocStore(pool)
	} else {
		docs = store.NewInMemoryDocStore()
	}

	blobs := store.NewLocalBlobStore(cfg.BlobRoot, cfg.PublicBaseURL)
	provider := promptpipeline.NewHTTPChatProvider(cfg.ChatProviderURL, cfg.ChatProviderAPIKey)
	clients := gateway.BuildClients(reg, cfg.SystemsBaseURL)

	srv := gateway.NewServer(gateway.Config{
		Registry:          reg,
		Pipeline:          promptpipeline.New(provider),
		Clients:           clients,
		Weights:           weights,
		Blobs:             blobs,
		Docs:              docs,
		MinimumListenTime: time.Duration(cfg.MinimumListenTime * float64(time.Second)),
		Flakiness:         cfg.Flakiness,
		Prebaked:          prebaked,
		RateLimitRPS:      cfg.RateLimitRPS,
		RequestTimeout:    time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		slog.Info("gateway listening", "addr", cfg.ListenAddr, "systems", len(clients))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway exited", "err", err)
			os.Exit(1)
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	slog.Info("gateway shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
