package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barkeep/internal/api"
	"barkeep/internal/bot"
	"barkeep/internal/config"
	"barkeep/internal/economy"
	"barkeep/internal/narrate"
	"barkeep/internal/store/memstore"
	"barkeep/internal/store/pgstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var repos economy.Repos
	switch cfg.Store {
	case "memory":
		repos = memstore.New().Repos()
		logger.Warn("using in-memory store; state is lost on exit")
	default:
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		store := pgstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("migrate failed", "err", err)
			os.Exit(1)
		}
		repos = store.Repos()
	}

	rng := economy.NewRandomizer()
	narrator, err := narrate.New(rng)
	if err != nil {
		logger.Error("load narration failed", "err", err)
		os.Exit(1)
	}
	engine := economy.NewEngine(repos, rng, narrator, logger, economy.Config{
		TheftCooldown: cfg.TheftCooldown,
		PlayCooldown:  cfg.PlayCooldown,
		FilterExpiry:  cfg.FilterExpiry,
		MaxItems:      cfg.MaxItems,
		MaxBeverages:  cfg.MaxBeverages,
		StealOdds:     cfg.StealOdds,
		Reserved:      cfg.ReservedNames(),
	})

	if cfg.DiscordToken != "" {
		b, err := bot.New(cfg, logger, engine)
		if err != nil {
			logger.Error("bot init failed", "err", err)
			os.Exit(1)
		}
		if err := b.Open(); err != nil {
			logger.Error("bot connect failed", "err", err)
			os.Exit(1)
		}
		defer b.Close()
		logger.Info("bot connected", "name", cfg.BotName)
	} else {
		logger.Warn("BARKEEP_DISCORD_TOKEN unset; running API only")
	}

	server := api.New(cfg, logger, repos)
	httpServer := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("barkeep api listening", "addr", cfg.APIAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
