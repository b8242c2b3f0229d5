package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/crossword/internal/cache"
	"github.com/robalobadob/crossword/internal/config"
	"github.com/robalobadob/crossword/internal/coordinator"
	"github.com/robalobadob/crossword/internal/httpserver"
	"github.com/robalobadob/crossword/internal/store"
	"github.com/robalobadob/crossword/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	svc := coordinator.New(db, cache.New(cfg.CacheTTL), coordinator.WithAutoStartAfter(cfg.AutoStartAfter))
	sw := sweeper.New(svc, sweeper.WithRetention(cfg.Retention), sweeper.WithWorkers(cfg.SweepWorkers))
	srv := httpserver.New(cfg, svc, sw)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, cfg.Addr()) })
	g.Go(func() error { return sw.Loop(ctx, cfg.SweepInterval, cfg.RetentionInterval) })

	log.Info().Str("port", cfg.Port).Str("db", cfg.DBPath).Msg("starting crossword server")
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited")
		stop()
		_ = db.Close()
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
