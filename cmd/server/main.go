package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/seeitsmanish/SongCircle/internal/adapters/http"
	"github.com/seeitsmanish/SongCircle/internal/adapters/ws"
	"github.com/seeitsmanish/SongCircle/internal/auth"
	"github.com/seeitsmanish/SongCircle/internal/config"
	"github.com/seeitsmanish/SongCircle/internal/core"
	"github.com/seeitsmanish/SongCircle/internal/media"
	"github.com/seeitsmanish/SongCircle/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	kv, err := store.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}
	defer kv.Close()

	rooms, err := store.NewRoomRegistry(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	defer rooms.Close()
	if err := rooms.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	registry := core.NewConnectionRegistry()
	coord := core.NewSessionCoordinator(kv, rooms, registry)
	dispatch := core.NewBroadcastDispatcher(registry)
	tokens := auth.New(cfg.JWTSecret)
	mediaSvc := media.NewService(kv, media.NewYouTube(cfg.YouTubeEndpoint, cfg.YouTubeAPIKey))

	wsCtl := &ws.Controller{
		Coord:      coord,
		Dispatch:   dispatch,
		Registry:   registry,
		Media:      mediaSvc,
		Verifier:   tokens,
		Limiter:    ws.NewFrameLimiter(cfg.FrameRateLimit, time.Minute),
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}

	handler := router.SetupRouter(ctx, cfg, router.Deps{
		Rooms: rooms,
		Media: mediaSvc,
		JWT:   tokens,
		WS:    wsCtl,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("SongCircle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
