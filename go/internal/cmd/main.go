package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}

	server := setupServer(cfg, services)

	log.Info().
		Str("addr", server.Addr).
		Str("game_api", cfg.GameAPI.BaseURL).
		Dur("poll_interval", cfg.Session.PollInterval).
		Bool("debug", cfg.Debug).
		Bool("serial", cfg.Serial.Enabled).
		Msg("starting roulette tablet")

	g, gctx := errgroup.WithContext(ctx)

	// Broadcaster and session owner; returns once gctx is done and every session stopped
	g.Go(func() error {
		return services.Tablet.Start(gctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	services.Close()
	if err != nil {
		log.Error().Err(err).Msg("tablet exited with error")
		os.Exit(1)
	}
	log.Info().Msg("roulette tablet shutdown complete")
}
