package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/roulette-tablet/go/clients/game_api_client"
	"github.com/mcdev12/roulette-tablet/go/internal/config"
	"github.com/mcdev12/roulette-tablet/go/internal/publisher"
	"github.com/mcdev12/roulette-tablet/go/internal/serialdev"
	"github.com/mcdev12/roulette-tablet/go/internal/session"
	"github.com/mcdev12/roulette-tablet/go/internal/tablet"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Tablet   *tablet.Service
	Registry *session.Registry
	NATS     *publisher.NATSPublisher
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Event sinks: structured log, WebSocket clients and optionally NATS
	connections := tablet.NewConnectionManager(tablet.DefaultConnectionConfig())
	fanout := publisher.NewFanout(publisher.NewLogPublisher(), connections)

	var natsPublisher *publisher.NATSPublisher
	if cfg.NATS.URL != "" {
		natsCfg := publisher.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix

		var err error
		natsPublisher, err = publisher.NewNATSPublisher(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		fanout.Add(natsPublisher)
	}

	client := game_api_client.NewGameApiClient(cfg.GameAPI.BaseURL, cfg.GameAPI.Timeout)
	guard := serialdev.NewPortGuard()

	factory := func(gameID string) *session.Session {
		opts := []session.Option{
			session.WithPollInterval(cfg.Session.PollInterval),
			session.WithPopupDuration(cfg.Session.PopupDuration),
			session.WithInteractionItems(cfg.Session.InteractionItems...),
			session.WithNotifier(fanout),
		}
		if cfg.Serial.Enabled {
			opts = append(opts, session.WithSerial(
				serialdev.WithBaudRate(cfg.Serial.BaudRate),
				serialdev.WithPortGuard(guard),
			))
		}

		var s *session.Session
		if gameID == "" {
			s = session.NewDebug(opts...)
		} else {
			opts = append(opts, session.WithDebug(cfg.Debug))
			s = session.New(gameID, client, opts...)
		}

		if cfg.Serial.Enabled && cfg.Serial.AutoConnect {
			if err := s.ConnectSerial(ctx, cfg.Serial.Port); err != nil {
				log.Warn().Err(err).Str("game_id", s.GameID()).Msg("serial auto-connect failed")
			}
		}
		return s
	}

	registry := session.NewRegistry(ctx, factory, cfg.Debug,
		session.WithIdleTimeout(cfg.Session.IdleTimeout),
		session.WithInUse(connections.InUse),
	)

	return &Services{
		Tablet:   tablet.NewService(connections, registry),
		Registry: registry,
		NATS:     natsPublisher,
	}, nil
}

// Close releases what the tablet service does not own.
func (s *Services) Close() {
	if s.NATS == nil {
		return
	}
	if err := s.NATS.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close NATS publisher")
	}
}
