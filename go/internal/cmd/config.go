package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/mcdev12/roulette-tablet/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// loadConfig reads .env (if any) into the environment, then the config file.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}
	return config.Load("")
}

func setupLogging(cfg *config.Config) {
	if !cfg.Log.JSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := cfg.LogLevel()
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
