package main

import (
	"os"

	"github.com/joho/godotenv"

	"gosha-bot/internal/logging"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		l := logging.L()
		l.Debug().Err(err).Msg(".env file not loaded")
	}
	if err := newRootCmd().Execute(); err != nil {
		l := logging.L()
		l.Error().Err(err).Msg("bot exited with error")
		os.Exit(1)
	}
}
